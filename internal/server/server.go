// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"sync"
	"time"

	"snappit/internal/auth"
	"snappit/internal/blob"
	"snappit/internal/config"
	"snappit/internal/identity"
	"snappit/internal/middleware"
	"snappit/internal/notifications"
	"snappit/internal/profile"
	"snappit/internal/search"
	"snappit/internal/social"
	"snappit/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	st             store.Store
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *identity.Tokens

	authService    *auth.Service
	profileService *profile.Service
	searchService  *search.Service
	blobService    *blob.Service
	graph          *social.Graph
	hub            *notifications.FeedHub
}

// NewServerWithDeps creates a Server using an already-initialized store.
// Use this in tests or when the bootstrap layer establishes the backend.
func NewServerWithDeps(cfg *config.Config, st store.Store) (*Server, error) {
	tokens, err := identity.NewTokens(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	middleware.InitMiddleware(tokens)

	// fiberprometheus registers its collectors globally; create it once so
	// repeated server construction (tests) does not double-register.
	promOnce.Do(func() {
		prom = fiberprometheus.New("snappit-api")
	})

	return &Server{
		config:         cfg,
		st:             st,
		promMiddleware: prom,
		tokens:         tokens,
		authService:    auth.NewService(st, tokens),
		profileService: profile.NewService(st),
		searchService:  search.NewService(st),
		blobService:    blob.NewService(st, cfg.UploadMaxMB, time.Duration(cfg.UploadTimeoutSecs)*time.Second),
		graph:          social.NewGraph(st),
		hub:            notifications.NewFeedHub(st),
	}, nil
}

// Store exposes the underlying document store for bootstrap and seeding.
func (s *Server) Store() store.Store { return s.st }

// SetupMiddleware configures the global middleware stack.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Request logging
	app.Use(logger.New())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.Register)
	authGroup.Post("/login", s.Login)

	// Public media routes
	app.Get("/media/i/:hash", s.GetMedia)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/search", s.SearchUsers)
	users.Get("/:id", s.GetProfile)
	users.Get("/:id/threads", s.GetUserThreads)
	users.Delete("/:id/threads/:threadID", s.DeleteUserThread)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", s.Follow)
	users.Delete("/:id/follow", s.Unfollow)

	// Search history routes
	history := protected.Group("/search/history")
	history.Get("/", s.GetSearchHistory)
	history.Post("/", s.AddSearchQuery)
	history.Delete("/", s.ClearSearchHistory)
	history.Delete("/:query", s.RemoveSearchQuery)

	// Media upload
	protected.Post("/media", s.UploadMedia)

	// Realtime feed over WebSocket
	ws := app.Group("/ws", middleware.WebSocketAuthRequired)
	ws.Get("/feed", s.WebSocketUpgradeRequired, s.WebSocketFeedHandler())
}

// Shutdown releases server resources after the HTTP listener has stopped.
func (s *Server) Shutdown(ctx context.Context) error {
	if closer, ok := s.st.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadinessCheck reports whether the store answers reads.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	err := s.st.List(ctx, "healthcheck/", func(string, []byte) error { return nil })
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
