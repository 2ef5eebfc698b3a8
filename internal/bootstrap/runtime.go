// Package bootstrap establishes the runtime dependencies of the API process:
// the document store backend and optional development fixtures.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"snappit/internal/config"
	"snappit/internal/models"
	"snappit/internal/seed"
	"snappit/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedDemoData bool
}

// InitRuntime selects the configured store backend and optionally runs
// built-in development seeding.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (store.Store, error) {
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
	default:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis backend")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		st = store.NewRedis(rdb)
	}

	if err := ensureDevRootUser(ctx, cfg, st); err != nil {
		return nil, fmt.Errorf("failed to bootstrap development root user: %w", err)
	}

	if opts.SeedDemoData {
		f := seed.NewFactory(st, seed.Options{})
		users, err := seed.Run(ctx, f, seed.DefaultPreset)
		if err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		log.Printf("seeded %d demo users", len(users))
	}

	return st, nil
}

func ensureDevRootUser(ctx context.Context, cfg *config.Config, st store.Store) error {
	if cfg == nil || st == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "snappit_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@snappit.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	var existing *models.User
	err = st.List(ctx, store.UsersPrefix, func(path string, raw []byte) error {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil
		}
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			existing = &u
		}
		return nil
	})
	if err != nil {
		return err
	}

	root := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Name:         username,
		PasswordHash: string(hashedPassword),
	}
	if existing != nil {
		root = *existing
		root.PasswordHash = string(hashedPassword)
	}
	if err := st.Put(ctx, store.UserPath(root.ID), root); err != nil {
		return err
	}

	log.Printf("development root user bootstrap ensured (%s)", email)
	return nil
}
