package server

import (
	"context"

	"snappit/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgradeRequired rejects plain HTTP requests on websocket routes.
func (s *Server) WebSocketUpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocketFeedHandler handles WebSocket connections for the realtime feed.
// Each connection gets a private session: its own feed view plus a comment
// view per watched thread. Incoming frames drive the optimistic mutations;
// every view change is pushed back as a full snapshot.
func (s *Server) WebSocketFeedHandler() fiber.Handler {
	log := observability.NewWSLogger("feed hub")

	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		// Set by WebSocketAuthRequired before the upgrade.
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(string)

		client, err := s.hub.Register(ctx, userID, conn)
		if err != nil {
			log.LogError(ctx, userID, err, "register")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
