// Package notifications provides real-time feed delivery over websockets.
// Each connection owns its own view session; the hub tracks connections per
// user and enforces limits.
package notifications

import (
	"context"
	"fmt"
	"sync"

	"snappit/internal/observability"
	"snappit/internal/store"

	"github.com/gofiber/websocket/v2"
)

const maxConnsPerUser = 8

// FeedHub manages websocket connections. Unlike broadcast-style hubs every
// client gets a private session with its own feed and comment views, so
// the hub only tracks membership.
type FeedHub struct {
	st  store.Store
	log *observability.WSLogger

	mu sync.RWMutex

	// Map: userID -> set of active Clients (Multi-Device Support)
	userConns map[string]map[*Client]bool

	// Map: client -> its view session, torn down on unregister
	sessions map[*Client]*Session
}

// NewFeedHub creates a new FeedHub over the given store.
func NewFeedHub(st store.Store) *FeedHub {
	return &FeedHub{
		st:        st,
		log:       observability.NewWSLogger("feed hub"),
		userConns: make(map[string]map[*Client]bool),
		sessions:  make(map[*Client]*Session),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *FeedHub) Name() string { return "feed hub" }

// Register creates a client and its private session for a user's websocket
// connection. Returns an error if the per-user connection limit is hit or
// the session's subscriptions cannot be opened.
func (h *FeedHub) Register(ctx context.Context, userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]bool)
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = true
	h.mu.Unlock()

	session := NewSession(h.st, client)
	if err := session.Start(ctx); err != nil {
		h.mu.Lock()
		delete(h.userConns[userID], client)
		if len(h.userConns[userID]) == 0 {
			delete(h.userConns, userID)
		}
		h.mu.Unlock()
		return nil, err
	}

	h.mu.Lock()
	h.sessions[client] = session
	h.mu.Unlock()

	client.IncomingHandler = session.HandleIncoming
	h.log.LogConnect(ctx, userID)
	return client, nil
}

// UnregisterClient removes a client and closes its session.
func (h *FeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	session := h.sessions[client]
	delete(h.sessions, client)
	if clients, ok := h.userConns[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userConns, client.UserID)
		}
	}
	h.mu.Unlock()

	if session != nil {
		session.Close()
	}

	defer func() { recover() }() // double unregister closes an already closed channel
	close(client.Send)

	h.log.LogDisconnect(context.Background(), client.UserID, "unregistered")
}

// ConnectedUsers returns the ids of users with at least one open connection.
func (h *FeedHub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.userConns))
	for id := range h.userConns {
		ids = append(ids, id)
	}
	return ids
}
