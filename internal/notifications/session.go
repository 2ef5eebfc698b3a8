package notifications

import (
	"context"
	"encoding/json"
	"sync"

	"snappit/internal/comments"
	"snappit/internal/feed"
	"snappit/internal/observability"
	"snappit/internal/store"
)

// Session is the server-side counterpart of one client screen: a feed view
// plus a comment view per watched thread, all private to the connection.
// Every incoming frame maps to one view operation; every view change is
// pushed back as a full list snapshot.
type Session struct {
	st     store.Store
	client *Client
	log    *observability.WSLogger

	feed *feed.View

	mu       sync.Mutex
	comments map[string]*comments.View
	closed   bool
}

// IncomingMessage is the envelope for client frames.
type IncomingMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OutgoingMessage is the envelope for server frames.
type OutgoingMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewSession creates a session bound to one client connection.
func NewSession(st store.Store, client *Client) *Session {
	return &Session{
		st:       st,
		client:   client,
		log:      observability.NewWSLogger("feed hub"),
		feed:     feed.NewView(st),
		comments: make(map[string]*comments.View),
	}
}

// Start wires the feed view callbacks and opens its subscriptions.
func (s *Session) Start(ctx context.Context) error {
	s.feed.OnChange(func(entries []feed.Entry) {
		s.send("feed", entries)
	})
	s.feed.OnFailure(func(operation, entityID string) {
		s.sendFailure("feed", operation, entityID)
	})
	return s.feed.Start(ctx)
}

// Close tears down the feed view and every watched comment view.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	views := make([]*comments.View, 0, len(s.comments))
	for _, v := range s.comments {
		views = append(views, v)
	}
	s.comments = make(map[string]*comments.View)
	s.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	s.feed.Close()
}

// HandleIncoming dispatches one client frame to the owning view.
func (s *Session) HandleIncoming(c *Client, raw []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendError("Invalid message format")
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case "toggle_like":
		var p struct {
			ThreadID       string `json:"thread_id"`
			CurrentlyLiked bool   `json:"currently_liked"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError("Invalid payload")
			return
		}
		s.feed.ToggleLike(ctx, p.ThreadID, c.UserID, p.CurrentlyLiked)

	case "add_thread":
		var p struct {
			Body     string `json:"body"`
			ImageURL string `json:"image_url"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError("Invalid payload")
			return
		}
		if _, err := s.feed.AddThread(ctx, c.UserID, p.Body, p.ImageURL); err != nil {
			s.sendError(err.Error())
		}

	case "watch_comments":
		var p struct {
			ThreadID string `json:"thread_id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ThreadID == "" {
			s.sendError("Invalid payload")
			return
		}
		if err := s.watch(ctx, p.ThreadID); err != nil {
			s.sendError(err.Error())
		}

	case "unwatch_comments":
		var p struct {
			ThreadID string `json:"thread_id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ThreadID == "" {
			s.sendError("Invalid payload")
			return
		}
		s.unwatch(p.ThreadID)

	case "add_comment":
		var p struct {
			ThreadID string `json:"thread_id"`
			Body     string `json:"body"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError("Invalid payload")
			return
		}
		v, ok := s.view(p.ThreadID)
		if !ok {
			s.sendError("Thread is not being watched")
			return
		}
		if _, err := v.AddComment(ctx, c.UserID, p.Body); err != nil {
			s.sendError(err.Error())
		}

	case "add_reply":
		var p struct {
			ThreadID string `json:"thread_id"`
			ParentID string `json:"parent_id"`
			Body     string `json:"body"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError("Invalid payload")
			return
		}
		v, ok := s.view(p.ThreadID)
		if !ok {
			s.sendError("Thread is not being watched")
			return
		}
		if _, err := v.AddReply(ctx, c.UserID, p.ParentID, p.Body); err != nil {
			s.sendError(err.Error())
		}

	case "delete_comment":
		var p struct {
			ThreadID  string `json:"thread_id"`
			CommentID string `json:"comment_id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError("Invalid payload")
			return
		}
		v, ok := s.view(p.ThreadID)
		if !ok {
			s.sendError("Thread is not being watched")
			return
		}
		if err := v.Delete(ctx, p.CommentID, c.UserID); err != nil {
			s.sendError(err.Error())
		}

	case "toggle_comment_like":
		var p struct {
			ThreadID       string `json:"thread_id"`
			CommentID      string `json:"comment_id"`
			CurrentlyLiked bool   `json:"currently_liked"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError("Invalid payload")
			return
		}
		v, ok := s.view(p.ThreadID)
		if !ok {
			s.sendError("Thread is not being watched")
			return
		}
		v.ToggleLike(ctx, p.CommentID, c.UserID, p.CurrentlyLiked)

	default:
		s.sendError("Unknown message type")
	}
}

func (s *Session) watch(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.comments[threadID]; ok {
		s.mu.Unlock()
		return nil
	}
	v := comments.NewView(s.st, threadID)
	s.comments[threadID] = v
	s.mu.Unlock()

	v.OnChange(func(entries []comments.Entry) {
		s.send("comments", map[string]interface{}{
			"thread_id": threadID,
			"entries":   entries,
		})
	})
	v.OnFailure(func(operation, entityID string) {
		s.sendFailure("comments", operation, entityID)
	})

	if err := v.Start(ctx); err != nil {
		s.mu.Lock()
		delete(s.comments, threadID)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Session) unwatch(threadID string) {
	s.mu.Lock()
	v, ok := s.comments[threadID]
	delete(s.comments, threadID)
	s.mu.Unlock()
	if ok {
		v.Close()
	}
}

func (s *Session) view(threadID string) (*comments.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.comments[threadID]
	return v, ok
}

func (s *Session) send(msgType string, payload interface{}) {
	raw, err := json.Marshal(OutgoingMessage{Type: msgType, Payload: payload})
	if err != nil {
		s.log.LogError(context.Background(), s.client.UserID, err, msgType)
		return
	}
	s.client.TrySend(raw)
}

func (s *Session) sendFailure(view, operation, entityID string) {
	s.send("op_failed", map[string]string{
		"view":      view,
		"operation": operation,
		"entity_id": entityID,
	})
}

func (s *Session) sendError(message string) {
	s.send("error", map[string]string{"message": message})
}
