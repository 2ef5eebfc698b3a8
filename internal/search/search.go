// Package search implements user search and per-user search history.
package search

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"snappit/internal/models"
	"snappit/internal/store"
)

// historyLimit caps the number of remembered queries per user.
const historyLimit = 10

// Service performs user lookups and manages search history.
type Service struct {
	st store.Store
}

// NewService creates a search service.
func NewService(st store.Store) *Service {
	return &Service{st: st}
}

// Users returns public profiles whose name or username contains the query,
// case-insensitively, sorted by username. An empty query matches nothing.
func (s *Service) Users(ctx context.Context, query string) ([]models.User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var matches []models.User
	err := s.st.List(ctx, store.UsersPrefix, func(path string, raw []byte) error {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Username), q) {
			matches = append(matches, u.Public())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Username < matches[j].Username })
	return matches, nil
}

type historyDoc struct {
	Queries []string `json:"queries"`
}

// History returns the user's remembered queries, most recent first.
func (s *Service) History(ctx context.Context, userID string) ([]string, error) {
	var doc historyDoc
	if err := s.st.Get(ctx, store.SearchHistoryPath(userID), &doc); err != nil {
		if models.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Queries, nil
}

// AddQuery records a query at the head of the user's history. Duplicates
// move to the head; the list is capped at the most recent entries.
func (s *Service) AddQuery(ctx context.Context, userID, query string) error {
	query = strings.TrimSpace(query)
	if userID == "" || query == "" {
		return models.NewValidationError("User and query are required")
	}

	queries, err := s.History(ctx, userID)
	if err != nil {
		return err
	}

	updated := make([]string, 0, len(queries)+1)
	updated = append(updated, query)
	for _, q := range queries {
		if strings.EqualFold(q, query) {
			continue
		}
		updated = append(updated, q)
	}
	if len(updated) > historyLimit {
		updated = updated[:historyLimit]
	}
	return s.st.Put(ctx, store.SearchHistoryPath(userID), historyDoc{Queries: updated})
}

// RemoveQuery deletes a single query from the user's history.
func (s *Service) RemoveQuery(ctx context.Context, userID, query string) error {
	queries, err := s.History(ctx, userID)
	if err != nil {
		return err
	}

	kept := queries[:0:0]
	for _, q := range queries {
		if !strings.EqualFold(q, query) {
			kept = append(kept, q)
		}
	}
	if len(kept) == len(queries) {
		return nil
	}
	if kept == nil {
		kept = []string{}
	}
	return s.st.Put(ctx, store.SearchHistoryPath(userID), historyDoc{Queries: kept})
}

// ClearHistory drops the user's entire search history.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	return s.st.Delete(ctx, store.SearchHistoryPath(userID))
}
