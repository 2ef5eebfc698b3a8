// Package profile implements the profile view: a user's own threads with
// optimistic deletion, plus profile field updates.
package profile

import (
	"context"
	"encoding/json"
	"sync"

	"snappit/internal/feed"
	"snappit/internal/mirror"
	"snappit/internal/models"
	"snappit/internal/observability"
	"snappit/internal/store"
)

// View holds the threads authored by one user. Unlike the feed it is
// refreshed on demand rather than subscription-driven; the profile screen
// reloads when opened.
type View struct {
	st     store.Store
	log    *observability.ViewLogger
	userID string

	mu      sync.Mutex
	threads *mirror.Cache[models.Thread]
	entries []feed.Entry

	onChange  func([]feed.Entry)
	onFailure func(operation, entityID string)
	ops       sync.WaitGroup
}

// NewView creates a profile view for the given user.
func NewView(st store.Store, userID string) *View {
	return &View{
		st:      st,
		log:     observability.NewViewLogger("profile"),
		userID:  userID,
		threads: mirror.New[models.Thread](),
	}
}

// OnChange registers the list publisher.
func (v *View) OnChange(fn func([]feed.Entry)) { v.onChange = fn }

// OnFailure registers the rolled-back-operation signal.
func (v *View) OnFailure(fn func(operation, entityID string)) { v.onFailure = fn }

// Wait blocks until every issued authoritative write has settled.
func (v *View) Wait() { v.ops.Wait() }

// Entries returns a snapshot of the user's threads, newest first.
func (v *View) Entries() []feed.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Refresh reloads the user's threads from the store and rebuilds the list.
func (v *View) Refresh(ctx context.Context) error {
	var author models.User
	if err := v.st.Get(ctx, store.UserPath(v.userID), &author); err != nil {
		if !models.IsNotFound(err) {
			return err
		}
	}

	fresh := mirror.New[models.Thread]()
	err := v.st.List(ctx, store.ThreadsPrefix, func(path string, raw []byte) error {
		var t models.Thread
		if err := json.Unmarshal(raw, &t); err != nil || t.UserID != v.userID {
			return nil
		}
		fresh.Put(t.ID, t)
		return nil
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.threads = fresh
	entries := make([]feed.Entry, 0, v.threads.Len())
	v.threads.Each(func(_ string, t models.Thread) {
		entries = append(entries, feed.Entry{Thread: t, Author: author.Public()})
	})
	feed.SortNewestFirst(entries)
	v.entries = entries
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogRebuild(ctx, len(snapshot))
	v.publish(snapshot)
	return nil
}

// DeleteThread removes a thread the user authored. The row disappears from
// the list before the authoritative delete is issued; if the delete fails
// the thread is restored to the cache and appended at the end of the list.
func (v *View) DeleteThread(ctx context.Context, threadID, requesterID string) error {
	if threadID == "" || requesterID == "" {
		return models.NewValidationError("Thread and user are required")
	}

	v.mu.Lock()
	victim, ok := v.threads.Get(threadID)
	if !ok {
		for _, e := range v.entries {
			if e.Thread.ID == threadID {
				victim, ok = e.Thread, true
				break
			}
		}
	}
	if !ok {
		v.mu.Unlock()
		return models.NewNotFoundError("Thread", threadID)
	}
	if victim.UserID != requesterID {
		v.mu.Unlock()
		return models.NewUnauthorizedError("You can only delete your own threads")
	}

	var author models.User
	v.threads.Delete(threadID)
	kept := v.entries[:0:0]
	for _, e := range v.entries {
		if e.Thread.ID == threadID {
			author = e.Author
			continue
		}
		kept = append(kept, e)
	}
	v.entries = kept
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogApply(ctx, "delete_thread", threadID)
	v.publish(snapshot)

	v.ops.Add(1)
	go func() {
		defer v.ops.Done()
		if err := v.st.Delete(context.Background(), store.ThreadPath(threadID)); err != nil {
			v.mu.Lock()
			v.threads.Put(threadID, victim)
			v.entries = append(v.entries, feed.Entry{Thread: victim, Author: author})
			rolledBack := v.snapshotLocked()
			v.mu.Unlock()
			v.log.LogRollback(context.Background(), "delete_thread", threadID, err)
			v.publish(rolledBack)
			v.fail("delete_thread", threadID)
			return
		}
		v.log.LogConfirm(context.Background(), "delete_thread", threadID)
	}()

	return nil
}

func (v *View) snapshotLocked() []feed.Entry {
	snapshot := make([]feed.Entry, len(v.entries))
	copy(snapshot, v.entries)
	return snapshot
}

func (v *View) publish(entries []feed.Entry) {
	if v.onChange != nil {
		v.onChange(entries)
	}
}

func (v *View) fail(operation, entityID string) {
	if v.onFailure != nil {
		v.onFailure(operation, entityID)
	}
}

// Service handles profile reads and updates outside the optimistic views.
type Service struct {
	st store.Store
}

// NewService creates a profile service over the given store.
func NewService(st store.Store) *Service {
	return &Service{st: st}
}

// Get returns the public profile for userID.
func (s *Service) Get(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	if err := s.st.Get(ctx, store.UserPath(userID), &u); err != nil {
		return models.User{}, err
	}
	return u.Public(), nil
}

// UpdateInput carries the editable profile fields.
type UpdateInput struct {
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// Update rewrites the editable profile fields. Name is required; bio and
// avatar may be cleared by passing empty strings.
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (models.User, error) {
	if in.Name == "" {
		return models.User{}, models.NewValidationError("Name is required")
	}
	var u models.User
	if err := s.st.Get(ctx, store.UserPath(userID), &u); err != nil {
		return models.User{}, err
	}
	u.Name = in.Name
	u.Bio = in.Bio
	u.AvatarURL = in.AvatarURL
	if err := s.st.Put(ctx, store.UserPath(userID), u); err != nil {
		return models.User{}, err
	}
	return u.Public(), nil
}
