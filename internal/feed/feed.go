// Package feed implements the home feed view: a live, newest-first list of
// threads joined with their authors, kept current by store subscriptions,
// with optimistic like and post mutations reconciled against the
// authoritative store.
package feed

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"snappit/internal/mirror"
	"snappit/internal/models"
	"snappit/internal/observability"
	"snappit/internal/store"

	"github.com/google/uuid"
)

// Entry is one feed row: a thread joined with its author.
type Entry struct {
	Thread models.Thread `json:"thread"`
	Author models.User   `json:"author"`
}

// View owns the mirror caches and the published feed list for one consumer.
// Caches and list are never shared across views and are cleared on Close.
type View struct {
	st  store.Store
	log *observability.ViewLogger

	mu      sync.Mutex
	threads *mirror.Cache[models.Thread]
	users   *mirror.Cache[models.User]
	entries []Entry

	onChange  func([]Entry)
	onFailure func(operation, entityID string)

	ctx       context.Context
	cancel    context.CancelFunc
	threadSub store.Subscription
	userSub   store.Subscription
	loopDone  chan struct{}
	ops       sync.WaitGroup
	started   bool
}

// NewView creates a feed view over the given store. Set callbacks before
// calling Start.
func NewView(st store.Store) *View {
	return &View{
		st:      st,
		log:     observability.NewViewLogger("feed"),
		threads: mirror.New[models.Thread](),
		users:   mirror.New[models.User](),
		// Start replaces this. Mutations issued before Start still need a
		// usable context for their authoritative writes.
		ctx: context.Background(),
	}
}

// OnChange registers the list publisher. The callback may be invoked from
// multiple goroutines and must be safe for concurrent use.
func (v *View) OnChange(fn func([]Entry)) { v.onChange = fn }

// OnFailure registers the rolled-back-operation signal. Each failed
// operation is surfaced exactly once; retry is the caller's decision.
func (v *View) OnFailure(fn func(operation, entityID string)) { v.onFailure = fn }

// Start opens both subscriptions (threads and users), performs the initial
// load, and begins rebuilding the list on every change notification.
func (v *View) Start(ctx context.Context) error {
	if v.started {
		return models.NewValidationError("view already started")
	}

	threadSub, err := v.st.Subscribe(ctx, store.ThreadsPrefix)
	if err != nil {
		return err
	}
	userSub, err := v.st.Subscribe(ctx, store.UsersPrefix)
	if err != nil {
		threadSub.Close()
		return err
	}

	v.threadSub = threadSub
	v.userSub = userSub
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.loopDone = make(chan struct{})
	v.started = true

	if err := v.Refresh(ctx); err != nil {
		v.log.LogError(ctx, "initial_load", err)
	}

	go v.loop()
	return nil
}

// Close tears the view down: waits for in-flight writes, closes both
// subscriptions and clears both caches.
func (v *View) Close() {
	if !v.started {
		return
	}
	v.ops.Wait()
	v.cancel()
	v.threadSub.Close()
	v.userSub.Close()
	<-v.loopDone

	v.mu.Lock()
	v.threads.Clear()
	v.users.Clear()
	v.entries = nil
	v.mu.Unlock()
}

// Wait blocks until every issued authoritative write has settled. Intended
// for tests and graceful teardown.
func (v *View) Wait() { v.ops.Wait() }

// Entries returns a snapshot of the current feed list.
func (v *View) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Refresh loads the full thread subtree and rebuilds the list. Used for the
// initial population; afterwards the subscriptions keep the view current.
func (v *View) Refresh(ctx context.Context) error {
	err := v.st.List(ctx, store.ThreadsPrefix, func(path string, raw []byte) error {
		var t models.Thread
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil // skip malformed documents
		}
		v.mu.Lock()
		v.threads.Put(t.ID, t)
		v.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	v.rebuild(ctx)
	return nil
}

// ToggleLike flips userID's like on a thread. currentlyLiked is the state
// the caller observed. The cache and list are updated synchronously before
// the authoritative write is issued; a failed write restores the previous
// state. Empty ids are a silent no-op.
func (v *View) ToggleLike(ctx context.Context, threadID, userID string, currentlyLiked bool) {
	if threadID == "" || userID == "" {
		return
	}

	v.mu.Lock()
	prev, ok := v.threads.Get(threadID)
	if !ok {
		for _, e := range v.entries {
			if e.Thread.ID == threadID {
				prev, ok = e.Thread, true
				break
			}
		}
	}
	if !ok {
		v.mu.Unlock()
		return
	}
	updated := prev.WithLike(userID, currentlyLiked)
	v.threads.Put(threadID, updated)
	v.replaceEntryLocked(updated)
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogApply(ctx, "toggle_like", threadID)
	v.publish(snapshot)

	v.ops.Add(1)
	go func() {
		defer v.ops.Done()
		if err := v.st.Put(v.ctx, store.ThreadPath(threadID), updated); err != nil {
			v.mu.Lock()
			v.threads.Put(threadID, prev)
			v.replaceEntryLocked(prev)
			rolledBack := v.snapshotLocked()
			v.mu.Unlock()
			v.log.LogRollback(v.ctx, "toggle_like", threadID, err)
			v.publish(rolledBack)
			v.fail("toggle_like", threadID)
			return
		}
		v.log.LogConfirm(v.ctx, "toggle_like", threadID)
	}()
}

// AddThread creates a new thread and inserts it at the head of the list
// before the authoritative write. imageURL may be empty (text-only post).
// Validation failures are returned synchronously; remote failures surface
// through the OnFailure callback after the entry is removed again.
func (v *View) AddThread(ctx context.Context, userID, body, imageURL string) (string, error) {
	if userID == "" {
		return "", models.NewValidationError("User is required")
	}
	if body == "" {
		return "", models.NewValidationError("Body is required")
	}

	thread := models.Thread{
		ID:        uuid.NewString(),
		Body:      body,
		ImageURL:  imageURL,
		UserID:    userID,
		Timestamp: models.NewTimestamp(),
		LikedBy:   []string{},
	}

	v.mu.Lock()
	v.threads.Put(thread.ID, thread)
	author, _ := v.users.Get(userID)
	v.entries = append([]Entry{{Thread: thread, Author: author.Public()}}, v.entries...)
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogApply(ctx, "add_thread", thread.ID)
	v.publish(snapshot)

	v.ops.Add(1)
	go func() {
		defer v.ops.Done()
		if err := v.st.Put(v.ctx, store.ThreadPath(thread.ID), thread); err != nil {
			v.mu.Lock()
			v.threads.Delete(thread.ID)
			// Positional removal: the entry went in at the head.
			if len(v.entries) > 0 {
				v.entries = v.entries[1:]
			}
			rolledBack := v.snapshotLocked()
			v.mu.Unlock()
			v.log.LogRollback(v.ctx, "add_thread", thread.ID, err)
			v.publish(rolledBack)
			v.fail("add_thread", thread.ID)
			return
		}
		v.log.LogConfirm(v.ctx, "add_thread", thread.ID)
	}()

	return thread.ID, nil
}

func (v *View) loop() {
	defer close(v.loopDone)
	for {
		select {
		case <-v.ctx.Done():
			return
		case ev, ok := <-v.threadSub.Events():
			if !ok {
				return
			}
			v.applyThreadEvent(ev)
			v.rebuild(v.ctx)
		case ev, ok := <-v.userSub.Events():
			if !ok {
				return
			}
			v.applyUserEvent(ev)
			v.rebuild(v.ctx)
		}
	}
}

func (v *View) applyThreadEvent(ev store.Event) {
	id := strings.TrimPrefix(ev.Path, store.ThreadsPrefix)
	v.mu.Lock()
	defer v.mu.Unlock()
	if ev.Deleted {
		v.threads.Delete(id)
		return
	}
	var t models.Thread
	if err := json.Unmarshal(ev.Raw, &t); err != nil || t.ID == "" {
		return
	}
	// Last write wins: a stale notification can overwrite a newer
	// optimistic value. Accepted race, kept for parity with the client.
	v.threads.Put(t.ID, t)
}

func (v *View) applyUserEvent(ev store.Event) {
	id := strings.TrimPrefix(ev.Path, store.UsersPrefix)
	v.mu.Lock()
	defer v.mu.Unlock()
	if ev.Deleted {
		v.users.Delete(id)
		return
	}
	var u models.User
	if err := json.Unmarshal(ev.Raw, &u); err != nil || u.ID == "" {
		return
	}
	v.users.Put(u.ID, u)
}

// rebuild recomputes the published list from the thread cache, resolving
// authors through the user cache with a point-read fallback. A missing
// author never fails the rebuild; the row gets a default author instead.
func (v *View) rebuild(ctx context.Context) {
	v.mu.Lock()
	var missing []string
	seen := make(map[string]struct{})
	v.threads.Each(func(_ string, t models.Thread) {
		if t.UserID == "" {
			return
		}
		if _, ok := v.users.Get(t.UserID); ok {
			return
		}
		if _, dup := seen[t.UserID]; dup {
			return
		}
		seen[t.UserID] = struct{}{}
		missing = append(missing, t.UserID)
	})
	v.mu.Unlock()

	fetched := make(map[string]models.User, len(missing))
	for _, id := range missing {
		var u models.User
		if err := v.st.Get(ctx, store.UserPath(id), &u); err == nil {
			fetched[id] = u
		}
	}

	v.mu.Lock()
	for id, u := range fetched {
		v.users.Put(id, u)
	}
	entries := make([]Entry, 0, v.threads.Len())
	v.threads.Each(func(_ string, t models.Thread) {
		author, _ := v.users.Get(t.UserID)
		entries = append(entries, Entry{Thread: t, Author: author.Public()})
	})
	SortNewestFirst(entries)
	v.entries = entries
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogRebuild(ctx, len(snapshot))
	v.publish(snapshot)
}

func (v *View) replaceEntryLocked(t models.Thread) {
	for i := range v.entries {
		if v.entries[i].Thread.ID == t.ID {
			v.entries[i].Thread = t
			return
		}
	}
}

func (v *View) snapshotLocked() []Entry {
	snapshot := make([]Entry, len(v.entries))
	copy(snapshot, v.entries)
	return snapshot
}

func (v *View) publish(entries []Entry) {
	if v.onChange != nil {
		v.onChange(entries)
	}
}

func (v *View) fail(operation, entityID string) {
	if v.onFailure != nil {
		v.onFailure(operation, entityID)
	}
}

// SortNewestFirst orders entries by descending numeric timestamp. Ties keep
// their relative order; ids break exact timestamp collisions for stability
// across rebuilds.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti := models.TimestampValue(entries[i].Thread.Timestamp)
		tj := models.TimestampValue(entries[j].Thread.Timestamp)
		if ti != tj {
			return ti > tj
		}
		return entries[i].Thread.ID > entries[j].Thread.ID
	})
}
