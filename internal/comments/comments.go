// Package comments implements the comment view for a single thread: a live
// list of comments and replies joined with their authors, with optimistic
// add/like/delete mutations reconciled against the authoritative store.
package comments

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

// Entry is one comment row joined with its author.
type Entry struct {
	Comment models.Comment `json:"comment"`
	Author  models.User    `json:"author"`
}

// View owns the mirror caches and the published comment list for one
// thread. Caches and list are cleared on Close.
type View struct {
	st       store.Store
	log      *observability.ViewLogger
	threadID string

	mu       sync.Mutex
	comments *mirror.Cache[models.Comment]
	users    *mirror.Cache[models.User]
	entries  []Entry

	onChange  func([]Entry)
	onFailure func(operation, entityID string)

	ctx        context.Context
	cancel     context.CancelFunc
	commentSub store.Subscription
	userSub    store.Subscription
	loopDone   chan struct{}
	ops        sync.WaitGroup
	started    bool
}

// NewView creates a comment view for the given thread.
func NewView(st store.Store, threadID string) *View {
	return &View{
		st:       st,
		log:      observability.NewViewLogger("comments"),
		threadID: threadID,
		comments: mirror.New[models.Comment](),
		users:    mirror.New[models.User](),
		// Start replaces this. Mutations issued before Start still need a
		// usable context for their authoritative writes.
		ctx: context.Background(),
	}
}

// OnChange registers the list publisher. The callback may be invoked from
// multiple goroutines and must be safe for concurrent use.
func (v *View) OnChange(fn func([]Entry)) { v.onChange = fn }

// OnFailure registers the rolled-back-operation signal.
func (v *View) OnFailure(fn func(operation, entityID string)) { v.onFailure = fn }

// ThreadID returns the thread this view is bound to.
func (v *View) ThreadID() string { return v.threadID }

// Start opens the comment and user subscriptions, loads the current
// comments for the thread and begins rebuilding on change notifications.
func (v *View) Start(ctx context.Context) error {
	if v.started {
		return models.NewValidationError("view already started")
	}

	commentSub, err := v.st.Subscribe(ctx, store.CommentsPrefix)
	if err != nil {
		return err
	}
	userSub, err := v.st.Subscribe(ctx, store.UsersPrefix)
	if err != nil {
		commentSub.Close()
		return err
	}

	v.commentSub = commentSub
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
	v.commentSub.Close()
	v.userSub.Close()
	<-v.loopDone

	v.mu.Lock()
	v.comments.Clear()
	v.users.Clear()
	v.entries = nil
	v.mu.Unlock()
}

// Wait blocks until every issued authoritative write has settled.
func (v *View) Wait() { v.ops.Wait() }

// Entries returns a snapshot of the published list (top-level comments and
// replies interleaved, newest-first on rebuild).
func (v *View) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// TopLevel returns only the comments that are not replies.
func (v *View) TopLevel() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Entry
	for _, e := range v.entries {
		if !e.Comment.IsReply() {
			out = append(out, e)
		}
	}
	return out
}

// Replies returns the replies to the given comment, oldest first.
func (v *View) Replies(parentID string) []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Entry
	for _, e := range v.entries {
		if e.Comment.ParentID != nil && *e.Comment.ParentID == parentID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return models.TimestampValue(out[i].Comment.Timestamp) < models.TimestampValue(out[j].Comment.Timestamp)
	})
	return out
}

// Refresh loads all comments for the thread and rebuilds the list.
func (v *View) Refresh(ctx context.Context) error {
	err := v.st.List(ctx, store.CommentsPrefix, func(path string, raw []byte) error {
		var c models.Comment
		if err := json.Unmarshal(raw, &c); err != nil || c.ThreadID != v.threadID {
			return nil
		}
		v.mu.Lock()
		v.comments.Put(c.ID, c)
		v.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	v.rebuild(ctx)
	return nil
}

// AddComment creates a top-level comment, inserting it at the head of the
// list before the authoritative write. On success the parent thread's
// comment counter is incremented (read-modify-write, accepted as
// eventually consistent). On remote failure the head entry is removed
// again and the failure is surfaced once.
func (v *View) AddComment(ctx context.Context, userID, body string) (string, error) {
	return v.add(ctx, userID, body, nil)
}

// AddReply creates a reply to parentID, appended at the tail of the list.
// Replies do not change the thread's comment counter.
func (v *View) AddReply(ctx context.Context, userID, parentID, body string) (string, error) {
	if parentID == "" {
		return "", models.NewValidationError("Parent comment is required")
	}
	return v.add(ctx, userID, body, &parentID)
}

func (v *View) add(ctx context.Context, userID, body string, parentID *string) (string, error) {
	if userID == "" {
		return "", models.NewValidationError("User is required")
	}
	if body == "" {
		return "", models.NewValidationError("Body is required")
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		ThreadID:  v.threadID,
		UserID:    userID,
		Body:      body,
		Timestamp: models.NewTimestamp(),
		LikedBy:   []string{},
		ParentID:  parentID,
	}
	isReply := comment.IsReply()
	operation := "add_comment"
	if isReply {
		operation = "add_reply"
	}

	v.mu.Lock()
	v.comments.Put(comment.ID, comment)
	author, _ := v.users.Get(userID)
	entry := Entry{Comment: comment, Author: author.Public()}
	if isReply {
		v.entries = append(v.entries, entry)
	} else {
		v.entries = append([]Entry{entry}, v.entries...)
	}
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogApply(ctx, operation, comment.ID)
	v.publish(snapshot)

	v.ops.Add(1)
	go func() {
		defer v.ops.Done()
		if err := v.st.Put(v.ctx, store.CommentPath(comment.ID), comment); err != nil {
			v.mu.Lock()
			v.comments.Delete(comment.ID)
			// Positional removal: head for comments, tail for replies.
			if n := len(v.entries); n > 0 {
				if isReply {
					v.entries = v.entries[:n-1]
				} else {
					v.entries = v.entries[1:]
				}
			}
			rolledBack := v.snapshotLocked()
			v.mu.Unlock()
			v.log.LogRollback(v.ctx, operation, comment.ID, err)
			v.publish(rolledBack)
			v.fail(operation, comment.ID)
			return
		}
		if !isReply {
			v.bumpThreadCommentCount(v.ctx, +1)
		}
		v.log.LogConfirm(v.ctx, operation, comment.ID)
	}()

	return comment.ID, nil
}

// ToggleLike flips userID's like on a comment. Empty ids are a silent
// no-op; a failed authoritative write restores the previous state.
func (v *View) ToggleLike(ctx context.Context, commentID, userID string, currentlyLiked bool) {
	if commentID == "" || userID == "" {
		return
	}

	v.mu.Lock()
	prev, ok := v.comments.Get(commentID)
	if !ok {
		for _, e := range v.entries {
			if e.Comment.ID == commentID {
				prev, ok = e.Comment, true
				break
			}
		}
	}
	if !ok {
		v.mu.Unlock()
		return
	}
	updated := prev.WithLike(userID, currentlyLiked)
	v.comments.Put(commentID, updated)
	v.replaceEntryLocked(updated)
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogApply(ctx, "toggle_like", commentID)
	v.publish(snapshot)

	v.ops.Add(1)
	go func() {
		defer v.ops.Done()
		if err := v.st.Put(v.ctx, store.CommentPath(commentID), updated); err != nil {
			v.mu.Lock()
			v.comments.Put(commentID, prev)
			v.replaceEntryLocked(prev)
			rolledBack := v.snapshotLocked()
			v.mu.Unlock()
			v.log.LogRollback(v.ctx, "toggle_like", commentID, err)
			v.publish(rolledBack)
			v.fail("toggle_like", commentID)
			return
		}
		v.log.LogConfirm(v.ctx, "toggle_like", commentID)
	}()
}

// Delete removes a comment authored by requesterID. The authorization
// check runs against the cache, falling back to the published list, and
// aborts before any mutation. On remote failure the comment is restored to
// the cache and re-appended to the list (position is an accepted
// approximation). Deleting a top-level comment decrements the thread's
// comment counter.
func (v *View) Delete(ctx context.Context, commentID, requesterID string) error {
	if commentID == "" || requesterID == "" {
		return models.NewValidationError("Comment and user are required")
	}

	v.mu.Lock()
	victim, ok := v.comments.Get(commentID)
	if !ok {
		for _, e := range v.entries {
			if e.Comment.ID == commentID {
				victim, ok = e.Comment, true
				break
			}
		}
	}
	if !ok {
		v.mu.Unlock()
		return models.NewNotFoundError("Comment", commentID)
	}
	if victim.UserID != requesterID {
		v.mu.Unlock()
		return models.NewUnauthorizedError("You can only delete your own comments")
	}

	v.comments.Delete(commentID)
	kept := v.entries[:0:0]
	for _, e := range v.entries {
		if e.Comment.ID != commentID {
			kept = append(kept, e)
		}
	}
	v.entries = kept
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogApply(ctx, "delete_comment", commentID)
	v.publish(snapshot)

	v.ops.Add(1)
	go func() {
		defer v.ops.Done()
		if err := v.st.Delete(v.ctx, store.CommentPath(commentID)); err != nil {
			v.mu.Lock()
			v.comments.Put(commentID, victim)
			author, _ := v.users.Get(victim.UserID)
			v.entries = append(v.entries, Entry{Comment: victim, Author: author.Public()})
			rolledBack := v.snapshotLocked()
			v.mu.Unlock()
			v.log.LogRollback(v.ctx, "delete_comment", commentID, err)
			v.publish(rolledBack)
			v.fail("delete_comment", commentID)
			return
		}
		if !victim.IsReply() {
			v.bumpThreadCommentCount(v.ctx, -1)
		}
		v.log.LogConfirm(v.ctx, "delete_comment", commentID)
	}()

	return nil
}

// bumpThreadCommentCount adjusts the parent thread's denormalized comment
// counter via read-modify-write. The counter is eventually consistent, not
// a strong invariant; failures are logged and otherwise ignored.
func (v *View) bumpThreadCommentCount(ctx context.Context, delta int) {
	var thread models.Thread
	if err := v.st.Get(ctx, store.ThreadPath(v.threadID), &thread); err != nil {
		v.log.LogError(ctx, "comment_count", err)
		return
	}
	thread.Comments += delta
	if thread.Comments < 0 {
		thread.Comments = 0
	}
	if err := v.st.Put(ctx, store.ThreadPath(v.threadID), thread); err != nil {
		v.log.LogError(ctx, "comment_count", err)
	}
}

func (v *View) loop() {
	defer close(v.loopDone)
	for {
		select {
		case <-v.ctx.Done():
			return
		case ev, ok := <-v.commentSub.Events():
			if !ok {
				return
			}
			v.applyCommentEvent(ev)
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

func (v *View) applyCommentEvent(ev store.Event) {
	id := strings.TrimPrefix(ev.Path, store.CommentsPrefix)
	v.mu.Lock()
	defer v.mu.Unlock()
	if ev.Deleted {
		v.comments.Delete(id)
		return
	}
	var c models.Comment
	if err := json.Unmarshal(ev.Raw, &c); err != nil || c.ID == "" {
		return
	}
	if c.ThreadID != v.threadID {
		return
	}
	// Last write wins against concurrent optimistic updates; accepted race.
	v.comments.Put(c.ID, c)
}

func (v *View) applyUserEvent(ev store.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ev.Deleted {
		v.users.Delete(strings.TrimPrefix(ev.Path, store.UsersPrefix))
		return
	}
	var u models.User
	if err := json.Unmarshal(ev.Raw, &u); err != nil || u.ID == "" {
		return
	}
	v.users.Put(u.ID, u)
}

// rebuild recomputes the published list from the comment cache, joining
// authors from the user cache with a point-read fallback. A missing author
// never blocks the rest of the list.
func (v *View) rebuild(ctx context.Context) {
	v.mu.Lock()
	var missing []string
	seen := make(map[string]struct{})
	v.comments.Each(func(_ string, c models.Comment) {
		if c.UserID == "" {
			return
		}
		if _, ok := v.users.Get(c.UserID); ok {
			return
		}
		if _, dup := seen[c.UserID]; dup {
			return
		}
		seen[c.UserID] = struct{}{}
		missing = append(missing, c.UserID)
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
	entries := make([]Entry, 0, v.comments.Len())
	v.comments.Each(func(_ string, c models.Comment) {
		author, _ := v.users.Get(c.UserID)
		entries = append(entries, Entry{Comment: c, Author: author.Public()})
	})
	sort.SliceStable(entries, func(i, j int) bool {
		ti := models.TimestampValue(entries[i].Comment.Timestamp)
		tj := models.TimestampValue(entries[j].Comment.Timestamp)
		if ti != tj {
			return ti > tj
		}
		return entries[i].Comment.ID > entries[j].Comment.ID
	})
	v.entries = entries
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.log.LogRebuild(ctx, len(snapshot))
	v.publish(snapshot)
}

func (v *View) replaceEntryLocked(c models.Comment) {
	for i := range v.entries {
		if v.entries[i].Comment.ID == c.ID {
			v.entries[i].Comment = c
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
