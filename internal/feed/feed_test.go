package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"snappit/internal/models"
	"snappit/internal/store"
	"snappit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemoteDown = errors.New("remote store down")

// failureRecorder collects OnFailure callbacks safely across goroutines.
type failureRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *failureRecorder) record(operation, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, operation+":"+entityID)
}

func (r *failureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func seedThread(t *testing.T, st store.Store, id, userID, timestamp string, likedBy ...string) models.Thread {
	t.Helper()
	if likedBy == nil {
		likedBy = []string{}
	}
	thread := models.Thread{
		ID:        id,
		Body:      "body of " + id,
		UserID:    userID,
		Timestamp: timestamp,
		LikedBy:   likedBy,
		Likes:     len(likedBy),
	}
	require.NoError(t, st.Put(context.Background(), store.ThreadPath(id), thread))
	return thread
}

func seedUser(t *testing.T, st store.Store, id, name string) models.User {
	t.Helper()
	user := models.User{ID: id, Name: name, Username: name, Email: name + "@example.com"}
	require.NoError(t, st.Put(context.Background(), store.UserPath(id), user))
	return user
}

func startView(t *testing.T, st store.Store) *View {
	t.Helper()
	v := NewView(st)
	require.NoError(t, v.Start(context.Background()))
	t.Cleanup(v.Close)
	return v
}

func TestView_RefreshOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t-a", "u1", "100")
	seedThread(t, stub, "t-b", "u1", "300")
	seedThread(t, stub, "t-c", "u1", "200")

	v := startView(t, stub)

	entries := v.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "t-b", entries[0].Thread.ID)
	assert.Equal(t, "t-c", entries[1].Thread.ID)
	assert.Equal(t, "t-a", entries[2].Thread.ID)
}

func TestView_OrderingIsNumericNotLexicographic(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	// Lexicographically "999" > "1000"; numerically the reverse.
	seedThread(t, stub, "t-old", "u1", "999")
	seedThread(t, stub, "t-new", "u1", "1000")

	v := startView(t, stub)

	entries := v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "t-new", entries[0].Thread.ID)
	assert.Equal(t, "t-old", entries[1].Thread.ID)
}

func TestView_ToggleLikeConfirmed(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t1", "u1", "100")

	v := startView(t, stub)
	rec := &failureRecorder{}
	v.OnFailure(rec.record)

	v.ToggleLike(context.Background(), "t1", "u2", false)

	// The list reflects the like before the write settles.
	entries := v.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Thread.Likes)
	assert.True(t, entries[0].Thread.LikedByUser("u2"))

	v.Wait()
	assert.Zero(t, rec.count())

	var stored models.Thread
	require.NoError(t, stub.Get(context.Background(), store.ThreadPath("t1"), &stored))
	assert.Equal(t, 1, stored.Likes)
	assert.True(t, stored.LikedByUser("u2"))
}

func TestView_ToggleLikeRollsBackExactly(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	original := seedThread(t, stub, "t1", "u1", "100", "u9")

	v := startView(t, stub)
	rec := &failureRecorder{}
	v.OnFailure(rec.record)

	stub.PutFn = func(context.Context, string, any) error { return errRemoteDown }

	v.ToggleLike(context.Background(), "t1", "u2", false)
	v.Wait()

	entries := v.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, original.Likes, entries[0].Thread.Likes)
	assert.Equal(t, original.LikedBy, entries[0].Thread.LikedBy)
	assert.Equal(t, 1, rec.count())

	// The authoritative document never changed.
	stub.PutFn = nil
	var stored models.Thread
	require.NoError(t, stub.Get(context.Background(), store.ThreadPath("t1"), &stored))
	assert.Equal(t, original.Likes, stored.Likes)
}

func TestView_ToggleLikeDoubleFailureRestoresOriginal(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	original := seedThread(t, stub, "t1", "u1", "100")

	v := startView(t, stub)
	rec := &failureRecorder{}
	v.OnFailure(rec.record)

	stub.PutFn = func(context.Context, string, any) error { return errRemoteDown }

	v.ToggleLike(context.Background(), "t1", "u2", false)
	v.Wait()
	v.ToggleLike(context.Background(), "t1", "u2", false)
	v.Wait()

	entries := v.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, original.Likes, entries[0].Thread.Likes)
	assert.Equal(t, original.LikedBy, entries[0].Thread.LikedBy)
	// Each failed mutation surfaces exactly once.
	assert.Equal(t, 2, rec.count())
}

func TestView_ToggleLikeEmptyIDsAreNoOps(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t1", "u1", "100")

	v := startView(t, stub)

	v.ToggleLike(context.Background(), "", "u2", false)
	v.ToggleLike(context.Background(), "t1", "", false)
	v.Wait()

	entries := v.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Thread.Likes)
}

func TestView_AddThreadConfirmed(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")

	v := startView(t, stub)

	id, err := v.AddThread(context.Background(), "u1", "hello world", "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Head insert happens before the write settles.
	entries := v.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].Thread.ID)

	v.Wait()

	var stored models.Thread
	require.NoError(t, stub.Get(context.Background(), store.ThreadPath(id), &stored))
	assert.Equal(t, "hello world", stored.Body)

	// The author is joined in once the change notification lands.
	require.Eventually(t, func() bool {
		entries := v.Entries()
		return len(entries) == 1 && entries[0].Author.Name == "ada"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestView_AddThreadValidation(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	v := startView(t, stub)

	_, err := v.AddThread(context.Background(), "", "body", "")
	assert.Error(t, err)

	_, err = v.AddThread(context.Background(), "u1", "", "")
	assert.Error(t, err)

	assert.Empty(t, v.Entries())
}

func TestView_AddThreadFailureRemovesHeadEntry(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t-existing", "u1", "100")

	v := startView(t, stub)
	rec := &failureRecorder{}
	v.OnFailure(rec.record)

	before := v.Entries()
	require.Len(t, before, 1)

	stub.PutFn = func(context.Context, string, any) error { return errRemoteDown }

	id, err := v.AddThread(context.Background(), "u1", "doomed", "")
	require.NoError(t, err)
	v.Wait()

	after := v.Entries()
	require.Len(t, after, 1)
	assert.Equal(t, "t-existing", after[0].Thread.ID)
	assert.Equal(t, 1, rec.count())

	// The failed thread is gone from the cache too; a later like on it is
	// a silent no-op.
	v.ToggleLike(context.Background(), id, "u1", false)
	v.Wait()
	assert.Equal(t, 1, rec.count())
}

func TestView_RemoteEventsRebuildList(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")

	v := startView(t, stub)
	assert.Empty(t, v.Entries())

	// A write from another client shows up via the subscription.
	seedThread(t, stub, "t-remote", "u1", "500")

	require.Eventually(t, func() bool {
		entries := v.Entries()
		return len(entries) == 1 && entries[0].Thread.ID == "t-remote" && entries[0].Author.Name == "ada"
	}, 2*time.Second, 10*time.Millisecond)

	// And a remote delete removes it again.
	require.NoError(t, stub.Delete(context.Background(), store.ThreadPath("t-remote")))
	require.Eventually(t, func() bool {
		return len(v.Entries()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestView_MissingAuthorGetsDefault(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedThread(t, stub, "t1", "ghost-user", "100")

	v := startView(t, stub)

	entries := v.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.User{}, entries[0].Author)
}

func TestView_ToggleLikeBeforeStart(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t1", "u1", "100")

	var mu sync.Mutex
	var writeCtx context.Context
	stub.PutFn = func(ctx context.Context, path string, value any) error {
		mu.Lock()
		writeCtx = ctx
		mu.Unlock()
		return stub.Inner.Put(ctx, path, value)
	}

	v := NewView(stub)
	require.NoError(t, v.Refresh(context.Background()))

	v.ToggleLike(context.Background(), "t1", "u2", false)
	v.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, writeCtx)
	var stored models.Thread
	require.NoError(t, stub.Get(context.Background(), store.ThreadPath("t1"), &stored))
	assert.Contains(t, stored.LikedBy, "u2")
}

func TestView_CloseClearsState(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t1", "u1", "100")

	v := NewView(stub)
	require.NoError(t, v.Start(context.Background()))
	require.Len(t, v.Entries(), 1)

	v.Close()
	assert.Empty(t, v.Entries())
}

func TestSortNewestFirst_TieBreaksByID(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{Thread: models.Thread{ID: "a", Timestamp: "100"}},
		{Thread: models.Thread{ID: "b", Timestamp: "100"}},
		{Thread: models.Thread{ID: "c", Timestamp: "200"}},
	}
	SortNewestFirst(entries)
	assert.Equal(t, "c", entries[0].Thread.ID)
	assert.Equal(t, "b", entries[1].Thread.ID)
	assert.Equal(t, "a", entries[2].Thread.ID)
}
