package profile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"snappit/internal/feed"
	"snappit/internal/models"
	"snappit/internal/store"
	"snappit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemoteDown = errors.New("remote store down")

type failureRecorder struct {
	mu    sync.Mutex
	calls int
}

func (r *failureRecorder) record(string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
}

func (r *failureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func seedUser(t *testing.T, st store.Store, id, name string) models.User {
	t.Helper()
	u := models.User{ID: id, Name: name, Username: name, Email: name + "@example.com", PasswordHash: "secret"}
	require.NoError(t, st.Put(context.Background(), store.UserPath(id), u))
	return u
}

func seedThread(t *testing.T, st store.Store, id, userID, timestamp string) models.Thread {
	t.Helper()
	thread := models.Thread{ID: id, Body: "body " + id, UserID: userID, Timestamp: timestamp, LikedBy: []string{}}
	require.NoError(t, st.Put(context.Background(), store.ThreadPath(id), thread))
	return thread
}

func TestView_RefreshFiltersAndSorts(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	seedThread(t, stub, "t-old", "u1", "100")
	seedThread(t, stub, "t-new", "u1", "300")
	seedThread(t, stub, "t-other", "someone-else", "200")

	v := NewView(stub, "u1")
	require.NoError(t, v.Refresh(context.Background()))

	entries := v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "t-new", entries[0].Thread.ID)
	assert.Equal(t, "t-old", entries[1].Thread.ID)
	assert.Equal(t, "ada", entries[0].Author.Name)
	assert.Empty(t, entries[0].Author.PasswordHash)
}

func TestView_DeleteThread(t *testing.T) {
	t.Parallel()

	t.Run("author can delete", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		seedUser(t, stub, "u1", "ada")
		seedThread(t, stub, "t1", "u1", "100")

		v := NewView(stub, "u1")
		require.NoError(t, v.Refresh(context.Background()))

		require.NoError(t, v.DeleteThread(context.Background(), "t1", "u1"))
		assert.Empty(t, v.Entries())

		v.Wait()
		var gone models.Thread
		assert.True(t, models.IsNotFound(stub.Get(context.Background(), store.ThreadPath("t1"), &gone)))
	})

	t.Run("non-author is rejected before any mutation", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		seedUser(t, stub, "u1", "ada")
		seedThread(t, stub, "t1", "u1", "100")

		v := NewView(stub, "u1")
		require.NoError(t, v.Refresh(context.Background()))

		err := v.DeleteThread(context.Background(), "t1", "intruder")
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "UNAUTHORIZED", appErr.Code)
		assert.Len(t, v.Entries(), 1)
	})

	t.Run("non-author rejected when the thread is only in the list", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		stub.DeleteFn = func(context.Context, string) error {
			t.Error("authoritative delete issued for an unauthorized request")
			return nil
		}

		v := NewView(stub, "u1")
		thread := models.Thread{ID: "t1", Body: "b", UserID: "u1", Timestamp: "100", LikedBy: []string{}}
		v.entries = []feed.Entry{{Thread: thread}}

		err := v.DeleteThread(context.Background(), "t1", "intruder")
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "UNAUTHORIZED", appErr.Code)
		assert.Len(t, v.Entries(), 1)
		assert.Zero(t, v.threads.Len())
	})

	t.Run("non-author rejected when the thread is only in the cache", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		stub.DeleteFn = func(context.Context, string) error {
			t.Error("authoritative delete issued for an unauthorized request")
			return nil
		}

		v := NewView(stub, "u1")
		thread := models.Thread{ID: "t1", Body: "b", UserID: "u1", Timestamp: "100", LikedBy: []string{}}
		v.threads.Put("t1", thread)

		err := v.DeleteThread(context.Background(), "t1", "intruder")
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "UNAUTHORIZED", appErr.Code)
		assert.Empty(t, v.Entries())
		cached, ok := v.threads.Get("t1")
		require.True(t, ok)
		assert.Equal(t, thread, cached)
	})

	t.Run("remote failure restores the entry", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		seedUser(t, stub, "u1", "ada")
		seedThread(t, stub, "t1", "u1", "100")
		seedThread(t, stub, "t2", "u1", "200")

		v := NewView(stub, "u1")
		require.NoError(t, v.Refresh(context.Background()))
		rec := &failureRecorder{}
		v.OnFailure(rec.record)

		stub.DeleteFn = func(context.Context, string) error { return errRemoteDown }

		require.NoError(t, v.DeleteThread(context.Background(), "t2", "u1"))
		v.Wait()

		entries := v.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, "t2", entries[len(entries)-1].Thread.ID)
		assert.Equal(t, 1, rec.count())
	})

	t.Run("missing thread is not found", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		v := NewView(stub, "u1")
		err := v.DeleteThread(context.Background(), "nope", "u1")
		assert.True(t, models.IsNotFound(err))
	})
}

func TestService_GetStripsPasswordHash(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")

	svc := NewService(stub)
	user, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Name)
	assert.Empty(t, user.PasswordHash)
}

func TestService_Update(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "ada")
	svc := NewService(stub)
	ctx := context.Background()

	t.Run("name is required", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Update(ctx, "u1", UpdateInput{Bio: "new bio"})
		assert.Error(t, err)
	})

	t.Run("rewrites editable fields", func(t *testing.T) {
		updated, err := svc.Update(ctx, "u1", UpdateInput{
			Name:      "Ada Lovelace",
			Bio:       "first programmer",
			AvatarURL: "/media/i/abc.webp",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", updated.Name)
		assert.Equal(t, "first programmer", updated.Bio)

		var stored models.User
		require.NoError(t, stub.Get(ctx, store.UserPath("u1"), &stored))
		assert.Equal(t, "Ada Lovelace", stored.Name)
		// The stored credential survives profile edits.
		assert.Equal(t, "secret", stored.PasswordHash)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Update(ctx, "ghost", UpdateInput{Name: "x"})
		assert.True(t, models.IsNotFound(err))
	})
}
