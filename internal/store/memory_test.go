package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"snappit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name string `json:"name"`
}

func TestMemory_GetPutDelete(t *testing.T) {
	t.Parallel()

	st := NewMemory()
	ctx := context.Background()

	t.Run("get missing returns not found", func(t *testing.T) {
		t.Parallel()
		var out doc
		err := st.Get(ctx, "threads/nope", &out)
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, st.Put(ctx, "threads/a", doc{Name: "hello"}))
		var out doc
		require.NoError(t, st.Get(ctx, "threads/a", &out))
		assert.Equal(t, "hello", out.Name)
	})

	t.Run("delete removes the document", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, st.Put(ctx, "threads/b", doc{Name: "bye"}))
		require.NoError(t, st.Delete(ctx, "threads/b"))
		var out doc
		assert.True(t, models.IsNotFound(st.Get(ctx, "threads/b", &out)))
	})

	t.Run("delete missing is a no-op", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, st.Delete(ctx, "threads/never-existed"))
	})
}

func TestMemory_List(t *testing.T) {
	t.Parallel()

	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "threads/1", doc{Name: "one"}))
	require.NoError(t, st.Put(ctx, "threads/2", doc{Name: "two"}))
	require.NoError(t, st.Put(ctx, "users/u1", doc{Name: "someone"}))

	var paths []string
	err := st.List(ctx, "threads/", func(path string, raw []byte) error {
		var d doc
		require.NoError(t, json.Unmarshal(raw, &d))
		paths = append(paths, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"threads/1", "threads/2"}, paths)
}

func TestMemory_BatchIsAtomic(t *testing.T) {
	t.Parallel()

	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Batch(ctx,
		AddMember("followers/bob", "alice"),
		AddMember("following/alice", "bob"),
	))

	followers, err := st.Members(ctx, "followers/bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)

	following, err := st.Members(ctx, "following/alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, following)

	t.Run("invalid op leaves no partial state", func(t *testing.T) {
		err := st.Batch(ctx,
			AddMember("followers/carol", "alice"),
			Op{Kind: 0, Path: "following/alice", Member: "carol"},
		)
		require.Error(t, err)

		members, mErr := st.Members(ctx, "followers/carol")
		require.NoError(t, mErr)
		assert.Empty(t, members)
	})

	t.Run("remove drops the member on both sides", func(t *testing.T) {
		require.NoError(t, st.Batch(ctx,
			RemoveMember("followers/bob", "alice"),
			RemoveMember("following/alice", "bob"),
		))
		members, err := st.Members(ctx, "followers/bob")
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestMemory_SubscribeDeliversPrefixEvents(t *testing.T) {
	t.Parallel()

	st := NewMemory()
	ctx := context.Background()

	sub, err := st.Subscribe(ctx, "threads/")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, st.Put(ctx, "threads/t1", doc{Name: "first"}))
	require.NoError(t, st.Put(ctx, "users/u1", doc{Name: "ignored"}))
	require.NoError(t, st.Delete(ctx, "threads/t1"))

	ev := waitEvent(t, sub)
	assert.Equal(t, "threads/t1", ev.Path)
	assert.False(t, ev.Deleted)
	var d doc
	require.NoError(t, json.Unmarshal(ev.Raw, &d))
	assert.Equal(t, "first", d.Name)

	ev = waitEvent(t, sub)
	assert.Equal(t, "threads/t1", ev.Path)
	assert.True(t, ev.Deleted)
}

func TestMemory_SubscribeCloseStopsEvents(t *testing.T) {
	t.Parallel()

	st := NewMemory()
	ctx := context.Background()

	sub, err := st.Subscribe(ctx, "threads/")
	require.NoError(t, err)
	sub.Close()

	_, open := <-sub.Events()
	assert.False(t, open)

	// Writing after close must not panic.
	assert.NoError(t, st.Put(ctx, "threads/x", doc{Name: "late"}))
}

func waitEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
