package social

import (
	"context"
	"errors"
	"testing"

	"snappit/internal/models"
	"snappit/internal/store"
	"snappit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, st store.Store, id, name string) models.User {
	t.Helper()
	u := models.User{ID: id, Name: name, Username: name, Email: name + "@example.com"}
	require.NoError(t, st.Put(context.Background(), store.UserPath(id), u))
	return u
}

func TestGraph_FollowWritesBothEdges(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	g := NewGraph(stub)
	ctx := context.Background()

	seedUser(t, stub, "alice", "alice")
	seedUser(t, stub, "bob", "bob")

	require.NoError(t, g.Follow(ctx, "bob", "alice"))

	followers, err := stub.Members(ctx, store.FollowersPath("bob"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)

	following, err := stub.Members(ctx, store.FollowingPath("alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, following)

	ok, err := g.IsFollowing(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGraph_FollowValidation(t *testing.T) {
	t.Parallel()

	g := NewGraph(testutil.NewStoreStub())
	ctx := context.Background()

	assert.Error(t, g.Follow(ctx, "", "alice"))
	assert.Error(t, g.Follow(ctx, "bob", ""))
	assert.Error(t, g.Follow(ctx, "alice", "alice"))
}

func TestGraph_FollowFailureLeavesNoPartialState(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	stub.BatchFn = func(context.Context, ...store.Op) error {
		return errors.New("remote store down")
	}
	g := NewGraph(stub)
	ctx := context.Background()

	require.Error(t, g.Follow(ctx, "bob", "alice"))

	stub.BatchFn = nil
	followers, err := stub.Members(ctx, store.FollowersPath("bob"))
	require.NoError(t, err)
	assert.Empty(t, followers)
	following, err := stub.Members(ctx, store.FollowingPath("alice"))
	require.NoError(t, err)
	assert.Empty(t, following)
}

func TestGraph_UnfollowRemovesBothEdges(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	g := NewGraph(stub)
	ctx := context.Background()

	require.NoError(t, g.Follow(ctx, "bob", "alice"))
	require.NoError(t, g.Unfollow(ctx, "bob", "alice"))

	ok, err := g.IsFollowing(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	following, err := stub.Members(ctx, store.FollowingPath("alice"))
	require.NoError(t, err)
	assert.Empty(t, following)

	// Unfollowing again is a no-op, not an error.
	assert.NoError(t, g.Unfollow(ctx, "bob", "alice"))
}

func TestGraph_FollowersResolvesUsers(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	g := NewGraph(stub)
	ctx := context.Background()

	seedUser(t, stub, "bob", "bob")
	seedUser(t, stub, "carol", "carol")
	seedUser(t, stub, "alice", "alice")

	require.NoError(t, g.Follow(ctx, "alice", "bob"))
	require.NoError(t, g.Follow(ctx, "alice", "carol"))

	followers, err := g.Followers(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, "bob", followers[0].Name)
	assert.Equal(t, "carol", followers[1].Name)

	following, err := g.Following(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "alice", following[0].Name)
}

func TestGraph_FollowersSkipsDeletedUsers(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	g := NewGraph(stub)
	ctx := context.Background()

	seedUser(t, stub, "bob", "bob")
	require.NoError(t, g.Follow(ctx, "alice", "bob"))
	require.NoError(t, g.Follow(ctx, "alice", "ghost"))

	followers, err := g.Followers(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Name)
}
