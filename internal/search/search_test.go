package search

import (
	"context"
	"testing"

	"snappit/internal/models"
	"snappit/internal/store"
	"snappit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, st store.Store, id, name, username string) {
	t.Helper()
	u := models.User{ID: id, Name: name, Username: username, Email: username + "@example.com", PasswordHash: "secret"}
	require.NoError(t, st.Put(context.Background(), store.UserPath(id), u))
}

func TestService_Users(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	seedUser(t, stub, "u1", "Ada Lovelace", "ada")
	seedUser(t, stub, "u2", "Alan Turing", "turing")
	seedUser(t, stub, "u3", "Grace Hopper", "amazing_grace")

	svc := NewService(stub)
	ctx := context.Background()

	t.Run("matches name case-insensitively", func(t *testing.T) {
		t.Parallel()
		users, err := svc.Users(ctx, "aDa")
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "Ada Lovelace", users[0].Name)
		assert.Empty(t, users[0].PasswordHash)
	})

	t.Run("matches username too", func(t *testing.T) {
		t.Parallel()
		users, err := svc.Users(ctx, "grace")
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "Grace Hopper", users[0].Name)
	})

	t.Run("substring match across several users", func(t *testing.T) {
		t.Parallel()
		users, err := svc.Users(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, users, 3)
	})

	t.Run("empty query matches nothing", func(t *testing.T) {
		t.Parallel()
		users, err := svc.Users(ctx, "   ")
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestService_History(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	svc := NewService(stub)
	ctx := context.Background()

	t.Run("empty by default", func(t *testing.T) {
		queries, err := svc.History(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, queries)
	})

	t.Run("most recent first with dedupe", func(t *testing.T) {
		require.NoError(t, svc.AddQuery(ctx, "u1", "go"))
		require.NoError(t, svc.AddQuery(ctx, "u1", "redis"))
		require.NoError(t, svc.AddQuery(ctx, "u1", "GO"))

		queries, err := svc.History(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"GO", "redis"}, queries)
	})

	t.Run("capped at the limit", func(t *testing.T) {
		for _, q := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"} {
			require.NoError(t, svc.AddQuery(ctx, "u1", q))
		}
		queries, err := svc.History(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, queries, historyLimit)
		assert.Equal(t, "k", queries[0])
	})

	t.Run("remove single query", func(t *testing.T) {
		require.NoError(t, svc.RemoveQuery(ctx, "u1", "k"))
		queries, err := svc.History(ctx, "u1")
		require.NoError(t, err)
		assert.NotContains(t, queries, "k")
	})

	t.Run("removing an absent query is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.RemoveQuery(ctx, "u1", "never-searched"))
	})

	t.Run("clear drops everything", func(t *testing.T) {
		require.NoError(t, svc.ClearHistory(ctx, "u1"))
		queries, err := svc.History(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, queries)
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, svc.AddQuery(ctx, "", "go"))
		assert.Error(t, svc.AddQuery(ctx, "u1", "  "))
	})
}
