// Package social manages the follow graph: denormalized follower and
// following edge sets kept consistent with atomic two-sided batch writes.
package social

import (
	"context"
	"sort"

	"snappit/internal/models"
	"snappit/internal/observability"
	"snappit/internal/store"
)

// Graph exposes follow, unfollow and edge enumeration over the store.
type Graph struct {
	st  store.Store
	log *observability.ViewLogger
}

// NewGraph creates a follow graph over the given store.
func NewGraph(st store.Store) *Graph {
	return &Graph{st: st, log: observability.NewViewLogger("social")}
}

// Follow adds followerID to targetID's followers and targetID to
// followerID's following in a single atomic batch. Either both edges land
// or neither does. Following yourself is rejected.
func (g *Graph) Follow(ctx context.Context, targetID, followerID string) error {
	if err := validateEdge(targetID, followerID); err != nil {
		return err
	}
	err := g.st.Batch(ctx,
		store.AddMember(store.FollowersPath(targetID), followerID),
		store.AddMember(store.FollowingPath(followerID), targetID),
	)
	if err != nil {
		g.log.LogError(ctx, "follow", err)
		return err
	}
	return nil
}

// Unfollow removes both edges in a single atomic batch. Removing an edge
// that does not exist is a no-op, same as the set semantics underneath.
func (g *Graph) Unfollow(ctx context.Context, targetID, followerID string) error {
	if err := validateEdge(targetID, followerID); err != nil {
		return err
	}
	err := g.st.Batch(ctx,
		store.RemoveMember(store.FollowersPath(targetID), followerID),
		store.RemoveMember(store.FollowingPath(followerID), targetID),
	)
	if err != nil {
		g.log.LogError(ctx, "unfollow", err)
		return err
	}
	return nil
}

// IsFollowing reports whether followerID currently follows targetID.
func (g *Graph) IsFollowing(ctx context.Context, targetID, followerID string) (bool, error) {
	members, err := g.st.Members(ctx, store.FollowersPath(targetID))
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == followerID {
			return true, nil
		}
	}
	return false, nil
}

// Followers resolves the users following userID, sorted by name. Edges
// pointing at deleted users are skipped.
func (g *Graph) Followers(ctx context.Context, userID string) ([]models.User, error) {
	return g.resolve(ctx, store.FollowersPath(userID))
}

// Following resolves the users userID follows, sorted by name.
func (g *Graph) Following(ctx context.Context, userID string) ([]models.User, error) {
	return g.resolve(ctx, store.FollowingPath(userID))
}

func (g *Graph) resolve(ctx context.Context, path string) ([]models.User, error) {
	ids, err := g.st.Members(ctx, path)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		var u models.User
		if err := g.st.Get(ctx, store.UserPath(id), &u); err != nil {
			if models.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		users = append(users, u.Public())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func validateEdge(targetID, followerID string) error {
	if targetID == "" || followerID == "" {
		return models.NewValidationError("Both users are required")
	}
	if targetID == followerID {
		return models.NewValidationError("You cannot follow yourself")
	}
	return nil
}
