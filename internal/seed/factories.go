// Package seed provides helpers to create test and demo data in the
// document store. These helpers are intended for development and testing
// only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"snappit/internal/models"
	"snappit/internal/store"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Factory builds domain entities and persists them to the store.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	st   store.Store
	opts Options
	rand *rand.Rand
}

// Options tunes generated data.
type Options struct {
	// MaxDays spreads generated timestamps over this many days back.
	MaxDays int
	// Password is assigned to every generated user. Defaults to a fixed
	// development password when empty.
	Password string
}

// NewFactory creates a new Factory bound to the provided store.
func NewFactory(st store.Store, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.Password == "" {
		opts.Password = "Sn@ppit-dev-password1"
	}
	return &Factory{
		st:   st,
		opts: opts,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser persists a generated user, applying any overrides first.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(f.opts.Password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        gofakeit.Email(),
		Name:         gofakeit.Name(),
		Username:     gofakeit.Username(),
		Bio:          gofakeit.Sentence(8),
		AvatarURL:    fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
		PasswordHash: string(hashed),
	}
	for _, override := range overrides {
		override(&user)
	}
	if err := f.st.Put(ctx, store.UserPath(user.ID), user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// CreateThread persists a generated thread for the user.
func (f *Factory) CreateThread(ctx context.Context, user models.User, overrides ...func(*models.Thread)) (models.Thread, error) {
	thread := models.Thread{
		ID:        uuid.NewString(),
		Body:      gofakeit.Paragraph(1, 3, 5, "\n"),
		UserID:    user.ID,
		Timestamp: f.pastTimestamp(),
		LikedBy:   []string{},
	}
	if f.rand.Intn(2) == 0 {
		thread.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
	}
	for _, override := range overrides {
		override(&thread)
	}
	if err := f.st.Put(ctx, store.ThreadPath(thread.ID), thread); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// CreateComment persists a generated comment on the thread and bumps its
// comment counter the same way the live path does.
func (f *Factory) CreateComment(ctx context.Context, thread models.Thread, user models.User, overrides ...func(*models.Comment)) (models.Comment, error) {
	comment := models.Comment{
		ID:        uuid.NewString(),
		ThreadID:  thread.ID,
		UserID:    user.ID,
		Body:      gofakeit.Sentence(10),
		Timestamp: f.pastTimestamp(),
		LikedBy:   []string{},
	}
	for _, override := range overrides {
		override(&comment)
	}
	if err := f.st.Put(ctx, store.CommentPath(comment.ID), comment); err != nil {
		return models.Comment{}, err
	}

	if comment.ParentID == nil {
		var fresh models.Thread
		if err := f.st.Get(ctx, store.ThreadPath(thread.ID), &fresh); err == nil {
			fresh.Comments++
			_ = f.st.Put(ctx, store.ThreadPath(thread.ID), fresh)
		}
	}
	return comment, nil
}

// CreateFollow persists both follow edges atomically.
func (f *Factory) CreateFollow(ctx context.Context, target, follower models.User) error {
	return f.st.Batch(ctx,
		store.AddMember(store.FollowersPath(target.ID), follower.ID),
		store.AddMember(store.FollowingPath(follower.ID), target.ID),
	)
}

// pastTimestamp returns an epoch-millisecond timestamp spread over the
// configured window.
func (f *Factory) pastTimestamp() string {
	daysBack := f.rand.Intn(f.opts.MaxDays)
	hoursBack := f.rand.Intn(24)
	minsBack := f.rand.Intn(60)
	at := time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
	return strconv.FormatInt(at.UnixMilli(), 10)
}
