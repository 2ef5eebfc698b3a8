package seed

import (
	"context"
	"fmt"
	"os"

	"snappit/internal/models"

	"gopkg.in/yaml.v3"
)

// Preset describes a deterministic seed plan loaded from YAML.
type Preset struct {
	Users             int     `yaml:"users"`
	ThreadsPerUser    int     `yaml:"threads_per_user"`
	CommentsPerThread int     `yaml:"comments_per_thread"`
	ReplyChance       float64 `yaml:"reply_chance"`
	FollowDensity     float64 `yaml:"follow_density"`
	MaxDays           int     `yaml:"max_days"`
	Password          string  `yaml:"password"`
}

// DefaultPreset is used when no preset file is supplied.
var DefaultPreset = Preset{
	Users:             12,
	ThreadsPerUser:    4,
	CommentsPerThread: 3,
	ReplyChance:       0.3,
	FollowDensity:     0.25,
	MaxDays:           90,
}

// LoadPreset reads a YAML preset file.
func LoadPreset(path string) (Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}
	preset := DefaultPreset
	if err := yaml.Unmarshal(raw, &preset); err != nil {
		return Preset{}, fmt.Errorf("parse preset: %w", err)
	}
	if err := preset.Validate(); err != nil {
		return Preset{}, err
	}
	return preset, nil
}

// Validate rejects presets that would generate nothing or blow up.
func (p Preset) Validate() error {
	if p.Users <= 0 || p.Users > 10000 {
		return fmt.Errorf("users must be between 1 and 10000, got %d", p.Users)
	}
	if p.ThreadsPerUser < 0 || p.CommentsPerThread < 0 {
		return fmt.Errorf("per-user counts cannot be negative")
	}
	if p.ReplyChance < 0 || p.ReplyChance > 1 {
		return fmt.Errorf("reply_chance must be within [0,1], got %v", p.ReplyChance)
	}
	if p.FollowDensity < 0 || p.FollowDensity > 1 {
		return fmt.Errorf("follow_density must be within [0,1], got %v", p.FollowDensity)
	}
	return nil
}

// Run populates the store according to the preset and returns the users it
// created.
func Run(ctx context.Context, f *Factory, preset Preset) ([]models.User, error) {
	if err := preset.Validate(); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, preset.Users)
	for i := 0; i < preset.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, u)
	}

	for _, u := range users {
		for i := 0; i < preset.ThreadsPerUser; i++ {
			thread, err := f.CreateThread(ctx, u)
			if err != nil {
				return nil, fmt.Errorf("seed thread: %w", err)
			}

			var lastComment *models.Comment
			for j := 0; j < preset.CommentsPerThread; j++ {
				commenter := users[f.rand.Intn(len(users))]
				if lastComment != nil && f.rand.Float64() < preset.ReplyChance {
					parentID := lastComment.ID
					if _, err := f.CreateComment(ctx, thread, commenter, func(c *models.Comment) {
						c.ParentID = &parentID
					}); err != nil {
						return nil, fmt.Errorf("seed reply: %w", err)
					}
					continue
				}
				c, err := f.CreateComment(ctx, thread, commenter)
				if err != nil {
					return nil, fmt.Errorf("seed comment: %w", err)
				}
				lastComment = &c
			}
		}
	}

	for _, follower := range users {
		for _, target := range users {
			if follower.ID == target.ID {
				continue
			}
			if f.rand.Float64() < preset.FollowDensity {
				if err := f.CreateFollow(ctx, target, follower); err != nil {
					return nil, fmt.Errorf("seed follow: %w", err)
				}
			}
		}
	}

	return users, nil
}
