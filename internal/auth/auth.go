// Package auth implements account registration and login over the document
// store, issuing JWT session tokens.
package auth

import (
	"context"
	"encoding/json"
	"strings"

	"snappit/internal/identity"
	"snappit/internal/models"
	"snappit/internal/store"
	"snappit/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service registers and authenticates users.
type Service struct {
	st     store.Store
	tokens *identity.Tokens
}

// NewService creates an auth service.
func NewService(st store.Store, tokens *identity.Tokens) *Service {
	return &Service{st: st, tokens: tokens}
}

// RegisterInput carries the signup fields.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Session is the result of a successful register or login.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Register creates a new account. Username and email must be unique; the
// password is stored as a bcrypt hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return Session{}, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return Session{}, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return Session{}, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return Session{}, models.NewValidationError(err.Error())
	}

	taken, err := s.exists(ctx, in.Email, in.Username)
	if err != nil {
		return Session{}, err
	}
	if taken {
		return Session{}, models.NewValidationError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, models.NewInternalError(err)
	}

	name := in.Name
	if name == "" {
		name = in.Username
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(in.Email),
		Name:         name,
		Username:     in.Username,
		PasswordHash: string(hashed),
	}
	if err := s.st.Put(ctx, store.UserPath(user.ID), user); err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, models.NewInternalError(err)
	}
	return Session{Token: token, User: user.Public()}, nil
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, models.NewValidationError("Email and password are required")
	}

	user, found, err := s.byEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, models.NewUnauthorizedError("Invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, models.NewInternalError(err)
	}
	return Session{Token: token, User: user.Public()}, nil
}

func (s *Service) byEmail(ctx context.Context, email string) (models.User, bool, error) {
	want := strings.ToLower(email)
	var match models.User
	found := false
	err := s.st.List(ctx, store.UsersPrefix, func(path string, raw []byte) error {
		if found {
			return nil
		}
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil
		}
		if strings.EqualFold(u.Email, want) {
			match, found = u, true
		}
		return nil
	})
	return match, found, err
}

func (s *Service) exists(ctx context.Context, email, username string) (bool, error) {
	taken := false
	err := s.st.List(ctx, store.UsersPrefix, func(path string, raw []byte) error {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil
		}
		if strings.EqualFold(u.Email, email) || strings.EqualFold(u.Username, username) {
			taken = true
		}
		return nil
	})
	return taken, err
}
