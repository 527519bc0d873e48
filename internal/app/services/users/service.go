// Package users implements account registration, login and profile
// management.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/services"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// MinPasswordLength is enforced at registration and password change.
const MinPasswordLength = 8

// Service manages user accounts.
type Service struct {
	store    storage.UserStore
	tokens   *auth.Manager
	log      *logger.Logger
	hashCost int
}

// Option tweaks service construction.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// New constructs a user service.
func New(store storage.UserStore, tokens *auth.Manager, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	s := &Service{store: store, tokens: tokens, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new account with a hashed password.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (user.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}
	if err := validateEmail(email); err != nil {
		return user.User{}, err
	}
	if len(password) < MinPasswordLength {
		return user.User{}, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if !user.ValidRole(role) {
		return user.User{}, fmt.Errorf("role must be %q or %q", user.RoleJobSeeker, user.RoleEmployer)
	}

	hash, err := auth.HashPasswordCost(password, s.hashCost)
	if err != nil {
		return user.User{}, err
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Role:     role,
	})
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Session is the result of a successful login.
type Session struct {
	User      user.User
	Token     string
	ExpiresAt time.Time
}

// Authenticate checks credentials and returns a signed session token.
// Unknown emails and wrong passwords are indistinguishable to callers.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, auth.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !auth.CheckPassword(u.Password, password) {
		return Session{}, auth.ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u.ID, u.Name, u.Role)
	if err != nil {
		return Session{}, err
	}
	s.log.WithField("user_id", u.ID).Info("user authenticated")
	return Session{User: u, Token: token, ExpiresAt: expires}, nil
}

// Get retrieves a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns a page of users plus the total count.
func (s *Service) List(ctx context.Context, p storage.ListParams) ([]user.User, int64, error) {
	return s.store.ListUsers(ctx, p)
}

// Update carries the optional profile changes; nil fields are left
// untouched.
type Update struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// Update applies a partial profile change. Users may only update
// themselves.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, upd Update) (user.User, error) {
	if actor.UserID != id {
		return user.User{}, fmt.Errorf("update user %s: %w", id, services.ErrNotOwner)
	}

	existing, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return user.User{}, fmt.Errorf("name cannot be empty")
		}
		existing.Name = name
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return user.User{}, err
		}
		existing.Email = email
	}
	if upd.Password != nil {
		if len(*upd.Password) < MinPasswordLength {
			return user.User{}, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
		}
		hash, err := auth.HashPasswordCost(*upd.Password, s.hashCost)
		if err != nil {
			return user.User{}, err
		}
		existing.Password = hash
	}
	if upd.Role != nil {
		if !user.ValidRole(*upd.Role) {
			return user.User{}, fmt.Errorf("role must be %q or %q", user.RoleJobSeeker, user.RoleEmployer)
		}
		existing.Role = *upd.Role
	}

	updated, err := s.store.UpdateUser(ctx, existing)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("user updated")
	return updated, nil
}

// Delete removes an account. Users may only delete themselves;
// employers with live postings are rejected with a conflict.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if actor.UserID != id {
		return fmt.Errorf("delete user %s: %w", id, services.ErrNotOwner)
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("email %q is not valid", email)
	}
	return nil
}
