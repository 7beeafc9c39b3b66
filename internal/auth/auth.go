// Package auth checks and registers credentials against the users table.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"ticketdesk/internal/domain"
	"ticketdesk/internal/storage/sqlite"
)

var errInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	db   *sql.DB
	cost int
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, cost: bcrypt.DefaultCost}
}

// Login returns the user when the password matches its stored hash, or nil
// for empty input, an unknown user or a wrong password.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, nil
	}
	u, err := sqlite.GetUser(ctx, s.db, username)
	if errors.Is(err, sqlite.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}
	if err := checkPassword(u.PasswordHash, password); err != nil {
		slog.Debug("login rejected", "username", username)
		return nil, nil
	}
	return &u, nil
}

// Register stores a new account with the user role. It reports false for
// empty input or an existing username.
func (s *Service) Register(ctx context.Context, username, password string) (bool, error) {
	return s.insert(ctx, strings.TrimSpace(username), password, domain.RoleUser)
}

// EnsureAdmin seeds the admin account when it does not exist yet. An existing
// account is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	created, err := s.insert(ctx, username, password, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	if created {
		slog.Info("admin account created", "username", username)
	}
	return created, nil
}

// ChangePassword replaces the hash of an existing user after verifying the
// current password.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) (bool, error) {
	if next == "" {
		return false, nil
	}
	u, err := s.Login(ctx, username, current)
	if err != nil || u == nil {
		return false, err
	}
	hash, err := s.hash(next)
	if err != nil {
		return false, err
	}
	return sqlite.UpdateUserPassword(ctx, s.db, u.Username, hash)
}

func (s *Service) insert(ctx context.Context, username, password, role string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	hash, err := s.hash(password)
	if err != nil {
		return false, err
	}
	ok, err := sqlite.InsertUser(ctx, s.db, domain.User{Username: username, PasswordHash: hash, Role: role})
	if err != nil {
		return false, fmt.Errorf("register %s: %w", username, err)
	}
	return ok, nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func checkPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errInvalidCredentials
	}
	return nil
}
