package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"ticketdesk/internal/domain"
	"ticketdesk/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "auth.db"), false)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := NewService(db)
	s.cost = bcrypt.MinCost
	return s, db
}

func TestRegisterThenLogin(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	ok, err := s.Register(ctx, "alice", "s3cret")
	if err != nil || !ok {
		t.Fatalf("Register = %v, %v; want true, nil", ok, err)
	}

	stored, err := sqlite.GetUser(ctx, db, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if stored.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if stored.Role != domain.RoleUser {
		t.Fatalf("expected role %q, got %q", domain.RoleUser, stored.Role)
	}

	u, err := s.Login(ctx, "alice", "s3cret")
	if err != nil || u == nil {
		t.Fatalf("Login = %v, %v; want user", u, err)
	}
	if u.Username != "alice" || u.IsAdmin() {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestLoginRejections(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "alice", "guess"},
		{"unknown user", "bob", "s3cret"},
		{"empty username", "", "s3cret"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := s.Login(ctx, tt.username, tt.password)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u != nil {
				t.Fatalf("expected nil user, got %+v", u)
			}
		})
	}
}

func TestRegisterDuplicateAndEmpty(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if ok, _ := s.Register(ctx, "alice", "one"); !ok {
		t.Fatal("first register should succeed")
	}
	if ok, err := s.Register(ctx, "alice", "two"); err != nil || ok {
		t.Fatalf("duplicate Register = %v, %v; want false, nil", ok, err)
	}
	if ok, err := s.Register(ctx, "  ", "pw"); err != nil || ok {
		t.Fatalf("empty Register = %v, %v; want false, nil", ok, err)
	}
	if u, _ := s.Login(ctx, "alice", "one"); u == nil {
		t.Fatal("duplicate register must not overwrite the original password")
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	created, err := s.EnsureAdmin(ctx, "admin", "first")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin = %v, %v; want true, nil", created, err)
	}
	created, err = s.EnsureAdmin(ctx, "admin", "second")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v; want false, nil", created, err)
	}
	u, err := s.Login(ctx, "admin", "first")
	if err != nil || u == nil || !u.IsAdmin() {
		t.Fatalf("admin login = %+v, %v", u, err)
	}
	if u, _ := s.Login(ctx, "admin", "second"); u != nil {
		t.Fatal("second EnsureAdmin must not replace the password")
	}
	if created, _ := s.EnsureAdmin(ctx, "root", ""); created {
		t.Fatal("EnsureAdmin without password must not create an account")
	}
	if _, err := sqlite.GetUser(ctx, db, "root"); !errors.Is(err, sqlite.ErrUserNotFound) {
		t.Fatalf("GetUser root err = %v, want ErrUserNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, "alice", "old"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if ok, _ := s.ChangePassword(ctx, "alice", "wrong", "new"); ok {
		t.Fatal("change with wrong current password must fail")
	}
	if ok, err := s.ChangePassword(ctx, "alice", "old", "new"); err != nil || !ok {
		t.Fatalf("ChangePassword = %v, %v; want true, nil", ok, err)
	}
	if u, _ := s.Login(ctx, "alice", "old"); u != nil {
		t.Fatal("old password still accepted")
	}
	if u, _ := s.Login(ctx, "alice", "new"); u == nil {
		t.Fatal("new password rejected")
	}
}
