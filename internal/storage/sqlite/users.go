package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketdesk/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

func GetUser(ctx context.Context, db *sql.DB, username string) (domain.User, error) {
	var u domain.User
	err := db.QueryRowContext(ctx,
		`SELECT username, password_hash, role FROM users WHERE username = ?`,
		username,
	).Scan(&u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// InsertUser adds u unless the username is taken. It reports whether a row
// was written.
func InsertUser(ctx context.Context, db *sql.DB, u domain.User) (bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, u.Role,
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func UpdateUserPassword(ctx context.Context, db *sql.DB, username, passwordHash string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE username = ?`,
		passwordHash, username,
	)
	if err != nil {
		return false, fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
