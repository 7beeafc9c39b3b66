package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"ticketdesk/internal/domain"
)

// Transactions start with BEGIN IMMEDIATE so that allocate-then-insert in
// DomainStore.Create holds the write lock from the identifier lookup on.
const dsnParams = "_txlock=immediate&_busy_timeout=5000"

// InitDB opens the database at path and creates every table that is
// missing. With reset set, the domain tables are dropped first; users and
// chat logs are kept.
func InitDB(path string, reset bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if reset {
		for _, d := range domain.Domains {
			if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Table())); err != nil {
				db.Close()
				return nil, fmt.Errorf("drop %s: %w", d.Table(), err)
			}
		}
	}

	if _, err := db.Exec(schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + dsnParams
	}
	return path + "?" + dsnParams
}

func schema() string {
	var b strings.Builder
	for _, d := range domain.Domains {
		fmt.Fprintf(&b, `
	CREATE TABLE IF NOT EXISTS %s (
		ticket_id   TEXT PRIMARY KEY,
		date        TEXT,
		issue_type  TEXT,
		description TEXT,
		priority    TEXT,
		status      TEXT
	);`, d.Table())
	}
	b.WriteString(`
	CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user'
	);

	CREATE TABLE IF NOT EXISTS chat_logs (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		username  TEXT,
		module    TEXT,
		sender    TEXT,
		message   TEXT,
		timestamp TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chat_logs_user_module ON chat_logs(username, module);
	`)
	return b.String()
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
