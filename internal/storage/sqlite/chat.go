package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketdesk/internal/domain"
)

const chatTimestampLayout = "2006-01-02 15:04:05"

func SaveChatMessage(ctx context.Context, db *sql.DB, msg domain.ChatMessage) (int64, error) {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO chat_logs (username, module, sender, message, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.Username, msg.Module, msg.Sender, msg.Message, ts.Format(chatTimestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	return res.LastInsertId()
}

// GetChatHistory returns the latest limit messages of one conversation,
// oldest first.
func GetChatHistory(ctx context.Context, db *sql.DB, username, module string, limit int) ([]domain.ChatMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, username, module, sender, message, timestamp FROM (
		   SELECT id, username, module, sender, message, timestamp
		   FROM chat_logs
		   WHERE username = ? AND module = ?
		   ORDER BY id DESC
		   LIMIT ?
		 ) ORDER BY id ASC`,
		username, module, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var ts sql.NullString
		if err := rows.Scan(&m.ID, &m.Username, &m.Module, &m.Sender, &m.Message, &ts); err != nil {
			return nil, err
		}
		if parsed, err := time.ParseInLocation(chatTimestampLayout, ts.String, time.Local); err == nil {
			m.Timestamp = parsed
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func DeleteChatHistory(ctx context.Context, db *sql.DB, username, module string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM chat_logs WHERE username = ? AND module = ?`,
		username, module,
	)
	if err != nil {
		return 0, fmt.Errorf("delete chat history: %w", err)
	}
	return res.RowsAffected()
}
