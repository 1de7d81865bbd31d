package state

import (
	"context"
	"strings"
	"time"

	"github.com/yubzen/globetrip/internal/redact"
)

// InputHistoryLimit caps the raw chat lines kept per session.
const InputHistoryLimit = 200

// AppendInput stores one line the traveler typed in the chat loop, scrubbed
// of secrets, and trims the session's history to InputHistoryLimit lines.
func (db *DB) AppendInput(ctx context.Context, sessionID, line string) error {
	sessionID = strings.TrimSpace(sessionID)
	line = strings.TrimSpace(redact.Clean(line))
	if sessionID == "" || line == "" {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO session_input_history (session_id, content, created_at)
		VALUES (?, ?, ?)
	`, sessionID, line, time.Now().UTC()); err != nil {
		return err
	}

	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM session_input_history
		WHERE session_id = ?
		  AND id NOT IN (
			SELECT id
			FROM session_input_history
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		  )
	`, sessionID, sessionID, InputHistoryLimit)
	return err
}

func (db *DB) Inputs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT content
		FROM session_input_history
		WHERE session_id = ?
		ORDER BY id ASC
	`, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}
