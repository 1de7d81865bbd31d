package state

import (
	"context"
	"strings"
	"time"

	"github.com/yubzen/globetrip/internal/providers"
)

type Message struct {
	ID        int64
	SessionID string
	Role      string
	AgentID   string
	Content   string
	CreatedAt time.Time
}

func (db *DB) SaveMessage(ctx context.Context, sessionID, role, agentID, content string) error {
	_, err := db.conn.ExecContext(ctx, "INSERT INTO messages (session_id, role, agent_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, role, agentID, content, time.Now().UTC())
	return err
}

// GetMessages returns a session's messages in insertion order. An empty
// agentID returns every agent's messages.
func (db *DB) GetMessages(ctx context.Context, sessionID, agentID string) ([]Message, error) {
	query := "SELECT id, session_id, role, agent_id, content, created_at FROM messages WHERE session_id = ?"
	args := []any{sessionID}
	if agentID = strings.TrimSpace(agentID); agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}
	rows, err := db.conn.QueryContext(ctx, query+" ORDER BY id ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.AgentID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AgentMessages and AppendAgentMessage let the DB serve as an agent transcript.
func (db *DB) AgentMessages(ctx context.Context, sessionID, agentID string) ([]providers.Message, error) {
	msgs, err := db.GetMessages(ctx, sessionID, agentID)
	if err != nil {
		return nil, err
	}
	out := make([]providers.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, providers.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

func (db *DB) AppendAgentMessage(ctx context.Context, sessionID, agentID, role, content string) error {
	return db.SaveMessage(ctx, sessionID, role, agentID, content)
}
