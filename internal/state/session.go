package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yubzen/globetrip/internal/trip"
)

// SessionInfo is the listing view of a stored session.
type SessionInfo struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Status      string
	Destination string
}

func (db *DB) CreateSession(ctx context.Context) (*trip.Session, error) {
	s := trip.NewSession(uuid.NewString())
	now := time.Now().UTC()
	if _, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at, updated_at, status, destination, planner) VALUES (?, ?, ?, '', '', '')",
		s.ID, now, now); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := db.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveSession writes the planner and every domain slot in one transaction.
// Slots that were reset are removed.
func (db *DB) SaveSession(ctx context.Context, s *trip.Session) error {
	planner, err := s.Planner()
	if err != nil {
		return err
	}
	plannerJSON, err := json.Marshal(planner)
	if err != nil {
		return fmt.Errorf("encode planner: %w", err)
	}
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ?, status = ?, destination = ?, planner = ? WHERE id = ?",
		now, string(planner.Status), planner.TripDetails.Destination, string(plannerJSON), s.ID)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}

	for _, d := range trip.Domains {
		slot := s.Slot(d)
		phase := s.Phase(d)
		if slot == nil && phase == trip.PhaseNotStarted {
			if _, err := tx.ExecContext(ctx, "DELETE FROM domain_slots WHERE session_id = ? AND domain = ?", s.ID, string(d)); err != nil {
				return fmt.Errorf("clear %s slot: %w", d, err)
			}
			continue
		}
		var payload sql.NullString
		if slot != nil {
			payload = sql.NullString{String: string(slot), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO domain_slots (session_id, domain, payload, phase, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id, domain) DO UPDATE SET
				payload = excluded.payload,
				phase = excluded.phase,
				updated_at = excluded.updated_at
		`, s.ID, string(d), payload, string(phase), now); err != nil {
			return fmt.Errorf("save %s slot: %w", d, err)
		}
	}
	return tx.Commit()
}

// LoadSession rebuilds a session from its stored wire shape.
func (db *DB) LoadSession(ctx context.Context, id string) (*trip.Session, error) {
	var planner string
	err := db.conn.QueryRowContext(ctx, "SELECT planner FROM sessions WHERE id = ?", id).Scan(&planner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	wire := map[string]json.RawMessage{}
	if planner != "" {
		if err := json.Unmarshal([]byte(planner), &wire); err != nil {
			return nil, fmt.Errorf("decode planner for %s: %w", id, err)
		}
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT domain, payload, phase FROM domain_slots WHERE session_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("load slots for %s: %w", id, err)
	}
	defer rows.Close()

	phases := map[string]string{}
	for rows.Next() {
		var domain, phase string
		var payload sql.NullString
		if err := rows.Scan(&domain, &payload, &phase); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			wire[domain] = json.RawMessage(payload.String)
		}
		if phase != "" && phase != string(trip.PhaseNotStarted) {
			phases[domain] = phase
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(phases) > 0 {
		raw, err := json.Marshal(phases)
		if err != nil {
			return nil, err
		}
		wire["phases"] = raw
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return trip.Restore(id, data)
}

func (db *DB) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, created_at, updated_at, status, destination FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.UpdatedAt, &info.Status, &info.Destination); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// ResolveSessionID accepts a full id or a unique prefix of one.
func (db *DB) ResolveSessionID(ctx context.Context, prefix string) (string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id FROM sessions WHERE id LIKE ? || '%' LIMIT 2", prefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("session prefix %q is ambiguous", prefix)
	}
}
