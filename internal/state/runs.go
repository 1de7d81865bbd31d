package state

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StageRun records one pipeline stage execution and its outcome.
type StageRun struct {
	ID         string
	SessionID  string
	Domain     string
	Stage      string
	Status     string
	Reason     string
	Detail     string
	Created    int
	Updated    int
	StartedAt  time.Time
	FinishedAt time.Time
}

func (db *DB) RecordStageRun(ctx context.Context, run StageRun) (StageRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO stage_runs (id, session_id, domain, stage, status, reason, detail, created, updated, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, run.Domain, run.Stage, run.Status, run.Reason, run.Detail,
		run.Created, run.Updated, run.StartedAt, run.FinishedAt)
	return run, err
}

func (db *DB) StageRuns(ctx context.Context, sessionID string) ([]StageRun, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, domain, stage, status, reason, detail, created, updated, started_at, finished_at
		FROM stage_runs
		WHERE session_id = ?
		ORDER BY started_at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		var r StageRun
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Domain, &r.Stage, &r.Status, &r.Reason, &r.Detail,
			&r.Created, &r.Updated, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type Stats struct {
	Sessions     int
	Messages     int
	StageRuns    int
	RunsByStatus map[string]int
	RunsByDomain map[string]int
}

func (db *DB) Stats(ctx context.Context) (Stats, error) {
	st := Stats{RunsByStatus: map[string]int{}, RunsByDomain: map[string]int{}}
	for _, q := range []struct {
		sql string
		dst *int
	}{
		{"SELECT COUNT(*) FROM sessions", &st.Sessions},
		{"SELECT COUNT(*) FROM messages", &st.Messages},
		{"SELECT COUNT(*) FROM stage_runs", &st.StageRuns},
	} {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return st, err
		}
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT domain, status, COUNT(*) FROM stage_runs GROUP BY domain, status")
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var domain, status string
		var n int
		if err := rows.Scan(&domain, &status, &n); err != nil {
			return st, err
		}
		st.RunsByStatus[status] += n
		st.RunsByDomain[domain] += n
	}
	return st, rows.Err()
}
