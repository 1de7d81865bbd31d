package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var ErrSessionNotFound = errors.New("session not found")

type DB struct {
	conn *sql.DB
}

// Connect opens (creating if needed) the sqlite database at dbPath and
// applies the schema. ":memory:" gives a private in-memory database.
func Connect(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME,
		updated_at DATETIME,
		status TEXT,
		destination TEXT,
		planner TEXT
	);
	CREATE TABLE IF NOT EXISTS domain_slots (
		session_id TEXT,
		domain TEXT,
		payload TEXT,
		phase TEXT,
		updated_at DATETIME,
		PRIMARY KEY (session_id, domain)
	);
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		role TEXT,
		agent_id TEXT,
		content TEXT,
		created_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS stage_runs (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		domain TEXT,
		stage TEXT,
		status TEXT,
		reason TEXT,
		detail TEXT,
		created INTEGER,
		updated INTEGER,
		started_at DATETIME,
		finished_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS session_input_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		content TEXT,
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, agent_id);
	CREATE INDEX IF NOT EXISTS idx_stage_runs_session ON stage_runs(session_id);`
	_, err := db.Exec(schema)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}
