package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const currentVersion = 2

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn holds the queries shared by Store and Tx.
type conn struct {
	q   querier
	now func() time.Time
}

type Store struct {
	conn
	db *sql.DB
}

// Tx is a unit of work. Read-modify-write helpers on Tx run without opening a
// nested transaction.
type Tx struct {
	conn
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serialises every read-modify-write cycle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{
		conn: conn{q: db, now: utcNow},
		db:   db,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// InTx runs fn inside a transaction, committing when fn returns nil.
// fn must only use the Tx it is handed: the store has a single connection.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{conn: conn{q: sqlTx, now: s.now}}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// migrateV2 stores paused time in milliseconds. Existing rows keep their
// whole-minute totals.
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`
	ALTER TABLE time_entries ADD COLUMN paused_ms INTEGER NOT NULL DEFAULT 0;
	UPDATE time_entries SET paused_ms = paused_duration * 60000;
	`)
	if err != nil {
		return fmt.Errorf("migrate v2: %w", err)
	}
	return nil
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		parent_id       TEXT REFERENCES tasks(id) ON DELETE CASCADE,
		category        TEXT NOT NULL DEFAULT 'general',
		priority        TEXT NOT NULL DEFAULT 'medium',
		status          TEXT NOT NULL DEFAULT 'todo',
		estimated_time  INTEGER,
		actual_time     INTEGER NOT NULL DEFAULT 0,
		deadline        TEXT,
		tags            TEXT NOT NULL DEFAULT '[]',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		completed_at    TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);

	CREATE TABLE IF NOT EXISTS time_entries (
		id               TEXT PRIMARY KEY,
		task_id          TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		start_time       TEXT NOT NULL,
		end_time         TEXT,
		duration         INTEGER NOT NULL DEFAULT 0,
		description      TEXT NOT NULL DEFAULT '',
		date             TEXT NOT NULL,
		is_paused        INTEGER NOT NULL DEFAULT 0,
		paused_at        TEXT,
		paused_duration  INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_task  ON time_entries(task_id);
	CREATE INDEX IF NOT EXISTS idx_entries_start ON time_entries(start_time);
	CREATE INDEX IF NOT EXISTS idx_entries_open  ON time_entries(task_id, start_time) WHERE end_time IS NULL;

	CREATE TABLE IF NOT EXISTS daily_logs (
		id               TEXT PRIMARY KEY,
		date             TEXT NOT NULL UNIQUE,
		total_time       INTEGER NOT NULL DEFAULT 0,
		tasks_completed  TEXT NOT NULL DEFAULT '[]',
		tasks_worked_on  TEXT NOT NULL DEFAULT '[]',
		notes            TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		color        TEXT NOT NULL DEFAULT '#3b82f6',
		description  TEXT NOT NULL DEFAULT '',
		is_default   INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		updated_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	INSERT OR IGNORE INTO categories (id, name, color, description, is_default) VALUES
		('literature',  'Literature Review', '#8b5cf6', 'Reading papers, books, and research materials', 1),
		('writing',     'Writing',           '#06b6d4', 'Writing chapters, sections, and documentation', 1),
		('research',    'Research',          '#10b981', 'Active research, experiments, and data collection', 1),
		('analysis',    'Analysis',          '#f59e0b', 'Data analysis, processing, and interpretation', 1),
		('methodology', 'Methodology',       '#ef4444', 'Research design, planning, and methodology work', 1),
		('general',     'General',           '#6b7280', 'General tasks and miscellaneous work', 1);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('idle_timeout',     '300'),
		('idle_action',      'pause'),
		('daily_goal',       '480'),
		('week_start',       'monday'),
		('default_category', 'general');
	`
	_, err := s.db.Exec(ddl)
	return err
}

// DefaultDataDir returns ~/.config/worklog
func DefaultDataDir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "worklog"), nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
