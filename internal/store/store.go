// Package store provides the durable local relational store for teasync.
//
// The store is the authoritative copy of every entity: user-facing writes
// commit here synchronously before any remote propagation is attempted, and
// reads are always served from here. It runs on embedded SQLite with WAL mode
// so the foreground application and the headless background run can share the
// database file.
//
// Each entity table carries a sync_status column ('pending' or 'synced') that
// drives retry sweeps. The schema also includes a generic sync_queue outbox
// table; the per-entity sync_status flag is the load-bearing retry mechanism
// and the outbox is kept for operational inspection only.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// WriteError wraps a failed local write. A local write failure is fatal for
// the operation that triggered it: the caller must surface it and must not
// attempt the corresponding remote write.
type WriteError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("local write failed (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Statement is one parameterized SQL statement for ExecuteTransaction.
type Statement struct {
	SQL  string
	Args []interface{}
}

// Store wraps the SQLite connection with teasync-specific functionality.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The parent directory is created if missing. The caller MUST call Close()
// when done.
//
// Example:
//
//	st, err := store.Open(filepath.Join(dataDir, "teasync.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{
		conn: conn,
		path: path,
	}

	// WAL keeps readers unblocked while the background run writes
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// This creates every entity table plus the generic sync_queue outbox, along
// with the indexes that keep retry sweeps and recent-activity queries off
// full table scans. Idempotent - safe to call on every process start.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fields (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slope REAL NOT NULL DEFAULT 0,
		max_workers INTEGER NOT NULL DEFAULT 0,
		location TEXT,
		plantation_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		worker_id TEXT,
		birth_date TEXT,
		age INTEGER NOT NULL DEFAULT 0,
		experience INTEGER NOT NULL DEFAULT 0,
		gender TEXT,
		plantation_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS saved_schedules (
		id TEXT PRIMARY KEY,
		plantation_id TEXT NOT NULL,
		date TEXT NOT NULL,
		total_workers INTEGER NOT NULL DEFAULT 0,
		total_fields INTEGER NOT NULL DEFAULT 0,
		average_efficiency REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS schedule_assignments (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		worker_name TEXT,
		field_id TEXT,
		field_name TEXT,
		predicted_efficiency REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'assigned',
		FOREIGN KEY (schedule_id) REFERENCES saved_schedules(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		operation_type TEXT NOT NULL,
		zone_id TEXT,
		status TEXT,
		duration INTEGER NOT NULL DEFAULT 0,
		pressure REAL NOT NULL DEFAULT 0,
		flow_rate REAL NOT NULL DEFAULT 0,
		water_volume REAL NOT NULL DEFAULT 0,
		fertilizer_volume REAL NOT NULL DEFAULT 0,
		start_moisture REAL NOT NULL DEFAULT 0,
		end_moisture REAL NOT NULL DEFAULT 0,
		notes TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Generic outbox. Not load-bearing for retries; per-entity sync_status is.
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		data TEXT,
		created_at TEXT NOT NULL,
		synced_at TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT
	);

	-- Supports "most recent N" queries without a scan
	CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp
	    ON activity_logs(timestamp DESC);

	-- Supports retry sweeps without a scan
	CREATE INDEX IF NOT EXISTS idx_activity_logs_sync_status
	    ON activity_logs(sync_status);

	CREATE INDEX IF NOT EXISTS idx_fields_plantation ON fields(plantation_id);
	CREATE INDEX IF NOT EXISTS idx_fields_sync_status ON fields(sync_status);
	CREATE INDEX IF NOT EXISTS idx_workers_plantation ON workers(plantation_id);
	CREATE INDEX IF NOT EXISTS idx_workers_sync_status ON workers(sync_status);
	CREATE INDEX IF NOT EXISTS idx_schedules_plantation ON saved_schedules(plantation_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_sync_status ON saved_schedules(sync_status);
	CREATE INDEX IF NOT EXISTS idx_assignments_schedule ON schedule_assignments(schedule_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Execute runs a single parameterized statement.
//
// Any failure is returned as a *WriteError: the caller must treat it as fatal
// for the triggering operation and must not attempt the remote equivalent.
func (s *Store) Execute(ctx context.Context, stmt string, args ...interface{}) (sql.Result, error) {
	res, err := s.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, &WriteError{Op: "execute", Err: err}
	}
	return res, nil
}

// ExecuteTransaction runs the given statements as a single all-or-nothing
// unit. It is used to keep a schedule and its assignments consistent.
func (s *Store) ExecuteTransaction(ctx context.Context, stmts []Statement) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			return &WriteError{Op: "transaction statement", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Op: "commit transaction", Err: err}
	}

	return nil
}

// markSynced flips a single record's sync_status to 'synced'.
// The pending -> synced transition is the only automatic one; synced -> pending
// happens solely through a subsequent local mutation.
func (s *Store) markSynced(ctx context.Context, table, id string) error {
	query := fmt.Sprintf("UPDATE %s SET sync_status = 'synced' WHERE id = ?", table)
	if _, err := s.conn.ExecContext(ctx, query, id); err != nil {
		return &WriteError{Op: "mark synced", Err: err}
	}
	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// parseTime parses an RFC 3339 timestamp column, returning the zero time for
// values written by other tools in an unexpected format.
func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
