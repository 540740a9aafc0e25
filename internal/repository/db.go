package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("local store unavailable")
	ErrInvalidTask      = errors.New("invalid task")
)

// migrations[i] upgrades the schema from user_version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY NOT NULL,
			owner_id    TEXT NOT NULL,
			title       TEXT NOT NULL CHECK (length(title) > 0),
			description TEXT NOT NULL DEFAULT '',
			completed   INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL,
			reminder_at INTEGER,
			sync_status TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks(owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_sync ON tasks(owner_id, sync_status)`,
		`CREATE TABLE IF NOT EXISTS mutation_queue (
			id          TEXT PRIMARY KEY NOT NULL,
			owner_id    TEXT NOT NULL,
			task_id     TEXT NOT NULL,
			operation   TEXT NOT NULL,
			payload     TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT 'queued',
			last_error  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mutation_queue_timestamp ON mutation_queue(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_mutation_queue_owner ON mutation_queue(owner_id, status)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY NOT NULL,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	},
}

// DB is the on-device SQLite database shared by the task store, the
// mutation queue and the key-value store. It must be initialized before use.
type DB struct {
	mu    sync.RWMutex
	sql   *sql.DB
	ready bool
	now   func() time.Time
}

// Open opens (or creates) the database at path. Use ":memory:" only with
// care: every connection gets its own in-memory database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	return &DB{sql: db, now: time.Now}, nil
}

// Initialize applies pragmas and pending migrations. It is safe to call more than once.
func (d *DB) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sql == nil {
		return ErrStoreUnavailable
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := d.sql.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("initialize local store: %w", err)
		}
	}
	if err := migrate(ctx, d.sql); err != nil {
		return fmt.Errorf("initialize local store: %w", err)
	}
	d.ready = true
	return nil
}

// SetClock replaces the time source used for created/updated timestamps.
func (d *DB) SetClock(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sql == nil {
		return nil
	}
	err := d.sql.Close()
	d.sql = nil
	d.ready = false
	return err
}

// SchemaVersion reports the applied migration version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	db, err := d.conn()
	if err != nil {
		return 0, err
	}
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (d *DB) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready || d.sql == nil {
		return nil, ErrStoreUnavailable
	}
	return d.sql, nil
}

func (d *DB) clock() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.now()
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v+1, err)
		}
		for _, stmt := range migrations[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("apply migration %d: %w", v+1, err)
			}
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v+1, err)
		}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
