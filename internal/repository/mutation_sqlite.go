package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaekwang-park/tasksync/internal/model"
)

const entryColumns = `id, owner_id, operation, payload, timestamp, retry_count, status, last_error`

type SQLiteQueue struct {
	db *DB
}

func NewSQLiteQueue(db *DB) *SQLiteQueue {
	return &SQLiteQueue{db: db}
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, e model.MutationEntry) (model.MutationEntry, error) {
	db, err := q.db.conn()
	if err != nil {
		return model.MutationEntry{}, err
	}
	if !e.Operation.IsValid() {
		return model.MutationEntry{}, fmt.Errorf("enqueue: invalid operation %q", e.Operation)
	}
	if e.Payload.TaskID == "" {
		return model.MutationEntry{}, fmt.Errorf("enqueue: payload has no task id")
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = q.db.clock()
	}
	e.Timestamp = model.TruncateMillis(e.Timestamp)
	if e.Status == "" {
		e.Status = model.EntryStatusQueued
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return model.MutationEntry{}, fmt.Errorf("enqueue: encode payload: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO mutation_queue (id, owner_id, task_id, operation, payload, timestamp, retry_count, status, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Payload.TaskID, string(e.Operation), string(payload),
		e.Timestamp.UnixMilli(), e.RetryCount, string(e.Status), e.LastError,
	); err != nil {
		return model.MutationEntry{}, fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return e, nil
}

func (q *SQLiteQueue) ListOrdered(ctx context.Context) ([]model.MutationEntry, error) {
	return q.list(ctx, `SELECT `+entryColumns+` FROM mutation_queue ORDER BY timestamp, rowid`)
}

func (q *SQLiteQueue) ListOwner(ctx context.Context, ownerID string) ([]model.MutationEntry, error) {
	return q.list(ctx, `
		SELECT `+entryColumns+` FROM mutation_queue
		WHERE owner_id = ?
		ORDER BY timestamp, rowid`, ownerID)
}

func (q *SQLiteQueue) ListAbandoned(ctx context.Context, ownerID string) ([]model.MutationEntry, error) {
	return q.list(ctx, `
		SELECT `+entryColumns+` FROM mutation_queue
		WHERE owner_id = ? AND status = ?
		ORDER BY timestamp, rowid`, ownerID, string(model.EntryStatusAbandoned))
}

func (q *SQLiteQueue) Get(ctx context.Context, id string) (model.MutationEntry, error) {
	db, err := q.db.conn()
	if err != nil {
		return model.MutationEntry{}, err
	}
	return scanEntry(db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM mutation_queue WHERE id = ?`, id))
}

func (q *SQLiteQueue) Remove(ctx context.Context, id string) error {
	db, err := q.db.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove mutation: %w", err)
	}
	return nil
}

func (q *SQLiteQueue) Clear(ctx context.Context) error {
	db, err := q.db.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM mutation_queue`); err != nil {
		return fmt.Errorf("failed to clear mutation queue: %w", err)
	}
	return nil
}

func (q *SQLiteQueue) Count(ctx context.Context, ownerID string) (int, error) {
	db, err := q.db.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count mutations: %w", err)
	}
	return n, nil
}

func (q *SQLiteQueue) RecordFailure(ctx context.Context, id, cause string, maxRetries int) (model.MutationEntry, error) {
	db, err := q.db.conn()
	if err != nil {
		return model.MutationEntry{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.MutationEntry{}, fmt.Errorf("failed to begin retry update: %w", err)
	}
	defer tx.Rollback()

	e, err := scanEntry(tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM mutation_queue WHERE id = ?`, id))
	if err != nil {
		return model.MutationEntry{}, err
	}

	e.RetryCount++
	e.LastError = cause
	if e.RetryCount >= maxRetries {
		e.Status = model.EntryStatusAbandoned
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE mutation_queue SET retry_count = ?, status = ?, last_error = ?
		WHERE id = ?`,
		e.RetryCount, string(e.Status), e.LastError, e.ID,
	); err != nil {
		return model.MutationEntry{}, fmt.Errorf("failed to persist retry count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.MutationEntry{}, fmt.Errorf("failed to commit retry count: %w", err)
	}
	return e, nil
}

func (q *SQLiteQueue) Settle(ctx context.Context, taskID string, upTo time.Time) (int64, error) {
	db, err := q.db.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		DELETE FROM mutation_queue
		WHERE task_id = ? AND operation IN (?, ?) AND timestamp <= ?`,
		taskID, string(model.OperationCreate), string(model.OperationUpdate), upTo.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to settle mutations: %w", err)
	}
	return res.RowsAffected()
}

func (q *SQLiteQueue) PendingDeletes(ctx context.Context, ownerID string) (map[string]bool, error) {
	db, err := q.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT task_id FROM mutation_queue
		WHERE owner_id = ? AND operation = ?`, ownerID, string(model.OperationDelete))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletes: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending delete: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (q *SQLiteQueue) Requeue(ctx context.Context, id string) error {
	db, err := q.db.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE mutation_queue SET retry_count = 0, status = ?, last_error = ''
		WHERE id = ?`, string(model.EntryStatusQueued), id)
	if err != nil {
		return fmt.Errorf("failed to requeue mutation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *SQLiteQueue) list(ctx context.Context, query string, args ...any) ([]model.MutationEntry, error) {
	db, err := q.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mutations: %w", err)
	}
	defer rows.Close()

	entries := []model.MutationEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mutations: %w", err)
	}
	return entries, nil
}

func scanEntry(row scannable) (model.MutationEntry, error) {
	var (
		e         model.MutationEntry
		operation string
		payload   string
		timestamp int64
		status    string
	)
	err := row.Scan(&e.ID, &e.OwnerID, &operation, &payload, &timestamp, &e.RetryCount, &status, &e.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MutationEntry{}, ErrNotFound
	}
	if err != nil {
		return model.MutationEntry{}, fmt.Errorf("failed to scan mutation: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return model.MutationEntry{}, fmt.Errorf("failed to decode mutation payload %s: %w", e.ID, err)
	}

	e.Operation = model.Operation(operation)
	e.Timestamp = model.FromMillis(timestamp)
	e.Status = model.EntryStatus(status)
	return e, nil
}

var _ MutationQueue = (*SQLiteQueue)(nil)
