package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jaekwang-park/tasksync/internal/model"
)

const taskColumns = `id, owner_id, title, description, completed, created_at, updated_at, reminder_at, sync_status`

type SQLiteTasks struct {
	db *DB
}

func NewSQLiteTasks(db *DB) *SQLiteTasks {
	return &SQLiteTasks{db: db}
}

func (r *SQLiteTasks) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	db, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE owner_id = ?
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *SQLiteTasks) Get(ctx context.Context, id string) (model.Task, error) {
	db, err := r.db.conn()
	if err != nil {
		return model.Task{}, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (r *SQLiteTasks) Create(ctx context.Context, in model.NewTask) (model.Task, error) {
	db, err := r.db.conn()
	if err != nil {
		return model.Task{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if in.OwnerID == "" {
		return model.Task{}, fmt.Errorf("%w: owner is required", ErrInvalidTask)
	}

	now := model.TruncateMillis(r.db.clock())
	t := model.Task{
		ID:          uuid.New().String(),
		OwnerID:     in.OwnerID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
		SyncStatus:  model.SyncStatusPending,
	}
	if in.ReminderAt != nil {
		rem := model.TruncateMillis(*in.ReminderAt)
		t.ReminderAt = &rem
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Description, boolInt(t.Completed),
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(), nullMillis(t.ReminderAt), string(t.SyncStatus),
	); err != nil {
		return model.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return t, nil
}

func (r *SQLiteTasks) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	db, err := r.db.conn()
	if err != nil {
		return model.Task{}, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Task{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidTask)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return model.Task{}, err
	}

	t := patch.Apply(existing)
	t.UpdatedAt = nextUpdatedAt(existing.UpdatedAt, r.db.clock())
	t.SyncStatus = model.SyncStatusPending

	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, completed = ?, reminder_at = ?, updated_at = ?, sync_status = ?
		WHERE id = ?`,
		t.Title, t.Description, boolInt(t.Completed), nullMillis(t.ReminderAt),
		t.UpdatedAt.UnixMilli(), string(t.SyncStatus), t.ID,
	); err != nil {
		return model.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, fmt.Errorf("failed to commit task update: %w", err)
	}
	return t, nil
}

func (r *SQLiteTasks) Delete(ctx context.Context, id string) error {
	db, err := r.db.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (r *SQLiteTasks) ListPending(ctx context.Context, ownerID string) ([]model.Task, error) {
	db, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE owner_id = ? AND sync_status = ?
		ORDER BY created_at, id`, ownerID, string(model.SyncStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *SQLiteTasks) SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: sync status %q", ErrInvalidTask, status)
	}
	db, err := r.db.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE tasks SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
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

func (r *SQLiteTasks) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	db, err := r.db.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET sync_status = ?
		WHERE id = ? AND updated_at = ?`,
		string(model.SyncStatusSynced), id, updatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to mark task synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteTasks) RetryErrored(ctx context.Context, ownerID string) (int64, error) {
	db, err := r.db.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET sync_status = ?
		WHERE owner_id = ? AND sync_status IN (?, ?)`,
		string(model.SyncStatusPending), ownerID,
		string(model.SyncStatusError), string(model.SyncStatusSyncing))
	if err != nil {
		return 0, fmt.Errorf("failed to reset errored tasks: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteTasks) ApplyRemote(ctx context.Context, t model.Task) error {
	db, err := r.db.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			description = excluded.description,
			completed = excluded.completed,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			reminder_at = excluded.reminder_at,
			sync_status = excluded.sync_status`,
		t.ID, t.OwnerID, t.Title, t.Description, boolInt(t.Completed),
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(), nullMillis(t.ReminderAt),
		string(model.SyncStatusSynced),
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote task %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteTasks) ClearAll(ctx context.Context) error {
	db, err := r.db.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "mutation_queue"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// nextUpdatedAt keeps updated_at strictly increasing per row, even when two
// writes land in the same millisecond.
func nextUpdatedAt(prev, now time.Time) time.Time {
	next := model.TruncateMillis(now)
	if !next.After(prev) {
		next = prev.Add(time.Millisecond)
	}
	return next
}

func scanTask(row scannable) (model.Task, error) {
	var (
		t        model.Task
		created  int64
		updated  int64
		reminder sql.NullInt64
		status   string
	)
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed,
		&created, &updated, &reminder, &status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to scan task: %w", err)
	}

	t.CreatedAt = model.FromMillis(created)
	t.UpdatedAt = model.FromMillis(updated)
	if reminder.Valid {
		rem := model.FromMillis(reminder.Int64)
		t.ReminderAt = &rem
	}
	t.SyncStatus = model.SyncStatus(status)
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// ensure compile-time interface compliance
var _ TaskRepository = (*SQLiteTasks)(nil)
