package remote

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/jaekwang-park/tasksync/internal/model"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed   BOOLEAN NOT NULL DEFAULT false,
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		reminder_at BIGINT
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks (owner_id);`

const upsertRecord = `
	INSERT INTO tasks (id, owner_id, title, description, completed, created_at, updated_at, reminder_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		owner_id = EXCLUDED.owner_id,
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		completed = EXCLUDED.completed,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at,
		reminder_at = EXCLUDED.reminder_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the tasks table when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create remote schema: %w", err)
	}
	return nil
}

func (p *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	query := `
		SELECT id, owner_id, title, description, completed, created_at, updated_at, reminder_at
		FROM tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC, id`

	rows, err := p.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var (
			r        Record
			reminder sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Description,
			&r.Completed, &r.CreatedAt, &r.UpdatedAt, &reminder); err != nil {
			return nil, fmt.Errorf("failed to scan remote task: %w", err)
		}
		if reminder.Valid {
			r.ReminderAt = &reminder.Int64
		}
		tasks = append(tasks, r.Task())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate remote tasks: %w", err)
	}
	return tasks, nil
}

func (p *Postgres) CreateOrReplace(ctx context.Context, task model.Task) error {
	if err := upsert(ctx, p.db, RecordOf(task)); err != nil {
		return err
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, id string, patch model.TaskPatch, updatedAt time.Time) error {
	query, args := updateStatement(id, patch, updatedAt)

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update remote task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete remote task: %w", err)
	}
	return nil
}

func (p *Postgres) BatchWrite(ctx context.Context, tasks []model.Task) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		if err := upsert(ctx, tx, RecordOf(t)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, db execer, r Record) error {
	var reminder sql.NullInt64
	if r.ReminderAt != nil {
		reminder = sql.NullInt64{Int64: *r.ReminderAt, Valid: true}
	}
	_, err := db.ExecContext(ctx, upsertRecord,
		r.ID, r.OwnerID, r.Title, r.Description, r.Completed, r.CreatedAt, r.UpdatedAt, reminder,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert remote task %s: %w", r.ID, err)
	}
	return nil
}

// updateStatement builds an UPDATE touching only the fields present in patch.
func updateStatement(id string, patch model.TaskPatch, updatedAt time.Time) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Completed != nil {
		set("completed", *patch.Completed)
	}
	switch {
	case patch.ClearReminder:
		sets = append(sets, "reminder_at = NULL")
	case patch.ReminderAt != nil:
		set("reminder_at", patch.ReminderAt.UnixMilli())
	}
	set("updated_at", updatedAt.UnixMilli())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

var _ TaskStore = (*Postgres)(nil)
