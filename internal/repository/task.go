package repository

import (
	"context"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
)

// TaskRepository is the local, durable task table.
type TaskRepository interface {
	// ListByOwner returns the owner's tasks, newest created first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	// Create assigns id and timestamps and stores the row as pending.
	Create(ctx context.Context, task model.NewTask) (model.Task, error)
	// Update merges patch, rewrites updated_at and forces the row back to pending.
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	ListPending(ctx context.Context, ownerID string) ([]model.Task, error)
	SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error
	// MarkSynced flips the row to synced only if updated_at still equals updatedAt.
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	// RetryErrored moves the owner's error rows, and syncing rows left by an
	// interrupted cycle, back to pending.
	RetryErrored(ctx context.Context, ownerID string) (int64, error)
	// ApplyRemote stores a remote row as-is, marked synced.
	ApplyRemote(ctx context.Context, task model.Task) error
	// ClearAll wipes tasks and the mutation queue.
	ClearAll(ctx context.Context) error
}
