// Package remote holds the adapters for the authoritative, shared task store.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
)

var (
	ErrNotFound = errors.New("remote task not found")
	// ErrTooLarge is returned when a batch exceeds what the backend can apply atomically.
	ErrTooLarge = errors.New("batch too large")
)

// TaskStore is the remote side of sync. Implementations must make BatchWrite
// all-or-nothing and Delete idempotent.
type TaskStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error)
	CreateOrReplace(ctx context.Context, task model.Task) error
	// Update applies patch to an existing task and stamps it with updatedAt.
	Update(ctx context.Context, id string, patch model.TaskPatch, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	BatchWrite(ctx context.Context, tasks []model.Task) error
}

// Record is the flat wire row shared by every backend. Timestamps are
// milliseconds since the epoch.
type Record struct {
	ID          string `json:"id" dynamodbav:"id"`
	OwnerID     string `json:"ownerId" dynamodbav:"ownerId"`
	Title       string `json:"title" dynamodbav:"title"`
	Description string `json:"description" dynamodbav:"description"`
	Completed   bool   `json:"completed" dynamodbav:"completed"`
	CreatedAt   int64  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt" dynamodbav:"updatedAt"`
	ReminderAt  *int64 `json:"reminderAt,omitempty" dynamodbav:"reminderAt,omitempty"`
}

func RecordOf(t model.Task) Record {
	r := Record{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UnixMilli(),
		UpdatedAt:   t.UpdatedAt.UnixMilli(),
	}
	if t.ReminderAt != nil {
		ms := t.ReminderAt.UnixMilli()
		r.ReminderAt = &ms
	}
	return r
}

// Task converts the record back into a task. Remote rows are synced by definition.
func (r Record) Task() model.Task {
	t := model.Task{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		CreatedAt:   model.FromMillis(r.CreatedAt),
		UpdatedAt:   model.FromMillis(r.UpdatedAt),
		SyncStatus:  model.SyncStatusSynced,
	}
	if r.ReminderAt != nil {
		at := model.FromMillis(*r.ReminderAt)
		t.ReminderAt = &at
	}
	return t
}

// Apply merges patch into the record.
func (r Record) Apply(patch model.TaskPatch, updatedAt time.Time) Record {
	t := patch.Apply(r.Task())
	t.UpdatedAt = updatedAt
	return RecordOf(t)
}
