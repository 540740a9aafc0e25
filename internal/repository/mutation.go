package repository

import (
	"context"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
)

// MutationQueue is the durable log of local operations awaiting remote
// application. Entries replay in timestamp order, ties broken by insertion order.
type MutationQueue interface {
	// Enqueue appends entry, assigning an id when it has none. No de-duplication.
	Enqueue(ctx context.Context, entry model.MutationEntry) (model.MutationEntry, error)
	ListOrdered(ctx context.Context) ([]model.MutationEntry, error)
	ListOwner(ctx context.Context, ownerID string) ([]model.MutationEntry, error)
	Get(ctx context.Context, id string) (model.MutationEntry, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context, ownerID string) (int, error)
	// RecordFailure persists one more failed attempt. The entry is abandoned
	// once its retry count reaches maxRetries.
	RecordFailure(ctx context.Context, id, cause string, maxRetries int) (model.MutationEntry, error)
	// Settle removes create/update entries for taskID stamped at or before upTo.
	Settle(ctx context.Context, taskID string, upTo time.Time) (int64, error)
	// PendingDeletes returns the task ids with a delete still in the queue.
	PendingDeletes(ctx context.Context, ownerID string) (map[string]bool, error)
	ListAbandoned(ctx context.Context, ownerID string) ([]model.MutationEntry, error)
	// Requeue resets an entry's retry state so the next drain replays it.
	Requeue(ctx context.Context, id string) error
}
