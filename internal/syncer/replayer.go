package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/observe"
	"github.com/jaekwang-park/tasksync/internal/remote"
	"github.com/jaekwang-park/tasksync/internal/repository"
)

const maxBackoff = time.Minute

// Connectivity reports whether the remote is reachable right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Backoff returns the delay before an attempt of an entry that has already
// failed retryCount times: nothing for the first attempt, then base doubling.
func Backoff(retryCount int, base time.Duration) time.Duration {
	if retryCount <= 0 || base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

type DrainResult struct {
	Replayed  int                   `json:"replayed"`
	Failed    int                   `json:"failed"`
	Abandoned []model.MutationEntry `json:"abandoned,omitempty"`
}

// Replayer applies queued mutations to the remote store in queue order.
type Replayer struct {
	tasks      repository.TaskRepository
	queue      repository.MutationQueue
	remote     remote.TaskStore
	net        Connectivity
	events     *observe.Subject[Event]
	logger     *slog.Logger
	maxRetries int
	base       time.Duration
	wait       func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

func NewReplayer(
	tasks repository.TaskRepository,
	queue repository.MutationQueue,
	store remote.TaskStore,
	net Connectivity,
	events *observe.Subject[Event],
	cfg Config,
	logger *slog.Logger,
) *Replayer {
	cfg = cfg.withDefaults()
	return &Replayer{
		tasks:      tasks,
		queue:      queue,
		remote:     store,
		net:        net,
		events:     events,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		base:       cfg.RetryBase,
		wait:       sleep,
		now:        time.Now,
	}
}

// SetWait replaces the backoff sleep. Tests use it to record delays.
func (r *Replayer) SetWait(wait func(ctx context.Context, d time.Duration) error) {
	r.wait = wait
}

// Drain replays the owner's queued entries oldest first. A failed entry stops
// the drain so later entries never overtake it, unless the failure abandoned
// the entry, in which case draining continues past it.
func (r *Replayer) Drain(ctx context.Context, ownerID string) (DrainResult, error) {
	var res DrainResult

	entries, err := r.queue.ListOwner(ctx, ownerID)
	if err != nil {
		return res, err
	}
	if len(entries) == 0 {
		return res, nil
	}
	if !r.net.Online(ctx) {
		return res, ErrOffline
	}

	var errs []error
	for _, e := range entries {
		if e.Status == model.EntryStatusAbandoned {
			continue
		}
		if err := r.wait(ctx, Backoff(e.RetryCount, r.base)); err != nil {
			return res, errors.Join(append(errs, err)...)
		}

		applyErr := r.apply(ctx, e)
		if applyErr == nil {
			if err := r.queue.Remove(ctx, e.ID); err != nil {
				return res, errors.Join(append(errs, err)...)
			}
			res.Replayed++
			continue
		}

		updated, err := r.queue.RecordFailure(ctx, e.ID, applyErr.Error(), r.maxRetries)
		if err != nil {
			return res, errors.Join(append(errs, applyErr, err)...)
		}

		if updated.Status == model.EntryStatusAbandoned {
			r.logger.Warn("mutation abandoned",
				"owner_id", ownerID,
				"entry_id", e.ID,
				"operation", e.Operation,
				"retry_count", updated.RetryCount,
				"error", applyErr,
			)
			res.Abandoned = append(res.Abandoned, updated)
			r.events.Publish(Event{
				Type:    EventQueueExhausted,
				OwnerID: ownerID,
				At:      r.now(),
				EntryID: e.ID,
				Error:   applyErr.Error(),
			})
			errs = append(errs, fmt.Errorf("%s %s: %w", e.Operation, e.Payload.TaskID, ErrQueueExhausted))
			continue
		}

		r.logger.Info("mutation replay failed",
			"owner_id", ownerID,
			"entry_id", e.ID,
			"retry_count", updated.RetryCount,
			"error", applyErr,
		)
		res.Failed++
		errs = append(errs, fmt.Errorf("replay %s: %w: %w", e.ID, ErrRemoteWrite, applyErr))
		break
	}
	return res, errors.Join(errs...)
}

func (r *Replayer) apply(ctx context.Context, e model.MutationEntry) error {
	p := e.Payload
	switch e.Operation {
	case model.OperationCreate:
		if p.Task == nil {
			return fmt.Errorf("create entry %s has no task", e.ID)
		}
		if err := r.remote.CreateOrReplace(ctx, *p.Task); err != nil {
			return err
		}
	case model.OperationUpdate:
		if p.Patch == nil {
			return fmt.Errorf("update entry %s has no patch", e.ID)
		}
		err := r.remote.Update(ctx, p.TaskID, *p.Patch, p.UpdatedAt)
		if errors.Is(err, remote.ErrNotFound) {
			err = r.recreate(ctx, p.TaskID)
		}
		if err != nil {
			return err
		}
	case model.OperationDelete:
		return r.remote.Delete(ctx, p.TaskID)
	default:
		return fmt.Errorf("unknown operation %q", e.Operation)
	}

	if _, err := r.tasks.MarkSynced(ctx, p.TaskID, p.UpdatedAt); err != nil {
		r.logger.Warn("failed to mark replayed task synced", "task_id", p.TaskID, "error", err)
	}
	return nil
}

// recreate pushes the full local row when the remote no longer has it.
func (r *Replayer) recreate(ctx context.Context, taskID string) error {
	t, err := r.tasks.Get(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		// deleted locally too; the queued delete will follow
		return nil
	}
	if err != nil {
		return err
	}
	return r.remote.CreateOrReplace(ctx, t)
}

// Retry puts an abandoned entry back in line with a fresh retry budget.
func (r *Replayer) Retry(ctx context.Context, ownerID, entryID string) error {
	if _, err := r.owned(ctx, ownerID, entryID); err != nil {
		return err
	}
	return r.queue.Requeue(ctx, entryID)
}

// Discard drops an entry for good.
func (r *Replayer) Discard(ctx context.Context, ownerID, entryID string) error {
	if _, err := r.owned(ctx, ownerID, entryID); err != nil {
		return err
	}
	return r.queue.Remove(ctx, entryID)
}

func (r *Replayer) owned(ctx context.Context, ownerID, entryID string) (model.MutationEntry, error) {
	e, err := r.queue.Get(ctx, entryID)
	if err != nil {
		return model.MutationEntry{}, err
	}
	if e.OwnerID != ownerID {
		return model.MutationEntry{}, repository.ErrNotFound
	}
	return e, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
