// Package syncer reconciles the local store with the remote one: it pushes
// pending rows, replays the mutation queue and pulls remote changes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/observe"
	"github.com/jaekwang-park/tasksync/internal/remote"
	"github.com/jaekwang-park/tasksync/internal/repository"
)

const (
	DefaultBatchSize  = 50
	DefaultMaxRetries = 3
	DefaultRetryBase  = time.Second

	lastSyncKeyPrefix = "last_sync_at:"
)

type Config struct {
	BatchSize  int
	MaxRetries int
	RetryBase  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	return c
}

type Deps struct {
	Tasks       repository.TaskRepository
	Queue       repository.MutationQueue
	Remote      remote.TaskStore
	Network     Connectivity
	Checkpoints repository.KeyValueStore
}

// Orchestrator runs at most one sync cycle per owner at a time.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	logger   *slog.Logger
	events   *observe.Subject[Event]
	replayer *Replayer
	now      func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	events := observe.New[Event]()
	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		logger:   logger,
		events:   events,
		replayer: NewReplayer(deps.Tasks, deps.Queue, deps.Remote, deps.Network, events, cfg, logger),
		now:      time.Now,
		running:  make(map[string]bool),
	}
}

func (o *Orchestrator) Replayer() *Replayer {
	return o.replayer
}

// SetClock replaces the clock used for lastSyncAt and event timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
	o.replayer.now = now
}

func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.events.Subscribe()
}

func (o *Orchestrator) IsSyncing(ownerID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[ownerID]
}

// LastSyncKey is the key-value key holding the owner's last sync checkpoint.
func LastSyncKey(ownerID string) string {
	return lastSyncKeyPrefix + ownerID
}

// LastSyncAt returns the time of the owner's last fully successful cycle,
// or the zero time if there has been none.
func (o *Orchestrator) LastSyncAt(ctx context.Context, ownerID string) (time.Time, error) {
	raw, err := o.deps.Checkpoints.Get(ctx, LastSyncKey(ownerID))
	if errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last sync checkpoint %q: %w", raw, err)
	}
	return model.FromMillis(ms), nil
}

// Close ends every event subscription.
func (o *Orchestrator) Close() {
	o.events.Close()
}

// Sync runs one push/replay/pull cycle for ownerID. A call made while a cycle
// is already running for the owner returns immediately with OutcomeSkipped.
// Being offline is not an error: the report says OutcomeOffline and nothing is touched.
func (o *Orchestrator) Sync(ctx context.Context, ownerID string) (Report, error) {
	report := Report{OwnerID: ownerID, StartedAt: o.now()}

	if !o.acquire(ownerID) {
		report.Outcome = OutcomeSkipped
		o.publish(EventSyncSkipped, ownerID, nil, nil)
		return report, nil
	}
	defer o.release(ownerID)

	if !o.deps.Network.Online(ctx) {
		report.Outcome = OutcomeOffline
		o.publish(EventSyncOffline, ownerID, nil, nil)
		o.logger.Info("sync skipped while offline", "owner_id", ownerID)
		return report, nil
	}

	o.publish(EventSyncStarted, ownerID, nil, nil)

	err := o.cycle(ctx, ownerID, &report)
	report.FinishedAt = o.now()

	if err != nil {
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		o.logger.Warn("sync finished with errors", "owner_id", ownerID, "error", err)
		o.publish(EventSyncFailed, ownerID, &report, err)
		return report, err
	}

	if err := o.deps.Checkpoints.Put(ctx, LastSyncKey(ownerID),
		strconv.FormatInt(report.FinishedAt.UnixMilli(), 10)); err != nil {
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		o.publish(EventSyncFailed, ownerID, &report, err)
		return report, fmt.Errorf("failed to record last sync: %w", err)
	}

	report.Outcome = OutcomeCompleted
	o.logger.Info("sync completed",
		"owner_id", ownerID,
		"pushed", report.Pushed,
		"replayed", report.Replayed,
		"inserted", report.Inserted,
		"overwritten", report.Overwritten,
	)
	o.publish(EventSyncFinished, ownerID, &report, nil)
	return report, nil
}

func (o *Orchestrator) cycle(ctx context.Context, ownerID string, report *Report) error {
	if _, err := o.deps.Tasks.RetryErrored(ctx, ownerID); err != nil {
		return err
	}

	pushErr := o.push(ctx, ownerID, report)
	if errors.Is(pushErr, repository.ErrStoreUnavailable) {
		return pushErr
	}

	// Replay is the tail of the push phase and is skipped once a batch failed.
	var drainErr error
	if pushErr == nil {
		var drained DrainResult
		drained, drainErr = o.replayer.Drain(ctx, ownerID)
		report.Replayed = drained.Replayed
		report.Abandoned = len(drained.Abandoned)
	}

	pullErr := o.pull(ctx, ownerID, report)
	return errors.Join(pushErr, drainErr, pullErr)
}

// push sends pending rows in fixed-size batches. A failed batch is marked
// error and ends the push phase; rows in later batches stay pending.
func (o *Orchestrator) push(ctx context.Context, ownerID string, report *Report) error {
	pending, err := o.deps.Tasks.ListPending(ctx, ownerID)
	if err != nil {
		return err
	}

	for start, n := 0, 1; start < len(pending); start, n = start+o.cfg.BatchSize, n+1 {
		end := min(start+o.cfg.BatchSize, len(pending))
		batch := pending[start:end]

		if err := o.setStatus(ctx, batch, model.SyncStatusSyncing); err != nil {
			return err
		}

		if err := o.deps.Remote.BatchWrite(ctx, batch); err != nil {
			report.FailedBatches++
			o.logger.Warn("batch push failed", "owner_id", ownerID, "batch", n, "size", len(batch), "error", err)
			if serr := o.setStatus(ctx, batch, model.SyncStatusError); serr != nil {
				return errors.Join(fmt.Errorf("push batch %d: %w: %w", n, ErrRemoteWrite, err), serr)
			}
			return fmt.Errorf("push batch %d: %w: %w", n, ErrRemoteWrite, err)
		}

		for _, t := range batch {
			if _, err := o.deps.Tasks.MarkSynced(ctx, t.ID, t.UpdatedAt); err != nil {
				return err
			}
			if _, err := o.deps.Queue.Settle(ctx, t.ID, t.UpdatedAt); err != nil {
				return err
			}
		}
		report.Pushed += len(batch)
	}
	return nil
}

// pull inserts remote rows missing locally and overwrites local rows only
// when the remote copy is strictly newer. Rows with a queued local delete are skipped.
func (o *Orchestrator) pull(ctx context.Context, ownerID string, report *Report) error {
	remoteTasks, err := o.deps.Remote.ListByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	local, err := o.deps.Tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	tombstones, err := o.deps.Queue.PendingDeletes(ctx, ownerID)
	if err != nil {
		return err
	}

	byID := make(map[string]model.Task, len(local))
	for _, t := range local {
		byID[t.ID] = t
	}

	for _, rt := range remoteTasks {
		if tombstones[rt.ID] {
			continue
		}
		lt, ok := byID[rt.ID]
		switch {
		case !ok:
			report.Inserted++
		case rt.UpdatedAt.After(lt.UpdatedAt):
			report.Overwritten++
		default:
			continue
		}
		if err := o.deps.Tasks.ApplyRemote(ctx, rt); err != nil {
			return err
		}
		// queued edits older than the remote copy lost the race
		if _, err := o.deps.Queue.Settle(ctx, rt.ID, rt.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, tasks []model.Task, status model.SyncStatus) error {
	for _, t := range tasks {
		err := o.deps.Tasks.SetSyncStatus(ctx, t.ID, status)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) acquire(ownerID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[ownerID] {
		return false
	}
	o.running[ownerID] = true
	return true
}

func (o *Orchestrator) release(ownerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, ownerID)
}

func (o *Orchestrator) publish(t EventType, ownerID string, report *Report, err error) {
	e := Event{Type: t, OwnerID: ownerID, At: o.now(), Report: report}
	if err != nil {
		e.Error = err.Error()
	}
	o.events.Publish(e)
}
