package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/network"
	"github.com/jaekwang-park/tasksync/internal/repository"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

type Synchronizer interface {
	Sync(ctx context.Context, ownerID string) (syncer.Report, error)
	IsSyncing(ownerID string) bool
	LastSyncAt(ctx context.Context, ownerID string) (time.Time, error)
}

type QueueReplayer interface {
	Retry(ctx context.Context, ownerID, entryID string) error
	Discard(ctx context.Context, ownerID, entryID string) error
}

// State is what a UI renders for one owner.
type State struct {
	Tasks             []model.Task    `json:"tasks"`
	Filter            model.Filter    `json:"filter"`
	Stats             model.TaskStats `json:"stats"`
	IsSyncing         bool            `json:"is_syncing"`
	LastSyncAt        *time.Time      `json:"last_sync_at"`
	HasPendingChanges bool            `json:"has_pending_changes"`
}

type ownerState struct {
	tasks  []model.Task
	filter model.Filter
	loaded bool
}

// put replaces the row with t's id, or prepends t when the collection does
// not hold it yet. A reload that ran while the store write was in flight may
// already contain it.
func (st *ownerState) put(t model.Task) {
	for i := range st.tasks {
		if st.tasks[i].ID == t.ID {
			st.tasks[i] = t
			return
		}
	}
	st.tasks = append([]model.Task{t}, st.tasks...)
}

// TaskService is the state container in front of the local store. Every
// mutation is written locally, queued for the remote, and reflected in the
// owner's in-memory collection before it returns.
type TaskService struct {
	tasks  repository.TaskRepository
	queue  repository.MutationQueue
	sync   Synchronizer
	replay QueueReplayer
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	owners map[string]*ownerState
}

func NewTaskService(
	tasks repository.TaskRepository,
	queue repository.MutationQueue,
	sync Synchronizer,
	replay QueueReplayer,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		tasks:  tasks,
		queue:  queue,
		sync:   sync,
		replay: replay,
		logger: logger,
		now:    time.Now,
		owners: make(map[string]*ownerState),
	}
}

func (s *TaskService) LoadTasks(ctx context.Context, ownerID string) ([]model.Task, error) {
	tasks, err := s.tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	st.tasks = tasks
	st.loaded = true
	return cloneTasks(st.tasks), nil
}

func (s *TaskService) AddTask(ctx context.Context, ownerID string, in model.NewTask) ([]model.Task, error) {
	in.OwnerID = ownerID
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.ReminderAt != nil {
		r := model.TruncateMillis(*in.ReminderAt)
		in.ReminderAt = &r
	}
	if err := s.ensureLoaded(ctx, ownerID); err != nil {
		return nil, err
	}

	created, err := s.tasks.Create(ctx, in)
	if err != nil {
		return nil, mapStoreError("create task", err)
	}
	if _, err := s.queue.Enqueue(ctx, model.CreateEntry(created)); err != nil {
		return nil, fmt.Errorf("failed to queue create: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	st.put(created)
	return cloneTasks(st.tasks), nil
}

func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id string, patch model.TaskPatch) ([]model.Task, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		patch.Title = &title
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.apply(ctx, ownerID, id, patch)
}

func (s *TaskService) ToggleComplete(ctx context.Context, ownerID, id string) ([]model.Task, error) {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	completed := !t.Completed
	return s.apply(ctx, ownerID, id, model.TaskPatch{Completed: &completed})
}

// DeleteTask removes the task locally and queues the remote delete. Unknown
// ids, and ids owned by someone else, are a no-op.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id string) ([]model.Task, error) {
	_, err := s.owned(ctx, ownerID, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.snapshot(ownerID), nil
	case err != nil:
		return nil, err
	}

	if err := s.ensureLoaded(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return nil, mapStoreError("delete task", err)
	}
	if _, err := s.queue.Enqueue(ctx, model.DeleteEntry(ownerID, id, s.now())); err != nil {
		return nil, fmt.Errorf("failed to queue delete: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	kept := st.tasks[:0]
	for _, t := range st.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	st.tasks = kept
	return cloneTasks(st.tasks), nil
}

func (s *TaskService) SetFilter(ownerID string, f model.Filter) ([]model.Task, error) {
	if !f.IsValid() {
		return nil, fmt.Errorf("%w: unknown filter %q", ErrInvalidInput, f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	st.filter = f
	return f.Apply(st.tasks), nil
}

// Visible returns the owner's tasks that pass the current filter.
func (s *TaskService) Visible(ownerID string) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	return st.filter.Apply(st.tasks)
}

func (s *TaskService) Stats(ownerID string) model.TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.StatsOf(s.stateLocked(ownerID).tasks)
}

// Sync runs a sync cycle and reloads the collection when the cycle touched
// the store, even if it reported errors.
func (s *TaskService) Sync(ctx context.Context, ownerID string) (syncer.Report, error) {
	report, err := s.sync.Sync(ctx, ownerID)
	if report.Outcome == syncer.OutcomeCompleted || report.Outcome == syncer.OutcomeFailed {
		if _, lerr := s.LoadTasks(ctx, ownerID); lerr != nil {
			err = errors.Join(err, lerr)
		}
	}
	return report, err
}

func (s *TaskService) IsSyncing(ownerID string) bool {
	return s.sync.IsSyncing(ownerID)
}

func (s *TaskService) LastSyncAt(ctx context.Context, ownerID string) (*time.Time, error) {
	t, err := s.sync.LastSyncAt(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}

// HasPendingChanges reports whether the owner's mutation queue is non-empty,
// abandoned entries included.
func (s *TaskService) HasPendingChanges(ctx context.Context, ownerID string) (bool, error) {
	n, err := s.queue.Count(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to count queued mutations: %w", err)
	}
	return n > 0, nil
}

func (s *TaskService) State(ctx context.Context, ownerID string) (State, error) {
	if err := s.ensureLoaded(ctx, ownerID); err != nil {
		return State{}, err
	}
	pending, err := s.HasPendingChanges(ctx, ownerID)
	if err != nil {
		return State{}, err
	}
	last, err := s.LastSyncAt(ctx, ownerID)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	return State{
		Tasks:             st.filter.Apply(st.tasks),
		Filter:            st.filter,
		Stats:             model.StatsOf(st.tasks),
		IsSyncing:         s.sync.IsSyncing(ownerID),
		LastSyncAt:        last,
		HasPendingChanges: pending,
	}, nil
}

func (s *TaskService) QueuedEntries(ctx context.Context, ownerID string) ([]model.MutationEntry, error) {
	entries, err := s.queue.ListOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return entries, nil
}

func (s *TaskService) AbandonedEntries(ctx context.Context, ownerID string) ([]model.MutationEntry, error) {
	entries, err := s.queue.ListAbandoned(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list abandoned mutations: %w", err)
	}
	return entries, nil
}

func (s *TaskService) RetryEntry(ctx context.Context, ownerID, entryID string) error {
	if err := s.replay.Retry(ctx, ownerID, entryID); err != nil {
		return mapStoreError("retry mutation", err)
	}
	return nil
}

func (s *TaskService) DiscardEntry(ctx context.Context, ownerID, entryID string) error {
	if err := s.replay.Discard(ctx, ownerID, entryID); err != nil {
		return mapStoreError("discard mutation", err)
	}
	return nil
}

// WatchConnectivity syncs every loaded owner with pending changes each time
// the network comes back. It returns when ctx is done or statuses is closed.
func (s *TaskService) WatchConnectivity(ctx context.Context, statuses <-chan network.Status) {
	prev := network.StatusUnknown
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-statuses:
			if !ok {
				return
			}
			if prev == network.StatusOffline && st == network.StatusOnline {
				s.syncPending(ctx)
			}
			prev = st
		}
	}
}

func (s *TaskService) syncPending(ctx context.Context) {
	for _, ownerID := range s.loadedOwners() {
		pending, err := s.HasPendingChanges(ctx, ownerID)
		if err != nil {
			s.logger.Warn("reconnect sync: pending check failed", "owner_id", ownerID, "error", err)
			continue
		}
		if !pending {
			continue
		}
		s.logger.Info("network restored, syncing", "owner_id", ownerID)
		if _, err := s.Sync(ctx, ownerID); err != nil {
			s.logger.Warn("reconnect sync failed", "owner_id", ownerID, "error", err)
		}
	}
}

func (s *TaskService) loadedOwners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.owners))
	for id := range s.owners {
		ids = append(ids, id)
	}
	return ids
}

// Forget drops the in-memory state of every owner, e.g. after logout.
func (s *TaskService) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = make(map[string]*ownerState)
}

func (s *TaskService) apply(ctx context.Context, ownerID, id string, patch model.TaskPatch) ([]model.Task, error) {
	if err := s.ensureLoaded(ctx, ownerID); err != nil {
		return nil, err
	}
	updated, err := s.tasks.Update(ctx, id, patch)
	if err != nil {
		return nil, mapStoreError("update task", err)
	}
	if _, err := s.queue.Enqueue(ctx, model.UpdateEntry(updated, patch)); err != nil {
		return nil, fmt.Errorf("failed to queue update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(ownerID)
	st.put(updated)
	return cloneTasks(st.tasks), nil
}

// ensureLoaded reads the owner's collection from the store the first time
// it is touched, so mutations never return a partial list.
func (s *TaskService) ensureLoaded(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	st, ok := s.owners[ownerID]
	loaded := ok && st.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.LoadTasks(ctx, ownerID)
	return err
}

// owned loads id and hides rows that belong to another owner.
func (s *TaskService) owned(ctx context.Context, ownerID, id string) (model.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return model.Task{}, mapStoreError("get task", err)
	}
	if t.OwnerID != ownerID {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

func (s *TaskService) snapshot(ownerID string) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.stateLocked(ownerID).tasks)
}

func (s *TaskService) stateLocked(ownerID string) *ownerState {
	st, ok := s.owners[ownerID]
	if !ok {
		st = &ownerState{tasks: []model.Task{}, filter: model.FilterAll}
		s.owners[ownerID] = st
	}
	return st
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrInvalidTask):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
