package syncer_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/remote"
	"github.com/jaekwang-park/tasksync/internal/repository"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

var now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeNet struct {
	offline atomic.Bool
}

func (f *fakeNet) Online(context.Context) bool { return !f.offline.Load() }

// scriptedStore wraps the in-memory remote and lets a test override single operations.
type scriptedStore struct {
	*remote.Memory

	mu    sync.Mutex
	calls []string

	batchWriteFn func(ctx context.Context, tasks []model.Task) error
	createFn     func(ctx context.Context, task model.Task) error
	updateFn     func(ctx context.Context, id string, patch model.TaskPatch, updatedAt time.Time) error
	deleteFn     func(ctx context.Context, id string) error
}

func (s *scriptedStore) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
}

func (s *scriptedStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *scriptedStore) count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (s *scriptedStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	s.record("list")
	return s.Memory.ListByOwner(ctx, ownerID)
}

func (s *scriptedStore) CreateOrReplace(ctx context.Context, task model.Task) error {
	s.record("create")
	if s.createFn != nil {
		return s.createFn(ctx, task)
	}
	return s.Memory.CreateOrReplace(ctx, task)
}

func (s *scriptedStore) Update(ctx context.Context, id string, patch model.TaskPatch, updatedAt time.Time) error {
	s.record("update")
	if s.updateFn != nil {
		return s.updateFn(ctx, id, patch, updatedAt)
	}
	return s.Memory.Update(ctx, id, patch, updatedAt)
}

func (s *scriptedStore) Delete(ctx context.Context, id string) error {
	s.record("delete")
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return s.Memory.Delete(ctx, id)
}

func (s *scriptedStore) BatchWrite(ctx context.Context, tasks []model.Task) error {
	s.record("batch")
	if s.batchWriteFn != nil {
		return s.batchWriteFn(ctx, tasks)
	}
	return s.Memory.BatchWrite(ctx, tasks)
}

type env struct {
	tasks  *repository.SQLiteTasks
	queue  *repository.SQLiteQueue
	kv     *repository.SQLiteKV
	remote *scriptedStore
	net    *fakeNet
	orch   *syncer.Orchestrator
	waits  []time.Duration
}

func newEnv(t *testing.T, cfg syncer.Config) *env {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "tasksync.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var mu sync.Mutex
	clock := now
	db.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	})

	e := &env{
		tasks:  repository.NewSQLiteTasks(db),
		queue:  repository.NewSQLiteQueue(db),
		kv:     repository.NewSQLiteKV(db),
		remote: &scriptedStore{Memory: remote.NewMemory()},
		net:    &fakeNet{},
	}
	e.orch = syncer.New(syncer.Deps{
		Tasks:       e.tasks,
		Queue:       e.queue,
		Remote:      e.remote,
		Network:     e.net,
		Checkpoints: e.kv,
	}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.orch.SetClock(func() time.Time { return now })
	e.orch.Replayer().SetWait(func(_ context.Context, d time.Duration) error {
		e.waits = append(e.waits, d)
		return nil
	})
	t.Cleanup(e.orch.Close)
	return e
}

// addTask mirrors the local mutation path: write the row, then queue it.
func (e *env) addTask(t *testing.T, owner, title string) model.Task {
	t.Helper()
	ctx := context.Background()
	created, err := e.tasks.Create(ctx, model.NewTask{OwnerID: owner, Title: title})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.queue.Enqueue(ctx, model.CreateEntry(created)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return created
}

func (e *env) get(t *testing.T, id string) model.Task {
	t.Helper()
	got, err := e.tasks.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return got
}
