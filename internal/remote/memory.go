package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jaekwang-park/tasksync/internal/model"
)

// Memory is a process-local TaskStore. It backs REMOTE_BACKEND=memory and tests.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]Record
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]Record)}
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := []model.Task{}
	for _, r := range m.rows {
		if r.OwnerID == ownerID {
			tasks = append(tasks, r.Task())
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (m *Memory) CreateOrReplace(_ context.Context, task model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[task.ID] = RecordOf(task)
	return nil
}

func (m *Memory) Update(_ context.Context, id string, patch model.TaskPatch, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	m.rows[id] = r.Apply(patch, updatedAt)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *Memory) BatchWrite(_ context.Context, tasks []model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		m.rows[t.ID] = RecordOf(t)
	}
	return nil
}

// Get returns the stored row for id.
func (m *Memory) Get(id string) (model.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[id]
	if !ok {
		return model.Task{}, false
	}
	return r.Task(), true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

var _ TaskStore = (*Memory)(nil)
