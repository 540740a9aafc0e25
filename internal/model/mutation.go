package model

import "time"

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

func (o Operation) IsValid() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}

type EntryStatus string

const (
	EntryStatusQueued    EntryStatus = "queued"
	EntryStatusAbandoned EntryStatus = "abandoned"
)

// MutationPayload carries what is needed to replay one operation remotely:
// the full task for create, the patch for update, and only TaskID for delete.
type MutationPayload struct {
	TaskID    string     `json:"task_id"`
	Task      *Task      `json:"task,omitempty"`
	Patch     *TaskPatch `json:"patch,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type MutationEntry struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Operation  Operation       `json:"operation"`
	Payload    MutationPayload `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
	Status     EntryStatus     `json:"status"`
	LastError  string          `json:"last_error,omitempty"`
}

// CreateEntry records the creation of t. The entry is stamped with the row's
// updatedAt so a later push of the same row version settles it.
func CreateEntry(t Task) MutationEntry {
	task := t
	return MutationEntry{
		OwnerID:   t.OwnerID,
		Operation: OperationCreate,
		Payload: MutationPayload{
			TaskID:    t.ID,
			Task:      &task,
			UpdatedAt: t.UpdatedAt,
		},
		Timestamp: t.UpdatedAt,
		Status:    EntryStatusQueued,
	}
}

// UpdateEntry records patch as applied to t, where t is the row after the update.
func UpdateEntry(t Task, patch TaskPatch) MutationEntry {
	p := patch
	return MutationEntry{
		OwnerID:   t.OwnerID,
		Operation: OperationUpdate,
		Payload: MutationPayload{
			TaskID:    t.ID,
			Patch:     &p,
			UpdatedAt: t.UpdatedAt,
		},
		Timestamp: t.UpdatedAt,
		Status:    EntryStatusQueued,
	}
}

func DeleteEntry(ownerID, taskID string, at time.Time) MutationEntry {
	at = TruncateMillis(at)
	return MutationEntry{
		OwnerID:   ownerID,
		Operation: OperationDelete,
		Payload:   MutationPayload{TaskID: taskID, UpdatedAt: at},
		Timestamp: at,
		Status:    EntryStatusQueued,
	}
}
