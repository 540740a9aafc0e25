package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSynced, SyncStatusPending, SyncStatusSyncing, SyncStatusError:
		return true
	}
	return false
}

// Unsynced reports whether a row still has local changes the remote has not confirmed.
func (s SyncStatus) Unsynced() bool {
	return s == SyncStatusPending || s == SyncStatusError
}

type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ReminderAt  *time.Time `json:"reminder_at,omitempty"`
	SyncStatus  SyncStatus `json:"sync_status"`
}

// NewTask holds the caller-supplied fields of a task. The store assigns
// id, timestamps and sync status.
type NewTask struct {
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	ReminderAt  *time.Time `json:"reminder_at,omitempty"`
}

// TaskPatch enumerates the fields a caller may change on an existing task.
// Nil fields are left untouched. ClearReminder removes reminder_at.
type TaskPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Completed     *bool      `json:"completed,omitempty"`
	ReminderAt    *time.Time `json:"reminder_at,omitempty"`
	ClearReminder bool       `json:"clear_reminder,omitempty"`
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.ReminderAt == nil && !p.ClearReminder
}

// Apply returns t with the patch merged in. Timestamps and sync status are
// not touched; that is the store's job.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	switch {
	case p.ClearReminder:
		t.ReminderAt = nil
	case p.ReminderAt != nil:
		r := TruncateMillis(*p.ReminderAt)
		t.ReminderAt = &r
	}
	return t
}

// DecodePatch reads a JSON patch and rejects keys outside TaskPatch.
func DecodePatch(r io.Reader) (TaskPatch, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var p TaskPatch
	if err := dec.Decode(&p); err != nil {
		return TaskPatch{}, fmt.Errorf("decode task patch: %w", err)
	}
	if p.ClearReminder && p.ReminderAt != nil {
		return TaskPatch{}, fmt.Errorf("decode task patch: reminder_at and clear_reminder are mutually exclusive")
	}
	return p, nil
}

// TruncateMillis drops sub-millisecond precision so timestamps survive a
// round trip through integer storage unchanged.
func TruncateMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// FromMillis converts a stored millisecond timestamp back to time.Time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
