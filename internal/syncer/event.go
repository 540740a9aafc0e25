package syncer

import "time"

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped means another cycle for the same owner was already running.
	OutcomeSkipped Outcome = "skipped"
	OutcomeOffline Outcome = "offline"
)

// Report summarises one sync cycle.
type Report struct {
	OwnerID       string    `json:"owner_id"`
	Outcome       Outcome   `json:"outcome"`
	Pushed        int       `json:"pushed"`
	FailedBatches int       `json:"failed_batches"`
	Replayed      int       `json:"replayed"`
	Abandoned     int       `json:"abandoned"`
	Inserted      int       `json:"inserted"`
	Overwritten   int       `json:"overwritten"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type EventType string

const (
	EventSyncStarted    EventType = "sync_started"
	EventSyncFinished   EventType = "sync_finished"
	EventSyncFailed     EventType = "sync_failed"
	EventSyncSkipped    EventType = "sync_skipped"
	EventSyncOffline    EventType = "sync_offline"
	EventQueueExhausted EventType = "queue_exhausted"
)

type Event struct {
	Type    EventType `json:"type"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
	Report  *Report   `json:"report,omitempty"`
	EntryID string    `json:"entry_id,omitempty"`
	Error   string    `json:"error,omitempty"`
}
