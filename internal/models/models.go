package models

import (
	"encoding/json"
	"time"
)

// PendingAction is a queued, not-yet-confirmed user mutation awaiting
// delivery to the backend.
type PendingAction struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt int64           `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// SyncState describes what the coordinator is currently doing.
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncSyncing SyncState = "syncing"
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
)

// SyncStatus is the coordinator state exposed to UI observers.
type SyncStatus struct {
	State        SyncState `json:"state"`
	QueueLength  int       `json:"queue_length"`
	LastSyncTime int64     `json:"last_sync_time,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// NowMillis returns the current wall clock as milliseconds since epoch,
// the unit used for action and sync timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
