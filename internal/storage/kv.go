package storage

import "errors"

// Logical keys used by the sync engine.
const (
	KeySyncQueue   = "offline-sync-queue"
	KeyLastSync    = "last-sync-time"
	KeyPromptState = "update-prompt-state"
	KeyDrainLog    = "drain-history"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable key/value store. Values are opaque blobs; callers
// serialize whole documents and write them as one unit.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}
