// Package queue holds user actions made while the app cannot reach the
// backend, in enqueue order, persisted across restarts.
//
// The queue guarantees only that actions are *attempted* in FIFO order.
// Dependent actions (create plan, then add exercise to it) must carry
// whatever ordering information the backend needs in their payloads.
package queue

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"fitsync/internal/models"
	"fitsync/internal/storage"
)

// DefaultRetryCeiling is the retry count at which an action is dropped.
const DefaultRetryCeiling = 5

// ActionQueue is a durable FIFO of pending actions. All mutations go
// through its methods; the whole queue is re-persisted as one unit on
// every change.
type ActionQueue struct {
	mu      sync.RWMutex
	store   storage.KV
	ceiling int
	actions []models.PendingAction
}

// New loads any persisted queue from the store. A missing or corrupt
// blob is treated as an empty queue, never a fatal error.
func New(store storage.KV, retryCeiling int) *ActionQueue {
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}
	q := &ActionQueue{store: store, ceiling: retryCeiling}

	data, err := store.Get(storage.KeySyncQueue)
	if err == nil {
		var actions []models.PendingAction
		if jsonErr := json.Unmarshal(data, &actions); jsonErr != nil {
			log.Printf("sync queue corrupt, starting empty: %v", jsonErr)
		} else {
			q.actions = actions
		}
	} else if err != storage.ErrNotFound {
		log.Printf("sync queue unreadable, starting empty: %v", err)
	}
	return q
}

// Enqueue appends a new pending action and persists the queue before
// returning its id. Enqueue never fails: a storage error would cost
// durability for this write, not the user's primary action, so it is
// logged and swallowed.
func (q *ActionQueue) Enqueue(kind string, payload json.RawMessage) string {
	action := models.PendingAction{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: models.NowMillis(),
		RetryCount: 0,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.actions = append(q.actions, action)
	q.persistLocked()
	return action.ID
}

// Dequeue removes the action with the given id and re-persists. Absent
// ids are a no-op, not an error.
func (q *ActionQueue) Dequeue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, action := range q.actions {
		if action.ID == id {
			q.actions = append(q.actions[:i], q.actions[i+1:]...)
			q.persistLocked()
			return
		}
	}
}

// IncrementRetry bumps the retry count for id. If the new count reaches
// the ceiling the action is dropped from the queue instead; the drop is
// logged and reported so callers can surface it. Returns whether the
// action was dropped.
func (q *ActionQueue) IncrementRetry(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.actions {
		if q.actions[i].ID != id {
			continue
		}
		q.actions[i].RetryCount++
		if q.actions[i].RetryCount >= q.ceiling {
			log.Printf("action %s (%s) dropped after %d retries",
				id, q.actions[i].Kind, q.actions[i].RetryCount)
			q.actions = append(q.actions[:i], q.actions[i+1:]...)
			q.persistLocked()
			return true
		}
		q.persistLocked()
		return false
	}
	return false
}

// List returns a snapshot of pending actions in enqueue order.
func (q *ActionQueue) List() []models.PendingAction {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.actions) == 0 {
		return nil
	}
	out := make([]models.PendingAction, len(q.actions))
	copy(out, q.actions)
	return out
}

// Len reports the number of currently pending actions.
func (q *ActionQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.actions)
}

// Ceiling reports the configured retry ceiling.
func (q *ActionQueue) Ceiling() int { return q.ceiling }

func (q *ActionQueue) persistLocked() {
	data, err := json.Marshal(q.actions)
	if err != nil {
		log.Printf("encode sync queue: %v", err)
		return
	}
	if err := q.store.Put(storage.KeySyncQueue, data); err != nil {
		log.Printf("persist sync queue: %v", err)
	}
}
