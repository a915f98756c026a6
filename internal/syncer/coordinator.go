// Package syncer drains the pending action queue against the backend,
// gated by connectivity, and maintains the sync status consumed by the
// UI.
package syncer

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"fitsync/internal/backend"
	"fitsync/internal/models"
	"fitsync/internal/queue"
	"fitsync/internal/storage"
)

// ConnectivitySource is the slice of the connectivity monitor the
// coordinator needs: the current snapshot and transition notifications.
type ConnectivitySource interface {
	Snapshot() models.ConnectivitySnapshot
	Subscribe(handler func(models.ConnectivitySnapshot)) func()
}

// Options tune the coordinator. Zero values fall back to defaults.
type Options struct {
	// DeliveryTimeout bounds a single delivery attempt.
	DeliveryTimeout time.Duration
	// RetryBase is the unit for the exponential retry delay after a
	// failed pass (base * 2^retryCount).
	RetryBase time.Duration
	// SuccessDisplay is how long the success state stays visible
	// before returning to idle.
	SuccessDisplay time.Duration
}

func (o *Options) fillDefaults() {
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = 10 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 2 * time.Second
	}
	if o.SuccessDisplay <= 0 {
		o.SuccessDisplay = 5 * time.Second
	}
}

// Coordinator owns the drain protocol. It is the sole writer of the
// sync status; the queue is the sole writer of its own store.
type Coordinator struct {
	queue        *queue.ActionQueue
	connectivity ConnectivitySource
	deliverer    backend.Deliverer
	history      *storage.DrainHistory
	store        storage.KV
	opts         Options

	mu           sync.Mutex
	state        models.SyncState
	lastSyncTime int64
	lastError    string
	syncing      bool
	stopped      bool
	successTimer *time.Timer
	retryTimer   *time.Timer

	unsubscribe func()
	wg          sync.WaitGroup
}

// New builds a coordinator. The last successful sync time is restored
// from the store; the state itself always begins idle, since no drain
// survives a restart mid-flight.
func New(q *queue.ActionQueue, conn ConnectivitySource, deliverer backend.Deliverer,
	history *storage.DrainHistory, store storage.KV, opts Options) *Coordinator {

	opts.fillDefaults()
	c := &Coordinator{
		queue:        q,
		connectivity: conn,
		deliverer:    deliverer,
		history:      history,
		store:        store,
		opts:         opts,
		state:        models.SyncIdle,
	}

	if data, err := store.Get(storage.KeyLastSync); err == nil {
		if ts, parseErr := strconv.ParseInt(string(data), 10, 64); parseErr == nil {
			c.lastSyncTime = ts
		} else {
			log.Printf("last sync time corrupt, ignoring: %v", parseErr)
		}
	} else if err != storage.ErrNotFound {
		log.Printf("last sync time unreadable, ignoring: %v", err)
	}
	return c
}

// Start subscribes to connectivity transitions. A restored connection
// triggers a drain; the subscription lives until Stop. Actions restored
// from a previous run drain right away when already online.
func (c *Coordinator) Start() {
	c.unsubscribe = c.connectivity.Subscribe(func(snap models.ConnectivitySnapshot) {
		if snap.IsOnline {
			c.trigger()
		}
	})
	c.trigger()
}

// Stop tears down the subscription, cancels scheduled retries, and
// waits for any in-flight drain to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.successTimer != nil {
		c.successTimer.Stop()
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.wg.Wait()
}

// Enqueue records a user action and immediately attempts a drain when
// the system is online. This is the mutation entry point for UI
// collaborators.
func (c *Coordinator) Enqueue(kind string, payload []byte) string {
	id := c.queue.Enqueue(kind, payload)
	c.trigger()
	return id
}

// RequestSyncNow asks for a drain pass. It reports whether a new drain
// was started; while offline, while the queue is empty, or while a
// drain is already in flight it is a no-op.
func (c *Coordinator) RequestSyncNow() bool {
	return c.trigger()
}

// Status returns the externally visible sync state.
func (c *Coordinator) Status() models.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return models.SyncStatus{
		State:        c.state,
		QueueLength:  c.queue.Len(),
		LastSyncTime: c.lastSyncTime,
		LastError:    c.lastError,
	}
}

// trigger starts a drain if one may run: queue non-empty, online, not
// already syncing. The in-progress flag is the concurrency guard that
// keeps re-entrant triggers (connectivity event plus manual sync) from
// running two drains at once.
func (c *Coordinator) trigger() bool {
	if c.queue.Len() == 0 {
		return false
	}
	if !c.connectivity.Snapshot().IsOnline {
		return false
	}

	c.mu.Lock()
	if c.stopped || c.syncing {
		c.mu.Unlock()
		return false
	}
	c.syncing = true
	c.state = models.SyncSyncing
	if c.successTimer != nil {
		c.successTimer.Stop()
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.drain()
	}()
	return true
}

// drain attempts every queued action once, in enqueue order. One poison
// action does not block the rest: failures increment the retry count
// (possibly dropping at the ceiling) and the pass moves on.
func (c *Coordinator) drain() {
	result := models.DrainResult{StartedAt: time.Now().UTC()}

	snapshot := c.queue.List()
	result.Attempted = len(snapshot)

	var lastErr string
	for _, action := range snapshot {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.DeliveryTimeout)
		err := c.deliverer.Deliver(ctx, action)
		cancel()

		outcome := models.ActionOutcome{
			ActionID:   action.ID,
			Kind:       action.Kind,
			RetryCount: action.RetryCount,
		}
		if err != nil {
			lastErr = fmt.Sprintf("deliver %s: %v", action.Kind, err)
			outcome.Error = err.Error()
			outcome.RetryCount = action.RetryCount + 1
			if c.queue.IncrementRetry(action.ID) {
				outcome.Dropped = true
				result.Dropped++
			} else {
				result.Retried++
			}
		} else {
			c.queue.Dequeue(action.ID)
			outcome.Delivered = true
			result.Delivered++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if result.Dropped > 0 {
		lastErr = fmt.Sprintf("%d action(s) dropped after %d retries",
			result.Dropped, c.queue.Ceiling())
	}
	result.FinishedAt = time.Now().UTC()
	result.Error = lastErr

	if result.Delivered > 0 {
		c.recordSyncTime()
	}
	if c.history != nil {
		c.history.Append(result)
	}

	c.finishPass(lastErr, result.Dropped)
}

func (c *Coordinator) recordSyncTime() {
	now := models.NowMillis()

	c.mu.Lock()
	c.lastSyncTime = now
	c.mu.Unlock()

	if err := c.store.Put(storage.KeyLastSync, []byte(strconv.FormatInt(now, 10))); err != nil {
		log.Printf("persist last sync time: %v", err)
	}
}

func (c *Coordinator) finishPass(lastErr string, dropped int) {
	remaining := c.queue.Len()
	clean := dropped == 0 && lastErr == ""

	c.mu.Lock()
	c.syncing = false
	stopped := c.stopped
	if clean {
		c.state = models.SyncSuccess
		c.lastError = ""
		if !stopped {
			c.successTimer = time.AfterFunc(c.opts.SuccessDisplay, c.settleIdle)
		}
	} else {
		c.state = models.SyncError
		c.lastError = lastErr
		if remaining > 0 && !stopped {
			c.retryTimer = time.AfterFunc(c.retryDelayLocked(), func() { c.trigger() })
		}
	}
	c.mu.Unlock()

	// A clean pass can still leave work behind: actions enqueued while
	// the pass ran. They have never failed, so drain them right away
	// instead of waiting for a retry window.
	if clean && remaining > 0 && !stopped {
		c.trigger()
	}
}

// settleIdle returns the transient success state to idle once the
// display window has passed.
func (c *Coordinator) settleIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == models.SyncSuccess && !c.syncing {
		c.state = models.SyncIdle
	}
}

// retryDelayLocked computes the exponential backoff for the scheduled
// retry: base * 2^n, where n is the smallest retry count still in the
// queue. Waiting on the least-retried action keeps the delay from
// exploding because of one poison entry.
func (c *Coordinator) retryDelayLocked() time.Duration {
	minRetry := -1
	for _, action := range c.queue.List() {
		if minRetry == -1 || action.RetryCount < minRetry {
			minRetry = action.RetryCount
		}
	}
	if minRetry < 0 {
		minRetry = 0
	}
	if minRetry > c.queue.Ceiling() {
		minRetry = c.queue.Ceiling()
	}
	return c.opts.RetryBase * time.Duration(1<<uint(minRetry))
}
