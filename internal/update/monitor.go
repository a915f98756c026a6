// Package update detects new application versions and owns the
// user-facing prompt policy.
package update

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"fitsync/internal/models"
	"fitsync/internal/storage"
)

// Applier activates the downloaded version. Activation restarts the
// application, so callers treat it as fire-and-forget.
type Applier interface {
	Apply(version string)
}

// LogApplier is the default Applier for installs without a platform
// hook wired in.
type LogApplier struct{}

// Apply just records the request.
func (LogApplier) Apply(version string) {
	log.Printf("update: apply version %s requested", version)
}

// promptBackoff maps the dismissal count to the delay before the
// prompt may re-appear. Repeated dismissals escalate so the prompt
// does not nag.
var promptBackoff = []time.Duration{
	30 * time.Minute,
	2 * time.Hour,
	8 * time.Hour,
	24 * time.Hour,
}

// promptState is the persisted slice of monitor state: enough to keep
// the check cadence and dismissal backoff across restarts.
type promptState struct {
	Version      string    `json:"version,omitempty"`
	Dismissals   int       `json:"dismissals,omitempty"`
	NextPromptAt time.Time `json:"next_prompt_at,omitempty"`
	LastCheck    time.Time `json:"last_check,omitempty"`
}

// Monitor tracks availability of a new application version.
type Monitor struct {
	source         ReleaseSource
	applier        Applier
	store          storage.KV
	currentVersion string
	interval       time.Duration
	now            func() time.Time

	mu        sync.Mutex
	available bool
	version   string
	state     promptState

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitor restores persisted prompt state and returns a monitor. A
// nil applier falls back to LogApplier.
func NewMonitor(source ReleaseSource, applier Applier, store storage.KV,
	currentVersion string, interval time.Duration) *Monitor {

	if applier == nil {
		applier = LogApplier{}
	}
	if interval <= 0 {
		interval = time.Hour
	}

	m := &Monitor{
		source:         source,
		applier:        applier,
		store:          store,
		currentVersion: currentVersion,
		interval:       interval,
		now:            time.Now,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	if data, err := store.Get(storage.KeyPromptState); err == nil {
		if jsonErr := json.Unmarshal(data, &m.state); jsonErr != nil {
			log.Printf("update prompt state corrupt, ignoring: %v", jsonErr)
			m.state = promptState{}
		}
	} else if err != storage.ErrNotFound {
		log.Printf("update prompt state unreadable, ignoring: %v", err)
	}
	return m
}

// Start launches the periodic auto-check loop. If no release source is
// configured the monitor stays inert.
func (m *Monitor) Start() {
	if m.source == nil {
		close(m.doneCh)
		return
	}
	go m.run()
}

// Stop terminates the auto-check loop.
func (m *Monitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	m.autoCheck()

	// Wake up well inside the check interval; autoCheck itself skips
	// until the interval has elapsed since the last check.
	tick := m.interval / 4
	if tick < time.Minute {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.autoCheck()
		case <-m.stopCh:
			return
		}
	}
}

// autoCheck runs a check only when the configured interval has elapsed
// since the last one.
func (m *Monitor) autoCheck() {
	m.mu.Lock()
	due := m.state.LastCheck.IsZero() || m.now().Sub(m.state.LastCheck) >= m.interval
	m.mu.Unlock()
	if !due {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := m.CheckForUpdates(ctx); err != nil {
		log.Printf("update check failed: %v", err)
	}
}

// CheckForUpdates forces a check against the release source, updates
// the availability flag, records the check time, and reports whether a
// newer version was found. Failures leave the flag untouched.
func (m *Monitor) CheckForUpdates(ctx context.Context) (bool, error) {
	if m.source == nil {
		return false, nil
	}

	manifest, err := m.source.LatestRelease(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.LastCheck = m.now()
	if err != nil {
		m.persistLocked()
		return false, err
	}

	if manifest.Version != m.state.Version {
		// A different release than the one previously seen resets the
		// dismissal backoff.
		m.state.Version = manifest.Version
		m.state.Dismissals = 0
		m.state.NextPromptAt = time.Time{}
	}
	m.available = manifest.Version != m.currentVersion
	m.version = manifest.Version
	m.persistLocked()
	return m.available, nil
}

// IsUpdateAvailable reports whether a newer version is known.
func (m *Monitor) IsUpdateAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Status returns the externally visible update state.
func (m *Monitor) Status() models.UpdateStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.UpdateStatus{
		Available:      m.available,
		Version:        m.version,
		CurrentVersion: m.currentVersion,
		LastCheck:      m.state.LastCheck,
		Dismissals:     m.state.Dismissals,
	}
}

// ShouldPrompt reports whether the UI may show the update prompt now:
// an update exists and the dismissal backoff window has passed.
func (m *Monitor) ShouldPrompt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.available && !m.now().Before(m.state.NextPromptAt)
}

// DismissPrompt defers the prompt without clearing availability. Each
// dismissal escalates the delay before the prompt re-appears.
func (m *Monitor) DismissPrompt() {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.state.Dismissals
	if idx >= len(promptBackoff) {
		idx = len(promptBackoff) - 1
	}
	m.state.Dismissals++
	m.state.NextPromptAt = m.now().Add(promptBackoff[idx])
	m.persistLocked()
}

// ApplyUpdate signals the platform to activate the new version.
// Fire-and-forget: nothing is awaited, since activation reloads the
// application.
func (m *Monitor) ApplyUpdate() {
	m.mu.Lock()
	version := m.version
	available := m.available
	m.mu.Unlock()

	if !available {
		return
	}
	go m.applier.Apply(version)
}

func (m *Monitor) persistLocked() {
	data, err := json.Marshal(m.state)
	if err != nil {
		log.Printf("encode update prompt state: %v", err)
		return
	}
	if err := m.store.Put(storage.KeyPromptState, data); err != nil {
		log.Printf("persist update prompt state: %v", err)
	}
}
