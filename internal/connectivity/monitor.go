// Package connectivity is the single source of truth for whether the
// network is usable right now.
package connectivity

import (
	"runtime"
	"sync"
	"time"

	"fitsync/internal/config"
	"fitsync/internal/models"
)

const maxHistory = 2048

// Monitor periodically probes connectivity and fans results out to
// subscribers. Notifications are push-based and fire only when the
// online flag or network classification actually changes.
type Monitor struct {
	cfg      config.Connectivity
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	lowEnd   bool

	mu          sync.RWMutex
	latest      *models.ConnectivitySnapshot
	history     []models.ConnectivitySnapshot
	subscribers map[int]func(models.ConnectivitySnapshot)
	nextSubID   int

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitor configures a connectivity monitor. A nil prober falls back
// to dialing the configured target.
func NewMonitor(cfg config.Connectivity, prober Prober) *Monitor {
	if prober == nil {
		prober = DialProber{Target: cfg.Target}
	}
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	return &Monitor{
		cfg:         cfg,
		prober:      prober,
		interval:    interval,
		timeout:     timeout,
		lowEnd:      runtime.NumCPU() <= cfg.LowEndMaxCores,
		subscribers: make(map[int]func(models.ConnectivitySnapshot)),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start seeds the snapshot with an immediate probe and launches the
// probe loop.
func (m *Monitor) Start() {
	m.CheckNow()
	go m.run()
}

// Stop requests the probe loop to terminate and waits until it is done.
func (m *Monitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	<-m.doneCh
}

// Snapshot returns the latest known state. Before the first probe it
// reports offline with an unknown network type.
func (m *Monitor) Snapshot() models.ConnectivitySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return models.ConnectivitySnapshot{
			NetworkType:    models.NetworkUnknown,
			IsLowEndDevice: m.lowEnd,
			Target:         m.cfg.Target,
		}
	}
	return *m.latest
}

// History returns up to maxHistory previous samples, oldest first.
func (m *Monitor) History() []models.ConnectivitySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return nil
	}
	out := make([]models.ConnectivitySnapshot, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe registers a handler invoked on connectivity transitions and
// returns a function that removes the subscription. Handlers run on the
// monitor goroutine and must not block.
func (m *Monitor) Subscribe(handler func(models.ConnectivitySnapshot)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// CheckNow runs a single probe synchronously, updating the snapshot and
// notifying subscribers if the state changed.
func (m *Monitor) CheckNow() models.ConnectivitySnapshot {
	latency, err := m.prober.Probe(m.timeout)

	snap := models.ConnectivitySnapshot{
		NetworkType:    models.NetworkUnknown,
		IsLowEndDevice: m.lowEnd,
		Target:         m.cfg.Target,
		CheckedAt:      time.Now().UTC(),
	}
	if err != nil {
		snap.Error = err.Error()
	} else {
		snap.IsOnline = true
		snap.LatencyMs = latency.Milliseconds()
		snap.NetworkType = m.classify(latency)
	}

	m.mu.Lock()
	previous := m.latest
	m.latest = &snap
	m.history = append(m.history, snap)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	changed := previous == nil ||
		previous.IsOnline != snap.IsOnline ||
		previous.NetworkType != snap.NetworkType
	var handlers []func(models.ConnectivitySnapshot)
	if changed {
		handlers = make([]func(models.ConnectivitySnapshot), 0, len(m.subscribers))
		for _, h := range m.subscribers {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()

	for _, handler := range handlers {
		handler(snap)
	}
	return snap
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckNow()
		case <-m.stopCh:
			return
		}
	}
}

// classify maps probe latency onto the coarse network classification.
// Platforms without a usable latency signal degrade to unknown.
func (m *Monitor) classify(latency time.Duration) models.NetworkType {
	if latency <= 0 {
		return models.NetworkUnknown
	}
	threshold := time.Duration(m.cfg.FastThresholdMs) * time.Millisecond
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	if latency <= threshold {
		return models.NetworkFast
	}
	return models.NetworkSlow
}
