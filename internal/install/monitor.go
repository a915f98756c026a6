// Package install tracks whether the application shell is installed on
// the device and owns the install prompt handshake.
package install

import (
	"context"
	"sync"

	"fitsync/internal/models"
)

// Platform is the slice of the runtime shell the monitor needs: the
// initial installed/standalone detection and the deferred install
// prompt. The shell owns the platform event wiring and pushes signals
// into the monitor; tests inject scripted platforms.
type Platform interface {
	Detect() models.InstallStatus
	Prompt(ctx context.Context) (accepted bool, err error)
}

// NopPlatform serves installs without a shell: never standalone, never
// installable.
type NopPlatform struct{}

// Detect reports a shell-less environment.
func (NopPlatform) Detect() models.InstallStatus { return models.InstallStatus{} }

// Prompt reports no prompt to show.
func (NopPlatform) Prompt(context.Context) (bool, error) { return false, nil }

// StaticPlatform reports a fixed initial state and answers the install
// prompt with a fixed choice. It stands in for a real shell alongside
// the delivery simulator.
type StaticPlatform struct {
	Initial models.InstallStatus
	Accept  bool
}

// Detect returns the configured initial state.
func (p StaticPlatform) Detect() models.InstallStatus { return p.Initial }

// Prompt returns the configured choice.
func (p StaticPlatform) Prompt(context.Context) (bool, error) { return p.Accept, nil }

// Monitor is the single source of truth for installability state. The
// shell feeds it signals; UI collaborators read Status and call Install.
type Monitor struct {
	platform Platform

	mu     sync.Mutex
	status models.InstallStatus
}

// NewMonitor seeds the state from the platform's detection. A nil
// platform falls back to NopPlatform.
func NewMonitor(platform Platform) *Monitor {
	if platform == nil {
		platform = NopPlatform{}
	}
	return &Monitor{platform: platform, status: platform.Detect()}
}

// Status returns the current installability snapshot.
func (m *Monitor) Status() models.InstallStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SignalPromptAvailable records that the shell captured an install
// prompt. Already-installed shells ignore it.
func (m *Monitor) SignalPromptAvailable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Installed {
		return
	}
	m.status.PromptAvailable = true
}

// SignalInstalled records an install that completed outside the prompt
// flow and consumes any captured prompt.
func (m *Monitor) SignalInstalled() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.Installed = true
	m.status.PromptAvailable = false
}

// Install shows the captured prompt and reports the user's choice.
// Without a captured prompt it is a no-op. The prompt is consumed
// either way; only acceptance marks the shell installed.
func (m *Monitor) Install(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if !m.status.PromptAvailable {
		m.mu.Unlock()
		return false, nil
	}
	m.status.PromptAvailable = false
	m.mu.Unlock()

	accepted, err := m.platform.Prompt(ctx)
	if err != nil {
		return false, err
	}
	if accepted {
		m.mu.Lock()
		m.status.Installed = true
		m.mu.Unlock()
	}
	return accepted, nil
}
