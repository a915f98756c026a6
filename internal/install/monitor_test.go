package install

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitsync/internal/models"
)

type scriptedPlatform struct {
	initial models.InstallStatus
	accept  bool
	err     error
	prompts int
}

func (p *scriptedPlatform) Detect() models.InstallStatus { return p.initial }

func (p *scriptedPlatform) Prompt(context.Context) (bool, error) {
	p.prompts++
	return p.accept, p.err
}

func TestDetectionSeedsStatus(t *testing.T) {
	m := NewMonitor(&scriptedPlatform{initial: models.InstallStatus{Installed: true, Standalone: true}})

	status := m.Status()
	assert.True(t, status.Installed)
	assert.True(t, status.Standalone)
	assert.False(t, status.PromptAvailable)
}

func TestNilPlatformIsNeverInstallable(t *testing.T) {
	m := NewMonitor(nil)
	assert.Equal(t, models.InstallStatus{}, m.Status())

	accepted, err := m.Install(context.Background())
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestInstallWithoutPromptIsNoOp(t *testing.T) {
	platform := &scriptedPlatform{accept: true}
	m := NewMonitor(platform)

	accepted, err := m.Install(context.Background())
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 0, platform.prompts, "no captured prompt means nothing to show")
}

func TestInstallAcceptedMarksInstalled(t *testing.T) {
	platform := &scriptedPlatform{accept: true}
	m := NewMonitor(platform)
	m.SignalPromptAvailable()
	require.True(t, m.Status().PromptAvailable)

	accepted, err := m.Install(context.Background())
	require.NoError(t, err)
	assert.True(t, accepted)

	status := m.Status()
	assert.True(t, status.Installed)
	assert.False(t, status.PromptAvailable, "the prompt is consumed by use")
}

func TestInstallDismissedConsumesPromptOnly(t *testing.T) {
	platform := &scriptedPlatform{accept: false}
	m := NewMonitor(platform)
	m.SignalPromptAvailable()

	accepted, err := m.Install(context.Background())
	require.NoError(t, err)
	assert.False(t, accepted)

	status := m.Status()
	assert.False(t, status.Installed)
	assert.False(t, status.PromptAvailable)

	// The consumed prompt cannot be replayed.
	accepted, err = m.Install(context.Background())
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 1, platform.prompts)
}

func TestInstallPromptErrorDoesNotMarkInstalled(t *testing.T) {
	platform := &scriptedPlatform{err: errors.New("prompt unavailable")}
	m := NewMonitor(platform)
	m.SignalPromptAvailable()

	accepted, err := m.Install(context.Background())
	require.Error(t, err)
	assert.False(t, accepted)
	assert.False(t, m.Status().Installed)
}

func TestSignalInstalledClearsPrompt(t *testing.T) {
	m := NewMonitor(&scriptedPlatform{})
	m.SignalPromptAvailable()

	m.SignalInstalled()
	status := m.Status()
	assert.True(t, status.Installed)
	assert.False(t, status.PromptAvailable)

	// Installed shells ignore late prompt captures.
	m.SignalPromptAvailable()
	assert.False(t, m.Status().PromptAvailable)
}
