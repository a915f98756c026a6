// Package status aggregates sync, connectivity, and update state into
// one read-only report for UI observers.
package status

import (
	"fmt"
	"time"

	"fitsync/internal/models"
)

// SyncSource is the coordinator surface the presenter reads.
type SyncSource interface {
	Status() models.SyncStatus
}

// ConnectivitySource is the monitor surface the presenter reads.
type ConnectivitySource interface {
	Snapshot() models.ConnectivitySnapshot
}

// UpdateSource is the update monitor surface the presenter reads.
type UpdateSource interface {
	Status() models.UpdateStatus
	ShouldPrompt() bool
}

// InstallSource is the installability monitor surface the presenter reads.
type InstallSource interface {
	Status() models.InstallStatus
}

// Report is the aggregated status document.
type Report struct {
	GeneratedAt  time.Time                   `json:"generated_at"`
	Sync         models.SyncStatus           `json:"sync"`
	Connectivity models.ConnectivitySnapshot `json:"connectivity"`
	Update       models.UpdateStatus         `json:"update"`
	Install      models.InstallStatus        `json:"install"`
	ShowPrompt   bool                        `json:"show_update_prompt"`
	Message      string                      `json:"message"`
}

// Presenter is thin glue: it never mutates any of its sources.
type Presenter struct {
	sync         SyncSource
	connectivity ConnectivitySource
	update       UpdateSource
	install      InstallSource
}

// NewPresenter wires the four read-only sources.
func NewPresenter(sync SyncSource, connectivity ConnectivitySource, update UpdateSource, install InstallSource) *Presenter {
	return &Presenter{sync: sync, connectivity: connectivity, update: update, install: install}
}

// Report builds the current aggregated status.
func (p *Presenter) Report() Report {
	syncStatus := p.sync.Status()
	connSnap := p.connectivity.Snapshot()
	updStatus := p.update.Status()

	return Report{
		GeneratedAt:  time.Now().UTC(),
		Sync:         syncStatus,
		Connectivity: connSnap,
		Update:       updStatus,
		Install:      p.install.Status(),
		ShowPrompt:   p.update.ShouldPrompt(),
		Message:      buildMessage(syncStatus, connSnap, updStatus),
	}
}

func buildMessage(sync models.SyncStatus, conn models.ConnectivitySnapshot, upd models.UpdateStatus) string {
	switch {
	case sync.State == models.SyncSyncing:
		return fmt.Sprintf("syncing %d pending action(s)", sync.QueueLength)
	case sync.State == models.SyncError:
		if sync.QueueLength > 0 {
			return fmt.Sprintf("sync failed, %d action(s) pending", sync.QueueLength)
		}
		return "sync failed"
	case !conn.IsOnline && sync.QueueLength > 0:
		return fmt.Sprintf("offline, %d action(s) pending", sync.QueueLength)
	case !conn.IsOnline:
		return "offline"
	case sync.State == models.SyncSuccess:
		return "all changes synced"
	case upd.Available:
		return fmt.Sprintf("update %s available", upd.Version)
	default:
		return "up to date"
	}
}
