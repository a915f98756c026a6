package models

import "time"

// InstallStatus describes whether the application shell is installed
// on the device and whether an install prompt is currently available.
type InstallStatus struct {
	Installed       bool `json:"installed"`
	Standalone      bool `json:"standalone"`
	PromptAvailable bool `json:"prompt_available"`
}

// UpdateStatus describes whether a newer application version is available.
type UpdateStatus struct {
	Available      bool      `json:"available"`
	Version        string    `json:"version,omitempty"`
	CurrentVersion string    `json:"current_version"`
	LastCheck      time.Time `json:"last_check,omitempty"`
	Dismissals     int       `json:"dismissals,omitempty"`
}
