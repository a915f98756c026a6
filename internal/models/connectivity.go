package models

import "time"

// NetworkType is a coarse classification of link quality.
type NetworkType string

const (
	NetworkUnknown NetworkType = "unknown"
	NetworkSlow    NetworkType = "slow"
	NetworkFast    NetworkType = "fast"
)

// ConnectivitySnapshot captures the outcome of the latest connectivity probe.
type ConnectivitySnapshot struct {
	IsOnline       bool        `json:"is_online"`
	NetworkType    NetworkType `json:"network_type"`
	IsLowEndDevice bool        `json:"is_low_end_device"`
	Target         string      `json:"target,omitempty"`
	LatencyMs      int64       `json:"latency_ms,omitempty"`
	Error          string      `json:"error,omitempty"`
	CheckedAt      time.Time   `json:"checked_at"`
}
