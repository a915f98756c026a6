package models

import "time"

// ActionOutcome records what happened to one action during a drain pass.
type ActionOutcome struct {
	ActionID   string `json:"action_id"`
	Kind       string `json:"kind"`
	Delivered  bool   `json:"delivered"`
	Dropped    bool   `json:"dropped"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
}

// DrainResult stores the outcome of one full drain pass over the queue.
type DrainResult struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Attempted  int             `json:"attempted"`
	Delivered  int             `json:"delivered"`
	Retried    int             `json:"retried"`
	Dropped    int             `json:"dropped"`
	Outcomes   []ActionOutcome `json:"outcomes,omitempty"`
	Error      string          `json:"error,omitempty"`
}
