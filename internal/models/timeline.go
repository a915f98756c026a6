package models

import "time"

// TimelinePoint represents a single compact point in a status timeline.
type TimelinePoint struct {
	ClassName string    `json:"className"`
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Detail    string    `json:"detail,omitempty"`
}
