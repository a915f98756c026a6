package metrics

import (
	"math"
	"sort"
	"time"

	"fitsync/internal/models"
)

// KindStats summarises delivery outcomes for one action kind.
type KindStats struct {
	Kind           string  `json:"kind"`
	SuccessPercent float64 `json:"success_percent"`
	TotalAttempts  int     `json:"total_attempts"`
	Delivered      int     `json:"delivered"`
	Failed         int     `json:"failed"`
	Dropped        int     `json:"dropped"`
	LastOutcome    string  `json:"last_outcome,omitempty"`
	LastAttempt    string  `json:"last_attempt,omitempty"`
}

// ComputeDeliveryStats aggregates per-kind delivery statistics from
// drain history entries.
func ComputeDeliveryStats(results []models.DrainResult) []KindStats {
	type acc struct {
		delivered   int
		failed      int
		dropped     int
		lastOutcome string
		lastTime    time.Time
	}
	state := make(map[string]*acc)
	for _, result := range results {
		for _, outcome := range result.Outcomes {
			target := state[outcome.Kind]
			if target == nil {
				target = &acc{}
				state[outcome.Kind] = target
			}
			switch {
			case outcome.Delivered:
				target.delivered++
				target.lastOutcome = "delivered"
			case outcome.Dropped:
				target.dropped++
				target.lastOutcome = "dropped"
			default:
				target.failed++
				target.lastOutcome = "failed"
			}
			target.lastTime = result.FinishedAt
		}
	}
	if len(state) == 0 {
		return nil
	}

	kinds := make([]string, 0, len(state))
	for k := range state {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	results2 := make([]KindStats, 0, len(kinds))
	for _, kind := range kinds {
		data := state[kind]
		total := data.delivered + data.failed + data.dropped
		success := 0.0
		if total > 0 {
			success = float64(data.delivered) / float64(total) * 100
		}

		stat := KindStats{
			Kind:           kind,
			SuccessPercent: round2(success),
			TotalAttempts:  total,
			Delivered:      data.delivered,
			Failed:         data.failed,
			Dropped:        data.dropped,
			LastOutcome:    data.lastOutcome,
		}
		if !data.lastTime.IsZero() {
			stat.LastAttempt = data.lastTime.UTC().Format(time.RFC3339)
		}
		results2 = append(results2, stat)
	}
	return results2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
