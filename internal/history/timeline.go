// Package history reduces raw sample series into compact timelines for
// the status indicator.
package history

import (
	"fmt"
	"sort"
	"time"

	"fitsync/internal/models"
)

// DefaultTimelinePoints controls how many buckets a timeline gets.
const DefaultTimelinePoints = 80

// BuildConnectivityTimeline reduces connectivity samples into bucketed
// timeline points. The last sample inside a bucket wins; buckets with
// no samples fall back to the previous known state when the gap is
// small enough, otherwise they show as missing.
func BuildConnectivityTimeline(samples []models.ConnectivitySnapshot, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	ordered := make([]models.ConnectivitySnapshot, 0, len(samples))
	for _, s := range samples {
		if s.CheckedAt.IsZero() {
			continue
		}
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CheckedAt.Before(ordered[j].CheckedAt)
	})

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}
	gapThreshold := 3 * bucketDuration

	result := make([]models.TimelinePoint, 0, points)
	idx := 0
	var last models.ConnectivitySnapshot
	var haveLast bool
	for idx < len(ordered) && ordered[idx].CheckedAt.Before(start) {
		last = ordered[idx]
		haveLast = true
		idx++
	}

	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		point := models.TimelinePoint{
			ClassName: "state-missing",
			Label:     "No data",
			Start:     bucketStart,
			End:       bucketEnd,
		}

		var selected *models.ConnectivitySnapshot
		for idx < len(ordered) && !ordered[idx].CheckedAt.After(bucketEnd) {
			last = ordered[idx]
			haveLast = true
			selected = &ordered[idx]
			idx++
		}

		switch {
		case selected != nil:
			point.ClassName, point.Label = connectivityClass(*selected)
			point.Detail = connectivityDetail(*selected)
		case haveLast && bucketStart.Sub(last.CheckedAt) <= gapThreshold:
			point.ClassName, point.Label = connectivityClass(last)
			point.Detail = connectivityDetail(last)
		}

		result = append(result, point)
	}
	return result
}

// BuildSyncTimeline reduces drain results into bucketed timeline
// points: a bucket is an issue if any pass inside it failed or dropped
// actions, operational if every pass delivered cleanly.
func BuildSyncTimeline(results []models.DrainResult, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	ordered := make([]models.DrainResult, 0, len(results))
	for _, r := range results {
		if r.FinishedAt.IsZero() {
			continue
		}
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].FinishedAt.Before(ordered[j].FinishedAt)
	})

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	out := make([]models.TimelinePoint, 0, points)
	idx := 0
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		point := models.TimelinePoint{
			ClassName: "state-missing",
			Label:     "No data",
			Start:     bucketStart,
			End:       bucketEnd,
		}

		var issue, clean bool
		var detail string
		for idx < len(ordered) && !ordered[idx].FinishedAt.After(bucketEnd) {
			r := ordered[idx]
			idx++
			if r.FinishedAt.Before(bucketStart) {
				continue
			}
			if r.Error != "" || r.Dropped > 0 {
				issue = true
				detail = r.Error
			} else {
				clean = true
				detail = fmt.Sprintf("%d delivered", r.Delivered)
			}
		}
		switch {
		case issue:
			point.ClassName, point.Label = "state-error", "Sync issues"
			point.Detail = detail
		case clean:
			point.ClassName, point.Label = "state-success", "Synced"
			point.Detail = detail
		}

		out = append(out, point)
	}
	return out
}

func connectivityClass(snap models.ConnectivitySnapshot) (className, label string) {
	switch {
	case snap.IsOnline:
		return "state-success", "Online"
	case snap.Error != "":
		return "state-error", "Offline"
	default:
		return "state-warning", "Unknown"
	}
}

func connectivityDetail(snap models.ConnectivitySnapshot) string {
	if snap.IsOnline {
		if snap.LatencyMs > 0 {
			return fmt.Sprintf("%d ms (%s)", snap.LatencyMs, snap.NetworkType)
		}
		return string(snap.NetworkType)
	}
	if snap.Error != "" {
		return snap.Error
	}
	return ""
}
