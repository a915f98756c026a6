package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitsync/internal/models"
)

func TestConnectivityTimelineBucketsAndCarryForward(t *testing.T) {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	samples := []models.ConnectivitySnapshot{
		{IsOnline: true, NetworkType: models.NetworkFast, LatencyMs: 20, CheckedAt: start.Add(30 * time.Second)},
		{IsOnline: false, Error: "dial tcp: timeout", CheckedAt: start.Add(4*time.Minute + 30*time.Second)},
	}

	points := BuildConnectivityTimeline(samples, start, end, 10)
	require.Len(t, points, 10)

	// Bucket 0 holds the online sample.
	assert.Equal(t, "state-success", points[0].ClassName)
	assert.Equal(t, "Online", points[0].Label)
	assert.Equal(t, "20 ms (fast)", points[0].Detail)

	// Buckets 1-3 have no samples but sit within the carry-forward gap.
	for i := 1; i <= 3; i++ {
		assert.Equal(t, "state-success", points[i].ClassName, "bucket %d", i)
	}

	// Bucket 4 holds the offline sample.
	assert.Equal(t, "state-error", points[4].ClassName)
	assert.Equal(t, "Offline", points[4].Label)
	assert.Equal(t, "dial tcp: timeout", points[4].Detail)

	// The gap after the offline sample exceeds three buckets, so the
	// tail goes missing.
	assert.Equal(t, "state-missing", points[9].ClassName)
	assert.Equal(t, "No data", points[9].Label)
}

func TestConnectivityTimelineLastSampleInBucketWins(t *testing.T) {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	samples := []models.ConnectivitySnapshot{
		{IsOnline: true, NetworkType: models.NetworkFast, CheckedAt: start.Add(10 * time.Second)},
		{IsOnline: false, Error: "unreachable", CheckedAt: start.Add(50 * time.Second)},
	}

	points := BuildConnectivityTimeline(samples, start, end, 10)
	assert.Equal(t, "state-error", points[0].ClassName)
}

func TestConnectivityTimelineDefaultsPoints(t *testing.T) {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	points := BuildConnectivityTimeline(nil, start, start.Add(time.Hour), 0)
	assert.Len(t, points, DefaultTimelinePoints)
	for _, p := range points {
		assert.Equal(t, "state-missing", p.ClassName)
	}
}

func TestConnectivityTimelineIgnoresZeroTimeSamples(t *testing.T) {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	samples := []models.ConnectivitySnapshot{{IsOnline: true}}
	points := BuildConnectivityTimeline(samples, start, start.Add(time.Hour), 4)
	for _, p := range points {
		assert.Equal(t, "state-missing", p.ClassName)
	}
}

func TestSyncTimelineMarksIssuesAndCleanPasses(t *testing.T) {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	results := []models.DrainResult{
		{FinishedAt: start.Add(30 * time.Second), Delivered: 2},
		{FinishedAt: start.Add(3*time.Minute + 10*time.Second), Delivered: 1, Error: "deliver logWorkout: timeout"},
		// Clean and failed pass in the same bucket: issue wins.
		{FinishedAt: start.Add(5*time.Minute + 10*time.Second), Delivered: 3},
		{FinishedAt: start.Add(5*time.Minute + 40*time.Second), Dropped: 1, Error: "1 action(s) dropped after 5 retries"},
	}

	points := BuildSyncTimeline(results, start, end, 10)
	require.Len(t, points, 10)

	assert.Equal(t, "state-success", points[0].ClassName)
	assert.Equal(t, "2 delivered", points[0].Detail)

	assert.Equal(t, "state-error", points[3].ClassName)
	assert.Equal(t, "Sync issues", points[3].Label)

	assert.Equal(t, "state-error", points[5].ClassName)
	assert.Contains(t, points[5].Detail, "dropped")

	// Sync buckets never carry forward: quiet periods show as missing.
	assert.Equal(t, "state-missing", points[8].ClassName)
}

func TestSyncTimelineEmptyInput(t *testing.T) {
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	points := BuildSyncTimeline(nil, start, start.Add(time.Hour), 6)
	require.Len(t, points, 6)
	for _, p := range points {
		assert.Equal(t, "state-missing", p.ClassName)
	}
}
