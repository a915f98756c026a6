package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitsync/internal/models"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("students"))
	assert.True(t, limiter.Allow("students"))
	assert.False(t, limiter.Allow("students"))

	// Other keys have their own budget.
	assert.True(t, limiter.Allow("plans"))

	// Once the first request slides out of the window, budget returns.
	now = now.Add(61 * time.Second)
	assert.True(t, limiter.Allow("students"))
}

func TestRateLimiterRefusedCallsDoNotConsumeBudget(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.Allow("messages"))
	for i := 0; i < 5; i++ {
		assert.False(t, limiter.Allow("messages"))
	}
	now = now.Add(61 * time.Second)
	assert.True(t, limiter.Allow("messages"))
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, resource string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fmt.Sprintf(`{"resource":%q,"call":%d}`, resource, f.calls)), nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestClientCachesReads(t *testing.T) {
	fetcher := &countingFetcher{}
	client := NewClient(fetcher, time.Minute, 100)

	first, err := client.Get(context.Background(), "students", false)
	require.NoError(t, err)

	second, err := client.Get(context.Background(), "students", false)
	require.NoError(t, err)

	assert.Equal(t, first, second, "second read is served from cache")
	assert.Equal(t, 1, fetcher.count())
}

func TestClientForceBypassesCache(t *testing.T) {
	fetcher := &countingFetcher{}
	client := NewClient(fetcher, time.Minute, 100)

	_, err := client.Get(context.Background(), "plans", false)
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "plans", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.count())
}

func TestClientInvalidateForcesRefetch(t *testing.T) {
	fetcher := &countingFetcher{}
	client := NewClient(fetcher, time.Minute, 100)

	_, err := client.Get(context.Background(), "students", false)
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "messages", false)
	require.NoError(t, err)

	client.Invalidate("stud")

	_, err = client.Get(context.Background(), "students", false)
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "messages", false)
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.count(), "only the invalidated resource refetches")
}

func TestClientRateLimitSurfacesError(t *testing.T) {
	fetcher := &countingFetcher{}
	client := NewClient(fetcher, time.Minute, 1)

	_, err := client.Get(context.Background(), "students", false)
	require.NoError(t, err)

	// Force bypasses the cache, not the limiter.
	_, err = client.Get(context.Background(), "students", true)
	assert.ErrorIs(t, err, ErrRateLimited)

	// Cache hits never touch the limiter.
	_, err = client.Get(context.Background(), "students", false)
	assert.NoError(t, err)
}

func TestClientFetchErrorNotCached(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("backend down")}
	client := NewClient(fetcher, time.Minute, 100)

	_, err := client.Get(context.Background(), "students", false)
	require.Error(t, err)

	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.mu.Unlock()

	_, err = client.Get(context.Background(), "students", false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.count())
}

func TestSeededSimulatorIsDeterministic(t *testing.T) {
	action := models.PendingAction{ID: "a1", Kind: "logWorkout"}

	run := func() []bool {
		sim := NewSeededSimulator(0, 0.5, 42)
		var outcomes []bool
		for i := 0; i < 20; i++ {
			outcomes = append(outcomes, sim.Deliver(context.Background(), action) == nil)
		}
		return outcomes
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)

	var failures int
	for _, ok := range first {
		if !ok {
			failures++
		}
	}
	assert.Greater(t, failures, 0, "a 0.5 failure rate over 20 calls fails at least once")
	assert.Less(t, failures, 20, "and succeeds at least once")
}

func TestSimulatorExtremeRates(t *testing.T) {
	action := models.PendingAction{ID: "a1", Kind: "sendMessage"}

	never := NewSeededSimulator(0, 0, 7)
	for i := 0; i < 10; i++ {
		assert.NoError(t, never.Deliver(context.Background(), action))
	}
	assert.Equal(t, 10, never.Calls())

	always := NewSeededSimulator(0, 1, 7)
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, always.Deliver(context.Background(), action), ErrSimulatedFailure)
	}
}

func TestSimulatorHonoursContextDuringLatency(t *testing.T) {
	sim := NewSeededSimulator(time.Minute, 0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sim.Deliver(ctx, models.PendingAction{ID: "a1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStaticFetcher(t *testing.T) {
	fetcher := StaticFetcher{"students": []byte(`[]`)}

	data, err := fetcher.Fetch(context.Background(), "students")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data)

	_, err = fetcher.Fetch(context.Background(), "sessions")
	assert.Error(t, err)
}

func TestHTTPFetcherSendsAuthAndHandlesStatus(t *testing.T) {
	var gotAuth, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(ts.URL+"/", "secret-key")

	data, err := fetcher.Fetch(context.Background(), "students")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "/students", gotPath)

	_, err = fetcher.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 404")
}

func TestHTTPDelivererPostsAction(t *testing.T) {
	var gotMethod, gotPath, gotType string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	deliverer := NewHTTPDeliverer(ts.URL, "")
	action := models.PendingAction{ID: "a1", Kind: "logWorkout", Payload: []byte(`{"reps":10}`)}
	require.NoError(t, deliverer.Deliver(context.Background(), action))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/actions", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Contains(t, string(gotBody), `"logWorkout"`)
}

func TestHTTPDelivererRejectsServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	deliverer := NewHTTPDeliverer(ts.URL, "")
	err := deliverer.Deliver(context.Background(), models.PendingAction{ID: "a1", Kind: "logWorkout"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
