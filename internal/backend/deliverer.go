// Package backend is the delivery collaborator: the thing that actually
// sends a pending action to the server. The coordinator only ever sees
// the Deliverer interface, so the simulated transport used in
// development and the HTTP transport share one seam.
package backend

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"fitsync/internal/models"
)

// Deliverer sends one pending action to the backend. A nil error means
// the backend confirmed the action.
type Deliverer interface {
	Deliver(ctx context.Context, action models.PendingAction) error
}

// ErrSimulatedFailure is returned by the simulator on its failing calls.
var ErrSimulatedFailure = errors.New("backend: simulated delivery failure")

// Simulator mimics a backend with fixed latency and a fixed failure
// probability. The random source is injectable so tests can script
// deterministic success and failure sequences.
type Simulator struct {
	Latency     time.Duration
	FailureRate float64

	mu    sync.Mutex
	rng   *rand.Rand
	calls int
}

// NewSimulator seeds a simulator from the current time.
func NewSimulator(latency time.Duration, failureRate float64) *Simulator {
	return &Simulator{
		Latency:     latency,
		FailureRate: failureRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSeededSimulator builds a simulator with a fixed seed.
func NewSeededSimulator(latency time.Duration, failureRate float64, seed int64) *Simulator {
	return &Simulator{
		Latency:     latency,
		FailureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Deliver waits out the simulated latency, honouring ctx, then fails
// with probability FailureRate.
func (s *Simulator) Deliver(ctx context.Context, _ models.PendingAction) error {
	s.mu.Lock()
	s.calls++
	roll := s.rng.Float64()
	s.mu.Unlock()

	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if roll < s.FailureRate {
		return ErrSimulatedFailure
	}
	return nil
}

// Calls reports how many deliveries were attempted.
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
