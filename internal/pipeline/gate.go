package pipeline

// gate.go serializes pipeline runs.
//
// The CLI scheduler and the HTTP trigger share one RunGate. Two runs must
// never overlap: both truncate the same table and overwrite the same
// result files. Triggers that find the gate held are rejected rather than
// queued.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when another run holds the gate.
var ErrRunInProgress = errors.New("pipeline run in progress")

// RunGate is a single-slot semaphore.
type RunGate struct {
	slot chan struct{}

	mu      sync.RWMutex
	holder  string
	since   time.Time
	acquire func() time.Time
}

// NewRunGate creates an open gate.
func NewRunGate() *RunGate {
	return &RunGate{slot: make(chan struct{}, 1), acquire: time.Now}
}

// TryAcquire takes the gate for holder without blocking.
// Returns false if another run holds it.
func (g *RunGate) TryAcquire(holder string) bool {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.holder, g.since = holder, g.acquire()
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Acquire waits for the gate or for ctx to end.
func (g *RunGate) Acquire(ctx context.Context, holder string) error {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.holder, g.since = holder, g.acquire()
		g.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the gate. Must be called exactly once per successful acquire.
func (g *RunGate) Release() {
	g.mu.Lock()
	g.holder, g.since = "", time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// GateStatus is a snapshot of the gate.
type GateStatus struct {
	Busy   bool      `json:"busy"`
	Holder string    `json:"holder,omitempty"`
	Since  time.Time `json:"since,omitempty"`
}

// Status returns the current holder, if any.
func (g *RunGate) Status() GateStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return GateStatus{Busy: len(g.slot) > 0, Holder: g.holder, Since: g.since}
}

// WaitForDrain blocks until no run holds the gate or ctx ends.
// Used on shutdown so an in-flight run can finish.
func (g *RunGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if len(g.slot) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
