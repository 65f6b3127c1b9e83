package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salespipe/internal/logging"
)

// Runner is what Service drives. Satisfied by *Sequencer.
type Runner interface {
	RunWithID(ctx context.Context, runID uuid.UUID, trigger string) (Report, error)
}

var _ Runner = (*Sequencer)(nil)

// Service gates runs of one pipeline and remembers the last report.
type Service struct {
	runner Runner
	gate   *RunGate

	mu   sync.RWMutex
	last *Report
}

// NewService creates a Service. The gate may be shared with other triggers.
func NewService(runner Runner, gate *RunGate) *Service {
	if gate == nil {
		gate = NewRunGate()
	}
	return &Service{runner: runner, gate: gate}
}

// Gate returns the service's run gate.
func (s *Service) Gate() *RunGate {
	return s.gate
}

// Run executes a run synchronously, or returns ErrRunInProgress when the
// gate is held.
func (s *Service) Run(ctx context.Context, trigger string) (Report, error) {
	if !s.gate.TryAcquire(trigger) {
		return Report{}, ErrRunInProgress
	}
	defer s.gate.Release()

	return s.execute(ctx, uuid.New(), trigger)
}

// Start launches a run in the background and returns its ID, or
// ErrRunInProgress. The run uses ctx, which should outlive the caller's
// request.
func (s *Service) Start(ctx context.Context, trigger string) (uuid.UUID, error) {
	if !s.gate.TryAcquire(trigger) {
		return uuid.Nil, ErrRunInProgress
	}

	runID := uuid.New()
	go func() {
		defer s.gate.Release()
		if _, err := s.execute(ctx, runID, trigger); err != nil {
			logging.FromContext(logging.WithRunID(ctx, runID.String())).Error("background run failed", "error", err)
		}
	}()
	return runID, nil
}

func (s *Service) execute(ctx context.Context, runID uuid.UUID, trigger string) (Report, error) {
	report, err := s.runner.RunWithID(ctx, runID, trigger)

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	return report, err
}

// Last returns the most recent finished report. Report.OK tells whether it
// succeeded. ok is false before the first run completes.
func (s *Service) Last() (report Report, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}
