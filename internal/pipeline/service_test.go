package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salespipe/internal/core"
)

// blockingRunner holds each run open until release is closed.
type blockingRunner struct {
	started chan uuid.UUID
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan uuid.UUID, 1), release: make(chan struct{})}
}

func (r *blockingRunner) RunWithID(ctx context.Context, runID uuid.UUID, trigger string) (Report, error) {
	r.started <- runID
	<-r.release
	report := Report{RunID: runID, Trigger: trigger}
	if r.err != nil {
		report.Stages = []StageOutcome{{Name: StageLoad, Err: r.err, Error: r.err.Error()}}
	}
	return report, r.err
}

func TestService_RejectsOverlappingRuns(t *testing.T) {
	runner := newBlockingRunner()
	svc := NewService(runner, nil)

	id, err := svc.Start(context.Background(), "http")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := <-runner.started; got != id {
		t.Errorf("runner got id %v, want %v", got, id)
	}

	if _, err := svc.Start(context.Background(), "http"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second Start() error = %v, want ErrRunInProgress", err)
	}
	if _, err := svc.Run(context.Background(), "schedule"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Run() during Start error = %v, want ErrRunInProgress", err)
	}

	close(runner.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Gate().WaitForDrain(ctx); err != nil {
		t.Fatalf("WaitForDrain() error = %v", err)
	}

	report, ok := svc.Last()
	if !ok {
		t.Fatal("Last() ok = false after run")
	}
	if report.RunID != id || !report.OK() {
		t.Errorf("Last() = %+v", report)
	}
}

func TestService_RunRecordsFailure(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = core.NewError(core.KindTransfer, "copy", errors.New("bad row"))
	close(runner.release)
	svc := NewService(runner, NewRunGate())

	if _, ok := svc.Last(); ok {
		t.Error("Last() ok = true before any run")
	}

	_, err := svc.Run(context.Background(), "cli")
	if !errors.Is(err, core.ErrTransfer) {
		t.Errorf("Run() error = %v, want ErrTransfer", err)
	}

	report, ok := svc.Last()
	if !ok || report.OK() {
		t.Errorf("Last() = %+v, %v; want failed report", report, ok)
	}
	if svc.Gate().Status().Busy {
		t.Error("gate still held after Run returned")
	}
}

func TestService_SharedGate(t *testing.T) {
	gate := NewRunGate()
	gate.TryAcquire("schedule")
	defer gate.Release()

	svc := NewService(newBlockingRunner(), gate)
	if _, err := svc.Run(context.Background(), "cli"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Run() error = %v, want ErrRunInProgress", err)
	}
	if msg := core.MapError(ErrRunInProgress); msg.Code != "RUN001" {
		t.Errorf("MapError code = %q, want RUN001", msg.Code)
	}
}
