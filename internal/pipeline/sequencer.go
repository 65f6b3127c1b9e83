// Package pipeline runs the load, batch and report stages in order,
// stopping at the first failure.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/logging"
	"github.com/JonMunkholm/salespipe/internal/sqlbatch"
)

// Stage is one step of a run.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// RunContext carries state through the stages of one run.
type RunContext struct {
	RunID   uuid.UUID
	Trigger string // "cli", "schedule", "http"

	// Set by the load stage
	Load *core.AuditRecord

	// Set by the batch stage
	Files []sqlbatch.FileOutcome
}

// StageOutcome records one executed stage.
type StageOutcome struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes a run. Stages lists only the stages that executed.
type Report struct {
	RunID    uuid.UUID              `json:"runId"`
	Trigger  string                 `json:"trigger"`
	Start    time.Time              `json:"start"`
	End      time.Time              `json:"end"`
	Duration time.Duration          `json:"duration"`
	Stages   []StageOutcome         `json:"stages"`
	Load     *core.AuditRecord      `json:"load,omitempty"`
	Files    []sqlbatch.FileOutcome `json:"files,omitempty"`
	Batch    sqlbatch.Summary       `json:"batch"`
}

// OK reports whether every stage succeeded.
func (r Report) OK() bool {
	for _, s := range r.Stages {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// StageError is returned when a stage fails. It wraps the stage's error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Sequencer executes stages in a fixed order.
type Sequencer struct {
	stages []Stage
	now    func() time.Time
}

// NewSequencer creates a Sequencer over stages, executed in the order given.
func NewSequencer(stages ...Stage) *Sequencer {
	return &Sequencer{stages: stages, now: time.Now}
}

// Run executes a run with a fresh run ID.
func (s *Sequencer) Run(ctx context.Context, trigger string) (Report, error) {
	return s.RunWithID(ctx, uuid.New(), trigger)
}

// RunWithID executes every stage in order. The first failing stage stops
// the run; its error is returned as a *StageError and later stages never
// execute. The report is filled in either way.
func (s *Sequencer) RunWithID(ctx context.Context, runID uuid.UUID, trigger string) (Report, error) {
	ctx = logging.WithRunID(ctx, runID.String())
	logger := logging.FromContext(ctx)

	rc := &RunContext{RunID: runID, Trigger: trigger}
	report := Report{RunID: runID, Trigger: trigger, Start: s.now()}

	finish := func() {
		report.End = s.now()
		report.Duration = report.End.Sub(report.Start)
		report.Load = rc.Load
		report.Files = rc.Files
		report.Batch = sqlbatch.Summarize(rc.Files)
	}

	logger.Info("pipeline started", "trigger", trigger, "stages", len(s.stages))

	for _, st := range s.stages {
		name := st.Name()
		start := s.now()
		logger.Info("stage started", "stage", name)

		err := st.Execute(ctx, rc)
		out := StageOutcome{Name: name, Duration: s.now().Sub(start)}

		if err != nil {
			out.Err, out.Error = err, err.Error()
			report.Stages = append(report.Stages, out)
			finish()

			logger.Error("stage failed, stopping pipeline",
				"stage", name,
				"error", err,
				"hint", core.FormatUserError(err),
				"duration_ms", out.Duration.Milliseconds(),
			)
			return report, &StageError{Stage: name, Err: err}
		}

		report.Stages = append(report.Stages, out)
		logger.Info("stage completed", "stage", name, "duration_ms", out.Duration.Milliseconds())
	}

	finish()
	logger.Info("pipeline completed",
		"duration_ms", report.Duration.Milliseconds(),
		"files_failed", report.Batch.Failed,
	)
	return report, nil
}
