package pipeline

import (
	"context"
	"time"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/logging"
	"github.com/JonMunkholm/salespipe/internal/report"
	"github.com/JonMunkholm/salespipe/internal/sqlbatch"
)

// Stage names, in run order.
const (
	StageLoad   = "load"
	StageBatch  = "batch"
	StageReport = "report"
)

// LoadStage reads the source CSV and replaces the target table with it.
type LoadStage struct {
	Loader     *core.Loader
	SourceFile string
	Definition core.TableDefinition
	Namespace  string
	Table      string

	// StampColumn, when declared by Definition and absent from the dataset,
	// is added holding the run's as-of date.
	StampColumn string
}

func (s *LoadStage) Name() string { return StageLoad }

func (s *LoadStage) Execute(ctx context.Context, rc *RunContext) error {
	ds, err := core.ReadDataset(ctx, s.SourceFile)
	if err != nil {
		return err
	}

	// Resolved per run: a scheduled process outlives the day it started.
	asOf := s.Loader.AsOfDate()
	day := asOf.Format(time.DateOnly)

	if s.StampColumn != "" && !ds.HasColumn(s.StampColumn) {
		if _, declared := s.Definition.Lookup(core.NormalizeColumnName(s.StampColumn)); declared {
			ds = ds.WithConstantColumn(s.StampColumn, day)
			logging.FromContext(ctx).Debug("stamp column added", "column", s.StampColumn, "value", day)
		}
	}

	rec, err := s.Loader.LoadAsOf(ctx, ds, s.Definition, s.Namespace, s.Table, asOf)
	if err != nil {
		return err
	}
	rc.Load = &rec
	return nil
}

// BatchStage executes the BI SQL files. Per-file failures are recorded in
// the run context and do not fail the stage.
type BatchStage struct {
	Runner *sqlbatch.Runner
	Dirs   []string
}

func (s *BatchStage) Name() string { return StageBatch }

func (s *BatchStage) Execute(ctx context.Context, rc *RunContext) error {
	outcomes, err := s.Runner.Run(ctx, s.Dirs)
	rc.Files = outcomes
	return err
}

// ReportStage renders the report from the batch result directory.
type ReportStage struct {
	Builder    report.Builder
	ResultsDir string
}

func (s *ReportStage) Name() string { return StageReport }

func (s *ReportStage) Execute(ctx context.Context, rc *RunContext) error {
	return s.Builder.Build(ctx, s.ResultsDir)
}
