package main

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/salespipe/internal/config"
	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/pipeline"
	"github.com/JonMunkholm/salespipe/internal/report"
	"github.com/JonMunkholm/salespipe/internal/sink"
	"github.com/JonMunkholm/salespipe/internal/sqlbatch"
)

// app holds the components wired from one configuration.
type app struct {
	cfg        *config.Config
	connector  *core.PgConnector
	loader     *core.Loader
	runner     *sqlbatch.Runner
	builder    *report.CommandBuilder
	definition core.TableDefinition
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	def, ok := core.Get(cfg.Load.Table)
	if !ok {
		return nil, fmt.Errorf("LOAD_TABLE %q is not a registered table", cfg.Load.Table)
	}

	// Only an explicit LOAD_AS_OF is fixed here; otherwise the loader takes
	// the date from its clock on every run.
	var loaderOpts []core.LoaderOption
	if cfg.Load.AsOf != "" {
		asOf, err := cfg.Load.AsOfDate(time.Now())
		if err != nil {
			return nil, err
		}
		loaderOpts = append(loaderOpts, core.WithAsOf(asOf))
	}

	connector, err := core.NewPgConnector(cfg.Database.ConnString(), cfg.Database.StatementTimeout)
	if err != nil {
		return nil, err
	}

	results, err := resultSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		connector:  connector,
		loader:     core.NewLoader(connector, loaderOpts...),
		runner:     sqlbatch.NewRunner(connector, results, sqlbatch.WithPreviewRows(cfg.Batch.PreviewRows)),
		builder:    report.NewCommandBuilder(cfg.Report.Command, cfg.Report.Timeout),
		definition: def,
	}, nil
}

// resultSink writes CSVs to the output directory, mirrored to S3 when a
// bucket is configured.
func resultSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	local := sink.NewCSVSink(cfg.Batch.OutputDir)
	if cfg.Results.Bucket == "" {
		return local, nil
	}
	return sink.NewS3Mirror(ctx, local, sink.S3Config{
		Bucket:       cfg.Results.Bucket,
		Prefix:       cfg.Results.Prefix,
		Region:       cfg.Results.Region,
		Endpoint:     cfg.Results.Endpoint,
		UsePathStyle: cfg.Results.UsePathStyle,
	})
}

func (a *app) loadStage(sourceFile string) *pipeline.LoadStage {
	return &pipeline.LoadStage{
		Loader:      a.loader,
		SourceFile:  sourceFile,
		Definition:  a.definition,
		Namespace:   a.cfg.Database.Schema,
		Table:       a.cfg.Load.Table,
		StampColumn: a.cfg.Load.StampColumn,
	}
}

func (a *app) batchStage() *pipeline.BatchStage {
	return &pipeline.BatchStage{Runner: a.runner, Dirs: a.cfg.Batch.SearchDirs()}
}

func (a *app) reportStage() *pipeline.ReportStage {
	return &pipeline.ReportStage{Builder: a.builder, ResultsDir: a.cfg.Batch.OutputDir}
}

// sequencer builds the full load, batch, report run.
func (a *app) sequencer() (*pipeline.Sequencer, error) {
	if err := a.cfg.Load.RequireSource(); err != nil {
		return nil, err
	}
	return pipeline.NewSequencer(
		a.loadStage(a.cfg.Load.SourceFile),
		a.batchStage(),
		a.reportStage(),
	), nil
}
