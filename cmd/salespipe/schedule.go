package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on PIPELINE_SCHEDULE until interrupted",
	Long: `Run the full pipeline on a cron schedule (PIPELINE_SCHEDULE, standard 5-field
syntax or a descriptor such as @daily). A tick that arrives while a run is still
going is skipped. On SIGINT/SIGTERM the scheduler stops and waits up to
SERVER_SHUTDOWN_TIMEOUT for an in-flight run.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var scheduleFlags struct {
	now bool
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleFlags.now, "now", false, "Also run once immediately")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fail(ctx, "setup failed", err)
	}
	seq, err := a.sequencer()
	if err != nil {
		return fail(ctx, "setup failed", err)
	}
	svc := pipeline.NewService(seq, nil)

	c, err := startScheduler(ctx, svc, cfg.Schedule.Spec)
	if err != nil {
		return fail(ctx, "schedule failed", err)
	}
	if scheduleFlags.now {
		go scheduledRun(context.WithoutCancel(ctx), svc)()
	}

	<-ctx.Done()
	slog.Info("stopping scheduler")
	return stopScheduler(c, svc, cfg.Server.ShutdownTimeout)
}

// startScheduler registers the pipeline job and starts the cron loop.
// Runs are detached from ctx so a shutdown lets them finish.
func startScheduler(ctx context.Context, svc *pipeline.Service, spec string) (*cron.Cron, error) {
	logger := cronLogger{slog.Default().With("component", "scheduler")}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(spec, scheduledRun(context.WithoutCancel(ctx), svc))
	if err != nil {
		return nil, err
	}
	c.Start()

	slog.Info("scheduler started", "spec", spec, "next", c.Entry(id).Schedule.Next(time.Now()))
	return c, nil
}

// stopScheduler stops new ticks and waits for the current run, if any.
func stopScheduler(c *cron.Cron, svc *pipeline.Service, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return svc.Gate().WaitForDrain(ctx)
}

func scheduledRun(ctx context.Context, svc *pipeline.Service) func() {
	return func() {
		report, err := svc.Run(ctx, "schedule")
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			slog.Warn("scheduled run skipped, another run in progress", "holder", svc.Gate().Status().Holder)
		case err != nil:
			fail(ctx, "scheduled run failed", err)
		default:
			slog.Info("scheduled run finished",
				"run_id", report.RunID,
				"duration_ms", report.Duration.Milliseconds(),
				"files_failed", report.Batch.Failed,
			)
		}
	}
}

// cronLogger adapts slog to cron.Logger. Cron's own info chatter goes to debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
