package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/pipeline"
	"github.com/JonMunkholm/salespipe/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP control surface",
	Long: `Serve health, run history and a pipeline trigger over HTTP on
SERVER_HOST:SERVER_PORT.

  GET  /healthz              liveness and run status
  GET  /api/runs             run_log entries, newest first (?limit=N)
  GET  /api/runs/export      run_log as CSV
  GET  /api/pipeline/status  whether a run is in progress
  GET  /api/pipeline/last    report of the last run started by this process
  POST /api/pipeline         start a run (202), 409 while one is in progress

With --schedule, PIPELINE_SCHEDULE runs in the same process and shares the
run gate with the HTTP trigger.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveFlags struct {
	schedule bool
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.schedule, "schedule", false, "Also run PIPELINE_SCHEDULE in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	var c *cron.Cron
	if serveFlags.schedule {
		if c, err = startScheduler(ctx, svc, cfg.Schedule.Spec); err != nil {
			return fail(ctx, "schedule failed", err)
		}
	}

	// Runs outlive the signal so shutdown can drain them.
	server := web.NewServer(context.WithoutCancel(ctx), svc, a.loader, cfg.Database.Schema, cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fail(ctx, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	if c != nil {
		c.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fail(shutdownCtx, "shutdown incomplete", err)
	}
	slog.Info("server stopped")
	return nil
}
