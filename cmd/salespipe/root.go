package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/config"
	"github.com/JonMunkholm/salespipe/internal/core"
	_ "github.com/JonMunkholm/salespipe/internal/core/tables" // Register tables
	"github.com/JonMunkholm/salespipe/internal/logging"
)

// annotationNoConfig marks commands that run without database configuration.
const annotationNoConfig = "salespipe/no-config"

var rootFlags struct {
	envFile string
	json    bool
}

// cfg is loaded once per invocation by the root pre-run hook.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "salespipe",
	Short: "Retail sales load and BI pipeline",
	Long: `salespipe replaces a PostgreSQL table with the retail sales CSV, runs the
BI SQL files against it and hands the result CSVs to the report builder.

Configuration comes from the environment, optionally seeded from a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "Environment file loaded before configuration (missing file is ignored)")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.json, "json", false, "Print results as JSON")
}

func setup(cmd *cobra.Command, args []string) error {
	// Overload: the file wins over the inherited environment.
	if err := godotenv.Overload(rootFlags.envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	} else {
		slog.Debug("loaded env file", "path", rootFlags.envFile)
	}

	if cmd.Annotations[annotationNoConfig] == "true" {
		logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		return nil
	}

	loaded, err := config.Load()
	if err != nil {
		logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		slog.Error("failed to load configuration", "error", err)
		return err
	}
	cfg = loaded

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

// fail logs err with its operator hint and returns it, so main exits non-zero.
func fail(ctx context.Context, msg string, err error) error {
	hint := core.MapError(err)
	logging.FromContext(ctx).Error(msg,
		"error", err,
		"code", hint.Code,
		"hint", hint.Message,
		"action", hint.Action,
	)
	return err
}
