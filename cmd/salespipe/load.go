package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load [source.csv]",
	Short: "Replace the table with a CSV, without running the batch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	if len(args) == 1 {
		cfg.Load.SourceFile = args[0]
	}
	if err := cfg.Load.RequireSource(); err != nil {
		return fail(ctx, "setup failed", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fail(ctx, "setup failed", err)
	}

	report, err := pipeline.NewSequencer(a.loadStage(cfg.Load.SourceFile)).Run(ctx, "cli")
	if perr := printReport(cmd.OutOrStdout(), report); perr != nil {
		return perr
	}
	if err != nil {
		return fail(ctx, "load failed", err)
	}
	return nil
}
