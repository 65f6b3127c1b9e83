package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run load, batch and report once",
	Long: `Run the full pipeline once: replace the table with LOAD_SOURCE_FILE, execute
every _bi_ and _view_ SQL file, then run REPORT_COMMAND.

The first failing stage stops the run and the command exits non-zero. A failing
SQL file does not fail the batch stage; it is reported in the summary.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var runFlags struct {
	source string
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.source, "source", "s", "", "Source CSV (overrides LOAD_SOURCE_FILE)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	if runFlags.source != "" {
		cfg.Load.SourceFile = runFlags.source
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fail(ctx, "setup failed", err)
	}
	seq, err := a.sequencer()
	if err != nil {
		return fail(ctx, "setup failed", err)
	}

	report, err := seq.Run(ctx, "cli")
	if perr := printReport(cmd.OutOrStdout(), report); perr != nil {
		return perr
	}
	if err != nil {
		return fail(ctx, "pipeline failed", err)
	}
	return nil
}
