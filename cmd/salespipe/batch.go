package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/sqlbatch"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Execute the BI SQL files against the loaded table",
	Long: `Execute SQL files over one connection, each isolated from the others.
READ files write <stem>.csv to OUTPUT_DIR; WRITE files commit on their own.

Without --file, eligible _bi_ and _view_ files are discovered in SQL_QUERIES_DIR
then SQL_VIEWS_DIR. With --file, exactly the named files run in the given order,
whatever their names.

Exits non-zero when any file failed.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var batchFlags struct {
	files []string
}

func init() {
	batchCmd.Flags().StringArrayVarP(&batchFlags.files, "file", "f", nil, "SQL file to run (repeatable); skips discovery")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fail(ctx, "setup failed", err)
	}

	var outcomes []sqlbatch.FileOutcome
	if len(batchFlags.files) > 0 {
		files := make([]sqlbatch.Descriptor, len(batchFlags.files))
		for i, p := range batchFlags.files {
			files[i] = sqlbatch.Describe(p)
		}
		outcomes, err = a.runner.RunFiles(ctx, files)
	} else {
		outcomes, err = a.runner.Run(ctx, cfg.Batch.SearchDirs())
	}
	if err != nil {
		return fail(ctx, "batch failed", err)
	}

	if err := printOutcomes(cmd.OutOrStdout(), outcomes); err != nil {
		return err
	}
	if s := sqlbatch.Summarize(outcomes); s.Failed > 0 {
		return fmt.Errorf("%d of %d sql files failed", s.Failed, s.Total)
	}
	return nil
}
