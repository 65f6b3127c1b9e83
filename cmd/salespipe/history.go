package main

import (
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent loads from the run log",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyFlags struct {
	limit int
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fail(ctx, "setup failed", err)
	}

	records, err := a.loader.History(ctx, cfg.Database.Schema, historyFlags.limit)
	if err != nil {
		return fail(ctx, "history failed", err)
	}
	return printHistory(cmd.OutOrStdout(), records)
}
