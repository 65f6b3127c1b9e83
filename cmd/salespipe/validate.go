package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/core/tables"
)

var validateCmd = &cobra.Command{
	Use:   "validate <source.csv>",
	Short: "Check a CSV converts cleanly, without touching the database",
	Long: `Read a CSV, project it onto the table definition and convert every cell the
load would send. Rejected cells are listed with their line and column; the
command exits non-zero when any cell is rejected.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationNoConfig: "true"},
	RunE:        runValidate,
}

var validateFlags struct {
	table     string
	maxErrors int
}

func init() {
	validateCmd.Flags().StringVarP(&validateFlags.table, "table", "t", tables.RetailSales, "Registered table definition")
	validateCmd.Flags().IntVar(&validateFlags.maxErrors, "max-errors", 50, "Stop after this many rejected cells (0 for no limit)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	def, ok := core.Get(validateFlags.table)
	if !ok {
		return fmt.Errorf("table %q is not registered", validateFlags.table)
	}

	ds, err := core.ReadDataset(ctx, args[0])
	if err != nil {
		return fail(ctx, "validate failed", err)
	}

	report, err := core.ValidateDataset(ds, def, validateFlags.maxErrors)
	if err != nil {
		return fail(ctx, "validate failed", err)
	}

	out := cmd.OutOrStdout()
	if rootFlags.json {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %d rows, columns %v\n", ds.Source, report.Rows, report.Columns)
		if len(report.Dropped) > 0 {
			fmt.Fprintf(out, "ignored columns: %v\n", report.Dropped)
		}
		for _, e := range report.Errors {
			fmt.Fprintf(out, "  line %d column %s: %q: %v\n", e.Line, e.Column, e.Value, e.Err)
		}
		if report.Truncated {
			fmt.Fprintf(out, "  ... stopped after %d errors\n", len(report.Errors))
		}
	}

	if !report.Valid() {
		return fmt.Errorf("%s: %d rejected cells", ds.Source, len(report.Errors))
	}
	return nil
}
