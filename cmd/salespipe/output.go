package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/pipeline"
	"github.com/JonMunkholm/salespipe/internal/sqlbatch"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r pipeline.Report) error {
	if rootFlags.json {
		return printJSON(w, r)
	}

	status := "ok"
	if !r.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(w, "run %s (%s) %s in %s\n", r.RunID, r.Trigger, status, r.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tDURATION\tERROR")
	for _, s := range r.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Duration.Round(time.Millisecond), s.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Load != nil {
		fmt.Fprintf(w, "\nloaded %d rows from %s (run_log id %d, ds %s)\n",
			r.Load.RowsLoaded, r.Load.SourceFile, r.Load.ID, r.Load.AsOf.Format(time.DateOnly))
	}
	if len(r.Files) > 0 {
		fmt.Fprintln(w)
		return printOutcomes(w, r.Files)
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []sqlbatch.FileOutcome) error {
	if rootFlags.json {
		return printJSON(w, outcomes)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tKIND\tROWS\tRESULT\tERROR")
	for _, o := range outcomes {
		rows := o.Rows
		if o.Kind == sqlbatch.KindWrite {
			rows = int(o.RowsAffected)
		}
		errMsg := ""
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.Name, o.Kind, rows, o.SinkPath, errMsg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := sqlbatch.Summarize(outcomes)
	_, err := fmt.Fprintf(w, "%d files, %d succeeded, %d failed\n", s.Total, s.Succeeded, s.Failed)
	return err
}

func printHistory(w io.Writer, records []core.AuditRecord) error {
	if rootFlags.json {
		return printJSON(w, records)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRUN_TS\tDS\tROWS\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			r.ID, r.RunTS.Local().Format(time.DateTime), r.AsOf.Format(time.DateOnly), r.RowsLoaded, r.SourceFile)
	}
	return tw.Flush()
}
