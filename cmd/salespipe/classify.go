package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salespipe/internal/sqlbatch"
)

var classifyCmd = &cobra.Command{
	Use:         "classify <file.sql>...",
	Short:       "Show how SQL files would be classified and titled",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{annotationNoConfig: "true"},
	RunE:        runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

// classifyResult is one row of classify output.
type classifyResult struct {
	File     string        `json:"file"`
	Eligible bool          `json:"eligible"`
	Kind     sqlbatch.Kind `json:"kind"`
	Keyword  string        `json:"keyword"`
	Title    string        `json:"title"`
	Error    string        `json:"error,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	results := make([]classifyResult, 0, len(args))
	var failed int
	for _, path := range args {
		d := sqlbatch.Describe(path)
		res := classifyResult{File: d.Name, Eligible: sqlbatch.Eligible(d.Name), Title: d.Title}

		text, err := os.ReadFile(path)
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			c := sqlbatch.Classify(string(text))
			res.Kind, res.Keyword = c.Kind, c.Keyword
			if c.Empty() {
				res.Error = sqlbatch.ErrEmptyStatement.Error()
			}
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if rootFlags.json {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tELIGIBLE\tKIND\tKEYWORD\tTITLE\tERROR")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%s\n", r.File, r.Eligible, r.Kind, r.Keyword, r.Title, r.Error)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d files could not be read", failed)
	}
	return nil
}
