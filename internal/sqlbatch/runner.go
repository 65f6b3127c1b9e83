package sqlbatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/logging"
	"github.com/JonMunkholm/salespipe/internal/sink"
)

// ErrEmptyStatement marks a file that holds only whitespace and comments.
var ErrEmptyStatement = errors.New("file contains no statement")

// DefaultPreviewRows is how many rows of each READ result are logged.
const DefaultPreviewRows = 5

// FileOutcome is the result of executing one file. Err is nil on success.
type FileOutcome struct {
	Descriptor
	Kind         Kind          `json:"kind"`
	Keyword      string        `json:"keyword"`
	Rows         int           `json:"rows"`         // READ: rows written to the sink
	RowsAffected int64         `json:"rowsAffected"` // WRITE: rows reported by the server
	SinkPath     string        `json:"sinkPath,omitempty"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
}

// OK reports whether the file succeeded.
func (o FileOutcome) OK() bool {
	return o.Err == nil
}

// MarshalJSON adds the error message, which the error value itself does not carry.
func (o FileOutcome) MarshalJSON() ([]byte, error) {
	type plain FileOutcome
	var msg string
	if o.Err != nil {
		msg = o.Err.Error()
	}
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(o), msg})
}

// Summary counts outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize tallies outcomes.
func Summarize(outcomes []FileOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Runner executes SQL files over one connection, isolating failures per file.
type Runner struct {
	connector   core.Connector
	sink        sink.Sink
	previewRows int
}

// Option configures a Runner.
type Option func(*Runner)

// WithPreviewRows sets how many rows of each READ result are logged. Zero disables the preview.
func WithPreviewRows(n int) Option {
	return func(r *Runner) { r.previewRows = n }
}

// NewRunner creates a Runner writing READ results to s.
func NewRunner(connector core.Connector, s sink.Sink, opts ...Option) *Runner {
	r := &Runner{connector: connector, sink: s, previewRows: DefaultPreviewRows}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run discovers eligible files in dirs and executes them in order.
// See RunFiles for the error contract.
func (r *Runner) Run(ctx context.Context, dirs []string) ([]FileOutcome, error) {
	files, _ := Discover(ctx, dirs)
	return r.RunFiles(ctx, files)
}

// RunFiles executes files in the given order over a single connection.
//
// A per-file failure is recorded in that file's outcome and the batch moves
// on. The returned error is non-nil only when no file could run at all: the
// connection could not be opened, or ctx ended. With no files nothing is
// opened and the result is empty.
func (r *Runner) RunFiles(ctx context.Context, files []Descriptor) ([]FileOutcome, error) {
	logger := logging.FromContext(ctx)

	if len(files) == 0 {
		logger.Warn("no sql files to execute")
		return []FileOutcome{}, nil
	}

	conn, err := r.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	logger.Info("sql batch started", "files", len(files))

	outcomes := make([]FileOutcome, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("sql batch interrupted before %s: %w", f.Name, err)
		}

		fileLogger := logger.With("file", f.Name, "title", f.Title, "position", i+1)
		out := r.runFile(ctx, conn, f)

		if out.Err != nil {
			fileLogger.Error("sql file failed, continuing", "kind", out.Kind, "error", out.Err)
		} else {
			fileLogger.Info("sql file done",
				"kind", out.Kind,
				"keyword", out.Keyword,
				"rows", out.Rows,
				"rows_affected", out.RowsAffected,
				"duration_ms", out.Duration.Milliseconds(),
			)
		}
		outcomes = append(outcomes, out)
	}

	s := Summarize(outcomes)
	logger.Info("sql batch finished", "total", s.Total, "succeeded", s.Succeeded, "failed", s.Failed)
	return outcomes, nil
}

func (r *Runner) runFile(ctx context.Context, conn core.Conn, f Descriptor) FileOutcome {
	start := time.Now()
	out := FileOutcome{Descriptor: f}
	fail := func(err error) FileOutcome {
		out.Err = core.NewError(core.KindFileExecution, f.Name, err)
		out.Duration = time.Since(start)
		return out
	}

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return fail(fmt.Errorf("read: %w", err))
	}
	// Editors on Windows save with a BOM; the server rejects it.
	text := strings.TrimPrefix(string(raw), "\uFEFF")

	c := Classify(text)
	out.Kind, out.Keyword = c.Kind, c.Keyword
	if c.Empty() {
		return fail(ErrEmptyStatement)
	}

	if c.Kind == KindRead {
		table, err := query(ctx, conn, text)
		if err != nil {
			return fail(err)
		}
		path, err := r.sink.Write(ctx, f.Stem, table)
		if err != nil {
			return fail(fmt.Errorf("write result: %w", err))
		}
		out.Rows, out.SinkPath = len(table.Rows), path
		r.preview(ctx, f, table)
	} else {
		// Simple protocol without an explicit transaction: the server
		// commits the file's statements as one implicit transaction.
		tag, err := conn.Exec(ctx, text, pgx.QueryExecModeSimpleProtocol)
		if err != nil {
			return fail(err)
		}
		out.RowsAffected = tag.RowsAffected()
	}

	out.Duration = time.Since(start)
	return out
}

// query runs a READ file and materializes every row.
func query(ctx context.Context, conn core.DBTX, text string) (sink.Table, error) {
	rows, err := conn.Query(ctx, text, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return sink.Table{}, err
	}

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	data, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]any, error) {
		return row.Values()
	})
	if err != nil {
		return sink.Table{}, err
	}
	return sink.Table{Columns: columns, Rows: data}, nil
}

func (r *Runner) preview(ctx context.Context, f Descriptor, t sink.Table) {
	if r.previewRows <= 0 || len(t.Rows) == 0 {
		return
	}
	n := min(r.previewRows, len(t.Rows))

	lines := make([][]string, n)
	for i := range n {
		line := make([]string, len(t.Columns))
		for j, v := range t.Rows[i] {
			line[j] = sink.FormatValue(v)
		}
		lines[i] = line
	}
	logging.FromContext(ctx).Info("result preview", "file", f.Name, "columns", t.Columns, "rows", lines)
}
