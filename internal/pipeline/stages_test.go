package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/pgfake"
)

var asOf = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

func stampedDefinition() core.TableDefinition {
	return core.TableDefinition{
		Key: "retail_sales",
		Columns: []core.Column{
			{Name: "transaction_id", Type: core.TypeText},
			{Name: "total_amount", Type: core.TypeNumeric},
			{Name: "ds", Type: core.TypeDate},
		},
	}
}

// loadStore scripts a fresh database: the table does not exist yet.
func loadStore(columns *[]string) *pgfake.Conn {
	conn := &pgfake.Conn{}
	conn.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		if strings.Contains(sql, "INSERT INTO") {
			return pgfake.NewRows([]string{"id", "run_ts"}, []any{int64(1), asOf})
		}
		return pgfake.NewRows(nil)
	}
	conn.CopyFromFunc = func(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
		*columns = cols
		var n int64
		for src.Next() {
			if _, err := src.Values(); err != nil {
				return n, err
			}
			n++
		}
		return n, src.Err()
	}
	return conn
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retail_sales_dataset.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadStage_StampsMissingColumn(t *testing.T) {
	var copied []string
	conn := loadStore(&copied)
	loader := core.NewLoader(core.ConnectorFunc(func(ctx context.Context) (core.Conn, error) {
		return conn, nil
	}), core.WithAsOf(asOf))

	stage := &LoadStage{
		Loader:      loader,
		SourceFile:  writeCSV(t, "Transaction ID,Total Amount\n1,150\n2,30\n"),
		Definition:  stampedDefinition(),
		Namespace:   "public",
		Table:       "retail_sales",
		StampColumn: "ds",
	}

	rc := &RunContext{}
	if err := stage.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if rc.Load == nil || rc.Load.RowsLoaded != 2 {
		t.Fatalf("rc.Load = %+v", rc.Load)
	}
	if got := strings.Join(copied, ","); got != "transaction_id,total_amount,ds" {
		t.Errorf("copied columns = %s", got)
	}
	if !conn.Committed() {
		t.Error("load not committed")
	}
}

func TestLoadStage_KeepsSourceStamp(t *testing.T) {
	var copied []string
	conn := loadStore(&copied)
	loader := core.NewLoader(core.ConnectorFunc(func(ctx context.Context) (core.Conn, error) {
		return conn, nil
	}))

	stage := &LoadStage{
		Loader:      loader,
		SourceFile:  writeCSV(t, "Transaction ID,ds\n1,2023-05-01\n"),
		Definition:  stampedDefinition(),
		Namespace:   "public",
		Table:       "retail_sales",
		StampColumn: "ds",
	}

	if err := stage.Execute(context.Background(), &RunContext{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.Join(copied, ","); got != "transaction_id,ds" {
		t.Errorf("copied columns = %s", got)
	}
}

func TestLoadStage_MissingSource(t *testing.T) {
	connects := 0
	loader := core.NewLoader(core.ConnectorFunc(func(ctx context.Context) (core.Conn, error) {
		connects++
		return &pgfake.Conn{}, nil
	}))

	stage := &LoadStage{
		Loader:     loader,
		SourceFile: filepath.Join(t.TempDir(), "missing.csv"),
		Definition: stampedDefinition(),
		Namespace:  "public",
		Table:      "retail_sales",
	}

	rc := &RunContext{}
	err := stage.Execute(context.Background(), rc)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Execute() error = %v, want ErrNotExist", err)
	}
	if connects != 0 {
		t.Errorf("connected %d times for a missing source", connects)
	}
	if rc.Load != nil {
		t.Error("rc.Load set on failure")
	}
}

type recordingBuilder struct {
	dir string
	err error
}

func (b *recordingBuilder) Build(ctx context.Context, dir string) error {
	b.dir = dir
	return b.err
}

func TestReportStage_PassesResultsDir(t *testing.T) {
	b := &recordingBuilder{err: errors.New("render failed")}
	stage := &ReportStage{Builder: b, ResultsDir: "results"}

	if err := stage.Execute(context.Background(), &RunContext{}); err == nil {
		t.Error("Execute() error = nil, want builder error")
	}
	if b.dir != "results" {
		t.Errorf("builder dir = %q, want results", b.dir)
	}
}

func TestService_ScheduledRunsRecordTheirOwnDay(t *testing.T) {
	day := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	clock := func() time.Time { return day }

	var conns []*pgfake.Conn
	var logged []string
	loader := core.NewLoader(core.ConnectorFunc(func(ctx context.Context) (core.Conn, error) {
		conn := &pgfake.Conn{}
		conn.QueryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
			if strings.Contains(sql, "INSERT INTO") {
				logged = append(logged, args[0].(pgtype.Date).Time.Format(time.DateOnly))
				return pgfake.NewRows([]string{"id", "run_ts"}, []any{int64(len(logged)), day})
			}
			return pgfake.NewRows(nil)
		}
		conns = append(conns, conn)
		return conn, nil
	}), core.WithClock(clock))

	seq := NewSequencer(&LoadStage{
		Loader:      loader,
		SourceFile:  writeCSV(t, "Transaction ID,Total Amount\n1,150\n"),
		Definition:  stampedDefinition(),
		Namespace:   "public",
		Table:       "retail_sales",
		StampColumn: "ds",
	})
	svc := NewService(seq, nil)

	for _, now := range []time.Time{day, day.Add(time.Hour), day.Add(25 * time.Hour)} {
		day = now
		if _, err := svc.Run(context.Background(), "schedule"); err != nil {
			t.Fatalf("Run() at %v error = %v", now, err)
		}
	}

	want := []string{"2024-03-01", "2024-03-02", "2024-03-03"}
	if got := strings.Join(logged, ","); got != strings.Join(want, ",") {
		t.Errorf("run_log ds = %s, want %s", got, strings.Join(want, ","))
	}
	for i, conn := range conns {
		rows := conn.Copied()
		if len(rows) != 1 {
			t.Fatalf("run %d copied %d rows", i, len(rows))
		}
		stamp := rows[0][2].(pgtype.Date).Time.Format(time.DateOnly)
		if stamp != want[i] {
			t.Errorf("run %d stamped ds = %s, want %s", i, stamp, want[i])
		}
	}
}
