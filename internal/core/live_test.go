package core

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// liveConnector returns a connector to SALESPIPE_TEST_DATABASE_URL and a
// scratch namespace dropped after the test. Skips when the variable is unset.
func liveConnector(t *testing.T) (*PgConnector, string) {
	t.Helper()
	url := os.Getenv("SALESPIPE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SALESPIPE_TEST_DATABASE_URL not set")
	}

	connector, err := NewPgConnector(url, 30*time.Second)
	if err != nil {
		t.Fatalf("NewPgConnector: %v", err)
	}

	ns := "salespipe_test_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		ctx := context.Background()
		conn, err := connector.Connect(ctx)
		if err != nil {
			return
		}
		defer conn.Close(ctx)
		conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{ns}.Sanitize()+" CASCADE")
	})
	return connector, ns
}

func TestLive_LoadReplacesTable(t *testing.T) {
	connector, ns := liveConnector(t)
	ctx := context.Background()
	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	loader := NewLoader(connector, WithAsOf(asOf))

	for run := 1; run <= 2; run++ {
		rec, err := loader.Load(ctx, sampleDataset(), testDefinition(), ns, "retail_sales")
		if err != nil {
			t.Fatalf("run %d: Load() error = %v", run, err)
		}
		if rec.RowsLoaded != 2 {
			t.Errorf("run %d: RowsLoaded = %d", run, rec.RowsLoaded)
		}
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(ctx)

	var count int
	if err := conn.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{ns, "retail_sales"}.Sanitize())).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("table holds %d rows after two loads, want 2", count)
	}

	history, err := loader.History(ctx, ns, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].ID <= history[1].ID {
		t.Errorf("history = %+v", history)
	}
	if !history[0].AsOf.Equal(asOf) {
		t.Errorf("ds = %v, want %v", history[0].AsOf, asOf)
	}
}

func TestLive_FailedLoadKeepsPreviousContents(t *testing.T) {
	connector, ns := liveConnector(t)
	ctx := context.Background()
	loader := NewLoader(connector)

	if _, err := loader.Load(ctx, sampleDataset(), testDefinition(), ns, "retail_sales"); err != nil {
		t.Fatalf("seed Load() error = %v", err)
	}

	bad := &Dataset{
		Columns: []string{"Transaction ID", "Age"},
		Rows:    [][]string{{"9", "not a number"}},
		Source:  "bad.csv",
	}
	if _, err := loader.Load(ctx, bad, testDefinition(), ns, "retail_sales"); err == nil {
		t.Fatal("Load() of a bad dataset succeeded")
	}

	history, err := loader.History(ctx, ns, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("run_log has %d entries, want 1", len(history))
	}
}

func TestLive_HistoryOfUnknownNamespace(t *testing.T) {
	connector, ns := liveConnector(t)

	history, err := NewLoader(connector).History(context.Background(), ns+"_never", 5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %+v, want empty", history)
	}
}
