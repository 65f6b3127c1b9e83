package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/JonMunkholm/salespipe/internal/config"
	"github.com/JonMunkholm/salespipe/internal/core/tables"
	"github.com/JonMunkholm/salespipe/internal/pipeline"
	"github.com/JonMunkholm/salespipe/internal/sink"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootFlags.json = false })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	read := filepath.Join(dir, "01_bi_sales_by_category.sql")
	write := filepath.Join(dir, "02_view_daily.sql")
	if err := os.WriteFile(read, []byte("-- totals\nSELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(write, []byte("CREATE OR REPLACE VIEW v AS SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "classify", "--json", "--env-file", filepath.Join(dir, "absent.env"), read, write)
	if err != nil {
		t.Fatalf("classify error = %v\n%s", err, out)
	}

	var results []struct {
		Kind     string `json:"kind"`
		Keyword  string `json:"keyword"`
		Eligible bool   `json:"eligible"`
	}
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Kind != "READ" || results[0].Keyword != "SELECT" || !results[0].Eligible {
		t.Errorf("read file = %+v", results[0])
	}
	if results[1].Kind != "WRITE" || results[1].Keyword != "CREATE" {
		t.Errorf("write file = %+v", results[1])
	}
}

func TestClassifyCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "classify", "--env-file", filepath.Join(dir, "absent.env"), filepath.Join(dir, "nope.sql"))
	if err == nil {
		t.Error("classify of a missing file succeeded")
	}
}

func TestResultSink_LocalOnly(t *testing.T) {
	c := &config.Config{Batch: config.BatchConfig{OutputDir: t.TempDir()}}
	s, err := resultSink(context.Background(), c)
	if err != nil {
		t.Fatalf("resultSink() error = %v", err)
	}
	if _, ok := s.(*sink.CSVSink); !ok {
		t.Errorf("sink = %T, want *sink.CSVSink", s)
	}
}

func TestNewApp_UnknownTable(t *testing.T) {
	c := &config.Config{Load: config.LoadConfig{Table: "no_such_table"}}
	_, err := newApp(context.Background(), c)
	if err == nil || !strings.Contains(err.Error(), "no_such_table") {
		t.Errorf("newApp() error = %v", err)
	}
}

func TestSequencer_RequiresSource(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	if _, err := a.sequencer(); err == nil {
		t.Error("sequencer() without LOAD_SOURCE_FILE succeeded")
	}
}

var _ cron.Logger = cronLogger{}

// countingRunner counts RunWithID calls.
type countingRunner struct{ calls atomic.Int32 }

func (r *countingRunner) RunWithID(ctx context.Context, runID uuid.UUID, trigger string) (pipeline.Report, error) {
	r.calls.Add(1)
	return pipeline.Report{RunID: runID, Trigger: trigger}, nil
}

func TestScheduledRun_SkipsWhileGateHeld(t *testing.T) {
	runner := &countingRunner{}
	svc := pipeline.NewService(runner, nil)

	svc.Gate().TryAcquire("http")
	scheduledRun(context.Background(), svc)()
	if n := runner.calls.Load(); n != 0 {
		t.Errorf("runner called %d times while gate held", n)
	}
	svc.Gate().Release()

	scheduledRun(context.Background(), svc)()
	if n := runner.calls.Load(); n != 1 {
		t.Errorf("runner called %d times, want 1", n)
	}
	report, ok := svc.Last()
	if !ok || report.Trigger != "schedule" {
		t.Errorf("Last() = %+v, %v", report, ok)
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{l: slog.New(slog.NewTextHandler(&buf, nil))}
	l.Info("wake", "now", "x")
	l.Error(errors.New("boom"), "job failed", "entry", 1)

	out := buf.String()
	if strings.Contains(out, "wake") {
		t.Error("cron info logged above debug")
	}
	if !strings.Contains(out, "job failed") || !strings.Contains(out, "error=boom") {
		t.Errorf("error line = %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "absent.env")
	good := filepath.Join(dir, "good.csv")
	bad := filepath.Join(dir, "bad.csv")
	header := "Transaction ID,Date,Customer ID,Gender,Age,Product Category,Quantity,Price per Unit,Total Amount\n"
	if err := os.WriteFile(good, []byte(header+"1,2023-11-24,CUST001,Male,34,Beauty,3,50,150\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte(header+"1,someday,CUST001,Male,34,Beauty,3,50,150\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if out, err := execute(t, "validate", "--env-file", env, good); err != nil {
		t.Errorf("validate good.csv: %v\n%s", err, out)
	}

	out, err := execute(t, "validate", "--env-file", env, bad)
	if err == nil {
		t.Fatal("validate bad.csv succeeded")
	}
	if !strings.Contains(out, "line 2 column date") {
		t.Errorf("output does not name the rejected cell:\n%s", out)
	}
}

func TestNewApp_AsOfFollowsClockUnlessPinned(t *testing.T) {
	c := &config.Config{
		Database: config.DatabaseConfig{Host: "localhost", Port: 5432, User: "pipeline", Name: "sales"},
		Load:     config.LoadConfig{Table: tables.RetailSales},
		Batch:    config.BatchConfig{OutputDir: t.TempDir()},
	}

	a, err := newApp(context.Background(), c)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	y, m, d := time.Now().UTC().Date()
	if today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC); !a.loader.AsOfDate().Equal(today) {
		t.Errorf("AsOfDate() = %v, want today %v", a.loader.AsOfDate(), today)
	}

	c.Load.AsOf = "2024-01-31"
	a, err = newApp(context.Background(), c)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC); !a.loader.AsOfDate().Equal(want) {
		t.Errorf("AsOfDate() = %v, want pinned %v", a.loader.AsOfDate(), want)
	}
}
