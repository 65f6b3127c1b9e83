package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/salespipe/internal/logging"
)

// Loader replaces the contents of a target table with a dataset and records
// the run in the namespace's run_log. Everything happens in one transaction:
// either the table holds exactly the new rows and a run_log row exists, or
// nothing changed.
type Loader struct {
	connector Connector
	asOf      time.Time
	now       func() time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithAsOf pins the logical date recorded in run_log. Without it every load
// records the clock's current day (UTC).
func WithAsOf(t time.Time) LoaderOption {
	return func(l *Loader) { l.asOf = t }
}

// WithClock overrides the clock used for the default as-of date.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

// NewLoader creates a Loader.
func NewLoader(connector Connector, opts ...LoaderOption) *Loader {
	l := &Loader{connector: connector, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AsOfDate returns the date a load started now would record.
func (l *Loader) AsOfDate() time.Time {
	if !l.asOf.IsZero() {
		return l.asOf
	}
	y, m, d := l.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Load projects ds onto def and replaces namespace.table with the result.
//
// Dataset columns absent from def are dropped. RowsLoaded in the returned
// record is the dataset row count. The connection is closed on every path.
func (l *Loader) Load(ctx context.Context, ds *Dataset, def TableDefinition, namespace, table string) (AuditRecord, error) {
	return l.LoadAsOf(ctx, ds, def, namespace, table, l.AsOfDate())
}

// LoadAsOf is Load with the run_log date supplied by the caller, for callers
// that also stamp the dataset with it.
func (l *Loader) LoadAsOf(ctx context.Context, ds *Dataset, def TableDefinition, namespace, table string, asOf time.Time) (AuditRecord, error) {
	logger := logging.WithFields(ctx, "table", namespace+"."+table, "source", ds.Source)

	proj, err := Project(ds.Columns, def)
	if err != nil {
		return AuditRecord{}, err
	}
	if dropped := len(ds.Columns) - len(proj); dropped > 0 {
		logger.Debug("columns outside definition dropped", "dropped", dropped, "kept", proj.Names())
	}

	conn, err := l.connector.Connect(ctx)
	if err != nil {
		return AuditRecord{}, err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	tx, err := conn.Begin(ctx)
	if err != nil {
		return AuditRecord{}, NewError(KindConnection, "begin", err)
	}
	// No-op once committed.
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := ensureTable(ctx, tx, proj, namespace, table); err != nil {
		return AuditRecord{}, err
	}

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{namespace, table}.Sanitize()); err != nil {
		return AuditRecord{}, classify(KindSchemaConflict, "truncate", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{namespace, table}, proj.Names(), newProjectedSource(ds, proj))
	if err != nil {
		if KindOf(err) != "" {
			return AuditRecord{}, err
		}
		return AuditRecord{}, classify(KindTransfer, "copy", err)
	}
	if int(copied) != ds.Len() {
		return AuditRecord{}, NewError(KindTransfer, "copy",
			fmt.Errorf("copied %d rows, dataset has %d", copied, ds.Len()))
	}

	rec := AuditRecord{
		AsOf:       asOf,
		RowsLoaded: ds.Len(),
		SourceFile: ds.Source,
	}
	if err := appendRunLog(ctx, tx, namespace, &rec); err != nil {
		return AuditRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AuditRecord{}, classify(KindTransfer, "commit", err)
	}

	logger.Info("table replaced",
		"rows", rec.RowsLoaded,
		"columns", len(proj),
		"run_log_id", rec.ID,
	)
	return rec, nil
}

// ensureTable creates the namespace and a table of the projected columns
// when absent, and checks an existing table can take them. It never alters
// an existing table.
func ensureTable(ctx context.Context, tx DBTX, proj Projection, namespace, table string) error {
	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{namespace}.Sanitize()); err != nil {
		return classify(KindSchemaConflict, "create_schema", err)
	}

	var relkind string
	err := tx.QueryRow(ctx, relkindSQL, namespace, table).Scan(&relkind)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, createTableSQL(proj, namespace, table)); err != nil {
			return classify(KindSchemaConflict, "create_table", err)
		}
		return nil
	case err != nil:
		return classify(KindSchemaConflict, "inspect_table", err)
	case relkind != "r" && relkind != "p":
		return NewError(KindSchemaConflict, "inspect_table",
			fmt.Errorf("%s.%s exists as %s, not a table", namespace, table, relkindName(relkind)))
	}

	rows, err := tx.Query(ctx, columnsSQL, namespace, table)
	if err != nil {
		return classify(KindSchemaConflict, "inspect_columns", err)
	}
	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return classify(KindSchemaConflict, "inspect_columns", err)
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	var missing []string
	for _, c := range proj {
		if !have[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return NewError(KindSchemaConflict, "inspect_columns",
			fmt.Errorf("%s.%s lacks columns %s", namespace, table, strings.Join(missing, ", ")))
	}
	return nil
}

const relkindSQL = `SELECT c.relkind::text
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2`

const columnsSQL = `SELECT column_name::text
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

func createTableSQL(proj Projection, namespace, table string) string {
	cols := make([]string, len(proj))
	for i, c := range proj {
		cols[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type.SQL()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)",
		pgx.Identifier{namespace, table}.Sanitize(), strings.Join(cols, ", "))
}

func relkindName(k string) string {
	switch k {
	case "v":
		return "a view"
	case "m":
		return "a materialized view"
	case "S":
		return "a sequence"
	case "i", "I":
		return "an index"
	case "f":
		return "a foreign table"
	case "c":
		return "a composite type"
	}
	return "relation kind " + k
}

// projectedSource feeds dataset rows to COPY, converting each projected cell
// to its declared type. A rejected cell stops the copy with a TransferError.
type projectedSource struct {
	ds     *Dataset
	proj   Projection
	idx    int
	values []any
	err    error
}

func newProjectedSource(ds *Dataset, proj Projection) *projectedSource {
	return &projectedSource{ds: ds, proj: proj, idx: -1, values: make([]any, len(proj))}
}

func (s *projectedSource) Next() bool {
	if s.err != nil {
		return false
	}
	s.idx++
	if s.idx >= s.ds.Len() {
		return false
	}

	if cellErr := convertRow(s.ds, s.proj, s.idx, s.values); cellErr != nil {
		s.err = NewError(KindTransfer, "convert", cellErr)
		return false
	}
	return true
}

func (s *projectedSource) Values() ([]any, error) {
	return s.values, nil
}

func (s *projectedSource) Err() error {
	return s.err
}

var _ pgx.CopyFromSource = (*projectedSource)(nil)

// dateParam converts an as-of date for binding.
func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}
