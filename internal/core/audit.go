package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// RunLogTable is the audit table created in each target namespace.
const RunLogTable = "run_log"

func runLogDDL(namespace string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          serial PRIMARY KEY,
	run_ts      timestamptz NOT NULL DEFAULT now(),
	ds          date,
	rows_loaded integer,
	source_file text
)`, pgx.Identifier{namespace, RunLogTable}.Sanitize())
}

// appendRunLog creates run_log when absent and inserts rec, filling in the
// store-assigned ID and RunTS.
func appendRunLog(ctx context.Context, tx DBTX, namespace string, rec *AuditRecord) error {
	if _, err := tx.Exec(ctx, runLogDDL(namespace)); err != nil {
		return classify(KindSchemaConflict, "create_run_log", err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (ds, rows_loaded, source_file) VALUES ($1, $2, $3) RETURNING id, run_ts",
		pgx.Identifier{namespace, RunLogTable}.Sanitize(),
	)
	err := tx.QueryRow(ctx, insert, dateParam(rec.AsOf), int32(rec.RowsLoaded), ToPgText(rec.SourceFile)).
		Scan(&rec.ID, &rec.RunTS)
	if err != nil {
		return classify(KindTransfer, "insert_run_log", err)
	}
	return nil
}

// History returns the newest run_log entries of namespace, newest first.
// A namespace that has never been loaded has no history and no error.
func (l *Loader) History(ctx context.Context, namespace string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	conn, err := l.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	return queryRunLog(ctx, conn, namespace, limit)
}

func queryRunLog(ctx context.Context, q DBTX, namespace string, limit int) ([]AuditRecord, error) {
	query := fmt.Sprintf(
		"SELECT id, run_ts, ds, rows_loaded, source_file FROM %s ORDER BY id DESC LIMIT $1",
		pgx.Identifier{namespace, RunLogTable}.Sanitize(),
	)

	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return emptyIfUndefined(err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditRecord, error) {
		var (
			rec    AuditRecord
			ds     pgtype.Date
			loaded pgtype.Int4
			source pgtype.Text
		)
		if err := row.Scan(&rec.ID, &rec.RunTS, &ds, &loaded, &source); err != nil {
			return AuditRecord{}, err
		}
		if ds.Valid {
			rec.AsOf = ds.Time
		}
		rec.RowsLoaded = int(loaded.Int32)
		rec.SourceFile = source.String
		return rec, nil
	})
	if err != nil {
		return emptyIfUndefined(err)
	}
	return records, nil
}

// emptyIfUndefined turns "relation does not exist" into an empty result.
func emptyIfUndefined(err error) ([]AuditRecord, error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "42P01" || pgErr.Code == "3F000") {
		return []AuditRecord{}, nil
	}
	return nil, classify(KindTransfer, "query_run_log", err)
}
