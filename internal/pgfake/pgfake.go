// Package pgfake provides scriptable in-memory stand-ins for pgx connections,
// transactions and result sets, for tests that must not reach a server.
package pgfake

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn records every statement it receives and answers through the optional
// hook functions. Unset hooks succeed with empty results.
type Conn struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFromFunc func(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)

	BeginErr  error
	CommitErr error

	mu         sync.Mutex
	statements []string
	copied     [][]any
	committed  bool
	rolledBack bool
	closed     bool
}

func (c *Conn) record(sql string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, sql)
}

// Statements returns every SQL text seen, in order.
func (c *Conn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// Executed reports whether any statement contained substr.
func (c *Conn) Executed(substr string) bool {
	for _, s := range c.Statements() {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// Copied returns the rows received by the default CopyFrom.
func (c *Conn) Copied() [][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copied
}

// Committed reports whether a transaction was committed.
func (c *Conn) Committed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// RolledBack reports whether an uncommitted transaction was rolled back.
func (c *Conn) RolledBack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rolledBack
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.record(sql)
	if c.ExecFunc != nil {
		return c.ExecFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.record(sql)
	if c.QueryFunc != nil {
		return c.QueryFunc(ctx, sql, args...)
	}
	return NewRows(nil), nil
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.record(sql)
	if c.QueryRowFunc != nil {
		return c.QueryRowFunc(ctx, sql, args...)
	}
	return NewRows(nil)
}

func (c *Conn) Begin(ctx context.Context) (pgx.Tx, error) {
	if c.BeginErr != nil {
		return nil, c.BeginErr
	}
	return &Tx{conn: c}, nil
}

func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Tx forwards statements to its Conn. Methods it does not override panic.
type Tx struct {
	pgx.Tx
	conn *Conn
	done bool
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.Exec(ctx, sql, args...)
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.Query(ctx, sql, args...)
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.conn.QueryRow(ctx, sql, args...)
}

func (t *Tx) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	t.conn.record("COPY " + table.Sanitize())
	if t.conn.CopyFromFunc != nil {
		return t.conn.CopyFromFunc(ctx, table, columns, src)
	}

	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		row := append([]any(nil), vals...)
		t.conn.mu.Lock()
		t.conn.copied = append(t.conn.copied, row)
		t.conn.mu.Unlock()
		n++
	}
	return n, src.Err()
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if t.conn.CommitErr != nil {
		return t.conn.CommitErr
	}
	t.done = true
	t.conn.mu.Lock()
	t.conn.committed = true
	t.conn.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.conn.mu.Lock()
	t.conn.rolledBack = true
	t.conn.mu.Unlock()
	return nil
}

// Rows is a fixed result set. It also serves as a pgx.Row, scanning the
// first row or returning pgx.ErrNoRows.
type Rows struct {
	pgx.Rows
	fields []string
	data   [][]any
	idx    int
	err    error
	closed bool
}

// NewRows builds a result set with the given column names and rows.
func NewRows(fields []string, data ...[]any) *Rows {
	return &Rows{fields: fields, data: data, idx: -1}
}

// WithErr makes the result set fail with err once the rows are exhausted.
func (r *Rows) WithErr(err error) *Rows {
	r.err = err
	return r
}

func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	if r.idx >= len(r.data) {
		r.closed = true
		return false
	}
	return true
}

func (r *Rows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, fmt.Errorf("pgfake: no current row")
	}
	return append([]any(nil), r.data[r.idx]...), nil
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx < 0 {
		// Used as pgx.Row.
		defer r.Close()
		if !r.Next() {
			if r.err != nil {
				return r.err
			}
			return pgx.ErrNoRows
		}
	}
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("pgfake: scan %d destinations into %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("pgfake: column %d: %w", i, err)
		}
	}
	return nil
}

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.fields))
	for i, f := range r.fields {
		fds[i] = pgconn.FieldDescription{Name: f}
	}
	return fds
}

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.data)))
}

func (r *Rows) Err() error {
	if r.closed {
		return r.err
	}
	return nil
}

func (r *Rows) Close() {
	r.closed = true
}

// assign stores v into the pointer dest. Scanner destinations receive v
// through Scan; everything else needs an assignable or convertible type.
func assign(dest, v any) error {
	if s, ok := dest.(interface{ Scan(any) error }); ok {
		return s.Scan(v)
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	elem := dv.Elem()
	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	sv := reflect.ValueOf(v)
	switch {
	case sv.Type().AssignableTo(elem.Type()):
		elem.Set(sv)
	case sv.Type().ConvertibleTo(elem.Type()):
		elem.Set(sv.Convert(elem.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", v, elem.Type())
	}
	return nil
}
