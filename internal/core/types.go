package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the statement surface shared by a connection and a transaction.
// Satisfied by *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is one exclusively owned store connection. Satisfied by *pgx.Conn.
type Conn interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Connector opens connections. Each caller owns and closes what it opens.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ColumnType is the closed set of relational types a column can declare.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeNumeric
	TypeDate
)

// SQL returns the PostgreSQL type name used in CREATE TABLE.
func (t ColumnType) SQL() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeNumeric:
		return "numeric"
	case TypeDate:
		return "date"
	default:
		return "text"
	}
}

func (t ColumnType) String() string {
	return t.SQL()
}

// Column declares one canonical column name and its type.
type Column struct {
	Name string // canonical (normalized) name, also the table column identifier
	Type ColumnType
}

// TableDefinition is the schema definition for one target table.
// Columns are in declaration order; lookups go through Lookup.
type TableDefinition struct {
	Key     string // registry key and default table name: "retail_sales"
	Label   string // display name
	Columns []Column
}

// Lookup returns the declared column for a canonical name.
func (d TableDefinition) Lookup(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ProjectedColumn is one admitted dataset column.
type ProjectedColumn struct {
	Name  string     // canonical name
	Type  ColumnType // declared type
	Index int        // position in the dataset row
}

// Projection is the ordered subset of dataset columns present in the definition.
type Projection []ProjectedColumn

// Names returns the column identifiers in projection order.
func (p Projection) Names() []string {
	names := make([]string, len(p))
	for i, c := range p {
		names[i] = c.Name
	}
	return names
}

// AuditRecord is one row of the run log.
type AuditRecord struct {
	ID         int64     `json:"id"`
	RunTS      time.Time `json:"runTs"`
	AsOf       time.Time `json:"ds"`
	RowsLoaded int       `json:"rowsLoaded"`
	SourceFile string    `json:"sourceFile"`
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}
