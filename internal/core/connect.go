package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgConnector opens pgx connections from one parsed configuration.
type PgConnector struct {
	config *pgx.ConnConfig
}

// NewPgConnector parses connString. A positive statementTimeout is applied
// server side to every statement on connections it opens.
func NewPgConnector(connString string, statementTimeout time.Duration) (*PgConnector, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}

	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["application_name"] = "salespipe"
	if statementTimeout > 0 {
		cfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)
	}

	return &PgConnector{config: cfg}, nil
}

// Connect opens and pings a new connection. Failures are ConnectionErrors.
func (c *PgConnector) Connect(ctx context.Context) (Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, c.config.Copy())
	if err != nil {
		return nil, NewError(KindConnection, "connect", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(context.WithoutCancel(ctx))
		return nil, NewError(KindConnection, "ping", err)
	}
	return conn, nil
}

// isConnectionFailure reports whether err means the session is gone rather
// than a statement being rejected.
func isConnectionFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P01-57P03: admin shutdown, crash, cannot connect.
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	return pgconn.SafeToRetry(err) || errors.Is(err, pgx.ErrTxClosed) || isClosedConnErr(err)
}

func isClosedConnErr(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// classify wraps a store error as kind, or as a ConnectionError when the
// session itself failed.
func classify(kind ErrorKind, op string, err error) error {
	if isConnectionFailure(err) {
		return NewError(KindConnection, op, err)
	}
	return NewError(kind, op, err)
}
