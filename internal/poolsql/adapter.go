package poolsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/semitexa/semitexa-orm/internal/errs"
)

// Row is one materialized result row, keyed by column name.
type Row map[string]any

// QueryResult is the fully materialized result of one query. Every row is
// read into memory before Query returns; no cursor is ever exposed to a
// caller (§5, §9 open question 2) so cooperative scheduling is always safe
// across a suspension point.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// Adapter is the interface the hydrator, relation loader, upsert and sync
// engine all execute SQL through. A single connection view (used inside a
// transaction) and the pool-backed default view both satisfy it.
type Adapter interface {
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PoolAdapter is the default Adapter: every call pops a connection from
// the pool, executes, and returns it — the suspension point described in
// §5.
type PoolAdapter struct {
	Pool *Pool
	// PopTimeout bounds how long Query/Exec wait for a free connection.
	PopTimeout func() (timeoutSeconds float64)
}

func (a *PoolAdapter) timeout() float64 {
	if a.PopTimeout != nil {
		return a.PopTimeout()
	}
	return 30
}

func (a *PoolAdapter) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	conn, err := a.Pool.Pop(ctx, secondsToDuration(a.timeout()))
	if err != nil {
		return nil, err
	}
	defer a.Pool.Push(conn)
	return materialize(ctx, conn.raw(), query, args...)
}

func (a *PoolAdapter) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := a.Pool.Pop(ctx, secondsToDuration(a.timeout()))
	if err != nil {
		return nil, err
	}
	defer a.Pool.Push(conn)
	res, err := conn.raw().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyExecError(err)
	}
	return res, nil
}

// ConnAdapter runs every call against one already-claimed connection or
// transaction, the view the transaction manager hands to a callback so
// every repository operation inside run() stays on a single connection
// (§5 ordering guarantees).
type ConnAdapter struct {
	Queryer interface {
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	}
}

func (a *ConnAdapter) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	rows, err := a.Queryer.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return materializeRows(rows)
}

func (a *ConnAdapter) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := a.Queryer.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classifyExecError(err)
	}
	return res, nil
}

func materialize(ctx context.Context, conn *sql.Conn, query string, args ...any) (*QueryResult, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyExecError(err)
	}
	defer rows.Close()
	return materializeRows(rows)
}

// materializeRows reads every row into a slice of Row maps before
// returning, the requirement that makes cooperative scheduling safe: no
// caller ever holds a live cursor across a suspension point.
func materializeRows(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	qr := &QueryResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(values[i])
		}
		qr.Rows = append(qr.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return qr, nil
}

// normalizeScanned converts database/sql's generic []byte scan result for
// textual columns into a string, leaving everything else untouched.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// classifyExecError recognizes a MySQL constraint violation (error code
// 1062/1451/1452/1048 family) and wraps it as errs.Integrity, and a
// connection-reset condition as errs.ConnectionLost, leaving everything
// else unchanged so the driver's own message still reaches the caller.
func classifyExecError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Error 1062") || strings.Contains(msg, "Error 1451") ||
		strings.Contains(msg, "Error 1452") || strings.Contains(msg, "Error 1048") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "foreign key constraint fails"):
		return &errs.Error{Kind: errs.KindIntegrity, Message: "constraint violation", Cause: err}
	case strings.Contains(msg, "invalid connection") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "driver: bad connection"):
		return &errs.Error{Kind: errs.KindConnectionLost, Message: "statement failed on a reset connection", Cause: err}
	default:
		return fmt.Errorf("poolsql: %w", err)
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
