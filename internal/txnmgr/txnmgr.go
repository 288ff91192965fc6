// Package txnmgr implements the run(callback) transaction primitive of
// spec.md §5: claim one connection for the callback's duration, BEGIN,
// invoke the callback with a single-connection adapter view, then COMMIT
// or ROLLBACK and rethrow. Nested runs on the same flow reuse the outer
// connection and wrap the body in a SAVEPOINT instead of a new
// transaction. Grounded on the teacher's applyWithTransaction
// (internal/apply/apply.go) for the begin/commit/rollback shape, extended
// with savepoint nesting the teacher's flat transaction use never needs.
package txnmgr

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

// flowKey is the context key a nested Run uses to find the transaction
// already open on this flow.
type flowKey struct{}

type flowState struct {
	tx    *sql.Tx
	depth int
}

// Manager claims connections from a pool to run transactional flows.
type Manager struct {
	Pool *poolsql.Pool
}

func NewManager(pool *poolsql.Pool) *Manager {
	return &Manager{Pool: pool}
}

// Run claims one connection for the duration of fn, issues BEGIN, invokes
// fn with a single-connection adapter, and commits on success or rolls
// back and rethrows on error. A Run nested inside another Run on the same
// context reuses the outer transaction via SAVEPOINT sp_{depth} instead of
// opening a second one.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context, a poolsql.Adapter) error) error {
	if outer, ok := ctx.Value(flowKey{}).(*flowState); ok {
		return m.runNested(ctx, outer, fn)
	}

	conn, err := m.Pool.Pop(ctx, 0)
	if err != nil {
		return err
	}
	defer m.Pool.Push(conn)

	tx, err := conn.Raw().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("txnmgr: begin: %w", err)
	}

	state := &flowState{tx: tx, depth: 0}
	childCtx := context.WithValue(ctx, flowKey{}, state)

	adapter := &poolsql.ConnAdapter{Queryer: tx}
	if err := fn(childCtx, adapter); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("txnmgr: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("txnmgr: commit: %w", err)
	}
	return nil
}

func (m *Manager) runNested(ctx context.Context, outer *flowState, fn func(ctx context.Context, a poolsql.Adapter) error) error {
	depth := outer.depth + 1
	savepoint := fmt.Sprintf("sp_%d", depth)

	if _, err := outer.tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("txnmgr: savepoint: %w", err)
	}

	inner := &flowState{tx: outer.tx, depth: depth}
	childCtx := context.WithValue(ctx, flowKey{}, inner)
	adapter := &poolsql.ConnAdapter{Queryer: outer.tx}

	if err := fn(childCtx, adapter); err != nil {
		if _, rbErr := outer.tx.ExecContext(ctx, "ROLLBACK TO "+savepoint); rbErr != nil {
			return fmt.Errorf("txnmgr: %w (rollback to %s also failed: %v)", err, savepoint, rbErr)
		}
		return err
	}

	if _, err := outer.tx.ExecContext(ctx, "RELEASE "+savepoint); err != nil {
		return fmt.Errorf("txnmgr: release %s: %w", savepoint, err)
	}
	return nil
}

// InTransaction reports whether ctx already carries an open flow, letting
// callers (e.g. the pivot attach/sync helpers, §9 open question 4) decide
// whether to start their own transaction or join the caller's.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(flowKey{}).(*flowState)
	return ok
}

// ContextForTests returns a context that InTransaction reports true for,
// without opening a real connection or *sql.Tx. Callers that only need to
// exercise the "already inside a flow" branch of another package's logic
// (e.g. a pivot sync helper choosing whether to start its own Run) use
// this instead of standing up a live database just to get a flowState.
func ContextForTests(ctx context.Context) context.Context {
	return context.WithValue(ctx, flowKey{}, &flowState{})
}
