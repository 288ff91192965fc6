// Package poolsql implements the connection pool contract spec.md §5
// describes and the single-connection adapter every repository operation
// executes through. No example repo in the corpus hand-rolls a pool of
// its own — both the teacher and Onyx-Go-framework hand pooling fully to
// database/sql's internal pool — so this package is grounded on the
// general Go idiom for a semaphore-backed pool (a channel of idle slots
// plus a sync/atomic counter for the "created so far" CAS) rather than on
// a specific example file; see DESIGN.md.
package poolsql

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/semitexa/semitexa-orm/internal/errs"
)

// Connection is a single claimed database/sql connection. It is never
// exposed outside of one Query/Exec call by the adapters built on top of
// it; every row is materialized before the call returns (§5, §9 open
// question 2).
type Connection struct {
	conn *sql.Conn
	pool *Pool
}

// Validate issues SELECT 1 to confirm the connection is still alive,
// per §5's stale-connection revalidation requirement.
func (c *Connection) Validate(ctx context.Context) error {
	var one int
	return c.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (c *Connection) raw() *sql.Conn { return c.conn }

// Raw exposes the underlying *sql.Conn to the transaction manager, the one
// caller allowed to BeginTx directly; every other caller goes through the
// Adapter interface so no live cursor ever escapes a Query/Exec call.
func (c *Connection) Raw() *sql.Conn { return c.conn }

func (c *Connection) close() error { return c.conn.Close() }

// Pool is the fixed-upper-bound connection pool. Connections are created
// lazily: no connection is opened until the first demand, and the
// "created so far" counter is advanced with a compare-and-swap against the
// limit so two concurrent Pop calls can never both cross the bound.
type Pool struct {
	db      *sql.DB
	limit   int32
	created atomic.Int32
	idle    chan *Connection
	closed  atomic.Bool
}

// NewPool returns a pool bounded at limit connections against db. db
// itself is expected to already be opened (sql.Open merely validates the
// DSN string; it does not dial).
func NewPool(db *sql.DB, limit int) *Pool {
	if limit <= 0 {
		limit = 1
	}
	return &Pool{
		db:    db,
		limit: int32(limit),
		idle:  make(chan *Connection, limit),
	}
}

// Pop claims a connection, waiting up to timeout when the pool is at
// capacity and none are idle. A zero timeout never waits.
func (p *Pool) Pop(ctx context.Context, timeout time.Duration) (*Connection, error) {
	if p.closed.Load() {
		return nil, errs.PoolTimeout("pool is closed")
	}

	// An idle connection is reused before anything else, so the pool only
	// grows when every existing connection is in use.
	select {
	case c, ok := <-p.idle:
		if !ok {
			return nil, errs.PoolTimeout("pool is closed")
		}
		if err := c.Validate(ctx); err != nil {
			_ = c.close()
			// slot count is not incremented on replacement (§5)
			return p.dial(ctx)
		}
		return c, nil
	default:
	}

	// Lazy creation: claim a fresh slot before waiting on the idle set,
	// so an unopened pool never blocks its first callers.
	if p.tryClaimSlot() {
		c, err := p.dial(ctx)
		if err != nil {
			p.created.Add(-1)
			return nil, err
		}
		return c, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case c, ok := <-p.idle:
			if !ok {
				return nil, errs.PoolTimeout("pool is closed")
			}
			if err := c.Validate(ctx); err != nil {
				_ = c.close()
				// slot count is not incremented on replacement (§5)
				return p.dial(ctx)
			}
			return c, nil
		case <-deadline.C:
			return nil, errs.PoolTimeout(fmt.Sprintf("timed out after %s waiting for a connection", timeout))
		case <-ctx.Done():
			return nil, errs.PoolTimeout(ctx.Err().Error())
		}
	}
}

// tryClaimSlot atomically reserves one "created" slot against the limit,
// the CAS spec.md §5 requires so two concurrent Pops never both cross it.
func (p *Pool) tryClaimSlot() bool {
	for {
		cur := p.created.Load()
		if cur >= p.limit {
			return false
		}
		if p.created.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (p *Pool) dial(ctx context.Context) (*Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("poolsql: dial: %w", err)
	}
	return &Connection{conn: conn, pool: p}, nil
}

// Push returns a connection to the idle set. Pushing to a closed pool
// discards the connection outright.
func (p *Pool) Push(c *Connection) {
	if c == nil {
		return
	}
	if p.closed.Load() {
		_ = c.close()
		return
	}
	select {
	case p.idle <- c:
	default:
		_ = c.close()
		p.created.Add(-1)
	}
}

// Close discards every idle connection; connections already popped are
// closed as they're pushed back. Future Pops fail.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.idle)
	var firstErr error
	for c := range p.idle {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Size reports the number of connections created so far (idle + in use).
func (p *Pool) Size() int { return int(p.created.Load()) }

// Available reports the number of additional connections that could still
// be created before hitting the limit.
func (p *Pool) Available() int { return int(p.limit - p.created.Load()) }
