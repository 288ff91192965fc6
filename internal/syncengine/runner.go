package syncengine

import (
	"context"
	"fmt"

	"github.com/semitexa/semitexa-orm/internal/errs"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
	"github.com/semitexa/semitexa-orm/internal/txnmgr"
)

// Options controls one sync run (spec.md §4.4, §6).
type Options struct {
	DryRun           bool
	AllowDestructive bool
	// HistoryRoot is the root directory; audit files are written under
	// {HistoryRoot}/var/migrations/history. Empty skips writing an audit
	// trail.
	HistoryRoot string
}

// Result reports what a Run call did.
type Result struct {
	Plan            *Plan
	Executed        bool
	Transactional   bool
	StatementsRun   int
	HistoryJSONPath string
	HistorySQLPath  string
}

// Run executes plan according to opts. A plan containing destructive steps
// is refused unless AllowDestructive is set (§4.4, §7); a DryRun never
// touches the database but still writes the audit trail so a dry run's
// output can be reviewed before a real one. When caps.SupportsAtomicDDL is
// true the whole plan runs inside a single transaction via txnMgr;
// otherwise each statement commits independently and a failure partway
// through leaves earlier statements applied, matching the teacher's
// non-transactional apply path.
func Run(ctx context.Context, plan *Plan, adapter poolsql.Adapter, txnMgr *txnmgr.Manager,
	caps *poolsql.Capabilities, opts Options) (*Result, error) {

	if plan.HasDestructive() && !opts.AllowDestructive {
		return nil, errs.Capability("plan contains destructive operations; rerun with allowDestructive")
	}

	result := &Result{Plan: plan}

	if opts.HistoryRoot != "" {
		jsonPath, sqlPath, err := writeHistory(opts.HistoryRoot, plan)
		if err != nil {
			return nil, fmt.Errorf("syncengine: writing audit trail: %w", err)
		}
		result.HistoryJSONPath = jsonPath
		result.HistorySQLPath = sqlPath
	}

	if opts.DryRun || len(plan.Steps) == 0 {
		return result, nil
	}

	if caps != nil && caps.SupportsAtomicDDL {
		result.Transactional = true
		err := txnMgr.Run(ctx, func(ctx context.Context, tx poolsql.Adapter) error {
			for _, step := range plan.Steps {
				if _, err := tx.Exec(ctx, step.SQL); err != nil {
					return fmt.Errorf("step %s on %s failed: %w", step.Kind, step.Table, err)
				}
				result.StatementsRun++
			}
			return nil
		})
		if err != nil {
			return result, err
		}
		result.Executed = true
		return result, nil
	}

	for _, step := range plan.Steps {
		if _, err := adapter.Exec(ctx, step.SQL); err != nil {
			return result, fmt.Errorf("step %s on %s failed after %d statements: %w",
				step.Kind, step.Table, result.StatementsRun, err)
		}
		result.StatementsRun++
	}
	result.Executed = true
	return result, nil
}
