package syncengine

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

type fakeAdapter struct {
	execCalls []string
	failAfter int
	err       error
}

func (a *fakeAdapter) Query(_ context.Context, _ string, _ ...any) (*poolsql.QueryResult, error) {
	return &poolsql.QueryResult{}, nil
}

func (a *fakeAdapter) Exec(_ context.Context, query string, _ ...any) (sql.Result, error) {
	a.execCalls = append(a.execCalls, query)
	if a.failAfter > 0 && len(a.execCalls) == a.failAfter {
		return nil, a.err
	}
	return nil, nil
}

func planWithSteps(kinds ...StepKind) *Plan {
	p := &Plan{}
	for i, k := range kinds {
		p.Steps = append(p.Steps, Step{Kind: k, Table: "widgets", SQL: "ALTER TABLE widgets /* step */", Note: ""})
		_ = i
	}
	return p
}

func TestRunRefusesDestructivePlanWithoutAllowFlag(t *testing.T) {
	plan := planWithSteps(DropColumn)
	adapter := &fakeAdapter{}

	_, err := Run(context.Background(), plan, adapter, nil, &poolsql.Capabilities{}, Options{})
	require.Error(t, err)
	assert.Empty(t, adapter.execCalls)
}

func TestRunDryRunExecutesNothingButWritesHistory(t *testing.T) {
	plan := planWithSteps(AddColumn)
	adapter := &fakeAdapter{}
	root := t.TempDir()

	result, err := Run(context.Background(), plan, adapter, nil, &poolsql.Capabilities{SupportsAtomicDDL: true},
		Options{DryRun: true, HistoryRoot: root})
	require.NoError(t, err)

	assert.False(t, result.Executed)
	assert.Empty(t, adapter.execCalls)
	assert.FileExists(t, result.HistoryJSONPath)
	assert.FileExists(t, result.HistorySQLPath)
}

func TestRunNonTransactionalExecutesEachStatementOnAdapter(t *testing.T) {
	plan := planWithSteps(AddColumn, AddIndex)
	adapter := &fakeAdapter{}

	result, err := Run(context.Background(), plan, adapter, nil, &poolsql.Capabilities{SupportsAtomicDDL: false}, Options{})
	require.NoError(t, err)

	assert.True(t, result.Executed)
	assert.False(t, result.Transactional)
	assert.Equal(t, 2, result.StatementsRun)
	assert.Len(t, adapter.execCalls, 2)
}

func TestRunNonTransactionalStopsAtFirstFailureLeavingPriorStatementsApplied(t *testing.T) {
	plan := planWithSteps(AddColumn, AddIndex, AddForeignKey)
	boom := errors.New("boom")
	adapter := &fakeAdapter{failAfter: 2, err: boom}

	result, err := Run(context.Background(), plan, adapter, nil, &poolsql.Capabilities{SupportsAtomicDDL: false}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, result.StatementsRun, "the failing statement must not count as applied")
	assert.False(t, result.Executed)
}

func TestRunEmptyPlanIsNoop(t *testing.T) {
	plan := &Plan{}
	adapter := &fakeAdapter{}

	result, err := Run(context.Background(), plan, adapter, nil, &poolsql.Capabilities{SupportsAtomicDDL: true}, Options{})
	require.NoError(t, err)
	assert.False(t, result.Executed)
	assert.Empty(t, adapter.execCalls)
}

func TestRunSkipsHistoryWhenRootEmpty(t *testing.T) {
	plan := planWithSteps(AddColumn)
	adapter := &fakeAdapter{}

	result, err := Run(context.Background(), plan, adapter, nil, &poolsql.Capabilities{SupportsAtomicDDL: false}, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.HistoryJSONPath)
	assert.Empty(t, result.HistorySQLPath)
}
