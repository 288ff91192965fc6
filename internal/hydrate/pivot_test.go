package hydrate

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
	"github.com/semitexa/semitexa-orm/internal/txnmgr"
)

type recordingPivotAdapter struct {
	execs []string
	args  [][]any
}

func (a *recordingPivotAdapter) Query(_ context.Context, _ string, _ ...any) (*poolsql.QueryResult, error) {
	return &poolsql.QueryResult{}, nil
}

func (a *recordingPivotAdapter) Exec(_ context.Context, query string, args ...any) (sql.Result, error) {
	a.execs = append(a.execs, query)
	a.args = append(a.args, args)
	return nil, nil
}

func userRolesRelation() *metadata.RelationMeta {
	return &metadata.RelationMeta{
		Property: "Roles", Kind: metadata.ManyToMany,
		TargetTable: "roles", PivotTable: "user_roles",
		ForeignKey: "user_id", RelatedKey: "role_id",
	}
}

func TestSyncManyToManyRequiresAManagerOutsideAnExistingTransaction(t *testing.T) {
	rel := userRolesRelation()
	adapter := &recordingPivotAdapter{}

	assert.Panics(t, func() {
		_ = SyncManyToMany(context.Background(), adapter, nil, rel, int64(1), []any{int64(10), int64(20)})
	}, "calling without an active transaction or a manager to start one is a programmer error")
}

func TestSyncManyToManyJoinsExistingTransactionViaAdapter(t *testing.T) {
	rel := userRolesRelation()
	adapter := &recordingPivotAdapter{}

	err := SyncManyToMany(txnmgr.ContextForTests(context.Background()), adapter, nil, rel, int64(1), []any{int64(10), int64(20)})
	require.NoError(t, err)

	require.Len(t, adapter.execs, 2)
	assert.Contains(t, adapter.execs[0], "DELETE FROM `user_roles`")
	assert.Contains(t, adapter.execs[1], "INSERT INTO `user_roles`")
	assert.Equal(t, []any{int64(1), int64(10), int64(1), int64(20)}, adapter.args[1])
}

func TestSyncManyToManySkipsInsertWhenRelatedEmpty(t *testing.T) {
	rel := userRolesRelation()
	adapter := &recordingPivotAdapter{}

	err := SyncManyToMany(txnmgr.ContextForTests(context.Background()), adapter, nil, rel, int64(1), nil)
	require.NoError(t, err)
	require.Len(t, adapter.execs, 1, "an empty related set must still clear the pivot without an insert")
}

func TestAttachManyToManyOnlyInserts(t *testing.T) {
	rel := userRolesRelation()
	adapter := &recordingPivotAdapter{}

	err := AttachManyToMany(txnmgr.ContextForTests(context.Background()), adapter, nil, rel, int64(1), []any{int64(30)})
	require.NoError(t, err)
	require.Len(t, adapter.execs, 1)
	assert.Contains(t, adapter.execs[0], "INSERT INTO `user_roles`")
}

func TestAttachManyToManyNoopOnEmptyRelatedIDs(t *testing.T) {
	rel := userRolesRelation()
	adapter := &recordingPivotAdapter{}

	err := AttachManyToMany(context.Background(), adapter, nil, rel, int64(1), nil)
	require.NoError(t, err)
	assert.Empty(t, adapter.execs)
}

func TestSyncManyToManyRejectsNonManyToManyRelation(t *testing.T) {
	rel := &metadata.RelationMeta{Property: "Author", Kind: metadata.BelongsTo}
	err := SyncManyToMany(context.Background(), &recordingPivotAdapter{}, nil, rel, int64(1), []any{int64(2)})
	assert.Error(t, err)
}
