package upsert

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/hydrate"
	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type recordingAdapter struct {
	query string
	args  []any
	result sql.Result
	err    error
}

func (a *recordingAdapter) Query(_ context.Context, _ string, _ ...any) (*poolsql.QueryResult, error) {
	return &poolsql.QueryResult{}, nil
}

func (a *recordingAdapter) Exec(_ context.Context, query string, args ...any) (sql.Result, error) {
	a.query, a.args = query, args
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

type widgetRow struct {
	ID   int64
	Name string
}

func (widgetRow) TableName() string { return "widgets" }

func widgetRowMetadata(t *testing.T) *metadata.ResourceMetadata {
	t.Helper()
	metadata.ResetCacheForTests()
	table := metadata.NewTableDefinition("widgets")
	table.AddColumn(&metadata.ColumnDefinition{Name: "id", PropertyName: "ID", Type: metadata.BigInt, IsPrimaryKey: true, PKStrategy: metadata.PKAuto})
	table.AddColumn(&metadata.ColumnDefinition{Name: "name", PropertyName: "Name", Type: metadata.Varchar})
	return hydrate.BuildResourceMetadata(widgetRow{}, table)
}

func TestBatchRendersInsertOnDuplicateKeyUpdate(t *testing.T) {
	rm := widgetRowMetadata(t)
	adapter := &recordingAdapter{result: fakeResult{affected: 1}}

	counts, err := Batch(context.Background(), adapter, rm, []any{&widgetRow{ID: 1, Name: "Bolt"}})
	require.NoError(t, err)

	assert.Contains(t, adapter.query, "INSERT INTO `widgets`")
	assert.Contains(t, adapter.query, "ON DUPLICATE KEY UPDATE")
	assert.Equal(t, 1, counts.Inserted)
}

func TestBatchEmptyResourcesIsNoop(t *testing.T) {
	rm := widgetRowMetadata(t)
	adapter := &recordingAdapter{}

	counts, err := Batch(context.Background(), adapter, rm, nil)
	require.NoError(t, err)
	assert.Equal(t, &Counts{}, counts)
	assert.Empty(t, adapter.query)
}

func TestInterpretAffectedClassifiesInsertsUpdatesUnchanged(t *testing.T) {
	// all-new rows: each contributes 1 to the affected count.
	assert.Equal(t, &Counts{Supplied: 3, Inserted: 3, Updated: 0, Unchanged: 0}, interpretAffected(3, 3))

	// all-updated rows: each contributes 2.
	assert.Equal(t, &Counts{Supplied: 3, Inserted: 0, Updated: 3, Unchanged: 0}, interpretAffected(3, 6))

	// all-unchanged rows: each contributes 0.
	assert.Equal(t, &Counts{Supplied: 3, Inserted: 0, Updated: 0, Unchanged: 3}, interpretAffected(3, 0))

	// a mix of 1 inserted and 2 updated: affected = 1*1 + 2*2 = 5.
	assert.Equal(t, &Counts{Supplied: 3, Inserted: 1, Updated: 2, Unchanged: 0}, interpretAffected(3, 5))
}

func TestAssignUUIDPrimaryKeysFillsUUIDStrategy(t *testing.T) {
	metadata.ResetCacheForTests()
	table := metadata.NewTableDefinition("sessions")
	table.AddColumn(&metadata.ColumnDefinition{Name: "id", PropertyName: "ID", Type: metadata.Char, IsPrimaryKey: true, PKStrategy: metadata.PKUUID})
	rm := hydrate.BuildResourceMetadata(sessionRow{}, table)

	s := &sessionRow{}
	assignUUIDPrimaryKeys(rm, []any{s})
	assert.NotEmpty(t, s.ID)
}

type sessionRow struct {
	ID string
}

func (sessionRow) TableName() string { return "sessions" }
