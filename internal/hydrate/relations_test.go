package hydrate

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

type fakeAdapter struct {
	queries []string
	results []*poolsql.QueryResult
	call    int
}

func (f *fakeAdapter) Query(_ context.Context, query string, _ ...any) (*poolsql.QueryResult, error) {
	f.queries = append(f.queries, query)
	if f.call >= len(f.results) {
		return &poolsql.QueryResult{}, nil
	}
	r := f.results[f.call]
	f.call++
	return r, nil
}

func (f *fakeAdapter) Exec(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return nil, nil
}

type author struct {
	ID    int64
	Name  string
	Books []*book
}

func (author) TableName() string { return "authors" }

type book struct {
	ID       int64
	AuthorID int64
	Title    string
}

func (book) TableName() string { return "books" }

func bookResourceMetadata(t *testing.T) *metadata.ResourceMetadata {
	t.Helper()
	table := metadata.NewTableDefinition("books")
	table.AddColumn(&metadata.ColumnDefinition{Name: "id", PropertyName: "ID", Type: metadata.BigInt, IsPrimaryKey: true, PKStrategy: metadata.PKAuto})
	table.AddColumn(&metadata.ColumnDefinition{Name: "author_id", PropertyName: "AuthorID", Type: metadata.BigInt})
	table.AddColumn(&metadata.ColumnDefinition{Name: "title", PropertyName: "Title", Type: metadata.Varchar})
	return BuildResourceMetadata(book{}, table)
}

func authorResourceMetadata(t *testing.T) *metadata.ResourceMetadata {
	t.Helper()
	table := metadata.NewTableDefinition("authors")
	table.AddColumn(&metadata.ColumnDefinition{Name: "id", PropertyName: "ID", Type: metadata.BigInt, IsPrimaryKey: true, PKStrategy: metadata.PKAuto})
	table.AddColumn(&metadata.ColumnDefinition{Name: "name", PropertyName: "Name", Type: metadata.Varchar})
	table.Relations["Books"] = &metadata.RelationMeta{
		Property: "Books", Kind: metadata.HasMany, TargetTable: "books", ForeignKey: "author_id",
	}
	return BuildResourceMetadata(author{}, table)
}

func TestLoadHasManyBatchesIntoOneQuery(t *testing.T) {
	metadata.ResetCacheForTests()
	authorRM := authorResourceMetadata(t)
	bookRM := bookResourceMetadata(t)

	adapter := &fakeAdapter{
		results: []*poolsql.QueryResult{
			{
				Columns: []string{"id", "author_id", "title"},
				Rows: []poolsql.Row{
					{"id": int64(1), "author_id": int64(10), "title": "Go in Practice"},
					{"id": int64(2), "author_id": int64(10), "title": "Go Deep"},
					{"id": int64(3), "author_id": int64(20), "title": "Concurrency"},
				},
			},
		},
	}

	loader := &Loader{
		Adapter: adapter,
		NewResource: func(table string) (metadata.Resource, *metadata.ResourceMetadata) {
			require.Equal(t, "books", table)
			return book{}, bookRM
		},
	}

	a1 := &author{ID: 10, Name: "Ada"}
	a2 := &author{ID: 20, Name: "Grace"}
	resources := []any{a1, a2}

	err := loader.LoadRelations(context.Background(), resources, authorRM, nil)
	require.NoError(t, err)

	assert.Len(t, adapter.queries, 1, "a batch of parents must load a relation in exactly one query")
	require.Len(t, a1.Books, 2)
	require.Len(t, a2.Books, 1)
	assert.Equal(t, "Concurrency", a2.Books[0].Title)
}

func TestLoadRelationsSkipsWhenOnlyPropsEmpty(t *testing.T) {
	metadata.ResetCacheForTests()
	authorRM := authorResourceMetadata(t)
	adapter := &fakeAdapter{}
	loader := &Loader{Adapter: adapter}

	a1 := &author{ID: 10}
	err := loader.LoadRelations(context.Background(), []any{a1}, authorRM, []string{})
	require.NoError(t, err)
	assert.Empty(t, adapter.queries)
	assert.Nil(t, a1.Books)
}

func TestLoadHasManyLeavesUnmatchedParentsEmpty(t *testing.T) {
	metadata.ResetCacheForTests()
	authorRM := authorResourceMetadata(t)
	bookRM := bookResourceMetadata(t)

	adapter := &fakeAdapter{
		results: []*poolsql.QueryResult{{Columns: []string{"id", "author_id", "title"}}},
	}
	loader := &Loader{
		Adapter: adapter,
		NewResource: func(table string) (metadata.Resource, *metadata.ResourceMetadata) {
			return book{}, bookRM
		},
	}

	a1 := &author{ID: 99}
	err := loader.LoadRelations(context.Background(), []any{a1}, authorRM, nil)
	require.NoError(t, err)
	assert.Empty(t, a1.Books)
}
