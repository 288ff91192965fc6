package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/metadata"
)

type Author struct {
	Table `orm:"name=authors"`
	ID    int64  `orm:"column=id,type=bigint,pk,pk_strategy=auto"`
	Name  string `orm:"type=varchar,length=120,filterable"`
	Books []Book `orm:"has_many,target=books,fk=author_id"`
}

func (Author) TableName() string { return "authors" }

type Book struct {
	Table  `orm:"name=books"`
	ID     int64  `orm:"column=id,type=bigint,pk,pk_strategy=auto"`
	Title  string `orm:"type=varchar,length=255"`
	Legacy string `orm:"type=varchar,length=1,deprecated"`
}

func (Book) TableName() string { return "books" }

type Tag struct {
	Table  `orm:"name=tags"`
	ID     int64  `orm:"column=id,type=bigint,pk,pk_strategy=auto"`
	Name   string `orm:"type=varchar,length=50"`
	Books  []Book `orm:"many_to_many,target=books"`
}

func (Tag) TableName() string { return "tags" }

func TestCollectSimpleTable(t *testing.T) {
	schema := Collect(Book{})
	require.True(t, schema.Valid(), schema.Errors)

	books, ok := schema.Tables["books"]
	require.True(t, ok)
	assert.Equal(t, "id", books.PrimaryKey().Name)
	assert.True(t, books.Columns["legacy"].IsDeprecated)
}

func TestCollectFilterableAddsIndex(t *testing.T) {
	schema := Collect(Author{}, Book{})
	require.True(t, schema.Valid(), schema.Errors)

	authors := schema.Tables["authors"]
	assert.Equal(t, "name", authors.FilterableColumns["Name"])
	assert.NotNil(t, authors.FindIndex("idx_authors_name"))
}

func TestCollectHasManySynthesizesForeignKeyOnTarget(t *testing.T) {
	schema := Collect(Author{}, Book{})
	require.True(t, schema.Valid(), schema.Errors)

	books := schema.Tables["books"]
	col, ok := books.Columns["author_id"]
	require.True(t, ok, "expected author_id to be synthesized on books")
	assert.Equal(t, metadata.Int, col.Type)

	var fk *metadata.ForeignKeyDefinition
	for _, f := range books.ForeignKeys {
		if f.Column == "author_id" {
			fk = f
		}
	}
	require.NotNil(t, fk)
	assert.Equal(t, "authors", fk.ReferencedTable)
}

func TestCollectManyToManySynthesizesPivot(t *testing.T) {
	schema := Collect(Tag{}, Book{})
	require.True(t, schema.Valid(), schema.Errors)

	pivot, ok := schema.Tables["books_tags"]
	require.True(t, ok, "expected books_tags pivot table")
	assert.NotNil(t, pivot.PrimaryKey())
	assert.Len(t, pivot.ForeignKeys, 2)

	rel := schema.Tables["tags"].Relations["Books"]
	require.NotNil(t, rel)
	assert.Equal(t, metadata.ManyToMany, rel.Kind)
	assert.Equal(t, "books_tags", rel.PivotTable)
}

func TestCollectMissingPrimaryKeyWarns(t *testing.T) {
	schema := Collect(noPKResource{})
	require.True(t, schema.Valid())
	assert.NotEmpty(t, schema.Warnings)
}

type noPKResource struct {
	Table `orm:"name=no_pk"`
	Name  string `orm:"type=varchar,length=10"`
}

func (noPKResource) TableName() string { return "no_pk" }

func TestCollectRejectsIncompatibleGoType(t *testing.T) {
	schema := Collect(badResource{})
	assert.False(t, schema.Valid())
}

type badResource struct {
	Table `orm:"name=bad"`
	ID    int64  `orm:"column=id,type=bigint,pk,pk_strategy=auto"`
	Count string `orm:"type=int"`
}

func (badResource) TableName() string { return "bad" }

func TestCollectStringAutoPKRejected(t *testing.T) {
	schema := Collect(stringPKResource{})
	assert.False(t, schema.Valid())
}

type stringPKResource struct {
	Table `orm:"name=str_pk"`
	ID    string `orm:"column=id,type=varchar,length=36,pk"`
}

func (stringPKResource) TableName() string { return "str_pk" }
