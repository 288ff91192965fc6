package hydrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/metadata"
)

type widget struct {
	ID   int64  `orm:"column=id"`
	Name string `orm:"column=name"`
}

func (widget) TableName() string { return "widgets" }

func widgetTable() *metadata.TableDefinition {
	t := metadata.NewTableDefinition("widgets")
	t.AddColumn(&metadata.ColumnDefinition{Name: "id", PropertyName: "ID", Type: metadata.BigInt, IsPrimaryKey: true, PKStrategy: metadata.PKAuto})
	t.AddColumn(&metadata.ColumnDefinition{Name: "name", PropertyName: "Name", Type: metadata.Varchar})
	return t
}

func TestBuildResourceMetadataMapsFieldsToColumns(t *testing.T) {
	metadata.ResetCacheForTests()
	rm := BuildResourceMetadata(widget{}, widgetTable())

	assert.Equal(t, "id", rm.PKColumn)
	assert.Equal(t, "ID", rm.PKProperty)
	require.Contains(t, rm.FieldIndexByColumn, "name")
	require.Contains(t, rm.FieldIndexByProp, "Name")
}

func TestBuildResourceMetadataIsCachedPerType(t *testing.T) {
	metadata.ResetCacheForTests()
	first := BuildResourceMetadata(widget{}, widgetTable())
	second := BuildResourceMetadata(widget{}, metadata.NewTableDefinition("widgets"))

	assert.Same(t, first, second, "second call must return the cached metadata, ignoring the new table argument")
}
