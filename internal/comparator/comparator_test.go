package comparator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semitexa/semitexa-orm/internal/dbstate"
	"github.com/semitexa/semitexa-orm/internal/metadata"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func declaredUsersTable() *metadata.TableDefinition {
	t := metadata.NewTableDefinition("users")
	t.AddColumn(&metadata.ColumnDefinition{
		Name: "id", Type: metadata.BigInt, IsPrimaryKey: true, PKStrategy: metadata.PKAuto,
	})
	t.AddColumn(&metadata.ColumnDefinition{
		Name: "email", Type: metadata.Varchar, Length: intPtr(255),
	})
	t.AddColumn(&metadata.ColumnDefinition{
		Name: "active", Type: metadata.Boolean, Default: false,
	})
	return t
}

func liveUsersTable() *dbstate.TableState {
	t := dbstate.NewTableState("users", "")
	t.AddColumn(&dbstate.ColumnState{
		TableName: "users", ColumnName: "id", ColumnType: "bigint(20)", DataType: "bigint",
		ColumnKey: "PRI", Extra: "auto_increment",
	})
	t.AddColumn(&dbstate.ColumnState{
		TableName: "users", ColumnName: "email", ColumnType: "varchar(255)", DataType: "varchar",
	})
	t.AddColumn(&dbstate.ColumnState{
		TableName: "users", ColumnName: "active", ColumnType: "tinyint(1)", DataType: "tinyint",
		ColumnDefault: strPtr("0"),
	})
	return t
}

func TestCompareIdenticalSchemaIsEmpty(t *testing.T) {
	schema := metadata.NewSchema()
	schema.AddTable(declaredUsersTable())

	live := dbstate.NewDatabaseState()
	live.AddTable(liveUsersTable())

	diff := Compare(schema, live)
	assert.True(t, diff.IsEmpty(), "expected no diff between identical declared/live shapes")
}

func TestCompareMissingTableIsCreated(t *testing.T) {
	schema := metadata.NewSchema()
	schema.AddTable(declaredUsersTable())

	live := dbstate.NewDatabaseState()

	diff := Compare(schema, live)
	require.Len(t, diff.CreateTables, 1)
	assert.Equal(t, "users", diff.CreateTables[0].Name)
}

func TestCompareExtraLiveTableIsDropped(t *testing.T) {
	schema := metadata.NewSchema()

	live := dbstate.NewDatabaseState()
	live.AddTable(liveUsersTable())

	diff := Compare(schema, live)
	require.Len(t, diff.DropTables, 1)
	assert.Equal(t, "users", diff.DropTables[0].Name)
}

func TestCompareNewColumnIsAdded(t *testing.T) {
	declared := declaredUsersTable()
	declared.AddColumn(&metadata.ColumnDefinition{Name: "nickname", Type: metadata.Varchar, Length: intPtr(80)})

	schema := metadata.NewSchema()
	schema.AddTable(declared)

	live := dbstate.NewDatabaseState()
	live.AddTable(liveUsersTable())

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AddColumns, 1)
	assert.Equal(t, "nickname", td.AddColumns[0].Name)
}

func TestCompareRemovedColumnIsDropped(t *testing.T) {
	schema := metadata.NewSchema()
	schema.AddTable(declaredUsersTable())

	liveTable := liveUsersTable()
	liveTable.AddColumn(&dbstate.ColumnState{TableName: "users", ColumnName: "legacy_flag", ColumnType: "tinyint(1)"})
	live := dbstate.NewDatabaseState()
	live.AddTable(liveTable)

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.DropColumns, 1)
	assert.Equal(t, "legacy_flag", td.DropColumns[0].Live.ColumnName)
}

func TestCompareTypeChangeProducesAlter(t *testing.T) {
	declared := declaredUsersTable()
	schema := metadata.NewSchema()
	schema.AddTable(declared)

	liveTable := liveUsersTable()
	liveTable.Columns["email"].ColumnType = "varchar(64)"
	live := dbstate.NewDatabaseState()
	live.AddTable(liveTable)

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AlterColumns, 1)
	assert.Equal(t, "email", td.AlterColumns[0].Declared.Name)
	assertHasChange(t, td.AlterColumns[0].Changes, "type")
}

func TestCompareDefaultChangeProducesAlter(t *testing.T) {
	declared := declaredUsersTable()
	schema := metadata.NewSchema()
	schema.AddTable(declared)

	liveTable := liveUsersTable()
	liveTable.Columns["active"].ColumnDefault = strPtr("1")
	live := dbstate.NewDatabaseState()
	live.AddTable(liveTable)

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AlterColumns, 1)
	assertHasChange(t, td.AlterColumns[0].Changes, "default")
}

func TestCompareNullableChangeProducesAlter(t *testing.T) {
	declared := declaredUsersTable()
	schema := metadata.NewSchema()
	schema.AddTable(declared)

	liveTable := liveUsersTable()
	liveTable.Columns["email"].IsNullable = true
	live := dbstate.NewDatabaseState()
	live.AddTable(liveTable)

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AlterColumns, 1)
	assertHasChange(t, td.AlterColumns[0].Changes, "nullable")
}

func TestCompareMissingAutoIncrementProducesAlter(t *testing.T) {
	declared := declaredUsersTable()
	schema := metadata.NewSchema()
	schema.AddTable(declared)

	liveTable := liveUsersTable()
	liveTable.Columns["id"].Extra = ""
	live := dbstate.NewDatabaseState()
	live.AddTable(liveTable)

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AlterColumns, 1)
	assertHasChange(t, td.AlterColumns[0].Changes, "auto_increment")
}

func TestCompareIndexAddedAndDropped(t *testing.T) {
	declared := declaredUsersTable()
	declared.Indexes = append(declared.Indexes, &metadata.IndexDefinition{
		Name: "idx_users_email", Columns: []string{"email"}, Unique: true,
	})
	schema := metadata.NewSchema()
	schema.AddTable(declared)

	liveTable := liveUsersTable()
	liveTable.Indexes["idx_users_stale"] = &dbstate.IndexState{
		TableName: "users", IndexName: "idx_users_stale", Columns: []string{"active"},
	}
	live := dbstate.NewDatabaseState()
	live.AddTable(liveTable)

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AddIndexes, 1)
	assert.Equal(t, "idx_users_email", td.AddIndexes[0].Name)
	require.Len(t, td.DropIndexes, 1)
	assert.Equal(t, "idx_users_stale", td.DropIndexes[0].Name)
}

func TestCompareMissingForeignKeyIsAdded(t *testing.T) {
	declared := declaredUsersTable()
	declared.ForeignKeys = append(declared.ForeignKeys, &metadata.ForeignKeyDefinition{
		Table: "users", Column: "team_id", ReferencedTable: "teams", ReferencedColumn: "id",
		OnDelete: metadata.Cascade, OnUpdate: metadata.NoAction,
	})
	schema := metadata.NewSchema()
	schema.AddTable(declared)

	live := dbstate.NewDatabaseState()
	live.AddTable(liveUsersTable())

	diff := Compare(schema, live)
	td := diff.TableDiffs["users"]
	require.NotNil(t, td)
	require.Len(t, td.AddForeignKeys, 1)
	assert.Equal(t, "team_id", td.AddForeignKeys[0].Column)
}

func assertHasChange(t *testing.T, changes []ColumnChange, field string) {
	t.Helper()
	for _, c := range changes {
		if c.Field == field {
			return
		}
	}
	t.Fatalf("expected a %q change, got %+v", field, changes)
}
