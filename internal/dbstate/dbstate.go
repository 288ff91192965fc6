// Package dbstate mirrors the declared metadata types with the shape of
// what INFORMATION_SCHEMA actually reports. It exists only for the
// duration of one comparator pass (spec.md §3 Lifecycle) and is never
// retained across syncs.
package dbstate

// ColumnState is one live column as read from information_schema.columns.
type ColumnState struct {
	TableName       string
	ColumnName      string
	ColumnType      string // e.g. "varchar(255)", as MySQL reports it
	DataType        string // e.g. "varchar"
	IsNullable      bool
	ColumnDefault   *string
	ColumnKey       string // "PRI", "", ...
	Extra           string // "auto_increment", ...
	CharMaxLength   *int64
	NumericPrecision *int64
	NumericScale    *int64
	ColumnComment   string
}

// IsAutoIncrement reports whether Extra marks this column auto_increment.
func (c *ColumnState) IsAutoIncrement() bool {
	return containsWord(c.Extra, "auto_increment")
}

// IsPrimaryKey reports whether this column is (part of) the table PK.
func (c *ColumnState) IsPrimaryKey() bool { return c.ColumnKey == "PRI" }

// IndexState is one live index as read from information_schema.statistics,
// with per-column rows already folded into a single entry.
type IndexState struct {
	TableName string
	IndexName string
	Columns   []string
	Unique    bool
}

// ForeignKeyState is one live FK constraint, joined from
// key_column_usage and referential_constraints.
type ForeignKeyState struct {
	ConstraintName   string
	TableName        string
	ColumnName       string
	ReferencedTable  string
	ReferencedColumn string
	DeleteRule       string
	UpdateRule       string
}

// TableState is one live table: its comment (read for the two-phase-drop
// sentinel) plus its columns, indexes and foreign keys.
type TableState struct {
	Name        string
	Comment     string
	Columns     map[string]*ColumnState
	ColumnOrder []string
	Indexes     map[string]*IndexState
	ForeignKeys map[string]*ForeignKeyState
}

func NewTableState(name, comment string) *TableState {
	return &TableState{
		Name:        name,
		Comment:     comment,
		Columns:     make(map[string]*ColumnState),
		Indexes:     make(map[string]*IndexState),
		ForeignKeys: make(map[string]*ForeignKeyState),
	}
}

func (t *TableState) AddColumn(c *ColumnState) {
	if _, exists := t.Columns[c.ColumnName]; !exists {
		t.ColumnOrder = append(t.ColumnOrder, c.ColumnName)
	}
	t.Columns[c.ColumnName] = c
}

// IsDeprecated reports whether the table carries the two-phase-drop
// sentinel comment.
func (t *TableState) IsDeprecated(sentinel string) bool { return t.Comment == sentinel }

// DatabaseState is the full live snapshot read by the schema reader,
// already filtered to exclude ignored tables.
type DatabaseState struct {
	Tables map[string]*TableState
	Order  []string
}

func NewDatabaseState() *DatabaseState {
	return &DatabaseState{Tables: make(map[string]*TableState)}
}

func (d *DatabaseState) AddTable(t *TableState) {
	if _, exists := d.Tables[t.Name]; !exists {
		d.Order = append(d.Order, t.Name)
	}
	d.Tables[t.Name] = t
}

func containsWord(haystack, word string) bool {
	if haystack == word {
		return true
	}
	for i := 0; i+len(word) <= len(haystack); i++ {
		if haystack[i:i+len(word)] == word {
			return true
		}
	}
	return false
}
