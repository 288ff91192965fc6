// Package comparator diffs the declared metadata.Schema against live
// dbstate.DatabaseState and fills a SchemaDiff (spec.md §4.3). Grounded on
// the teacher's internal/diff package shape — a Diff aggregate plus
// per-field change accumulation — narrowed to MySQL-only semantics and to
// spec.md's specific normalization/default/widening rules, which differ
// from the teacher's generic cross-dialect columnFieldChanges.
package comparator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/semitexa/semitexa-orm/internal/dbstate"
	introspectmysql "github.com/semitexa/semitexa-orm/internal/introspect/mysql"
	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// ColumnChange describes one field that differs between the declared and
// live shape of an existing column, for diagnostics and audit messages.
type ColumnChange struct {
	Field string
	Old   string
	New   string
}

// ColumnAlter pairs a declared column with the live state it will MODIFY.
type ColumnAlter struct {
	Declared *metadata.ColumnDefinition
	Live     *dbstate.ColumnState
	Changes  []ColumnChange
}

// ColumnDrop carries the live state needed to reconstruct a full MODIFY
// COLUMN for the two-phase deprecation protocol (§4.4).
type ColumnDrop struct {
	Table string
	Live  *dbstate.ColumnState
}

// IndexChange is an index that must be dropped and re-added because its
// columns or uniqueness no longer match.
type IndexChange struct {
	Table    string
	Declared *metadata.IndexDefinition
}

// IndexDrop is a live index absent from the declaration.
type IndexDrop struct {
	Table string
	Name  string
}

// FKChange is a foreign key that must be dropped and re-added because its
// referenced table/column or actions no longer match.
type FKChange struct {
	Table    string
	Declared *metadata.ForeignKeyDefinition
}

// FKDrop is a live FK absent from the declaration.
type FKDrop struct {
	Table          string
	ConstraintName string
}

// TableDiff holds every column/index/FK change for one table that exists
// on both sides.
type TableDiff struct {
	Table string

	AddColumns  []*metadata.ColumnDefinition
	AlterColumns []*ColumnAlter
	DropColumns []*ColumnDrop

	AddIndexes  []*metadata.IndexDefinition
	DropIndexes []IndexDrop
	ReAddIndexes []*IndexChange // dropped then re-added because of a mismatch

	AddForeignKeys  []*metadata.ForeignKeyDefinition
	DropForeignKeys []FKDrop
}

func newTableDiff(name string) *TableDiff { return &TableDiff{Table: name} }

func (d *TableDiff) isEmpty() bool {
	return len(d.AddColumns) == 0 && len(d.AlterColumns) == 0 && len(d.DropColumns) == 0 &&
		len(d.AddIndexes) == 0 && len(d.DropIndexes) == 0 && len(d.ReAddIndexes) == 0 &&
		len(d.AddForeignKeys) == 0 && len(d.DropForeignKeys) == 0
}

// SchemaDiff accumulates every difference between the declared schema and
// the live database state (spec.md §3).
type SchemaDiff struct {
	CreateTables []*metadata.TableDefinition
	DropTables   []*dbstate.TableState
	TableDiffs   map[string]*TableDiff
	TableOrder   []string
}

func newSchemaDiff() *SchemaDiff {
	return &SchemaDiff{TableDiffs: make(map[string]*TableDiff)}
}

func (d *SchemaDiff) tableDiff(name string) *TableDiff {
	td, ok := d.TableDiffs[name]
	if !ok {
		td = newTableDiff(name)
		d.TableDiffs[name] = td
		d.TableOrder = append(d.TableOrder, name)
	}
	return td
}

// IsEmpty reports whether the diff contains zero operations, the
// idempotence property spec.md §8 requires after a successful sync.
func (d *SchemaDiff) IsEmpty() bool {
	if len(d.CreateTables) != 0 || len(d.DropTables) != 0 {
		return false
	}
	for _, td := range d.TableDiffs {
		if !td.isEmpty() {
			return false
		}
	}
	return true
}

// Compare builds the SchemaDiff between declared and live (spec.md §4.3).
func Compare(declared *metadata.Schema, live *dbstate.DatabaseState) *SchemaDiff {
	diff := newSchemaDiff()

	for _, table := range declared.OrderedTables() {
		liveTable, exists := live.Tables[table.Name]
		if !exists {
			diff.CreateTables = append(diff.CreateTables, table)
			continue
		}
		compareTable(diff, table, liveTable)
	}

	for _, name := range live.Order {
		if _, declaredHas := declared.Tables[name]; declaredHas {
			continue
		}
		diff.DropTables = append(diff.DropTables, live.Tables[name])
	}

	return diff
}

func compareTable(diff *SchemaDiff, declared *metadata.TableDefinition, live *dbstate.TableState) {
	td := diff.tableDiff(declared.Name)
	compareColumns(td, declared, live)
	compareIndexes(td, declared, live)
	compareForeignKeys(td, declared, live)
}

func compareColumns(td *TableDiff, declared *metadata.TableDefinition, live *dbstate.TableState) {
	for _, col := range declared.OrderedColumns() {
		liveCol, exists := live.Columns[col.Name]
		if !exists {
			td.AddColumns = append(td.AddColumns, col)
			continue
		}
		if changes := diffColumn(col, liveCol); len(changes) > 0 {
			td.AlterColumns = append(td.AlterColumns, &ColumnAlter{Declared: col, Live: liveCol, Changes: changes})
		}
	}
	for _, name := range live.ColumnOrder {
		if _, declaredHas := declared.Columns[name]; declaredHas {
			continue
		}
		td.DropColumns = append(td.DropColumns, &ColumnDrop{Table: declared.Name, Live: live.Columns[name]})
	}
}

// diffColumn reports every field that differs, per spec.md §4.3: type,
// nullability, auto-increment, and default. A column is only ALTERed when
// at least one of these differs.
func diffColumn(declared *metadata.ColumnDefinition, live *dbstate.ColumnState) []ColumnChange {
	var changes []ColumnChange

	expected := introspectmysql.NormalizeColumnType(BuildExpectedType(declared))
	actual := introspectmysql.NormalizeColumnType(live.ColumnType)
	if !strings.EqualFold(normalizeTypeString(expected), normalizeTypeString(actual)) {
		changes = append(changes, ColumnChange{Field: "type", Old: actual, New: expected})
	}

	if declared.Nullable != live.IsNullable {
		changes = append(changes, ColumnChange{Field: "nullable",
			Old: strconv.FormatBool(live.IsNullable), New: strconv.FormatBool(declared.Nullable)})
	}

	declaredAutoInc := declared.IsPrimaryKey && declared.PKStrategy == metadata.PKAuto && isIntegerType(declared.Type)
	if declaredAutoInc != live.IsAutoIncrement() {
		changes = append(changes, ColumnChange{Field: "auto_increment",
			Old: strconv.FormatBool(live.IsAutoIncrement()), New: strconv.FormatBool(declaredAutoInc)})
	}

	declaredDefault := normalizeDeclaredDefault(declared)
	liveDefault := normalizeLiveDefault(live)
	if declaredDefault != liveDefault {
		changes = append(changes, ColumnChange{Field: "default", Old: liveDefault, New: declaredDefault})
	}

	return changes
}

func isIntegerType(t metadata.ColumnType) bool {
	switch t {
	case metadata.TinyInt, metadata.SmallInt, metadata.Int, metadata.BigInt, metadata.Year:
		return true
	default:
		return false
	}
}

// normalizeDeclaredDefault renders the declared default the exact way
// MySQL stores it, so it can be compared verbatim against COLUMN_DEFAULT
// (spec.md §4.3, §8 boundary: "default: 'x' -> none" must never surface
// as a type ALTER).
func normalizeDeclaredDefault(c *metadata.ColumnDefinition) string {
	if c.Default == nil {
		return "null"
	}
	switch v := c.Default.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func normalizeLiveDefault(live *dbstate.ColumnState) string {
	if live.ColumnDefault == nil {
		return "null"
	}
	return *live.ColumnDefault
}

func normalizeTypeString(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func compareIndexes(td *TableDiff, declared *metadata.TableDefinition, live *dbstate.TableState) {
	for _, idx := range declared.Indexes {
		liveIdx, exists := live.Indexes[idx.Name]
		if !exists {
			td.AddIndexes = append(td.AddIndexes, idx)
			continue
		}
		if !sameIndex(idx, liveIdx) {
			td.DropIndexes = append(td.DropIndexes, IndexDrop{Table: declared.Name, Name: idx.Name})
			td.ReAddIndexes = append(td.ReAddIndexes, &IndexChange{Table: declared.Name, Declared: idx})
		}
	}
	declaredNames := make(map[string]bool, len(declared.Indexes))
	for _, idx := range declared.Indexes {
		declaredNames[idx.Name] = true
	}
	for name := range live.Indexes {
		if declaredNames[name] {
			continue
		}
		td.DropIndexes = append(td.DropIndexes, IndexDrop{Table: declared.Name, Name: name})
	}
}

func sameIndex(declared *metadata.IndexDefinition, live *dbstate.IndexState) bool {
	if declared.Unique != live.Unique {
		return false
	}
	if len(declared.Columns) != len(live.Columns) {
		return false
	}
	for i, c := range declared.Columns {
		if c != live.Columns[i] {
			return false
		}
	}
	return true
}

func compareForeignKeys(td *TableDiff, declared *metadata.TableDefinition, live *dbstate.TableState) {
	for _, fk := range declared.ForeignKeys {
		name := fk.ConstraintName()
		liveFK, exists := live.ForeignKeys[name]
		if !exists {
			td.AddForeignKeys = append(td.AddForeignKeys, fk)
			continue
		}
		if !sameFK(fk, liveFK) {
			td.DropForeignKeys = append(td.DropForeignKeys, FKDrop{Table: declared.Name, ConstraintName: name})
			td.AddForeignKeys = append(td.AddForeignKeys, fk)
		}
	}
	declaredNames := make(map[string]bool, len(declared.ForeignKeys))
	for _, fk := range declared.ForeignKeys {
		declaredNames[fk.ConstraintName()] = true
	}
	for name := range live.ForeignKeys {
		if declaredNames[name] {
			continue
		}
		td.DropForeignKeys = append(td.DropForeignKeys, FKDrop{Table: declared.Name, ConstraintName: name})
	}
}

func sameFK(declared *metadata.ForeignKeyDefinition, live *dbstate.ForeignKeyState) bool {
	if declared.ReferencedTable != live.ReferencedTable || declared.ReferencedColumn != live.ReferencedColumn {
		return false
	}
	if string(declared.OnDelete) != strings.ToUpper(live.DeleteRule) {
		return false
	}
	if string(declared.OnUpdate) != strings.ToUpper(live.UpdateRule) {
		return false
	}
	return true
}
