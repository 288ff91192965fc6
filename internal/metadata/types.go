// Package metadata holds the normalized, immutable representation of a
// MySQL schema once it has been collected from annotated resource types:
// tables, columns, indexes, foreign keys and relations. It is the single
// source of truth consumed by the comparator, the sync engine, and the
// hydrator.
package metadata

import "fmt"

// ColumnType is a closed enumeration of the MySQL physical column types
// this ORM understands. Unlike a portable multi-dialect type system, it
// maps 1:1 onto MySQL 8.0 keywords by design (see Non-goals).
type ColumnType string

const (
	Varchar    ColumnType = "varchar"
	Char       ColumnType = "char"
	Text       ColumnType = "text"
	MediumText ColumnType = "mediumtext"
	LongText   ColumnType = "longtext"
	TinyInt    ColumnType = "tinyint"
	SmallInt   ColumnType = "smallint"
	Int        ColumnType = "int"
	BigInt     ColumnType = "bigint"
	Float      ColumnType = "float"
	Double     ColumnType = "double"
	Decimal    ColumnType = "decimal"
	Boolean    ColumnType = "boolean"
	DateTime   ColumnType = "datetime"
	Timestamp  ColumnType = "timestamp"
	Date       ColumnType = "date"
	Time       ColumnType = "time"
	Year       ColumnType = "year"
	JSON       ColumnType = "json"
	Blob       ColumnType = "blob"
	Binary     ColumnType = "binary"
)

// ValidColumnTypes lists every recognized ColumnType, used by the
// collector to reject unknown `type=` tag values.
var ValidColumnTypes = map[ColumnType]bool{
	Varchar: true, Char: true, Text: true, MediumText: true, LongText: true,
	TinyInt: true, SmallInt: true, Int: true, BigInt: true,
	Float: true, Double: true, Decimal: true, Boolean: true,
	DateTime: true, Timestamp: true, Date: true, Time: true, Year: true,
	JSON: true, Blob: true, Binary: true,
}

// ForeignKeyAction is the referential action applied ON DELETE / ON UPDATE.
type ForeignKeyAction string

const (
	Restrict ForeignKeyAction = "RESTRICT"
	Cascade  ForeignKeyAction = "CASCADE"
	SetNull  ForeignKeyAction = "SET NULL"
	NoAction ForeignKeyAction = "NO ACTION"
)

// PKStrategy controls how a primary key's value is produced.
type PKStrategy string

const (
	PKAuto   PKStrategy = "auto"
	PKUUID   PKStrategy = "uuid"
	PKManual PKStrategy = "manual"
)

// RelationKind enumerates the four relation shapes the collector and the
// relation loader understand. Lazy per-row fetching is not modeled: every
// relation is loaded in batch (see Non-goals).
type RelationKind string

const (
	BelongsTo  RelationKind = "belongs_to"
	HasMany    RelationKind = "has_many"
	OneToOne   RelationKind = "one_to_one"
	ManyToMany RelationKind = "many_to_many"
)

// ColumnDefinition is an immutable record produced by the collector for a
// single declared column.
type ColumnDefinition struct {
	Name         string
	PropertyName string
	Type         ColumnType
	SourceType   string
	Nullable     bool
	Length       *int
	Precision    *int
	Scale        *int
	Default      any
	IsPrimaryKey bool
	PKStrategy   PKStrategy
	IsDeprecated bool
	Comment      string
	Charset      string
	Collate      string
}

// IndexDefinition describes a secondary index over one or more columns.
type IndexDefinition struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKeyDefinition describes a single FK constraint.
type ForeignKeyDefinition struct {
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         ForeignKeyAction
	OnUpdate         ForeignKeyAction
}

// ConstraintName returns the deterministic name `fk_{table}_{column}`
// spec.md §3/§6 requires.
func (fk *ForeignKeyDefinition) ConstraintName() string {
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// RelationMeta describes one declared relation on a resource.
type RelationMeta struct {
	Property    string
	Kind        RelationKind
	TargetTable string
	ForeignKey  string
	PivotTable  string
	RelatedKey  string
}

// TableDefinition owns the full declared shape of one table: its ordered
// columns, indexes, foreign keys and relations.
type TableDefinition struct {
	Name              string
	ColumnOrder       []string
	Columns           map[string]*ColumnDefinition
	Indexes           []*IndexDefinition
	ForeignKeys       []*ForeignKeyDefinition
	Relations         map[string]*RelationMeta
	TenantScoped      bool
	FilterableColumns map[string]string // property -> column
	VirtualFields     []string          // aggregate fields: no column, no storage
}

// NewTableDefinition returns an empty, ready-to-populate table.
func NewTableDefinition(name string) *TableDefinition {
	return &TableDefinition{
		Name:              name,
		Columns:           make(map[string]*ColumnDefinition),
		Relations:         make(map[string]*RelationMeta),
		FilterableColumns: make(map[string]string),
	}
}

// AddColumn appends a column to both the ordered list and the lookup map.
// Re-adding a column with the same name is ignored and the earlier entry
// is kept (mixin fields declared later lose silently, per §4.1 step 8).
func (t *TableDefinition) AddColumn(c *ColumnDefinition) {
	if _, exists := t.Columns[c.Name]; exists {
		return
	}
	t.ColumnOrder = append(t.ColumnOrder, c.Name)
	t.Columns[c.Name] = c
}

// OrderedColumns returns the columns in declaration order.
func (t *TableDefinition) OrderedColumns() []*ColumnDefinition {
	out := make([]*ColumnDefinition, 0, len(t.ColumnOrder))
	for _, name := range t.ColumnOrder {
		out = append(out, t.Columns[name])
	}
	return out
}

// PrimaryKey returns the table's single primary-key column, or nil.
func (t *TableDefinition) PrimaryKey() *ColumnDefinition {
	for _, name := range t.ColumnOrder {
		if c := t.Columns[name]; c.IsPrimaryKey {
			return c
		}
	}
	return nil
}

// FindIndex returns the index with the given generated name, or nil.
func (t *TableDefinition) FindIndex(name string) *IndexDefinition {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// Schema is the full declared schema: every table keyed by name, plus any
// validation errors/warnings accumulated by the collector. A non-empty
// Errors slice means the schema must not be used for sync (§4.1, §7).
type Schema struct {
	Tables   map[string]*TableDefinition
	Order    []string
	Errors   []string
	Warnings []string
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{Tables: make(map[string]*TableDefinition)}
}

// AddTable registers a table, preserving first-seen order.
func (s *Schema) AddTable(t *TableDefinition) {
	if _, exists := s.Tables[t.Name]; !exists {
		s.Order = append(s.Order, t.Name)
	}
	s.Tables[t.Name] = t
}

// OrderedTables returns every table in the order they were added.
func (s *Schema) OrderedTables() []*TableDefinition {
	out := make([]*TableDefinition, 0, len(s.Order))
	for _, name := range s.Order {
		out = append(out, s.Tables[name])
	}
	return out
}

func (s *Schema) AddError(format string, a ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, a...))
}

func (s *Schema) AddWarning(format string, a ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, a...))
}

// Valid reports whether the collector produced zero errors. Warnings do
// not block sync.
func (s *Schema) Valid() bool { return len(s.Errors) == 0 }
