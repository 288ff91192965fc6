// Package collector builds a normalized metadata.Schema by reflecting over
// annotated Go resource types, the Go-native analogue of attribute-driven
// schema declaration: instead of decorators on a class, a resource carries
// an embedded Table marker plus `orm:"..."` struct tags on its fields.
package collector

import (
	"fmt"
	"reflect"

	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// Table is embedded anonymously in every resource struct to carry the
// table-level declaration, e.g.:
//
//	type User struct {
//	    collector.Table `orm:"name=users,map"`
//	    ID    int64  `orm:"column=id,type=bigint,pk"`
//	    Email string `orm:"type=varchar,length=255,filterable"`
//	}
type Table struct{}

var tableMarkerType = reflect.TypeOf(Table{})

// IndexDeclarer is an optional interface a resource implements to declare
// class-level composite indexes beyond the automatic ones the collector
// derives from `filterable` and relation foreign keys.
type IndexDeclarer interface {
	TableIndexes() []IndexSpec
}

// IndexSpec is one class-level index declaration.
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// TenantScoper is an optional interface a resource implements to enroll its
// table in tenant isolation. "same_storage" is the only strategy this
// collector synthesizes a column for; any other value only marks the table
// TenantScoped, and the strategy string itself is not stored.
type TenantScoper interface {
	TenantScopeStrategy() string
}

// Collect walks every resource, builds its TableDefinition, and returns the
// accumulated Schema. Resources should be passed as zero-value structs (not
// pointers): Collect only inspects their static type. Errors and warnings
// are accumulated rather than aborting early, matching Schema.Errors/Warnings.
func Collect(resources ...metadata.Resource) *metadata.Schema {
	schema := metadata.NewSchema()
	var pending []pendingTable

	for _, r := range resources {
		t := reflect.TypeOf(r)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			schema.AddError("resource %s is not a struct", t)
			continue
		}

		table, rels := collectOne(schema, r, t)
		if table == nil {
			continue
		}
		schema.AddTable(table)
		pending = append(pending, pendingTable{typ: t, table: table, relations: rels})
	}

	synthesizePivots(schema, pending)
	resolveForeignKeys(schema, pending)

	for _, pt := range pending {
		if pt.table.PrimaryKey() == nil {
			schema.AddWarning("table %s has no primary key", pt.table.Name)
		}
		warnDeprecatedColumnsStillReferenced(schema, pt.table)
	}

	return schema
}

// warnDeprecatedColumnsStillReferenced emits a warning for every column
// marked deprecated that is still named by one of the table's indexes or
// foreign keys, since deprecating a column that a constraint still depends
// on leaves the two-phase drop unable to proceed.
func warnDeprecatedColumnsStillReferenced(schema *metadata.Schema, table *metadata.TableDefinition) {
	for _, col := range table.Columns {
		if !col.IsDeprecated {
			continue
		}
		for _, idx := range table.Indexes {
			if containsColumn(idx.Columns, col.Name) {
				schema.AddWarning("table %s: deprecated column %s is still referenced by index %s", table.Name, col.Name, idx.Name)
			}
		}
		for _, fk := range table.ForeignKeys {
			if fk.Column == col.Name {
				schema.AddWarning("table %s: deprecated column %s is still referenced by foreign key to %s", table.Name, col.Name, fk.ReferencedTable)
			}
		}
	}
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

type pendingTable struct {
	typ       reflect.Type
	table     *metadata.TableDefinition
	relations []rawRelation
}

type rawRelation struct {
	property string
	tag      fieldTag
	kind     metadata.RelationKind
}

func collectOne(schema *metadata.Schema, r metadata.Resource, t reflect.Type) (*metadata.TableDefinition, []rawRelation) {
	markerField, ok := findTableMarker(t)
	if !ok {
		schema.AddError("type %s does not embed collector.Table", t)
		return nil, nil
	}
	markerTag := parseTag(markerField.Tag.Get("orm"))
	name, ok := markerTag.get("name")
	if !ok {
		name = r.TableName()
	}
	if name == "" {
		schema.AddError("type %s declares no table name", t)
		return nil, nil
	}
	if !metadata.IdentifierPattern.MatchString(name) {
		schema.AddError("table name %q is not a valid identifier", name)
		return nil, nil
	}
	if markerTag.has("map") {
		if _, ok := r.(metadata.DomainMappable); !ok {
			schema.AddError("table %s declares map but %s does not implement ToDomain", name, t)
		}
	}

	table := metadata.NewTableDefinition(name)
	var rels []rawRelation

	for _, field := range reflect.VisibleFields(t) {
		if field.Type == tableMarkerType {
			continue
		}
		if !field.IsExported() {
			continue
		}
		raw, ok := field.Tag.Lookup("orm")
		if !ok {
			continue
		}
		tag := parseTag(raw)

		if tag.isRelationFlag() {
			kind, _ := relationKindOf(tag)
			rels = append(rels, rawRelation{property: field.Name, tag: tag, kind: kind})
			continue
		}

		if tag.has("aggregate") {
			table.VirtualFields = append(table.VirtualFields, field.Name)
			continue
		}

		col := buildColumn(schema, name, field, tag)
		if col == nil {
			continue
		}
		table.AddColumn(col)
		if tag.has("filterable") {
			table.FilterableColumns[field.Name] = col.Name
			idxName := fmt.Sprintf("idx_%s_%s", name, col.Name)
			if table.FindIndex(idxName) == nil {
				table.Indexes = append(table.Indexes, &metadata.IndexDefinition{
					Name:    idxName,
					Columns: []string{col.Name},
					Unique:  false,
				})
			}
		}
	}

	if declarer, ok := r.(IndexDeclarer); ok {
		for _, spec := range declarer.TableIndexes() {
			idxName := spec.Name
			if idxName == "" {
				idxName = generatedIndexName(name, spec.Columns, spec.Unique)
			}
			if table.FindIndex(idxName) != nil {
				continue
			}
			table.Indexes = append(table.Indexes, &metadata.IndexDefinition{
				Name:    idxName,
				Columns: spec.Columns,
				Unique:  spec.Unique,
			})
		}
	}

	if scoper, ok := r.(TenantScoper); ok {
		table.TenantScoped = true
		if scoper.TenantScopeStrategy() == "same_storage" {
			if _, exists := table.Columns["tenant_id"]; !exists {
				length := 64
				table.AddColumn(&metadata.ColumnDefinition{
					Name:     "tenant_id",
					Type:     metadata.Varchar,
					Nullable: false,
					Length:   &length,
				})
			}
		}
	}

	return table, rels
}

func findTableMarker(t reflect.Type) (reflect.StructField, bool) {
	for _, f := range reflect.VisibleFields(t) {
		if f.Type == tableMarkerType {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func generatedIndexName(table string, cols []string, unique bool) string {
	prefix := "idx"
	if unique {
		prefix = "uniq"
	}
	name := prefix + "_" + table
	for _, c := range cols {
		name += "_" + c
	}
	return name
}

func relationKindOf(tag fieldTag) (metadata.RelationKind, bool) {
	switch {
	case tag.has("belongs_to"):
		return metadata.BelongsTo, true
	case tag.has("has_many"):
		return metadata.HasMany, true
	case tag.has("one_to_one"):
		return metadata.OneToOne, true
	case tag.has("many_to_many"):
		return metadata.ManyToMany, true
	default:
		return "", false
	}
}

func buildColumn(schema *metadata.Schema, table string, field reflect.StructField, tag fieldTag) *metadata.ColumnDefinition {
	colName := tag.getOr("column", toSnakeCase(field.Name))
	if !metadata.IdentifierPattern.MatchString(colName) {
		schema.AddError("%s.%s: column name %q is not a valid identifier", table, field.Name, colName)
		return nil
	}

	rawType, ok := tag.get("type")
	if !ok {
		schema.AddError("%s.%s: missing required type= tag", table, field.Name)
		return nil
	}
	sqlType := metadata.ColumnType(rawType)
	if !metadata.ValidColumnTypes[sqlType] {
		schema.AddError("%s.%s: unknown column type %q", table, field.Name, rawType)
		return nil
	}
	if !acceptedKinds(sqlType, field.Type) {
		schema.AddError("%s.%s: go type %s is not compatible with sql type %s", table, field.Name, field.Type, sqlType)
		return nil
	}

	col := &metadata.ColumnDefinition{
		Name:         colName,
		PropertyName: field.Name,
		Type:         sqlType,
		SourceType:   field.Type.String(),
		Nullable:     tag.has("nullable"),
		IsPrimaryKey: tag.has("pk"),
	}

	if l, ok := tag.getInt("length"); ok {
		col.Length = &l
	}
	if p, ok := tag.getInt("precision"); ok {
		col.Precision = &p
	}
	if s, ok := tag.getInt("scale"); ok {
		col.Scale = &s
	}
	if d, ok := tag.get("default"); ok {
		col.Default = d
	}
	if c, ok := tag.get("comment"); ok {
		col.Comment = c
	}
	if cs, ok := tag.get("charset"); ok {
		col.Charset = cs
	}
	if cl, ok := tag.get("collate"); ok {
		col.Collate = cl
	}
	col.IsDeprecated = tag.has("deprecated")

	if col.IsPrimaryKey {
		strategy := metadata.PKStrategy(tag.getOr("pk_strategy", string(metadata.PKAuto)))
		switch strategy {
		case metadata.PKAuto:
			if field.Type.Kind() == reflect.String {
				schema.AddError("%s.%s: pk_strategy=auto is not valid on a string-typed primary key", table, field.Name)
			}
		case metadata.PKUUID:
			if sqlType != metadata.Varchar && sqlType != metadata.Binary && sqlType != metadata.Char {
				schema.AddError("%s.%s: pk_strategy=uuid requires a varchar, char or binary column", table, field.Name)
			}
		case metadata.PKManual:
		default:
			schema.AddError("%s.%s: unknown pk_strategy %q", table, field.Name, strategy)
		}
		col.PKStrategy = strategy
	}

	return col
}
