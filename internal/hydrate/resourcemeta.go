// Package hydrate converts between database rows and annotated resource
// values (spec.md §4.5). It rebuilds the same field→column mapping the
// collector derives, cached once per type behind metadata.GetOrBuild, and
// batches relation loading so each relation costs a fixed number of queries
// (one; two for many_to_many) regardless of how many parent resources are
// in play. Grounded on
// Onyx-Go-framework's eager_loading.go for the relation-batching shape,
// adapted to this project's four fixed relation kinds.
package hydrate

import (
	"reflect"

	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// BuildResourceMetadata rebuilds the field↔column mapping for r's type
// against its already-collected TableDefinition, and stores it in the
// process-wide one-shot cache (spec.md §5, §9).
func BuildResourceMetadata(r metadata.Resource, table *metadata.TableDefinition) *metadata.ResourceMetadata {
	t := reflect.TypeOf(r)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return metadata.GetOrBuild(t, func() *metadata.ResourceMetadata {
		return buildResourceMetadata(t, table)
	})
}

func buildResourceMetadata(t reflect.Type, table *metadata.TableDefinition) *metadata.ResourceMetadata {
	rm := &metadata.ResourceMetadata{
		Type:               t,
		Table:              table,
		FilterableColumns:  table.FilterableColumns,
		Relations:          table.Relations,
		ColumnByDBName:      make(map[string]*metadata.ColumnDefinition, len(table.Columns)),
		FieldIndexByColumn: make(map[string][]int, len(table.Columns)),
		FieldIndexByProp:   make(map[string][]int, len(table.Columns)),
	}

	for _, col := range table.Columns {
		rm.ColumnByDBName[col.Name] = col
		if col.IsPrimaryKey {
			rm.PKColumn = col.Name
			rm.PKProperty = col.PropertyName
		}
	}

	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() {
			continue
		}
		if _, isRelation := table.Relations[field.Name]; isRelation {
			rm.FieldIndexByProp[field.Name] = append([]int{}, field.Index...)
			continue
		}
		col, ok := table.Columns[dbNameFor(field, table)]
		if !ok {
			continue
		}
		if col.PropertyName != field.Name {
			continue
		}
		rm.FieldIndexByColumn[col.Name] = append([]int{}, field.Index...)
		rm.FieldIndexByProp[field.Name] = append([]int{}, field.Index...)
	}

	return rm
}

// dbNameFor finds the declared column whose PropertyName matches field.Name,
// returning its DB column name, or "" if this field is not a mapped column.
func dbNameFor(field reflect.StructField, table *metadata.TableDefinition) string {
	for _, col := range table.Columns {
		if col.PropertyName == field.Name {
			return col.Name
		}
	}
	return ""
}
