package hydrate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

// Loader batches relation loading across a homogeneous slice of resources,
// grounded on Onyx-Go-framework's eager_loading.go shape (collect keys,
// one WhereIn query, map results back) adapted to this project's four
// fixed relation kinds and a fixed query count per relation: one, or two
// for many_to_many (spec.md §4.5, §8).
type Loader struct {
	Adapter poolsql.Adapter
	// NewResource returns a zero-value resource of the target type, keyed
	// by table name, together with its ResourceMetadata; the loader
	// hydrates rows into copies of it. Supplied by the repository layer,
	// which knows how to map a table name back to its registered resource
	// type.
	NewResource func(table string) (metadata.Resource, *metadata.ResourceMetadata)
}

// LoadRelations loads every declared relation of rm (optionally filtered
// to onlyProps; a non-nil empty slice skips all relations) for resources,
// a homogeneous slice of pointers to rm's resource type.
func (l *Loader) LoadRelations(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, onlyProps []string) error {
	if len(resources) == 0 {
		return nil
	}
	if onlyProps != nil && len(onlyProps) == 0 {
		return nil
	}

	wanted := rm.Relations
	if onlyProps != nil {
		wanted = make(map[string]*metadata.RelationMeta, len(onlyProps))
		for _, p := range onlyProps {
			if rel, ok := rm.Relations[p]; ok {
				wanted[p] = rel
			}
		}
	}

	for _, rel := range wanted {
		if err := l.loadOne(ctx, resources, rm, rel); err != nil {
			return fmt.Errorf("hydrate: loading relation %s: %w", rel.Property, err)
		}
	}
	return nil
}

func (l *Loader) loadOne(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, rel *metadata.RelationMeta) error {
	switch rel.Kind {
	case metadata.BelongsTo:
		return l.loadBelongsTo(ctx, resources, rm, rel)
	case metadata.HasMany:
		return l.loadHasMany(ctx, resources, rm, rel)
	case metadata.OneToOne:
		return l.loadOneToOne(ctx, resources, rm, rel)
	case metadata.ManyToMany:
		return l.loadManyToMany(ctx, resources, rm, rel)
	default:
		return fmt.Errorf("unknown relation kind %q", rel.Kind)
	}
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func fieldValue(resource any, fieldIndex []int) any {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	f := v.FieldByIndex(fieldIndex)
	if f.IsZero() {
		return nil
	}
	return f.Interface()
}

func setFieldValue(resource any, fieldIndex []int, value any) {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	f := v.FieldByIndex(fieldIndex)
	if f.CanSet() {
		f.Set(reflect.ValueOf(value))
	}
}

// setFieldSlice assigns a []any of related resources into a field
// declared as a concrete slice type (e.g. []*Role), rebuilding the slice
// with reflect.MakeSlice so the element type matches exactly regardless
// of how the loader assembled the untyped intermediate slice.
func setFieldSlice(resource any, fieldIndex []int, items []any) {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	f := v.FieldByIndex(fieldIndex)
	if !f.CanSet() || f.Kind() != reflect.Slice {
		return
	}
	out := reflect.MakeSlice(f.Type(), 0, len(items))
	for _, item := range items {
		out = reflect.Append(out, reflect.ValueOf(item))
	}
	f.Set(out)
}

// loadBelongsTo implements spec.md §4.5's BelongsTo batching: collect the
// owning FK values, SELECT the target by PK once, index by PK, assign.
func (l *Loader) loadBelongsTo(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, rel *metadata.RelationMeta) error {
	fkIndex, ok := rm.FieldIndexByColumn[rel.ForeignKey]
	if !ok {
		return fmt.Errorf("no field maps to foreign key column %s", rel.ForeignKey)
	}

	seen := make(map[any]bool)
	var ids []any
	byFK := make(map[any][]any)
	for _, r := range resources {
		v := fieldValue(r, fkIndex)
		if v == nil {
			continue
		}
		byFK[v] = append(byFK[v], r)
		if !seen[v] {
			seen[v] = true
			ids = append(ids, v)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	targetResource, targetRM := l.NewResource(rel.TargetTable)
	query := fmt.Sprintf("SELECT * FROM `%s` WHERE `%s` IN (%s)", rel.TargetTable, targetRM.PKColumn, placeholders(len(ids)))
	result, err := l.Adapter.Query(ctx, query, ids...)
	if err != nil {
		return err
	}

	byPK := make(map[any]any, len(result.Rows))
	pkFieldIndex := targetRM.FieldIndexByColumn[targetRM.PKColumn]
	for _, row := range result.Rows {
		dest := newZero(targetResource)
		if err := Row(row, targetRM, dest); err != nil {
			return err
		}
		pk := fieldValue(dest, pkFieldIndex)
		byPK[pk] = dest
	}

	relFieldIndex := rm.FieldIndexByProp[rel.Property]
	for fk, parents := range byFK {
		related, ok := byPK[fk]
		if !ok {
			continue
		}
		for _, parent := range parents {
			setFieldValue(parent, relFieldIndex, related)
		}
	}
	return nil
}

// loadHasMany and loadOneToOne share the same query shape (one SELECT on
// the child table's FK); they differ only in how results are assigned
// back (a slice vs. a single value), per spec.md §4.5.
func (l *Loader) loadHasMany(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, rel *metadata.RelationMeta) error {
	rows, targetRM, targetResourceFactory, err := l.queryChildRows(ctx, resources, rm, rel)
	if err != nil {
		return err
	}

	grouped := make(map[any][]any)
	fkFieldIndex := targetRM.FieldIndexByColumn[rel.ForeignKey]
	for _, row := range rows {
		dest := newZero(targetResourceFactory())
		if err := Row(row, targetRM, dest); err != nil {
			return err
		}
		fk := fieldValue(dest, fkFieldIndex)
		grouped[fk] = append(grouped[fk], dest)
	}

	pkFieldIndex := rm.FieldIndexByProp[rm.PKProperty]
	relFieldIndex := rm.FieldIndexByProp[rel.Property]
	for _, r := range resources {
		pk := fieldValue(r, pkFieldIndex)
		setFieldSlice(r, relFieldIndex, grouped[pk])
	}
	return nil
}

func (l *Loader) loadOneToOne(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, rel *metadata.RelationMeta) error {
	rows, targetRM, targetResourceFactory, err := l.queryChildRows(ctx, resources, rm, rel)
	if err != nil {
		return err
	}

	byFK := make(map[any]any)
	fkFieldIndex := targetRM.FieldIndexByColumn[rel.ForeignKey]
	for _, row := range rows {
		dest := newZero(targetResourceFactory())
		if err := Row(row, targetRM, dest); err != nil {
			return err
		}
		fk := fieldValue(dest, fkFieldIndex)
		if _, exists := byFK[fk]; !exists {
			byFK[fk] = dest
		}
	}

	pkFieldIndex := rm.FieldIndexByProp[rm.PKProperty]
	relFieldIndex := rm.FieldIndexByProp[rel.Property]
	for _, r := range resources {
		pk := fieldValue(r, pkFieldIndex)
		if related, ok := byFK[pk]; ok {
			setFieldValue(r, relFieldIndex, related)
		}
	}
	return nil
}

func (l *Loader) queryChildRows(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, rel *metadata.RelationMeta) ([]poolsql.Row, *metadata.ResourceMetadata, func() metadata.Resource, error) {
	pkFieldIndex := rm.FieldIndexByProp[rm.PKProperty]

	seen := make(map[any]bool)
	var ids []any
	for _, r := range resources {
		v := fieldValue(r, pkFieldIndex)
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		ids = append(ids, v)
	}
	if len(ids) == 0 {
		return nil, nil, nil, nil
	}

	targetResource, targetRM := l.NewResource(rel.TargetTable)
	query := fmt.Sprintf("SELECT * FROM `%s` WHERE `%s` IN (%s)", rel.TargetTable, rel.ForeignKey, placeholders(len(ids)))
	result, err := l.Adapter.Query(ctx, query, ids...)
	if err != nil {
		return nil, nil, nil, err
	}
	return result.Rows, targetRM, func() metadata.Resource { return targetResource }, nil
}

// loadManyToMany implements the pivot-join shape from spec.md §4.5: one
// query against the pivot table, then (if non-empty) one query against
// the target table, joined in memory.
func (l *Loader) loadManyToMany(ctx context.Context, resources []any, rm *metadata.ResourceMetadata, rel *metadata.RelationMeta) error {
	pkFieldIndex := rm.FieldIndexByProp[rm.PKProperty]
	relFieldIndex := rm.FieldIndexByProp[rel.Property]

	seen := make(map[any]bool)
	var parentIDs []any
	for _, r := range resources {
		v := fieldValue(r, pkFieldIndex)
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		parentIDs = append(parentIDs, v)
	}
	if len(parentIDs) == 0 {
		return nil
	}

	pivotQuery := fmt.Sprintf("SELECT `%s`, `%s` FROM `%s` WHERE `%s` IN (%s)",
		rel.ForeignKey, rel.RelatedKey, rel.PivotTable, rel.ForeignKey, placeholders(len(parentIDs)))
	pivotResult, err := l.Adapter.Query(ctx, pivotQuery, parentIDs...)
	if err != nil {
		return err
	}

	if len(pivotResult.Rows) == 0 {
		for _, r := range resources {
			setFieldSlice(r, relFieldIndex, nil)
		}
		return nil
	}

	relatedByParent := make(map[any][]any)
	seenRelated := make(map[any]bool)
	var relatedIDs []any
	for _, row := range pivotResult.Rows {
		parentID := row[rel.ForeignKey]
		relatedID := row[rel.RelatedKey]
		relatedByParent[parentID] = append(relatedByParent[parentID], relatedID)
		if !seenRelated[relatedID] {
			seenRelated[relatedID] = true
			relatedIDs = append(relatedIDs, relatedID)
		}
	}

	targetResource, targetRM := l.NewResource(rel.TargetTable)
	query := fmt.Sprintf("SELECT * FROM `%s` WHERE `%s` IN (%s)", rel.TargetTable, targetRM.PKColumn, placeholders(len(relatedIDs)))
	result, err := l.Adapter.Query(ctx, query, relatedIDs...)
	if err != nil {
		return err
	}

	byPK := make(map[any]any, len(result.Rows))
	pkTargetIndex := targetRM.FieldIndexByColumn[targetRM.PKColumn]
	for _, row := range result.Rows {
		dest := newZero(targetResource)
		if err := Row(row, targetRM, dest); err != nil {
			return err
		}
		pk := fieldValue(dest, pkTargetIndex)
		byPK[pk] = dest
	}

	for _, r := range resources {
		parentID := fieldValue(r, pkFieldIndex)
		var related []any
		for _, relatedID := range relatedByParent[parentID] {
			if target, ok := byPK[relatedID]; ok {
				related = append(related, target)
			}
		}
		setFieldSlice(r, relFieldIndex, related)
	}
	return nil
}

func newZero(resource metadata.Resource) any {
	t := reflect.TypeOf(resource)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}
