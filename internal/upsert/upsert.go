// Package upsert implements the smart-upsert write path (spec.md §4.6):
// one atomic INSERT ... ON DUPLICATE KEY UPDATE per batch, interpreted
// through MySQL's +1/+2/+0 affected-row convention to report how many
// rows were inserted, updated, or left unchanged. Grounded on the
// teacher's apply.go statement-execution shape (single Exec call, wrap
// and classify the driver error) with the INSERT itself built the way
// Onyx-Go-framework's query builder assembles placeholder lists.
package upsert

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/semitexa/semitexa-orm/internal/errs"
	"github.com/semitexa/semitexa-orm/internal/hydrate"
	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

func reflectValueOf(resource any) reflect.Value {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

// Counts reports how a batch affected the table, per spec.md §4.6's
// interpretation of the server's affected-row count.
type Counts struct {
	Supplied  int
	Inserted  int
	Updated   int
	Unchanged int
}

// Batch performs one INSERT ... ON DUPLICATE KEY UPDATE for resources, a
// homogeneous, non-empty slice of pointers to rm's resource type. Any
// resource whose PK strategy is uuid and whose PK field is still zero has
// a fresh UUID generated for it before the statement is built.
func Batch(ctx context.Context, adapter poolsql.Adapter, rm *metadata.ResourceMetadata, resources []any) (*Counts, error) {
	if len(resources) == 0 {
		return &Counts{}, nil
	}

	assignUUIDPrimaryKeys(rm, resources)

	rows := make([]poolsql.Row, 0, len(resources))
	for _, r := range resources {
		row, err := hydrate.Dehydrate(r, rm)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	columns := orderedColumns(rm)
	query, args := renderUpsert(rm.Table.Name, rm.PKColumn, columns, rows)

	result, err := adapter.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errs.BadQuery("driver did not report affected rows: " + err.Error())
	}

	return interpretAffected(len(resources), int(affected)), nil
}

// assignUUIDPrimaryKeys fills in a fresh UUID for every resource whose PK
// strategy is uuid and whose PK field is still unset, per spec.md's
// promotion of google/uuid to a direct dependency for this purpose.
func assignUUIDPrimaryKeys(rm *metadata.ResourceMetadata, resources []any) {
	pk := rm.ColumnByDBName[rm.PKColumn]
	if pk == nil || pk.PKStrategy != metadata.PKUUID {
		return
	}
	fieldIndex := rm.FieldIndexByProp[rm.PKProperty]
	for _, r := range resources {
		if fieldValueSet(r, fieldIndex, uuid.NewString()) {
			continue
		}
	}
}

func fieldValueSet(resource any, fieldIndex []int, generated string) bool {
	v := reflectValueOf(resource)
	f := v.FieldByIndex(fieldIndex)
	if !f.IsZero() {
		return false
	}
	if f.Kind().String() != "string" {
		return false
	}
	f.SetString(generated)
	return true
}

// orderedColumns returns every non-virtual declared column, primary key
// included, in stable map-iteration-independent order.
func orderedColumns(rm *metadata.ResourceMetadata) []string {
	cols := make([]string, 0, len(rm.Table.ColumnOrder))
	for _, name := range rm.Table.ColumnOrder {
		cols = append(cols, name)
	}
	return cols
}

// renderUpsert builds the full INSERT ... ON DUPLICATE KEY UPDATE
// statement for every row, with every non-PK column appearing on both
// sides of the update list (spec.md §4.6).
func renderUpsert(table, pkColumn string, columns []string, rows []poolsql.Row) (string, []any) {
	colList := make([]string, len(columns))
	for i, c := range columns {
		colList[i] = "`" + c + "`"
	}

	var valuePlaceholders []string
	var args []any
	for _, row := range rows {
		ph := make([]string, len(columns))
		for i, c := range columns {
			ph[i] = "?"
			args = append(args, row[c])
		}
		valuePlaceholders = append(valuePlaceholders, "("+strings.Join(ph, ", ")+")")
	}

	var updates []string
	for _, c := range columns {
		if c == pkColumn {
			continue
		}
		updates = append(updates, fmt.Sprintf("`%s` = VALUES(`%s`)", c, c))
	}
	if len(updates) == 0 {
		// A PK-only table still needs one assignment to form valid SQL;
		// re-assigning the PK leaves the row unchanged.
		updates = append(updates, fmt.Sprintf("`%s` = VALUES(`%s`)", pkColumn, pkColumn))
	}

	query := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(colList, ", "), strings.Join(valuePlaceholders, ", "), strings.Join(updates, ", "))
	return query, args
}

// interpretAffected applies MySQL's +1/+2/+0 convention: inserted rows
// contribute 1 to the affected count, updated rows 2, unchanged rows 0
// (spec.md §4.6).
func interpretAffected(supplied, affected int) *Counts {
	updated := affected - supplied
	if updated < 0 {
		updated = 0
	}
	inserted := affected - 2*updated
	if inserted < 0 {
		inserted = 0
	}
	unchanged := supplied - inserted - updated
	if unchanged < 0 {
		unchanged = 0
	}
	return &Counts{Supplied: supplied, Inserted: inserted, Updated: updated, Unchanged: unchanged}
}
