package hydrate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

// Dehydrate converts an initialized resource value back into a row ready
// for INSERT/UPDATE, restricted to fields that have a column annotation
// and are not left at their zero value (spec.md §4.5's inverse of Row).
func Dehydrate(resource any, rm *metadata.ResourceMetadata) (poolsql.Row, error) {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	row := make(poolsql.Row, len(rm.FieldIndexByColumn))
	for col, idx := range rm.FieldIndexByColumn {
		field := v.FieldByIndex(idx)
		if field.IsZero() {
			continue
		}
		colDef := rm.ColumnByDBName[col]
		value, err := renderValue(field, colDef)
		if err != nil {
			return nil, fmt.Errorf("dehydrate: column %s: %w", col, err)
		}
		row[col] = value
	}
	return row, nil
}

func renderValue(field reflect.Value, col *metadata.ColumnDefinition) (any, error) {
	if t, ok := field.Interface().(time.Time); ok {
		return renderTime(t, col), nil
	}

	switch field.Kind() {
	case reflect.Bool:
		if field.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return field.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return field.Float(), nil
	case reflect.String:
		return field.String(), nil
	case reflect.Slice:
		if field.Type() == reflect.TypeOf([]byte(nil)) {
			return field.Bytes(), nil
		}
		return renderJSON(field)
	case reflect.Map, reflect.Struct, reflect.Ptr:
		return renderJSON(field)
	default:
		return nil, fmt.Errorf("unsupported field kind %s", field.Kind())
	}
}

// renderTime formats a time.Time according to the declared column type's
// resolution: a `date` column emits a bare date, a `time` column a bare
// time of day, everything else the full datetime (spec.md §4.5).
func renderTime(t time.Time, col *metadata.ColumnDefinition) string {
	if col != nil {
		switch col.Type {
		case metadata.Date:
			return t.Format("2006-01-02")
		case metadata.Time:
			return t.Format("15:04:05")
		}
	}
	return t.Format("2006-01-02 15:04:05")
}

func renderJSON(field reflect.Value) (string, error) {
	b, err := json.Marshal(field.Interface())
	if err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	return string(b), nil
}
