package hydrate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/semitexa/semitexa-orm/internal/errs"
	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"15:04:05",
}

// Row hydrates dest (a pointer to a zero-value resource of rm's type)
// from one materialized row. Row keys absent from rm's column map are
// silently ignored (projection queries never error); fields with no
// corresponding row key are left untouched (spec.md §4.5).
func Row(row poolsql.Row, rm *metadata.ResourceMetadata, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return errs.Validation("hydrate: dest must be a pointer to a struct")
	}
	v = v.Elem()

	for col, raw := range row {
		if raw == nil {
			continue
		}
		fieldIndex, ok := rm.FieldIndexByColumn[col]
		if !ok {
			continue
		}
		field := v.FieldByIndex(fieldIndex)
		if !field.CanSet() {
			continue
		}
		casted, err := castValue(raw, field.Type())
		if err != nil {
			return fmt.Errorf("hydrate: column %s: %w", col, err)
		}
		field.Set(casted)
	}
	return nil
}

// castValue converts a raw driver value into target's declared Go type,
// following spec.md §4.5's per-kind rules.
func castValue(raw any, target reflect.Type) (reflect.Value, error) {
	if target == reflect.TypeOf(time.Time{}) {
		return castTime(raw)
	}
	if target == reflect.TypeOf([]byte(nil)) {
		return castBytes(raw)
	}

	switch target.Kind() {
	case reflect.String:
		return castString(raw, target)
	case reflect.Bool:
		return castBool(raw, target)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return castInt(raw, target)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return castUint(raw, target)
	case reflect.Float32, reflect.Float64:
		return castFloat(raw, target)
	case reflect.Slice, reflect.Map, reflect.Struct, reflect.Ptr:
		return castJSON(raw, target)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported field kind %s", target.Kind())
	}
}

func castTime(raw any) (reflect.Value, error) {
	if t, ok := raw.(time.Time); ok {
		return reflect.ValueOf(t), nil
	}
	s, ok := raw.(string)
	if !ok {
		return reflect.Value{}, fmt.Errorf("cannot parse %T as time.Time", raw)
	}
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return reflect.ValueOf(t), nil
		} else {
			lastErr = err
		}
	}
	return reflect.Value{}, fmt.Errorf("parsing time %q: %w", s, lastErr)
}

func castBytes(raw any) (reflect.Value, error) {
	switch v := raw.(type) {
	case []byte:
		return reflect.ValueOf(v), nil
	case string:
		return reflect.ValueOf([]byte(v)), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to []byte", raw)
	}
}

// castString handles both plain string fields and backed string
// enumerations: a named type whose underlying kind is string converts via
// reflect.Convert the same way as a plain string, so the enum's member
// constants are directly assignable once the raw value matches one.
func castString(raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to string", raw)
	}
	return reflect.ValueOf(s).Convert(target), nil
}

func castBool(raw any, target reflect.Type) (reflect.Value, error) {
	switch v := raw.(type) {
	case bool:
		return reflect.ValueOf(v).Convert(target), nil
	case int64:
		return reflect.ValueOf(v != 0).Convert(target), nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(target), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to bool", raw)
	}
}

func castInt(raw any, target reflect.Type) (reflect.Value, error) {
	switch v := raw.(type) {
	case int64:
		return reflect.ValueOf(v).Convert(target), nil
	case float64:
		return reflect.ValueOf(int64(v)).Convert(target), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(target), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, target)
	}
}

func castUint(raw any, target reflect.Type) (reflect.Value, error) {
	switch v := raw.(type) {
	case int64:
		return reflect.ValueOf(uint64(v)).Convert(target), nil
	case float64:
		return reflect.ValueOf(uint64(v)).Convert(target), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(target), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, target)
	}
}

func castFloat(raw any, target reflect.Type) (reflect.Value, error) {
	switch v := raw.(type) {
	case float64:
		return reflect.ValueOf(v).Convert(target), nil
	case int64:
		return reflect.ValueOf(float64(v)).Convert(target), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(target), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, target)
	}
}

// castJSON decodes a JSON-backed field. If raw already has the target's
// exact type (e.g. a caller-supplied map/slice that was never string-
// encoded) it passes through untouched; otherwise it is decoded from its
// string/[]byte form (spec.md §4.5).
func castJSON(raw any, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(raw)
	if rv.Type() == target {
		return rv, nil
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return reflect.Value{}, fmt.Errorf("cannot decode %T as JSON into %s", raw, target)
	}

	out := reflect.New(target)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decoding JSON: %w", err)
	}
	return out.Elem(), nil
}
