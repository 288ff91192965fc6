package collector

import (
	"reflect"
	"time"

	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// acceptedKinds reports whether the Go kind k (after unwrapping a named
// backed enumeration to its underlying basic kind, which reflect.Kind
// already does for us) is compatible with the declared SQL type, per the
// compatibility matrix in spec.md §4.1. Go has no separate non-backed
// enumeration concept — every named type over a basic kind is "backed" —
// so that half of the rule is automatically satisfied.
func acceptedKinds(sqlType metadata.ColumnType, t reflect.Type) bool {
	k := t.Kind()
	switch sqlType {
	case metadata.Varchar, metadata.Char, metadata.Text, metadata.MediumText, metadata.LongText, metadata.Time:
		return k == reflect.String
	case metadata.JSON:
		return k == reflect.String || k == reflect.Slice || k == reflect.Map || k == reflect.Array
	case metadata.TinyInt, metadata.SmallInt, metadata.Int, metadata.BigInt, metadata.Year:
		return isIntegerKind(k)
	case metadata.Float, metadata.Double:
		return k == reflect.Float32 || k == reflect.Float64
	case metadata.Decimal:
		return k == reflect.String || k == reflect.Float32 || k == reflect.Float64
	case metadata.Boolean:
		return k == reflect.Bool || isIntegerKind(k)
	case metadata.DateTime, metadata.Timestamp, metadata.Date:
		return isTimeType(t) || k == reflect.String
	case metadata.Blob, metadata.Binary:
		return isByteSlice(t) || k == reflect.String
	default:
		return false
	}
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isTimeType(t reflect.Type) bool {
	return t == reflect.TypeOf(time.Time{})
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}
