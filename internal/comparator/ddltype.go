package comparator

import (
	"fmt"

	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// BuildExpectedType renders the bare MySQL column type (no NULL/DEFAULT
// clause) a declared column should produce, for comparison against the
// live COLUMN_TYPE and for the syncengine's CREATE/ALTER rendering
// (spec.md §4.3, §4.4). An omitted dimension is filled with a fixed
// default: varchar(255), char(1), decimal(10,0) and, for binary,
// varbinary(255).
func BuildExpectedType(c *metadata.ColumnDefinition) string {
	switch c.Type {
	case metadata.Varchar:
		length := 255
		if c.Length != nil {
			length = *c.Length
		}
		return fmt.Sprintf("varchar(%d)", length)
	case metadata.Char:
		length := 1
		if c.Length != nil {
			length = *c.Length
		}
		return fmt.Sprintf("char(%d)", length)
	case metadata.Text:
		return "text"
	case metadata.MediumText:
		return "mediumtext"
	case metadata.LongText:
		return "longtext"
	case metadata.TinyInt:
		return "tinyint"
	case metadata.SmallInt:
		return "smallint"
	case metadata.Int:
		return "int"
	case metadata.BigInt:
		return "bigint"
	case metadata.Float:
		return "float"
	case metadata.Double:
		return "double"
	case metadata.Decimal:
		precision, scale := 10, 0
		if c.Precision != nil {
			precision = *c.Precision
		}
		if c.Scale != nil {
			scale = *c.Scale
		}
		return fmt.Sprintf("decimal(%d,%d)", precision, scale)
	case metadata.Boolean:
		return "tinyint(1)"
	case metadata.DateTime:
		return "datetime"
	case metadata.Timestamp:
		return "timestamp"
	case metadata.Date:
		return "date"
	case metadata.Time:
		return "time"
	case metadata.Year:
		return "year"
	case metadata.JSON:
		return "json"
	case metadata.Blob:
		return "blob"
	case metadata.Binary:
		length := 255
		if c.Length != nil {
			length = *c.Length
		}
		return fmt.Sprintf("varbinary(%d)", length)
	default:
		return string(c.Type)
	}
}
