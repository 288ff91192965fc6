package syncengine

import (
	"fmt"
	"strings"

	"github.com/semitexa/semitexa-orm/internal/comparator"
	"github.com/semitexa/semitexa-orm/internal/dbstate"
	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// columnClause renders one column's full definition: type, nullability,
// default and (for auto-increment primary keys) AUTO_INCREMENT, but never
// a constraint — those are added separately so cyclic foreign keys never
// block a CREATE TABLE (§4.4).
func columnClause(c *metadata.ColumnDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", identifier(c.Name), comparator.BuildExpectedType(c))

	if c.Charset != "" {
		fmt.Fprintf(&b, " CHARACTER SET %s", c.Charset)
	}
	if c.Collate != "" {
		fmt.Fprintf(&b, " COLLATE %s", c.Collate)
	}

	if c.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}

	if c.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", sqlLiteral(c.Default))
	} else if c.Nullable {
		b.WriteString(" DEFAULT NULL")
	}

	if c.IsPrimaryKey && c.PKStrategy == metadata.PKAuto && isAutoIncrementable(c.Type) {
		b.WriteString(" AUTO_INCREMENT")
	}

	if c.Comment != "" {
		fmt.Fprintf(&b, " COMMENT %s", quoteString(c.Comment))
	}

	return b.String()
}

func isAutoIncrementable(t metadata.ColumnType) bool {
	switch t {
	case metadata.TinyInt, metadata.SmallInt, metadata.Int, metadata.BigInt:
		return true
	default:
		return false
	}
}

func sqlLiteral(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		if strings.EqualFold(x, "CURRENT_TIMESTAMP") {
			return x
		}
		return quoteString(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// renderCreateTable renders CREATE TABLE with every column and index
// inline, but no foreign keys: those are added in a later, separate
// statement so two tables that reference each other can both be created
// (§4.4).
func renderCreateTable(t *metadata.TableDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", identifier(t.Name))

	var lines []string
	for _, c := range t.OrderedColumns() {
		lines = append(lines, "  "+columnClause(c))
	}
	if pk := t.PrimaryKey(); pk != nil {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", identifier(pk.Name)))
	}
	for _, idx := range t.Indexes {
		lines = append(lines, "  "+indexClause(idx))
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci")
	return b.String()
}

func indexClause(idx *metadata.IndexDefinition) string {
	kind := "KEY"
	if idx.Unique {
		kind = "UNIQUE KEY"
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = identifier(c)
	}
	return fmt.Sprintf("%s %s (%s)", kind, identifier(idx.Name), strings.Join(cols, ", "))
}

func renderAddColumn(table string, c *metadata.ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", identifier(table), columnClause(c))
}

func renderModifyColumn(table string, c *metadata.ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", identifier(table), columnClause(c))
}

func renderAddForeignKey(table string, fk *metadata.ForeignKeyDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		identifier(table), identifier(fk.ConstraintName()), identifier(fk.Column),
		identifier(fk.ReferencedTable), identifier(fk.ReferencedColumn), fk.OnDelete, fk.OnUpdate)
}

func renderDropForeignKey(table, constraintName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", identifier(table), identifier(constraintName))
}

func renderAddIndex(table string, idx *metadata.IndexDefinition) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = identifier(c)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s (%s)", identifier(table), kind, identifier(idx.Name), strings.Join(cols, ", "))
}

func renderDropIndex(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", identifier(table), identifier(name))
}

func renderDropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", identifier(table), identifier(column))
}

// renderDeprecateColumn rebuilds the column's live definition verbatim
// and adds the deprecation sentinel to its comment, so the next sync run
// can recognize it was already marked and proceed to the actual DROP
// (§4.4). The rebuilt type comes straight from information_schema, never
// from a declared column that no longer exists.
func renderDeprecateColumn(table string, live *dbstate.ColumnState, sentinel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", identifier(live.ColumnName), live.ColumnType)
	if live.IsNullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if live.ColumnDefault != nil {
		fmt.Fprintf(&b, " DEFAULT %s", quoteString(*live.ColumnDefault))
	}
	if live.IsAutoIncrement() {
		b.WriteString(" AUTO_INCREMENT")
	}
	fmt.Fprintf(&b, " COMMENT %s", quoteString(sentinel))
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", identifier(table), b.String())
}

func renderDropTable(table string) string {
	return fmt.Sprintf("DROP TABLE %s", identifier(table))
}

func renderDeprecateTable(table, sentinel string) string {
	return fmt.Sprintf("ALTER TABLE %s COMMENT %s", identifier(table), quoteString(sentinel))
}
