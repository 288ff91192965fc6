// Package syncengine turns a comparator.SchemaDiff into an ordered
// execution plan of DDL statements and runs it, transactionally when the
// server supports atomic DDL (spec.md §4.4). Grounded on the teacher's
// internal/migration.Migration (an ordered Operations slice built up by
// Add* calls) and internal/apply.Applier (begin/exec-loop/commit-or-
// rollback with a DSN-backed *sql.DB), adapted from the teacher's
// generic cross-dialect Operation to MySQL-only statements carrying the
// two-phase deprecation protocol the teacher's single-phase DROP never
// needed.
package syncengine

import (
	"fmt"
	"strings"

	"github.com/semitexa/semitexa-orm/internal/comparator"
	"github.com/semitexa/semitexa-orm/internal/dbstate"
	"github.com/semitexa/semitexa-orm/internal/metadata"
)

// StepKind classifies one statement for risk reporting and ordering.
type StepKind string

const (
	CreateTable       StepKind = "create_table"
	AddColumn         StepKind = "add_column"
	AlterColumn       StepKind = "alter_column"
	AddForeignKey     StepKind = "add_foreign_key"
	AddIndex          StepKind = "add_index"
	DropIndex         StepKind = "drop_index"
	DeprecateColumn   StepKind = "deprecate_column"
	DropColumn        StepKind = "drop_column"
	DropForeignKey    StepKind = "drop_foreign_key"
	DeprecateTable    StepKind = "deprecate_table"
	DropTable         StepKind = "drop_table"
)

// Destructive reports whether this step kind drops data or structure
// irreversibly and therefore requires allowDestructive (§4.4, §7).
func (k StepKind) Destructive() bool {
	switch k {
	case DropColumn, DropTable, DropForeignKey, DropIndex:
		return true
	default:
		return false
	}
}

// Step is one DDL statement in the plan, in the order it must run.
type Step struct {
	Kind  StepKind
	Table string
	SQL   string
	Note  string
}

// Plan is the fully ordered list of statements a sync run will execute.
type Plan struct {
	Steps []Step
}

func (p *Plan) add(kind StepKind, table, sql, note string) {
	p.Steps = append(p.Steps, Step{Kind: kind, Table: table, SQL: sql, Note: note})
}

// HasDestructive reports whether any step in the plan is destructive.
func (p *Plan) HasDestructive() bool {
	for _, s := range p.Steps {
		if s.Kind.Destructive() {
			return true
		}
	}
	return false
}

// Build renders diff into an ordered Plan following spec.md §4.4's
// sequencing: tables first (without their foreign keys, so cyclic
// references never block table creation), then columns, then foreign
// keys, then indexes, then the two-phase drops last.
func Build(diff *comparator.SchemaDiff, sentinel string) *Plan {
	plan := &Plan{}

	createOrder := topologicalOrder(diff.CreateTables)
	for _, t := range createOrder {
		plan.add(CreateTable, t.Name, renderCreateTable(t), "")
	}

	for _, name := range diff.TableOrder {
		td := diff.TableDiffs[name]
		for _, col := range td.AddColumns {
			plan.add(AddColumn, td.Table, renderAddColumn(td.Table, col), "")
		}
		for _, alt := range td.AlterColumns {
			fields := make([]string, 0, len(alt.Changes))
			for _, c := range alt.Changes {
				fields = append(fields, c.Field)
			}
			plan.add(AlterColumn, td.Table, renderModifyColumn(td.Table, alt.Declared),
				"changed: "+strings.Join(fields, ", "))
		}
	}

	for _, t := range createOrder {
		for _, fk := range t.ForeignKeys {
			plan.add(AddForeignKey, t.Name, renderAddForeignKey(t.Name, fk), "")
		}
	}
	for _, name := range diff.TableOrder {
		td := diff.TableDiffs[name]
		for _, fk := range td.AddForeignKeys {
			plan.add(AddForeignKey, td.Table, renderAddForeignKey(td.Table, fk), "")
		}
	}

	for _, name := range diff.TableOrder {
		td := diff.TableDiffs[name]
		for _, drop := range td.DropIndexes {
			plan.add(DropIndex, drop.Table, renderDropIndex(drop.Table, drop.Name), "")
		}
		for _, idx := range td.AddIndexes {
			plan.add(AddIndex, td.Table, renderAddIndex(td.Table, idx), "")
		}
		for _, change := range td.ReAddIndexes {
			plan.add(AddIndex, change.Table, renderAddIndex(change.Table, change.Declared), "re-added after shape change")
		}
	}

	// Destructive drops run last and in two phases: the first sync run
	// that observes a removed column/table only deprecates it; a later
	// run, once the deprecation has been observed live, performs the
	// actual DROP (§4.4).
	for _, name := range diff.TableOrder {
		td := diff.TableDiffs[name]
		for _, fk := range td.DropForeignKeys {
			plan.add(DropForeignKey, fk.Table, renderDropForeignKey(fk.Table, fk.ConstraintName), "")
		}
		for _, drop := range td.DropColumns {
			appendColumnDrop(plan, drop, sentinel)
		}
	}
	for _, t := range diff.DropTables {
		appendTableDrop(plan, t, sentinel)
	}

	return plan
}

func appendColumnDrop(plan *Plan, drop *comparator.ColumnDrop, sentinel string) {
	live := drop.Live
	if strings.Contains(live.ColumnComment, sentinel) {
		plan.add(DropColumn, drop.Table, renderDropColumn(drop.Table, live.ColumnName),
			"previously deprecated, now dropped")
		return
	}
	plan.add(DeprecateColumn, drop.Table, renderDeprecateColumn(drop.Table, live, sentinel),
		"marked for removal; dropped on a future sync once observed deprecated")
}

func appendTableDrop(plan *Plan, t *dbstate.TableState, sentinel string) {
	if t.IsDeprecated(sentinel) {
		plan.add(DropTable, t.Name, renderDropTable(t.Name), "previously deprecated, now dropped")
		return
	}
	plan.add(DeprecateTable, t.Name, renderDeprecateTable(t.Name, sentinel),
		"marked for removal; dropped on a future sync once observed deprecated")
}

// topologicalOrder sorts new tables so a table referencing another new
// table (by declared foreign key) is created after its target, tolerating
// cycles by falling back to declaration order for any table left in a
// cycle once no more progress can be made (§4.4).
func topologicalOrder(tables []*metadata.TableDefinition) []*metadata.TableDefinition {
	byName := make(map[string]*metadata.TableDefinition, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	var order []*metadata.TableDefinition
	placed := make(map[string]bool, len(tables))
	remaining := append([]*metadata.TableDefinition{}, tables...)

	for len(remaining) > 0 {
		progressed := false
		var next []*metadata.TableDefinition
		for _, t := range remaining {
			if readyToPlace(t, byName, placed) {
				order = append(order, t)
				placed[t.Name] = true
				progressed = true
			} else {
				next = append(next, t)
			}
		}
		remaining = next
		if !progressed {
			// cycle among the remaining tables: place them in original
			// order, deferring their FKs to the add-foreign-key phase.
			order = append(order, remaining...)
			break
		}
	}
	return order
}

func readyToPlace(t *metadata.TableDefinition, byName map[string]*metadata.TableDefinition, placed map[string]bool) bool {
	for _, fk := range t.ForeignKeys {
		if fk.ReferencedTable == t.Name {
			continue // self-reference never blocks
		}
		if _, isNewTable := byName[fk.ReferencedTable]; isNewTable && !placed[fk.ReferencedTable] {
			return false
		}
	}
	return true
}

func identifier(name string) string {
	return fmt.Sprintf("`%s`", name)
}
