package collector

import "github.com/semitexa/semitexa-orm/internal/metadata"

// synthesizePivots creates the join table for every declared many_to_many
// relation that does not already have one in the schema. Only one side of
// a many-to-many pair needs to declare the relation; the other table is
// looked up by name, not by requiring both sides to agree on a tag.
func synthesizePivots(schema *metadata.Schema, pending []pendingTable) {
	for _, pt := range pending {
		for _, rel := range pt.relations {
			if rel.kind != metadata.ManyToMany {
				continue
			}
			target, ok := rel.tag.get("target")
			if !ok {
				schema.AddError("%s.%s: many_to_many relation missing target=", pt.table.Name, rel.property)
				continue
			}
			pivotName := rel.tag.getOr("pivot", defaultPivotName(pt.table.Name, target))
			if _, exists := schema.Tables[pivotName]; exists {
				continue
			}

			localFK := rel.tag.getOr("fk", pt.table.Name+"_id")
			relatedFK := rel.tag.getOr("related_key", target+"_id")

			pivot := metadata.NewTableDefinition(pivotName)
			pivot.AddColumn(&metadata.ColumnDefinition{
				Name:         "id",
				Type:         metadata.BigInt,
				IsPrimaryKey: true,
				PKStrategy:   metadata.PKAuto,
			})
			pivot.AddColumn(&metadata.ColumnDefinition{
				Name:     localFK,
				Type:     metadata.Int,
				Nullable: false,
			})
			pivot.AddColumn(&metadata.ColumnDefinition{
				Name:     relatedFK,
				Type:     metadata.Int,
				Nullable: false,
			})
			pivot.ForeignKeys = append(pivot.ForeignKeys,
				&metadata.ForeignKeyDefinition{
					Table: pivotName, Column: localFK,
					ReferencedTable: pt.table.Name, ReferencedColumn: "id",
					OnDelete: metadata.Cascade, OnUpdate: metadata.Cascade,
				},
				&metadata.ForeignKeyDefinition{
					Table: pivotName, Column: relatedFK,
					ReferencedTable: target, ReferencedColumn: "id",
					OnDelete: metadata.Cascade, OnUpdate: metadata.Cascade,
				},
			)
			pivot.Indexes = append(pivot.Indexes, &metadata.IndexDefinition{
				Name:    generatedIndexName(pivotName, []string{localFK, relatedFK}, true),
				Columns: []string{localFK, relatedFK},
				Unique:  true,
			})

			schema.AddTable(pivot)
		}
	}
}

// defaultPivotName generates a deterministic join-table name for a pair of
// tables that did not declare an explicit pivot=, ordered alphabetically so
// both sides of a relation agree regardless of which one declares it.
func defaultPivotName(a, b string) string {
	if a <= b {
		return a + "_" + b
	}
	return b + "_" + a
}
