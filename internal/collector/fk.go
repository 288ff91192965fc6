package collector

import "github.com/semitexa/semitexa-orm/internal/metadata"

// resolveForeignKeys turns each raw relation tag into a metadata.RelationMeta
// plus, for belongs_to/has_many/one_to_one, the physical FK column and
// constraint on whichever side owns it. Pivot tables and their FKs were
// already synthesized by synthesizePivots.
func resolveForeignKeys(schema *metadata.Schema, pending []pendingTable) {
	for _, pt := range pending {
		for _, rel := range pt.relations {
			target, ok := rel.tag.get("target")
			if !ok {
				schema.AddError("%s.%s: relation missing target=", pt.table.Name, rel.property)
				continue
			}
			targetTable, ok := schema.Tables[target]
			if !ok {
				schema.AddError("%s.%s: relation target table %q is not declared", pt.table.Name, rel.property, target)
				continue
			}

			switch rel.kind {
			case metadata.BelongsTo:
				resolveOwnerSide(schema, pt.table, targetTable, rel, false)
			case metadata.HasMany:
				resolveInverseSide(schema, pt.table, targetTable, rel, false)
			case metadata.OneToOne:
				if rel.tag.has("inverse") {
					resolveInverseSide(schema, pt.table, targetTable, rel, true)
				} else {
					resolveOwnerSide(schema, pt.table, targetTable, rel, true)
				}
			case metadata.ManyToMany:
				pivotName := rel.tag.getOr("pivot", defaultPivotName(pt.table.Name, target))
				localFK := rel.tag.getOr("fk", pt.table.Name+"_id")
				relatedFK := rel.tag.getOr("related_key", target+"_id")
				pt.table.Relations[rel.property] = &metadata.RelationMeta{
					Property:    rel.property,
					Kind:        rel.kind,
					TargetTable: target,
					PivotTable:  pivotName,
					ForeignKey:  localFK,
					RelatedKey:  relatedFK,
				}
			}
		}
	}
}

// resolveOwnerSide handles belongs_to and non-inverse one_to_one: the FK
// column lives on the local (owning) table and references the target's PK.
func resolveOwnerSide(schema *metadata.Schema, local, target *metadata.TableDefinition, rel rawRelation, unique bool) {
	fkCol := rel.tag.getOr("fk", rel.targetName()+"_id")
	refCol := rel.tag.getOr("references", "id")
	nullable := rel.tag.has("nullable")

	if _, exists := local.Columns[fkCol]; !exists {
		local.AddColumn(&metadata.ColumnDefinition{
			Name:     fkCol,
			Type:     metadata.Int,
			Nullable: nullable,
		})
	}

	onDelete := defaultOnDelete(nullable)
	if v, ok := rel.tag.get("on_delete"); ok {
		onDelete = metadata.ForeignKeyAction(v)
	}
	onUpdate := defaultOnDelete(nullable)
	if v, ok := rel.tag.get("on_update"); ok {
		onUpdate = metadata.ForeignKeyAction(v)
	}

	local.ForeignKeys = append(local.ForeignKeys, &metadata.ForeignKeyDefinition{
		Table: local.Name, Column: fkCol,
		ReferencedTable: target.Name, ReferencedColumn: refCol,
		OnDelete: onDelete, OnUpdate: onUpdate,
	})

	if unique {
		idxName := generatedIndexName(local.Name, []string{fkCol}, true)
		if local.FindIndex(idxName) == nil {
			local.Indexes = append(local.Indexes, &metadata.IndexDefinition{
				Name: idxName, Columns: []string{fkCol}, Unique: true,
			})
		}
	}

	local.Relations[rel.property] = &metadata.RelationMeta{
		Property: rel.property, Kind: rel.kind,
		TargetTable: target.Name, ForeignKey: fkCol,
	}
}

// resolveInverseSide handles has_many and inverse one_to_one: the FK column
// lives on the target table, referencing the local table's PK.
func resolveInverseSide(schema *metadata.Schema, local, target *metadata.TableDefinition, rel rawRelation, unique bool) {
	fkCol := rel.tag.getOr("fk", local.Name+"_id")
	nullable := rel.tag.has("nullable")

	if _, exists := target.Columns[fkCol]; !exists {
		target.AddColumn(&metadata.ColumnDefinition{
			Name:     fkCol,
			Type:     metadata.Int,
			Nullable: nullable,
		})
	}

	onDelete := defaultOnDelete(nullable)
	if v, ok := rel.tag.get("on_delete"); ok {
		onDelete = metadata.ForeignKeyAction(v)
	}
	onUpdate := defaultOnDelete(nullable)
	if v, ok := rel.tag.get("on_update"); ok {
		onUpdate = metadata.ForeignKeyAction(v)
	}

	target.ForeignKeys = append(target.ForeignKeys, &metadata.ForeignKeyDefinition{
		Table: target.Name, Column: fkCol,
		ReferencedTable: local.Name, ReferencedColumn: "id",
		OnDelete: onDelete, OnUpdate: onUpdate,
	})

	idxName := generatedIndexName(target.Name, []string{fkCol}, unique)
	if target.FindIndex(idxName) == nil {
		target.Indexes = append(target.Indexes, &metadata.IndexDefinition{
			Name: idxName, Columns: []string{fkCol}, Unique: unique,
		})
	}

	local.Relations[rel.property] = &metadata.RelationMeta{
		Property: rel.property, Kind: rel.kind,
		TargetTable: target.Name, ForeignKey: fkCol,
	}
}

func defaultOnDelete(nullable bool) metadata.ForeignKeyAction {
	if nullable {
		return metadata.SetNull
	}
	return metadata.Restrict
}

// targetName returns the relation's target table name; resolveForeignKeys
// has already validated it is present.
func (r rawRelation) targetName() string {
	v, _ := r.tag.get("target")
	return v
}
