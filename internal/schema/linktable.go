package schema

// classifyLinkTables marks tables that exist purely to mediate a many-to-many
// association. A table qualifies when:
//   - It has exactly 2 foreign keys referencing two different tables
//   - Its columns are exactly the primary key plus the two FK columns
//   - Both referenced tables exist in the registry
func classifyLinkTables(r *Registry) {
	for _, name := range r.order {
		table := r.tables[name]
		if !isLinkTable(r, table) {
			continue
		}
		table.IsLinkTable = true
	}
}

func isLinkTable(r *Registry, table *Table) bool {
	if len(table.ForeignKeys) != 2 {
		return false
	}

	fk1 := table.ForeignKeys[0]
	fk2 := table.ForeignKeys[1]

	// No self-referential link tables
	if fk1.ReferencedTable == fk2.ReferencedTable {
		return false
	}

	if _, ok := r.tables[fk1.ReferencedTable]; !ok {
		return false
	}
	if _, ok := r.tables[fk2.ReferencedTable]; !ok {
		return false
	}

	// Only the primary key and the two FK columns, nothing else. An FK column
	// doubling as the primary key would leave the table without a usable
	// identity column, so all three must be distinct.
	if len(table.Columns) != 3 {
		return false
	}
	expected := map[string]struct{}{
		table.PrimaryKey: {},
		fk1.Column:       {},
		fk2.Column:       {},
	}
	if len(expected) != 3 {
		return false
	}
	for _, col := range table.Columns {
		if _, ok := expected[col]; !ok {
			return false
		}
	}
	return true
}

// orderLinkFKs returns the link table's FKs ordered alphabetically by
// referenced table name, for deterministic attribute assignment.
func orderLinkFKs(table *Table) (ForeignKey, ForeignKey) {
	left, right := table.ForeignKeys[0], table.ForeignKeys[1]
	if left.ReferencedTable > right.ReferencedTable {
		left, right = right, left
	}
	return left, right
}
