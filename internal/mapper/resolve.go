// Package mapper converts the flat row stream of an executed SQL statement
// into a graph of identity-deduplicated records with foreign-key driven
// relationship links. It is a purely in-process data-shaping layer: column
// attribution comes from the caller, rows come from the caller, and the
// result is a QueryResult owning every record it produced.
package mapper

import (
	"uniquery/internal/schema"
)

// ColumnRef describes one result column of an executed query: its name and,
// when the upstream SQL analysis could determine it, the owning table.
type ColumnRef struct {
	Table string // empty when ownership could not be resolved
	Name  string
}

// columnBinding ties one result-column position to a field of its table.
type columnBinding struct {
	index int
	field string
}

// tableBinding groups the result-column positions contributed by one table.
type tableBinding struct {
	table   *schema.Table
	columns []columnBinding
	pkIndex int
}

// ColumnSet is the per-query mapping from result-column positions to
// (table, field) pairs, built once before any row is processed.
type ColumnSet struct {
	registry *schema.Registry
	tables   []*tableBinding
	width    int
}

// Width returns the number of result columns the layout accounts for.
func (cs *ColumnSet) Width() int {
	return cs.width
}

// Resolve builds the column layout from attributed column descriptors.
// Every descriptor must name a table declaring that column, and every
// participating table must contribute its primary-key column.
func Resolve(registry *schema.Registry, refs []ColumnRef) (*ColumnSet, error) {
	cs := &ColumnSet{registry: registry, width: len(refs)}
	byTable := make(map[string]*tableBinding)

	for i, ref := range refs {
		if ref.Table == "" {
			return nil, &UnmappedColumnError{Column: ref.Name, Position: i}
		}
		table, ok := registry.Table(ref.Table)
		if !ok {
			return nil, &UnmappedColumnError{Column: ref.Name, Table: ref.Table, Position: i}
		}
		if !table.HasColumn(ref.Name) {
			return nil, &UnmappedColumnError{Column: ref.Name, Table: ref.Table, Position: i}
		}
		binding, ok := byTable[table.Name]
		if !ok {
			binding = &tableBinding{table: table, pkIndex: -1}
			byTable[table.Name] = binding
			cs.tables = append(cs.tables, binding)
		}
		binding.columns = append(binding.columns, columnBinding{index: i, field: ref.Name})
		if ref.Name == table.PrimaryKey {
			binding.pkIndex = i
		}
	}

	for _, binding := range cs.tables {
		if binding.pkIndex < 0 {
			return nil, &PrimaryKeyNotSelectedError{
				Table:  binding.table.Name,
				Column: binding.table.PrimaryKey,
			}
		}
	}
	return cs, nil
}

// ResolveTables builds the column layout from an explicit ordered table list,
// the caller-supplied override for statements whose column ownership cannot
// be analyzed (UNIONs, CTEs). Columns are assigned strictly by position,
// consuming each table's full declared column list in order. The total
// declared count must equal the actual result column count; the mismatch is
// detected here, before any row is processed.
func ResolveTables(registry *schema.Registry, tableNames []string, columnCount int) (*ColumnSet, error) {
	expected := 0
	tables := make([]*schema.Table, 0, len(tableNames))
	for _, name := range tableNames {
		table, ok := registry.Table(name)
		if !ok {
			return nil, &UnmappedColumnError{Table: name, Column: "*"}
		}
		tables = append(tables, table)
		expected += len(table.Columns)
	}
	if expected != columnCount {
		return nil, &ColumnCountMismatchError{Expected: expected, Actual: columnCount}
	}

	refs := make([]ColumnRef, 0, columnCount)
	for _, table := range tables {
		for _, col := range table.Columns {
			refs = append(refs, ColumnRef{Table: table.Name, Name: col})
		}
	}
	return Resolve(registry, refs)
}
