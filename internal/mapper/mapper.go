package mapper

import (
	"uniquery/internal/schema"
)

// Mapper materializes query results against one schema registry. It is
// stateless and safe to share; each query gets its own RowMapper.
type Mapper struct {
	registry *schema.Registry
}

// New creates a Mapper over the given registry.
func New(registry *schema.Registry) *Mapper {
	return &Mapper{registry: registry}
}

// Rows prepares a RowMapper for a query whose column ownership was resolved
// by SQL analysis. Resolution failures abort before any row is consumed.
func (m *Mapper) Rows(refs []ColumnRef) (*RowMapper, error) {
	cols, err := Resolve(m.registry, refs)
	if err != nil {
		return nil, err
	}
	return newRowMapper(cols), nil
}

// RowsForTables prepares a RowMapper from an explicit ordered table list,
// for statements whose column ownership cannot be analyzed.
func (m *Mapper) RowsForTables(tables []string, columnCount int) (*RowMapper, error) {
	cols, err := ResolveTables(m.registry, tables, columnCount)
	if err != nil {
		return nil, err
	}
	return newRowMapper(cols), nil
}

// MapRows is a convenience that consumes a fully buffered row set.
func (m *Mapper) MapRows(refs []ColumnRef, rows [][]any) (*QueryResult, error) {
	rm, err := m.Rows(refs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := rm.ConsumeRow(row); err != nil {
			return nil, err
		}
	}
	return rm.Result(), nil
}

// RowMapper processes one query's row stream sequentially: each row is
// partitioned by owning table, materialized into identity-deduplicated
// records, and linked through the registry's foreign-key metadata. Rows must
// be fed in delivery order; that order determines list positions.
type RowMapper struct {
	cols   *ColumnSet
	result *QueryResult
}

func newRowMapper(cols *ColumnSet) *RowMapper {
	return &RowMapper{
		cols:   cols,
		result: newQueryResult(cols),
	}
}

// ConsumeRow materializes and links a single row.
func (rm *RowMapper) ConsumeRow(values []any) error {
	if len(values) != rm.cols.width {
		return &RowWidthError{Expected: rm.cols.width, Actual: len(values)}
	}

	// Materialize: one record per table whose primary key is present in this
	// row. A NULL primary key (outer-join miss) skips the table entirely.
	produced := make(map[string]*Record, len(rm.cols.tables))
	for _, binding := range rm.cols.tables {
		pk := values[binding.pkIndex]
		if pk == nil {
			continue
		}
		rec := rm.result.fetch(binding, pk, canonicalKey(pk))
		// Later rows for the same identity overwrite scalar fields:
		// last-write-wins in stream order.
		for _, cb := range binding.columns {
			rec.fields[cb.field] = values[cb.index]
		}
		produced[binding.table.Name] = rec
	}

	rm.link(produced)
	return nil
}

// Result returns the accumulated QueryResult. The caller treats it as
// read-only once the row stream is exhausted.
func (rm *RowMapper) Result() *QueryResult {
	return rm.result
}

// link connects the records one row produced. Idempotent: re-observing an
// already-linked pair changes nothing.
func (rm *RowMapper) link(produced map[string]*Record) {
	// Direct FK edges between co-produced records.
	for _, rec := range produced {
		for _, rel := range rec.table.Relationships {
			if rel.Kind != schema.ManyToOne {
				continue
			}
			remote, ok := produced[rel.RemoteTable]
			if !ok {
				continue
			}
			if !fkMatches(rec, rel.LocalColumn, remote) {
				continue
			}
			rec.setRef(rel.Attr, remote)
			remote.appendUnique(rel.InverseAttr, rec)
		}
	}

	// Many-to-many edges: a link-table record present in this row connects
	// its two endpoints directly; the link record itself stays hidden. A row
	// carrying both endpoints but no link row adds no edge.
	for _, rec := range produced {
		if !rec.table.IsLinkTable {
			continue
		}
		spec, ok := rm.cols.registry.LinkSpec(rec.table.Name)
		if !ok {
			continue
		}
		left := produced[spec.LeftTable]
		right := produced[spec.RightTable]
		if left == nil || right == nil {
			continue
		}
		if !fkMatches(rec, spec.LeftFK.Column, left) || !fkMatches(rec, spec.RightFK.Column, right) {
			continue
		}
		left.appendUnique(spec.LeftAttr, right)
		right.appendUnique(spec.RightAttr, left)
	}
}

// fkMatches guards a row-level link with the actual FK value when the FK
// column is part of the result. A NULL FK never links; a selected FK must
// equal the remote record's key. When the FK column was not selected, the
// co-occurrence of both records in the row is trusted.
func fkMatches(rec *Record, fkColumn string, remote *Record) bool {
	v, ok := rec.fields[fkColumn]
	if !ok {
		return true
	}
	if v == nil {
		return false
	}
	return canonicalKey(v) == remote.key
}
