package mapper

import (
	"fmt"
	"strings"
)

// QueryResult accumulates, per table, the insertion-ordered distinct records
// and the primary-key-keyed lookup built from one query's row stream. It is
// scoped to a single query invocation: records belong exclusively to the
// result that produced them. Link-table records are held internally to drive
// many-to-many edges but are never exposed.
type QueryResult struct {
	byTable map[string]*tableResult
	order   []string
}

type tableResult struct {
	binding *tableBinding
	list    []*Record
	byKey   map[string]*Record
}

func newQueryResult(cs *ColumnSet) *QueryResult {
	qr := &QueryResult{
		byTable: make(map[string]*tableResult, len(cs.tables)),
	}
	// Every participating table gets an entry up front, so a table with no
	// matching rows still exposes an empty list.
	for _, binding := range cs.tables {
		qr.byTable[binding.table.Name] = &tableResult{
			binding: binding,
			list:    []*Record{},
			byKey:   make(map[string]*Record),
		}
		qr.order = append(qr.order, binding.table.Name)
	}
	return qr
}

// Tables returns the names of the caller-visible tables that participated in
// the query, in column-layout order. Link tables are omitted.
func (qr *QueryResult) Tables() []string {
	out := make([]string, 0, len(qr.order))
	for _, name := range qr.order {
		if qr.byTable[name].binding.table.IsLinkTable {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Records returns the table's distinct records in first-seen row order.
// Link tables and tables outside the query yield nil.
func (qr *QueryResult) Records(table string) []*Record {
	tr, ok := qr.byTable[table]
	if !ok || tr.binding.table.IsLinkTable {
		return nil
	}
	return tr.list
}

// Record returns the table's record for a primary-key value.
func (qr *QueryResult) Record(table string, pk any) (*Record, bool) {
	tr, ok := qr.byTable[table]
	if !ok || tr.binding.table.IsLinkTable {
		return nil, false
	}
	rec, ok := tr.byKey[canonicalKey(pk)]
	return rec, ok
}

// Len returns the number of distinct records materialized for a table.
func (qr *QueryResult) Len(table string) int {
	return len(qr.Records(table))
}

// String summarizes the non-empty tables of the result.
func (qr *QueryResult) String() string {
	parts := make([]string, 0, len(qr.order))
	for _, name := range qr.Tables() {
		if n := qr.Len(name); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", name, n))
		}
	}
	if len(parts) == 0 {
		return "<QueryResult empty>"
	}
	return fmt.Sprintf("<QueryResult %s>", strings.Join(parts, ", "))
}

// fetch returns the existing record for (table, key) or creates and
// registers a new one. Creation order defines list order.
func (qr *QueryResult) fetch(binding *tableBinding, pk any, key string) *Record {
	tr := qr.byTable[binding.table.Name]
	if rec, ok := tr.byKey[key]; ok {
		return rec
	}
	rec := newRecord(binding.table, pk, key)
	tr.byKey[key] = rec
	tr.list = append(tr.list, rec)
	return rec
}

// linkRecord returns an internally held link-table record, if the row stream
// produced one for the given key.
func (qr *QueryResult) linkRecord(table string, key string) *Record {
	tr, ok := qr.byTable[table]
	if !ok {
		return nil
	}
	return tr.byKey[key]
}

// canonicalKey normalizes a primary-key value into the form used for
// identity comparison. Drivers deliver the same logical key in different Go
// types across dialects ([]byte vs string, int64 vs int), so identity is
// tracked on a canonical string rendering.
func canonicalKey(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}
