package mapper

import (
	"fmt"
	"sort"
	"strings"

	"uniquery/internal/schema"
)

// Record is one materialized row entity, identified by (table, primary key).
// Field values are overwritten in place whenever a later row carries the same
// identity, so a record never exists twice within a query. Records are owned
// by the QueryResult that produced them and must not be shared across
// queries.
type Record struct {
	table *schema.Table
	key   string // canonical primary-key form, used for identity
	pk    any    // primary-key value as delivered by the driver

	fields map[string]any
	refs   map[string]*Record
	lists  map[string][]*Record
	seen   map[string]map[*Record]struct{}
}

func newRecord(table *schema.Table, pk any, key string) *Record {
	r := &Record{
		table:  table,
		key:    key,
		pk:     pk,
		fields: make(map[string]any, len(table.Columns)),
		refs:   make(map[string]*Record),
		lists:  make(map[string][]*Record),
		seen:   make(map[string]map[*Record]struct{}),
	}
	// Plural attributes start as empty lists so an unmatched record still
	// exposes its collections.
	for _, attr := range table.PluralAttrs() {
		r.lists[attr] = []*Record{}
		r.seen[attr] = make(map[*Record]struct{})
	}
	return r
}

// NewRecord creates a detached record for the persistence write path. It
// belongs to no QueryResult and carries no relationship links; fields are
// populated through SetField.
func NewRecord(table *schema.Table) *Record {
	return newRecord(table, nil, "")
}

// Table returns the name of the table the record belongs to.
func (r *Record) Table() string {
	return r.table.Name
}

// PK returns the primary-key value as delivered by the row stream.
func (r *Record) PK() any {
	return r.pk
}

// Field returns the value of a scalar field.
func (r *Record) Field(name string) any {
	return r.fields[name]
}

// SetField overwrites a scalar field value. Used by callers preparing a
// record for the persistence write path; the mapping engine itself assigns
// fields from rows.
func (r *Record) SetField(name string, value any) {
	r.fields[name] = value
}

// Fields returns the record's scalar fields. The map is live; callers must
// treat it as read-only.
func (r *Record) Fields() map[string]any {
	return r.fields
}

// Ref returns the related record behind a singular relationship attribute,
// or nil when the relationship has no match in this query.
func (r *Record) Ref(attr string) *Record {
	return r.refs[attr]
}

// List returns the ordered related records behind a plural relationship
// attribute. The slice is live; callers must treat it as read-only.
func (r *Record) List(attr string) []*Record {
	return r.lists[attr]
}

func (r *Record) setRef(attr string, other *Record) {
	r.refs[attr] = other
}

// appendUnique adds other to the named list attribute unless it is already
// present. Re-observing an established edge is a no-op.
func (r *Record) appendUnique(attr string, other *Record) {
	members, ok := r.seen[attr]
	if !ok {
		members = make(map[*Record]struct{})
		r.seen[attr] = members
	}
	if _, dup := members[other]; dup {
		return
	}
	members[other] = struct{}{}
	r.lists[attr] = append(r.lists[attr], other)
}

// String renders a short identifying summary, name-ish fields first.
func (r *Record) String() string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return fieldPriority(r, names[i]) < fieldPriority(r, names[j]) ||
			(fieldPriority(r, names[i]) == fieldPriority(r, names[j]) && names[i] < names[j])
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if v := r.fields[name]; v != nil {
			parts = append(parts, fmt.Sprintf("%s=%v", name, v))
		}
	}
	return fmt.Sprintf("<%s %s>", r.table.Name, strings.Join(parts, ", "))
}

func fieldPriority(r *Record, name string) int {
	switch {
	case strings.Contains(name, "name"):
		return 0
	case name == r.table.PrimaryKey:
		return 1
	default:
		return 2
	}
}
