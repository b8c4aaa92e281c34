// Package schema holds the static table metadata consumed by the mapping
// engine: tables, columns, primary keys, foreign keys, link-table
// classification, and the relationship attributes derived from them.
// A Registry is loaded once per session and is read-only afterwards.
package schema

import (
	"fmt"

	"uniquery/internal/naming"
)

// ForeignKey represents a foreign key constraint on a column.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// RelationshipKind discriminates the direction of a derived relationship.
type RelationshipKind int

const (
	// ManyToOne is the FK-owning side: a singular reference attribute.
	ManyToOne RelationshipKind = iota
	// OneToMany is the referenced side: an ordered list attribute.
	OneToMany
	// ManyToMany is either endpoint of a link-table association.
	ManyToMany
)

// String returns a human-readable representation of the relationship kind.
func (k RelationshipKind) String() string {
	switch k {
	case ManyToOne:
		return "ManyToOne"
	case OneToMany:
		return "OneToMany"
	case ManyToMany:
		return "ManyToMany"
	default:
		return "Unknown"
	}
}

// Relationship is one direction of a derived association. Attr is the fixed
// attribute name exposed on this table's records; InverseAttr is the
// attribute the same edge occupies on the remote table's records. Both are
// assigned at registry build time, never per query.
type Relationship struct {
	Kind        RelationshipKind
	Attr        string
	LocalColumn string // ManyToOne: FK column; OneToMany: referenced key column
	RemoteTable string
	RemoteColumn string
	LinkTable   string // ManyToMany only: the mediating link table
	InverseAttr string
}

// Table describes one table: identity, column layout, and the relationships
// derived from foreign-key metadata. Immutable once the registry is built.
type Table struct {
	Name        string       `json:"name"`
	PrimaryKey  string       `json:"primary_key"`
	Columns     []string     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`

	// IsLinkTable marks tables with exactly two foreign keys, a primary key,
	// and no other columns. Their rows drive many-to-many edges and are never
	// exposed in query results.
	IsLinkTable bool `json:"-"`

	Relationships []Relationship `json:"-"`

	columnSet map[string]struct{}
}

// HasColumn reports whether the table declares the given column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnSet[name]
	return ok
}

// PluralAttrs returns the list-valued relationship attribute names of the
// table, in derivation order. Records initialize these to empty lists.
func (t *Table) PluralAttrs() []string {
	var attrs []string
	for _, rel := range t.Relationships {
		if rel.Kind == OneToMany || rel.Kind == ManyToMany {
			attrs = append(attrs, rel.Attr)
		}
	}
	return attrs
}

// LinkSpec describes how one link table joins its two endpoint tables,
// including the list attribute each endpoint exposes for the other.
type LinkSpec struct {
	Table     string // link table name
	LeftTable string
	LeftFK    ForeignKey // FK in the link table pointing at LeftTable
	LeftAttr  string     // attribute on LeftTable records listing RightTable records
	RightTable string
	RightFK    ForeignKey
	RightAttr  string // attribute on RightTable records listing LeftTable records
}

// Registry is the read-only set of tables reachable by a session's queries.
type Registry struct {
	tables map[string]*Table
	order  []string
	links  map[string]LinkSpec
}

// NewRegistry validates the table definitions, classifies link tables, and
// derives relationship attributes. Every table must declare a single-column
// primary key that appears in its column list; violations are rejected here,
// at load time, never at query time.
func NewRegistry(tables []Table, namer *naming.Namer) (*Registry, error) {
	if namer == nil {
		namer = naming.Default()
	}

	r := &Registry{
		tables: make(map[string]*Table, len(tables)),
		order:  make([]string, 0, len(tables)),
		links:  make(map[string]LinkSpec),
	}

	for i := range tables {
		t := tables[i]
		if _, ok := r.tables[t.Name]; ok {
			return nil, fmt.Errorf("duplicate table %q in registry", t.Name)
		}
		t.columnSet = make(map[string]struct{}, len(t.Columns))
		for _, col := range t.Columns {
			t.columnSet[col] = struct{}{}
		}
		if t.PrimaryKey == "" {
			return nil, &MissingPrimaryKeyError{Table: t.Name}
		}
		if !t.HasColumn(t.PrimaryKey) {
			return nil, &MissingPrimaryKeyError{Table: t.Name, Column: t.PrimaryKey}
		}
		t.IsLinkTable = false
		t.Relationships = nil
		r.tables[t.Name] = &t
		r.order = append(r.order, t.Name)
	}

	classifyLinkTables(r)
	if err := buildRelationships(r, namer); err != nil {
		return nil, err
	}
	return r, nil
}

// Table returns the table with the given name.
func (r *Registry) Table(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns all tables in registration order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// LinkSpec returns the link specification for a link table.
func (r *Registry) LinkSpec(linkTable string) (LinkSpec, bool) {
	spec, ok := r.links[linkTable]
	return spec, ok
}

// LinkSpecs returns all link specifications in registration order of their
// link tables.
func (r *Registry) LinkSpecs() []LinkSpec {
	var out []LinkSpec
	for _, name := range r.order {
		if spec, ok := r.links[name]; ok {
			out = append(out, spec)
		}
	}
	return out
}
