package schema

import (
	"fmt"

	"uniquery/internal/naming"
)

// buildRelationships derives bidirectional relationship attributes from the
// foreign keys of every table. Attribute names are fixed here, at registry
// build time; queries only ever look them up.
//
// Link tables get no attributes of their own: their FKs surface as a direct
// many-to-many attribute on each endpoint table instead.
func buildRelationships(r *Registry, namer *naming.Namer) error {
	// attrs tracks names already taken on each table, columns included,
	// so relationship attributes never shadow a field.
	attrs := make(map[string]map[string]struct{}, len(r.order))
	for _, name := range r.order {
		table := r.tables[name]
		taken := make(map[string]struct{}, len(table.Columns))
		for _, col := range table.Columns {
			taken[col] = struct{}{}
		}
		attrs[name] = taken
	}

	claim := func(table string, candidates ...string) (string, error) {
		taken := attrs[table]
		for _, cand := range candidates {
			if cand == "" {
				continue
			}
			if _, ok := taken[cand]; ok {
				continue
			}
			taken[cand] = struct{}{}
			return cand, nil
		}
		return "", fmt.Errorf("no free attribute name on table %q (tried %v)", table, candidates)
	}

	// FK counts per (source, target) pair decide whether reverse attributes
	// need the FK column as a disambiguating prefix.
	fkCount := make(map[string]map[string]int)
	for _, name := range r.order {
		table := r.tables[name]
		if table.IsLinkTable {
			continue
		}
		for _, fk := range table.ForeignKeys {
			if fkCount[table.Name] == nil {
				fkCount[table.Name] = make(map[string]int)
			}
			fkCount[table.Name][fk.ReferencedTable]++
		}
	}

	// Direct FK relationships: a singular attribute on the owning side, a
	// list attribute on the referenced side.
	for _, name := range r.order {
		table := r.tables[name]
		if table.IsLinkTable {
			continue
		}
		for _, fk := range table.ForeignKeys {
			remote, ok := r.tables[fk.ReferencedTable]
			if !ok {
				return fmt.Errorf("table %q: foreign key %q references unknown table %q",
					table.Name, fk.Column, fk.ReferencedTable)
			}

			isOnlyFK := fkCount[table.Name][fk.ReferencedTable] == 1
			singular, err := claim(table.Name,
				namer.ManyToOneAttr(fk.Column),
				namer.ManyToOneAttr(fk.Column)+"_ref",
				fk.Column+"_ref",
			)
			if err != nil {
				return err
			}
			plural, err := claim(remote.Name,
				namer.OneToManyAttr(table.Name, fk.Column, isOnlyFK),
				namer.OneToManyAttr(table.Name, fk.Column, false),
				namer.OneToManyAttr(table.Name, fk.Column, false)+"_rel",
			)
			if err != nil {
				return err
			}

			table.Relationships = append(table.Relationships, Relationship{
				Kind:         ManyToOne,
				Attr:         singular,
				LocalColumn:  fk.Column,
				RemoteTable:  remote.Name,
				RemoteColumn: fk.ReferencedColumn,
				InverseAttr:  plural,
			})
			remote.Relationships = append(remote.Relationships, Relationship{
				Kind:         OneToMany,
				Attr:         plural,
				LocalColumn:  fk.ReferencedColumn,
				RemoteTable:  table.Name,
				RemoteColumn: fk.Column,
				InverseAttr:  singular,
			})
		}
	}

	// Link tables: a direct list attribute on each endpoint, the link table
	// itself stays hidden.
	for _, name := range r.order {
		table := r.tables[name]
		if !table.IsLinkTable {
			continue
		}
		leftFK, rightFK := orderLinkFKs(table)
		left := r.tables[leftFK.ReferencedTable]
		right := r.tables[rightFK.ReferencedTable]

		leftAttr, err := claim(left.Name,
			namer.ManyToManyAttr(right.Name),
			namer.LinkSuffixedAttr(namer.ManyToManyAttr(right.Name), table.Name),
		)
		if err != nil {
			return err
		}
		rightAttr, err := claim(right.Name,
			namer.ManyToManyAttr(left.Name),
			namer.LinkSuffixedAttr(namer.ManyToManyAttr(left.Name), table.Name),
		)
		if err != nil {
			return err
		}

		left.Relationships = append(left.Relationships, Relationship{
			Kind:         ManyToMany,
			Attr:         leftAttr,
			LocalColumn:  leftFK.ReferencedColumn,
			RemoteTable:  right.Name,
			RemoteColumn: rightFK.ReferencedColumn,
			LinkTable:    table.Name,
			InverseAttr:  rightAttr,
		})
		right.Relationships = append(right.Relationships, Relationship{
			Kind:         ManyToMany,
			Attr:         rightAttr,
			LocalColumn:  rightFK.ReferencedColumn,
			RemoteTable:  left.Name,
			RemoteColumn: leftFK.ReferencedColumn,
			LinkTable:    table.Name,
			InverseAttr:  leftAttr,
		})

		r.links[table.Name] = LinkSpec{
			Table:      table.Name,
			LeftTable:  left.Name,
			LeftFK:     leftFK,
			LeftAttr:   leftAttr,
			RightTable: right.Name,
			RightFK:    rightFK,
			RightAttr:  rightAttr,
		}
	}

	return nil
}
