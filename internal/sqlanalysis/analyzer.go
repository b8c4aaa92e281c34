// Package sqlanalysis attributes the result columns of a SELECT statement to
// the tables that produce them, using a MySQL-dialect AST. Statements the
// analysis cannot see through (unions, CTEs, derived tables) report
// ErrUnresolvableColumns so the caller can fall back to an explicit table
// list.
package sqlanalysis

import (
	"errors"
	"fmt"

	"github.com/pingcap/parser"
	"github.com/pingcap/parser/ast"
	_ "github.com/pingcap/tidb/types/parser_driver"

	"uniquery/internal/mapper"
	"uniquery/internal/schema"
)

// ErrUnresolvableColumns reports a statement whose column ownership cannot be
// determined statically. The query is still executable; mapping it requires
// the caller to supply the participating tables explicitly.
var ErrUnresolvableColumns = errors.New("column ownership cannot be resolved from the statement")

// Analyzer resolves SELECT column lists against a schema registry.
type Analyzer struct {
	registry *schema.Registry
}

// New creates an Analyzer over the given registry.
func New(registry *schema.Registry) *Analyzer {
	return &Analyzer{registry: registry}
}

// fromTable is one table referenced in the FROM clause, addressable by its
// alias when one was given.
type fromTable struct {
	alias string
	table *schema.Table
}

// Columns parses a SELECT statement and returns one attributed ColumnRef per
// result column, wildcards expanded in declared-column order.
func (a *Analyzer) Columns(sql string) ([]mapper.ColumnRef, error) {
	stmtNode, err := parser.New().ParseOneStmt(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvableColumns, err)
	}
	sel, ok := stmtNode.(*ast.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("%w: not a plain SELECT", ErrUnresolvableColumns)
	}
	if sel.From == nil {
		return nil, fmt.Errorf("%w: no FROM clause", ErrUnresolvableColumns)
	}

	from, err := a.collectFrom(sel.From.TableRefs)
	if err != nil {
		return nil, err
	}

	var refs []mapper.ColumnRef
	for _, field := range sel.Fields.Fields {
		expanded, err := a.expandField(field, from)
		if err != nil {
			return nil, err
		}
		refs = append(refs, expanded...)
	}
	return refs, nil
}

// collectFrom flattens the join tree into the ordered list of base tables.
// Anything that is not a named base table makes the statement unresolvable.
func (a *Analyzer) collectFrom(node ast.ResultSetNode) ([]fromTable, error) {
	switch n := node.(type) {
	case *ast.Join:
		left, err := a.collectFrom(n.Left)
		if err != nil {
			return nil, err
		}
		if n.Right == nil {
			return left, nil
		}
		right, err := a.collectFrom(n.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case *ast.TableSource:
		name, ok := n.Source.(*ast.TableName)
		if !ok {
			return nil, fmt.Errorf("%w: derived table in FROM", ErrUnresolvableColumns)
		}
		table, ok := a.registry.Table(name.Name.L)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q", ErrUnresolvableColumns, name.Name.O)
		}
		alias := n.AsName.L
		if alias == "" {
			alias = name.Name.L
		}
		return []fromTable{{alias: alias, table: table}}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported FROM construct", ErrUnresolvableColumns)
	}
}

// expandField turns one select-list entry into its attributed column refs.
func (a *Analyzer) expandField(field *ast.SelectField, from []fromTable) ([]mapper.ColumnRef, error) {
	if field.WildCard != nil {
		if qualifier := field.WildCard.Table.L; qualifier != "" {
			ft, err := lookupAlias(from, qualifier)
			if err != nil {
				return nil, err
			}
			return tableRefs(ft.table), nil
		}
		var refs []mapper.ColumnRef
		for _, ft := range from {
			refs = append(refs, tableRefs(ft.table)...)
		}
		return refs, nil
	}

	if col, ok := field.Expr.(*ast.ColumnNameExpr); ok {
		name := col.Name.Name.L
		if qualifier := col.Name.Table.L; qualifier != "" {
			ft, err := lookupAlias(from, qualifier)
			if err != nil {
				return nil, err
			}
			return []mapper.ColumnRef{{Table: ft.table.Name, Name: name}}, nil
		}
		owner, err := uniqueOwner(from, name)
		if err != nil {
			return nil, err
		}
		return []mapper.ColumnRef{{Table: owner, Name: name}}, nil
	}

	// Computed columns carry no table; the mapper rejects them by position
	// unless the caller maps with an explicit table list instead.
	name := field.AsName.L
	if name == "" {
		name = "(expr)"
	}
	return []mapper.ColumnRef{{Name: name}}, nil
}

func lookupAlias(from []fromTable, qualifier string) (fromTable, error) {
	for _, ft := range from {
		if ft.alias == qualifier {
			return ft, nil
		}
	}
	return fromTable{}, fmt.Errorf("%w: qualifier %q is not in FROM", ErrUnresolvableColumns, qualifier)
}

// uniqueOwner attributes an unqualified column to the only FROM table
// declaring it. Two candidate owners make the statement ambiguous.
func uniqueOwner(from []fromTable, column string) (string, error) {
	owner := ""
	for _, ft := range from {
		if !ft.table.HasColumn(column) {
			continue
		}
		if owner != "" {
			return "", fmt.Errorf("%w: column %q is ambiguous", ErrUnresolvableColumns, column)
		}
		owner = ft.table.Name
	}
	if owner == "" {
		return "", fmt.Errorf("%w: column %q is not declared by any FROM table", ErrUnresolvableColumns, column)
	}
	return owner, nil
}

func tableRefs(table *schema.Table) []mapper.ColumnRef {
	refs := make([]mapper.ColumnRef, 0, len(table.Columns))
	for _, col := range table.Columns {
		refs = append(refs, mapper.ColumnRef{Table: table.Name, Name: col})
	}
	return refs
}
