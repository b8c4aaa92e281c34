// Package gen emits typed Go model sources from a schema registry: one
// wrapper struct per visible table over *mapper.Record, with field accessors
// and relationship accessors named after the registry's precomputed
// relationship attributes, plus a typed facade over QueryResult.
package gen

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dave/jennifer/jen"

	"uniquery/internal/naming"
	"uniquery/internal/schema"
)

// DefaultMapperPath is the import path of the record types the generated
// wrappers delegate to.
const DefaultMapperPath = "uniquery/internal/mapper"

// Generator renders model sources for one registry.
type Generator struct {
	registry *schema.Registry
	namer    *naming.Namer
	// pkg is the generated package name.
	pkg string
	// mapperPath overrides DefaultMapperPath when the mapper lives elsewhere.
	mapperPath string
}

// NewGenerator creates a Generator emitting package pkg.
func NewGenerator(registry *schema.Registry, namer *naming.Namer, pkg string) *Generator {
	if namer == nil {
		namer = naming.Default()
	}
	if pkg == "" {
		pkg = "models"
	}
	return &Generator{
		registry:   registry,
		namer:      namer,
		pkg:        pkg,
		mapperPath: DefaultMapperPath,
	}
}

// File builds the generated source tree.
func (g *Generator) File() *jen.File {
	f := jen.NewFile(g.pkg)
	f.HeaderComment("Code generated by uniquery. DO NOT EDIT.")

	g.genResult(f)
	for _, table := range g.registry.Tables() {
		if table.IsLinkTable {
			continue
		}
		g.genModel(f, table)
	}
	return f
}

// Render returns the generated source as formatted Go code.
func (g *Generator) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.File().Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render models: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the models into a source file.
func (g *Generator) WriteFile(path string) error {
	src, err := g.Render()
	if err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}

// genResult emits the typed facade over mapper.QueryResult.
func (g *Generator) genResult(f *jen.File) {
	f.Comment("Result is a typed view over one query's mapped records.")
	f.Type().Id("Result").Struct(
		jen.Id("res").Op("*").Qual(g.mapperPath, "QueryResult"),
	)

	f.Comment("NewResult wraps a mapped query result.")
	f.Func().Id("NewResult").Params(
		jen.Id("res").Op("*").Qual(g.mapperPath, "QueryResult"),
	).Op("*").Id("Result").Block(
		jen.Return(jen.Op("&").Id("Result").Values(jen.Id("res").Op(":").Id("res"))),
	)

	for _, table := range g.registry.Tables() {
		if table.IsLinkTable {
			continue
		}
		typeName := g.namer.TypeName(table.Name)
		listName := naming.ToPascalCase(g.namer.Pluralize(g.namer.Singularize(table.Name)))

		f.Commentf("%s returns the %s records in first-seen order.", listName, table.Name)
		f.Func().Params(jen.Id("r").Op("*").Id("Result")).Id(listName).Params().
			Index().Op("*").Id(typeName).Block(
			jen.Return(jen.Id("new"+typeName+"List").Call(
				jen.Id("r").Dot("res").Dot("Records").Call(jen.Lit(table.Name)),
			)),
		)

		f.Commentf("%s looks up one %s record by primary key.", typeName, table.Name)
		f.Func().Params(jen.Id("r").Op("*").Id("Result")).Id(typeName).Params(jen.Id("pk").Any()).
			Params(jen.Op("*").Id(typeName), jen.Bool()).Block(
			jen.List(jen.Id("rec"), jen.Id("ok")).Op(":=").
				Id("r").Dot("res").Dot("Record").Call(jen.Lit(table.Name), jen.Id("pk")),
			jen.Return(jen.Id("New"+typeName).Call(jen.Id("rec")), jen.Id("ok")),
		)
	}
}

// genModel emits the wrapper type and accessors for one table.
func (g *Generator) genModel(f *jen.File, table *schema.Table) {
	typeName := g.namer.TypeName(table.Name)

	f.Commentf("%s wraps one record of table %s.", typeName, table.Name)
	f.Type().Id(typeName).Struct(
		jen.Id("rec").Op("*").Qual(g.mapperPath, "Record"),
	)

	f.Commentf("New%s wraps a record; nil in, nil out.", typeName)
	f.Func().Id("New" + typeName).Params(
		jen.Id("rec").Op("*").Qual(g.mapperPath, "Record"),
	).Op("*").Id(typeName).Block(
		jen.If(jen.Id("rec").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Op("&").Id(typeName).Values(jen.Id("rec").Op(":").Id("rec"))),
	)

	f.Func().Id("new"+typeName+"List").Params(
		jen.Id("recs").Index().Op("*").Qual(g.mapperPath, "Record"),
	).Index().Op("*").Id(typeName).Block(
		jen.Id("out").Op(":=").Make(jen.Index().Op("*").Id(typeName), jen.Lit(0), jen.Len(jen.Id("recs"))),
		jen.For(jen.List(jen.Id("_"), jen.Id("rec")).Op(":=").Range().Id("recs")).Block(
			jen.Id("out").Op("=").Append(jen.Id("out"), jen.Id("New"+typeName).Call(jen.Id("rec"))),
		),
		jen.Return(jen.Id("out")),
	)

	f.Comment("Record exposes the underlying mapped record.")
	f.Func().Params(jen.Id("m").Op("*").Id(typeName)).Id("Record").Params().
		Op("*").Qual(g.mapperPath, "Record").Block(
		jen.Return(jen.Id("m").Dot("rec")),
	)

	for _, col := range table.Columns {
		accessor := naming.ToPascalCase(col)
		f.Commentf("%s returns the %s column value.", accessor, col)
		f.Func().Params(jen.Id("m").Op("*").Id(typeName)).Id(accessor).Params().Any().Block(
			jen.Return(jen.Id("m").Dot("rec").Dot("Field").Call(jen.Lit(col))),
		)
		f.Func().Params(jen.Id("m").Op("*").Id(typeName)).Id("Set"+accessor).Params(jen.Id("v").Any()).Block(
			jen.Id("m").Dot("rec").Dot("SetField").Call(jen.Lit(col), jen.Id("v")),
		)
	}

	for _, rel := range table.Relationships {
		remoteType := g.namer.TypeName(rel.RemoteTable)
		accessor := naming.ToPascalCase(rel.Attr)
		switch rel.Kind {
		case schema.ManyToOne:
			f.Commentf("%s returns the related %s record, nil when unmatched.", accessor, rel.RemoteTable)
			f.Func().Params(jen.Id("m").Op("*").Id(typeName)).Id(accessor).Params().
				Op("*").Id(remoteType).Block(
				jen.Return(jen.Id("New" + remoteType).Call(
					jen.Id("m").Dot("rec").Dot("Ref").Call(jen.Lit(rel.Attr)),
				)),
			)
		case schema.OneToMany, schema.ManyToMany:
			f.Commentf("%s returns the related %s records in link order.", accessor, rel.RemoteTable)
			f.Func().Params(jen.Id("m").Op("*").Id(typeName)).Id(accessor).Params().
				Index().Op("*").Id(remoteType).Block(
				jen.Return(jen.Id("new" + remoteType + "List").Call(
					jen.Id("m").Dot("rec").Dot("List").Call(jen.Lit(rel.Attr)),
				)),
			)
		}
	}
}
