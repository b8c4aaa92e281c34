// Package introspect discovers table metadata from a live database: declared
// columns, the primary-key column, and foreign-key constraints. The result
// feeds schema.NewRegistry, so only the metadata the mapping engine consumes
// is collected.
package introspect

import (
	"context"
	"database/sql"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"uniquery/internal/schema"
)

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// tableAccumulator collects per-table discovery output before validation.
type tableAccumulator struct {
	name        string
	columns     []string
	primaryKeys []string
	foreignKeys []schema.ForeignKey
}

// finish validates accumulated tables and drops the ones the mapping engine
// cannot address: composite primary keys and keyless tables are skipped with
// a warning rather than failing the whole discovery.
func finish(acc []*tableAccumulator) []schema.Table {
	tables := make([]schema.Table, 0, len(acc))
	for _, ta := range acc {
		if len(ta.primaryKeys) != 1 {
			slog.Default().Warn("skipping table without a single-column primary key",
				slog.String("table", ta.name),
				slog.Int("primary_key_columns", len(ta.primaryKeys)),
			)
			continue
		}
		tables = append(tables, schema.Table{
			Name:        ta.name,
			PrimaryKey:  ta.primaryKeys[0],
			Columns:     ta.columns,
			ForeignKeys: ta.foreignKeys,
		})
	}
	return tables
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("uniquery/introspect")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
