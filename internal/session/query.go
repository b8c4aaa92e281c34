package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"uniquery/internal/mapper"
)

// QueryOption adjusts how one query's results are mapped.
type QueryOption func(*queryConfig)

type queryConfig struct {
	tables []string
}

// WithTables supplies the ordered table list for statements whose column
// ownership the SQL analysis cannot resolve (UNIONs, CTEs). Each listed
// table's full declared column set is consumed positionally.
func WithTables(tables ...string) QueryOption {
	return func(qc *queryConfig) {
		qc.tables = append([]string(nil), tables...)
	}
}

// Query executes a statement outside any transaction and maps its rows.
func (s *Session) Query(ctx context.Context, query string, args []any, opts ...QueryOption) (*mapper.QueryResult, error) {
	return s.query(ctx, s.db, query, args, opts...)
}

// Query executes a statement inside the transaction and maps its rows.
func (t *Transaction) Query(ctx context.Context, query string, args []any, opts ...QueryOption) (*mapper.QueryResult, error) {
	return t.session.query(ctx, t.tx, query, args, opts...)
}

func (s *Session) query(ctx context.Context, r runner, query string, args []any, opts ...QueryOption) (*mapper.QueryResult, error) {
	ctx, span := otel.Tracer("uniquery/session").Start(ctx, "session.query")
	span.SetAttributes(attribute.String("db.statement", query))
	defer span.End()

	var qc queryConfig
	for _, opt := range opts {
		opt(&qc)
	}

	// Resolve column attribution before touching the database when the
	// analyzer drives it; the explicit override needs the actual column count
	// and resolves right after execution, still before any row is consumed.
	var rm *mapper.RowMapper
	if qc.tables == nil {
		refs, err := s.analyzer.Columns(query)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		rm, err = mapper.New(s.registry).Rows(refs)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	s.debugSQL(query, args)
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if qc.tables != nil {
		rm, err = mapper.New(s.registry).RowsForTables(qc.tables, len(columns))
		if err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			recordError(span, err)
			return nil, err
		}
		if err := rm.ConsumeRow(values); err != nil {
			recordError(span, err)
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		recordError(span, err)
		return nil, err
	}
	return rm.Result(), nil
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
