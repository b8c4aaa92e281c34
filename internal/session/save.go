package session

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"uniquery/internal/mapper"
	"uniquery/internal/schema"
)

// Save persists a record: a plain INSERT with insert-ID capture when the
// primary-key field is unset, an upsert keyed on the primary key otherwise.
// On insert the captured ID is written back into the record.
func (t *Transaction) Save(ctx context.Context, rec *mapper.Record) error {
	return t.session.save(ctx, t.tx, rec)
}

// Save persists a record outside any transaction.
func (s *Session) Save(ctx context.Context, rec *mapper.Record) error {
	return s.save(ctx, s.db, rec)
}

// Delete removes a record by primary key. A record without a primary-key
// value cannot be addressed and yields MissingIDError.
func (t *Transaction) Delete(ctx context.Context, rec *mapper.Record) error {
	return t.session.delete(ctx, t.tx, rec)
}

// Delete removes a record by primary key outside any transaction.
func (s *Session) Delete(ctx context.Context, rec *mapper.Record) error {
	return s.delete(ctx, s.db, rec)
}

// DeleteAll removes the rows of a table whose primary keys are listed. An
// empty list is a no-op.
func (t *Transaction) DeleteAll(ctx context.Context, table string, pks []any) error {
	return t.session.deleteAll(ctx, t.tx, table, pks)
}

// DeleteAll removes rows by primary key outside any transaction.
func (s *Session) DeleteAll(ctx context.Context, table string, pks []any) error {
	return s.deleteAll(ctx, s.db, table, pks)
}

// InsertMany inserts a batch of rows in one multi-VALUES statement.
func (t *Transaction) InsertMany(ctx context.Context, table string, columns []string, rows [][]any) error {
	return t.session.insertMany(ctx, t.tx, table, columns, rows)
}

// InsertMany inserts a batch of rows outside any transaction.
func (s *Session) InsertMany(ctx context.Context, table string, columns []string, rows [][]any) error {
	return s.insertMany(ctx, s.db, table, columns, rows)
}

func (s *Session) save(ctx context.Context, r runner, rec *mapper.Record) error {
	table, ok := s.registry.Table(rec.Table())
	if !ok {
		return fmt.Errorf("unknown table %q", rec.Table())
	}

	pkVal := rec.Field(table.PrimaryKey)
	columns, values := s.recordColumns(table, rec, pkVal != nil)

	if pkVal == nil {
		id, err := s.insertReturningID(ctx, r, table, columns, values)
		if err != nil {
			return err
		}
		rec.SetField(table.PrimaryKey, id)
		return nil
	}
	return s.upsert(ctx, r, table, columns, values)
}

// recordColumns collects the record's populated fields in declared column
// order; the primary key is included only when it carries a value.
func (s *Session) recordColumns(table *schema.Table, rec *mapper.Record, withPK bool) ([]string, []any) {
	fields := rec.Fields()
	columns := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields))
	for _, col := range table.Columns {
		if col == table.PrimaryKey && !withPK {
			continue
		}
		v, ok := fields[col]
		if !ok {
			continue
		}
		columns = append(columns, col)
		values = append(values, v)
	}
	return columns, values
}

func (s *Session) insertReturningID(ctx context.Context, r runner, table *schema.Table, columns []string, values []any) (any, error) {
	builder := sq.Insert(s.dialect.Quote(table.Name)).
		Columns(s.quoteAll(columns)...).
		Values(values...).
		PlaceholderFormat(s.dialect.placeholder)

	if s.dialect.useReturning {
		builder = builder.Suffix("RETURNING " + s.dialect.Quote(table.PrimaryKey))
		query, args, err := builder.ToSql()
		if err != nil {
			return nil, err
		}
		s.debugSQL(query, args)
		var id any
		if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert into %s failed: %w", table.Name, err)
		}
		return id, nil
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	res, err := s.exec(ctx, r, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s failed: %w", table.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to capture insert id for %s: %w", table.Name, err)
	}
	return id, nil
}

func (s *Session) upsert(ctx context.Context, r runner, table *schema.Table, columns []string, values []any) error {
	assignColumns := make([]string, 0, len(columns))
	for _, col := range columns {
		if col != table.PrimaryKey {
			assignColumns = append(assignColumns, col)
		}
	}

	suffix := ""
	if len(assignColumns) == 0 {
		// Nothing to refresh on conflict: the row is all key.
		if s.dialect.name == "mysql" {
			q := s.dialect.Quote(table.PrimaryKey)
			suffix = fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", q, q)
		} else {
			suffix = fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", s.dialect.Quote(table.PrimaryKey))
		}
	} else {
		suffix = s.dialect.upsert(table, assignColumns)
	}

	query, args, err := sq.Insert(s.dialect.Quote(table.Name)).
		Columns(s.quoteAll(columns)...).
		Values(values...).
		Suffix(suffix).
		PlaceholderFormat(s.dialect.placeholder).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, r, query, args...); err != nil {
		return fmt.Errorf("upsert into %s failed: %w", table.Name, err)
	}
	return nil
}

func (s *Session) delete(ctx context.Context, r runner, rec *mapper.Record) error {
	table, ok := s.registry.Table(rec.Table())
	if !ok {
		return fmt.Errorf("unknown table %q", rec.Table())
	}
	pkVal := rec.Field(table.PrimaryKey)
	if pkVal == nil {
		return &MissingIDError{Table: table.Name}
	}

	query, args, err := sq.Delete(s.dialect.Quote(table.Name)).
		Where(sq.Eq{s.dialect.Quote(table.PrimaryKey): pkVal}).
		PlaceholderFormat(s.dialect.placeholder).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, r, query, args...); err != nil {
		return fmt.Errorf("delete from %s failed: %w", table.Name, err)
	}
	return nil
}

func (s *Session) deleteAll(ctx context.Context, r runner, tableName string, pks []any) error {
	if len(pks) == 0 {
		return nil
	}
	table, ok := s.registry.Table(tableName)
	if !ok {
		return fmt.Errorf("unknown table %q", tableName)
	}

	query, args, err := sq.Delete(s.dialect.Quote(table.Name)).
		Where(sq.Eq{s.dialect.Quote(table.PrimaryKey): pks}).
		PlaceholderFormat(s.dialect.placeholder).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, r, query, args...); err != nil {
		return fmt.Errorf("delete from %s failed: %w", table.Name, err)
	}
	return nil
}

func (s *Session) insertMany(ctx context.Context, r runner, tableName string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	table, ok := s.registry.Table(tableName)
	if !ok {
		return fmt.Errorf("unknown table %q", tableName)
	}

	builder := sq.Insert(s.dialect.Quote(table.Name)).
		Columns(s.quoteAll(columns)...).
		PlaceholderFormat(s.dialect.placeholder)
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		builder = builder.Values(row...)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, r, query, args...); err != nil {
		return fmt.Errorf("insert into %s failed: %w", table.Name, err)
	}
	return nil
}

func (s *Session) quoteAll(columns []string) []string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = s.dialect.Quote(col)
	}
	return quoted
}
