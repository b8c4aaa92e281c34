package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"uniquery/internal/schema"
)

// SQLite discovers the tables of a SQLite database through sqlite_master and
// the table_info/foreign_key_list pragmas. PRAGMA arguments cannot be bound,
// so table names are quoted inline.
func SQLite(ctx context.Context, db Queryer) ([]schema.Table, error) {
	ctx, span := startSpan(ctx, "introspect.sqlite")
	defer span.End()

	names, err := sqliteTableNames(ctx, db)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	acc := make([]*tableAccumulator, 0, len(names))
	for _, name := range names {
		ta := &tableAccumulator{name: name}

		ta.columns, ta.primaryKeys, err = sqliteColumns(ctx, db, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get columns for %s: %w", name, err)
		}
		ta.foreignKeys, err = sqliteForeignKeys(ctx, db, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to get foreign keys for %s: %w", name, err)
		}
		acc = append(acc, ta)
	}

	// foreign_key_list leaves the referenced column empty when the FK targets
	// the parent's implicit primary key; fill it in from the discovered PKs.
	pkByTable := make(map[string]string, len(acc))
	for _, ta := range acc {
		if len(ta.primaryKeys) == 1 {
			pkByTable[ta.name] = ta.primaryKeys[0]
		}
	}
	for _, ta := range acc {
		for i := range ta.foreignKeys {
			if ta.foreignKeys[i].ReferencedColumn == "" {
				ta.foreignKeys[i].ReferencedColumn = pkByTable[ta.foreignKeys[i].ReferencedTable]
			}
		}
	}

	return finish(acc), nil
}

func sqliteTableNames(ctx context.Context, db Queryer) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func sqliteColumns(ctx context.Context, db Queryer, tableName string) (columns, primaryKeys []string, err error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			cid        int
			name       string
			columnType string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		columns = append(columns, name)
		if pk > 0 {
			primaryKeys = append(primaryKeys, name)
		}
	}
	return columns, primaryKeys, rows.Err()
}

func sqliteForeignKeys(ctx context.Context, db Queryer, tableName string) ([]schema.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var foreignKeys []schema.ForeignKey
	for rows.Next() {
		var (
			id, seq                 int
			refTable, from          string
			to                      sql.NullString
			onUpdate, onDelete, mat string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &mat); err != nil {
			return nil, err
		}
		foreignKeys = append(foreignKeys, schema.ForeignKey{
			Column:           from,
			ReferencedTable:  refTable,
			ReferencedColumn: to.String,
		})
	}
	return foreignKeys, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
