package session

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"uniquery/internal/schema"
)

// Dialect captures the per-database differences the session layer has to
// care about: placeholder format, identifier quoting, the upsert clause, and
// how the ID of a fresh insert is obtained.
type Dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	// useReturning selects RETURNING over Result.LastInsertId for insert-ID
	// capture. Required for postgres, whose driver does not implement
	// LastInsertId.
	useReturning bool
	quote        func(string) string
	upsert       func(table *schema.Table, assignColumns []string) string
}

// Name returns the dialect identifier used in configuration.
func (d Dialect) Name() string {
	return d.name
}

// Quote quotes one identifier for this dialect.
func (d Dialect) Quote(name string) string {
	return d.quote(name)
}

var (
	// MySQL covers MySQL and TiDB.
	MySQL = Dialect{
		name:        "mysql",
		placeholder: sq.Question,
		quote:       backtickQuote,
		upsert:      mysqlUpsert,
	}

	Postgres = Dialect{
		name:         "postgres",
		placeholder:  sq.Dollar,
		useReturning: true,
		quote:        doubleQuote,
		upsert:       conflictUpsert,
	}

	SQLite = Dialect{
		name:        "sqlite",
		placeholder: sq.Question,
		quote:       doubleQuote,
		upsert:      conflictUpsert,
	}
)

// DialectByName resolves a configured dialect name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "tidb":
		return MySQL, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unknown database dialect %q", name)
	}
}

func backtickQuote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func mysqlUpsert(_ *schema.Table, assignColumns []string) string {
	assignments := make([]string, 0, len(assignColumns))
	for _, col := range assignColumns {
		q := backtickQuote(col)
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", q, q))
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")
}

// conflictUpsert targets the primary key column only; secondary unique
// constraints still surface as constraint violations.
func conflictUpsert(table *schema.Table, assignColumns []string) string {
	assignments := make([]string, 0, len(assignColumns))
	for _, col := range assignColumns {
		q := doubleQuote(col)
		assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", q, q))
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		doubleQuote(table.PrimaryKey), strings.Join(assignments, ", "))
}
