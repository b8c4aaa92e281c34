package mapper

import "fmt"

// ColumnCountMismatchError reports that an explicit table-list override does
// not account for every result column. Raised before any row is processed.
type ColumnCountMismatchError struct {
	Expected int // sum of declared columns over the listed tables
	Actual   int // columns in the query result
}

func (e *ColumnCountMismatchError) Error() string {
	return fmt.Sprintf("the listed tables declare %d columns but the query returned %d", e.Expected, e.Actual)
}

// UnmappedColumnError reports a result column that cannot be attributed to
// any declared table column, such as a calculated or aliased expression.
// Calculated columns are rejected rather than silently mismapped.
type UnmappedColumnError struct {
	Column   string
	Table    string // owning table when known, empty otherwise
	Position int    // zero-based position in the result column list
}

func (e *UnmappedColumnError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("column %q at position %d is not declared by table %q", e.Column, e.Position, e.Table)
	}
	return fmt.Sprintf("column %q at position %d cannot be attributed to any table", e.Column, e.Position)
}

// PrimaryKeyNotSelectedError reports a query whose result columns include a
// table but not that table's primary key, leaving its rows without identity.
type PrimaryKeyNotSelectedError struct {
	Table  string
	Column string
}

func (e *PrimaryKeyNotSelectedError) Error() string {
	return fmt.Sprintf("column %q must be included in queries involving table %q", e.Column, e.Table)
}

// RowWidthError reports a row whose value count does not match the resolved
// column layout.
type RowWidthError struct {
	Expected int
	Actual   int
}

func (e *RowWidthError) Error() string {
	return fmt.Sprintf("row carries %d values, resolved column layout expects %d", e.Actual, e.Expected)
}
