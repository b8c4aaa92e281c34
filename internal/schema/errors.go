package schema

import "fmt"

// MissingPrimaryKeyError reports a table definition without a usable
// single-column primary key. Raised when the registry is built, so a query
// never encounters a key-less table.
type MissingPrimaryKeyError struct {
	Table  string
	Column string // set when a declared key column is absent from the column list
}

func (e *MissingPrimaryKeyError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("table %q: primary key column %q is not in the column list", e.Table, e.Column)
	}
	return fmt.Sprintf("table %q declares no primary key", e.Table)
}
