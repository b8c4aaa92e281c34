package session

import "fmt"

// MissingIDError reports a write-path operation that needs a primary-key
// value the record does not carry.
type MissingIDError struct {
	Table string
}

func (e *MissingIDError) Error() string {
	return fmt.Sprintf("record of table %q has no primary key value", e.Table)
}
