package schema

import (
	"encoding/json"
	"fmt"
	"os"

	"uniquery/internal/naming"
)

// artifact is the JSON shape of a registry file. Only declared metadata is
// stored; link-table flags and relationship attributes are re-derived on
// load so they always match the loading session's naming configuration.
type artifact struct {
	Tables []Table `json:"tables"`
}

// LoadFile reads a registry artifact from disk and builds a validated
// Registry from it.
func LoadFile(path string, namer *naming.Namer) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry artifact: %w", err)
	}
	return Load(data, namer)
}

// Load builds a validated Registry from artifact bytes.
func Load(data []byte, namer *naming.Namer) (*Registry, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode registry artifact: %w", err)
	}
	return NewRegistry(a.Tables, namer)
}

// SaveFile writes the registry's declared metadata to a JSON artifact.
func SaveFile(r *Registry, path string) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry artifact: %w", err)
	}
	return nil
}

// Marshal encodes the registry's declared metadata as artifact bytes.
func Marshal(r *Registry) ([]byte, error) {
	a := artifact{Tables: make([]Table, 0, len(r.order))}
	for _, t := range r.Tables() {
		a.Tables = append(a.Tables, Table{
			Name:        t.Name,
			PrimaryKey:  t.PrimaryKey,
			Columns:     t.Columns,
			ForeignKeys: t.ForeignKeys,
		})
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry artifact: %w", err)
	}
	return data, nil
}
