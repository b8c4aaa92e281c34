package naming

import (
	"log/slog"
	"strings"
)

// Namer provides the name transformation functions used when deriving
// relationship attribute names from table and column names. Attribute names
// are fixed at schema-load time and stay in snake_case, matching the column
// namespace they live alongside.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// ManyToOneAttr derives the singular attribute name for a foreign-key
// reference from the FK column name with common suffixes stripped.
// Example: "salesrep_id" -> "salesrep", "created_by_user_fk" -> "created_by_user"
func (n *Namer) ManyToOneAttr(fkColumn string) string {
	name := fkColumn
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) && len(name) > len(suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return name
}

// OneToManyAttr derives the plural attribute name exposed on the referenced
// table for the records that point at it.
// If isOnlyFK is true (single FK from the referencing table), uses the
// pluralized table name. Otherwise prefixes with the FK column name for
// disambiguation.
// Example: isOnlyFK=true: "invoices" -> "invoices"
// Example: isOnlyFK=false, fkColumn="author_id": "posts" -> "author_posts"
func (n *Namer) OneToManyAttr(sourceTable, fkColumn string, isOnlyFK bool) string {
	plural := n.Pluralize(n.Singularize(sourceTable))

	if isOnlyFK {
		return plural
	}
	return n.ManyToOneAttr(fkColumn) + "_" + plural
}

// ManyToManyAttr derives the plural attribute name for direct many-to-many
// access through a link table.
// Example: "cars" -> "cars", "person" -> "people"
func (n *Namer) ManyToManyAttr(targetTable string) string {
	return n.Pluralize(n.Singularize(targetTable))
}

// LinkSuffixedAttr disambiguates a many-to-many attribute that collides with
// an existing attribute or column by appending the link table name.
// Example: ("cars", "clients_cars") -> "cars_via_clients_cars"
func (n *Namer) LinkSuffixedAttr(attr, linkTable string) string {
	return attr + "_via_" + linkTable
}

// TypeName converts a table name to a Go type name in singular PascalCase.
// Example: "user_profiles" -> "UserProfile"
func (n *Namer) TypeName(tableName string) string {
	return ToPascalCase(n.Singularize(tableName))
}

// ToPascalCase converts snake_case to PascalCase
func ToPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// ToCamelCase converts snake_case to camelCase
func ToCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
