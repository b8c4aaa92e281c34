package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniquery/internal/naming"
)

func dealershipTables() []Table {
	return []Table{
		{
			Name:       "clients",
			PrimaryKey: "id",
			Columns:    []string{"id", "name"},
		},
		{
			Name:       "cars",
			PrimaryKey: "id",
			Columns:    []string{"id", "make"},
		},
		{
			Name:       "clients_cars",
			PrimaryKey: "id",
			Columns:    []string{"id", "client_id", "car_id"},
			ForeignKeys: []ForeignKey{
				{Column: "client_id", ReferencedTable: "clients", ReferencedColumn: "id"},
				{Column: "car_id", ReferencedTable: "cars", ReferencedColumn: "id"},
			},
		},
	}
}

func invoicingTables() []Table {
	return []Table{
		{
			Name:       "invoices",
			PrimaryKey: "id",
			Columns:    []string{"id", "salesrep_id", "total"},
			ForeignKeys: []ForeignKey{
				{Column: "salesrep_id", ReferencedTable: "salesreps", ReferencedColumn: "id"},
			},
		},
		{
			Name:       "salesreps",
			PrimaryKey: "id",
			Columns:    []string{"id", "name"},
		},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		tables  []Table
		wantErr string
	}{
		{
			name: "missing primary key declaration",
			tables: []Table{
				{Name: "logs", Columns: []string{"message"}},
			},
			wantErr: `table "logs" declares no primary key`,
		},
		{
			name: "primary key not in column list",
			tables: []Table{
				{Name: "logs", PrimaryKey: "id", Columns: []string{"message"}},
			},
			wantErr: `primary key column "id" is not in the column list`,
		},
		{
			name: "duplicate table",
			tables: []Table{
				{Name: "a", PrimaryKey: "id", Columns: []string{"id"}},
				{Name: "a", PrimaryKey: "id", Columns: []string{"id"}},
			},
			wantErr: `duplicate table "a"`,
		},
		{
			name: "foreign key to unknown table",
			tables: []Table{
				{
					Name:       "invoices",
					PrimaryKey: "id",
					Columns:    []string{"id", "salesrep_id"},
					ForeignKeys: []ForeignKey{
						{Column: "salesrep_id", ReferencedTable: "salesreps", ReferencedColumn: "id"},
					},
				},
			},
			wantErr: `references unknown table "salesreps"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tables, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMissingPrimaryKeyErrorType(t *testing.T) {
	_, err := NewRegistry([]Table{{Name: "logs", Columns: []string{"message"}}}, nil)
	require.Error(t, err)

	var mpk *MissingPrimaryKeyError
	require.ErrorAs(t, err, &mpk)
	assert.Equal(t, "logs", mpk.Table)
}

func TestLinkTableClassification(t *testing.T) {
	tests := []struct {
		name   string
		tables []Table
		links  map[string]bool
	}{
		{
			name:   "pure link table",
			tables: dealershipTables(),
			links:  map[string]bool{"clients": false, "cars": false, "clients_cars": true},
		},
		{
			name: "extra column disqualifies",
			tables: []Table{
				{Name: "clients", PrimaryKey: "id", Columns: []string{"id"}},
				{Name: "cars", PrimaryKey: "id", Columns: []string{"id"}},
				{
					Name:       "clients_cars",
					PrimaryKey: "id",
					Columns:    []string{"id", "client_id", "car_id", "since"},
					ForeignKeys: []ForeignKey{
						{Column: "client_id", ReferencedTable: "clients", ReferencedColumn: "id"},
						{Column: "car_id", ReferencedTable: "cars", ReferencedColumn: "id"},
					},
				},
			},
			links: map[string]bool{"clients_cars": false},
		},
		{
			name: "self-referential pair disqualifies",
			tables: []Table{
				{Name: "people", PrimaryKey: "id", Columns: []string{"id"}},
				{
					Name:       "friendships",
					PrimaryKey: "id",
					Columns:    []string{"id", "person_id", "friend_id"},
					ForeignKeys: []ForeignKey{
						{Column: "person_id", ReferencedTable: "people", ReferencedColumn: "id"},
						{Column: "friend_id", ReferencedTable: "people", ReferencedColumn: "id"},
					},
				},
			},
			links: map[string]bool{"friendships": false},
		},
		{
			name:   "single FK is not a link",
			tables: invoicingTables(),
			links:  map[string]bool{"invoices": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.tables, nil)
			require.NoError(t, err)
			for name, want := range tt.links {
				table, ok := reg.Table(name)
				require.True(t, ok, "table %s missing", name)
				assert.Equal(t, want, table.IsLinkTable, "table %s", name)
			}
		})
	}
}

func TestRelationshipDerivationDirectFK(t *testing.T) {
	reg, err := NewRegistry(invoicingTables(), nil)
	require.NoError(t, err)

	invoices, _ := reg.Table("invoices")
	require.Len(t, invoices.Relationships, 1)
	rel := invoices.Relationships[0]
	assert.Equal(t, ManyToOne, rel.Kind)
	assert.Equal(t, "salesrep", rel.Attr)
	assert.Equal(t, "salesrep_id", rel.LocalColumn)
	assert.Equal(t, "salesreps", rel.RemoteTable)
	assert.Equal(t, "invoices", rel.InverseAttr)

	salesreps, _ := reg.Table("salesreps")
	require.Len(t, salesreps.Relationships, 1)
	inv := salesreps.Relationships[0]
	assert.Equal(t, OneToMany, inv.Kind)
	assert.Equal(t, "invoices", inv.Attr)
	assert.Equal(t, "invoices", inv.RemoteTable)
	assert.Equal(t, "salesrep_id", inv.RemoteColumn)
	assert.Equal(t, "salesrep", inv.InverseAttr)
}

func TestRelationshipDerivationManyToMany(t *testing.T) {
	reg, err := NewRegistry(dealershipTables(), nil)
	require.NoError(t, err)

	clients, _ := reg.Table("clients")
	require.Len(t, clients.Relationships, 1)
	rel := clients.Relationships[0]
	assert.Equal(t, ManyToMany, rel.Kind)
	assert.Equal(t, "cars", rel.Attr)
	assert.Equal(t, "clients_cars", rel.LinkTable)
	assert.Equal(t, "clients", rel.InverseAttr)

	// Link table itself carries no attributes
	link, _ := reg.Table("clients_cars")
	assert.Empty(t, link.Relationships)

	spec, ok := reg.LinkSpec("clients_cars")
	require.True(t, ok)
	assert.Equal(t, "cars", spec.LeftTable)
	assert.Equal(t, "clients", spec.RightTable)
	assert.Equal(t, "clients", spec.LeftAttr)
	assert.Equal(t, "cars", spec.RightAttr)
}

func TestRelationshipDisambiguationMultipleFKs(t *testing.T) {
	tables := []Table{
		{Name: "users", PrimaryKey: "id", Columns: []string{"id", "name"}},
		{
			Name:       "posts",
			PrimaryKey: "id",
			Columns:    []string{"id", "author_id", "editor_id"},
			ForeignKeys: []ForeignKey{
				{Column: "author_id", ReferencedTable: "users", ReferencedColumn: "id"},
				{Column: "editor_id", ReferencedTable: "users", ReferencedColumn: "id"},
			},
		},
	}
	reg, err := NewRegistry(tables, nil)
	require.NoError(t, err)

	posts, _ := reg.Table("posts")
	require.Len(t, posts.Relationships, 2)
	assert.Equal(t, "author", posts.Relationships[0].Attr)
	assert.Equal(t, "editor", posts.Relationships[1].Attr)

	users, _ := reg.Table("users")
	require.Len(t, users.Relationships, 2)
	assert.Equal(t, "author_posts", users.Relationships[0].Attr)
	assert.Equal(t, "editor_posts", users.Relationships[1].Attr)
}

func TestAttrNeverShadowsColumn(t *testing.T) {
	// "salesrep" is also a plain column on invoices, so the FK attribute
	// falls back to a suffixed name.
	tables := []Table{
		{
			Name:       "invoices",
			PrimaryKey: "id",
			Columns:    []string{"id", "salesrep", "salesrep_id"},
			ForeignKeys: []ForeignKey{
				{Column: "salesrep_id", ReferencedTable: "salesreps", ReferencedColumn: "id"},
			},
		},
		{Name: "salesreps", PrimaryKey: "id", Columns: []string{"id"}},
	}
	reg, err := NewRegistry(tables, nil)
	require.NoError(t, err)

	invoices, _ := reg.Table("invoices")
	require.Len(t, invoices.Relationships, 1)
	assert.Equal(t, "salesrep_ref", invoices.Relationships[0].Attr)
}

func TestPluralAttrs(t *testing.T) {
	reg, err := NewRegistry(dealershipTables(), nil)
	require.NoError(t, err)

	clients, _ := reg.Table("clients")
	assert.Equal(t, []string{"cars"}, clients.PluralAttrs())
}

func TestNamingOverridesFlowThrough(t *testing.T) {
	cfg := naming.DefaultConfig()
	cfg.PluralOverrides["salesrep"] = "salespeople"
	namer := naming.New(cfg, nil)

	tables := []Table{
		{Name: "salesreps", PrimaryKey: "id", Columns: []string{"id"}},
		{
			Name:       "invoices",
			PrimaryKey: "id",
			Columns:    []string{"id", "salesrep_id"},
			ForeignKeys: []ForeignKey{
				{Column: "salesrep_id", ReferencedTable: "salesreps", ReferencedColumn: "id"},
			},
		},
	}
	reg, err := NewRegistry(tables, namer)
	require.NoError(t, err)

	// The override only affects pluralization of the singular form.
	invoices, _ := reg.Table("invoices")
	assert.Equal(t, "salesrep", invoices.Relationships[0].Attr)
}

func TestArtifactRoundTrip(t *testing.T) {
	reg, err := NewRegistry(dealershipTables(), nil)
	require.NoError(t, err)

	data, err := Marshal(reg)
	require.NoError(t, err)

	loaded, err := Load(data, nil)
	require.NoError(t, err)

	link, ok := loaded.Table("clients_cars")
	require.True(t, ok)
	assert.True(t, link.IsLinkTable, "derived classification must survive the round trip")

	clients, _ := loaded.Table("clients")
	require.Len(t, clients.Relationships, 1)
	assert.Equal(t, "cars", clients.Relationships[0].Attr)
}
