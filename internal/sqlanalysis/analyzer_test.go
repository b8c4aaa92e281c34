package sqlanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniquery/internal/mapper"
	"uniquery/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry([]schema.Table{
		{Name: "clients", PrimaryKey: "id", Columns: []string{"id", "name"}},
		{Name: "cars", PrimaryKey: "id", Columns: []string{"id", "make"}},
		{
			Name:       "clients_cars",
			PrimaryKey: "id",
			Columns:    []string{"id", "client_id", "car_id"},
			ForeignKeys: []schema.ForeignKey{
				{Column: "client_id", ReferencedTable: "clients", ReferencedColumn: "id"},
				{Column: "car_id", ReferencedTable: "cars", ReferencedColumn: "id"},
			},
		},
	}, nil)
	require.NoError(t, err)
	return reg
}

func TestColumnsAttribution(t *testing.T) {
	a := New(testRegistry(t))

	tests := []struct {
		name string
		sql  string
		want []mapper.ColumnRef
	}{
		{
			name: "qualified columns",
			sql:  "SELECT clients.id, clients.name FROM clients",
			want: []mapper.ColumnRef{
				{Table: "clients", Name: "id"},
				{Table: "clients", Name: "name"},
			},
		},
		{
			name: "alias qualifiers",
			sql:  "SELECT c.id, c.make FROM cars AS c",
			want: []mapper.ColumnRef{
				{Table: "cars", Name: "id"},
				{Table: "cars", Name: "make"},
			},
		},
		{
			name: "unqualified unique column",
			sql:  "SELECT make, name FROM cars JOIN clients ON 1 = 1",
			want: []mapper.ColumnRef{
				{Table: "cars", Name: "make"},
				{Table: "clients", Name: "name"},
			},
		},
		{
			name: "table wildcard",
			sql:  "SELECT clients.*, cars.make FROM clients JOIN cars ON 1 = 1",
			want: []mapper.ColumnRef{
				{Table: "clients", Name: "id"},
				{Table: "clients", Name: "name"},
				{Table: "cars", Name: "make"},
			},
		},
		{
			name: "bare wildcard expands in FROM order",
			sql:  "SELECT * FROM clients JOIN clients_cars ON clients.id = clients_cars.client_id",
			want: []mapper.ColumnRef{
				{Table: "clients", Name: "id"},
				{Table: "clients", Name: "name"},
				{Table: "clients_cars", Name: "id"},
				{Table: "clients_cars", Name: "client_id"},
				{Table: "clients_cars", Name: "car_id"},
			},
		},
		{
			name: "computed column stays unattributed",
			sql:  "SELECT clients.id, COUNT(1) AS total FROM clients",
			want: []mapper.ColumnRef{
				{Table: "clients", Name: "id"},
				{Name: "total"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := a.Columns(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, refs)
		})
	}
}

func TestColumnsUnresolvable(t *testing.T) {
	a := New(testRegistry(t))

	tests := []struct {
		name string
		sql  string
	}{
		{"union", "SELECT id FROM clients UNION SELECT id FROM cars"},
		{"derived table", "SELECT x.id FROM (SELECT id FROM clients) AS x"},
		{"non-select", "DELETE FROM clients"},
		{"no FROM clause", "SELECT 1"},
		{"unknown table", "SELECT id FROM warehouses"},
		{"unknown qualifier", "SELECT w.id FROM clients"},
		{"ambiguous unqualified column", "SELECT id FROM clients JOIN cars ON 1 = 1"},
		{"column owned by no table", "SELECT vin FROM cars"},
		{"syntax error", "SELEKT id FROM clients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Columns(tt.sql)
			require.ErrorIs(t, err, ErrUnresolvableColumns)
		})
	}
}
