package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
)

// =============================================================================
// Entity descriptors
// =============================================================================

func TestEntities(t *testing.T) {
	entities := Entities()
	require.Len(t, entities, 12)

	aliases := map[string]string{}
	for _, e := range entities {
		if other, dup := aliases[e.Alias]; dup {
			t.Errorf("alias %q used by %s and %s", e.Alias, other, e.Name)
		}
		aliases[e.Alias] = e.Name
		assert.NotEmpty(t, e.PrimaryKey, e.Name)
		assert.NotEmpty(t, e.DefaultOrder, e.Name)
	}

	wc, ok := Lookup(WholesalerCategory)
	require.True(t, ok)
	assert.Equal(t, []string{"wholesaler_id", "category_id"}, wc.PrimaryKey)

	_, ok = Lookup("users")
	assert.False(t, ok)
}

func TestNewQueryConfig(t *testing.T) {
	for _, dialect := range []query.Dialect{query.SQLite, query.Postgres} {
		t.Run(string(dialect), func(t *testing.T) {
			cfg, err := NewQueryConfig(dialect, query.Limits{})
			require.NoError(t, err)
			assert.Equal(t, dialect, cfg.Dialect())
			assert.Len(t, cfg.EntityNames(), 12)
		})
	}
}

// =============================================================================
// Predefined queries
// =============================================================================

func TestNamedQueries(t *testing.T) {
	named, err := NamedQueries()
	require.NoError(t, err)

	names := make([]string, len(named))
	for i, n := range named {
		names[i] = n.Name
	}
	assert.Equal(t, []string{
		"offerings_with_details",
		"supplier_categories",
		"category_suppliers",
		"offering_attributes_with_names",
		"order_items_with_offerings",
		"product_definitions_full",
	}, names)

	first := named[0]
	assert.Equal(t, Offering, first.Entity)
	require.Len(t, first.Joins, 3)
	assert.Equal(t, query.LeftJoin, first.Joins[0].Type)
	assert.Equal(t, []query.On{{Left: "wio.wholesaler_id", Op: query.OpEquals, Right: "w.wholesaler_id"}}, first.Joins[0].On)
}

func TestNamedQueries_Compile(t *testing.T) {
	cfg, err := NewQueryConfig(query.SQLite, query.Limits{})
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload *query.Payload
		wantSQL string
	}{
		{
			name:    "supplier_categories",
			payload: &query.Payload{Select: []string{"wholesaler_id", "pc.name AS category_name"}, Where: &query.Where{Key: "wholesaler_id", Op: query.OpEquals, Val: 3}},
			wantSQL: "SELECT wc.wholesaler_id, pc.name AS category_name FROM wholesaler_categories wc " +
				"INNER JOIN product_categories pc ON wc.category_id = pc.category_id " +
				"WHERE wc.wholesaler_id = ? ORDER BY pc.name ASC LIMIT 100",
		},
		{
			name:    "order_items_with_offerings",
			payload: &query.Payload{Select: []string{"quantity", "wio.title", "ord.order_number"}},
			wantSQL: "SELECT oi.quantity, wio.title AS wio_title, ord.order_number AS ord_order_number FROM order_items oi " +
				"INNER JOIN orders ord ON oi.order_id = ord.order_id " +
				"LEFT JOIN wholesaler_item_offerings wio ON oi.offering_id = wio.offering_id " +
				"ORDER BY ord.order_date DESC, oi.order_item_id ASC LIMIT 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := query.Compile(tt.payload, cfg, query.Target{NamedQuery: tt.name})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got.SQL)
		})
	}
}

func TestParseNamedQueries_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "queries:\n  - name: x\n    entity: offering\n    tables: [a]\n"},
		{"wrong shape", "queries: yes\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseNamedQueries([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
