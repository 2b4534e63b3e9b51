package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	offeringWholesalerJoin = Join{
		Type: LeftJoin, Table: "wholesalers", Alias: "w",
		On: []On{{Left: "wio.wholesaler_id", Op: OpEquals, Right: "w.wholesaler_id"}},
	}
	offeringCategoryJoin = Join{
		Type: LeftJoin, Table: "product_categories", Alias: "pc",
		On: []On{{Left: "wio.category_id", Op: OpEquals, Right: "pc.category_id"}},
	}
)

func testEntities() []Entity {
	return []Entity{
		{
			Name:         "wholesaler",
			Table:        "wholesalers",
			Alias:        "w",
			PrimaryKey:   []string{"wholesaler_id"},
			Columns:      []string{"wholesaler_id", "name", "region", "status", "dropship", "created_at"},
			DefaultOrder: []Sort{{Key: "name", Direction: Asc}},
		},
		{
			Name:         "product_category",
			Table:        "product_categories",
			Alias:        "pc",
			PrimaryKey:   []string{"category_id"},
			Columns:      []string{"category_id", "name", "description"},
			DefaultOrder: []Sort{{Key: "name"}},
		},
		{
			Name:            "offering",
			Table:           "wholesaler_item_offerings",
			Alias:           "wio",
			PrimaryKey:      []string{"offering_id"},
			Columns:         []string{"offering_id", "wholesaler_id", "category_id", "title", "price", "created_at"},
			DefaultOrder:    []Sort{{Key: "offering_id"}},
			Joins:           []Join{offeringWholesalerJoin, offeringCategoryJoin},
			RawWhereColumns: []string{"title", "price", "wholesaler_id"},
		},
	}
}

func testNamedQueries() []NamedQuery {
	return []NamedQuery{
		{
			Name:         "offerings_with_details",
			Entity:       "offering",
			Joins:        []Join{offeringWholesalerJoin, offeringCategoryJoin},
			DefaultOrder: []Sort{{Key: "w.name"}, {Key: "title"}},
		},
	}
}

func testConfig(t *testing.T, dialect Dialect, limits Limits) *Config {
	t.Helper()
	cfg, err := NewConfig(dialect, limits, testEntities(), testNamedQueries())
	require.NoError(t, err)
	return cfg
}

func intPtr(i int) *int { return &i }
