// Package catalog declares the wholesale catalog schema: entity descriptors,
// predefined queries and the migrations that create the tables.
package catalog

import (
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
)

// Entity names.
const (
	Wholesaler         = "wholesaler"
	ProductCategory    = "product_category"
	ProductDefinition  = "product_definition"
	Offering           = "offering"
	Attribute          = "attribute"
	OfferingLink       = "offering_link"
	WholesalerCategory = "wholesaler_category"
	OfferingAttribute  = "offering_attribute"
	Order              = "order"
	OrderItem          = "order_item"
	Material           = "material"
	Form               = "form"
)

func on(left, right string) []query.On {
	return []query.On{{Left: left, Op: query.OpEquals, Right: right}}
}

// Entities returns the descriptors of every queryable table. Each call
// returns fresh values.
func Entities() []query.Entity {
	return []query.Entity{
		{
			Name:            Wholesaler,
			Table:           "wholesalers",
			Alias:           "w",
			PrimaryKey:      []string{"wholesaler_id"},
			Columns:         []string{"wholesaler_id", "name", "region", "status", "dropship", "website", "b2b_notes", "created_at"},
			DefaultOrder:    []query.Sort{{Key: "name", Direction: query.Asc}},
			RawWhereColumns: []string{"wholesaler_id", "name", "region", "status", "dropship"},
		},
		{
			Name:         ProductCategory,
			Table:        "product_categories",
			Alias:        "pc",
			PrimaryKey:   []string{"category_id"},
			Columns:      []string{"category_id", "name", "description"},
			DefaultOrder: []query.Sort{{Key: "name", Direction: query.Asc}},
		},
		{
			Name:         ProductDefinition,
			Table:        "product_definitions",
			Alias:        "pd",
			PrimaryKey:   []string{"product_def_id"},
			Columns:      []string{"product_def_id", "category_id", "title", "description", "material_id", "form_id", "created_at"},
			DefaultOrder: []query.Sort{{Key: "title", Direction: query.Asc}},
			Joins: []query.Join{
				{Type: query.InnerJoin, Table: "product_categories", Alias: "pc", On: on("pd.category_id", "pc.category_id")},
				{Type: query.LeftJoin, Table: "materials", Alias: "m", On: on("pd.material_id", "m.material_id")},
				{Type: query.LeftJoin, Table: "forms", Alias: "f", On: on("pd.form_id", "f.form_id")},
			},
		},
		{
			Name:       Offering,
			Table:      "wholesaler_item_offerings",
			Alias:      "wio",
			PrimaryKey: []string{"offering_id"},
			Columns: []string{
				"offering_id", "wholesaler_id", "category_id", "product_def_id", "title",
				"size", "dimensions", "price", "currency", "comment", "created_at",
			},
			DefaultOrder: []query.Sort{{Key: "title", Direction: query.Asc}, {Key: "offering_id", Direction: query.Asc}},
			Joins: []query.Join{
				{Type: query.LeftJoin, Table: "wholesalers", Alias: "w", On: on("wio.wholesaler_id", "w.wholesaler_id")},
				{Type: query.LeftJoin, Table: "product_categories", Alias: "pc", On: on("wio.category_id", "pc.category_id")},
				{Type: query.LeftJoin, Table: "product_definitions", Alias: "pd", On: on("wio.product_def_id", "pd.product_def_id")},
			},
			RawWhereColumns: []string{"offering_id", "wholesaler_id", "category_id", "product_def_id", "title", "size", "price", "currency"},
		},
		{
			Name:         Attribute,
			Table:        "attributes",
			Alias:        "a",
			PrimaryKey:   []string{"attribute_id"},
			Columns:      []string{"attribute_id", "name", "description"},
			DefaultOrder: []query.Sort{{Key: "name", Direction: query.Asc}},
		},
		{
			Name:         OfferingLink,
			Table:        "wholesaler_offering_links",
			Alias:        "wol",
			PrimaryKey:   []string{"link_id"},
			Columns:      []string{"link_id", "offering_id", "url", "notes", "created_at"},
			DefaultOrder: []query.Sort{{Key: "link_id", Direction: query.Asc}},
			Joins: []query.Join{
				{Type: query.InnerJoin, Table: "wholesaler_item_offerings", Alias: "wio", On: on("wol.offering_id", "wio.offering_id")},
			},
		},
		{
			Name:         WholesalerCategory,
			Table:        "wholesaler_categories",
			Alias:        "wc",
			PrimaryKey:   []string{"wholesaler_id", "category_id"},
			Columns:      []string{"wholesaler_id", "category_id", "comment", "link", "created_at"},
			DefaultOrder: []query.Sort{{Key: "wholesaler_id", Direction: query.Asc}, {Key: "category_id", Direction: query.Asc}},
			Joins: []query.Join{
				{Type: query.InnerJoin, Table: "wholesalers", Alias: "w", On: on("wc.wholesaler_id", "w.wholesaler_id")},
				{Type: query.InnerJoin, Table: "product_categories", Alias: "pc", On: on("wc.category_id", "pc.category_id")},
			},
		},
		{
			Name:         OfferingAttribute,
			Table:        "wholesaler_offering_attributes",
			Alias:        "woa",
			PrimaryKey:   []string{"offering_id", "attribute_id"},
			Columns:      []string{"offering_id", "attribute_id", "value"},
			DefaultOrder: []query.Sort{{Key: "offering_id", Direction: query.Asc}, {Key: "attribute_id", Direction: query.Asc}},
			Joins: []query.Join{
				{Type: query.InnerJoin, Table: "wholesaler_item_offerings", Alias: "wio", On: on("woa.offering_id", "wio.offering_id")},
				{Type: query.InnerJoin, Table: "attributes", Alias: "a", On: on("woa.attribute_id", "a.attribute_id")},
			},
		},
		{
			Name:       Order,
			Table:      "orders",
			Alias:      "ord",
			PrimaryKey: []string{"order_id"},
			Columns: []string{
				"order_id", "wholesaler_id", "order_date", "order_number", "status",
				"total_amount", "currency", "notes", "created_at",
			},
			DefaultOrder: []query.Sort{{Key: "order_date", Direction: query.Desc}, {Key: "order_id", Direction: query.Desc}},
			Joins: []query.Join{
				{Type: query.LeftJoin, Table: "wholesalers", Alias: "w", On: on("ord.wholesaler_id", "w.wholesaler_id")},
			},
			RawWhereColumns: []string{"order_id", "wholesaler_id", "order_date", "order_number", "status", "total_amount", "currency"},
		},
		{
			Name:         OrderItem,
			Table:        "order_items",
			Alias:        "oi",
			PrimaryKey:   []string{"order_item_id"},
			Columns:      []string{"order_item_id", "order_id", "offering_id", "quantity", "unit_price", "item_notes", "created_at"},
			DefaultOrder: []query.Sort{{Key: "order_item_id", Direction: query.Asc}},
			Joins: []query.Join{
				{Type: query.InnerJoin, Table: "orders", Alias: "ord", On: on("oi.order_id", "ord.order_id")},
				{Type: query.LeftJoin, Table: "wholesaler_item_offerings", Alias: "wio", On: on("oi.offering_id", "wio.offering_id")},
			},
		},
		{
			Name:         Material,
			Table:        "materials",
			Alias:        "m",
			PrimaryKey:   []string{"material_id"},
			Columns:      []string{"material_id", "name"},
			DefaultOrder: []query.Sort{{Key: "name", Direction: query.Asc}},
		},
		{
			Name:         Form,
			Table:        "forms",
			Alias:        "f",
			PrimaryKey:   []string{"form_id"},
			Columns:      []string{"form_id", "name"},
			DefaultOrder: []query.Sort{{Key: "name", Direction: query.Asc}},
		},
	}
}

// Lookup returns the descriptor of one entity.
func Lookup(name string) (query.Entity, bool) {
	for _, e := range Entities() {
		if e.Name == name {
			return e, true
		}
	}
	return query.Entity{}, false
}
