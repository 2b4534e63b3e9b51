package cascade

import (
	"github.com/Masterminds/squirrel"

	"github.com/thomas-mindruptive/pure-svelte-sub003/catalog"
)

// offeringScope selects the offerings owned by a master row.
type offeringScope func(k Key) (string, []any)

func ownedBy(cols ...string) offeringScope {
	return func(k Key) (string, []any) {
		pred := ""
		args := make([]any, len(cols))
		for i, col := range cols {
			if i > 0 {
				pred += " AND "
			}
			pred += col + " = ?"
			args[i] = k[i]
		}
		return pred, args
	}
}

func (s offeringScope) offerings(k Key) squirrel.Sqlizer {
	pred, args := s(k)
	return squirrel.Expr(pred, args...)
}

func (s offeringScope) ofOfferings(k Key) squirrel.Sqlizer {
	pred, args := s(k)
	return squirrel.Expr("offering_id IN (SELECT offering_id FROM wholesaler_item_offerings WHERE "+pred+")", args...)
}

func column(col string) func(Key) squirrel.Sqlizer {
	return func(k Key) squirrel.Sqlizer { return squirrel.Eq{col: k[0]} }
}

var (
	orderItemsLabel  = Label{"order item", "order items"}
	attributesLabel  = Label{"offering attribute", "offering attributes"}
	linksLabel       = Label{"offering link", "offering links"}
	offeringsLabel   = Label{"product offering", "product offerings"}
	assignmentsLabel = Label{"category assignment", "category assignments"}
	definitionsLabel = Label{"product definition", "product definitions"}
)

// offeringSteps removes the offerings in scope and everything hanging off them.
func offeringSteps(scope offeringScope) []Step {
	return []Step{
		{Name: "order_items", Label: orderItemsLabel, Table: "order_items", Severity: Hard, Action: Delete, Where: scope.ofOfferings},
		{Name: "offering_attributes", Label: attributesLabel, Table: "wholesaler_offering_attributes", Severity: Soft, Action: Delete, Where: scope.ofOfferings},
		{Name: "offering_links", Label: linksLabel, Table: "wholesaler_offering_links", Severity: Soft, Action: Delete, Where: scope.ofOfferings},
		{Name: "offerings", Label: offeringsLabel, Table: "wholesaler_item_offerings", Severity: Soft, Action: Delete, Where: scope.offerings},
	}
}

func init() {
	wholesalerOfferings := ownedBy("wholesaler_id")
	register(Plan{
		Kind:    catalog.Wholesaler,
		Table:   "wholesalers",
		Key:     []string{"wholesaler_id"},
		Display: []string{"name"},
		Steps: []Step{
			{
				Name: "order_items", Label: orderItemsLabel, Table: "order_items", Severity: Hard, Action: Delete,
				Where: func(k Key) squirrel.Sqlizer {
					return squirrel.Or{
						squirrel.Expr("order_id IN (SELECT order_id FROM orders WHERE wholesaler_id = ?)", k[0]),
						wholesalerOfferings.ofOfferings(k),
					}
				},
			},
			{Name: "orders", Label: Label{"order", "orders"}, Table: "orders", Severity: Hard, Action: Delete, Where: column("wholesaler_id")},
			{Name: "offering_attributes", Label: attributesLabel, Table: "wholesaler_offering_attributes", Severity: Soft, Action: Delete, Where: wholesalerOfferings.ofOfferings},
			{Name: "offering_links", Label: linksLabel, Table: "wholesaler_offering_links", Severity: Soft, Action: Delete, Where: wholesalerOfferings.ofOfferings},
			{Name: "offerings", Label: offeringsLabel, Table: "wholesaler_item_offerings", Severity: Soft, Action: Delete, Where: wholesalerOfferings.offerings},
			{Name: "category_assignments", Label: assignmentsLabel, Table: "wholesaler_categories", Severity: Soft, Action: Delete, Where: column("wholesaler_id")},
		},
	})

	register(Plan{
		Kind:    catalog.ProductCategory,
		Table:   "product_categories",
		Key:     []string{"category_id"},
		Display: []string{"name"},
		Steps: append(offeringSteps(ownedBy("category_id")),
			Step{Name: "category_assignments", Label: assignmentsLabel, Table: "wholesaler_categories", Severity: Soft, Action: Delete, Where: column("category_id")},
			// Offerings filed under another category may still use one of
			// this category's definitions.
			Step{
				Name: "definition_references", Label: Label{"offering in another category", "offerings in other categories"},
				Table: "wholesaler_item_offerings", Severity: Hard, Action: Detach, Column: "product_def_id",
				Where: func(k Key) squirrel.Sqlizer {
					return squirrel.Expr("product_def_id IN (SELECT product_def_id FROM product_definitions WHERE category_id = ?) AND category_id <> ?", k[0], k[0])
				},
			},
			Step{Name: "product_definitions", Label: definitionsLabel, Table: "product_definitions", Severity: Hard, Action: Delete, Where: column("category_id")},
		),
	})

	register(Plan{
		Kind:    catalog.ProductDefinition,
		Table:   "product_definitions",
		Key:     []string{"product_def_id"},
		Display: []string{"title"},
		Steps:   offeringSteps(ownedBy("product_def_id")),
	})

	register(Plan{
		Kind:    catalog.WholesalerCategory,
		Table:   "wholesaler_categories",
		Key:     []string{"wholesaler_id", "category_id"},
		Display: []string{"comment"},
		Steps:   offeringSteps(ownedBy("wholesaler_id", "category_id")),
	})

	register(Plan{
		Kind:    catalog.Offering,
		Table:   "wholesaler_item_offerings",
		Key:     []string{"offering_id"},
		Display: []string{"title"},
		Steps: []Step{
			{Name: "order_items", Label: orderItemsLabel, Table: "order_items", Severity: Hard, Action: Delete, Where: column("offering_id")},
			{Name: "offering_attributes", Label: attributesLabel, Table: "wholesaler_offering_attributes", Severity: Soft, Action: Delete, Where: column("offering_id")},
			{Name: "offering_links", Label: linksLabel, Table: "wholesaler_offering_links", Severity: Soft, Action: Delete, Where: column("offering_id")},
		},
	})

	register(Plan{
		Kind:    catalog.Attribute,
		Table:   "attributes",
		Key:     []string{"attribute_id"},
		Display: []string{"name"},
		Steps: []Step{
			{Name: "offering_attributes", Label: Label{"offering attribute assignment", "offering attribute assignments"}, Table: "wholesaler_offering_attributes", Severity: Soft, Action: Delete, Where: column("attribute_id")},
		},
	})

	register(Plan{
		Kind:    catalog.Order,
		Table:   "orders",
		Key:     []string{"order_id"},
		Display: []string{"order_number", "order_date"},
		Steps: []Step{
			{Name: "order_items", Label: orderItemsLabel, Table: "order_items", Severity: Soft, Action: Delete, Where: column("order_id")},
		},
	})

	register(Plan{
		Kind:    catalog.OrderItem,
		Table:   "order_items",
		Key:     []string{"order_item_id"},
		Display: []string{"order_id", "offering_id", "quantity"},
	})

	register(Plan{
		Kind:    catalog.OfferingLink,
		Table:   "wholesaler_offering_links",
		Key:     []string{"link_id"},
		Display: []string{"url"},
	})

	register(Plan{
		Kind:    catalog.OfferingAttribute,
		Table:   "wholesaler_offering_attributes",
		Key:     []string{"offering_id", "attribute_id"},
		Display: []string{"value"},
	})

	for _, ref := range []struct{ kind, table, col string }{
		{catalog.Material, "materials", "material_id"},
		{catalog.Form, "forms", "form_id"},
	} {
		register(Plan{
			Kind:    ref.kind,
			Table:   ref.table,
			Key:     []string{ref.col},
			Display: []string{"name"},
			Steps: []Step{
				{Name: "product_definitions", Label: definitionsLabel, Table: "product_definitions", Severity: Hard, Action: Detach, Column: ref.col, Where: column(ref.col)},
			},
		})
	}
}
