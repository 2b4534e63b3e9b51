package cascade

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/manveru/faker"
	"github.com/stretchr/testify/require"

	"github.com/thomas-mindruptive/pure-svelte-sub003/catalog"
	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
)

// fixture seeds catalog rows through plain SQL so the tests exercise the
// cascade code against real foreign keys.
type fixture struct {
	t    *testing.T
	db   *daos.Database
	fake *faker.Faker
	seq  int
}

func openSQLiteFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db") + "?_foreign_keys=1&_txlock=immediate&_busy_timeout=5000"
	db, err := daos.Open(context.Background(), daos.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newFixture(t, db)
}

func newFixture(t *testing.T, db *daos.Database) *fixture {
	t.Helper()
	require.NoError(t, catalog.Migrate(db.Client.DB, db.Dialect))
	fake, err := faker.New("en")
	require.NoError(t, err)
	return &fixture{t: t, db: db, fake: fake}
}

// unique suffixes generated names; faker repeats itself.
func (f *fixture) unique(s string) string {
	f.seq++
	return fmt.Sprintf("%s %d", s, f.seq)
}

func (f *fixture) insert(stmt string, args ...any) int64 {
	f.t.Helper()
	var id int64
	require.NoError(f.t, f.db.Client.QueryRowx(f.db.Client.Rebind(stmt), args...).Scan(&id))
	return id
}

func (f *fixture) exec(stmt string, args ...any) {
	f.t.Helper()
	_, err := f.db.Client.Exec(f.db.Client.Rebind(stmt), args...)
	require.NoError(f.t, err)
}

func (f *fixture) wholesaler() int64 {
	return f.insert(`INSERT INTO wholesalers (name, region) VALUES (?, ?) RETURNING wholesaler_id`,
		f.unique(f.fake.Name()), f.fake.City())
}

func (f *fixture) category() int64 {
	return f.insert(`INSERT INTO product_categories (name) VALUES (?) RETURNING category_id`, f.unique(f.fake.City()))
}

func (f *fixture) assign(wholesalerID, categoryID int64) {
	f.exec(`INSERT INTO wholesaler_categories (wholesaler_id, category_id, comment) VALUES (?, ?, ?)`,
		wholesalerID, categoryID, f.fake.Name())
}

func (f *fixture) material() int64 {
	return f.insert(`INSERT INTO materials (name) VALUES (?) RETURNING material_id`, f.unique(f.fake.City()))
}

func (f *fixture) form() int64 {
	return f.insert(`INSERT INTO forms (name) VALUES (?) RETURNING form_id`, f.unique(f.fake.City()))
}

func (f *fixture) definition(categoryID int64, materialID any) int64 {
	return f.insert(`INSERT INTO product_definitions (category_id, title, material_id) VALUES (?, ?, ?) RETURNING product_def_id`,
		categoryID, f.unique(f.fake.Name()), materialID)
}

func (f *fixture) offering(wholesalerID, categoryID int64, defID any) int64 {
	return f.insert(`INSERT INTO wholesaler_item_offerings (wholesaler_id, category_id, product_def_id, title, price) VALUES (?, ?, ?, ?, ?) RETURNING offering_id`,
		wholesalerID, categoryID, defID, f.unique(f.fake.Name()), 12.5)
}

func (f *fixture) link(offeringID int64) int64 {
	return f.insert(`INSERT INTO wholesaler_offering_links (offering_id, url) VALUES (?, ?) RETURNING link_id`, offeringID, f.fake.URL())
}

func (f *fixture) attribute() int64 {
	return f.insert(`INSERT INTO attributes (name) VALUES (?) RETURNING attribute_id`, f.unique(f.fake.Name()))
}

func (f *fixture) offeringAttribute(offeringID, attributeID int64) {
	f.exec(`INSERT INTO wholesaler_offering_attributes (offering_id, attribute_id, value) VALUES (?, ?, ?)`,
		offeringID, attributeID, f.fake.City())
}

func (f *fixture) order(wholesalerID int64) int64 {
	return f.insert(`INSERT INTO orders (wholesaler_id, order_date, order_number) VALUES (?, ?, ?) RETURNING order_id`,
		wholesalerID, "2024-03-01", f.unique("PO"))
}

func (f *fixture) orderItem(orderID, offeringID int64) int64 {
	return f.insert(`INSERT INTO order_items (order_id, offering_id, quantity) VALUES (?, ?, ?) RETURNING order_item_id`,
		orderID, offeringID, 3)
}

func (f *fixture) count(table string) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.db.Client.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func (f *fixture) countWhere(table, where string, args ...any) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.db.Client.Get(&n, f.db.Client.Rebind("SELECT COUNT(*) FROM "+table+" WHERE "+where), args...))
	return n
}

// supplierGraph is a wholesaler with one category assignment, two offerings,
// a link and an attribute: soft dependents only.
type supplierGraph struct {
	wholesaler, category, attribute int64
	offerings                       []int64
}

func (f *fixture) supplierGraph() supplierGraph {
	g := supplierGraph{wholesaler: f.wholesaler(), category: f.category(), attribute: f.attribute()}
	f.assign(g.wholesaler, g.category)
	g.offerings = []int64{
		f.offering(g.wholesaler, g.category, nil),
		f.offering(g.wholesaler, g.category, nil),
	}
	f.link(g.offerings[0])
	f.offeringAttribute(g.offerings[1], g.attribute)
	return g
}
