//go:build integration

package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/thomas-mindruptive/pure-svelte-sub003/catalog"
	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
)

// openPostgresFixture starts a throwaway PostgreSQL container.
func openPostgresFixture(t *testing.T, driver string) *fixture {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := daos.Open(ctx, driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newFixture(t, db)
}

func TestPostgres_CascadeDelete(t *testing.T) {
	for _, driver := range []string{daos.DriverPgx, daos.DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			f := openPostgresFixture(t, driver)
			g := f.supplierGraph()
			order := f.order(g.wholesaler)
			f.orderItem(order, g.offerings[1])
			svc := NewService(f.db, nil)
			ctx := context.Background()

			require.NoError(t, f.db.VerifySchema(ctx, catalog.Entities()))

			res, _, err := svc.Delete(ctx, catalog.Wholesaler, Key{g.wholesaler}, Options{Cascade: true})
			require.NoError(t, err)
			assert.Equal(t, OutcomeConflict, res.Outcome)
			assert.Equal(t, []string{"1 order item", "1 order"}, res.Conflict.Hard)

			res, _, err = svc.Delete(ctx, catalog.Wholesaler, Key{g.wholesaler}, Options{ForceCascade: true})
			require.NoError(t, err)
			assert.Equal(t, OutcomeDeleted, res.Outcome)
			assert.Equal(t, int64(7), res.Stats.Total)
			assert.NotEmpty(t, res.Deleted["name"])

			for _, table := range []string{"order_items", "orders", "wholesaler_item_offerings", "wholesaler_categories", "wholesalers"} {
				assert.Equal(t, 0, f.count(table), table)
			}
		})
	}
}

func TestPostgres_ConcurrentInsertWaitsForDelete(t *testing.T) {
	f := openPostgresFixture(t, daos.DriverPgx)
	g := f.supplierGraph()
	ctx := context.Background()

	tx, err := f.db.Begin(ctx, nil)
	require.NoError(t, err)
	defer daos.Rollback(tx)

	res, err := NewEngine(f.db.Dialect).Delete(ctx, tx, catalog.Wholesaler, Key{g.wholesaler}, true, false)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeleted, res.Outcome)

	// The offering row lock blocks a new link until the delete commits, after
	// which the insert fails on the missing offering instead of orphaning.
	done := make(chan error, 1)
	go func() {
		_, err := f.db.Client.ExecContext(ctx, `INSERT INTO wholesaler_offering_links (offering_id, url) VALUES ($1, 'https://example.com')`, g.offerings[0])
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("insert finished before commit: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, tx.Commit())
	assert.Error(t, <-done)
}
