package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// backends yields a fresh SQLite store and, when TEST_DATABASE_URL is set, a
// PostgreSQL store with empty tables.
func backends(t *testing.T) map[string]*Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]*Store{}

	lite, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close(ctx) })
	out["sqlite"] = lite

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		pg, err := Open(ctx, DriverPostgres, dsn)
		require.NoError(t, err)
		_, err = pg.DB().ExecContext(ctx, "TRUNCATE orders, products")
		require.NoError(t, err)
		t.Cleanup(func() { _ = pg.Close(ctx) })
		out["postgres"] = pg
	}
	return out
}

func product(id string, stock int) model.Product {
	return model.Product{ID: id, Name: "Item " + id, Category: "Books", Price: 12.5, Stock: stock, LastUpdated: t0}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

func TestProducts(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.InsertProducts(ctx, []model.Product{product("a", 0), product("b", 5), product("c", 30)}))

			n, err := s.CountProducts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			p, err := s.GetProduct(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "Item b", p.Name)
			assert.Equal(t, model.DefaultLowStockThreshold, p.LowStockThreshold)
			assert.True(t, p.LastUpdated.Equal(t0))

			_, err = s.GetProduct(ctx, "zzz")
			assert.ErrorIs(t, err, store.ErrNotFound)

			in, err := s.FindInStock(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, in, 2)
			in, err = s.FindInStock(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, in, 1)

			low, err := s.FindLowStock(ctx, 20, 5)
			require.NoError(t, err)
			assert.Len(t, low, 2)

			cnt, err := s.CountLowStock(ctx, 15)
			require.NoError(t, err)
			assert.Equal(t, 2, cnt)

			all, err := s.ListProducts(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestAdjustStock(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.InsertProducts(ctx, []model.Product{product("a", 3)}))

			p, err := s.AdjustStock(ctx, "a", 50, t0.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 53, p.Stock)
			assert.True(t, p.LastUpdated.Equal(t0.Add(time.Hour)))

			_, err = s.AdjustStock(ctx, "a", -54, t0)
			assert.ErrorIs(t, err, store.ErrInsufficientStock)

			_, err = s.AdjustStock(ctx, "missing", 50, t0)
			assert.ErrorIs(t, err, store.ErrNotFound)

			p, err = s.GetProduct(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 53, p.Stock)
		})
	}
}

func TestPlaceOrderRollsBackOnInsufficientStock(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.InsertProducts(ctx, []model.Product{product("a", 2)}))

			err := s.PlaceOrder(ctx, model.Order{ID: "o1", ProductID: "a", ProductName: "Item a", Category: "Books", Quantity: 3, TotalPrice: 37.5, Timestamp: t0, Region: "Europe"})
			assert.ErrorIs(t, err, store.ErrInsufficientStock)
			orders, err := s.RecentOrders(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, orders)

			err = s.PlaceOrder(ctx, model.Order{ID: "o2", ProductID: "a", ProductName: "Item a", Category: "Books", Quantity: 2, TotalPrice: 25, Timestamp: t0, Region: "Europe"})
			require.NoError(t, err)
			p, _ := s.GetProduct(ctx, "a")
			assert.Equal(t, 0, p.Stock)
			orders, _ = s.RecentOrders(ctx, 0)
			require.Len(t, orders, 1)
			assert.Equal(t, "o2", orders[0].ID)
		})
	}
}

func TestOrderAggregates(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rev, err := s.RevenueSince(ctx, t0)
			require.NoError(t, err)
			assert.Equal(t, model.Revenue{}, rev)
			cats, err := s.CountByCategory(ctx)
			require.NoError(t, err)
			assert.Empty(t, cats)

			for _, o := range []model.Order{
				{ID: "1", ProductID: "p", ProductName: "p", Category: "Books", Quantity: 1, TotalPrice: 10, Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Region: "Europe"},
				{ID: "2", ProductID: "p", ProductName: "p", Category: "Books", Quantity: 1, TotalPrice: 5, Timestamp: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), Region: "Europe"},
				{ID: "3", ProductID: "q", ProductName: "q", Category: "Electronics", Quantity: 2, TotalPrice: 20, Timestamp: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), Region: "Asia-Pacific"},
			} {
				require.NoError(t, s.AppendOrder(ctx, o))
			}

			rev, err = s.RevenueSince(ctx, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, model.Revenue{Total: 20, Count: 1}, rev)

			cats, err = s.CountByCategory(ctx)
			require.NoError(t, err)
			assert.Equal(t, []model.CategoryCount{{Category: "Books", Count: 2}, {Category: "Electronics", Count: 1}}, cats)

			recent, err := s.RecentOrders(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "3", recent[0].ID)
			assert.Equal(t, "2", recent[1].ID)
			assert.Equal(t, "Asia-Pacific", recent[0].Region)
		})
	}
}
