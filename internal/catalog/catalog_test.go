package catalog

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

var now = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

func TestDefaultCatalogShape(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Len(t, c.Categories, 5)
	assert.Equal(t, 30, c.Size())
	for i, cat := range c.Categories {
		assert.Equal(t, model.Categories[i], cat.Name)
		assert.Len(t, cat.Items, 6)
	}
}

func TestProductsRanges(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ids := map[string]bool{}
	for _, p := range Default().Products(rng, now) {
		assert.GreaterOrEqual(t, p.Price, MinPrice)
		assert.LessOrEqual(t, p.Price, MaxPrice)
		assert.InDelta(t, p.Price, float64(int64(p.Price*100+0.5))/100, 1e-9)
		assert.GreaterOrEqual(t, p.Stock, MinStock)
		assert.LessOrEqual(t, p.Stock, MaxStock)
		assert.Equal(t, LowStockThreshold, p.LowStockThreshold)
		assert.Equal(t, now, p.LastUpdated)
		assert.False(t, ids[p.ID], "duplicate id")
		ids[p.ID] = true
	}
}

func TestSeedInsertsOnceThenNoop(t *testing.T) {
	ctx := context.Background()
	st := store.New()
	rng := rand.New(rand.NewPCG(3, 4))

	n, err := Seed(ctx, st, Default(), rng, now)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	require.NoError(t, st.AppendOrder(ctx, model.Order{ID: "o1", Category: "Books", Quantity: 1, Timestamp: now}))

	n, err = Seed(ctx, st, Default(), rng, now)
	require.NoError(t, err)
	assert.Zero(t, n)
	count, _ := st.CountProducts(ctx)
	assert.Equal(t, 30, count)
}

func TestLoadYAML(t *testing.T) {
	c, err := Load("testdata/catalog.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())
	assert.Equal(t, "Garden", c.Categories[0].Name)
	assert.Equal(t, []string{"Kite"}, c.Categories[1].Items)

	_, err = Load("testdata/duplicate.yaml")
	assert.Error(t, err)

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}
