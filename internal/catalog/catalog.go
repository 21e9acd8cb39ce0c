// Package catalog holds the seed product catalog and populates an empty inventory.
package catalog

import (
	"context"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

// Seed value ranges.
const (
	MinPrice          = 20.00
	MaxPrice          = 500.00
	MinStock          = 50
	MaxStock          = 200
	LowStockThreshold = 15
)

// Category is a named group of product names.
type Category struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

// Catalog is the ordered list of categories used for seeding.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Default returns the built-in catalog of 5 categories with 6 items each.
func Default() Catalog {
	return Catalog{Categories: []Category{
		{Name: "Electronics", Items: []string{"Wireless Earbuds", "Smart Watch", "4K Monitor", "Mechanical Keyboard", "Gaming Mouse", "USB-C Hub"}},
		{Name: "Fashion", Items: []string{"Denim Jacket", "Running Shoes", "Cotton T-Shirt", "Leather Belt", "Sunglasses", "Backpack"}},
		{Name: "Home & Garden", Items: []string{"LED Desk Lamp", "Plant Pot", "Throw Pillow", "Coffee Maker", "Air Purifier", "Wall Clock"}},
		{Name: "Sports", Items: []string{"Yoga Mat", "Dumbbell Set", "Water Bottle", "Resistance Bands", "Cycling Helmet", "Foam Roller"}},
		{Name: "Books", Items: []string{"Data Engineering 101", "Python Cookbook", "Sci-Fi Novel", "History of Art", "Business Strategy", "Cooking Guide"}},
	}}
}

// Load reads a YAML catalog from path.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "read catalog")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, errors.Wrapf(err, "parse catalog %s", path)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, errors.Wrapf(err, "catalog %s", path)
	}
	return c, nil
}

// Validate rejects catalogs with no items, unnamed categories or duplicate names.
func (c Catalog) Validate() error {
	if c.Size() == 0 {
		return errors.New("catalog has no items")
	}
	seen := make(map[string]bool)
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return errors.New("category name is required")
		}
		if seen[cat.Name] {
			return errors.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// Size is the number of products the catalog seeds.
func (c Catalog) Size() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Items)
	}
	return n
}

// Products builds one product per catalog item with randomized price and stock.
func (c Catalog) Products(rng *rand.Rand, now time.Time) []model.Product {
	out := make([]model.Product, 0, c.Size())
	for _, cat := range c.Categories {
		for _, name := range cat.Items {
			price := decimal.NewFromFloat(MinPrice + rng.Float64()*(MaxPrice-MinPrice)).Round(2)
			out = append(out, model.Product{
				ID:                uuid.NewString(),
				Name:              name,
				Category:          cat.Name,
				Price:             price.InexactFloat64(),
				Stock:             MinStock + rng.IntN(MaxStock-MinStock+1),
				LowStockThreshold: LowStockThreshold,
				LastUpdated:       now.UTC(),
			})
		}
	}
	return out
}

// Seed inserts the catalog into inv when it holds no products and returns the number
// of products inserted. A non-empty inventory is left untouched.
func Seed(ctx context.Context, inv store.Inventory, c Catalog, rng *rand.Rand, now time.Time) (int, error) {
	n, err := inv.CountProducts(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	if n > 0 {
		obs.Logger.Info("seed_skipped", "existing_products", n)
		return 0, nil
	}
	products := c.Products(rng, now)
	if err := inv.InsertProducts(ctx, products); err != nil {
		return 0, errors.Wrap(err, "insert seed products")
	}
	obs.Logger.Info("products_seeded", "count", len(products))
	return len(products), nil
}
