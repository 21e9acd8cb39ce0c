// Package store defines the inventory and order log contracts and an in-memory backend.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
)

var (
	// ErrNotFound is returned when a product id does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a decrement would take stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnavailable wraps failures to reach the underlying database.
	ErrUnavailable = errors.New("store unavailable")
)

// Inventory holds products and supports atomic stock adjustments.
type Inventory interface {
	InsertProducts(ctx context.Context, products []model.Product) error
	CountProducts(ctx context.Context) (int, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	// FindInStock returns products with stock > 0. A limit <= 0 returns all of them.
	FindInStock(ctx context.Context, limit int) ([]model.Product, error)
	// FindLowStock returns up to limit products with stock below cutoff.
	FindLowStock(ctx context.Context, cutoff, limit int) ([]model.Product, error)
	CountLowStock(ctx context.Context, cutoff int) (int, error)
	// AdjustStock atomically adds delta to the product's stock and stamps last_updated.
	// The adjustment is refused with ErrInsufficientStock if stock would become negative.
	AdjustStock(ctx context.Context, id string, delta int, at time.Time) (model.Product, error)
}

// EventLog is the append-only order log.
type EventLog interface {
	AppendOrder(ctx context.Context, o model.Order) error
	// RecentOrders returns up to limit orders, newest first.
	RecentOrders(ctx context.Context, limit int) ([]model.Order, error)
	RevenueSince(ctx context.Context, since time.Time) (model.Revenue, error)
	CountByCategory(ctx context.Context) ([]model.CategoryCount, error)
}

// OrderPlacer is implemented by backends that can append an order and decrement the
// product's stock in a single transaction.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, o model.Order) error
}

// Backend is a store that serves both collections.
type Backend interface {
	Inventory
	EventLog
	Close(ctx context.Context) error
}
