package store

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
)

// Store is an in-memory Backend. Products are keyed by id; orders are kept sorted
// by timestamp.
type Store struct {
	mu       sync.RWMutex
	products map[string]model.Product
	order    []string
	orders   []model.Order
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{products: make(map[string]model.Product)}
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) InsertProducts(_ context.Context, products []model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ID == "" {
			return errors.New("product id is required")
		}
		if _, ok := s.products[p.ID]; ok {
			return errors.Errorf("duplicate product id %q", p.ID)
		}
	}
	for _, p := range products {
		if p.LowStockThreshold == 0 {
			p.LowStockThreshold = model.DefaultLowStockThreshold
		}
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return nil
}

func (s *Store) CountProducts(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *Store) ListProducts(context.Context) ([]model.Product, error) {
	return s.collect(func(model.Product) bool { return true }, 0), nil
}

func (s *Store) GetProduct(_ context.Context, id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	return p, nil
}

func (s *Store) FindInStock(_ context.Context, limit int) ([]model.Product, error) {
	return s.sample(func(p model.Product) bool { return p.Stock > 0 }, limit), nil
}

func (s *Store) FindLowStock(_ context.Context, cutoff, limit int) ([]model.Product, error) {
	return s.sample(func(p model.Product) bool { return p.Stock < cutoff }, limit), nil
}

func (s *Store) CountLowStock(_ context.Context, cutoff int) (int, error) {
	return len(s.collect(func(p model.Product) bool { return p.Stock < cutoff }, 0)), nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int, at time.Time) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(id, delta, at)
}

func (s *Store) adjustLocked(id string, delta int, at time.Time) (model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	if p.Stock+delta < 0 {
		return model.Product{}, ErrInsufficientStock
	}
	p.Stock += delta
	p.LastUpdated = at.UTC()
	s.products[id] = p
	return p, nil
}

// collect returns matching products in insertion order. Caller must not hold the lock.
func (s *Store) collect(match func(model.Product) bool, limit int) []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0)
	for _, id := range s.order {
		p := s.products[id]
		if !match(p) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// sample returns a uniformly random subset of at most limit matching products
// (reservoir sampling). A non-positive limit returns every match in insertion order.
func (s *Store) sample(match func(model.Product) bool, limit int) []model.Product {
	if limit <= 0 {
		return s.collect(match, 0)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, min(limit, len(s.order)))
	seen := 0
	for _, id := range s.order {
		p := s.products[id]
		if !match(p) {
			continue
		}
		seen++
		if len(out) < limit {
			out = append(out, p)
			continue
		}
		if j := rand.IntN(seen); j < limit {
			out[j] = p
		}
	}
	return out
}

// insertOrderLocked keeps s.orders sorted by timestamp; equal timestamps stay in
// append order. Caller must hold the write lock.
func (s *Store) insertOrderLocked(o model.Order) {
	n := len(s.orders)
	if n == 0 || !s.orders[n-1].Timestamp.After(o.Timestamp) {
		s.orders = append(s.orders, o)
		return
	}
	i := sort.Search(n, func(i int) bool { return s.orders[i].Timestamp.After(o.Timestamp) })
	s.orders = append(s.orders, model.Order{})
	copy(s.orders[i+1:], s.orders[i:])
	s.orders[i] = o
}

func (s *Store) AppendOrder(_ context.Context, o model.Order) error {
	if o.ID == "" {
		return errors.New("order id is required")
	}
	s.mu.Lock()
	s.insertOrderLocked(o)
	s.mu.Unlock()
	return nil
}

// PlaceOrder appends o and decrements its product's stock under one lock.
func (s *Store) PlaceOrder(_ context.Context, o model.Order) error {
	if o.ID == "" {
		return errors.New("order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.adjustLocked(o.ProductID, -o.Quantity, o.Timestamp); err != nil {
		return err
	}
	s.insertOrderLocked(o)
	return nil
}

// RecentOrders returns the newest limit orders, newest first. Only the tail of the
// log is copied.
func (s *Store) RecentOrders(_ context.Context, limit int) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.orders)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Order, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.orders[i])
	}
	return out, nil
}

func (s *Store) RevenueSince(_ context.Context, since time.Time) (model.Revenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	n := 0
	for _, o := range s.orders {
		if o.Timestamp.Before(since) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(o.TotalPrice))
		n++
	}
	return model.Revenue{Total: total.InexactFloat64(), Count: n}, nil
}

// CountByCategory reports categories in order of first appearance.
func (s *Store) CountByCategory(context.Context) ([]model.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := make(map[string]int)
	out := make([]model.CategoryCount, 0)
	for _, o := range s.orders {
		i, ok := idx[o.Category]
		if !ok {
			i = len(out)
			idx[o.Category] = i
			out = append(out, model.CategoryCount{Category: o.Category})
		}
		out[i].Count++
	}
	return out, nil
}
