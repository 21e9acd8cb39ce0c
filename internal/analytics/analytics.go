// Package analytics computes the read-only dashboard statistics from the stores.
package analytics

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

const (
	// LowStockCutoff marks a product as low in the daily stats.
	LowStockCutoff = 15
	// RecentOrdersLimit is the size of the recent orders panel.
	RecentOrdersLimit = 20
	// SalesSeriesLimit is the number of points in the sales chart.
	SalesSeriesLimit = 50
	// NoTopCategory is reported while no order exists.
	NoTopCategory = "N/A"
)

// Service answers aggregation queries. It holds no state between calls.
type Service struct {
	inv    store.Inventory
	orders store.EventLog
	now    func() time.Time
}

// New builds a Service. A nil now defaults to time.Now.
func New(inv store.Inventory, orders store.EventLog, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{inv: inv, orders: orders, now: now}
}

// DailyStats reports today's UTC revenue and order count, the number of products
// below LowStockCutoff, and the all-time top category.
func (s *Service) DailyStats(ctx context.Context) (model.DailyStats, error) {
	var (
		rev  model.Revenue
		low  int
		cats []model.CategoryCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rev, err = s.orders.RevenueSince(gctx, model.StartOfDay(s.now()))
		return errors.Wrap(err, "revenue today")
	})
	g.Go(func() error {
		var err error
		low, err = s.inv.CountLowStock(gctx, LowStockCutoff)
		return errors.Wrap(err, "count low stock")
	})
	g.Go(func() error {
		var err error
		cats, err = s.orders.CountByCategory(gctx)
		return errors.Wrap(err, "count by category")
	})
	if err := g.Wait(); err != nil {
		return model.DailyStats{}, err
	}
	return model.DailyStats{
		TotalRevenue:  round2(rev.Total),
		TotalOrders:   rev.Count,
		LowStockCount: low,
		TopCategory:   topCategory(cats),
	}, nil
}

// topCategory returns the first category with the highest count.
func topCategory(cats []model.CategoryCount) string {
	top, best := NoTopCategory, 0
	for _, c := range cats {
		if c.Count > best {
			top, best = c.Category, c.Count
		}
	}
	return top
}

// RecentOrders returns the newest RecentOrdersLimit orders, newest first.
func (s *Service) RecentOrders(ctx context.Context) ([]model.Order, error) {
	out, err := s.orders.RecentOrders(ctx, RecentOrdersLimit)
	if err != nil {
		return nil, errors.Wrap(err, "recent orders")
	}
	if out == nil {
		out = []model.Order{}
	}
	return out, nil
}

// SalesSeries returns up to limit of the newest orders as chart points in ascending
// time order. A non-positive limit uses SalesSeriesLimit.
func (s *Service) SalesSeries(ctx context.Context, limit int) ([]model.SalesPoint, error) {
	if limit <= 0 {
		limit = SalesSeriesLimit
	}
	orders, err := s.orders.RecentOrders(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "sales series")
	}
	out := make([]model.SalesPoint, 0, len(orders))
	for _, o := range orders {
		out = append(out, model.SalesPoint{Timestamp: o.Timestamp, TotalPrice: o.TotalPrice})
	}
	slices.Reverse(out)
	return out, nil
}

// CategoryDistribution returns the order count of every category observed.
func (s *Service) CategoryDistribution(ctx context.Context) ([]model.CategoryCount, error) {
	out, err := s.orders.CountByCategory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "category distribution")
	}
	if out == nil {
		out = []model.CategoryCount{}
	}
	return out, nil
}

// Inventory lists every product.
func (s *Service) Inventory(ctx context.Context) ([]model.Product, error) {
	out, err := s.inv.ListProducts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list inventory")
	}
	if out == nil {
		out = []model.Product{}
	}
	return out, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
