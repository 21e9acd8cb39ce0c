// Package model defines domain types used by the service.
package model

import "time"

// DefaultLowStockThreshold is applied to products created without an explicit threshold.
const DefaultLowStockThreshold = 10

// Product represents the current state of an inventory item.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Price             float64   `json:"price"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Order is an immutable purchase record appended by the simulator.
type Order struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Category    string    `json:"category"`
	Quantity    int       `json:"quantity"`
	TotalPrice  float64   `json:"total_price"`
	Timestamp   time.Time `json:"timestamp"`
	Region      string    `json:"region"`
}

// DailyStats is the headline dashboard panel.
type DailyStats struct {
	TotalRevenue  float64 `json:"total_revenue"`
	TotalOrders   int     `json:"total_orders"`
	LowStockCount int     `json:"low_stock_count"`
	TopCategory   string  `json:"top_category"`
}

// SalesPoint is one sample of the sales series chart.
type SalesPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalPrice float64   `json:"total_price"`
}

// CategoryCount is the number of orders observed for a category.
type CategoryCount struct {
	Category string `json:"name"`
	Count    int    `json:"value"`
}

// Revenue is the sum and count of orders in a time window.
type Revenue struct {
	Total float64
	Count int
}
