package simulator

import "github.com/pkg/errors"

var (
	// ErrNoStockAvailable means no product had positive stock when a tick sampled.
	ErrNoStockAvailable = errors.New("no products with stock available")
	// ErrTickFailed wraps a panic recovered from a generation tick.
	ErrTickFailed = errors.New("generation tick failed")
)
