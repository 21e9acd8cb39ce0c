package obs

import "expvar"

// Counters published under /debug/vars.
var (
	OrdersGenerated = expvar.NewInt("orders_generated")
	TickFailures    = expvar.NewInt("tick_failures")
	RestocksApplied = expvar.NewInt("restocks_applied")
	FeedDropped     = expvar.NewInt("feed_dropped")
)
