// Package simulator generates a continuous stream of orders against the shared
// inventory.
package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

// State is the engine lifecycle state.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Defaults for Options fields left zero.
const (
	DefaultMinDelay           = 500 * time.Millisecond
	DefaultMaxDelay           = 3 * time.Second
	DefaultErrorBackoff       = time.Second
	DefaultRestockProbability = 0.10
	DefaultSampleCandidates   = 1000
	DefaultTickTimeout        = 10 * time.Second
)

// Publisher receives every generated order.
type Publisher interface {
	Publish(o model.Order) bool
}

// Options tunes the generation loop.
type Options struct {
	MinDelay     time.Duration
	MaxDelay     time.Duration
	ErrorBackoff time.Duration
	// RestockProbability is the chance a tick ends with a restock. Negative disables it.
	RestockProbability float64
	// SampleCandidates bounds the in-stock candidate set fetched per tick.
	SampleCandidates int
	TickTimeout      time.Duration
	Rand             *rand.Rand
	Now              func() time.Time
	Publisher        Publisher
}

func (o Options) withDefaults() Options {
	if o.MinDelay <= 0 {
		o.MinDelay = DefaultMinDelay
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = max(o.MinDelay, DefaultMaxDelay)
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = DefaultErrorBackoff
	}
	if o.RestockProbability == 0 {
		o.RestockProbability = DefaultRestockProbability
	}
	if o.SampleCandidates <= 0 {
		o.SampleCandidates = DefaultSampleCandidates
	}
	if o.TickTimeout <= 0 {
		o.TickTimeout = DefaultTickTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine owns the Idle/Running state and at most one generation loop.
type Engine struct {
	inv    store.Inventory
	orders store.EventLog
	placer store.OrderPlacer
	opts   Options
	rnd    *Sampler

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	// loops holds the done channels of loops that had not exited at the last Start.
	loops []chan struct{}
}

// New builds an idle engine. When inv and orders are the same backend and it
// implements store.OrderPlacer, each order and its stock decrement are written in
// one transaction.
func New(inv store.Inventory, orders store.EventLog, opts Options) *Engine {
	e := &Engine{inv: inv, orders: orders, opts: opts.withDefaults()}
	e.rnd = NewSampler(e.opts.Rand)
	if p, ok := inv.(store.OrderPlacer); ok && any(inv) == any(orders) {
		e.placer = p
	}
	return e
}

// Start spawns the generation loop unless one is already running and reports
// whether it did.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Running {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	live := e.loops[:0]
	for _, d := range e.loops {
		select {
		case <-d:
		default:
			live = append(live, d)
		}
	}
	e.state, e.cancel, e.loops = Running, cancel, append(live, done)
	go e.run(ctx, done)
	obs.Logger.Info("simulation_started")
	return true
}

// Stop signals the loop to finish and returns immediately. It is safe to call when idle.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.state == Running {
		obs.Logger.Info("simulation_stopped")
	}
	e.state = Idle
	return true
}

// Wait blocks until every started loop, including ones stopped and replaced by a
// later Start, has exited or ctx is done.
func (e *Engine) Wait(ctx context.Context) bool {
	e.mu.Lock()
	loops := slices.Clone(e.loops)
	e.mu.Unlock()
	for _, done := range loops {
		select {
		case <-done:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Running reports whether the engine is in the Running state.
func (e *Engine) Running() bool { return e.State() == Running }

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	obs.Logger.Info("simulation_loop_started")
	for ctx.Err() == nil {
		delay := e.rnd.Duration(e.opts.MinDelay, e.opts.MaxDelay)
		if _, err := e.safeTick(ctx); err != nil {
			if errors.Is(err, ErrNoStockAvailable) {
				obs.Logger.Warn("no_stock_available")
			} else {
				obs.TickFailures.Add(1)
				obs.Logger.Error("tick_failed", "error", err.Error())
				delay = e.opts.ErrorBackoff
			}
		}
		if !sleep(ctx, delay) {
			break
		}
	}
	obs.Logger.Info("simulation_loop_exited")
}

// safeTick runs one tick detached from loop cancellation so a stop never aborts
// store writes halfway, and converts panics into errors.
func (e *Engine) safeTick(ctx context.Context) (o model.Order, err error) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.TickTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrTickFailed, fmt.Sprint(r))
		}
	}()
	return e.Tick(tctx)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
