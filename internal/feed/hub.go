// Package feed fans generated orders out to live subscribers.
package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/config"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
)

// MessageTypeOrder tags order messages on the wire.
const MessageTypeOrder = "order"

// Message is one feed entry.
type Message struct {
	Type     string      `json:"type"`
	Sequence uint64      `json:"sequence"`
	Order    model.Order `json:"order"`
}

// Metrics is a point-in-time view of the hub.
type Metrics struct {
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Evicted     uint64 `json:"evicted"`
	Backlog     int    `json:"backlog"`
	Depth       int    `json:"depth"`
	Subscribers int    `json:"subscribers"`
	LastSeq     uint64 `json:"last_sequence"`
}

// Hub sequences published orders and delivers them to every subscriber. A
// subscriber whose buffer is full misses the message instead of stalling the
// publisher.
type Hub struct {
	q             *Queue
	seq           Sequencer
	highWatermark int
	subBuffer     int

	pubMu sync.Mutex

	mu     sync.Mutex
	subs   map[uint64]chan Message
	nextID uint64
	cancel context.CancelFunc
	done   chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub builds a Hub sized from cfg.FeedBuffer, cfg.FeedBacklogLimit and
// cfg.FeedHighWatermark.
func NewHub(cfg config.Config) *Hub {
	buf := cfg.FeedBuffer
	if buf <= 0 {
		buf = 64
	}
	return &Hub{
		q:             NewQueue(buf, cfg.FeedBacklogLimit),
		highWatermark: cfg.FeedHighWatermark,
		subBuffer:     buf,
		subs:          make(map[uint64]chan Message),
	}
}

// Start runs the broker and dispatcher until Stop or parent is done.
func (h *Hub) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	h.mu.Lock()
	h.cancel, h.done = cancel, done
	h.mu.Unlock()
	h.q.Start(ctx, h.highWatermark)
	go h.dispatch(ctx, done)
}

// Stop ends background routines and closes every subscription channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	h.mu.Lock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()
}

func (h *Hub) dispatch(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-h.q.Out():
			h.fanOut(m)
			h.q.MarkProcessed()
		}
	}
}

func (h *Hub) fanOut(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- m:
			h.delivered.Add(1)
		default:
			h.dropped.Add(1)
			obs.FeedDropped.Add(1)
		}
	}
}

// Publish sequences o and queues it for delivery. It returns false once intake
// is closed.
func (h *Hub) Publish(o model.Order) bool {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	if h.q.IsShuttingDown() {
		return false
	}
	return h.q.Enqueue(Message{Type: MessageTypeOrder, Sequence: h.seq.Next(), Order: o})
}

// Subscription receives feed messages on C until Close or hub Stop.
type Subscription struct {
	C   <-chan Message
	id  uint64
	hub *Hub
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Message, h.subBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.subs[h.nextID] = ch
	return &Subscription{C: ch, id: h.nextID, hub: h}
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[s.id]; ok {
		close(ch)
		delete(h.subs, s.id)
	}
}

// CloseIntake disallows future publishes.
func (h *Hub) CloseIntake() { h.q.CloseIntake() }

// IsShuttingDown reports whether publishes are rejected.
func (h *Hub) IsShuttingDown() bool { return h.q.IsShuttingDown() }

// Metrics returns counters and sizes for observability.
func (h *Hub) Metrics() Metrics {
	st := h.q.Stats()
	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()
	return Metrics{
		Published:   st.Enqueued,
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
		Evicted:     st.Evicted,
		Backlog:     st.Backlog,
		Depth:       st.Depth,
		Subscribers: n,
		LastSeq:     h.seq.Last(),
	}
}

// DrainUntil blocks until every queued message was dispatched or ctx is done.
func (h *Hub) DrainUntil(ctx context.Context) bool {
	for {
		st := h.q.Stats()
		if st.Backlog == 0 && st.Depth == 0 && st.Pending() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
