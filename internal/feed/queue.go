package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
)

// Queue is a message backlog with a background broker that moves messages into
// a bounded output channel. Enqueue never blocks the producer: once the backlog
// holds backlogLimit messages the oldest one is evicted.
type Queue struct {
	mu           sync.Mutex
	backlog      []Message
	backlogLimit int
	notify       chan struct{}
	out          chan Message
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
	evicted   atomic.Uint64
}

// QueueStats is a point-in-time view of a Queue.
type QueueStats struct {
	Enqueued  uint64
	Processed uint64
	Evicted   uint64
	Backlog   int
	Depth     int
}

// Pending reports how many enqueued messages are neither processed nor evicted.
func (s QueueStats) Pending() uint64 { return s.Enqueued - s.Processed - s.Evicted }

// NewQueue creates a Queue with a buffered output channel. A non-positive
// backlogLimit leaves the backlog unbounded.
func NewQueue(outBuffer, backlogLimit int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		backlogLimit: backlogLimit,
		notify:       make(chan struct{}, 1),
		out:          make(chan Message, outBuffer),
	}
}

// Start runs the broker loop until ctx is done.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	warned := false
	for {
		q.flushOnce()
		if highWatermark > 0 {
			sz := q.BacklogSize()
			switch {
			case sz > highWatermark && !warned:
				obs.Logger.Warn("feed_backlog_high", "backlog_size", sz, "high_watermark", highWatermark)
				warned = true
			case sz <= highWatermark:
				warned = false
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce drains backlog into the output buffer.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) > 0 && len(q.out) < cap(q.out) {
		item := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.out <- item
	}
}

// Enqueue appends m to the backlog and wakes the broker, evicting the oldest
// backlog message when the backlog is full. It returns false once intake is closed.
func (q *Queue) Enqueue(m Message) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.mu.Lock()
	q.enqueued.Add(1)
	if q.backlogLimit > 0 && len(q.backlog) >= q.backlogLimit {
		q.backlog[0] = Message{}
		q.backlog = q.backlog[1:]
		q.evicted.Add(1)
		obs.FeedDropped.Add(1)
	}
	q.backlog = append(q.backlog, m)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel.
func (q *Queue) Out() <-chan Message { return q.out }

// BacklogSize returns the number of enqueued messages not yet moved to Out.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// MarkProcessed increases the processed counter.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Stats returns counters and sizes for observability.
func (q *Queue) Stats() QueueStats {
	// processed is read first so it never exceeds the enqueued snapshot.
	st := QueueStats{Processed: q.processed.Load()}
	q.mu.Lock()
	st.Enqueued, st.Evicted, st.Backlog = q.enqueued.Load(), q.evicted.Load(), len(q.backlog)
	q.mu.Unlock()
	st.Depth = st.Backlog + len(q.out)
	return st
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
