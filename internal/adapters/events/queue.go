package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/domain"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue hands events to next from a single goroutine, so callers never wait
// on the broker and per-restaurant order is kept. An event that does not fit
// in the backlog is refused with ErrQueueFull.
type Queue struct {
	next    domain.EventPublisher
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan domain.TaskEvent
	done   chan struct{}
}

// NewQueue starts the sender. Each delivery gets its own timeout.
func NewQueue(next domain.EventPublisher, backlog int, timeout time.Duration) *Queue {
	if backlog < 1 {
		backlog = 1
	}
	q := &Queue{
		next:    next,
		timeout: timeout,
		ch:      make(chan domain.TaskEvent, backlog),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for e := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := q.next.Publish(ctx, e); err != nil {
			log.Error().Err(err).
				Str("event_id", e.ID).
				Str("event", e.Type).
				Int64("restaurant_id", e.RestaurantID).
				Msg("event delivery failed")
		}
		cancel()
	}
}

// Publish enqueues e. It never blocks.
func (q *Queue) Publish(_ context.Context, e domain.TaskEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close refuses new events and waits until the backlog has been sent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
	return nil
}
