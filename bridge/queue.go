package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned for sends to, or blocking reads from, a closed queue
var ErrClosed = errors.New("bridge queue closed")

// queue is a one directional FIFO that never blocks its producer. With max
// set, the oldest item is dropped to make room.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	max    int
	ready  chan struct{}
}

func newQueue[T any](max int) *queue[T] {
	return &queue[T]{
		max:   max,
		ready: make(chan struct{}, 1),
	}
}

// push appends item and reports whether an older item was dropped
func (q *queue[T]) push(item T) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	dropped := false
	if q.max > 0 && len(q.items) >= q.max {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.notify()
	return dropped, nil
}

// tryPop never blocks
func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// pop waits for an item. Items queued before close are still handed out,
// after that ErrClosed is returned.
func (q *queue[T]) pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		item, ok := q.popLocked()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return item, nil
		}
		var zero T
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// discard closes the queue and drops everything still in it
func (q *queue[T]) discard() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.closed = true
	q.mu.Unlock()
	q.notify()
	return n
}

func (q *queue[T]) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
