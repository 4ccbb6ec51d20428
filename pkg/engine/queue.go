// ABOUTME: Unbounded FIFO with timed blocking retrieval
// ABOUTME: Multiple producers, single consumer; never blocks the producer
package engine

import (
	"sync"
	"time"
)

// fifo is an unbounded queue. Push never blocks; Poll waits up to a
// timeout for the next item. Only one goroutine may Poll.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{notify: make(chan struct{}, 1)}
}

// Push appends an item and wakes the consumer
func (q *fifo[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Poll returns the oldest item, waiting up to timeout for one to arrive.
// It returns early with ok=false when done is closed.
func (q *fifo[T]) Poll(timeout time.Duration, done <-chan struct{}) (item T, ok bool) {
	if item, ok = q.pop(); ok {
		return item, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if item, ok = q.pop(); ok {
				return item, true
			}
			// Stale wake-up from an item already taken; keep waiting
		case <-timer.C:
			return q.pop()
		case <-done:
			return item, false
		}
	}
}

// Len returns the number of queued items
func (q *fifo[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset discards all queued items and returns how many were dropped
func (q *fifo[T]) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *fifo[T]) pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}
