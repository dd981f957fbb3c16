// Package queue is the only synchronized hand-off between transport goroutines
// and the simulation tick.
package queue

import "sync"

// Queue is an unbounded FIFO safe for many producers and one consumer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Poll removes the oldest item without blocking.
func (q *Queue[T]) Poll() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return v, true
}

// Drain removes every queued item in arrival order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return nil
	}
	out := make([]T, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	clear(q.items[q.head:])
	q.items = q.items[:0]
	q.head = 0
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
