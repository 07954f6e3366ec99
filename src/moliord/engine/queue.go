package engine

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Queue is an unbounded, generic FIFO. Enqueue never blocks; Dequeue blocks
// until an item is available or the context is cancelled. The task queue
// and the APT publish queue (apt.Queue) both build on this same
// type rather than maintaining separate implementations.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
	depth  prometheus.Gauge
}

// NewQueue creates an empty Queue. depth may be nil if the caller does not
// want queue depth exported as a metric.
func NewQueue[T any](depth prometheus.Gauge) *Queue[T] {
	return &Queue[T]{
		signal: make(chan struct{}, 1),
		depth:  depth,
	}
}

// Enqueue appends item to the tail of the queue and wakes one waiting
// Dequeue call, if any. Never blocks.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	n := len(q.items)
	q.mu.Unlock()

	if q.depth != nil {
		q.depth.Set(float64(n))
	}

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an item is available or ctx is cancelled, and pops
// the head of the queue.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			n := len(q.items)
			q.mu.Unlock()
			if q.depth != nil {
				q.depth.Set(float64(n))
			}
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len reports the current number of queued items, for tests and metrics.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TaskQueue is the Worker's task queue: a Queue of Task, where a nil Task is
// the shutdown sentinel requesting graceful Worker stop after the current
// iteration.
type TaskQueue = Queue[Task]

// NewTaskQueue creates the Worker's task queue, wired to the QueueDepth
// metric.
func NewTaskQueue() *TaskQueue {
	return NewQueue[Task](QueueDepth)
}
