// Package queue provides the bounded, backpressuring channel queues used to
// connect the crawl pipeline's stages (frontier -> fetcher -> parser ->
// persistence). It generalises the teacher's messaging.ChannelQueue
// (Producer/Consumer over []byte) to a typed, generic queue with the
// task-accounting semantics of Python's asyncio.Queue (put/get/task_done),
// which the crawl pipeline's staged shutdown (see internal/crawl) depends on
// to know when a stage has truly drained.
package queue

import (
	"context"
	"sync/atomic"
)

// Queue is a bounded, concurrency-safe FIFO channel of items of type T, with
// an "unfinished tasks" counter so that a consumer's TaskDone lets a
// producer's Empty observe true drain, not just an empty channel.
type Queue[T any] struct {
	ch         chan T
	unfinished atomic.Int64
}

// New creates a Queue with the given channel capacity. A capacity of 0
// produces an unbuffered (synchronous) queue.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Put enqueues an item, blocking until there is room or ctx is cancelled.
// Every successful Put increments the unfinished-task counter; the consumer
// must call TaskDone exactly once per item it removes with Get.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	select {
	case q.ch <- item:
		q.unfinished.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut enqueues an item without blocking. It reports false if the queue is
// full, leaving the item undelivered - used by the frontier's Shuffle, which
// keeps an undelivered item in staging rather than blocking.
func (q *Queue[T]) TryPut(item T) bool {
	select {
	case q.ch <- item:
		q.unfinished.Add(1)
		return true
	default:
		return false
	}
}

// Get blocks until an item is available or ctx is cancelled.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TaskDone marks one previously-Get'd item as fully processed. It must be
// called exactly once per dequeued item (see the open question in SPEC_FULL
// about double task_done calls in the original source).
func (q *Queue[T]) TaskDone() {
	q.unfinished.Add(-1)
}

// Empty reports whether the queue has no buffered items and no outstanding
// unfinished tasks - i.e. every item ever Put has been both Get and
// TaskDone.
func (q *Queue[T]) Empty() bool {
	return q.unfinished.Load() <= 0
}

// Length returns the number of items currently buffered in the channel (not
// the unfinished-task count).
func (q *Queue[T]) Length() int {
	return len(q.ch)
}

// Drain removes and returns every currently-buffered item without blocking,
// used by the frontier's Shuffle to take the ready queue back into staging.
// Every drained item's unfinished-task count is released here; callers that
// re-enqueue a drained item (e.g. via Put/TryPut) must do so to account for
// it again, so that a Drain followed by a full re-Put is a no-op on Empty,
// not a permanent inflation of the counter.
func (q *Queue[T]) Drain() []T {
	items := make([]T, 0, len(q.ch))
	for {
		select {
		case item := <-q.ch:
			items = append(items, item)
		default:
			if len(items) > 0 {
				q.unfinished.Add(-int64(len(items)))
			}
			return items
		}
	}
}
