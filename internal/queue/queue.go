// Package queue implements the bounded command queue between the poller and the
// event merger.
//
// Queue is built for exactly one producer and one consumer. Commands come out
// in the order they went in. When the queue is full the oldest pending command
// is dropped so the most recent instruction always gets through.
package queue

import (
	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
)

// DefaultCapacity bounds the backlog built up while the main loop is paused.
const DefaultCapacity = 16

// Queue is a bounded FIFO of commands, safe for one producer and one consumer.
type Queue struct {
	// items buffers commands not yet consumed.
	items chan nursery.Command
}

// New creates a queue holding at most capacity commands.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Queue{
		items: make(chan nursery.Command, capacity),
	}
}

// Push enqueues cmd without blocking. If the queue is full the oldest command
// is evicted and returned with dropped set to true.
func (q *Queue) Push(cmd nursery.Command) (evicted nursery.Command, dropped bool) {
	for {
		select {
		case q.items <- cmd:
			return evicted, dropped
		default:
		}

		// Full: evict the head. The consumer may win the race for it, in which
		// case the next send attempt simply succeeds.
		select {
		case evicted = <-q.items:
			dropped = true
		default:
		}
	}
}

// TryPop dequeues the oldest command without blocking.
func (q *Queue) TryPop() (nursery.Command, bool) {
	select {
	case cmd := <-q.items:
		return cmd, true
	default:
		return nursery.Command{}, false
	}
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue bound.
func (q *Queue) Cap() int {
	return cap(q.items)
}
