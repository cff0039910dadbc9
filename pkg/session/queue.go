package session

import (
	"sync"

	"github.com/SlyyCooper/agenai/pkg/workflow"
)

// eventQueue is the unbounded FIFO feeding a connection's sender goroutine.
// All writers enqueue here; the sender is the only reader, which is what
// guarantees per-connection delivery order.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []workflow.Event
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an event. Pushes after Close are dropped.
func (q *eventQueue) Push(ev workflow.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
}

// PushFront requeues an event at the head, preserving its original order
// relative to everything behind it.
func (q *eventQueue) PushFront(ev workflow.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]workflow.Event{ev}, q.items...)
	q.cond.Signal()
}

// Pop blocks until an event is available or the queue is closed and
// drained. The second return is false only in the latter case.
func (q *eventQueue) Pop() (workflow.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return workflow.Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// Close stops accepting events. Queued events may still be popped.
func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
