package hci

import (
	"container/list"
	"sync"
)

// itemQueue is a FIFO whose enqueue side is safe to call from any
// goroutine (mirroring the original's thread-safe fixed_queue_t) while
// its dequeue side is driven only from the worker goroutine, which is
// notified of non-empty-ness through notify. The notify channel is
// level-triggered by convention: a consumer that dequeues one item and
// finds the queue still non-empty re-signals itself so the worker
// revisits it on its next turn, giving other ready channels in the same
// select a fair chance to run (spec §5's fairness requirement, applied
// to the same spirit as the inbound assembler's one-packet-per-call
// rule).
type itemQueue struct {
	mu     sync.Mutex
	items  *list.List
	notify chan struct{}
}

func newItemQueue() *itemQueue {
	return &itemQueue{
		items:  list.New(),
		notify: make(chan struct{}, 1),
	}
}

func (q *itemQueue) enqueue(item interface{}) {
	q.mu.Lock()
	q.items.PushBack(item)
	q.mu.Unlock()
	q.signal()
}

func (q *itemQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *itemQueue) tryDequeue() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.items.Front()
	if e == nil {
		return nil, false
	}
	q.items.Remove(e)
	return e.Value, true
}

func (q *itemQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len() == 0
}

// drainAll removes every queued item and returns them in FIFO order,
// used at shutdown to release any residual buffers (spec §4.5,
// EPILOG->SHUTDOWN: "release queues, freeing any residual buffers").
func (q *itemQueue) drainAll() []interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]interface{}, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	q.items.Init()
	return out
}
