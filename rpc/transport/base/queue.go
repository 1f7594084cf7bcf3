package base

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// eventQueue is a lock-free multi-producer single-consumer queue. Socket
// reader goroutines push, a consumer goroutine forwards the items in push
// order to the channel returned by Recv. Items pushed by one goroutine are
// received in the order they were pushed.
type eventQueue[T any] struct {
	head     atomic.Pointer[queueNode[T]]
	tail     atomic.Pointer[queueNode[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// queueNode represents a single element in the queue
type queueNode[T any] struct {
	value *T
	next  atomic.Pointer[queueNode[T]]
}

func newEventQueue[T any]() *eventQueue[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &queueNode[T]{}

	q := &eventQueue[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push adds an item to the queue. Returns false if the queue is closed.
func (q *eventQueue[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &queueNode[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have moved the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. The lock orders the signal after the consumer's
// emptiness check, otherwise a push between check and Wait is never seen.
func (q *eventQueue[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume forwards items from the linked list to the output channel
func (q *eventQueue[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// help go gc
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the items are delivered on. It is closed once the
// queue is closed and drained.
func (q *eventQueue[T]) Recv() <-chan *T {
	return q.out
}

// Close prevents further pushes. Items already queued are still delivered.
func (q *eventQueue[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

func (q *eventQueue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of queued items. O(n), debugging only.
func (q *eventQueue[T]) Len() int {
	count := 0
	for current := q.head.Load(); ; count++ {
		next := current.next.Load()
		if next == nil {
			return count
		}
		current = next
	}
}
