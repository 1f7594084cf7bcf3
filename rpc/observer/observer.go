package observer

import (
	"sync"
	"sync/atomic"
)

// Observer is a node of the fan-out graph. The zero value is not usable,
// create nodes with New or NewWithHandler.
//
// A node only ever locks a peer while holding its own lock inside Call, and
// only in the subject to observer direction.
type Observer[H any] struct {
	mu         sync.Mutex
	isShutdown atomic.Bool
	hasHandler bool
	handler    H
	refs       []*Observer[H] // subjects observed, or observers attached
}

// New creates a node without handler
func New[H any]() *Observer[H] {
	return &Observer[H]{}
}

// NewWithHandler creates a node holding handler
func NewWithHandler[H any](handler H) *Observer[H] {
	return &Observer[H]{handler: handler, hasHandler: true}
}

// --------------------------------------------------------------------------
// Handler
// --------------------------------------------------------------------------

// SetHandler replaces the handler. It fails once the node is shut down.
func (o *Observer[H]) SetHandler(handler H) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isShutdown.Load() {
		return false
	}
	o.handler = handler
	o.hasHandler = true
	return true
}

// Handler returns the handler of a live node
func (o *Observer[H]) Handler() (H, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isShutdown.Load() || !o.hasHandler {
		var zero H
		return zero, false
	}
	return o.handler, true
}

func (o *Observer[H]) IsShutdown() bool {
	return o.isShutdown.Load()
}

// --------------------------------------------------------------------------
// Attachments
// --------------------------------------------------------------------------

// Observe attaches o to subject. It fails if either node is shut down.
func (o *Observer[H]) Observe(subject *Observer[H]) bool {
	if subject == nil || subject == o {
		return false
	}
	if !o.addRef(subject) {
		return false
	}
	if !subject.addRef(o) {
		o.removeRef(subject)
		return false
	}
	return true
}

// Detach removes the attachment between o and subject in both directions
func (o *Observer[H]) Detach(subject *Observer[H]) {
	if subject == nil {
		return
	}
	o.removeRef(subject)
	subject.removeRef(o)
}

// Len returns the number of attached nodes, including dead ones not yet pruned
func (o *Observer[H]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.refs)
}

// addRef records peer and drops references to peers that were shut down
func (o *Observer[H]) addRef(peer *Observer[H]) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isShutdown.Load() {
		return false
	}
	o.pruneLocked()
	o.refs = append(o.refs, peer)
	return true
}

// removeRef removes one reference to peer
func (o *Observer[H]) removeRef(peer *Observer[H]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, r := range o.refs {
		if r == peer {
			o.refs = append(o.refs[:i], o.refs[i+1:]...)
			return
		}
	}
}

func (o *Observer[H]) pruneLocked() {
	live := o.refs[:0]
	for _, r := range o.refs {
		if !r.isShutdown.Load() {
			live = append(live, r)
		}
	}
	clear(o.refs[len(live):])
	o.refs = live
}

// --------------------------------------------------------------------------
// Fan-out
// --------------------------------------------------------------------------

// Call invokes invoke with the handler of every live attached node. Nodes
// found shut down are removed during the same scan. It returns whether at
// least one handler was invoked.
func (o *Observer[H]) Call(invoke func(handler H)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isShutdown.Load() {
		return false
	}

	called := false
	live := o.refs[:0]
	for _, r := range o.refs {
		handler, ok, dead := r.snapshot()
		if dead {
			continue
		}
		live = append(live, r)
		if ok {
			invoke(handler)
			called = true
		}
	}
	clear(o.refs[len(live):])
	o.refs = live
	return called
}

// snapshot returns the handler and whether the node is shut down
func (o *Observer[H]) snapshot() (handler H, ok bool, dead bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isShutdown.Load() {
		return handler, false, true
	}
	return o.handler, o.hasHandler, false
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// Shutdown releases the handler and all attachments. Peers notice the
// shutdown through IsShutdown and drop their reference lazily. Calling it
// again is a no-op.
func (o *Observer[H]) Shutdown() {
	if !o.isShutdown.CompareAndSwap(false, true) {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var zero H
	o.handler = zero
	o.hasHandler = false
	clear(o.refs)
	o.refs = nil
}
