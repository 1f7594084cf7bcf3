package observer

import "sync"

// ObserverScope owns one observer node. ReleaseAll detaches it from every
// subject by swapping in a fresh node; Shutdown ends the scope for good.
type ObserverScope[H any] struct {
	mu       sync.Mutex
	observer *Observer[H]
}

func NewScope[H any]() *ObserverScope[H] {
	return &ObserverScope[H]{observer: New[H]()}
}

func NewScopeWithHandler[H any](handler H) *ObserverScope[H] {
	return &ObserverScope[H]{observer: NewWithHandler(handler)}
}

// Get returns the current node
func (s *ObserverScope[H]) Get() *Observer[H] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observer
}

// SetHandler sets the handler of the current node
func (s *ObserverScope[H]) SetHandler(handler H) bool {
	return s.Get().SetHandler(handler)
}

// ReleaseAll shuts the current node down and replaces it with a fresh one
// holding no handler. Does nothing once the scope is shut down.
func (s *ObserverScope[H]) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observer.IsShutdown() {
		return
	}
	s.observer.Shutdown()
	s.observer = New[H]()
}

// Shutdown shuts the node down without replacing it
func (s *ObserverScope[H]) Shutdown() {
	s.Get().Shutdown()
}
