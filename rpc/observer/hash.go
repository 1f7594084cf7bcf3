package observer

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// ObserverHash maps identifiers to subjects
type ObserverHash[H any] struct {
	subjects *xsync.MapOf[string, *Observer[H]]
}

func NewHash[H any]() *ObserverHash[H] {
	return &ObserverHash[H]{
		subjects: xsync.NewMapOf[string, *Observer[H]](),
	}
}

// GetSubject returns the subject for key, or nil if none was created yet
func (h *ObserverHash[H]) GetSubject(key string) *Observer[H] {
	subject, ok := h.subjects.Load(key)
	if !ok {
		return nil
	}
	return subject
}

// AddObserverToSubject attaches observer to the subject for key, creating
// the subject on first use. It fails if observer is shut down.
func (h *ObserverHash[H]) AddObserverToSubject(key string, observer *Observer[H]) bool {
	for {
		subject, _ := h.subjects.LoadOrCompute(key, func() *Observer[H] {
			return New[H]()
		})
		if observer.Observe(subject) {
			return true
		}
		if observer.IsShutdown() || observer == subject {
			return false
		}

		// the subject was shut down concurrently, drop it and retry
		h.subjects.Compute(key, func(old *Observer[H], loaded bool) (*Observer[H], bool) {
			return old, !loaded || old == subject
		})
	}
}

// RemoveSubject shuts the subject for key down and removes it
func (h *ObserverHash[H]) RemoveSubject(key string) {
	if subject, ok := h.subjects.LoadAndDelete(key); ok {
		subject.Shutdown()
	}
}

// Clear shuts down and removes all subjects
func (h *ObserverHash[H]) Clear() {
	h.subjects.Range(func(key string, subject *Observer[H]) bool {
		h.RemoveSubject(key)
		return true
	})
}

// Len returns the number of subjects
func (h *ObserverHash[H]) Len() int {
	return h.subjects.Size()
}
