package observer

import (
	"sync"
	"testing"
)

// TestScope checks SetHandler, ReleaseAll and Shutdown of a scope
func TestScope(t *testing.T) {
	subject := New[handlerFunc]()
	var fired int

	scope := NewScope[handlerFunc]()
	if !scope.SetHandler(func(n int) { fired += n }) {
		t.Fatal("SetHandler failed on a fresh scope")
	}
	scope.Get().Observe(subject)
	fire(subject, 1)
	if fired != 1 {
		t.Fatalf("Expected 1 invocation, got %d", fired)
	}

	// ReleaseAll detaches from every subject and leaves a usable node
	old := scope.Get()
	scope.ReleaseAll()
	if !old.IsShutdown() {
		t.Errorf("Expected previous node to be shut down")
	}
	if scope.Get() == old || scope.Get().IsShutdown() {
		t.Errorf("Expected a fresh node after ReleaseAll")
	}
	fire(subject, 1)
	if fired != 1 {
		t.Errorf("Expected no invocation after ReleaseAll, got %d", fired)
	}
	if _, ok := scope.Get().Handler(); ok {
		t.Errorf("Expected fresh node without handler")
	}

	// reattach and shut down for good
	scope.SetHandler(func(n int) { fired += n })
	scope.Get().Observe(subject)
	scope.Shutdown()
	scope.ReleaseAll()
	if !scope.Get().IsShutdown() {
		t.Errorf("Expected ReleaseAll after Shutdown to keep the scope shut down")
	}
	if fire(subject, 1) || fired != 1 {
		t.Errorf("Expected no invocation after scope shutdown")
	}
}

// TestHash checks lazy subject creation and explicit removal
func TestHash(t *testing.T) {
	h := NewHash[handlerFunc]()
	if h.GetSubject("LatencyTesterAvailable_1") != nil {
		t.Fatal("Expected no subject before the first attach")
	}

	var a, b int
	oa := NewWithHandler[handlerFunc](func(n int) { a += n })
	ob := NewWithHandler[handlerFunc](func(n int) { b += n })
	if !h.AddObserverToSubject("HMDCountUpdate_1", oa) || !h.AddObserverToSubject("HMDCountUpdate_1", ob) {
		t.Fatal("AddObserverToSubject failed")
	}
	if h.Len() != 1 {
		t.Errorf("Expected 1 subject, got %d", h.Len())
	}

	subject := h.GetSubject("HMDCountUpdate_1")
	if subject == nil || !fire(subject, 3) {
		t.Fatal("Expected subject to fire")
	}
	if a != 3 || b != 3 {
		t.Errorf("Expected both observers to receive 3, got %d/%d", a, b)
	}

	// a dead observer is rejected
	dead := New[handlerFunc]()
	dead.Shutdown()
	if h.AddObserverToSubject("other", dead) {
		t.Errorf("Expected shut down observer to be rejected")
	}

	h.RemoveSubject("HMDCountUpdate_1")
	h.RemoveSubject("HMDCountUpdate_1")
	if !subject.IsShutdown() || h.GetSubject("HMDCountUpdate_1") != nil {
		t.Errorf("Expected subject to be shut down and removed")
	}

	// attaching again creates a new subject
	if !h.AddObserverToSubject("HMDCountUpdate_1", oa) {
		t.Fatal("Expected reattach to create a new subject")
	}
	if h.GetSubject("HMDCountUpdate_1") == subject {
		t.Errorf("Expected a new subject instance")
	}

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Expected empty hash after Clear, got %d", h.Len())
	}
}

// TestHashConcurrentAttachRemove races attaching against removal
func TestHashConcurrentAttachRemove(t *testing.T) {
	h := NewHash[handlerFunc]()
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if !h.AddObserverToSubject("key", New[handlerFunc]()) {
					t.Errorf("AddObserverToSubject failed for a live observer")
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.RemoveSubject("key")
			}
		}()
	}
	wg.Wait()
}
