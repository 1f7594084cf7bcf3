package observer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type handlerFunc func(n int)

// fire calls every handler of subject with n
func fire(subject *Observer[handlerFunc], n int) bool {
	return subject.Call(func(h handlerFunc) { h(n) })
}

// TestFanOutAndPruning attaches N observers, shuts M of them down and checks
// that exactly N-M fire and the dead ones are removed by the call
func TestFanOutAndPruning(t *testing.T) {
	testCases := []struct {
		n, m int
	}{
		{1, 0},
		{5, 0},
		{5, 2},
		{5, 5},
		{32, 31},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("N=%d,M=%d", tc.n, tc.m), func(t *testing.T) {
			subject := New[handlerFunc]()
			counts := make([]int, tc.n)
			observers := make([]*Observer[handlerFunc], tc.n)

			for i := range observers {
				i := i
				observers[i] = NewWithHandler[handlerFunc](func(n int) { counts[i] += n })
				if !observers[i].Observe(subject) {
					t.Fatalf("Failed to observe subject")
				}
			}
			for i := 0; i < tc.m; i++ {
				observers[i].Shutdown()
			}

			if subject.Len() != tc.n {
				t.Fatalf("Expected %d attachments before the call, got %d", tc.n, subject.Len())
			}

			called := fire(subject, 1)
			if called != (tc.n > tc.m) {
				t.Errorf("Expected Call to return %v, got %v", tc.n > tc.m, called)
			}

			for i, c := range counts {
				want := 1
				if i < tc.m {
					want = 0
				}
				if c != want {
					t.Errorf("Observer %d fired %d times, expected %d", i, c, want)
				}
			}
			if subject.Len() != tc.n-tc.m {
				t.Errorf("Expected %d attachments after the call, got %d", tc.n-tc.m, subject.Len())
			}
		})
	}
}

// TestShutdownIdempotent checks that a second Shutdown changes nothing
func TestShutdownIdempotent(t *testing.T) {
	subject := New[handlerFunc]()
	var fired int
	o := NewWithHandler[handlerFunc](func(int) { fired++ })
	o.Observe(subject)

	o.Shutdown()
	stateOnce := [3]any{o.IsShutdown(), o.Len(), fire(subject, 1)}
	o.Shutdown()
	stateTwice := [3]any{o.IsShutdown(), o.Len(), fire(subject, 1)}

	if stateOnce != stateTwice {
		t.Errorf("Second Shutdown changed state: %v != %v", stateOnce, stateTwice)
	}
	if fired != 0 {
		t.Errorf("Handler of a shut down observer fired %d times", fired)
	}
	if _, ok := o.Handler(); ok {
		t.Errorf("Expected no handler after shutdown")
	}
	if o.SetHandler(func(int) {}) {
		t.Errorf("Expected SetHandler to fail after shutdown")
	}
	if o.Observe(New[handlerFunc]()) {
		t.Errorf("Expected Observe to fail after shutdown")
	}

	// a shut down subject refuses new observers and never fires
	subject.Shutdown()
	subject.Shutdown()
	live := NewWithHandler[handlerFunc](func(int) { fired++ })
	if live.Observe(subject) {
		t.Errorf("Expected Observe on a shut down subject to fail")
	}
	if live.Len() != 0 {
		t.Errorf("Expected failed Observe to leave no reference, got %d", live.Len())
	}
	if fire(subject, 1) {
		t.Errorf("Expected Call on a shut down subject to return false")
	}
}

// TestObserveEdgeCases checks self observation, nil subjects and detaching
func TestObserveEdgeCases(t *testing.T) {
	o := New[handlerFunc]()
	if o.Observe(o) {
		t.Errorf("Expected self observation to fail")
	}
	if o.Observe(nil) {
		t.Errorf("Expected nil subject to fail")
	}

	subject := New[handlerFunc]()
	var fired int
	o.SetHandler(func(int) { fired++ })
	o.Observe(subject)

	// duplicate attachments are additive
	o.Observe(subject)
	fire(subject, 1)
	if fired != 2 {
		t.Errorf("Expected 2 invocations for 2 attachments, got %d", fired)
	}

	o.Detach(subject)
	o.Detach(subject)
	if subject.Len() != 0 || o.Len() != 0 {
		t.Errorf("Expected no attachments after detaching twice, got %d/%d", subject.Len(), o.Len())
	}
	if fire(subject, 1) {
		t.Errorf("Expected no invocation after detach")
	}

	// an observer without handler is attached but never invoked
	silent := New[handlerFunc]()
	silent.Observe(subject)
	if fire(subject, 1) {
		t.Errorf("Expected observer without handler not to count as invoked")
	}
}

// TestHandlerMayShutdownItself checks that a handler can end its own subscription
func TestHandlerMayShutdownItself(t *testing.T) {
	subject := New[handlerFunc]()
	var o *Observer[handlerFunc]
	var fired int
	o = NewWithHandler[handlerFunc](func(int) {
		fired++
		o.Shutdown()
	})
	o.Observe(subject)

	done := make(chan struct{})
	go func() {
		fire(subject, 1)
		fire(subject, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Call deadlocked")
	}
	if fired != 1 {
		t.Errorf("Expected one-shot handler to fire once, got %d", fired)
	}
	if subject.Len() != 0 {
		t.Errorf("Expected dead observer to be pruned, got %d", subject.Len())
	}
}

// TestConcurrentFanOut calls a subject while observers attach and shut down
func TestConcurrentFanOut(t *testing.T) {
	subject := New[handlerFunc]()
	var total atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				o := NewWithHandler[handlerFunc](func(n int) { total.Add(int64(n)) })
				o.Observe(subject)
				if j%2 == 0 {
					o.Shutdown()
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				fire(subject, 1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Concurrent fan-out did not finish")
	}

	fire(subject, 0)
	if subject.Len() != 8*100 {
		t.Errorf("Expected %d live observers, got %d", 8*100, subject.Len())
	}
}
