package base

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"
)

// TestQueueOrderPerProducer checks that items of one producer keep their order
func TestQueueOrderPerProducer(t *testing.T) {
	type item struct {
		producer, seq int
	}
	q := newEventQueue[item]()
	defer q.Close()

	const producers, perProducer = 4, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(&item{p, i})
			}
		}(p)
	}

	next := make([]int, producers)
	timeout := time.After(10 * time.Second)
	for received := 0; received < producers*perProducer; received++ {
		select {
		case it := <-q.Recv():
			if it.seq != next[it.producer] {
				t.Fatalf("Producer %d: expected seq %d, got %d", it.producer, next[it.producer], it.seq)
			}
			next[it.producer]++
		case <-timeout:
			t.Fatalf("Timed out after %d items", received)
		}
	}
	wg.Wait()
}

// TestQueueWakeup pushes single items with pauses so the consumer waits between them
func TestQueueWakeup(t *testing.T) {
	q := newEventQueue[int]()
	defer q.Close()

	for i := 0; i < 50; i++ {
		v := i
		time.Sleep(time.Millisecond)
		q.Push(&v)
		select {
		case got := <-q.Recv():
			if *got != i {
				t.Fatalf("Expected %d, got %d", i, *got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Item %d was never delivered", i)
		}
	}
}

// TestQueueClose checks that queued items survive Close and the channel closes
func TestQueueClose(t *testing.T) {
	q := newEventQueue[int]()
	one, two := 1, 2
	q.Push(&one)
	q.Push(&two)
	q.Close()

	if q.Push(&one) {
		t.Errorf("Expected Push to fail after Close")
	}
	if !q.IsClosed() {
		t.Errorf("Expected IsClosed to be true")
	}

	var got []int
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-q.Recv():
			if !ok {
				if len(got) != 2 || got[0] != 1 || got[1] != 2 {
					t.Errorf("Expected [1 2], got %v", got)
				}
				return
			}
			got = append(got, *v)
		case <-timeout:
			t.Fatal("Channel was not closed")
		}
	}
}

// TestFrames checks the length prefixed framing
func TestFrames(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payloads := [][]byte{
		{0x11, 0x01, 0x02},
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	}

	go func() {
		for _, p := range payloads {
			if err := writeFrame(client, p); err != nil {
				t.Errorf("Failed to write frame: %v", err)
				return
			}
		}
	}()

	buf := make([]byte, 16)
	for i, want := range payloads {
		got, err := readFrame(server, buf)
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Frame %d doesn't match: %d bytes != %d bytes", i, len(got), len(want))
		}
	}
}

// TestFrameLimit checks that an oversized length prefix is rejected
func TestFrameLimit(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}()

	if _, err := readFrame(server, nil); err == nil {
		t.Errorf("Expected error for oversized frame")
	}
}
