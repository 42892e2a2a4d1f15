package queue

import (
	"sync"
	"testing"
)

func TestUnbounded_KeepsOrderAcrossGrowth(t *testing.T) {
	q := NewUnbounded[int](2)
	for i := 0; i < 100; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d refused", i)
		}
		if i%3 == 0 {
			// interleave pops so the ring wraps before it grows.
			got, _ := q.Pop()
			if got != i/3 {
				t.Fatalf("expected %d, got %d", i/3, got)
			}
		}
	}

	next := 34
	for q.Len() > 0 {
		got, ok := q.Pop()
		if !ok || got != next {
			t.Fatalf("expected %d, got %d (ok=%v)", next, got, ok)
		}
		next++
	}
	if next != 100 {
		t.Fatalf("expected to drain up to 100, stopped at %d", next)
	}
}

func TestUnbounded_CloseDrainsThenStops(t *testing.T) {
	q := NewUnbounded[string](1)
	q.Push("a")
	q.Push("b")
	q.Close()

	if q.Push("c") {
		t.Fatalf("expected push after close to be refused")
	}
	for _, want := range []string{"a", "b"} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("expected %s, got %s (ok=%v)", want, got, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected closed empty queue to report false")
	}
}

func TestUnbounded_PopWaitsForPush(t *testing.T) {
	q := NewUnbounded[int](1)
	var wg sync.WaitGroup
	wg.Add(1)
	var got int
	go func() {
		defer wg.Done()
		got, _ = q.Pop()
	}()
	q.Push(7)
	wg.Wait()
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
