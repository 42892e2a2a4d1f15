package keylock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocker_SerializesOverlappingKeySets(t *testing.T) {
	locker := New()

	const workers = 50
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)

	for i := 0; i < workers; i++ {
		keys := []string{"user:u1", "auction:a1"}
		if i%2 == 0 {
			keys = []string{"auction:a1", "user:u1", "user:u1"}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), keys...)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders at once", maxSeen)
	}
	if held := locker.Held(); held != 0 {
		t.Fatalf("expected no slots after release, got %d", held)
	}
}

func TestLocker_DisjointKeysDoNotBlock(t *testing.T) {
	locker := New()

	unlockA, err := locker.Lock(t.Context(), "user:a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "user:b")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	unlockB()
}

func TestLocker_ContextTimeoutReleasesPartialAcquisition(t *testing.T) {
	locker := New()

	unlock, err := locker.Lock(t.Context(), "user:b")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "user:a", "user:b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// user:a must have been released by the failed attempt.
	quick, cancelQuick := context.WithTimeout(t.Context(), time.Second)
	defer cancelQuick()
	unlockA, err := locker.Lock(quick, "user:a")
	if err != nil {
		t.Fatalf("expected user:a to be free, got %v", err)
	}
	unlockA()

	unlock()
	unlock()
	if held := locker.Held(); held != 0 {
		t.Fatalf("expected no slots after release, got %d", held)
	}
}
