package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_DoSharesOneCall(t *testing.T) {
	var g SingleFlight[string]
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	var sharedCount atomic.Int32
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err, shared := g.Do("token-key", func() (string, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "principal-1", nil
			})
			if err != nil || v != "principal-1" {
				t.Errorf("singleflight call: v=%q err=%v", v, err)
			}
			if shared {
				sharedCount.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
	if sharedCount.Load() != workers-1 {
		t.Fatalf("expected %d shared results, got %d", workers-1, sharedCount.Load())
	}
	if g.InFlight() != 0 {
		t.Fatalf("expected no call in flight, got %d", g.InFlight())
	}
}

func TestSingleFlight_ErrorIsNotRemembered(t *testing.T) {
	var g SingleFlight[int]
	boom := errors.New("boom")

	if _, err, _ := g.Do("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err, _ := g.Do("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected fresh call after error, got v=%d err=%v", v, err)
	}
}

func TestSingleFlight_PanicReleasesKey(t *testing.T) {
	var g SingleFlight[int]

	func() {
		defer func() { _ = recover() }()
		_, _, _ = g.Do("k", func() (int, error) { panic("boom") })
	}()

	if g.InFlight() != 0 {
		t.Fatalf("expected key released after panic")
	}
	v, err, _ := g.Do("k", func() (int, error) { return 1, nil })
	if err != nil || v != 1 {
		t.Fatalf("unexpected result after panic: v=%d err=%v", v, err)
	}
}
