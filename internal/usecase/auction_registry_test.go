package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/memory"
)

func TestAuctionRegistry_ListActiveOrdersByEnd(t *testing.T) {
	m := newTestMarket(t, nil)

	late := m.start(t, memory.SeedUserA, "ply-c-02", 10, "")
	m.engine.now = func() time.Time { return marketNow.Add(-time.Hour) }
	early := m.start(t, memory.SeedUserB, "ply-a-02", 10, "")

	items, err := m.registry.ListActive(t.Context())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(items) != 2 || items[0].ID != early.ID || items[1].ID != late.ID {
		t.Fatalf("unexpected order: %+v", items)
	}

	if _, err := m.registry.Get(t.Context(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := m.registry.Get(t.Context(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuctionRegistry_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	registry := NewAuctionRegistry(nil, nil)
	slow := registry.Subscribe()
	fast := registry.Subscribe()
	if registry.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", registry.Subscribers())
	}

	const total = 500
	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < total; i++ {
			registry.Publish(auction.Updated(auction.Auction{ID: "auc-1", CurrentBid: int64(i + 1)}, marketNow))
		}
	}()
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on an idle subscriber")
	}

	for i := 0; i < total; i++ {
		ev := nextEvent(t, fast)
		if ev.Auction.CurrentBid != int64(i+1) || ev.Sequence != uint64(i+1) {
			t.Fatalf("event %d out of order: bid=%d seq=%d", i, ev.Auction.CurrentBid, ev.Sequence)
		}
	}
	fast.Close()

	if ev := nextEvent(t, slow); ev.Sequence != 1 {
		t.Fatalf("slow subscriber should start at sequence 1, got %d", ev.Sequence)
	}
	slow.Close()
	slow.Close()

	if registry.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after close, got %d", registry.Subscribers())
	}
	registry.Publish(auction.Removed(auction.Auction{ID: "auc-1"}, marketNow))
}
