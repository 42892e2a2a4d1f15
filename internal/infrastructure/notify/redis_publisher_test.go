package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

type fakeRedis struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []string
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failures > 0 {
		f.failures--
		return redis.NewIntResult(0, errors.New("connection reset"))
	}
	f.sent = append(f.sent, channel+"|"+string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func TestRedisPublisher_RunForwardsEventsInOrder(t *testing.T) {
	t.Parallel()

	fake := &fakeRedis{failures: 1}
	pub := NewRedisPublisher(fake, "market", resilience.CircuitBreakerConfig{Enabled: false}, logging.NewNop())
	pub.retry.InitialInterval = time.Millisecond

	events := make(chan auction.Event, 2)
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	events <- auction.Event{Sequence: 1, Type: auction.EventUpdated, AuctionID: "auc-1", Auction: auction.Auction{ID: "auc-1", CurrentBid: 50}, OccurredAt: at}
	events <- auction.Event{Sequence: 2, Type: auction.EventRemoved, AuctionID: "auc-1", Auction: auction.Auction{ID: "auc-1", CurrentBid: 60}, OccurredAt: at}
	close(events)

	pub.Run(t.Context(), events)

	if len(fake.sent) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(fake.sent))
	}
	for i, raw := range fake.sent {
		channel, body, _ := strings.Cut(raw, "|")
		if channel != "market" {
			t.Fatalf("unexpected channel %q", channel)
		}
		var msg usecase.AuctionEventMessage
		if err := sonic.UnmarshalString(body, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if msg.Sequence != uint64(i+1) || msg.AuctionID != "auc-1" {
			t.Fatalf("message %d out of order: %+v", i, msg)
		}
	}
	if fake.calls != 3 {
		t.Fatalf("expected one retry, got %d calls", fake.calls)
	}
}

func TestRedisPublisher_BreakerStopsCalls(t *testing.T) {
	t.Parallel()

	fake := &fakeRedis{failures: 100}
	pub := NewRedisPublisher(fake, "market", resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		HalfOpenMaxReq:   1,
	}, logging.NewNop())
	pub.retry.InitialInterval = time.Millisecond

	ev := auction.Event{Sequence: 1, Type: auction.EventUpdated, AuctionID: "auc-1"}
	if err := pub.Publish(t.Context(), ev); err == nil {
		t.Fatalf("expected publish error")
	}
	if err := pub.Publish(t.Context(), ev); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected 2 calls before the breaker opened, got %d", fake.calls)
	}
}
