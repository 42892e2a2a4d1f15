package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/queue"
)

// AuctionRegistry is the read side of the auction table plus the live
// fan-out of change events to subscribers.
type AuctionRegistry struct {
	store  market.Store
	logger *logging.Logger

	mu       sync.Mutex
	sequence uint64
	nextID   uint64
	subs     map[uint64]*Subscription
}

func NewAuctionRegistry(store market.Store, logger *logging.Logger) *AuctionRegistry {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuctionRegistry{
		store:  store,
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

func (r *AuctionRegistry) Get(ctx context.Context, auctionID string) (auction.Auction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionRegistry.Get")
	defer span.End()

	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return auction.Auction{}, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}

	a, exists, err := r.store.Repositories().Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return auction.Auction{}, fmt.Errorf("get auction=%s: %w", auctionID, err)
	}
	if !exists {
		return auction.Auction{}, fmt.Errorf("%w: auction=%s", ErrNotFound, auctionID)
	}
	return a, nil
}

// ListActive returns active auctions ordered by EndsAt, then ID.
func (r *AuctionRegistry) ListActive(ctx context.Context) ([]auction.Auction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionRegistry.ListActive")
	defer span.End()

	items, err := r.store.Repositories().Auctions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	return items, nil
}

// Subscribe registers a new listener. Events published after this call are
// delivered in publish order until the subscription is closed.
func (r *AuctionRegistry) Subscribe() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := newSubscription(r.nextID, r)
	r.subs[sub.id] = sub
	return sub
}

// Publish stamps events with a sequence number and enqueues them for every
// subscriber. It never blocks on a slow subscriber.
func (r *AuctionRegistry) Publish(events ...auction.Event) {
	if len(events) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range events {
		r.sequence++
		event.Sequence = r.sequence
		for _, sub := range r.subs {
			sub.queue.Push(event)
		}
	}
}

func (r *AuctionRegistry) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *AuctionRegistry) remove(id uint64) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// Subscription is one listener's ordered, unbounded event stream.
type Subscription struct {
	id       uint64
	registry *AuctionRegistry
	queue    *queue.Unbounded[auction.Event]
	out      chan auction.Event
	once     sync.Once
}

func newSubscription(id uint64, registry *AuctionRegistry) *Subscription {
	sub := &Subscription{
		id:       id,
		registry: registry,
		queue:    queue.NewUnbounded[auction.Event](16),
		out:      make(chan auction.Event),
	}
	go sub.pump()
	return sub
}

// C yields events in order. It is closed after Close once pending events
// have been delivered or dropped.
func (s *Subscription) C() <-chan auction.Event {
	return s.out
}

// Close detaches the subscription. Pending events are discarded if nobody
// reads them.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.registry.remove(s.id)
		s.queue.Close()
		go func() {
			// unblock a pump stuck on a reader that went away.
			for range s.out {
			}
		}()
	})
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		event, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.out <- event
	}
}
