package auction

import (
	"context"
	"time"
)

type Repository interface {
	GetByID(ctx context.Context, auctionID string) (Auction, bool, error)
	GetActiveByPlayer(ctx context.Context, playerID string) (Auction, bool, error)
	// ListActive is ordered by EndsAt ascending, then ID.
	ListActive(ctx context.Context) ([]Auction, error)
	ListActiveByBidder(ctx context.Context, userID string) ([]Auction, error)
	// ListRecentByBidder returns the auctions userID currently leads or
	// last led, in any status, newest StartedAt first.
	ListRecentByBidder(ctx context.Context, userID string, limit int) ([]Auction, error)
	// ListExpired returns active auctions with EndsAt <= now, oldest first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Auction, error)
	Insert(ctx context.Context, a Auction) error
	// Update stores a when the stored version still equals a.Version and
	// returns the row with its bumped version. A stale version yields
	// ErrVersionConflict.
	Update(ctx context.Context, a Auction) (Auction, error)
}
