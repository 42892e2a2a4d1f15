package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
)

type AuctionRepository struct {
	v *view
}

func (r *AuctionRepository) GetByID(_ context.Context, auctionID string) (auction.Auction, bool, error) {
	var (
		out auction.Auction
		ok  bool
	)
	r.v.read(func(d *dataset) {
		out, ok = d.auctions[auctionID]
	})
	return out, ok, nil
}

func (r *AuctionRepository) GetActiveByPlayer(_ context.Context, playerID string) (auction.Auction, bool, error) {
	var (
		out auction.Auction
		ok  bool
	)
	r.v.read(func(d *dataset) {
		out, ok = activeByPlayer(d, playerID)
	})
	return out, ok, nil
}

func (r *AuctionRepository) ListActive(_ context.Context) ([]auction.Auction, error) {
	return r.filter(func(a auction.Auction) bool { return a.IsActive() }, 0), nil
}

func (r *AuctionRepository) ListActiveByBidder(_ context.Context, userID string) ([]auction.Auction, error) {
	return r.filter(func(a auction.Auction) bool {
		return a.IsActive() && a.CurrentBidderID == userID
	}, 0), nil
}

func (r *AuctionRepository) ListRecentByBidder(_ context.Context, userID string, limit int) ([]auction.Auction, error) {
	out := r.filter(func(a auction.Auction) bool { return a.CurrentBidderID == userID }, 0)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AuctionRepository) ListExpired(_ context.Context, now time.Time, limit int) ([]auction.Auction, error) {
	return r.filter(func(a auction.Auction) bool {
		return a.IsActive() && a.IsExpired(now)
	}, limit), nil
}

func (r *AuctionRepository) Insert(_ context.Context, a auction.Auction) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.v.write(func(d *dataset, record func(func(*dataset))) error {
		if _, exists := d.auctions[a.ID]; exists {
			return fmt.Errorf("auction %s already exists", a.ID)
		}
		if a.IsActive() {
			if _, busy := activeByPlayer(d, a.PlayerID); busy {
				return auction.ErrVersionConflict
			}
		}
		d.auctions[a.ID] = a
		record(func(d *dataset) { delete(d.auctions, a.ID) })
		return nil
	})
}

func (r *AuctionRepository) Update(_ context.Context, a auction.Auction) (auction.Auction, error) {
	if err := a.Validate(); err != nil {
		return auction.Auction{}, err
	}
	err := r.v.write(func(d *dataset, record func(func(*dataset))) error {
		prev, ok := d.auctions[a.ID]
		if !ok {
			return fmt.Errorf("auction %s not found", a.ID)
		}
		if prev.Version != a.Version {
			return auction.ErrVersionConflict
		}
		a.Version++
		d.auctions[a.ID] = a
		record(func(d *dataset) { d.auctions[prev.ID] = prev })
		return nil
	})
	if err != nil {
		return auction.Auction{}, err
	}
	return a, nil
}

func (r *AuctionRepository) filter(keep func(auction.Auction) bool, limit int) []auction.Auction {
	out := make([]auction.Auction, 0)
	r.v.read(func(d *dataset) {
		for _, a := range d.auctions {
			if keep(a) {
				out = append(out, a)
			}
		}
	})
	sortByEnd(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func activeByPlayer(d *dataset, playerID string) (auction.Auction, bool) {
	for _, a := range d.auctions {
		if a.PlayerID == playerID && a.IsActive() {
			return a, true
		}
	}
	return auction.Auction{}, false
}

func sortByEnd(items []auction.Auction) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndsAt.Equal(items[j].EndsAt) {
			return items[i].EndsAt.Before(items[j].EndsAt)
		}
		return items[i].ID < items[j].ID
	})
}
