package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

// BudgetLedger derives committed and available credit from the auctions a
// user currently leads. Bind it to the repositories of the transaction
// that will act on the figures.
type BudgetLedger struct {
	auctions auction.Repository
	users    user.Repository
}

func NewBudgetLedger(repos market.Repositories) BudgetLedger {
	return BudgetLedger{auctions: repos.Auctions, users: repos.Users}
}

// CommittedBudget sums the current bids of every active auction userID leads.
func (l BudgetLedger) CommittedBudget(ctx context.Context, userID string) (int64, error) {
	led, err := l.auctions.ListActiveByBidder(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list auctions led by user=%s: %w", userID, err)
	}

	var committed int64
	for _, a := range led {
		committed += a.CurrentBid
	}
	return committed, nil
}

func (l BudgetLedger) AvailableBudget(ctx context.Context, userID string) (int64, error) {
	u, exists, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user=%s: %w", userID, err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}
	return l.AvailableFor(ctx, u)
}

// AvailableFor is AvailableBudget for an already loaded user.
func (l BudgetLedger) AvailableFor(ctx context.Context, u user.User) (int64, error) {
	committed, err := l.CommittedBudget(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	return u.Budget - committed, nil
}
