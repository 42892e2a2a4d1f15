package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

// BidValidator composes existence, auction state, roster and budget checks
// into one accept or reject decision. Checks run cheapest and most specific
// first, so the caller sees the most relevant reason.
type BidValidator struct {
	repos  market.Repositories
	ledger BudgetLedger
	roster RosterConstraintChecker
	now    time.Time
}

func NewBidValidator(repos market.Repositories, ledger BudgetLedger, roster RosterConstraintChecker, now time.Time) BidValidator {
	return BidValidator{repos: repos, ledger: ledger, roster: roster, now: now}
}

// StartDecision carries what ValidateStart loaded, so the caller does not
// read it again.
type StartDecision struct {
	Player player.Player
	Bidder user.User
}

func (v BidValidator) ValidateStart(ctx context.Context, playerID string, bidAmount int64, userID, releasePlayerID string) (StartDecision, error) {
	p, exists, err := v.repos.Players.GetByID(ctx, playerID)
	if err != nil {
		return StartDecision{}, fmt.Errorf("get player=%s: %w", playerID, err)
	}
	if !exists {
		return StartDecision{}, fmt.Errorf("%w: player=%s", ErrNotFound, playerID)
	}
	bidder, err := v.loadBidder(ctx, userID)
	if err != nil {
		return StartDecision{}, err
	}

	if _, busy, err := v.repos.Auctions.GetActiveByPlayer(ctx, playerID); err != nil {
		return StartDecision{}, fmt.Errorf("get active auction for player=%s: %w", playerID, err)
	} else if busy {
		return StartDecision{}, auction.Reject(auction.ErrPlayerInActiveAuction, "This player is already in an active auction")
	}

	owner, rostered, err := v.repos.Rosters.OwnerOf(ctx, playerID)
	if err != nil {
		return StartDecision{}, fmt.Errorf("get roster owner of player=%s: %w", playerID, err)
	}
	if rostered {
		teamName := owner.UserID
		if ownerUser, ok, err := v.repos.Users.GetByID(ctx, owner.UserID); err != nil {
			return StartDecision{}, fmt.Errorf("get owner user=%s: %w", owner.UserID, err)
		} else if ok {
			teamName = ownerUser.TeamName
		}
		return StartDecision{}, auction.Rejectf(auction.ErrPlayerRostered, "This player is already on team %q", teamName)
	}

	// The new auction is not stored yet, so it is not part of the
	// committed figure.
	if err := v.checkRosterAndBudget(ctx, bidder, p, bidAmount, releasePlayerID, ""); err != nil {
		return StartDecision{}, err
	}
	return StartDecision{Player: p, Bidder: bidder}, nil
}

// ValidateBid returns the auction as read inside the current transaction.
func (v BidValidator) ValidateBid(ctx context.Context, auctionID string, bidAmount int64, userID, releasePlayerID string) (auction.Auction, error) {
	a, exists, err := v.repos.Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return auction.Auction{}, fmt.Errorf("get auction=%s: %w", auctionID, err)
	}
	if !exists {
		return auction.Auction{}, fmt.Errorf("%w: auction=%s", ErrNotFound, auctionID)
	}
	bidder, err := v.loadBidder(ctx, userID)
	if err != nil {
		return auction.Auction{}, err
	}

	if !a.OpenForBids(v.now) {
		return auction.Auction{}, auction.Reject(auction.ErrAuctionEnded, "This auction has ended")
	}
	if bidAmount <= a.CurrentBid {
		return auction.Auction{}, auction.Reject(auction.ErrBidTooLow, "Bid must be higher than current bid")
	}
	if a.CurrentBidderID == userID {
		return auction.Auction{}, auction.Reject(auction.ErrSelfOutbid, "You already have the highest bid")
	}

	p, exists, err := v.repos.Players.GetByID(ctx, a.PlayerID)
	if err != nil {
		return auction.Auction{}, fmt.Errorf("get player=%s: %w", a.PlayerID, err)
	}
	if !exists {
		return auction.Auction{}, fmt.Errorf("%w: player=%s", ErrNotFound, a.PlayerID)
	}

	if err := v.checkRosterAndBudget(ctx, bidder, p, bidAmount, releasePlayerID, a.ID); err != nil {
		return auction.Auction{}, err
	}
	return a, nil
}

// ValidateRelease checks a pledge change by the leader of a. An empty
// releasePlayerID withdraws the pledge, which needs a free slot.
func (v BidValidator) ValidateRelease(ctx context.Context, a auction.Auction, userID, releasePlayerID string) (player.Player, error) {
	if !a.OpenForBids(v.now) {
		return player.Player{}, auction.Reject(auction.ErrAuctionEnded, "This auction has ended")
	}
	if a.CurrentBidderID != userID {
		return player.Player{}, auction.Reject(auction.ErrNotLeader, "Only the highest bidder can change the release promise")
	}

	p, exists, err := v.repos.Players.GetByID(ctx, a.PlayerID)
	if err != nil {
		return player.Player{}, fmt.Errorf("get player=%s: %w", a.PlayerID, err)
	}
	if !exists {
		return player.Player{}, fmt.Errorf("%w: player=%s", ErrNotFound, a.PlayerID)
	}

	if err := v.checkRoster(ctx, userID, p, releasePlayerID, a.ID); err != nil {
		return player.Player{}, err
	}
	return p, nil
}

func (v BidValidator) loadBidder(ctx context.Context, userID string) (user.User, error) {
	bidder, exists, err := v.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return user.User{}, fmt.Errorf("get user=%s: %w", userID, err)
	}
	if !exists {
		return user.User{}, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}
	if bidder.IsAdmin {
		return user.User{}, auction.Reject(auction.ErrAdminBidder, "Admins cannot take part in auctions")
	}
	return bidder, nil
}

func (v BidValidator) checkRosterAndBudget(ctx context.Context, bidder user.User, p player.Player, bidAmount int64, releasePlayerID, excludingAuctionID string) error {
	if err := v.checkRoster(ctx, bidder.ID, p, releasePlayerID, excludingAuctionID); err != nil {
		return err
	}

	available, err := v.ledger.AvailableFor(ctx, bidder)
	if err != nil {
		return err
	}
	if bidAmount > available {
		return auction.Reject(auction.ErrBudgetExceeded, "Bid amount exceeds your available budget")
	}
	return nil
}

func (v BidValidator) checkRoster(ctx context.Context, userID string, p player.Player, releasePlayerID, excludingAuctionID string) error {
	if releasePlayerID == "" {
		free, err := v.roster.SlotsFree(ctx, userID, p.Position)
		if err != nil {
			return err
		}
		if free <= 0 {
			return auction.Rejectf(auction.ErrRosterFull, "You must select a %s player to release as your roster is full for this position", p.Position)
		}
		return nil
	}
	return v.roster.CheckRelease(ctx, userID, p, releasePlayerID, excludingAuctionID)
}
