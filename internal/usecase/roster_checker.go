package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
)

// RosterConstraintChecker answers slot questions against rostered players
// only. Pending wins do not reserve a slot; a release pledge frees one.
type RosterConstraintChecker struct {
	rosters      roster.Repository
	auctions     auction.Repository
	requirements roster.Requirements
}

func NewRosterConstraintChecker(repos market.Repositories, requirements roster.Requirements) RosterConstraintChecker {
	return RosterConstraintChecker{
		rosters:      repos.Rosters,
		auctions:     repos.Auctions,
		requirements: requirements,
	}
}

func (c RosterConstraintChecker) SlotsFree(ctx context.Context, userID string, position player.Position) (int, error) {
	count, err := c.rosters.CountByPosition(ctx, userID, position)
	if err != nil {
		return 0, fmt.Errorf("count roster user=%s position=%s: %w", userID, position, err)
	}
	return c.requirements.Slots(position) - count, nil
}

// EligibleReleaseCandidates lists the user's roster players of position
// that are not pledged on another of the user's active auctions, by name.
func (c RosterConstraintChecker) EligibleReleaseCandidates(ctx context.Context, userID string, position player.Position, excludingAuctionID string) ([]player.Player, error) {
	players, err := c.rosters.ListPlayers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roster user=%s: %w", userID, err)
	}
	pledged, err := c.pledgedElsewhere(ctx, userID, excludingAuctionID)
	if err != nil {
		return nil, err
	}

	out := make([]player.Player, 0, len(players))
	for _, p := range players {
		if p.Position != position {
			continue
		}
		if _, taken := pledged[p.ID]; taken {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CheckRelease validates releasePlayerID as the pledge of userID on an
// auction for target. Each failure is a typed rejection.
func (c RosterConstraintChecker) CheckRelease(ctx context.Context, userID string, target player.Player, releasePlayerID, excludingAuctionID string) error {
	owned, err := c.rosters.ListPlayers(ctx, userID)
	if err != nil {
		return fmt.Errorf("list roster user=%s: %w", userID, err)
	}

	var release *player.Player
	for i := range owned {
		if owned[i].ID == releasePlayerID {
			release = &owned[i]
			break
		}
	}
	if release == nil {
		return auction.Reject(auction.ErrReleaseNotOwned, "Selected player to release is not in your roster")
	}
	if release.Position != target.Position {
		return auction.Reject(auction.ErrReleasePosition, "Selected player to release must be of the same position")
	}

	pledged, err := c.pledgedElsewhere(ctx, userID, excludingAuctionID)
	if err != nil {
		return err
	}
	if _, taken := pledged[releasePlayerID]; taken {
		return auction.Reject(auction.ErrReleasePledged, "Selected player to release is already promised in another auction")
	}
	return nil
}

func (c RosterConstraintChecker) pledgedElsewhere(ctx context.Context, userID, excludingAuctionID string) (map[string]struct{}, error) {
	led, err := c.auctions.ListActiveByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list auctions led by user=%s: %w", userID, err)
	}

	out := make(map[string]struct{}, len(led))
	for _, a := range led {
		if a.ID == excludingAuctionID || !a.HasRelease() {
			continue
		}
		out[a.ReleasePlayerID] = struct{}{}
	}
	return out, nil
}
