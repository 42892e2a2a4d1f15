package usecase

import (
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
)

// AuctionView is the wire form of an auction shared by the HTTP API, the
// live stream and cross-process notifications.
type AuctionView struct {
	ID              string    `json:"id"`
	PlayerID        string    `json:"playerId"`
	CurrentBid      int64     `json:"currentBid"`
	CurrentBidderID string    `json:"currentBidderId"`
	StartedAt       time.Time `json:"startedAt"`
	EndsAt          time.Time `json:"endsAt"`
	Status          string    `json:"status"`
	ReleasePlayerID string    `json:"releasePlayerId,omitempty"`
	Version         int64     `json:"version"`
}

type AuctionEventMessage struct {
	Sequence   uint64      `json:"sequence"`
	Type       string      `json:"type"`
	AuctionID  string      `json:"auctionId"`
	Auction    AuctionView `json:"auction"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func NewAuctionView(a auction.Auction) AuctionView {
	return AuctionView{
		ID:              a.ID,
		PlayerID:        a.PlayerID,
		CurrentBid:      a.CurrentBid,
		CurrentBidderID: a.CurrentBidderID,
		StartedAt:       a.StartedAt,
		EndsAt:          a.EndsAt,
		Status:          string(a.Status),
		ReleasePlayerID: a.ReleasePlayerID,
		Version:         a.Version,
	}
}

func NewAuctionViews(items []auction.Auction) []AuctionView {
	out := make([]AuctionView, 0, len(items))
	for _, a := range items {
		out = append(out, NewAuctionView(a))
	}
	return out
}

func NewAuctionEventMessage(ev auction.Event) AuctionEventMessage {
	return AuctionEventMessage{
		Sequence:   ev.Sequence,
		Type:       string(ev.Type),
		AuctionID:  ev.AuctionID,
		Auction:    NewAuctionView(ev.Auction),
		OccurredAt: ev.OccurredAt,
	}
}
