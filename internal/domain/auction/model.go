package auction

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDuration is how long an auction stays open after it starts.
const DefaultDuration = 24 * time.Hour

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the state machine allows from -> to. Only
// active auctions move, and only into a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusActive && to.Terminal()
}

// Auction is one ascending-price sale of a catalogue player.
type Auction struct {
	ID              string
	PlayerID        string
	CurrentBid      int64
	CurrentBidderID string
	StartedAt       time.Time
	EndsAt          time.Time
	Status          Status
	// ReleasePlayerID is the roster player the leader drops on winning.
	// Empty means no pledge.
	ReleasePlayerID string
	// Version increases on every stored change and guards concurrent writers.
	Version int64
}

func (a Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsExpired is true once now has reached EndsAt. Status is not consulted.
func (a Auction) IsExpired(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// OpenForBids is true for an active auction whose window has not closed.
func (a Auction) OpenForBids(now time.Time) bool {
	return a.IsActive() && !a.IsExpired(now)
}

func (a Auction) HasRelease() bool {
	return a.ReleasePlayerID != ""
}

// Close moves the auction into a terminal state at now.
func (a Auction) Close(to Status, now time.Time) (Auction, error) {
	if !CanTransition(a.Status, to) {
		return a, fmt.Errorf("invalid auction transition %s -> %s", a.Status, to)
	}
	a.Status = to
	a.EndsAt = now
	return a, nil
}

func (a Auction) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("auction id is required")
	}
	if strings.TrimSpace(a.PlayerID) == "" {
		return fmt.Errorf("auction player id is required")
	}
	if strings.TrimSpace(a.CurrentBidderID) == "" {
		return fmt.Errorf("auction bidder id is required")
	}
	if a.CurrentBid <= 0 {
		return fmt.Errorf("auction bid must be greater than zero")
	}
	if !a.EndsAt.After(a.StartedAt) && a.Status == StatusActive {
		return fmt.Errorf("auction must end after it starts")
	}
	switch a.Status {
	case StatusActive, StatusCompleted, StatusCancelled:
	default:
		return fmt.Errorf("invalid auction status: %s", a.Status)
	}
	return nil
}
