package auction

import "time"

type EventType string

const (
	// EventUpdated carries the new state of a still-active auction.
	EventUpdated EventType = "updated"
	// EventRemoved is emitted once an auction leaves the active list.
	EventRemoved EventType = "removed"
)

// Event is a change notification. Sequence grows monotonically per
// registry, so consumers can drop duplicates after a redelivery.
type Event struct {
	Sequence   uint64
	Type       EventType
	AuctionID  string
	Auction    Auction
	OccurredAt time.Time
}

func Updated(a Auction, at time.Time) Event {
	return Event{Type: EventUpdated, AuctionID: a.ID, Auction: a, OccurredAt: at}
}

func Removed(a Auction, at time.Time) Event {
	return Event{Type: EventRemoved, AuctionID: a.ID, Auction: a, OccurredAt: at}
}
