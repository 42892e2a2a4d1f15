package player

import (
	"fmt"
	"strings"
	"time"
)

// Position is the roster slot family a player fills.
type Position string

const (
	PositionGoalkeeper Position = "P"
	PositionDefender   Position = "D"
	PositionMidfielder Position = "C"
	PositionForward    Position = "A"
)

// Positions lists every position in display order.
var Positions = []Position{
	PositionGoalkeeper,
	PositionDefender,
	PositionMidfielder,
	PositionForward,
}

var AllPositions = map[Position]struct{}{
	PositionGoalkeeper: {},
	PositionDefender:   {},
	PositionMidfielder: {},
	PositionForward:    {},
}

func (p Position) Valid() bool {
	_, ok := AllPositions[p]
	return ok
}

// ParsePosition accepts the one-letter code in any case.
func ParsePosition(raw string) (Position, error) {
	p := Position(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid player position: %q", raw)
	}
	return p, nil
}

// PositionFromCode maps the feed role code (1..4) to a Position.
func PositionFromCode(code int) (Position, error) {
	switch code {
	case 1:
		return PositionGoalkeeper, nil
	case 2:
		return PositionDefender, nil
	case 3:
		return PositionMidfielder, nil
	case 4:
		return PositionForward, nil
	default:
		return "", fmt.Errorf("invalid position code: %d", code)
	}
}

// Player is a catalogue entry that can be auctioned onto a roster.
type Player struct {
	ID          string
	Name        string
	Team        string
	Position    Position
	MarketValue int64
	UpdatedAt   time.Time
}

func (p Player) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("player name is required")
	}
	if strings.TrimSpace(p.Team) == "" {
		return fmt.Errorf("player team is required")
	}
	if !p.Position.Valid() {
		return fmt.Errorf("invalid player position: %s", p.Position)
	}
	if p.MarketValue < 0 {
		return fmt.Errorf("player market value must not be negative")
	}

	return nil
}
