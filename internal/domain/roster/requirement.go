package roster

import (
	"fmt"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
)

// Requirements is the per-position slot cap shared by every team.
type Requirements map[player.Position]int

func DefaultRequirements() Requirements {
	return Requirements{
		player.PositionGoalkeeper: 3,
		player.PositionDefender:   8,
		player.PositionMidfielder: 8,
		player.PositionForward:    6,
	}
}

func (r Requirements) Slots(position player.Position) int {
	return r[position]
}

// Total is the full roster size.
func (r Requirements) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

func (r Requirements) Validate() error {
	for _, position := range player.Positions {
		n, ok := r[position]
		if !ok {
			return fmt.Errorf("missing slot count for position %s", position)
		}
		if n < 1 {
			return fmt.Errorf("slot count for position %s must be > 0", position)
		}
	}
	return nil
}
