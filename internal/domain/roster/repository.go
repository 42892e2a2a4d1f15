package roster

import (
	"context"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
)

type Repository interface {
	// OwnerOf returns the assignment holding playerID, if any.
	OwnerOf(ctx context.Context, playerID string) (Assignment, bool, error)
	// ListPlayers returns the catalogue entries on a user's roster ordered
	// by position then name.
	ListPlayers(ctx context.Context, userID string) ([]player.Player, error)
	// ListAssignments returns every roster assignment ordered by player id.
	ListAssignments(ctx context.Context) ([]Assignment, error)
	CountByPosition(ctx context.Context, userID string, position player.Position) (int, error)
	// Add fails with ErrAlreadyAssigned when the player sits on any roster.
	Add(ctx context.Context, a Assignment) error
	Remove(ctx context.Context, a Assignment) (bool, error)
	ReplaceForUser(ctx context.Context, userID string, playerIDs []string) error
}
