package player

import "context"

// ListFilter narrows catalogue listings. Zero value lists everything.
type ListFilter struct {
	Position Position
}

// ReplaceStats summarizes a full catalogue refresh.
type ReplaceStats struct {
	Upserted int
	Deleted  int
	// Retained counts players missing from the feed that were kept because
	// a roster or an auction still references them.
	Retained int
}

type Repository interface {
	GetByID(ctx context.Context, playerID string) (Player, bool, error)
	GetByIDs(ctx context.Context, playerIDs []string) ([]Player, error)
	// List orders by position, then market value descending, then name.
	List(ctx context.Context, filter ListFilter) ([]Player, error)
	ReplaceAll(ctx context.Context, players []Player) (ReplaceStats, error)
}
