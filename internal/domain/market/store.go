package market

import (
	"context"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

// Repositories is the set of ports one unit of work reads and writes.
type Repositories struct {
	Auctions auction.Repository
	Players  player.Repository
	Rosters  roster.Repository
	Users    user.Repository
}

// Store is the explicit storage handle of one auction market.
type Store interface {
	// Repositories returns ports for reads outside a transaction.
	Repositories() Repositories
	// WithinTx runs fn atomically. Every write made through the
	// repositories passed to fn is discarded when fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
