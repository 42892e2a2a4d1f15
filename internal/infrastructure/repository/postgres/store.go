package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
)

// Store runs every unit of work in a SERIALIZABLE transaction. Rows read
// inside a transaction are locked with FOR UPDATE.
type Store struct {
	db *sqlx.DB
}

var _ market.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repositories() market.Repositories {
	return repositories(s.db, false)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos market.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin market tx: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, repositories(tx, true)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit market tx: %w", classify(err))
	}
	return nil
}

func repositories(q querier, locking bool) market.Repositories {
	return market.Repositories{
		Auctions: &AuctionRepository{q: q, locking: locking},
		Players:  &PlayerRepository{q: q},
		Rosters:  &RosterRepository{q: q},
		Users:    &UserRepository{q: q, locking: locking},
	}
}
