package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

// Dataset is the full content of a Store, used for seeding.
type Dataset struct {
	Players  []player.Player
	Users    []user.User
	Rosters  []roster.Assignment
	Auctions []auction.Auction
}

type dataset struct {
	players map[string]player.Player
	users   map[string]user.User
	// owners maps player id to the user id whose roster holds it.
	owners   map[string]string
	auctions map[string]auction.Auction
}

// Store keeps the market in process memory. Transactions are serialized
// and rolled back through an undo log.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

var _ market.Store = (*Store)(nil)

func NewStore(seed Dataset) (*Store, error) {
	data := &dataset{
		players:  make(map[string]player.Player, len(seed.Players)),
		users:    make(map[string]user.User, len(seed.Users)),
		owners:   make(map[string]string, len(seed.Rosters)),
		auctions: make(map[string]auction.Auction, len(seed.Auctions)),
	}
	for _, p := range seed.Players {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("seed player %s: %w", p.ID, err)
		}
		data.players[p.ID] = p
	}
	for _, u := range seed.Users {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		data.users[u.ID] = u
	}
	for _, a := range seed.Rosters {
		if _, ok := data.players[a.PlayerID]; !ok {
			return nil, fmt.Errorf("seed roster: unknown player %s", a.PlayerID)
		}
		if _, ok := data.users[a.UserID]; !ok {
			return nil, fmt.Errorf("seed roster: unknown user %s", a.UserID)
		}
		if _, taken := data.owners[a.PlayerID]; taken {
			return nil, fmt.Errorf("seed roster: player %s: %w", a.PlayerID, roster.ErrAlreadyAssigned)
		}
		data.owners[a.PlayerID] = a.UserID
	}
	for _, a := range seed.Auctions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("seed auction %s: %w", a.ID, err)
		}
		data.auctions[a.ID] = a
	}

	return &Store{data: data}, nil
}

func (s *Store) Repositories() market.Repositories {
	return (&view{store: s}).repositories()
}

// WithinTx runs fn while holding the store exclusively. Writes are undone
// when fn returns an error or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos market.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &view{store: s, inTx: true}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(ctx, tx.repositories()); err != nil {
		return err
	}
	committed = true
	return nil
}

// view binds repositories either to a running transaction or to
// standalone locked access.
type view struct {
	store *Store
	inTx  bool
	undo  []func(d *dataset)
}

func (v *view) repositories() market.Repositories {
	return market.Repositories{
		Auctions: &AuctionRepository{v: v},
		Players:  &PlayerRepository{v: v},
		Rosters:  &RosterRepository{v: v},
		Users:    &UserRepository{v: v},
	}
}

func (v *view) read(fn func(d *dataset)) {
	if !v.inTx {
		v.store.mu.RLock()
		defer v.store.mu.RUnlock()
	}
	fn(v.store.data)
}

// write applies fn; fn registers the inverse of each change it makes.
func (v *view) write(fn func(d *dataset, record func(undo func(d *dataset))) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	record := func(undo func(d *dataset)) {
		if v.inTx {
			v.undo = append(v.undo, undo)
		}
	}
	return fn(v.store.data, record)
}

func (v *view) rollback() {
	for i := len(v.undo) - 1; i >= 0; i-- {
		v.undo[i](v.store.data)
	}
	v.undo = nil
}
