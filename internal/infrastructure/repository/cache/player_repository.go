package cache

import (
	"context"
	"strings"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	basecache "github.com/riskibarqy/fantasy-auction/internal/platform/cache"
)

const playerKeyPrefix = "player:"

// PlayerRepository serves catalogue reads from a TTL cache. The catalogue
// only changes on import, which calls Invalidate.
type PlayerRepository struct {
	next  player.Repository
	cache *basecache.Store
}

var _ player.Repository = (*PlayerRepository)(nil)

func NewPlayerRepository(next player.Repository, cache *basecache.Store) *PlayerRepository {
	return &PlayerRepository{next: next, cache: cache}
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (player.Player, bool, error) {
	key := playerKeyPrefix + "id:" + playerID
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, playerID)
		if err != nil {
			return nil, err
		}
		return cachedPlayerByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return player.Player{}, false, err
	}

	cached, _ := v.(cachedPlayerByID)
	return cached.value, cached.exists, nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, playerIDs []string) ([]player.Player, error) {
	return r.next.GetByIDs(ctx, playerIDs)
}

func (r *PlayerRepository) List(ctx context.Context, filter player.ListFilter) ([]player.Player, error) {
	key := playerKeyPrefix + "list:" + strings.ToUpper(string(filter.Position))
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return append([]player.Player(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]player.Player)
	return append([]player.Player(nil), items...), nil
}

func (r *PlayerRepository) ReplaceAll(ctx context.Context, players []player.Player) (player.ReplaceStats, error) {
	stats, err := r.next.ReplaceAll(ctx, players)
	r.Invalidate(ctx)
	return stats, err
}

// Invalidate drops every cached catalogue entry.
func (r *PlayerRepository) Invalidate(ctx context.Context) {
	r.cache.DeletePrefix(ctx, playerKeyPrefix)
}

type cachedPlayerByID struct {
	value  player.Player
	exists bool
}
