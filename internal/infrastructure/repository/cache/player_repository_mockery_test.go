package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	playermock "github.com/riskibarqy/fantasy-auction/internal/mocks/domain/player"
	basecache "github.com/riskibarqy/fantasy-auction/internal/platform/cache"
	"github.com/stretchr/testify/mock"
)

func TestPlayerRepository_ReplaceAllInvalidatesUsingMockery(t *testing.T) {
	t.Parallel()

	keepers := []player.Player{
		{ID: "ply-p-01", Name: "Mike Maignan", Team: "Milan", Position: player.PositionGoalkeeper, MarketValue: 22},
	}
	refreshed := []player.Player{
		{ID: "ply-p-01", Name: "Mike Maignan", Team: "Milan", Position: player.PositionGoalkeeper, MarketValue: 24},
	}
	filter := player.ListFilter{Position: player.PositionGoalkeeper}

	next := playermock.NewRepository(t)
	next.On("List", mock.Anything, filter).Return(keepers, nil).Once()
	next.On("ReplaceAll", mock.Anything, refreshed).Return(player.ReplaceStats{Upserted: 1}, nil).Once()
	next.On("List", mock.Anything, filter).Return(refreshed, nil).Once()
	next.On("GetByIDs", mock.Anything, []string{"ply-p-01"}).Return(refreshed, nil).Twice()

	repo := NewPlayerRepository(next, basecache.NewStore(time.Minute))
	ctx := t.Context()

	for range 2 {
		items, err := repo.List(ctx, filter)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(items) != 1 || items[0].MarketValue != 22 {
			t.Fatalf("unexpected cached goalkeepers: %+v", items)
		}
	}

	stats, err := repo.ReplaceAll(ctx, refreshed)
	if err != nil || stats.Upserted != 1 {
		t.Fatalf("replace all: stats=%+v err=%v", stats, err)
	}

	items, err := repo.List(ctx, filter)
	if err != nil {
		t.Fatalf("list after refresh: %v", err)
	}
	if len(items) != 1 || items[0].MarketValue != 24 {
		t.Fatalf("expected refreshed value after replace, got %+v", items)
	}

	// batch lookups feed settlement and are never cached.
	for range 2 {
		if _, err := repo.GetByIDs(ctx, []string{"ply-p-01"}); err != nil {
			t.Fatalf("get by ids: %v", err)
		}
	}
}

func TestPlayerRepository_LoadErrorsAreNotCachedUsingMockery(t *testing.T) {
	t.Parallel()

	next := playermock.NewRepository(t)
	next.On("List", mock.Anything, player.ListFilter{}).Return(nil, errors.New("connection reset")).Once()
	next.On("List", mock.Anything, player.ListFilter{}).Return([]player.Player{
		{ID: "ply-a-01", Name: "Lautaro Martinez", Team: "Inter", Position: player.PositionForward, MarketValue: 38},
	}, nil).Once()

	repo := NewPlayerRepository(next, basecache.NewStore(time.Minute))

	if _, err := repo.List(t.Context(), player.ListFilter{}); err == nil {
		t.Fatalf("expected the load error to surface")
	}
	items, err := repo.List(t.Context(), player.ListFilter{})
	if err != nil {
		t.Fatalf("list after failure: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a fresh load after the failure, got %+v", items)
	}
	// third read is served from the cache.
	if _, err := repo.List(t.Context(), player.ListFilter{}); err != nil {
		t.Fatalf("cached list: %v", err)
	}
}
