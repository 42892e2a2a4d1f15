package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

const defaultSweepBatch = 200

type SweepResult struct {
	Expired int `json:"expired"`
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExpirySweeper settles every active auction whose window has closed. It
// is the scheduler side of expiry; the engine itself never ends auctions
// on its own.
type ExpirySweeper struct {
	store   market.Store
	engine  *AuctionService
	workers int
	batch   int
	logger  *logging.Logger
	now     func() time.Time
}

func NewExpirySweeper(store market.Store, engine *AuctionService, workers int, logger *logging.Logger) *ExpirySweeper {
	if logger == nil {
		logger = logging.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &ExpirySweeper{
		store:   store,
		engine:  engine,
		workers: workers,
		batch:   defaultSweepBatch,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ExpirySweeper.Sweep")
	defer span.End()

	expired, err := s.store.Repositories().Auctions.ListExpired(ctx, s.now().UTC(), s.batch)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list expired auctions: %w", err)
	}
	result := SweepResult{Expired: len(expired)}
	if len(expired) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return result, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		settled atomic.Int32
		skipped atomic.Int32
		failed  atomic.Int32
		workers sync.WaitGroup
	)
	for _, item := range expired {
		auctionID := item.ID
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			_, done, err := s.engine.EndAuction(ctx, auctionID)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.WarnContext(ctx, "settle expired auction failed", "auction_id", auctionID, "error", err)
			case done:
				settled.Add(1)
			default:
				skipped.Add(1)
			}
		}); err != nil {
			workers.Done()
			failed.Add(1)
			s.logger.ErrorContext(ctx, "submit settle task failed", "auction_id", auctionID, "error", err)
		}
	}
	workers.Wait()

	result.Settled = int(settled.Load())
	result.Skipped = int(skipped.Load())
	result.Failed = int(failed.Load())
	s.logger.InfoContext(ctx, "expiry sweep finished",
		"expired", result.Expired,
		"settled", result.Settled,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}
