package app

import (
	"context"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

type sweeper interface {
	Sweep(ctx context.Context) (usecase.SweepResult, error)
}

// expiryScheduler settles expired auctions on a fixed interval inside the
// API process. An external scheduler can drive the same sweep through the
// internal jobs endpoint instead.
type expiryScheduler struct {
	sweeper  sweeper
	interval time.Duration
	logger   *logging.Logger
}

func newExpiryScheduler(s sweeper, interval time.Duration, logger *logging.Logger) *expiryScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &expiryScheduler{sweeper: s, interval: interval, logger: logger}
}

func (s *expiryScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *expiryScheduler) tick(ctx context.Context) {
	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WarnContext(ctx, "expiry sweep failed", "error", err)
		}
		return
	}
	if result.Expired == 0 {
		return
	}
	s.logger.InfoContext(ctx, "expiry sweep completed",
		"expired", result.Expired,
		"settled", result.Settled,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}
