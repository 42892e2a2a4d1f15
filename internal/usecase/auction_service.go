package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	idgen "github.com/riskibarqy/fantasy-auction/internal/platform/id"
	"github.com/riskibarqy/fantasy-auction/internal/platform/keylock"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
	"go.opentelemetry.io/otel/trace"
)

type StartAuctionInput struct {
	PlayerID        string
	BidAmount       int64
	UserID          string
	ReleasePlayerID string
}

type PlaceBidInput struct {
	AuctionID       string
	BidAmount       int64
	UserID          string
	ReleasePlayerID string
}

type UpdateReleaseInput struct {
	AuctionID       string
	UserID          string
	ReleasePlayerID string
}

type AuctionServiceConfig struct {
	Duration     time.Duration
	LockTimeout  time.Duration
	Retry        resilience.RetryPolicy
	Requirements roster.Requirements
}

func DefaultAuctionServiceConfig() AuctionServiceConfig {
	return AuctionServiceConfig{
		Duration:     auction.DefaultDuration,
		LockTimeout:  5 * time.Second,
		Retry:        resilience.DefaultRetryPolicy(),
		Requirements: roster.DefaultRequirements(),
	}
}

// AuctionService owns every auction state transition and is the only
// writer of auction rows. Each mutation holds per-key locks across
// validate, commit and publish, runs in one store transaction, and is
// retried when the store reports a concurrent change.
type AuctionService struct {
	store    market.Store
	registry *AuctionRegistry
	locker   *keylock.Locker
	idGen    idgen.Generator
	cfg      AuctionServiceConfig
	logger   *logging.Logger
	now      func() time.Time
}

func NewAuctionService(
	store market.Store,
	registry *AuctionRegistry,
	locker *keylock.Locker,
	idGen idgen.Generator,
	cfg AuctionServiceConfig,
	logger *logging.Logger,
) *AuctionService {
	if logger == nil {
		logger = logging.Default()
	}
	if locker == nil {
		locker = keylock.New()
	}
	defaults := DefaultAuctionServiceConfig()
	if cfg.Duration <= 0 {
		cfg.Duration = defaults.Duration
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.Requirements == nil {
		cfg.Requirements = defaults.Requirements
	}
	cfg.Retry = resilience.NormalizeRetryPolicy(cfg.Retry)

	return &AuctionService{
		store:    store,
		registry: registry,
		locker:   locker,
		idGen:    idGen,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *AuctionService) StartAuction(ctx context.Context, input StartAuctionInput) (auction.Auction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionService.StartAuction", userIDAttr(input.UserID))
	defer span.End()

	input.PlayerID = strings.TrimSpace(input.PlayerID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.ReleasePlayerID = strings.TrimSpace(input.ReleasePlayerID)
	if input.PlayerID == "" {
		return auction.Auction{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	if input.UserID == "" {
		return auction.Auction{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.BidAmount <= 0 {
		return auction.Auction{}, fmt.Errorf("%w: bid amount must be greater than zero", ErrInvalidInput)
	}

	keys := fixedKeys(playerKey(input.PlayerID), userKey(input.UserID))
	var started auction.Auction
	err := s.mutate(ctx, "start", keys, func(ctx context.Context, repos market.Repositories, now time.Time) ([]auction.Event, error) {
		validator := s.validator(repos, now)
		if _, err := validator.ValidateStart(ctx, input.PlayerID, input.BidAmount, input.UserID, input.ReleasePlayerID); err != nil {
			return nil, err
		}

		auctionID, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate auction id: %w", err)
		}
		started = auction.Auction{
			ID:              auctionID,
			PlayerID:        input.PlayerID,
			CurrentBid:      input.BidAmount,
			CurrentBidderID: input.UserID,
			StartedAt:       now,
			EndsAt:          now.Add(s.cfg.Duration),
			Status:          auction.StatusActive,
			ReleasePlayerID: input.ReleasePlayerID,
		}
		if err := repos.Auctions.Insert(ctx, started); err != nil {
			return nil, fmt.Errorf("insert auction: %w", err)
		}
		return []auction.Event{auction.Updated(started, now)}, nil
	})
	if err != nil {
		s.logOutcome(ctx, "start", err, "player_id", input.PlayerID, "user_id", input.UserID, "bid", input.BidAmount)
		return auction.Auction{}, err
	}

	s.logger.InfoContext(ctx, "auction started",
		"auction_id", started.ID,
		"player_id", started.PlayerID,
		"user_id", started.CurrentBidderID,
		"bid", started.CurrentBid,
		"ends_at", started.EndsAt,
	)
	return started, nil
}

func (s *AuctionService) PlaceBid(ctx context.Context, input PlaceBidInput) (auction.Auction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionService.PlaceBid", auctionIDAttr(input.AuctionID), userIDAttr(input.UserID))
	defer span.End()

	input.AuctionID = strings.TrimSpace(input.AuctionID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.ReleasePlayerID = strings.TrimSpace(input.ReleasePlayerID)
	if input.AuctionID == "" {
		return auction.Auction{}, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if input.UserID == "" {
		return auction.Auction{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.BidAmount <= 0 {
		return auction.Auction{}, fmt.Errorf("%w: bid amount must be greater than zero", ErrInvalidInput)
	}

	keys := fixedKeys(auctionKey(input.AuctionID), userKey(input.UserID))
	var updated auction.Auction
	err := s.mutate(ctx, "bid", keys, func(ctx context.Context, repos market.Repositories, now time.Time) ([]auction.Event, error) {
		current, err := s.validator(repos, now).ValidateBid(ctx, input.AuctionID, input.BidAmount, input.UserID, input.ReleasePlayerID)
		if err != nil {
			return nil, err
		}

		next := current
		next.CurrentBid = input.BidAmount
		next.CurrentBidderID = input.UserID
		next.ReleasePlayerID = input.ReleasePlayerID
		updated, err = repos.Auctions.Update(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("update auction bid: %w", err)
		}
		return []auction.Event{auction.Updated(updated, now)}, nil
	})
	if err != nil {
		s.logOutcome(ctx, "bid", err, "auction_id", input.AuctionID, "user_id", input.UserID, "bid", input.BidAmount)
		return auction.Auction{}, err
	}

	s.logger.InfoContext(ctx, "bid accepted",
		"auction_id", updated.ID,
		"player_id", updated.PlayerID,
		"user_id", updated.CurrentBidderID,
		"bid", updated.CurrentBid,
	)
	return updated, nil
}

func (s *AuctionService) UpdateReleasePromise(ctx context.Context, input UpdateReleaseInput) (auction.Auction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionService.UpdateReleasePromise", auctionIDAttr(input.AuctionID), userIDAttr(input.UserID))
	defer span.End()

	input.AuctionID = strings.TrimSpace(input.AuctionID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.ReleasePlayerID = strings.TrimSpace(input.ReleasePlayerID)
	if input.AuctionID == "" {
		return auction.Auction{}, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if input.UserID == "" {
		return auction.Auction{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	keys := fixedKeys(auctionKey(input.AuctionID), userKey(input.UserID))
	var updated auction.Auction
	err := s.mutate(ctx, "release", keys, func(ctx context.Context, repos market.Repositories, now time.Time) ([]auction.Event, error) {
		current, exists, err := repos.Auctions.GetByID(ctx, input.AuctionID)
		if err != nil {
			return nil, fmt.Errorf("get auction=%s: %w", input.AuctionID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: auction=%s", ErrNotFound, input.AuctionID)
		}
		if _, err := s.validator(repos, now).ValidateRelease(ctx, current, input.UserID, input.ReleasePlayerID); err != nil {
			return nil, err
		}
		if current.ReleasePlayerID == input.ReleasePlayerID {
			updated = current
			return nil, nil
		}

		next := current
		next.ReleasePlayerID = input.ReleasePlayerID
		updated, err = repos.Auctions.Update(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("update auction release: %w", err)
		}
		return []auction.Event{auction.Updated(updated, now)}, nil
	})
	if err != nil {
		s.logOutcome(ctx, "release", err, "auction_id", input.AuctionID, "user_id", input.UserID, "release_player_id", input.ReleasePlayerID)
		return auction.Auction{}, err
	}

	s.logger.InfoContext(ctx, "release promise updated",
		"auction_id", updated.ID,
		"user_id", input.UserID,
		"release_player_id", updated.ReleasePlayerID,
	)
	return updated, nil
}

// InvalidateAuction cancels an active auction without any budget or roster
// effect. Only admins may call it.
func (s *AuctionService) InvalidateAuction(ctx context.Context, actorID, auctionID string) (auction.Auction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionService.InvalidateAuction", auctionIDAttr(auctionID), userIDAttr(actorID))
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return auction.Auction{}, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}

	var cancelled auction.Auction
	err := s.mutate(ctx, "invalidate", fixedKeys(auctionKey(auctionID)), func(ctx context.Context, repos market.Repositories, now time.Time) ([]auction.Event, error) {
		if err := requireAdmin(ctx, repos, actorID); err != nil {
			return nil, err
		}

		current, exists, err := repos.Auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, fmt.Errorf("get auction=%s: %w", auctionID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: auction=%s", ErrNotFound, auctionID)
		}
		if !current.IsActive() {
			return nil, auction.Reject(auction.ErrAuctionEnded, "This auction has ended")
		}

		next, err := current.Close(auction.StatusCancelled, now)
		if err != nil {
			return nil, err
		}
		cancelled, err = repos.Auctions.Update(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("cancel auction: %w", err)
		}
		return []auction.Event{auction.Removed(cancelled, now)}, nil
	})
	if err != nil {
		s.logOutcome(ctx, "invalidate", err, "auction_id", auctionID, "actor_id", actorID)
		return auction.Auction{}, err
	}

	s.logger.InfoContext(ctx, "auction invalidated", "auction_id", cancelled.ID, "actor_id", actorID)
	return cancelled, nil
}

// EndAuction settles an auction: the winner pays the current bid, the
// pledged release leaves the roster and the auctioned player joins it, all
// in one transaction. Calling it on an auction that is no longer active is
// a no-op reported by settled=false.
func (s *AuctionService) EndAuction(ctx context.Context, auctionID string) (auction.Auction, bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuctionService.EndAuction", auctionIDAttr(auctionID))
	defer span.End()

	auctionID = strings.TrimSpace(auctionID)
	if auctionID == "" {
		return auction.Auction{}, false, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}

	var (
		result  auction.Auction
		settled bool
		leader  string
	)
	keys := func(ctx context.Context) ([]string, error) {
		current, exists, err := s.store.Repositories().Auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, fmt.Errorf("get auction=%s: %w", auctionID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: auction=%s", ErrNotFound, auctionID)
		}
		leader = current.CurrentBidderID
		return []string{auctionKey(auctionID), userKey(leader)}, nil
	}

	err := s.mutate(ctx, "end", keys, func(ctx context.Context, repos market.Repositories, now time.Time) ([]auction.Event, error) {
		settled = false
		current, exists, err := repos.Auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, fmt.Errorf("get auction=%s: %w", auctionID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: auction=%s", ErrNotFound, auctionID)
		}
		result = current
		if !current.IsActive() {
			return nil, nil
		}
		if current.CurrentBidderID != leader {
			return nil, auction.ErrVersionConflict
		}

		if err := repos.Users.AdjustBudget(ctx, current.CurrentBidderID, -current.CurrentBid); err != nil {
			return nil, fmt.Errorf("debit winner budget: %w", err)
		}
		if current.HasRelease() {
			if _, err := repos.Rosters.Remove(ctx, roster.Assignment{UserID: current.CurrentBidderID, PlayerID: current.ReleasePlayerID}); err != nil {
				return nil, fmt.Errorf("release pledged player: %w", err)
			}
		}
		if err := repos.Rosters.Add(ctx, roster.Assignment{UserID: current.CurrentBidderID, PlayerID: current.PlayerID}); err != nil {
			return nil, fmt.Errorf("assign won player: %w", err)
		}

		next, err := current.Close(auction.StatusCompleted, now)
		if err != nil {
			return nil, err
		}
		result, err = repos.Auctions.Update(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("complete auction: %w", err)
		}
		settled = true
		return []auction.Event{auction.Removed(result, now)}, nil
	})
	if err != nil {
		s.logOutcome(ctx, "end", err, "auction_id", auctionID)
		return auction.Auction{}, false, err
	}

	if settled {
		s.logger.InfoContext(ctx, "auction settled",
			"auction_id", result.ID,
			"player_id", result.PlayerID,
			"user_id", result.CurrentBidderID,
			"bid", result.CurrentBid,
			"release_player_id", result.ReleasePlayerID,
		)
	}
	return result, settled, nil
}

type mutation func(ctx context.Context, repos market.Repositories, now time.Time) ([]auction.Event, error)

// mutate runs apply under the locks named by keys inside one transaction,
// publishes the resulting events before releasing the locks, and retries
// the whole cycle on ErrVersionConflict.
func (s *AuctionService) mutate(ctx context.Context, op string, keys func(context.Context) ([]string, error), apply mutation) error {
	err := s.cfg.Retry.Do(ctx, isVersionConflict, func(attempt int) error {
		if attempt > 1 {
			s.logger.WarnContext(ctx, "auction state changed concurrently, retrying", "op", op, "attempt", attempt)
		}

		lockKeys, err := keys(ctx)
		if err != nil {
			return err
		}
		unlock, err := s.lock(ctx, lockKeys)
		if err != nil {
			return err
		}
		defer unlock()

		var events []auction.Event
		err = s.store.WithinTx(ctx, func(ctx context.Context, repos market.Repositories) error {
			evs, err := apply(ctx, repos, s.now().UTC())
			if err != nil {
				return err
			}
			events = evs
			return nil
		})
		if err != nil {
			return err
		}

		if s.registry != nil {
			s.registry.Publish(events...)
		}
		return nil
	})
	if isVersionConflict(err) {
		err = s.explainConflict(ctx, op, keys, apply, err)
	}
	recordSpanError(trace.SpanFromContext(ctx), err)
	return err
}

var errDryRun = errors.New("dry run")

// explainConflict replays apply once more in a transaction that is always
// rolled back. A request that is no longer valid gets its rejection; one
// that still validates gets ErrConflict.
func (s *AuctionService) explainConflict(ctx context.Context, op string, keys func(context.Context) ([]string, error), apply mutation, cause error) error {
	conflict := fmt.Errorf("%w: %s gave up after %d attempts: %v", ErrConflict, op, s.cfg.Retry.Attempts, cause)

	lockKeys, err := keys(ctx)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, lockKeys)
	if err != nil {
		return conflict
	}
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos market.Repositories) error {
		if _, err := apply(ctx, repos, s.now().UTC()); err != nil {
			return err
		}
		return errDryRun
	})
	if err == nil || errors.Is(err, errDryRun) || isVersionConflict(err) {
		return conflict
	}
	return err
}

func (s *AuctionService) lock(ctx context.Context, keys []string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, keys...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: timed out waiting for %s", ErrConflict, strings.Join(keys, ","))
	}
	return unlock, nil
}

func (s *AuctionService) validator(repos market.Repositories, now time.Time) BidValidator {
	return NewBidValidator(
		repos,
		NewBudgetLedger(repos),
		NewRosterConstraintChecker(repos, s.cfg.Requirements),
		now,
	)
}

func (s *AuctionService) logOutcome(ctx context.Context, op string, err error, args ...any) {
	args = append(args, "op", op, "error", err)
	switch {
	case errors.Is(err, auction.ErrRejected):
		s.logger.DebugContext(ctx, "auction request rejected", append(args, "reason", auction.Reason(err))...)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		s.logger.DebugContext(ctx, "auction request refused", args...)
	case errors.Is(err, ErrConflict):
		s.logger.WarnContext(ctx, "auction request conflicted", args...)
	default:
		s.logger.ErrorContext(ctx, "auction request failed", args...)
	}
}

func requireAdmin(ctx context.Context, repos market.Repositories, actorID string) error {
	if actorID == "" {
		return fmt.Errorf("%w: actor id is required", ErrForbidden)
	}
	actor, exists, err := repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("get actor=%s: %w", actorID, err)
	}
	if !exists || !actor.IsAdmin {
		return fmt.Errorf("%w: user=%s is not an admin", ErrForbidden, actorID)
	}
	return nil
}

func isVersionConflict(err error) bool {
	return errors.Is(err, auction.ErrVersionConflict)
}

func fixedKeys(keys ...string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		return keys, nil
	}
}

func auctionKey(id string) string { return "auction:" + id }
func playerKey(id string) string  { return "player:" + id }
func userKey(id string) string    { return "user:" + id }
