package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	"github.com/riskibarqy/fantasy-auction/internal/platform/keylock"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/sourcegraph/conc/pool"
)

type PositionStatus struct {
	Position player.Position
	Count    int
	Required int
}

type BudgetStatus struct {
	UserID          string
	TeamName        string
	Budget          int64
	ActiveBids      int64
	Available       int64
	Roster          []player.Player
	Positions       []PositionStatus
	LeadingAuctions []auction.Auction
}

// RecentActivityLimit caps the activity feed.
const RecentActivityLimit = 5

type ActivityType string

const (
	ActivityBid  ActivityType = "bid"
	ActivityWin  ActivityType = "win"
	ActivityLose ActivityType = "lose"
)

// Activity is one auction the user led, newest first in a feed.
type Activity struct {
	AuctionID  string
	PlayerID   string
	PlayerName string
	Amount     int64
	Timestamp  time.Time
	Type       ActivityType
}

func activityType(a auction.Auction, userID string) ActivityType {
	leader := a.CurrentBidderID == userID
	switch {
	case leader && a.IsActive():
		return ActivityBid
	case leader && a.Status == auction.StatusCompleted:
		return ActivityWin
	default:
		return ActivityLose
	}
}

type TeamService struct {
	store        market.Store
	locker       *keylock.Locker
	requirements roster.Requirements
	logger       *logging.Logger
}

// NewTeamService shares locker with the auction engine so budget edits
// serialize with bids from the same user.
func NewTeamService(store market.Store, locker *keylock.Locker, requirements roster.Requirements, logger *logging.Logger) *TeamService {
	if logger == nil {
		logger = logging.Default()
	}
	if locker == nil {
		locker = keylock.New()
	}
	if requirements == nil {
		requirements = roster.DefaultRequirements()
	}
	return &TeamService{
		store:        store,
		locker:       locker,
		requirements: requirements,
		logger:       logger,
	}
}

func (s *TeamService) BudgetStatus(ctx context.Context, userID string) (BudgetStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TeamService.BudgetStatus", userIDAttr(userID))
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return BudgetStatus{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	repos := s.store.Repositories()
	u, exists, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("get user=%s: %w", userID, err)
	}
	if !exists {
		return BudgetStatus{}, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}

	var (
		players []player.Player
		led     []auction.Auction
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		items, err := repos.Rosters.ListPlayers(ctx, userID)
		if err != nil {
			return fmt.Errorf("list roster user=%s: %w", userID, err)
		}
		players = items
		return nil
	})
	p.Go(func(ctx context.Context) error {
		items, err := repos.Auctions.ListActiveByBidder(ctx, userID)
		if err != nil {
			return fmt.Errorf("list auctions led by user=%s: %w", userID, err)
		}
		led = items
		return nil
	})
	if err := p.Wait(); err != nil {
		return BudgetStatus{}, err
	}

	var committed int64
	for _, a := range led {
		committed += a.CurrentBid
	}
	counts := make(map[player.Position]int, len(player.Positions))
	for _, item := range players {
		counts[item.Position]++
	}
	positions := make([]PositionStatus, 0, len(player.Positions))
	for _, position := range player.Positions {
		positions = append(positions, PositionStatus{
			Position: position,
			Count:    counts[position],
			Required: s.requirements.Slots(position),
		})
	}

	return BudgetStatus{
		UserID:          u.ID,
		TeamName:        u.TeamName,
		Budget:          u.Budget,
		ActiveBids:      committed,
		Available:       u.Budget - committed,
		Roster:          players,
		Positions:       positions,
		LeadingAuctions: led,
	}, nil
}

func (s *TeamService) ReleaseOptions(ctx context.Context, userID, position, excludingAuctionID string) ([]player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TeamService.ReleaseOptions")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	parsed, err := player.ParsePosition(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	repos := s.store.Repositories()
	checker := NewRosterConstraintChecker(repos, s.requirements)
	return checker.EligibleReleaseCandidates(ctx, userID, parsed, strings.TrimSpace(excludingAuctionID))
}

// RecentActivity lists the last auctions userID led, by start time.
func (s *TeamService) RecentActivity(ctx context.Context, userID string) ([]Activity, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TeamService.RecentActivity", userIDAttr(userID))
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	repos := s.store.Repositories()
	led, err := repos.Auctions.ListRecentByBidder(ctx, userID, RecentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent auctions of user=%s: %w", userID, err)
	}
	playerIDs := make([]string, 0, len(led))
	for _, a := range led {
		playerIDs = append(playerIDs, a.PlayerID)
	}
	players, err := repos.Players.GetByIDs(ctx, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("get auctioned players: %w", err)
	}
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	out := make([]Activity, 0, len(led))
	for _, a := range led {
		out = append(out, Activity{
			AuctionID:  a.ID,
			PlayerID:   a.PlayerID,
			PlayerName: names[a.PlayerID],
			Amount:     a.CurrentBid,
			Timestamp:  a.StartedAt,
			Type:       activityType(a, userID),
		})
	}
	return out, nil
}

// UpsertTeam registers or updates a team. A zero budget keeps the stored
// budget of an existing team and means the default for a new one.
func (s *TeamService) UpsertTeam(ctx context.Context, actorID string, input user.User) (user.User, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TeamService.UpsertTeam")
	defer span.End()

	input.ID = strings.TrimSpace(input.ID)
	input.TeamName = strings.TrimSpace(input.TeamName)
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if input.ID == "" {
		return user.User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if input.Budget < 0 {
		return user.User{}, fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
	}

	unlock, err := s.locker.Lock(ctx, userKey(input.ID))
	if err != nil {
		return user.User{}, err
	}
	defer unlock()

	var saved user.User
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos market.Repositories) error {
		if err := requireAdmin(ctx, repos, strings.TrimSpace(actorID)); err != nil {
			return err
		}

		existing, exists, err := repos.Users.GetByID(ctx, input.ID)
		if err != nil {
			return fmt.Errorf("get user=%s: %w", input.ID, err)
		}
		next := input
		if exists {
			next.IsAdmin = existing.IsAdmin
			if next.Budget == 0 {
				next.Budget = existing.Budget
			}
			if next.Email == "" {
				next.Email = existing.Email
			}
			if next.Name == "" {
				next.Name = existing.Name
			}
			if next.TeamName == "" {
				next.TeamName = existing.TeamName
			}
		} else if next.Budget == 0 {
			next.Budget = user.DefaultBudget
		}
		if err := next.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		committed, err := NewBudgetLedger(repos).CommittedBudget(ctx, next.ID)
		if err != nil {
			return err
		}
		if next.Budget < committed {
			return fmt.Errorf("%w: budget %d is below active bids of %d", ErrInvalidInput, next.Budget, committed)
		}

		if err := repos.Users.Upsert(ctx, next); err != nil {
			return fmt.Errorf("upsert user=%s: %w", next.ID, err)
		}
		saved = next
		return nil
	})
	if err != nil {
		return user.User{}, err
	}

	s.logger.InfoContext(ctx, "team saved", "user_id", saved.ID, "team_name", saved.TeamName, "budget", saved.Budget, "actor_id", actorID)
	return saved, nil
}

// EnsureAdmin makes sure userID exists and is an admin. It is run once at
// startup for the bootstrap account.
func (s *TeamService) EnsureAdmin(ctx context.Context, userID, email string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: admin id is required", ErrInvalidInput)
	}

	return s.store.WithinTx(ctx, func(ctx context.Context, repos market.Repositories) error {
		existing, exists, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user=%s: %w", userID, err)
		}
		if exists && existing.IsAdmin {
			return nil
		}

		next := existing
		if !exists {
			next = user.User{
				ID:       userID,
				Email:    strings.TrimSpace(email),
				Name:     "Admin",
				TeamName: "Admin",
				Budget:   user.DefaultBudget,
			}
		}
		next.IsAdmin = true
		if err := repos.Users.Upsert(ctx, next); err != nil {
			return fmt.Errorf("upsert admin=%s: %w", userID, err)
		}
		s.logger.InfoContext(ctx, "bootstrap admin ensured", "user_id", userID, "created", !exists)
		return nil
	})
}

func (s *TeamService) RequireAdmin(ctx context.Context, userID string) error {
	return requireAdmin(ctx, s.store.Repositories(), strings.TrimSpace(userID))
}
