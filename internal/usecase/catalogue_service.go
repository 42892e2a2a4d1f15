package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/fantasy-auction/internal/domain/market"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/platform/keylock"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

// ImportError collects every problem found in a feed. It matches
// ErrInvalidInput.
type ImportError struct {
	Message string
	Details []string
}

func (e *ImportError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

func (e *ImportError) Unwrap() error {
	return ErrInvalidInput
}

type ImportResult struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
	Deleted  int    `json:"deleted,omitempty"`
	Retained int    `json:"retained,omitempty"`
}

// CatalogueInvalidator drops cached catalogue reads after a refresh.
type CatalogueInvalidator interface {
	Invalidate(ctx context.Context)
}

type CatalogueService struct {
	store        market.Store
	players      player.Repository
	invalidator  CatalogueInvalidator
	locker       *keylock.Locker
	requirements roster.Requirements
	validate     *validator.Validate
	logger       *logging.Logger
	now          func() time.Time
}

// NewCatalogueService reads the catalogue through players, which may be a
// cached view of the store. invalidator may be nil.
func NewCatalogueService(
	store market.Store,
	players player.Repository,
	invalidator CatalogueInvalidator,
	locker *keylock.Locker,
	requirements roster.Requirements,
	logger *logging.Logger,
) *CatalogueService {
	if logger == nil {
		logger = logging.Default()
	}
	if players == nil {
		players = store.Repositories().Players
	}
	if locker == nil {
		locker = keylock.New()
	}
	if requirements == nil {
		requirements = roster.DefaultRequirements()
	}
	return &CatalogueService{
		store:        store,
		players:      players,
		invalidator:  invalidator,
		locker:       locker,
		requirements: requirements,
		validate:     validator.New(),
		logger:       logger,
		now:          time.Now,
	}
}

// CatalogueEntry is a listed player. AssignedTeam is the team name of the
// owner and is only filled for admins.
type CatalogueEntry struct {
	player.Player
	AssignedTeam string
}

// ListPlayers returns the catalogue by position, most valuable first. An
// empty position lists every player. Names ending in "*" are withdrawn and
// never listed. Viewers other than admins, anonymous ones included, only
// see free agents.
func (s *CatalogueService) ListPlayers(ctx context.Context, viewerID, position string) ([]CatalogueEntry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogueService.ListPlayers", userIDAttr(viewerID))
	defer span.End()

	filter := player.ListFilter{}
	if strings.TrimSpace(position) != "" {
		parsed, err := player.ParsePosition(position)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		filter.Position = parsed
	}

	repos := s.store.Repositories()
	admin := false
	if viewerID != "" {
		viewer, ok, err := repos.Users.GetByID(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("get viewer=%s: %w", viewerID, err)
		}
		admin = ok && viewer.IsAdmin
	}

	items, err := s.players.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	assignments, err := repos.Rosters.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster assignments: %w", err)
	}
	owners := make(map[string]string, len(assignments))
	for _, a := range assignments {
		owners[a.PlayerID] = a.UserID
	}

	var teams map[string]string
	if admin {
		users, err := repos.Users.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		teams = make(map[string]string, len(users))
		for _, u := range users {
			teams[u.ID] = u.TeamName
		}
	}

	out := make([]CatalogueEntry, 0, len(items))
	for _, p := range items {
		if strings.HasSuffix(p.Name, "*") {
			continue
		}
		owner, owned := owners[p.ID]
		if !admin {
			if owned {
				continue
			}
			out = append(out, CatalogueEntry{Player: p})
			continue
		}
		out = append(out, CatalogueEntry{Player: p, AssignedTeam: teams[owner]})
	}
	return out, nil
}

type playerFeedRecord struct {
	ID       *int64   `json:"id" validate:"required,gt=0"`
	Name     string   `json:"name" validate:"required"`
	TeamName string   `json:"tname" validate:"required"`
	Role     int      `json:"fcrle" validate:"required,oneof=1 2 3 4"`
	Value    *float64 `json:"acsfc" validate:"required,gte=0"`
}

var playerFieldMessages = map[string]string{
	"ID":       "Missing or invalid id (must be a number)",
	"Name":     "Missing or invalid name (must be a string)",
	"TeamName": "Missing or invalid team name (tname must be a string)",
	"Role":     "Missing or invalid position code (fcrle must be 1, 2, 3, or 4)",
	"Value":    "Missing or invalid market value (acsfc must be a number)",
}

// ImportPlayers replaces the catalogue with a feed export. Players missing
// from the feed are deleted unless a roster or an auction references them.
func (s *CatalogueService) ImportPlayers(ctx context.Context, raw []byte) (ImportResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogueService.ImportPlayers")
	defer span.End()

	items, err := decodeFeedArray(raw, true)
	if err != nil {
		return ImportResult{}, err
	}
	if len(items) == 0 {
		return ImportResult{}, &ImportError{Message: "The player list is empty."}
	}

	now := s.now().UTC()
	players := make([]player.Player, 0, len(items))
	seen := make(map[string]int, len(items))
	var details []string
	for i, item := range items {
		p, problems := s.parsePlayer(item, now)
		if len(problems) == 0 {
			if first, dup := seen[p.ID]; dup {
				problems = append(problems, fmt.Sprintf("Duplicate id %s (first seen at player %d)", p.ID, first))
			} else {
				seen[p.ID] = i + 1
			}
		}
		if len(problems) > 0 {
			details = append(details, fmt.Sprintf("Player %d: %s", i+1, strings.Join(problems, ", ")))
			continue
		}
		players = append(players, p)
	}
	if len(details) > 0 {
		return ImportResult{}, &ImportError{Message: "Validation errors occurred", Details: details}
	}

	var stats player.ReplaceStats
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos market.Repositories) error {
		if problems, err := s.checkPositionChanges(ctx, repos, players); err != nil {
			return err
		} else if len(problems) > 0 {
			return &ImportError{Message: "Validation errors occurred", Details: problems}
		}
		var err error
		stats, err = repos.Players.ReplaceAll(ctx, players)
		return err
	})
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	if err != nil {
		var importErr *ImportError
		if errors.As(err, &importErr) {
			return ImportResult{}, err
		}
		return ImportResult{}, fmt.Errorf("replace players: %w", err)
	}

	s.logger.InfoContext(ctx, "player catalogue imported",
		"upserted", stats.Upserted,
		"deleted", stats.Deleted,
		"retained", stats.Retained,
	)
	return ImportResult{
		Message:  fmt.Sprintf("Successfully updated %d players", stats.Upserted),
		Imported: stats.Upserted,
		Deleted:  stats.Deleted,
		Retained: stats.Retained,
	}, nil
}

// checkPositionChanges rejects reclassifications that an open auction or a
// roster cap depends on. Auction subjects and pledged releases keep their
// position, and no team may end up above a position limit.
func (s *CatalogueService) checkPositionChanges(ctx context.Context, repos market.Repositories, players []player.Player) ([]string, error) {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	stored, err := repos.Players.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get stored players: %w", err)
	}
	previous := make(map[string]player.Position, len(stored))
	for _, p := range stored {
		previous[p.ID] = p.Position
	}

	moved := make(map[string]player.Position)
	for _, p := range players {
		if old, ok := previous[p.ID]; ok && old != p.Position {
			moved[p.ID] = p.Position
		}
	}
	if len(moved) == 0 {
		return nil, nil
	}

	active, err := repos.Auctions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	subjects := make(map[string]string, len(active))
	releases := make(map[string]string, len(active))
	for _, a := range active {
		subjects[a.PlayerID] = a.ID
		if a.HasRelease() {
			releases[a.ReleasePlayerID] = a.ID
		}
	}

	var problems []string
	owners := make(map[string][]int)
	for i, p := range players {
		if _, ok := moved[p.ID]; !ok {
			continue
		}
		label := fmt.Sprintf("Player %d", i+1)
		if auctionID, busy := subjects[p.ID]; busy {
			problems = append(problems, fmt.Sprintf("%s: position of %s cannot change while auction %s is active", label, p.ID, auctionID))
			continue
		}
		if auctionID, pledged := releases[p.ID]; pledged {
			problems = append(problems, fmt.Sprintf("%s: position of %s cannot change while it is promised for release in auction %s", label, p.ID, auctionID))
			continue
		}
		owner, owned, err := repos.Rosters.OwnerOf(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("get owner of player=%s: %w", p.ID, err)
		}
		if owned {
			owners[owner.UserID] = append(owners[owner.UserID], i)
		}
	}

	userIDs := make([]string, 0, len(owners))
	for userID := range owners {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	for _, userID := range userIDs {
		rostered, err := repos.Rosters.ListPlayers(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list roster of user=%s: %w", userID, err)
		}
		counts := make(map[player.Position]int, len(player.Positions))
		for _, p := range rostered {
			if next, ok := moved[p.ID]; ok {
				counts[next]++
				continue
			}
			counts[p.Position]++
		}
		for _, i := range owners[userID] {
			p := players[i]
			if limit := s.requirements.Slots(p.Position); counts[p.Position] > limit {
				problems = append(problems, fmt.Sprintf("Player %d: moving %s to %s puts user %s at %d %s players, above the limit of %d",
					i+1, p.ID, p.Position, userID, counts[p.Position], p.Position, limit))
			}
		}
	}
	return problems, nil
}

func (s *CatalogueService) parsePlayer(item []byte, now time.Time) (player.Player, []string) {
	var rec playerFeedRecord
	if err := sonic.Unmarshal(item, &rec); err != nil {
		return player.Player{}, []string{"Invalid record: " + err.Error()}
	}
	if problems := validationProblems(s.validate.Struct(rec), playerFieldMessages); len(problems) > 0 {
		return player.Player{}, problems
	}

	position, err := player.PositionFromCode(rec.Role)
	if err != nil {
		return player.Player{}, []string{err.Error()}
	}
	return player.Player{
		ID:          strconv.FormatInt(*rec.ID, 10),
		Name:        strings.TrimSpace(rec.Name),
		Team:        strings.TrimSpace(rec.TeamName),
		Position:    position,
		MarketValue: int64(math.Round(*rec.Value)),
		UpdatedAt:   now,
	}, nil
}

// feedID accepts a JSON number or string.
type feedID string

func (id *feedID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = feedID(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
		return fmt.Errorf("id must be an integer or a string")
	}
	*id = feedID(data)
	return nil
}

type rosterFeedRecord struct {
	ID       feedID `json:"id" validate:"required"`
	TeamName string `json:"n" validate:"required"`
	Manager  string `json:"nu"`
	Players  string `json:"cal" validate:"required"`
	Credits  *int64 `json:"cr" validate:"required,gte=0"`
}

var rosterFieldMessages = map[string]string{
	"ID":       "Missing or invalid id (must be a number)",
	"TeamName": "Missing or invalid team name (n must be a string)",
	"Players":  "Missing or invalid roster list (cal must be a string)",
	"Credits":  "Missing or invalid remaining credits (cr must be a number)",
}

type rosterImport struct {
	label     string
	userID    string
	teamName  string
	manager   string
	credits   int64
	playerIDs []string
}

// ImportRosters replaces the rosters and remaining credits of the listed
// teams in one transaction.
func (s *CatalogueService) ImportRosters(ctx context.Context, raw []byte) (ImportResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogueService.ImportRosters")
	defer span.End()

	items, err := decodeFeedArray(raw, false)
	if err != nil {
		return ImportResult{}, err
	}
	if len(items) == 0 {
		return ImportResult{}, &ImportError{Message: "No rosters found in the input data."}
	}

	imports, details := s.parseRosters(items)
	if len(details) > 0 {
		return ImportResult{}, &ImportError{Message: "Validation errors occurred", Details: details}
	}

	keys := make([]string, 0, len(imports)*2)
	for _, imp := range imports {
		keys = append(keys, userKey(imp.userID))
		for _, playerID := range imp.playerIDs {
			keys = append(keys, playerKey(playerID))
		}
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return ImportResult{}, fmt.Errorf("lock roster import: %w", err)
	}
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos market.Repositories) error {
		if problems, err := s.checkRosterImports(ctx, repos, imports); err != nil {
			return err
		} else if len(problems) > 0 {
			return &ImportError{Message: "Validation errors occurred", Details: problems}
		}

		// Players may move between imported teams, so every roster is
		// cleared before any is filled.
		for _, imp := range imports {
			if err := repos.Rosters.ReplaceForUser(ctx, imp.userID, nil); err != nil {
				return fmt.Errorf("clear roster of user=%s: %w", imp.userID, err)
			}
		}
		for _, imp := range imports {
			u, _, err := repos.Users.GetByID(ctx, imp.userID)
			if err != nil {
				return fmt.Errorf("get user=%s: %w", imp.userID, err)
			}
			u.TeamName = imp.teamName
			if imp.manager != "" {
				u.Name = imp.manager
			}
			u.Budget = imp.credits
			if err := repos.Users.Upsert(ctx, u); err != nil {
				return fmt.Errorf("update user=%s: %w", imp.userID, err)
			}
			if err := repos.Rosters.ReplaceForUser(ctx, imp.userID, imp.playerIDs); err != nil {
				return fmt.Errorf("replace roster of user=%s: %w", imp.userID, err)
			}
		}
		return nil
	})
	if err != nil {
		var importErr *ImportError
		if !errors.As(err, &importErr) {
			s.logger.ErrorContext(ctx, "roster import failed", "error", err)
		}
		return ImportResult{}, err
	}

	s.logger.InfoContext(ctx, "rosters imported", "teams", len(imports))
	suffix := ""
	if len(imports) > 1 {
		suffix = "s"
	}
	return ImportResult{
		Message:  fmt.Sprintf("Successfully updated %d team roster%s", len(imports), suffix),
		Imported: len(imports),
	}, nil
}

func (s *CatalogueService) parseRosters(items [][]byte) ([]rosterImport, []string) {
	var (
		out     = make([]rosterImport, 0, len(items))
		details []string
		owners  = make(map[string]string)
		users   = make(map[string]struct{})
	)
	for i, item := range items {
		label := fmt.Sprintf("Team %d", i+1)
		var rec rosterFeedRecord
		if err := sonic.Unmarshal(item, &rec); err != nil {
			details = append(details, fmt.Sprintf("%s: Invalid record: %v", label, err))
			continue
		}
		if rec.TeamName != "" {
			label = rec.TeamName
		}
		if problems := validationProblems(s.validate.Struct(rec), rosterFieldMessages); len(problems) > 0 {
			details = append(details, fmt.Sprintf("%s: %s", label, strings.Join(problems, ", ")))
			continue
		}

		imp := rosterImport{
			label:    label,
			userID:   string(rec.ID),
			teamName: strings.TrimSpace(rec.TeamName),
			manager:  strings.TrimSpace(rec.Manager),
			credits:  *rec.Credits,
		}
		if _, dup := users[imp.userID]; dup {
			details = append(details, fmt.Sprintf("%s: team %s is listed more than once", label, imp.userID))
			continue
		}
		users[imp.userID] = struct{}{}

		for _, raw := range strings.Split(rec.Players, ";") {
			playerID := strings.TrimSpace(raw)
			if playerID == "" {
				continue
			}
			if other, taken := owners[playerID]; taken {
				details = append(details, fmt.Sprintf("%s: player %s is also listed for %s", label, playerID, other))
				continue
			}
			owners[playerID] = label
			imp.playerIDs = append(imp.playerIDs, playerID)
		}
		out = append(out, imp)
	}
	return out, details
}

// checkRosterImports validates imports against the stored market. Every
// problem is collected before returning.
func (s *CatalogueService) checkRosterImports(ctx context.Context, repos market.Repositories, imports []rosterImport) ([]string, error) {
	importing := make(map[string]struct{}, len(imports))
	for _, imp := range imports {
		importing[imp.userID] = struct{}{}
	}

	var problems []string
	var missingPlayers []string
	ledger := NewBudgetLedger(repos)
	for _, imp := range imports {
		if _, exists, err := repos.Users.GetByID(ctx, imp.userID); err != nil {
			return nil, fmt.Errorf("get user=%s: %w", imp.userID, err)
		} else if !exists {
			problems = append(problems, fmt.Sprintf("%s: user %s does not exist", imp.label, imp.userID))
			continue
		}

		players, err := repos.Players.GetByIDs(ctx, imp.playerIDs)
		if err != nil {
			return nil, fmt.Errorf("get players for user=%s: %w", imp.userID, err)
		}
		known := make(map[string]player.Player, len(players))
		for _, p := range players {
			known[p.ID] = p
		}

		counts := make(map[player.Position]int, len(player.Positions))
		rostered := make(map[string]struct{}, len(imp.playerIDs))
		for _, playerID := range imp.playerIDs {
			p, ok := known[playerID]
			if !ok {
				missingPlayers = append(missingPlayers, playerID)
				continue
			}
			counts[p.Position]++
			rostered[playerID] = struct{}{}

			owner, owned, err := repos.Rosters.OwnerOf(ctx, playerID)
			if err != nil {
				return nil, fmt.Errorf("get owner of player=%s: %w", playerID, err)
			}
			if _, reassigned := importing[owner.UserID]; owned && owner.UserID != imp.userID && !reassigned {
				problems = append(problems, fmt.Sprintf("%s: player %s is on the roster of user %s", imp.label, playerID, owner.UserID))
			}
			if _, busy, err := repos.Auctions.GetActiveByPlayer(ctx, playerID); err != nil {
				return nil, fmt.Errorf("get active auction for player=%s: %w", playerID, err)
			} else if busy {
				problems = append(problems, fmt.Sprintf("%s: player %s is in an active auction", imp.label, playerID))
			}
		}
		for _, position := range player.Positions {
			if counts[position] > s.requirements.Slots(position) {
				problems = append(problems, fmt.Sprintf("%s: %d %s players exceed the limit of %d", imp.label, counts[position], position, s.requirements.Slots(position)))
			}
		}

		led, err := repos.Auctions.ListActiveByBidder(ctx, imp.userID)
		if err != nil {
			return nil, fmt.Errorf("list auctions led by user=%s: %w", imp.userID, err)
		}
		for _, a := range led {
			if _, kept := rostered[a.ReleasePlayerID]; a.HasRelease() && !kept {
				problems = append(problems, fmt.Sprintf("%s: player %s is promised for release in auction %s", imp.label, a.ReleasePlayerID, a.ID))
			}
		}
		committed, err := ledger.CommittedBudget(ctx, imp.userID)
		if err != nil {
			return nil, err
		}
		if imp.credits < committed {
			problems = append(problems, fmt.Sprintf("%s: remaining credits %d are below active bids of %d", imp.label, imp.credits, committed))
		}
	}

	if len(missingPlayers) > 0 {
		sort.Strings(missingPlayers)
		problems = append(problems, "Some players do not exist in the database: "+strings.Join(missingPlayers, ", "))
	}
	return problems, nil
}

// decodeFeedArray splits a JSON array into raw records. When arrayOnly is
// false a single object is accepted as a one-record feed.
func decodeFeedArray(raw []byte, arrayOnly bool) ([][]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !sonic.Valid(raw) {
		return nil, &ImportError{Message: "Invalid JSON format. Please check your input."}
	}

	if raw[0] != '[' {
		if arrayOnly || raw[0] != '{' {
			return nil, &ImportError{Message: "Invalid format. Expected an array of players."}
		}
		return [][]byte{raw}, nil
	}

	var items []sonic.NoCopyRawMessage
	if err := sonic.Unmarshal(raw, &items); err != nil {
		return nil, &ImportError{Message: "Invalid JSON format. Please check your input."}
	}
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		out = append(out, []byte(item))
	}
	return out, nil
}

func validationProblems(err error, messages map[string]string) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if msg, ok := messages[fe.StructField()]; ok {
			out = append(out, msg)
			continue
		}
		out = append(out, fmt.Sprintf("invalid %s", fe.Field()))
	}
	return out
}
