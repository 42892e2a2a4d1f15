package usecase

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/memory"
	basecache "github.com/riskibarqy/fantasy-auction/internal/platform/cache"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

func newCatalogue(m testMarket) *CatalogueService {
	cached := cache.NewPlayerRepository(m.store.Repositories().Players, basecache.NewStore(time.Minute))
	svc := NewCatalogueService(m.store, cached, cached, m.locker, nil, logging.NewNop())
	svc.now = func() time.Time { return marketNow }
	return svc
}

func TestCatalogueService_ImportPlayers_ReplacesAndKeepsReferenced(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := newCatalogue(m)
	m.start(t, memory.SeedUserA, "ply-d-02", 30, "")

	before, err := svc.ListPlayers(t.Context(), "", "d")
	if err != nil {
		t.Fatalf("list defenders: %v", err)
	}
	if len(before) != 4 {
		t.Fatalf("expected 4 free defenders, got %d", len(before))
	}

	feed := `[
		{"id": 101, "name": "Mile Svilar", "tname": "Roma", "fcrle": 1, "acsfc": 14.6},
		{"id": 102, "name": "Alessandro Buongiorno", "tname": "Napoli", "fcrle": 2, "acsfc": 18},
		{"id": 103, "name": "Mateo Retegui", "tname": "Atalanta", "fcrle": 4, "acsfc": 35}
	]`
	result, err := svc.ImportPlayers(t.Context(), []byte(feed))
	if err != nil {
		t.Fatalf("import players: %v", err)
	}
	if result.Imported != 3 || result.Retained != 5 || result.Deleted != 14 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Message != "Successfully updated 3 players" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	after, err := svc.ListPlayers(t.Context(), memory.SeedAdminID, "D")
	if err != nil {
		t.Fatalf("list defenders after import: %v", err)
	}
	ids := make([]string, 0, len(after))
	for _, p := range after {
		ids = append(ids, p.ID)
	}
	// rostered ply-d-01 and auctioned ply-d-02 survive; the feed adds 102.
	if strings.Join(ids, ",") != "ply-d-02,ply-d-01,102" {
		t.Fatalf("unexpected defenders after import: %v", ids)
	}

	svilar, ok, err := m.store.Repositories().Players.GetByID(t.Context(), "101")
	if err != nil || !ok {
		t.Fatalf("get imported player: ok=%v err=%v", ok, err)
	}
	if svilar.Position != player.PositionGoalkeeper || svilar.MarketValue != 15 || !svilar.UpdatedAt.Equal(marketNow) {
		t.Fatalf("unexpected imported player: %+v", svilar)
	}

	if _, err := svc.ListPlayers(t.Context(), "", "GK"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown position, got %v", err)
	}
}

func TestCatalogueService_ListPlayers_ViewerScope(t *testing.T) {
	m := newTestMarket(t, func(d *memory.Dataset) {
		d.Players = append(d.Players, player.Player{
			ID:          "ply-c-99",
			Name:        "Radja Nainggolan*",
			Team:        "Svincolati",
			Position:    player.PositionMidfielder,
			MarketValue: 40,
			UpdatedAt:   marketNow,
		})
	})
	svc := newCatalogue(m)

	listed := func(viewerID string) string {
		t.Helper()
		items, err := svc.ListPlayers(t.Context(), viewerID, "C")
		if err != nil {
			t.Fatalf("list midfielders for %q: %v", viewerID, err)
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.AssignedTeam != "" {
				parts = append(parts, item.ID+"@"+item.AssignedTeam)
				continue
			}
			parts = append(parts, item.ID)
		}
		return strings.Join(parts, ",")
	}

	free := "ply-c-03,ply-c-02,ply-c-04,ply-c-05"
	if got := listed(""); got != free {
		t.Fatalf("anonymous listing: got %s want %s", got, free)
	}
	if got := listed(memory.SeedUserA); got != free {
		t.Fatalf("team listing: got %s want %s", got, free)
	}
	all := "ply-c-03,ply-c-02,ply-c-04,ply-c-01@Atletico Ma Non Troppo,ply-c-05"
	if got := listed(memory.SeedAdminID); got != all {
		t.Fatalf("admin listing: got %s want %s", got, all)
	}

	// ownership is read fresh even though the catalogue itself is cached.
	a := m.start(t, memory.SeedUserA, "ply-c-02", 60, "")
	if _, done, err := m.engine.EndAuction(t.Context(), a.ID); err != nil || !done {
		t.Fatalf("end auction: done=%v err=%v", done, err)
	}
	if got := listed(""); got != "ply-c-03,ply-c-04,ply-c-05" {
		t.Fatalf("won player still listed as free: %s", got)
	}
	if got := listed(memory.SeedAdminID); !strings.Contains(got, "ply-c-02@Real Colonna") {
		t.Fatalf("admin listing misses the new owner: %s", got)
	}
}

func TestCatalogueService_ImportPlayers_KeepsPositionsAuctionsDependOn(t *testing.T) {
	m := newTestMarket(t, func(d *memory.Dataset) {
		add := func(id string, position player.Position, owner string) {
			d.Players = append(d.Players, player.Player{
				ID:          id,
				Name:        "Feed Player " + id,
				Team:        "Primavera",
				Position:    position,
				MarketValue: 5,
				UpdatedAt:   marketNow,
			})
			if owner != "" {
				d.Rosters = append(d.Rosters, roster.Assignment{UserID: owner, PlayerID: id})
			}
		}
		add("501", player.PositionDefender, "")
		add("502", player.PositionDefender, memory.SeedUserA)
		add("503", player.PositionDefender, memory.SeedUserA)
		add("504", player.PositionGoalkeeper, memory.SeedUserB)
		add("505", player.PositionDefender, "")
		for i := 1; i <= 6; i++ {
			add(fmt.Sprintf("60%d", i), player.PositionForward, memory.SeedUserA)
		}
	})
	svc := newCatalogue(m)
	subject := m.start(t, memory.SeedUserB, "501", 20, "")
	pledged := m.start(t, memory.SeedUserA, "505", 20, "502")

	record := func(id, code int) string {
		return fmt.Sprintf(`[{"id": %d, "name": "Feed Player %d", "tname": "Primavera", "fcrle": %d, "acsfc": 5}]`, id, id, code)
	}
	cases := []struct {
		name string
		feed string
		want string
	}{
		{
			name: "auctioned player",
			feed: record(501, 4),
			want: "Player 1: position of 501 cannot change while auction " + subject.ID + " is active",
		},
		{
			name: "pledged release",
			feed: record(502, 4),
			want: "Player 1: position of 502 cannot change while it is promised for release in auction " + pledged.ID,
		},
		{
			name: "roster over the limit",
			feed: record(503, 4),
			want: "Player 1: moving 503 to A puts user team-0001 at 7 A players, above the limit of 6",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ImportPlayers(t.Context(), []byte(tc.feed))
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var importErr *ImportError
			if !errors.As(err, &importErr) {
				t.Fatalf("expected ImportError, got %T", err)
			}
			if len(importErr.Details) != 1 || importErr.Details[0] != tc.want {
				t.Fatalf("unexpected details: %q", importErr.Details)
			}
		})
	}

	repos := m.store.Repositories()
	for id, want := range map[string]player.Position{"501": player.PositionDefender, "502": player.PositionDefender, "503": player.PositionDefender} {
		p, ok, err := repos.Players.GetByID(t.Context(), id)
		if err != nil || !ok {
			t.Fatalf("get %s: ok=%v err=%v", id, ok, err)
		}
		if p.Position != want {
			t.Fatalf("rejected import moved %s to %s", id, p.Position)
		}
	}

	// a reclassification that fits the owner's roster goes through.
	if _, err := svc.ImportPlayers(t.Context(), []byte(record(504, 3))); err != nil {
		t.Fatalf("import reclassified goalkeeper: %v", err)
	}
	moved, _, err := repos.Players.GetByID(t.Context(), "504")
	if err != nil || moved.Position != player.PositionMidfielder {
		t.Fatalf("expected 504 to be a midfielder, got %+v err=%v", moved, err)
	}

	settled, done, err := m.engine.EndAuction(t.Context(), pledged.ID)
	if err != nil || !done || settled.Status != auction.StatusCompleted {
		t.Fatalf("end pledged auction: done=%v err=%v", done, err)
	}
	if got := m.owner(t, "502"); got != "" {
		t.Fatalf("pledged defender should be released, owner=%q", got)
	}
}

func TestCatalogueService_ImportPlayers_RejectsBadFeeds(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := newCatalogue(m)

	cases := []struct {
		name    string
		feed    string
		message string
		detail  string
	}{
		{name: "not json", feed: `{"id": 1,`, message: "Invalid JSON format. Please check your input."},
		{name: "object", feed: `{"id": 1}`, message: "Invalid format. Expected an array of players."},
		{name: "empty", feed: `[]`, message: "The player list is empty."},
		{
			name:    "bad fields",
			feed:    `[{"id": 1, "name": "", "tname": "Roma", "fcrle": 5, "acsfc": 3}]`,
			message: "Validation errors occurred",
			detail:  "Player 1: Missing or invalid name (must be a string), Missing or invalid position code (fcrle must be 1, 2, 3, or 4)",
		},
		{
			name:    "missing value",
			feed:    `[{"id": 1, "name": "A", "tname": "Roma", "fcrle": 1, "acsfc": 3}, {"id": 2, "name": "B", "tname": "Roma", "fcrle": 2}]`,
			message: "Validation errors occurred",
			detail:  "Player 2: Missing or invalid market value (acsfc must be a number)",
		},
		{
			name:    "wrong type",
			feed:    `[{"id": "seven", "name": "A", "tname": "Roma", "fcrle": 1, "acsfc": 3}]`,
			message: "Validation errors occurred",
			detail:  "Player 1: Invalid record",
		},
		{
			name:    "duplicate id",
			feed:    `[{"id": 1, "name": "A", "tname": "Roma", "fcrle": 1, "acsfc": 3}, {"id": 1, "name": "B", "tname": "Roma", "fcrle": 2, "acsfc": 3}]`,
			message: "Validation errors occurred",
			detail:  "Player 2: Duplicate id 1 (first seen at player 1)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ImportPlayers(t.Context(), []byte(tc.feed))
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var importErr *ImportError
			if !errors.As(err, &importErr) {
				t.Fatalf("expected ImportError, got %T", err)
			}
			if importErr.Message != tc.message {
				t.Fatalf("unexpected message: %q", importErr.Message)
			}
			if tc.detail != "" && (len(importErr.Details) != 1 || !strings.HasPrefix(importErr.Details[0], tc.detail)) {
				t.Fatalf("unexpected details: %q", importErr.Details)
			}
		})
	}

	players, err := m.store.Repositories().Players.List(t.Context(), player.ListFilter{})
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != len(memory.SeedPlayers()) {
		t.Fatalf("rejected feeds must not change the catalogue, got %d players", len(players))
	}
}

func TestCatalogueService_ImportRosters(t *testing.T) {
	m := newTestMarket(t, func(d *memory.Dataset) {
		d.Users = append(d.Users, user.User{ID: "42", Name: "Old Name", TeamName: "Sporting Lisbona", Budget: 1000})
	})
	svc := newCatalogue(m)

	// team B keeps ply-c-01 outside the import.
	_, err := svc.ImportRosters(t.Context(), []byte(`{"id": "team-0001", "n": "Real Colonna", "cal": "ply-p-02;ply-c-01", "cr": 500}`))
	if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "player ply-c-01 is on the roster of user team-0002") {
		t.Fatalf("expected ownership error, got %v", err)
	}

	feed := `[
		{"id": "team-0001", "n": "Real Colonna", "nu": "Luca R.", "cal": "ply-p-02; ply-d-01;ply-c-01", "cr": 640},
		{"id": "team-0002", "n": "Atletico", "cal": "ply-c-02", "cr": 310},
		{"id": 42, "n": "Sporting", "nu": "Nuno", "cal": "ply-a-05", "cr": 0}
	]`
	result, err := svc.ImportRosters(t.Context(), []byte(feed))
	if err != nil {
		t.Fatalf("import rosters: %v", err)
	}
	if result.Imported != 3 || result.Message != "Successfully updated 3 team rosters" {
		t.Fatalf("unexpected result: %+v", result)
	}

	owners := map[string]string{
		"ply-p-01": "",
		"ply-p-02": memory.SeedUserA,
		"ply-d-01": memory.SeedUserA,
		"ply-c-01": memory.SeedUserA,
		"ply-c-02": memory.SeedUserB,
		"ply-a-05": "42",
		"ply-a-01": memory.SeedUserC,
	}
	for playerID, want := range owners {
		if got := m.owner(t, playerID); got != want {
			t.Fatalf("owner of %s: got %q want %q", playerID, got, want)
		}
	}
	if got := m.budget(t, memory.SeedUserB); got != 310 {
		t.Fatalf("team B budget: got %d want 310", got)
	}
	renamed, _, err := m.store.Repositories().Users.GetByID(t.Context(), "42")
	if err != nil {
		t.Fatalf("get user 42: %v", err)
	}
	if renamed.Name != "Nuno" || renamed.TeamName != "Sporting" || renamed.Budget != 0 {
		t.Fatalf("unexpected imported user: %+v", renamed)
	}
}

func TestCatalogueService_ImportRosters_Rejections(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := newCatalogue(m)
	m.start(t, memory.SeedUserA, "ply-c-02", 300, "")
	m.start(t, memory.SeedUserB, "ply-a-02", 20, "")

	cases := []struct {
		name string
		feed string
		want string
	}{
		{name: "empty", feed: `[]`, want: "No rosters found in the input data."},
		{name: "unknown player", feed: `{"id": "team-0001", "n": "RC", "cal": "ply-zz-01;ply-p-01", "cr": 900}`, want: "Some players do not exist in the database: ply-zz-01"},
		{name: "unknown user", feed: `{"id": "team-9999", "n": "Ghosts", "cal": "ply-p-02", "cr": 900}`, want: "user team-9999 does not exist"},
		{name: "credits below bids", feed: `{"id": "team-0001", "n": "RC", "cal": "ply-p-01", "cr": 200}`, want: "remaining credits 200 are below active bids of 300"},
		{name: "player in auction", feed: `{"id": "team-0003", "n": "DD", "cal": "ply-a-02", "cr": 900}`, want: "player ply-a-02 is in an active auction"},
		{name: "listed twice", feed: `[{"id": "team-0001", "n": "RC", "cal": "ply-p-02", "cr": 900}, {"id": "team-0003", "n": "DD", "cal": "ply-p-02", "cr": 900}]`, want: "player ply-p-02 is also listed for RC"},
		{name: "missing credits", feed: `{"id": "team-0001", "n": "RC", "cal": "ply-p-02"}`, want: "Missing or invalid remaining credits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ImportRosters(t.Context(), []byte(tc.feed))
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}

	if got := m.owner(t, "ply-p-01"); got != memory.SeedUserA {
		t.Fatalf("rejected imports must not touch rosters, owner=%q", got)
	}
	if got := m.budget(t, memory.SeedUserA); got != 1000 {
		t.Fatalf("rejected imports must not touch budgets, got %d", got)
	}
}
