package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

func TestTeamService_BudgetStatus(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := NewTeamService(m.store, m.locker, nil, logging.NewNop())
	m.start(t, memory.SeedUserA, "ply-d-02", 300, "")
	m.start(t, memory.SeedUserA, "ply-c-02", 150, "")

	status, err := svc.BudgetStatus(t.Context(), memory.SeedUserA)
	if err != nil {
		t.Fatalf("budget status: %v", err)
	}
	if status.Budget != 1000 || status.ActiveBids != 450 || status.Available != 550 {
		t.Fatalf("unexpected figures: budget=%d bids=%d available=%d", status.Budget, status.ActiveBids, status.Available)
	}
	if len(status.Roster) != 2 || len(status.LeadingAuctions) != 2 {
		t.Fatalf("unexpected roster=%d auctions=%d", len(status.Roster), len(status.LeadingAuctions))
	}

	want := map[player.Position][2]int{
		player.PositionGoalkeeper: {1, 3},
		player.PositionDefender:   {1, 8},
		player.PositionMidfielder: {0, 8},
		player.PositionForward:    {0, 6},
	}
	if len(status.Positions) != len(want) {
		t.Fatalf("expected %d positions, got %d", len(want), len(status.Positions))
	}
	for _, ps := range status.Positions {
		if w := want[ps.Position]; ps.Count != w[0] || ps.Required != w[1] {
			t.Fatalf("position %s: got %d/%d want %d/%d", ps.Position, ps.Count, ps.Required, w[0], w[1])
		}
	}

	if _, err := svc.BudgetStatus(t.Context(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTeamService_RecentActivity(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := NewTeamService(m.store, m.locker, nil, logging.NewNop())
	at := func(offset time.Duration) {
		m.engine.now = func() time.Time { return marketNow.Add(offset) }
	}

	won := m.start(t, memory.SeedUserA, "ply-d-02", 40, "")
	at(time.Hour)
	cancelled := m.start(t, memory.SeedUserA, "ply-c-02", 30, "")
	at(2 * time.Hour)
	outbid := m.start(t, memory.SeedUserA, "ply-a-02", 20, "")
	if _, err := m.engine.PlaceBid(t.Context(), PlaceBidInput{AuctionID: outbid.ID, BidAmount: 50, UserID: memory.SeedUserB}); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	at(3 * time.Hour)
	leading := m.start(t, memory.SeedUserA, "ply-a-03", 25, "")
	if _, done, err := m.engine.EndAuction(t.Context(), won.ID); err != nil || !done {
		t.Fatalf("end auction: done=%v err=%v", done, err)
	}
	if _, err := m.engine.InvalidateAuction(t.Context(), memory.SeedAdminID, cancelled.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	feed, err := svc.RecentActivity(t.Context(), memory.SeedUserA)
	if err != nil {
		t.Fatalf("recent activity: %v", err)
	}
	want := []struct {
		id    string
		kind  ActivityType
		name  string
		bid   int64
		start time.Time
	}{
		{id: leading.ID, kind: ActivityBid, name: "Dusan Vlahovic", bid: 25, start: marketNow.Add(3 * time.Hour)},
		{id: cancelled.ID, kind: ActivityLose, name: "Hakan Calhanoglu", bid: 30, start: marketNow.Add(time.Hour)},
		{id: won.ID, kind: ActivityWin, name: "Federico Dimarco", bid: 40, start: marketNow},
	}
	if len(feed) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), feed)
	}
	for i, w := range want {
		got := feed[i]
		if got.AuctionID != w.id || got.Type != w.kind || got.PlayerName != w.name || got.Amount != w.bid || !got.Timestamp.Equal(w.start) {
			t.Fatalf("entry %d: got %+v want %+v", i, got, w)
		}
	}

	// the outbid auction shows up for the new leader only.
	other, err := svc.RecentActivity(t.Context(), memory.SeedUserB)
	if err != nil {
		t.Fatalf("recent activity of team B: %v", err)
	}
	if len(other) != 1 || other[0].AuctionID != outbid.ID || other[0].Type != ActivityBid || other[0].Amount != 50 {
		t.Fatalf("unexpected activity of team B: %+v", other)
	}

	for i, playerID := range []string{"ply-a-04", "ply-a-05", "ply-c-03"} {
		at(time.Duration(4+i) * time.Hour)
		m.start(t, memory.SeedUserA, playerID, 10, "")
	}
	feed, err = svc.RecentActivity(t.Context(), memory.SeedUserA)
	if err != nil {
		t.Fatalf("recent activity after more auctions: %v", err)
	}
	if len(feed) != RecentActivityLimit || feed[0].PlayerID != "ply-c-03" || feed[len(feed)-1].AuctionID != cancelled.ID {
		t.Fatalf("expected the five newest auctions, got %+v", feed)
	}

	if _, err := svc.RecentActivity(t.Context(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTeamService_ReleaseOptions(t *testing.T) {
	m := newTestMarket(t, fillDefence)
	svc := NewTeamService(m.store, m.locker, nil, logging.NewNop())

	all, err := svc.ReleaseOptions(t.Context(), memory.SeedUserA, "D", "")
	if err != nil {
		t.Fatalf("release options: %v", err)
	}
	if len(all) != 8 || all[0].ID != "ply-d-01" {
		t.Fatalf("expected 8 defenders starting with Bastoni, got %d first=%+v", len(all), all[0])
	}

	a := m.start(t, memory.SeedUserA, "ply-d-02", 40, "ply-d-01")

	others, err := svc.ReleaseOptions(t.Context(), memory.SeedUserA, "D", "")
	if err != nil {
		t.Fatalf("release options: %v", err)
	}
	if len(others) != 7 {
		t.Fatalf("pledged player should be excluded, got %d", len(others))
	}
	own, err := svc.ReleaseOptions(t.Context(), memory.SeedUserA, "D", a.ID)
	if err != nil {
		t.Fatalf("release options: %v", err)
	}
	if len(own) != 8 {
		t.Fatalf("the excluded auction's pledge stays eligible, got %d", len(own))
	}

	if _, err := svc.ReleaseOptions(t.Context(), memory.SeedUserA, "X", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTeamService_UpsertTeam(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := NewTeamService(m.store, m.locker, nil, logging.NewNop())

	if _, err := svc.UpsertTeam(t.Context(), memory.SeedUserB, user.User{ID: "team-0004", TeamName: "Nuova"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	created, err := svc.UpsertTeam(t.Context(), memory.SeedAdminID, user.User{ID: "team-0004", TeamName: "Nuova", Name: "Sara Neri"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if created.Budget != user.DefaultBudget || created.IsAdmin {
		t.Fatalf("unexpected created team: %+v", created)
	}

	m.start(t, memory.SeedUserA, "ply-c-02", 300, "")
	if _, err := svc.UpsertTeam(t.Context(), memory.SeedAdminID, user.User{ID: memory.SeedUserA, Budget: 250}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("budget below active bids must be refused, got %v", err)
	}

	renamed, err := svc.UpsertTeam(t.Context(), memory.SeedAdminID, user.User{ID: memory.SeedUserA, TeamName: "Real Colonna B"})
	if err != nil {
		t.Fatalf("rename team: %v", err)
	}
	if renamed.Budget != 1000 || renamed.Email != "rossi@fantasy.local" || renamed.TeamName != "Real Colonna B" {
		t.Fatalf("unexpected renamed team: %+v", renamed)
	}
}

func TestTeamService_EnsureAdmin(t *testing.T) {
	m := newTestMarket(t, nil)
	svc := NewTeamService(m.store, m.locker, nil, logging.NewNop())

	if err := svc.RequireAdmin(t.Context(), memory.SeedUserC); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.EnsureAdmin(t.Context(), memory.SeedUserC, ""); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := svc.RequireAdmin(t.Context(), memory.SeedUserC); err != nil {
		t.Fatalf("expected admin after promotion, got %v", err)
	}

	if err := svc.EnsureAdmin(t.Context(), "ops-0001", "ops@fantasy.local"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if err := svc.EnsureAdmin(t.Context(), "ops-0001", "ops@fantasy.local"); err != nil {
		t.Fatalf("repeat ensure: %v", err)
	}
	if err := svc.RequireAdmin(t.Context(), "ops-0001"); err != nil {
		t.Fatalf("expected created admin, got %v", err)
	}
	if err := svc.RequireAdmin(t.Context(), ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for empty id, got %v", err)
	}
}
