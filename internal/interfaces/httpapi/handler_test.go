package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-auction/internal/platform/id"
	"github.com/riskibarqy/fantasy-auction/internal/platform/keylock"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

const testJobToken = "job-secret"

type staticVerifier map[string]string

func (v staticVerifier) VerifyAccessToken(_ context.Context, token string) (user.Principal, error) {
	userID, ok := v[token]
	if !ok {
		return user.Principal{}, fmt.Errorf("%w: unknown token", usecase.ErrUnauthorized)
	}
	return user.Principal{UserID: userID}, nil
}

var testTokens = staticVerifier{
	"tok-admin": memory.SeedAdminID,
	"tok-a":     memory.SeedUserA,
	"tok-b":     memory.SeedUserB,
	"tok-c":     memory.SeedUserC,
}

type testAPI struct {
	router   http.Handler
	registry *usecase.AuctionRegistry
	engine   *usecase.AuctionService
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()

	store, err := memory.NewStore(memory.SeedDataset())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	logger := logging.NewNop()
	locker := keylock.New()
	registry := usecase.NewAuctionRegistry(store, logger)
	engine := usecase.NewAuctionService(store, registry, locker, id.NewUUIDGenerator(), usecase.AuctionServiceConfig{
		LockTimeout: time.Second,
	}, logger)
	handler := NewHandler(
		engine,
		registry,
		usecase.NewExpirySweeper(store, engine, 2, logger),
		usecase.NewCatalogueService(store, nil, nil, locker, nil, logger),
		usecase.NewTeamService(store, locker, nil, logger),
		logger,
	)

	return testAPI{
		router: NewRouter(handler, testTokens, logger, RouterConfig{
			CORSAllowedOrigins: []string{"https://auction.example.com"},
			InternalJobToken:   testJobToken,
		}),
		registry: registry,
		engine:   engine,
	}
}

func (api testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

type testEnvelope[T any] struct {
	APIVersion string           `json:"apiVersion"`
	Data       T                `json:"data"`
	Error      *googleErrorBody `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, rec *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()

	var env testEnvelope[T]
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal response body %q: %v", rec.Body.String(), err)
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectErrorReason(t *testing.T, rec *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	expectStatus(t, rec, status)

	env := decodeEnvelope[any](t, rec)
	if env.Error == nil || len(env.Error.Errors) == 0 {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	if got := env.Error.Errors[0].Reason; got != reason {
		t.Fatalf("expected reason %q, got %q (%s)", reason, got, env.Error.Message)
	}
}

func TestAuctionRoutes_BidFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/v1/auctions", "tok-a", `{"playerId":"ply-c-02","bidAmount":100}`)
	expectStatus(t, rec, http.StatusCreated)
	started := decodeEnvelope[usecase.AuctionView](t, rec).Data
	if started.CurrentBid != 100 || started.CurrentBidderID != memory.SeedUserA || started.Status != "active" {
		t.Fatalf("unexpected auction: %+v", started)
	}

	rec = api.do(t, http.MethodPost, "/v1/auctions", "tok-c", `{"playerId":"ply-c-02","bidAmount":120}`)
	expectErrorReason(t, rec, http.StatusUnprocessableEntity, "playerInActiveAuction")

	bidPath := "/v1/auctions/" + started.ID + "/bids"
	rec = api.do(t, http.MethodPost, bidPath, "tok-b", `{"bidAmount":100}`)
	expectErrorReason(t, rec, http.StatusUnprocessableEntity, "bidTooLow")
	if env := decodeEnvelope[any](t, rec); env.Error.Message != "Bid must be higher than current bid" {
		t.Fatalf("expected the rejection reason as message, got %q", env.Error.Message)
	}

	rec = api.do(t, http.MethodPost, bidPath, "tok-b", `{"bidAmount":150}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeEnvelope[usecase.AuctionView](t, rec).Data; got.CurrentBidderID != memory.SeedUserB || got.CurrentBid != 150 {
		t.Fatalf("expected team B to lead at 150, got %+v", got)
	}

	rec = api.do(t, http.MethodGet, "/v1/auctions/"+started.ID, "", "")
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(t, http.MethodGet, "/v1/auctions", "", "")
	expectStatus(t, rec, http.StatusOK)
	if items := decodeEnvelope[[]usecase.AuctionView](t, rec).Data; len(items) != 1 || items[0].ID != started.ID {
		t.Fatalf("expected one active auction, got %+v", items)
	}

	rec = api.do(t, http.MethodGet, "/v1/me/budget", "tok-b", "")
	expectStatus(t, rec, http.StatusOK)
	status := decodeEnvelope[budgetStatusDTO](t, rec).Data
	if status.ActiveBids != 150 || status.Available != 850 || len(status.LeadingAuctions) != 1 {
		t.Fatalf("unexpected budget status: %+v", status)
	}
}

func TestAuctionRoutes_AuthAndValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
		reason string
	}{
		{name: "missing token", method: http.MethodPost, path: "/v1/auctions", body: `{"playerId":"ply-c-02","bidAmount":10}`, status: http.StatusUnauthorized, reason: "unauthorized"},
		{name: "unknown token", method: http.MethodPost, path: "/v1/auctions", token: "nope", body: `{"playerId":"ply-c-02","bidAmount":10}`, status: http.StatusUnauthorized, reason: "unauthorized"},
		{name: "unknown field", method: http.MethodPost, path: "/v1/auctions", token: "tok-a", body: `{"player":"ply-c-02"}`, status: http.StatusBadRequest, reason: "invalidInput"},
		{name: "missing player", method: http.MethodPost, path: "/v1/auctions", token: "tok-a", body: `{"bidAmount":10}`, status: http.StatusBadRequest, reason: "invalidInput"},
		{name: "zero bid", method: http.MethodPost, path: "/v1/auctions", token: "tok-a", body: `{"playerId":"ply-c-02","bidAmount":0}`, status: http.StatusBadRequest, reason: "invalidInput"},
		{name: "admin bidder", method: http.MethodPost, path: "/v1/auctions", token: "tok-admin", body: `{"playerId":"ply-c-02","bidAmount":10}`, status: http.StatusUnprocessableEntity, reason: "adminBidder"},
		{name: "rostered player", method: http.MethodPost, path: "/v1/auctions", token: "tok-a", body: `{"playerId":"ply-c-01","bidAmount":10}`, status: http.StatusUnprocessableEntity, reason: "playerRostered"},
		{name: "over budget", method: http.MethodPost, path: "/v1/auctions", token: "tok-a", body: `{"playerId":"ply-c-03","bidAmount":1001}`, status: http.StatusUnprocessableEntity, reason: "budgetExceeded"},
		{name: "unknown auction", method: http.MethodGet, path: "/v1/auctions/missing", status: http.StatusNotFound, reason: "notFound"},
		{name: "bad position", method: http.MethodGet, path: "/v1/players?position=X", status: http.StatusBadRequest, reason: "invalidInput"},
		{name: "non admin end", method: http.MethodPost, path: "/v1/auctions/missing/end", token: "tok-a", status: http.StatusForbidden, reason: "forbidden"},
		{name: "non admin import", method: http.MethodPost, path: "/v1/admin/players/import", token: "tok-b", body: `[]`, status: http.StatusForbidden, reason: "forbidden"},
		{name: "job without token", method: http.MethodPost, path: "/v1/internal/jobs/settle-expired", status: http.StatusUnauthorized, reason: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.token, tt.body)
			expectErrorReason(t, rec, tt.status, tt.reason)
		})
	}
}

func TestCatalogueRoutes_ListingDependsOnViewer(t *testing.T) {
	api := newTestAPI(t)

	type listed struct {
		ID           string `json:"id"`
		MarketValue  int64  `json:"marketValue"`
		AssignedTeam string `json:"assignedTeam"`
	}
	ids := func(token string) []listed {
		t.Helper()
		rec := api.do(t, http.MethodGet, "/v1/players?position=d", token, "")
		expectStatus(t, rec, http.StatusOK)
		return decodeEnvelope[[]listed](t, rec).Data
	}

	public := ids("")
	if len(public) != 4 || public[0].ID != "ply-d-02" || public[0].MarketValue != 24 {
		t.Fatalf("expected four free defenders, most valuable first, got %+v", public)
	}
	for _, p := range public {
		if p.ID == "ply-d-01" || p.AssignedTeam != "" {
			t.Fatalf("anonymous listing leaked ownership: %+v", p)
		}
	}
	if team := ids("tok-b"); len(team) != 4 {
		t.Fatalf("expected teams to see free agents only, got %+v", team)
	}

	admin := ids("tok-admin")
	if len(admin) != 5 {
		t.Fatalf("expected admins to see every defender, got %+v", admin)
	}
	for _, p := range admin {
		if p.ID == "ply-d-01" && p.AssignedTeam != "Real Colonna" {
			t.Fatalf("expected the owning team for ply-d-01, got %+v", p)
		}
	}

	rec := api.do(t, http.MethodGet, "/v1/players", "nope", "")
	expectErrorReason(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestTeamRoutes_RecentActivity(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/v1/auctions", "tok-a", `{"playerId":"ply-c-02","bidAmount":70}`)
	expectStatus(t, rec, http.StatusCreated)
	auctionID := decodeEnvelope[usecase.AuctionView](t, rec).Data.ID

	rec = api.do(t, http.MethodGet, "/v1/me/activity", "tok-a", "")
	expectStatus(t, rec, http.StatusOK)
	feed := decodeEnvelope[[]activityDTO](t, rec).Data
	if len(feed) != 1 || feed[0].ID != auctionID || feed[0].Type != "bid" || feed[0].PlayerName != "Hakan Calhanoglu" || feed[0].Amount != 70 {
		t.Fatalf("unexpected activity: %+v", feed)
	}

	rec = api.do(t, http.MethodPost, "/v1/auctions/"+auctionID+"/end", "tok-admin", "")
	expectStatus(t, rec, http.StatusOK)
	rec = api.do(t, http.MethodGet, "/v1/me/activity", "tok-a", "")
	expectStatus(t, rec, http.StatusOK)
	if feed := decodeEnvelope[[]activityDTO](t, rec).Data; len(feed) != 1 || feed[0].Type != "win" {
		t.Fatalf("expected a win after settlement, got %+v", feed)
	}

	rec = api.do(t, http.MethodGet, "/v1/me/activity", "", "")
	expectErrorReason(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestAuctionRoutes_AdminEndSettlesOnce(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/v1/auctions", "tok-c", `{"playerId":"ply-d-02","bidAmount":40}`)
	expectStatus(t, rec, http.StatusCreated)
	auctionID := decodeEnvelope[usecase.AuctionView](t, rec).Data.ID

	rec = api.do(t, http.MethodPost, "/v1/auctions/"+auctionID+"/end", "tok-admin", "")
	expectStatus(t, rec, http.StatusOK)
	first := decodeEnvelope[endAuctionDTO](t, rec).Data
	if !first.Settled || first.Auction.Status != "completed" {
		t.Fatalf("expected first end to settle, got %+v", first)
	}

	rec = api.do(t, http.MethodPost, "/v1/auctions/"+auctionID+"/end", "tok-admin", "")
	expectStatus(t, rec, http.StatusOK)
	if second := decodeEnvelope[endAuctionDTO](t, rec).Data; second.Settled {
		t.Fatalf("expected second end to be a no-op, got %+v", second)
	}

	rec = api.do(t, http.MethodGet, "/v1/me/budget", "tok-c", "")
	expectStatus(t, rec, http.StatusOK)
	status := decodeEnvelope[budgetStatusDTO](t, rec).Data
	if status.Budget != 960 || status.ActiveBids != 0 {
		t.Fatalf("expected budget 960 with no active bids, got %+v", status)
	}
	found := false
	for _, p := range status.Roster {
		found = found || p.ID == "ply-d-02"
	}
	if !found {
		t.Fatalf("expected ply-d-02 on the winner's roster, got %+v", status.Roster)
	}

	rec = api.do(t, http.MethodPost, "/v1/auctions/"+auctionID+"/invalidate", "tok-admin", "")
	expectErrorReason(t, rec, http.StatusUnprocessableEntity, "auctionEnded")
}

func TestAdminRoutes_UpsertTeamAndImports(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/v1/admin/teams/team-0009", "tok-admin", `{"name":"Sara Neri","teamName":"Sporting Salotto"}`)
	expectStatus(t, rec, http.StatusOK)
	team := decodeEnvelope[teamDTO](t, rec).Data
	if team.ID != "team-0009" || team.Budget != user.DefaultBudget || team.IsAdmin {
		t.Fatalf("unexpected team: %+v", team)
	}

	rec = api.do(t, http.MethodPost, "/v1/admin/players/import", "tok-admin", `[{"id":1,"name":"No Team","fcrle":9,"acsfc":3},{"name":"No Id","tname":"Inter","fcrle":2,"acsfc":5}]`)
	expectStatus(t, rec, http.StatusBadRequest)
	env := decodeEnvelope[any](t, rec)
	if env.Error.Message != "Validation errors occurred" || len(env.Error.Errors) != 2 {
		t.Fatalf("expected one error item per record, got %+v", env.Error)
	}

	rec = api.do(t, http.MethodPost, "/v1/admin/players/import", "tok-admin", `{"id":1}`)
	expectErrorReason(t, rec, http.StatusBadRequest, "invalidInput")
}

func TestInternalJobRoutes_SettleExpired(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/settle-expired", bytes.NewReader([]byte(`{"dispatchId":"cron-1"}`)))
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	got := decodeEnvelope[settleExpiredDTO](t, rec).Data
	if got.DispatchID != "cron-1" || got.Expired != 0 {
		t.Fatalf("unexpected sweep result: %+v", got)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	handler := recoverPanic(logging.NewNop(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auctions", nil))

	expectErrorReason(t, rec, http.StatusInternalServerError, "internalError")
}

func TestSystemRoutes_DocsToggle(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		mux := http.NewServeMux()
		registerSystemRoutes(mux, &Handler{}, enabled)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
		if enabled && (rec.Code != http.StatusOK || len(rec.Body.Bytes()) == 0) {
			t.Fatalf("expected openapi document, got %d", rec.Code)
		}
		if !enabled && rec.Code != http.StatusNotFound {
			t.Fatalf("expected docs hidden, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		expectStatus(t, rec, http.StatusOK)
	}
}
