package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerPublicAuctionRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.HandleFunc("GET /v1/auctions", handler.ListAuctions)
	mux.HandleFunc("GET /v1/auctions/live", handler.LiveAuctions)
	mux.HandleFunc("GET /v1/auctions/{auctionID}", handler.GetAuction)
	mux.Handle("GET /v1/players", OptionalAuth(verifier, http.HandlerFunc(handler.ListPlayers)))
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/auctions", RequireAuth(verifier, http.HandlerFunc(handler.StartAuction)))
	mux.Handle("POST /v1/auctions/{auctionID}/bids", RequireAuth(verifier, http.HandlerFunc(handler.PlaceBid)))
	mux.Handle("PUT /v1/auctions/{auctionID}/release", RequireAuth(verifier, http.HandlerFunc(handler.UpdateReleasePromise)))
	mux.Handle("GET /v1/me/budget", RequireAuth(verifier, http.HandlerFunc(handler.GetMyBudget)))
	mux.Handle("GET /v1/me/release-options", RequireAuth(verifier, http.HandlerFunc(handler.ListReleaseOptions)))
	mux.Handle("GET /v1/me/activity", RequireAuth(verifier, http.HandlerFunc(handler.ListMyActivity)))
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	admin := func(next http.HandlerFunc) http.Handler {
		return RequireAuth(verifier, RequireAdmin(handler.teamService, next))
	}

	// Invalidation and team upserts re-check the actor inside their own
	// transaction as well.
	mux.Handle("POST /v1/auctions/{auctionID}/invalidate", admin(handler.InvalidateAuction))
	mux.Handle("POST /v1/auctions/{auctionID}/end", admin(handler.EndAuction))
	mux.Handle("POST /v1/admin/players/import", admin(handler.ImportPlayers))
	mux.Handle("POST /v1/admin/rosters/import", admin(handler.ImportRosters))
	mux.Handle("PUT /v1/admin/teams/{userID}", admin(handler.UpsertTeam))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/settle-expired", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.SettleExpired)))
}
