package httpapi

import (
	"net/http"

	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

func (h *Handler) GetMyBudget(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMyBudget")
	defer span.End()

	userID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	status, err := h.teamService.BudgetStatus(ctx, userID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, budgetStatusToDTO(status))
}

func (h *Handler) ListReleaseOptions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListReleaseOptions")
	defer span.End()

	userID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	query := r.URL.Query()
	items, err := h.teamService.ReleaseOptions(ctx, userID, query.Get("position"), query.Get("excludeAuctionId"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playersToDTO(items))
}

func (h *Handler) ListMyActivity(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMyActivity")
	defer span.End()

	userID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	items, err := h.teamService.RecentActivity(ctx, userID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, activityToDTO(items))
}

func (h *Handler) UpsertTeam(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpsertTeam")
	defer span.End()

	actorID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req upsertTeamRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	team, err := h.teamService.UpsertTeam(ctx, actorID, user.User{
		ID:       r.PathValue("userID"),
		Email:    req.Email,
		Name:     req.Name,
		TeamName: req.TeamName,
		Budget:   req.Budget,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "upsert team failed", "actor_id", actorID, "user_id", r.PathValue("userID"), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, teamToDTO(team))
}
