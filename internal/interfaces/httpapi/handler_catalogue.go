package httpapi

import (
	"context"
	"net/http"

	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListPlayers")
	defer span.End()

	var viewerID string
	if principal, ok := principalFromContext(ctx); ok {
		viewerID = principal.UserID
	}

	items, err := h.catalogueService.ListPlayers(ctx, viewerID, r.URL.Query().Get("position"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, catalogueToDTO(items))
}

func (h *Handler) ImportPlayers(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, "players", h.catalogueService.ImportPlayers)
}

func (h *Handler) ImportRosters(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, "rosters", h.catalogueService.ImportRosters)
}

// runImport feeds the request body to an admin import and reports its counts.
func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, kind string, importFn func(context.Context, []byte) (usecase.ImportResult, error)) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Import")
	defer span.End()

	raw, err := readImportBody(w, r)
	if err == nil {
		var result usecase.ImportResult
		if result, err = importFn(ctx, raw); err == nil {
			h.logger.InfoContext(ctx, "catalogue import applied", "kind", kind, "bytes", len(raw))
			writeSuccess(ctx, w, http.StatusOK, result)
			return
		}
		h.logger.WarnContext(ctx, "catalogue import failed", "kind", kind, "error", err)
	}
	writeError(ctx, w, err)
}
