package httpapi

import (
	"net/http"

	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListAuctions")
	defer span.End()

	items, err := h.registry.ListActive(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list auctions failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, usecase.NewAuctionViews(items))
}

func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetAuction", auctionAttr(auctionID))
	defer span.End()

	item, err := h.registry.Get(ctx, auctionID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, usecase.NewAuctionView(item))
}

func (h *Handler) StartAuction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartAuction")
	defer span.End()

	userID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req startAuctionRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.auctionService.StartAuction(ctx, usecase.StartAuctionInput{
		PlayerID:        req.PlayerID,
		BidAmount:       req.BidAmount,
		UserID:          userID,
		ReleasePlayerID: req.ReleasePlayerID,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, usecase.NewAuctionView(item))
}

func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PlaceBid", auctionAttr(auctionID))
	defer span.End()

	userID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req placeBidRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.auctionService.PlaceBid(ctx, usecase.PlaceBidInput{
		AuctionID:       auctionID,
		BidAmount:       req.BidAmount,
		UserID:          userID,
		ReleasePlayerID: req.ReleasePlayerID,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, usecase.NewAuctionView(item))
}

func (h *Handler) UpdateReleasePromise(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateReleasePromise", auctionAttr(auctionID))
	defer span.End()

	userID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req updateReleaseRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.auctionService.UpdateReleasePromise(ctx, usecase.UpdateReleaseInput{
		AuctionID:       auctionID,
		UserID:          userID,
		ReleasePlayerID: req.ReleasePlayerID,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, usecase.NewAuctionView(item))
}

func (h *Handler) InvalidateAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	ctx, span := startSpan(r.Context(), "httpapi.Handler.InvalidateAuction", auctionAttr(auctionID))
	defer span.End()

	actorID, err := h.principalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.auctionService.InvalidateAuction(ctx, actorID, auctionID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, usecase.NewAuctionView(item))
}

func (h *Handler) EndAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("auctionID")
	ctx, span := startSpan(r.Context(), "httpapi.Handler.EndAuction", auctionAttr(auctionID))
	defer span.End()

	item, settled, err := h.auctionService.EndAuction(ctx, auctionID)
	if err != nil {
		h.logger.WarnContext(ctx, "end auction failed", "auction_id", auctionID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, endAuctionDTO{
		Auction: usecase.NewAuctionView(item),
		Settled: settled,
	})
}
