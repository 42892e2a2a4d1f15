package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

type settleExpiredDTO struct {
	DispatchID string `json:"dispatchId,omitempty"`
	usecase.SweepResult
}

// SettleExpired lets an external scheduler trigger the expiry sweep.
func (h *Handler) SettleExpired(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SettleExpired")
	defer span.End()

	if h.sweeper == nil {
		writeError(ctx, w, fmt.Errorf("%w: expiry sweeper is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeSettleExpiredRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "settle expired job failed", "dispatch_id", req.DispatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.logger.InfoContext(ctx, "settle expired job completed",
		"dispatch_id", req.DispatchID,
		"expired", result.Expired,
		"settled", result.Settled,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	writeSuccess(ctx, w, http.StatusOK, settleExpiredDTO{
		DispatchID:  req.DispatchID,
		SweepResult: result,
	})
}

func decodeSettleExpiredRequest(r *http.Request) (settleExpiredRequest, error) {
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req settleExpiredRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return settleExpiredRequest{}, nil
		}
		return settleExpiredRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	req.DispatchID = strings.TrimSpace(req.DispatchID)

	return req, nil
}
