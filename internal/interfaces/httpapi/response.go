package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "fantasy-auction"
	internalMessage  = "internal server error"
)

// Responses follow the Google JSON style guide envelope.
type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

var internalError = mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL"}

// errorKinds is checked in order; the first match wins.
var errorKinds = []struct {
	kinds  []error
	mapped mappedError
}{
	{[]error{auction.ErrRejected}, mappedError{http.StatusUnprocessableEntity, "rejected", "UNPROCESSABLE"}},
	{[]error{usecase.ErrInvalidInput}, mappedError{http.StatusBadRequest, "invalidInput", "INVALID_ARGUMENT"}},
	{[]error{usecase.ErrNotFound}, mappedError{http.StatusNotFound, "notFound", "NOT_FOUND"}},
	{[]error{usecase.ErrUnauthorized}, mappedError{http.StatusUnauthorized, "unauthorized", "UNAUTHENTICATED"}},
	{[]error{usecase.ErrForbidden}, mappedError{http.StatusForbidden, "forbidden", "PERMISSION_DENIED"}},
	{[]error{usecase.ErrConflict, auction.ErrVersionConflict}, mappedError{http.StatusConflict, "conflict", "ABORTED"}},
	{[]error{usecase.ErrDependencyUnavailable, context.DeadlineExceeded}, mappedError{http.StatusServiceUnavailable, "dependencyUnavailable", "UNAVAILABLE"}},
}

var rejectionReasons = []struct {
	kind   error
	reason string
}{
	{auction.ErrPlayerInActiveAuction, "playerInActiveAuction"},
	{auction.ErrPlayerRostered, "playerRostered"},
	{auction.ErrRosterFull, "rosterFull"},
	{auction.ErrReleaseNotOwned, "releaseNotOwned"},
	{auction.ErrReleasePosition, "releasePositionMismatch"},
	{auction.ErrReleasePledged, "releasePledged"},
	{auction.ErrBudgetExceeded, "budgetExceeded"},
	{auction.ErrAuctionEnded, "auctionEnded"},
	{auction.ErrBidTooLow, "bidTooLow"},
	{auction.ErrSelfOutbid, "alreadyLeading"},
	{auction.ErrNotLeader, "notLeader"},
	{auction.ErrAdminBidder, "adminBidder"},
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(_ context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	mapped := mapError(err)

	var message string
	switch {
	case mapped.HTTPStatus == http.StatusInternalServerError:
		message = internalMessage
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	case errors.Is(err, auction.ErrRejected):
		message = auction.Reason(err)
	default:
		message = err.Error()
	}

	items := []googleErrorItem{{Domain: errorDomain, Reason: mapped.Reason, Message: message}}
	var importErr *usecase.ImportError
	if errors.As(err, &importErr) && len(importErr.Details) > 0 {
		message = importErr.Message
		items = items[:0]
		for _, detail := range importErr.Details {
			items = append(items, googleErrorItem{Domain: errorDomain, Reason: mapped.Reason, Message: detail})
		}
	}

	writeJSON(w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: message,
			Status:  mapped.Status,
			Errors:  items,
		},
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	writeError(ctx, w, errors.New(internalMessage))
}

func mapError(err error) mappedError {
	for _, entry := range errorKinds {
		for _, kind := range entry.kinds {
			if !errors.Is(err, kind) {
				continue
			}
			mapped := entry.mapped
			if kind == auction.ErrRejected {
				mapped.Reason = rejectionReason(err)
			}
			return mapped
		}
	}
	return internalError
}

func rejectionReason(err error) string {
	for _, item := range rejectionReasons {
		if errors.Is(err, item.kind) {
			return item.reason
		}
	}
	return "rejected"
}
