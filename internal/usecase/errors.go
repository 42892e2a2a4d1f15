package usecase

import (
	"errors"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

var callerErrors = []error{
	auction.ErrRejected,
	ErrInvalidInput,
	ErrNotFound,
	ErrUnauthorized,
	ErrForbidden,
	ErrConflict,
}

// isCallerError reports refusals the caller can act on. They are expected
// traffic and do not mark spans as failed.
func isCallerError(err error) bool {
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
