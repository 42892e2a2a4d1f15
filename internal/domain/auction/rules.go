package auction

import (
	"errors"
	"fmt"
)

// ErrRejected marks every user-correctable refusal. Rejections are never
// retried.
var ErrRejected = errors.New("auction request rejected")

var (
	ErrPlayerInActiveAuction = errors.New("player already in an active auction")
	ErrPlayerRostered        = errors.New("player already on a roster")
	ErrRosterFull            = errors.New("roster full for position")
	ErrReleaseNotOwned       = errors.New("release player not on roster")
	ErrReleasePosition       = errors.New("release player position mismatch")
	ErrReleasePledged        = errors.New("release player already pledged")
	ErrBudgetExceeded        = errors.New("bid exceeds available budget")
	ErrAuctionEnded          = errors.New("auction has ended")
	ErrBidTooLow             = errors.New("bid not higher than current bid")
	ErrSelfOutbid            = errors.New("bidder already leads")
	ErrNotLeader             = errors.New("caller is not the leading bidder")
	ErrAdminBidder           = errors.New("admins cannot bid")
)

// ErrVersionConflict means the auction or a row it depends on changed
// between read and write. The whole validate+commit cycle may be retried.
var ErrVersionConflict = errors.New("auction state changed concurrently")

// RejectionError pairs a rejection kind with the reason shown to the user.
type RejectionError struct {
	Kind   error
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func (e *RejectionError) Unwrap() []error {
	return []error{e.Kind, ErrRejected}
}

func Reject(kind error, reason string) error {
	return &RejectionError{Kind: kind, Reason: reason}
}

func Rejectf(kind error, format string, args ...any) error {
	return &RejectionError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reason extracts the user-facing message of a rejection, falling back to
// err.Error().
func Reason(err error) string {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
