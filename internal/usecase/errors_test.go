package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
)

func TestIsCallerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rejection", err: auction.Reject(auction.ErrBidTooLow, "bid must exceed 10"), want: true},
		{name: "wrapped invalid input", err: fmt.Errorf("%w: player id is required", ErrInvalidInput), want: true},
		{name: "exhausted retries", err: fmt.Errorf("%w: gave up", ErrConflict), want: true},
		{name: "dependency outage", err: ErrDependencyUnavailable, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "plain failure", err: errors.New("disk full"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCallerError(tt.err); got != tt.want {
				t.Fatalf("isCallerError(%v)=%v want=%v", tt.err, got, tt.want)
			}
		})
	}
}
