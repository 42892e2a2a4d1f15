package jobqueue

import (
	"context"
	"strconv"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

const (
	SettleExpiredPath = "/v1/internal/jobs/settle-expired"

	// settleGrace pushes delivery past EndsAt so the sweep sees the auction
	// as expired despite clock drift between QStash and this service.
	settleGrace = 2 * time.Second
)

type enqueuer interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type settleJob struct {
	DispatchID string `json:"dispatchId"`
}

// SettlementDispatcher schedules one settle-expired callback per active
// auction, timed for its EndsAt. Every update of the same auction maps to
// the same deduplication id, so repeated bids do not multiply jobs.
type SettlementDispatcher struct {
	queue  enqueuer
	path   string
	logger *logging.Logger
	now    func() time.Time
}

func NewSettlementDispatcher(queue enqueuer, logger *logging.Logger) *SettlementDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettlementDispatcher{
		queue:  queue,
		path:   SettleExpiredPath,
		logger: logger,
		now:    time.Now,
	}
}

// Run dispatches for every event until the channel closes or ctx is done.
func (d *SettlementDispatcher) Run(ctx context.Context, events <-chan auction.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := d.Dispatch(ctx, ev); err != nil {
				d.logger.WarnContext(ctx, "schedule auction settlement failed",
					"auction_id", ev.AuctionID,
					"sequence", ev.Sequence,
					"error", err,
				)
			}
		}
	}
}

// Dispatch schedules the settlement for ev. Removal events and auctions
// that are no longer active need nothing.
func (d *SettlementDispatcher) Dispatch(ctx context.Context, ev auction.Event) error {
	if ev.Type != auction.EventUpdated || ev.Auction.Status != auction.StatusActive {
		return nil
	}

	id := settleDispatchID(ev.Auction)
	delay := ev.Auction.EndsAt.Sub(d.now()) + settleGrace
	if delay < 0 {
		delay = 0
	}
	return d.queue.Enqueue(ctx, d.path, settleJob{DispatchID: id}, delay, id)
}

func settleDispatchID(a auction.Auction) string {
	return "settle-" + a.ID + "-" + strconv.FormatInt(a.EndsAt.Unix(), 10)
}
