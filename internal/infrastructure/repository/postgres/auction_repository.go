package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	qb "github.com/riskibarqy/fantasy-auction/internal/platform/querybuilder"
)

type AuctionRepository struct {
	q       querier
	locking bool
}

var auctionSelectColumns = []string{
	"id",
	"player_id",
	"current_bid",
	"current_bidder_id",
	"started_at",
	"ends_at",
	"status",
	"release_player_id",
	"version",
}

func (r *AuctionRepository) GetByID(ctx context.Context, auctionID string) (auction.Auction, bool, error) {
	return r.getOne(ctx, "auction by id", qb.Eq("id", auctionID))
}

func (r *AuctionRepository) GetActiveByPlayer(ctx context.Context, playerID string) (auction.Auction, bool, error) {
	return r.getOne(ctx, "active auction by player",
		qb.Eq("player_id", playerID),
		qb.Eq("status", string(auction.StatusActive)),
	)
}

func (r *AuctionRepository) ListActive(ctx context.Context) ([]auction.Auction, error) {
	query, args, err := qb.Select(auctionSelectColumns...).From("auctions").
		Where(qb.Eq("status", string(auction.StatusActive))).
		OrderBy("ends_at ASC", "id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select active auctions query: %w", err)
	}
	return r.selectMany(ctx, "active auctions", query, args)
}

func (r *AuctionRepository) ListActiveByBidder(ctx context.Context, userID string) ([]auction.Auction, error) {
	builder := qb.Select(auctionSelectColumns...).From("auctions").
		Where(
			qb.Eq("status", string(auction.StatusActive)),
			qb.Eq("current_bidder_id", userID),
		).
		OrderBy("ends_at ASC", "id ASC")
	if r.locking {
		builder = builder.ForUpdate()
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select auctions by bidder query: %w", err)
	}
	return r.selectMany(ctx, "auctions by bidder", query, args)
}

func (r *AuctionRepository) ListRecentByBidder(ctx context.Context, userID string, limit int) ([]auction.Auction, error) {
	query, args, err := qb.Select(auctionSelectColumns...).From("auctions").
		Where(qb.Eq("current_bidder_id", userID)).
		OrderBy("started_at DESC", "id DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select recent auctions by bidder query: %w", err)
	}
	return r.selectMany(ctx, "recent auctions by bidder", query, args)
}

func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]auction.Auction, error) {
	query, args, err := qb.Select(auctionSelectColumns...).From("auctions").
		Where(
			qb.Eq("status", string(auction.StatusActive)),
			qb.Cmp("ends_at", "<=", now),
		).
		OrderBy("ends_at ASC", "id ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select expired auctions query: %w", err)
	}
	return r.selectMany(ctx, "expired auctions", query, args)
}

func (r *AuctionRepository) Insert(ctx context.Context, a auction.Auction) error {
	if err := a.Validate(); err != nil {
		return err
	}

	insertModel := auctionInsertModel{
		ID:              a.ID,
		PlayerID:        a.PlayerID,
		CurrentBid:      a.CurrentBid,
		CurrentBidderID: a.CurrentBidderID,
		StartedAt:       a.StartedAt,
		EndsAt:          a.EndsAt,
		Status:          string(a.Status),
		ReleasePlayerID: nullString(a.ReleasePlayerID),
		Version:         a.Version,
	}
	query, args, err := qb.InsertModel("auctions", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert auction query: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert auction: %w", classify(err))
	}
	return nil
}

func (r *AuctionRepository) Update(ctx context.Context, a auction.Auction) (auction.Auction, error) {
	if err := a.Validate(); err != nil {
		return auction.Auction{}, err
	}

	query, args, err := qb.Update("auctions").
		Set("current_bid", a.CurrentBid).
		Set("current_bidder_id", a.CurrentBidderID).
		Set("ends_at", a.EndsAt).
		Set("status", string(a.Status)).
		Set("release_player_id", nullString(a.ReleasePlayerID)).
		SetExpr("version", "version + 1").
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("id", a.ID),
			qb.Eq("version", a.Version),
		).
		Suffix("RETURNING version").
		ToSQL()
	if err != nil {
		return auction.Auction{}, fmt.Errorf("build update auction query: %w", err)
	}

	var version int64
	if err := r.q.GetContext(ctx, &version, query, args...); err != nil {
		if isNotFound(err) {
			return auction.Auction{}, auction.ErrVersionConflict
		}
		return auction.Auction{}, fmt.Errorf("update auction: %w", classify(err))
	}

	a.Version = version
	return a, nil
}

func (r *AuctionRepository) getOne(ctx context.Context, what string, conditions ...qb.Condition) (auction.Auction, bool, error) {
	builder := qb.Select(auctionSelectColumns...).From("auctions").
		Where(conditions...).
		Limit(1)
	if r.locking {
		builder = builder.ForUpdate()
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return auction.Auction{}, false, fmt.Errorf("build select %s query: %w", what, err)
	}

	var row auctionTableModel
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return auction.Auction{}, false, nil
		}
		return auction.Auction{}, false, fmt.Errorf("select %s: %w", what, classify(err))
	}
	return auctionFromRow(row), true, nil
}

func (r *AuctionRepository) selectMany(ctx context.Context, what, query string, args []any) ([]auction.Auction, error) {
	var rows []auctionTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", what, classify(err))
	}

	out := make([]auction.Auction, 0, len(rows))
	for _, row := range rows {
		out = append(out, auctionFromRow(row))
	}
	return out, nil
}

func auctionFromRow(row auctionTableModel) auction.Auction {
	return auction.Auction{
		ID:              row.ID,
		PlayerID:        row.PlayerID,
		CurrentBid:      row.CurrentBid,
		CurrentBidderID: row.CurrentBidderID,
		StartedAt:       row.StartedAt.UTC(),
		EndsAt:          row.EndsAt.UTC(),
		Status:          auction.Status(row.Status),
		ReleasePlayerID: row.ReleasePlayerID.String,
		Version:         row.Version,
	}
}
