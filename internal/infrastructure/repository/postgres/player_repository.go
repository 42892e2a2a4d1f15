package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	qb "github.com/riskibarqy/fantasy-auction/internal/platform/querybuilder"
)

type PlayerRepository struct {
	q querier
}

var playerSelectColumns = []string{
	"id",
	"name",
	"team",
	"position",
	"market_value",
	"updated_at",
}

const playerOrder = "array_position(ARRAY['P','D','C','A']::text[], position)"

func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (player.Player, bool, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.Eq("id", playerID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return player.Player{}, false, fmt.Errorf("build select player by id query: %w", err)
	}

	var row playerTableModel
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Player{}, false, nil
		}
		return player.Player{}, false, fmt.Errorf("select player by id: %w", classify(err))
	}
	return playerFromRow(row), true, nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, playerIDs []string) ([]player.Player, error) {
	if len(playerIDs) == 0 {
		return []player.Player{}, nil
	}

	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.In("id", stringSliceToAny(playerIDs))).
		OrderBy(playerOrder, "name", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players by ids query: %w", err)
	}
	return r.selectMany(ctx, "players by ids", query, args)
}

func (r *PlayerRepository) List(ctx context.Context, filter player.ListFilter) ([]player.Player, error) {
	builder := qb.Select(playerSelectColumns...).From("players")
	if filter.Position != "" {
		builder = builder.Where(qb.Eq("position", string(filter.Position)))
	}
	query, args, err := builder.OrderBy(playerOrder, "market_value DESC", "name", "id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players query: %w", err)
	}
	return r.selectMany(ctx, "players", query, args)
}

// ReplaceAll upserts players and drops the ones missing from the list
// unless a roster or an auction still points at them. Run it inside a
// transaction to make the refresh atomic.
func (r *PlayerRepository) ReplaceAll(ctx context.Context, players []player.Player) (player.ReplaceStats, error) {
	var stats player.ReplaceStats
	ids := make([]string, 0, len(players))
	rows := make([]playerInsertModel, 0, len(players))
	for _, p := range players {
		if err := p.Validate(); err != nil {
			return stats, err
		}
		rows = append(rows, playerInsertModel{
			ID:          p.ID,
			Name:        p.Name,
			Team:        p.Team,
			Position:    string(p.Position),
			MarketValue: p.MarketValue,
			UpdatedAt:   p.UpdatedAt,
		})
		ids = append(ids, p.ID)
	}

	for _, batch := range qb.Chunk(rows, upsertBatchSize) {
		query, args, err := qb.InsertModels("players", batch, `ON CONFLICT (id) DO UPDATE SET
name = EXCLUDED.name,
team = EXCLUDED.team,
position = EXCLUDED.position,
market_value = EXCLUDED.market_value,
updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return stats, fmt.Errorf("build upsert players query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return stats, fmt.Errorf("upsert players: %w", classify(err))
		}
		stats.Upserted += len(batch)
	}

	absent := qb.Expr("NOT (id = ANY(?))", pq.Array(ids))
	deleteQuery, deleteArgs, err := qb.DeleteFrom("players").
		Where(
			absent,
			qb.Expr("NOT EXISTS (SELECT 1 FROM user_roster ur WHERE ur.player_id = players.id)"),
			qb.Expr("NOT EXISTS (SELECT 1 FROM auctions a WHERE a.player_id = players.id OR a.release_player_id = players.id)"),
		).
		ToSQL()
	if err != nil {
		return stats, fmt.Errorf("build delete stale players query: %w", err)
	}
	result, err := r.q.ExecContext(ctx, deleteQuery, deleteArgs...)
	if err != nil {
		return stats, fmt.Errorf("delete stale players: %w", classify(err))
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return stats, fmt.Errorf("rows affected delete stale players: %w", err)
	}
	stats.Deleted = int(deleted)

	countQuery, countArgs, err := qb.Select("COUNT(1)").From("players").
		Where(qb.Expr("NOT (id = ANY(?))", pq.Array(ids))).
		ToSQL()
	if err != nil {
		return stats, fmt.Errorf("build count retained players query: %w", err)
	}
	if err := r.q.GetContext(ctx, &stats.Retained, countQuery, countArgs...); err != nil {
		return stats, fmt.Errorf("count retained players: %w", classify(err))
	}

	return stats, nil
}

func (r *PlayerRepository) selectMany(ctx context.Context, what, query string, args []any) ([]player.Player, error) {
	var rows []playerTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", what, classify(err))
	}

	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerFromRow(row))
	}
	return out, nil
}

func playerFromRow(row playerTableModel) player.Player {
	return player.Player{
		ID:          row.ID,
		Name:        row.Name,
		Team:        row.Team,
		Position:    player.Position(row.Position),
		MarketValue: row.MarketValue,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}
