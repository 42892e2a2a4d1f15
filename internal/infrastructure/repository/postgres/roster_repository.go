package postgres

import (
	"context"
	"fmt"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	qb "github.com/riskibarqy/fantasy-auction/internal/platform/querybuilder"
)

type RosterRepository struct {
	q querier
}

func (r *RosterRepository) OwnerOf(ctx context.Context, playerID string) (roster.Assignment, bool, error) {
	query, args, err := qb.Select("user_id", "player_id").From("user_roster").
		Where(qb.Eq("player_id", playerID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return roster.Assignment{}, false, fmt.Errorf("build select roster owner query: %w", err)
	}

	var row rosterInsertModel
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return roster.Assignment{}, false, nil
		}
		return roster.Assignment{}, false, fmt.Errorf("select roster owner: %w", classify(err))
	}
	return roster.Assignment{UserID: row.UserID, PlayerID: row.PlayerID}, true, nil
}

func (r *RosterRepository) ListPlayers(ctx context.Context, userID string) ([]player.Player, error) {
	query, args, err := qb.Select("p.id", "p.name", "p.team", "p.position", "p.market_value", "p.updated_at").
		From("user_roster ur").
		Join("JOIN players p ON p.id = ur.player_id").
		Where(qb.Eq("ur.user_id", userID)).
		OrderBy("array_position(ARRAY['P','D','C','A']::text[], p.position)", "p.name", "p.id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select roster players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select roster players: %w", classify(err))
	}
	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerFromRow(row))
	}
	return out, nil
}

func (r *RosterRepository) ListAssignments(ctx context.Context) ([]roster.Assignment, error) {
	query, args, err := qb.Select("user_id", "player_id").From("user_roster").
		OrderBy("player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select roster assignments query: %w", err)
	}

	var rows []rosterInsertModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select roster assignments: %w", classify(err))
	}
	out := make([]roster.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.Assignment{UserID: row.UserID, PlayerID: row.PlayerID})
	}
	return out, nil
}

func (r *RosterRepository) CountByPosition(ctx context.Context, userID string, position player.Position) (int, error) {
	query, args, err := qb.Select("COUNT(1)").
		From("user_roster ur").
		Join("JOIN players p ON p.id = ur.player_id").
		Where(
			qb.Eq("ur.user_id", userID),
			qb.Eq("p.position", string(position)),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count roster by position query: %w", err)
	}

	var count int
	if err := r.q.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count roster by position: %w", classify(err))
	}
	return count, nil
}

func (r *RosterRepository) Add(ctx context.Context, a roster.Assignment) error {
	query, args, err := qb.InsertModel("user_roster", rosterInsertModel{UserID: a.UserID, PlayerID: a.PlayerID}, "")
	if err != nil {
		return fmt.Errorf("build insert roster query: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert roster: %w", classify(err))
	}
	return nil
}

func (r *RosterRepository) Remove(ctx context.Context, a roster.Assignment) (bool, error) {
	query, args, err := qb.DeleteFrom("user_roster").
		Where(
			qb.Eq("user_id", a.UserID),
			qb.Eq("player_id", a.PlayerID),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete roster query: %w", err)
	}
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete roster: %w", classify(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected delete roster: %w", err)
	}
	return affected > 0, nil
}

// ReplaceForUser swaps the full roster of a user. Run it inside a
// transaction to make the swap atomic.
func (r *RosterRepository) ReplaceForUser(ctx context.Context, userID string, playerIDs []string) error {
	clearQuery, clearArgs, err := qb.DeleteFrom("user_roster").
		Where(qb.Eq("user_id", userID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build clear roster query: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, clearQuery, clearArgs...); err != nil {
		return fmt.Errorf("clear roster: %w", classify(err))
	}

	if len(playerIDs) == 0 {
		return nil
	}
	rows := make([]rosterInsertModel, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		rows = append(rows, rosterInsertModel{UserID: userID, PlayerID: playerID})
	}
	for _, batch := range qb.Chunk(rows, upsertBatchSize) {
		query, args, err := qb.InsertModels("user_roster", batch, "")
		if err != nil {
			return fmt.Errorf("build insert roster rows query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert roster rows: %w", classify(err))
		}
	}
	return nil
}
