package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-auction/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the development dataset into an empty database.
func BootstrapSeed(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM users`); err != nil {
		return fmt.Errorf("count users for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seed := memory.SeedDataset()
	for _, u := range seed.Users {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO users (id, email, name, team_name, budget, is_admin)
VALUES (:id, :email, :name, :team_name, :budget, :is_admin)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":        u.ID,
			"email":     u.Email,
			"name":      u.Name,
			"team_name": u.TeamName,
			"budget":    u.Budget,
			"is_admin":  u.IsAdmin,
		})
		if err != nil {
			return fmt.Errorf("bind seed user %s query: %w", u.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	for _, p := range seed.Players {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO players (id, name, team, position, market_value, updated_at)
VALUES (:id, :name, :team, :position, :market_value, :updated_at)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":           p.ID,
			"name":         p.Name,
			"team":         p.Team,
			"position":     string(p.Position),
			"market_value": p.MarketValue,
			"updated_at":   p.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("bind seed player %s query: %w", p.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed player %s: %w", p.ID, err)
		}
	}

	for _, a := range seed.Rosters {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO user_roster (user_id, player_id)
VALUES (:user_id, :player_id)
ON CONFLICT (player_id) DO NOTHING`, map[string]any{
			"user_id":   a.UserID,
			"player_id": a.PlayerID,
		})
		if err != nil {
			return fmt.Errorf("bind seed roster %s query: %w", a.PlayerID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed roster %s: %w", a.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
