package postgres

import (
	"context"
	"fmt"

	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	qb "github.com/riskibarqy/fantasy-auction/internal/platform/querybuilder"
)

type UserRepository struct {
	q       querier
	locking bool
}

var userSelectColumns = []string{
	"id",
	"email",
	"name",
	"team_name",
	"budget",
	"is_admin",
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (user.User, bool, error) {
	builder := qb.Select(userSelectColumns...).From("users").
		Where(qb.Eq("id", userID)).
		Limit(1)
	if r.locking {
		builder = builder.ForUpdate()
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return user.User{}, false, fmt.Errorf("build select user by id query: %w", err)
	}

	var row userTableModel
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return user.User{}, false, nil
		}
		return user.User{}, false, fmt.Errorf("select user by id: %w", classify(err))
	}
	return userFromRow(row), true, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, userIDs []string) ([]user.User, error) {
	if len(userIDs) == 0 {
		return []user.User{}, nil
	}
	query, args, err := qb.Select(userSelectColumns...).From("users").
		Where(qb.In("id", stringSliceToAny(userIDs))).
		OrderBy("team_name", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select users by ids query: %w", err)
	}
	return r.selectMany(ctx, "users by ids", query, args)
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	query, args, err := qb.Select(userSelectColumns...).From("users").
		OrderBy("team_name", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select users query: %w", err)
	}
	return r.selectMany(ctx, "users", query, args)
}

func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	insertModel := userInsertModel{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		TeamName: u.TeamName,
		Budget:   u.Budget,
		IsAdmin:  u.IsAdmin,
	}
	query, args, err := qb.InsertModel("users", insertModel, `ON CONFLICT (id) DO UPDATE SET
email = EXCLUDED.email,
name = EXCLUDED.name,
team_name = EXCLUDED.team_name,
budget = EXCLUDED.budget,
is_admin = EXCLUDED.is_admin,
updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert user query: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert user: %w", classify(err))
	}
	return nil
}

func (r *UserRepository) AdjustBudget(ctx context.Context, userID string, delta int64) error {
	query, args, err := qb.Update("users").
		SetExpr("budget", "budget + ?", delta).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("id", userID),
			qb.Expr("budget + ? >= 0", delta),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build adjust budget query: %w", err)
	}
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("adjust budget: %w", classify(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected adjust budget: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("adjust budget of user %s: not found or insufficient", userID)
	}
	return nil
}

func (r *UserRepository) selectMany(ctx context.Context, what, query string, args []any) ([]user.User, error) {
	var rows []userTableModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", what, classify(err))
	}
	out := make([]user.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, userFromRow(row))
	}
	return out, nil
}

func userFromRow(row userTableModel) user.User {
	return user.User{
		ID:       row.ID,
		Email:    row.Email,
		Name:     row.Name,
		TeamName: row.TeamName,
		Budget:   row.Budget,
		IsAdmin:  row.IsAdmin,
	}
}
