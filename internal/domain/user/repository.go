package user

import "context"

type Repository interface {
	GetByID(ctx context.Context, userID string) (User, bool, error)
	GetByIDs(ctx context.Context, userIDs []string) ([]User, error)
	List(ctx context.Context) ([]User, error)
	Upsert(ctx context.Context, u User) error
	// AdjustBudget adds delta (negative to debit) to the stored budget.
	AdjustBudget(ctx context.Context, userID string, delta int64) error
}
