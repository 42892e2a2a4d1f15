package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

type UserRepository struct {
	v *view
}

func (r *UserRepository) GetByID(_ context.Context, userID string) (user.User, bool, error) {
	var (
		out user.User
		ok  bool
	)
	r.v.read(func(d *dataset) {
		out, ok = d.users[userID]
	})
	return out, ok, nil
}

func (r *UserRepository) GetByIDs(_ context.Context, userIDs []string) ([]user.User, error) {
	out := make([]user.User, 0, len(userIDs))
	r.v.read(func(d *dataset) {
		for _, id := range userIDs {
			if u, ok := d.users[id]; ok {
				out = append(out, u)
			}
		}
	})
	return out, nil
}

func (r *UserRepository) List(_ context.Context) ([]user.User, error) {
	out := make([]user.User, 0)
	r.v.read(func(d *dataset) {
		for _, u := range d.users {
			out = append(out, u)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamName != out[j].TeamName {
			return out[i].TeamName < out[j].TeamName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *UserRepository) Upsert(_ context.Context, u user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return r.v.write(func(d *dataset, record func(func(*dataset))) error {
		prev, existed := d.users[u.ID]
		d.users[u.ID] = u
		record(func(d *dataset) {
			if existed {
				d.users[prev.ID] = prev
				return
			}
			delete(d.users, u.ID)
		})
		return nil
	})
}

func (r *UserRepository) AdjustBudget(_ context.Context, userID string, delta int64) error {
	return r.v.write(func(d *dataset, record func(func(*dataset))) error {
		u, ok := d.users[userID]
		if !ok {
			return fmt.Errorf("user %s not found", userID)
		}
		if u.Budget+delta < 0 {
			return fmt.Errorf("budget of user %s would become negative", userID)
		}
		prev := u.Budget
		u.Budget += delta
		d.users[userID] = u
		record(func(d *dataset) {
			restored := d.users[userID]
			restored.Budget = prev
			d.users[userID] = restored
		})
		return nil
	})
}
