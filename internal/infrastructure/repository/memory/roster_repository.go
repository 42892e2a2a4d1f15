package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
)

type RosterRepository struct {
	v *view
}

func (r *RosterRepository) OwnerOf(_ context.Context, playerID string) (roster.Assignment, bool, error) {
	var (
		userID string
		ok     bool
	)
	r.v.read(func(d *dataset) {
		userID, ok = d.owners[playerID]
	})
	if !ok {
		return roster.Assignment{}, false, nil
	}
	return roster.Assignment{UserID: userID, PlayerID: playerID}, true, nil
}

func (r *RosterRepository) ListPlayers(_ context.Context, userID string) ([]player.Player, error) {
	out := make([]player.Player, 0)
	r.v.read(func(d *dataset) {
		for playerID, owner := range d.owners {
			if owner != userID {
				continue
			}
			if p, ok := d.players[playerID]; ok {
				out = append(out, p)
			}
		}
	})
	sortPlayers(out)
	return out, nil
}

func (r *RosterRepository) ListAssignments(_ context.Context) ([]roster.Assignment, error) {
	var out []roster.Assignment
	r.v.read(func(d *dataset) {
		out = make([]roster.Assignment, 0, len(d.owners))
		for playerID, userID := range d.owners {
			out = append(out, roster.Assignment{UserID: userID, PlayerID: playerID})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (r *RosterRepository) CountByPosition(_ context.Context, userID string, position player.Position) (int, error) {
	count := 0
	r.v.read(func(d *dataset) {
		for playerID, owner := range d.owners {
			if owner != userID {
				continue
			}
			if p, ok := d.players[playerID]; ok && p.Position == position {
				count++
			}
		}
	})
	return count, nil
}

func (r *RosterRepository) Add(_ context.Context, a roster.Assignment) error {
	return r.v.write(func(d *dataset, record func(func(*dataset))) error {
		if _, ok := d.players[a.PlayerID]; !ok {
			return fmt.Errorf("player %s not found", a.PlayerID)
		}
		if _, ok := d.users[a.UserID]; !ok {
			return fmt.Errorf("user %s not found", a.UserID)
		}
		if _, taken := d.owners[a.PlayerID]; taken {
			return roster.ErrAlreadyAssigned
		}
		d.owners[a.PlayerID] = a.UserID
		record(func(d *dataset) { delete(d.owners, a.PlayerID) })
		return nil
	})
}

func (r *RosterRepository) Remove(_ context.Context, a roster.Assignment) (bool, error) {
	removed := false
	err := r.v.write(func(d *dataset, record func(func(*dataset))) error {
		if owner, ok := d.owners[a.PlayerID]; !ok || owner != a.UserID {
			return nil
		}
		delete(d.owners, a.PlayerID)
		record(func(d *dataset) { d.owners[a.PlayerID] = a.UserID })
		removed = true
		return nil
	})
	return removed, err
}

func (r *RosterRepository) ReplaceForUser(_ context.Context, userID string, playerIDs []string) error {
	return r.v.write(func(d *dataset, record func(func(*dataset))) error {
		if _, ok := d.users[userID]; !ok {
			return fmt.Errorf("user %s not found", userID)
		}
		seen := make(map[string]struct{}, len(playerIDs))
		for _, playerID := range playerIDs {
			if _, dup := seen[playerID]; dup {
				return fmt.Errorf("player %s listed twice", playerID)
			}
			seen[playerID] = struct{}{}
			if _, ok := d.players[playerID]; !ok {
				return fmt.Errorf("player %s not found", playerID)
			}
			if owner, taken := d.owners[playerID]; taken && owner != userID {
				return fmt.Errorf("player %s: %w", playerID, roster.ErrAlreadyAssigned)
			}
		}

		for playerID, owner := range d.owners {
			if owner != userID {
				continue
			}
			delete(d.owners, playerID)
			id := playerID
			record(func(d *dataset) { d.owners[id] = userID })
		}
		for _, playerID := range playerIDs {
			d.owners[playerID] = userID
			id := playerID
			record(func(d *dataset) { delete(d.owners, id) })
		}
		return nil
	})
}
