package memory

import (
	"context"
	"sort"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
)

type PlayerRepository struct {
	v *view
}

func (r *PlayerRepository) GetByID(_ context.Context, playerID string) (player.Player, bool, error) {
	var (
		out player.Player
		ok  bool
	)
	r.v.read(func(d *dataset) {
		out, ok = d.players[playerID]
	})
	return out, ok, nil
}

func (r *PlayerRepository) GetByIDs(_ context.Context, playerIDs []string) ([]player.Player, error) {
	out := make([]player.Player, 0, len(playerIDs))
	r.v.read(func(d *dataset) {
		for _, id := range playerIDs {
			p, ok := d.players[id]
			if !ok {
				continue
			}
			out = append(out, p)
		}
	})
	return out, nil
}

func (r *PlayerRepository) List(_ context.Context, filter player.ListFilter) ([]player.Player, error) {
	out := make([]player.Player, 0)
	r.v.read(func(d *dataset) {
		for _, p := range d.players {
			if filter.Position != "" && p.Position != filter.Position {
				continue
			}
			out = append(out, p)
		}
	})
	sortCatalogue(out)
	return out, nil
}

// ReplaceAll upserts players and drops the ones missing from the list
// unless a roster or an auction still points at them.
func (r *PlayerRepository) ReplaceAll(_ context.Context, players []player.Player) (player.ReplaceStats, error) {
	var stats player.ReplaceStats
	for _, p := range players {
		if err := p.Validate(); err != nil {
			return stats, err
		}
	}

	err := r.v.write(func(d *dataset, record func(func(*dataset))) error {
		incoming := make(map[string]struct{}, len(players))
		for _, p := range players {
			incoming[p.ID] = struct{}{}
			prev, existed := d.players[p.ID]
			d.players[p.ID] = p
			record(func(d *dataset) {
				if existed {
					d.players[prev.ID] = prev
					return
				}
				delete(d.players, p.ID)
			})
			stats.Upserted++
		}

		referenced := make(map[string]struct{}, len(d.owners)+len(d.auctions))
		for playerID := range d.owners {
			referenced[playerID] = struct{}{}
		}
		for _, a := range d.auctions {
			referenced[a.PlayerID] = struct{}{}
			if a.HasRelease() {
				referenced[a.ReleasePlayerID] = struct{}{}
			}
		}

		for id, p := range d.players {
			if _, keep := incoming[id]; keep {
				continue
			}
			if _, used := referenced[id]; used {
				stats.Retained++
				continue
			}
			delete(d.players, id)
			removed := p
			record(func(d *dataset) { d.players[removed.ID] = removed })
			stats.Deleted++
		}
		return nil
	})
	return stats, err
}

func sortPlayers(items []player.Player) {
	rank := make(map[player.Position]int, len(player.Positions))
	for i, position := range player.Positions {
		rank[position] = i
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return rank[items[i].Position] < rank[items[j].Position]
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
}

// sortCatalogue orders by position, then the most valuable first.
func sortCatalogue(items []player.Player) {
	rank := make(map[player.Position]int, len(player.Positions))
	for i, position := range player.Positions {
		rank[position] = i
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.Position != b.Position:
			return rank[a.Position] < rank[b.Position]
		case a.MarketValue != b.MarketValue:
			return a.MarketValue > b.MarketValue
		case a.Name != b.Name:
			return a.Name < b.Name
		default:
			return a.ID < b.ID
		}
	})
}
