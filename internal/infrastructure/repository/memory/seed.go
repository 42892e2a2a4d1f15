package memory

import (
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
)

const (
	SeedAdminID = "admin-0001"
	SeedUserA   = "team-0001"
	SeedUserB   = "team-0002"
	SeedUserC   = "team-0003"
)

// SeedDataset is the local development market: one admin, three teams and
// a small catalogue with a few players already rostered.
func SeedDataset() Dataset {
	return Dataset{
		Users:   SeedUsers(),
		Players: SeedPlayers(),
		Rosters: []roster.Assignment{
			{UserID: SeedUserA, PlayerID: "ply-p-01"},
			{UserID: SeedUserA, PlayerID: "ply-d-01"},
			{UserID: SeedUserB, PlayerID: "ply-c-01"},
			{UserID: SeedUserC, PlayerID: "ply-a-01"},
		},
	}
}

func SeedUsers() []user.User {
	return []user.User{
		{ID: SeedAdminID, Email: "admin@fantasy.local", Name: "Market Admin", TeamName: "Commissioner", IsAdmin: true},
		{ID: SeedUserA, Email: "rossi@fantasy.local", Name: "Luca Rossi", TeamName: "Real Colonna", Budget: user.DefaultBudget},
		{ID: SeedUserB, Email: "bianchi@fantasy.local", Name: "Marco Bianchi", TeamName: "Atletico Ma Non Troppo", Budget: user.DefaultBudget},
		{ID: SeedUserC, Email: "verdi@fantasy.local", Name: "Giulia Verdi", TeamName: "Dinamo Divano", Budget: user.DefaultBudget},
	}
}

func SeedPlayers() []player.Player {
	updated := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return []player.Player{
		{ID: "ply-p-01", Name: "Mike Maignan", Team: "Milan", Position: player.PositionGoalkeeper, MarketValue: 22, UpdatedAt: updated},
		{ID: "ply-p-02", Name: "Yann Sommer", Team: "Inter", Position: player.PositionGoalkeeper, MarketValue: 20, UpdatedAt: updated},
		{ID: "ply-p-03", Name: "Alex Meret", Team: "Napoli", Position: player.PositionGoalkeeper, MarketValue: 16, UpdatedAt: updated},
		{ID: "ply-p-04", Name: "Michele Di Gregorio", Team: "Juventus", Position: player.PositionGoalkeeper, MarketValue: 18, UpdatedAt: updated},
		{ID: "ply-d-01", Name: "Alessandro Bastoni", Team: "Inter", Position: player.PositionDefender, MarketValue: 19, UpdatedAt: updated},
		{ID: "ply-d-02", Name: "Federico Dimarco", Team: "Inter", Position: player.PositionDefender, MarketValue: 24, UpdatedAt: updated},
		{ID: "ply-d-03", Name: "Giovanni Di Lorenzo", Team: "Napoli", Position: player.PositionDefender, MarketValue: 17, UpdatedAt: updated},
		{ID: "ply-d-04", Name: "Theo Hernandez", Team: "Milan", Position: player.PositionDefender, MarketValue: 23, UpdatedAt: updated},
		{ID: "ply-d-05", Name: "Gleison Bremer", Team: "Juventus", Position: player.PositionDefender, MarketValue: 15, UpdatedAt: updated},
		{ID: "ply-c-01", Name: "Nicolo Barella", Team: "Inter", Position: player.PositionMidfielder, MarketValue: 26, UpdatedAt: updated},
		{ID: "ply-c-02", Name: "Hakan Calhanoglu", Team: "Inter", Position: player.PositionMidfielder, MarketValue: 28, UpdatedAt: updated},
		{ID: "ply-c-03", Name: "Christian Pulisic", Team: "Milan", Position: player.PositionMidfielder, MarketValue: 31, UpdatedAt: updated},
		{ID: "ply-c-04", Name: "Scott McTominay", Team: "Napoli", Position: player.PositionMidfielder, MarketValue: 27, UpdatedAt: updated},
		{ID: "ply-c-05", Name: "Teun Koopmeiners", Team: "Juventus", Position: player.PositionMidfielder, MarketValue: 21, UpdatedAt: updated},
		{ID: "ply-a-01", Name: "Lautaro Martinez", Team: "Inter", Position: player.PositionForward, MarketValue: 38, UpdatedAt: updated},
		{ID: "ply-a-02", Name: "Romelu Lukaku", Team: "Napoli", Position: player.PositionForward, MarketValue: 30, UpdatedAt: updated},
		{ID: "ply-a-03", Name: "Dusan Vlahovic", Team: "Juventus", Position: player.PositionForward, MarketValue: 29, UpdatedAt: updated},
		{ID: "ply-a-04", Name: "Rafael Leao", Team: "Milan", Position: player.PositionForward, MarketValue: 33, UpdatedAt: updated},
		{ID: "ply-a-05", Name: "Ademola Lookman", Team: "Atalanta", Position: player.PositionForward, MarketValue: 32, UpdatedAt: updated},
	}
}
