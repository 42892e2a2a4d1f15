package postgres

import (
	"database/sql"
	"time"
)

type playerTableModel struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Team        string    `db:"team"`
	Position    string    `db:"position"`
	MarketValue int64     `db:"market_value"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type playerInsertModel struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Team        string    `db:"team"`
	Position    string    `db:"position"`
	MarketValue int64     `db:"market_value"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type userTableModel struct {
	ID       string `db:"id"`
	Email    string `db:"email"`
	Name     string `db:"name"`
	TeamName string `db:"team_name"`
	Budget   int64  `db:"budget"`
	IsAdmin  bool   `db:"is_admin"`
}

type userInsertModel struct {
	ID       string `db:"id"`
	Email    string `db:"email"`
	Name     string `db:"name"`
	TeamName string `db:"team_name"`
	Budget   int64  `db:"budget"`
	IsAdmin  bool   `db:"is_admin"`
}

type rosterInsertModel struct {
	UserID   string `db:"user_id"`
	PlayerID string `db:"player_id"`
}

type auctionTableModel struct {
	ID              string         `db:"id"`
	PlayerID        string         `db:"player_id"`
	CurrentBid      int64          `db:"current_bid"`
	CurrentBidderID string         `db:"current_bidder_id"`
	StartedAt       time.Time      `db:"started_at"`
	EndsAt          time.Time      `db:"ends_at"`
	Status          string         `db:"status"`
	ReleasePlayerID sql.NullString `db:"release_player_id"`
	Version         int64          `db:"version"`
}

type auctionInsertModel struct {
	ID              string         `db:"id"`
	PlayerID        string         `db:"player_id"`
	CurrentBid      int64          `db:"current_bid"`
	CurrentBidderID string         `db:"current_bidder_id"`
	StartedAt       time.Time      `db:"started_at"`
	EndsAt          time.Time      `db:"ends_at"`
	Status          string         `db:"status"`
	ReleasePlayerID sql.NullString `db:"release_player_id"`
	Version         int64          `db:"version"`
}
