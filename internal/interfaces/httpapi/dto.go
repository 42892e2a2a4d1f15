package httpapi

import (
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/domain/player"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

type startAuctionRequest struct {
	PlayerID        string `json:"playerId" validate:"required"`
	BidAmount       int64  `json:"bidAmount"`
	ReleasePlayerID string `json:"releasePlayerId,omitempty"`
}

type placeBidRequest struct {
	BidAmount       int64  `json:"bidAmount"`
	ReleasePlayerID string `json:"releasePlayerId,omitempty"`
}

type updateReleaseRequest struct {
	ReleasePlayerID string `json:"releasePlayerId"`
}

type upsertTeamRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	TeamName string `json:"teamName" validate:"omitempty,max=100"`
	Budget   int64  `json:"budget" validate:"gte=0"`
}

type settleExpiredRequest struct {
	DispatchID string `json:"dispatchId"`
}

type endAuctionDTO struct {
	Auction usecase.AuctionView `json:"auction"`
	Settled bool                `json:"settled"`
}

type playerDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Team        string    `json:"team"`
	Position    string    `json:"position"`
	MarketValue int64     `json:"marketValue"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type catalogueEntryDTO struct {
	playerDTO
	AssignedTeam string `json:"assignedTeam,omitempty"`
}

type activityDTO struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
}

type positionStatusDTO struct {
	Position string `json:"position"`
	Count    int    `json:"count"`
	Required int    `json:"required"`
}

type budgetStatusDTO struct {
	UserID          string                `json:"userId"`
	TeamName        string                `json:"teamName"`
	Budget          int64                 `json:"budget"`
	ActiveBids      int64                 `json:"activeBids"`
	Available       int64                 `json:"available"`
	Roster          []playerDTO           `json:"roster"`
	Positions       []positionStatusDTO   `json:"positions"`
	LeadingAuctions []usecase.AuctionView `json:"leadingAuctions"`
}

type teamDTO struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name"`
	TeamName string `json:"teamName"`
	Budget   int64  `json:"budget"`
	IsAdmin  bool   `json:"isAdmin"`
}

type liveSnapshotFrame struct {
	Type     string                `json:"type"`
	Auctions []usecase.AuctionView `json:"auctions"`
}

func playerToDTO(p player.Player) playerDTO {
	return playerDTO{
		ID:          p.ID,
		Name:        p.Name,
		Team:        p.Team,
		Position:    string(p.Position),
		MarketValue: p.MarketValue,
		UpdatedAt:   p.UpdatedAt,
	}
}

func playersToDTO(items []player.Player) []playerDTO {
	out := make([]playerDTO, 0, len(items))
	for _, p := range items {
		out = append(out, playerToDTO(p))
	}
	return out
}

func catalogueToDTO(items []usecase.CatalogueEntry) []catalogueEntryDTO {
	out := make([]catalogueEntryDTO, 0, len(items))
	for _, item := range items {
		out = append(out, catalogueEntryDTO{playerDTO: playerToDTO(item.Player), AssignedTeam: item.AssignedTeam})
	}
	return out
}

func activityToDTO(items []usecase.Activity) []activityDTO {
	out := make([]activityDTO, 0, len(items))
	for _, item := range items {
		out = append(out, activityDTO{
			ID:         item.AuctionID,
			PlayerID:   item.PlayerID,
			PlayerName: item.PlayerName,
			Amount:     item.Amount,
			Timestamp:  item.Timestamp,
			Type:       string(item.Type),
		})
	}
	return out
}

func budgetStatusToDTO(v usecase.BudgetStatus) budgetStatusDTO {
	positions := make([]positionStatusDTO, 0, len(v.Positions))
	for _, p := range v.Positions {
		positions = append(positions, positionStatusDTO{
			Position: string(p.Position),
			Count:    p.Count,
			Required: p.Required,
		})
	}

	return budgetStatusDTO{
		UserID:          v.UserID,
		TeamName:        v.TeamName,
		Budget:          v.Budget,
		ActiveBids:      v.ActiveBids,
		Available:       v.Available,
		Roster:          playersToDTO(v.Roster),
		Positions:       positions,
		LeadingAuctions: usecase.NewAuctionViews(v.LeadingAuctions),
	}
}

func teamToDTO(u user.User) teamDTO {
	return teamDTO{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		TeamName: u.TeamName,
		Budget:   u.Budget,
		IsAdmin:  u.IsAdmin,
	}
}
