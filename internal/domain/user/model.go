package user

import (
	"fmt"
	"strings"
)

// DefaultBudget is the credit allowance a new team starts with.
const DefaultBudget int64 = 1000

// User is a team owner taking part in the market. Admins run the market
// and never bid.
type User struct {
	ID       string
	Email    string
	Name     string
	TeamName string
	Budget   int64
	IsAdmin  bool
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.TeamName) == "" {
		return fmt.Errorf("team name is required")
	}
	if u.Budget < 0 {
		return fmt.Errorf("budget must not be negative")
	}
	return nil
}

// Principal is the authenticated caller as reported by the account service.
type Principal struct {
	UserID string
	Email  string
}
