package roster

import "errors"

var ErrAlreadyAssigned = errors.New("player already assigned to a roster")

// Assignment places a player on one user's roster.
type Assignment struct {
	UserID   string
	PlayerID string
}
