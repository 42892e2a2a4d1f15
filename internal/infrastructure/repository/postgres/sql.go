package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/domain/roster"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"

	constraintActivePlayerAuction = "auctions_active_player_uidx"
	constraintRosterPlayer        = "user_roster_player_id_key"

	// upsertBatchSize keeps multi-row statements well under the 65535 bind
	// parameter limit of the postgres protocol.
	upsertBatchSize = 500
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// classify maps driver errors that mean "someone else got there first" to
// domain sentinels. Anything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return fmt.Errorf("%w: %v", auction.ErrVersionConflict, err)
	case sqlStateUniqueViolation:
		switch pqErr.Constraint {
		case constraintActivePlayerAuction:
			return fmt.Errorf("%w: %v", auction.ErrVersionConflict, err)
		case constraintRosterPlayer:
			return fmt.Errorf("%w: %v", roster.ErrAlreadyAssigned, err)
		}
	}
	return err
}

func stringSliceToAny(items []string) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
