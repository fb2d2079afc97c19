package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/Tomkoooo/tdarts/repositories"
	"github.com/google/uuid"
)

// Notifier announces engine events to live viewers. Broadcasts are
// fire-and-forget and never required for correctness; *brackets.Hub satisfies
// this interface.
type Notifier interface {
	BroadcastToRoom(room string, message interface{})
}

// noopNotifier is used when no hub is wired, e.g. in tests.
type noopNotifier struct{}

func (noopNotifier) BroadcastToRoom(string, interface{}) {}

// Event types broadcast to tournament rooms.
const (
	EventMatchUpdated      = "MATCH_UPDATED"
	EventMatchFinished     = "MATCH_FINISHED"
	EventBracketUpdated    = "BRACKET_UPDATED"
	EventGroupUpdated      = "GROUP_UPDATED"
	EventTournamentUpdated = "TOURNAMENT_UPDATED"
)

// newTournamentCode returns a short shareable code derived from a UUID.
func newTournamentCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func isValidTournamentTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.TournamentStatusPending:  {models.TournamentStatusGroup, models.TournamentStatusKnockout, models.TournamentStatusCancelled},
		models.TournamentStatusGroup:    {models.TournamentStatusKnockout, models.TournamentStatusCancelled},
		models.TournamentStatusKnockout: {models.TournamentStatusFinished, models.TournamentStatusCancelled},
		// Reopening is the supported reverse transition out of finished.
		models.TournamentStatusFinished:  {models.TournamentStatusKnockout, models.TournamentStatusGroup},
		models.TournamentStatusCancelled: {},
	}
	for _, status := range allowed[current] {
		if next == status {
			return true
		}
	}
	return false
}

// withTx runs fn inside a transaction when a database handle is available.
// A nil handle (in-memory repositories under test) runs fn directly.
func withTx(ctx context.Context, db *sql.DB, fn func(exec repositories.SQLExecutor) error) error {
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func intPtr(v int) *int {
	return &v
}
