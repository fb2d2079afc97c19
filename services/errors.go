package services

import "errors"

// Business-rule errors shared across services and the HTTP error mapping.
// None of these are retried automatically: they report violations, not
// transient failures.
var (
	// Validation family: malformed or contradictory input.
	ErrValidationFailed   = errors.New("validation failed")
	ErrTiedResult         = errors.New("legs won counts cannot be equal")
	ErrLegsWonMismatch    = errors.New("declared legs won disagree with recorded legs")
	ErrNoLegsRecorded     = errors.New("no legs recorded for this match")
	ErrPlayersRequired    = errors.New("at least two players are required")
	ErrUnknownPlayer      = errors.New("player does not belong to this tournament")
	ErrAdjustmentNoReason = errors.New("manual point adjustment requires a reason")

	// Not-found family.
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrLeagueNotFound     = errors.New("league not found")
	ErrPlayerNotFound     = errors.New("player not found")

	// Conflict family: operating on an entity in the wrong state.
	ErrMatchStatusConflict       = errors.New("match is not in a state allowing this operation")
	ErrTournamentStatusConflict  = errors.New("tournament is not in a state allowing this operation")
	ErrGroupsIncomplete          = errors.New("group stage has unfinished matches")
	ErrBracketHasResults         = errors.New("knockout bracket already has finished matches")
	ErrTournamentAlreadyInLeague = errors.New("tournament is already attached to this league")
	ErrTournamentNotInLeague     = errors.New("tournament is not attached to this league")

	// ErrDuplicateLeg rejects a leg whose number collides with an accepted leg.
	ErrDuplicateLeg = errors.New("duplicate leg number for this match")

	// ErrCascadingResultConflict rejects a result correction whose stale
	// winner has already been used by a finished downstream match.
	ErrCascadingResultConflict = errors.New("downstream match already finished with the previous winner")

	// ErrBracketConfiguration reports a bracket size incompatible with the
	// qualifier count.
	ErrBracketConfiguration = errors.New("bracket configuration incompatible with qualifier count")

	// ErrAdvancementIncomplete reports a finish that committed but whose
	// winner propagation failed; re-finishing the match retriggers
	// advancement idempotently.
	ErrAdvancementIncomplete = errors.New("match finished but winner advancement failed")
)
