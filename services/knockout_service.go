package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tomkoooo/tdarts/brackets"
	"github.com/Tomkoooo/tdarts/models"
	"github.com/Tomkoooo/tdarts/repositories"
	"github.com/Tomkoooo/tdarts/scoring"
)

type GenerateKnockoutParams struct {
	// QualifiersPerGroup selects the top N of every group standing. Ignored
	// for manually seeded knockout-only tournaments.
	QualifiersPerGroup int `json:"qualifiers_per_group"`
	// PlayersCount requests an explicit bracket size (power of two). Zero
	// means the smallest bracket covering the qualifier count.
	PlayersCount int `json:"players_count"`
}

type KnockoutPairParams struct {
	Round       int  `json:"round"`
	Player1ID   *int `json:"player1_id,omitempty"`
	Player2ID   *int `json:"player2_id,omitempty"`
	BoardNumber *int `json:"board_number,omitempty"`
}

type KnockoutService interface {
	// GenerateKnockout builds the bracket from current group standings (or
	// seed order for knockout-only tournaments). Fails while any group match
	// is unfinished or any existing knockout match already has a result.
	GenerateKnockout(ctx context.Context, tournamentCode string, params GenerateKnockoutParams) ([]*models.Match, error)

	// The three interactive pair-creation modes: both players known (playable
	// match), one known (placeholder until the second is assigned), none
	// known (reserved slot).
	AddManualMatch(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error)
	AddPartialMatch(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error)
	AddEmptyKnockoutPair(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error)
	AssignPlayerToPair(ctx context.Context, tournamentCode string, matchID, playerID int) (*models.Match, error)

	Advancer
}

type knockoutService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	hub            Notifier
	logger         *slog.Logger
}

func NewKnockoutService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	hub Notifier,
	logger *slog.Logger,
) KnockoutService {
	if hub == nil {
		hub = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &knockoutService{
		db:             db,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		hub:            hub,
		logger:         logger,
	}
}

// AdvanceWinner writes the winner of a finished knockout match into its
// downstream slot. The write is a single targeted update addressed by
// (tournament, round, bracket position, slot), so two sibling matches
// finishing concurrently each land in their own slot of the shared downstream
// match without clobbering the other. Re-running for the same winner is
// idempotent. No downstream row means the final just finished and the
// tournament completes.
func (s *knockoutService) AdvanceWinner(ctx context.Context, match *models.Match, winnerID int) error {
	if match.Round == nil || match.BracketPosition == nil {
		// Standalone knockout match outside the tree; nothing to feed.
		return nil
	}

	nextRound := *match.Round + 1
	nextPosition := *match.BracketPosition / 2
	slot := 1
	if *match.BracketPosition%2 == 1 {
		slot = 2
	}

	err := s.matchRepo.SeatPlayerInSlot(ctx, nil, match.TournamentID, nextRound, nextPosition, slot, winnerID)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return s.completeTournament(ctx, match.TournamentID)
	}
	if err != nil {
		return err
	}

	if err := s.matchRepo.ActivateIfSeated(ctx, nil, match.TournamentID, nextRound, nextPosition); err != nil {
		return err
	}

	s.broadcast(ctx, match.TournamentID, EventBracketUpdated, map[string]int{
		"round":            nextRound,
		"bracket_position": nextPosition,
	})
	return nil
}

func (s *knockoutService) completeTournament(ctx context.Context, tournamentID int) error {
	err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, nil, tournamentID,
		models.TournamentStatusKnockout, models.TournamentStatusFinished)
	if errors.Is(err, repositories.ErrTournamentStatusStale) {
		// Already finished, e.g. a manual re-finish of the final.
		return nil
	}
	if err != nil {
		return err
	}
	s.broadcast(ctx, tournamentID, EventTournamentUpdated, map[string]string{
		"status": string(models.TournamentStatusFinished),
	})
	return nil
}

func (s *knockoutService) GenerateKnockout(ctx context.Context, tournamentCode string, params GenerateKnockoutParams) ([]*models.Match, error) {
	tournament, err := s.getTournament(ctx, tournamentCode)
	if err != nil {
		return nil, err
	}

	finished, err := s.matchRepo.CountKnockoutByStatus(ctx, tournament.ID, models.MatchStatusFinished)
	if err != nil {
		return nil, err
	}
	if finished > 0 {
		return nil, fmt.Errorf("%w: tournament %s has %d finished knockout matches", ErrBracketHasResults, tournamentCode, finished)
	}

	var qualifiers []brackets.Qualifier
	switch tournament.Format {
	case models.FormatGroupKnockout:
		if tournament.Status != models.TournamentStatusGroup && tournament.Status != models.TournamentStatusKnockout {
			return nil, fmt.Errorf("%w: expected group, tournament %s is %s", ErrTournamentStatusConflict, tournamentCode, tournament.Status)
		}
		qualifiers, err = s.collectGroupQualifiers(ctx, tournament, params.QualifiersPerGroup)
	case models.FormatKnockout:
		if tournament.Status != models.TournamentStatusPending && tournament.Status != models.TournamentStatusKnockout {
			return nil, fmt.Errorf("%w: expected pending, tournament %s is %s", ErrTournamentStatusConflict, tournamentCode, tournament.Status)
		}
		qualifiers, err = s.collectSeededQualifiers(ctx, tournament)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrValidationFailed, tournament.Format)
	}
	if err != nil {
		return nil, err
	}

	bracket, err := brackets.BuildSingleElimination(qualifiers, params.PlayersCount)
	if errors.Is(err, brackets.ErrNotEnoughQualifiers) {
		return nil, fmt.Errorf("%w: %v", ErrPlayersRequired, err)
	}
	if errors.Is(err, brackets.ErrInvalidBracketSize) {
		return nil, fmt.Errorf("%w: %v", ErrBracketConfiguration, err)
	}
	if err != nil {
		return nil, err
	}

	var created []*models.Match
	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.DeleteKnockout(ctx, exec, tournament.ID); err != nil {
			return err
		}

		byes := make([]brackets.Slot, 0)
		for _, slot := range bracket.Slots {
			if slot.IsBye {
				// No match row for a bye: the lone player is seated straight
				// into the downstream slot below.
				byes = append(byes, slot)
				continue
			}
			match := s.matchFromSlot(tournament, slot)
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return err
			}
			created = append(created, match)
		}

		for _, bye := range byes {
			winnerID := derefInt(bye.Player1ID)
			if bye.Player1ID == nil {
				winnerID = derefInt(bye.Player2ID)
			}
			slot := 1
			if bye.Position%2 == 1 {
				slot = 2
			}
			if err := s.matchRepo.SeatPlayerInSlot(ctx, exec, tournament.ID, bye.Round+1, bye.Position/2, slot, winnerID); err != nil {
				return err
			}
			if err := s.matchRepo.ActivateIfSeated(ctx, exec, tournament.ID, bye.Round+1, bye.Position/2); err != nil {
				return err
			}
		}

		if tournament.Status != models.TournamentStatusKnockout {
			if err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, exec, tournament.ID,
				tournament.Status, models.TournamentStatusKnockout); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("knockout bracket generated",
		slog.String("tournament", tournamentCode),
		slog.Int("qualifiers", len(qualifiers)),
		slog.Int("size", bracket.Size),
		slog.Int("rounds", bracket.Rounds))
	s.broadcast(ctx, tournament.ID, EventBracketUpdated, map[string]int{"rounds": bracket.Rounds})

	return created, nil
}

func (s *knockoutService) matchFromSlot(tournament *models.Tournament, slot brackets.Slot) *models.Match {
	match := &models.Match{
		TournamentID:    tournament.ID,
		Type:            models.MatchTypeKnockout,
		Player1ID:       slot.Player1ID,
		Player2ID:       slot.Player2ID,
		LegsToWin:       tournament.LegsToWin,
		Status:          models.MatchStatusPlaceholder,
		Round:           intPtr(slot.Round),
		BracketPosition: intPtr(slot.Position),
	}
	if match.Playable() {
		match.Status = models.MatchStatusPending
	}
	if slot.Round == 1 && tournament.BoardsCount > 0 {
		match.BoardNumber = intPtr(slot.Position%tournament.BoardsCount + 1)
	}
	return match
}

// collectGroupQualifiers ranks every group and takes its top N, ordering the
// qualifier list rank-major (all group winners first, then all runners-up) so
// seeding separates equal ranks into opposite bracket halves.
func (s *knockoutService) collectGroupQualifiers(ctx context.Context, tournament *models.Tournament, perGroup int) ([]brackets.Qualifier, error) {
	if perGroup <= 0 {
		perGroup = 2
	}

	groups, err := s.tournamentRepo.ListGroups(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: tournament %s has no groups", ErrGroupNotFound, tournament.Code)
	}
	players, err := s.tournamentRepo.ListPlayers(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}

	standingsByGroup := make([][]models.GroupStanding, 0, len(groups))
	for _, group := range groups {
		groupMatches, err := s.matchRepo.ListByGroup(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		matches := make([]models.Match, 0, len(groupMatches))
		for _, m := range groupMatches {
			matches = append(matches, *m)
		}
		if !scoring.GroupComplete(matches) {
			return nil, fmt.Errorf("%w: group %d of tournament %s", ErrGroupsIncomplete, group.ID, tournament.Code)
		}

		groupPlayers := make([]models.TournamentPlayer, 0)
		for _, p := range players {
			if p.GroupID != nil && *p.GroupID == group.ID {
				groupPlayers = append(groupPlayers, *p)
			}
		}
		standingsByGroup = append(standingsByGroup, scoring.GroupStandings(matches, groupPlayers, tournament.PointsPerWin))
	}

	qualifiers := make([]brackets.Qualifier, 0, perGroup*len(groups))
	for rank := 1; rank <= perGroup; rank++ {
		for gi, standings := range standingsByGroup {
			if rank > len(standings) {
				return nil, fmt.Errorf("%w: group %d has only %d players, %d qualifiers requested",
					ErrBracketConfiguration, groups[gi].ID, len(standings), perGroup)
			}
			qualifiers = append(qualifiers, brackets.Qualifier{
				PlayerID:  standings[rank-1].PlayerID,
				GroupID:   groups[gi].ID,
				GroupRank: rank,
			})
		}
	}
	return qualifiers, nil
}

func (s *knockoutService) collectSeededQualifiers(ctx context.Context, tournament *models.Tournament) ([]brackets.Qualifier, error) {
	players, err := s.tournamentRepo.ListPlayers(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	qualifiers := make([]brackets.Qualifier, 0, len(players))
	for _, p := range players {
		qualifiers = append(qualifiers, brackets.Qualifier{PlayerID: p.ID})
	}
	return qualifiers, nil
}

func (s *knockoutService) AddManualMatch(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error) {
	if params.Player1ID == nil || params.Player2ID == nil {
		return nil, fmt.Errorf("%w: manual match requires both players", ErrValidationFailed)
	}
	return s.addKnockoutPair(ctx, tournamentCode, params)
}

func (s *knockoutService) AddPartialMatch(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error) {
	if (params.Player1ID == nil) == (params.Player2ID == nil) {
		return nil, fmt.Errorf("%w: partial match requires exactly one player", ErrValidationFailed)
	}
	return s.addKnockoutPair(ctx, tournamentCode, params)
}

func (s *knockoutService) AddEmptyKnockoutPair(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error) {
	params.Player1ID = nil
	params.Player2ID = nil
	return s.addKnockoutPair(ctx, tournamentCode, params)
}

func (s *knockoutService) addKnockoutPair(ctx context.Context, tournamentCode string, params KnockoutPairParams) (*models.Match, error) {
	tournament, err := s.getTournament(ctx, tournamentCode)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusKnockout {
		return nil, fmt.Errorf("%w: expected knockout, tournament %s is %s", ErrTournamentStatusConflict, tournamentCode, tournament.Status)
	}
	if params.Round <= 0 {
		return nil, fmt.Errorf("%w: round must be positive", ErrValidationFailed)
	}
	if err := s.checkPlayersBelong(ctx, tournament.ID, params.Player1ID, params.Player2ID); err != nil {
		return nil, err
	}

	position, err := s.matchRepo.NextBracketPosition(ctx, tournament.ID, params.Round)
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		TournamentID:    tournament.ID,
		Type:            models.MatchTypeKnockout,
		Player1ID:       params.Player1ID,
		Player2ID:       params.Player2ID,
		LegsToWin:       tournament.LegsToWin,
		Status:          models.MatchStatusPlaceholder,
		Round:           intPtr(params.Round),
		BracketPosition: intPtr(position),
		BoardNumber:     params.BoardNumber,
	}
	if match.Playable() {
		match.Status = models.MatchStatusPending
	}

	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		return s.matchRepo.Create(ctx, exec, match)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, tournament.ID, EventBracketUpdated, match)
	return match, nil
}

func (s *knockoutService) AssignPlayerToPair(ctx context.Context, tournamentCode string, matchID, playerID int) (*models.Match, error) {
	tournament, err := s.getTournament(ctx, tournamentCode)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlayersBelong(ctx, tournament.ID, &playerID, nil); err != nil {
		return nil, err
	}

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrMatchNotFound, matchID)
	}
	if err != nil {
		return nil, err
	}
	if match.TournamentID != tournament.ID || match.Type != models.MatchTypeKnockout {
		return nil, fmt.Errorf("%w: match %d is not a knockout match of tournament %s", ErrValidationFailed, matchID, tournamentCode)
	}
	if match.Status != models.MatchStatusPlaceholder {
		return nil, fmt.Errorf("%w: expected placeholder, match %d is %s", ErrMatchStatusConflict, matchID, match.Status)
	}

	switch {
	case match.Player1ID == nil:
		match.Player1ID = &playerID
	case match.Player2ID == nil:
		match.Player2ID = &playerID
	default:
		return nil, fmt.Errorf("%w: match %d already has both players", ErrMatchStatusConflict, matchID)
	}

	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.UpdatePlayers(ctx, exec, matchID, match.Player1ID, match.Player2ID); err != nil {
			return err
		}
		if match.Playable() {
			if err := s.matchRepo.UpdateStatusIfCurrent(ctx, exec, matchID,
				models.MatchStatusPlaceholder, models.MatchStatusPending); err != nil {
				return err
			}
			match.Status = models.MatchStatusPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, tournament.ID, EventBracketUpdated, match)
	return match, nil
}

func (s *knockoutService) checkPlayersBelong(ctx context.Context, tournamentID int, ids ...*int) error {
	players, err := s.tournamentRepo.ListPlayers(ctx, tournamentID)
	if err != nil {
		return err
	}
	known := make(map[int]bool, len(players))
	for _, p := range players {
		known[p.ID] = true
	}
	for _, id := range ids {
		if id != nil && !known[*id] {
			return fmt.Errorf("%w: id %d", ErrUnknownPlayer, *id)
		}
	}
	return nil
}

func (s *knockoutService) getTournament(ctx context.Context, code string) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, fmt.Errorf("%w: code %s", ErrTournamentNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *knockoutService) broadcast(ctx context.Context, tournamentID int, event string, payload interface{}) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		s.logger.Warn("skipping broadcast, tournament lookup failed",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(tournament.Code, map[string]interface{}{
		"type":    event,
		"payload": payload,
	})
}
