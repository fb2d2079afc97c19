package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/Tomkoooo/tdarts/repositories"
	"github.com/Tomkoooo/tdarts/scoring"
)

type FinishMatchParams struct {
	Player1LegsWon int `json:"player1_legs_won"`
	Player2LegsWon int `json:"player2_legs_won"`
	// AllowManualFinish accepts a result without recorded legs (paper-scored
	// boards) and skips the legs-won consistency check.
	AllowManualFinish bool `json:"allow_manual_finish"`
	// IsManual marks an admin correction, which may re-finish an already
	// finished match subject to the cascading-result guard.
	IsManual bool `json:"is_manual"`
}

type AddLegParams struct {
	LegNumber    int            `json:"leg_number"`
	WinnerID     int            `json:"winner_id"`
	Player1Darts *int           `json:"player1_darts,omitempty"`
	Player2Darts *int           `json:"player2_darts,omitempty"`
	Throws       []models.Throw `json:"throws,omitempty"`
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	StartMatch(ctx context.Context, matchID int) (*models.Match, error)
	AddLeg(ctx context.Context, matchID int, params AddLegParams) (*models.Leg, error)
	// FinishMatch validates and aggregates the match's legs, commits stats,
	// status and winner atomically, then triggers knockout advancement. The
	// finish either fully commits or fully fails; an advancement failure
	// after commit is reported via ErrAdvancementIncomplete so an operator
	// can re-trigger it idempotently.
	FinishMatch(ctx context.Context, matchID int, params FinishMatchParams) (*models.Match, error)
}

type matchService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	legRepo        repositories.LegRepository
	tournamentRepo repositories.TournamentRepository
	advancer       Advancer
	hub            Notifier
	logger         *slog.Logger
}

// Advancer propagates a finished knockout match's winner downstream.
type Advancer interface {
	AdvanceWinner(ctx context.Context, match *models.Match, winnerID int) error
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	legRepo repositories.LegRepository,
	tournamentRepo repositories.TournamentRepository,
	advancer Advancer,
	hub Notifier,
	logger *slog.Logger,
) MatchService {
	if hub == nil {
		hub = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		db:             db,
		matchRepo:      matchRepo,
		legRepo:        legRepo,
		tournamentRepo: tournamentRepo,
		advancer:       advancer,
		hub:            hub,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	legs, err := s.legRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	match.Legs = legs
	return match, nil
}

func (s *matchService) StartMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusPending {
		return nil, fmt.Errorf("%w: expected pending, match %d is %s", ErrMatchStatusConflict, matchID, match.Status)
	}
	if !match.Playable() {
		return nil, fmt.Errorf("%w: match %d is missing a player", ErrMatchStatusConflict, matchID)
	}

	err = s.matchRepo.UpdateStatusIfCurrent(ctx, nil, matchID, models.MatchStatusPending, models.MatchStatusOngoing)
	if errors.Is(err, repositories.ErrMatchStatusStale) {
		return nil, fmt.Errorf("%w: match %d left pending concurrently", ErrMatchStatusConflict, matchID)
	}
	if err != nil {
		return nil, err
	}
	match.Status = models.MatchStatusOngoing

	s.broadcastMatch(ctx, match, EventMatchUpdated)
	return match, nil
}

func (s *matchService) AddLeg(ctx context.Context, matchID int, params AddLegParams) (*models.Leg, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusOngoing {
		return nil, fmt.Errorf("%w: expected ongoing, match %d is %s", ErrMatchStatusConflict, matchID, match.Status)
	}
	if params.LegNumber <= 0 {
		return nil, fmt.Errorf("%w: leg number must be positive", ErrValidationFailed)
	}
	if params.WinnerID != derefInt(match.Player1ID) && params.WinnerID != derefInt(match.Player2ID) {
		return nil, fmt.Errorf("%w: leg winner %d is not a player of match %d", ErrValidationFailed, params.WinnerID, matchID)
	}

	leg := &models.Leg{
		MatchID:      matchID,
		LegNumber:    params.LegNumber,
		WinnerID:     &params.WinnerID,
		Player1Darts: params.Player1Darts,
		Player2Darts: params.Player2Darts,
		Throws:       params.Throws,
	}

	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		return s.legRepo.Create(ctx, exec, leg)
	})
	if errors.Is(err, repositories.ErrDuplicateLegNumber) {
		return nil, fmt.Errorf("%w: match %d leg %d", ErrDuplicateLeg, matchID, params.LegNumber)
	}
	if err != nil {
		return nil, err
	}

	s.broadcastMatch(ctx, match, EventMatchUpdated)
	return leg, nil
}

func (s *matchService) FinishMatch(ctx context.Context, matchID int, params FinishMatchParams) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if err := s.checkFinishable(match, params); err != nil {
		return nil, err
	}
	if params.Player1LegsWon == params.Player2LegsWon {
		return nil, fmt.Errorf("%w: %d-%d", ErrTiedResult, params.Player1LegsWon, params.Player2LegsWon)
	}

	winnerID := *match.Player1ID
	if params.Player2LegsWon > params.Player1LegsWon {
		winnerID = *match.Player2ID
	}

	legs, err := s.legRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	stats, err := s.aggregate(match, legs, params)
	if err != nil {
		return nil, err
	}

	// An admin correction of an already finished knockout match must not
	// contradict downstream rounds that already played on with the old winner.
	if match.Type == models.MatchTypeKnockout && match.Status == models.MatchStatusFinished {
		if err := s.checkCascade(ctx, match); err != nil {
			return nil, err
		}
	}

	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		return s.matchRepo.UpdateResult(ctx, exec, matchID, stats, params.Player1LegsWon, params.Player2LegsWon, winnerID)
	})
	if err != nil {
		return nil, err
	}

	match.Status = models.MatchStatusFinished
	match.WinnerID = &winnerID
	match.Player1LegsWon = params.Player1LegsWon
	match.Player2LegsWon = params.Player2LegsWon
	match.Player1Average = stats.Player1.Average
	match.Player2Average = stats.Player2.Average
	match.Player1Darts = stats.Player1.TotalDarts
	match.Player2Darts = stats.Player2.TotalDarts

	if match.Type == models.MatchTypeKnockout && s.advancer != nil {
		if advErr := s.advancer.AdvanceWinner(ctx, match, winnerID); advErr != nil {
			s.logger.Error("winner advancement failed after finish",
				slog.Int("match_id", matchID), slog.Any("error", advErr))
			return match, fmt.Errorf("%w: match %d: %v", ErrAdvancementIncomplete, matchID, advErr)
		}
	}

	s.broadcastMatch(ctx, match, EventMatchFinished)
	return match, nil
}

func (s *matchService) checkFinishable(match *models.Match, params FinishMatchParams) error {
	if !match.Playable() {
		return fmt.Errorf("%w: match %d is missing a player", ErrMatchStatusConflict, match.ID)
	}
	switch match.Status {
	case models.MatchStatusOngoing:
		return nil
	case models.MatchStatusPending:
		if params.AllowManualFinish || params.IsManual {
			return nil
		}
		return fmt.Errorf("%w: expected ongoing, match %d is pending", ErrMatchStatusConflict, match.ID)
	case models.MatchStatusFinished:
		if params.IsManual {
			return nil
		}
		return fmt.Errorf("%w: match %d is already finished", ErrMatchStatusConflict, match.ID)
	default:
		return fmt.Errorf("%w: expected ongoing, match %d is %s", ErrMatchStatusConflict, match.ID, match.Status)
	}
}

func (s *matchService) aggregate(match *models.Match, legs []models.Leg, params FinishMatchParams) (models.MatchStatistics, error) {
	if len(legs) == 0 {
		if !params.AllowManualFinish && !params.IsManual {
			return models.MatchStatistics{}, fmt.Errorf("%w: match %d", ErrNoLegsRecorded, match.ID)
		}
		return models.MatchStatistics{
			Player1: models.PlayerMatchStats{LegsWon: params.Player1LegsWon},
			Player2: models.PlayerMatchStats{LegsWon: params.Player2LegsWon},
		}, nil
	}

	stats, err := scoring.AggregateMatch(legs, *match.Player1ID, *match.Player2ID)
	if errors.Is(err, scoring.ErrDuplicateLeg) {
		return models.MatchStatistics{}, fmt.Errorf("%w: %v", ErrDuplicateLeg, err)
	}
	if err != nil {
		return models.MatchStatistics{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if !params.AllowManualFinish {
		if stats.Player1.LegsWon != params.Player1LegsWon || stats.Player2.LegsWon != params.Player2LegsWon {
			return models.MatchStatistics{}, fmt.Errorf("%w: declared %d-%d, recorded %d-%d",
				ErrLegsWonMismatch, params.Player1LegsWon, params.Player2LegsWon,
				stats.Player1.LegsWon, stats.Player2.LegsWon)
		}
	}
	return stats, nil
}

func (s *matchService) checkCascade(ctx context.Context, match *models.Match) error {
	if match.Round == nil || match.BracketPosition == nil {
		return nil
	}
	downstream, err := s.matchRepo.GetByCoordinates(ctx, match.TournamentID, *match.Round+1, *match.BracketPosition/2)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if downstream.Status == models.MatchStatusFinished {
		return fmt.Errorf("%w: match %d feeds finished match %d", ErrCascadingResultConflict, match.ID, downstream.ID)
	}
	return nil
}

func (s *matchService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrMatchNotFound, matchID)
	}
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) broadcastMatch(ctx context.Context, match *models.Match, event string) {
	tournament, err := s.tournamentRepo.GetByID(ctx, match.TournamentID)
	if err != nil {
		s.logger.Warn("skipping broadcast, tournament lookup failed",
			slog.Int("tournament_id", match.TournamentID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(tournament.Code, map[string]interface{}{
		"type":    event,
		"payload": match,
	})
}
