package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/Tomkoooo/tdarts/repositories"
)

type CreateLeagueParams struct {
	ClubID  int                  `json:"club_id"`
	Name    string               `json:"name"`
	Scoring models.ScoringConfig `json:"scoring"`
}

type AdjustPointsParams struct {
	PlayerID         int    `json:"player_id"`
	PointsAdjustment int    `json:"points_adjustment"`
	Reason           string `json:"reason"`
}

type LeagueService interface {
	CreateLeague(ctx context.Context, params CreateLeagueParams) (*models.League, error)
	GetStandings(ctx context.Context, leagueID int) ([]*models.LeagueStanding, error)

	// AttachTournament distributes points for a finished tournament into the
	// league's standings. calculatePoints false is the "averages only" mode:
	// participation is recorded without touching total points. Attaching the
	// same tournament twice is rejected, never double-counted.
	AttachTournament(ctx context.Context, leagueID, tournamentID int, calculatePoints bool) error
	// DetachTournament subtracts exactly the deltas the attachment logged,
	// restoring every affected standing to its pre-attachment values even if
	// the league's scoring config changed since.
	DetachTournament(ctx context.Context, leagueID, tournamentID int) error

	AdjustPlayerPoints(ctx context.Context, leagueID int, params AdjustPointsParams) error
	// RecordExistingPoints seeds migrated/legacy points into the dedicated
	// existing bucket, excluded from automatic recompute.
	RecordExistingPoints(ctx context.Context, leagueID, playerID, points int) error
}

type leagueService struct {
	db             *sql.DB
	leagueRepo     repositories.LeagueRepository
	standingRepo   repositories.LeagueStandingRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	logger         *slog.Logger
}

func NewLeagueService(
	db *sql.DB,
	leagueRepo repositories.LeagueRepository,
	standingRepo repositories.LeagueStandingRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) LeagueService {
	if logger == nil {
		logger = slog.Default()
	}
	return &leagueService{
		db:             db,
		leagueRepo:     leagueRepo,
		standingRepo:   standingRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		logger:         logger,
	}
}

func (s *leagueService) CreateLeague(ctx context.Context, params CreateLeagueParams) (*models.League, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: league name is required", ErrValidationFailed)
	}
	scoringJSON, err := json.Marshal(params.Scoring)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	league := &models.League{
		ClubID:      params.ClubID,
		Name:        params.Name,
		ScoringJSON: string(scoringJSON),
	}
	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		return s.leagueRepo.Create(ctx, exec, league)
	})
	if err != nil {
		return nil, err
	}
	league.Scoring = &params.Scoring
	return league, nil
}

func (s *leagueService) GetStandings(ctx context.Context, leagueID int) ([]*models.LeagueStanding, error) {
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.standingRepo.ListByLeague(ctx, leagueID)
}

func (s *leagueService) AttachTournament(ctx context.Context, leagueID, tournamentID int, calculatePoints bool) error {
	league, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := league.ParseScoring(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return fmt.Errorf("%w: id %d", ErrTournamentNotFound, tournamentID)
	}
	if err != nil {
		return err
	}
	if tournament.Status != models.TournamentStatusFinished {
		return fmt.Errorf("%w: expected finished, tournament %s is %s",
			ErrTournamentStatusConflict, tournament.Code, tournament.Status)
	}

	if _, err := s.leagueRepo.GetAttachment(ctx, leagueID, tournamentID); err == nil {
		return fmt.Errorf("%w: tournament %d, league %d", ErrTournamentAlreadyInLeague, tournamentID, leagueID)
	} else if !errors.Is(err, repositories.ErrAttachmentNotFound) {
		return err
	}

	players, err := s.tournamentRepo.ListPlayers(ctx, tournamentID)
	if err != nil {
		return err
	}

	var results []playerResult
	if calculatePoints {
		knockoutType := models.MatchTypeKnockout
		knockoutMatches, err := s.matchRepo.ListByTournament(ctx, tournamentID, &knockoutType)
		if err != nil {
			return err
		}
		results = distributePoints(players, knockoutMatches, league.Scoring)
	}

	return withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		attachment := &models.LeagueAttachment{
			LeagueID:        leagueID,
			TournamentID:    tournamentID,
			CalculatePoints: calculatePoints,
		}
		if err := s.leagueRepo.CreateAttachment(ctx, exec, attachment); err != nil {
			if errors.Is(err, repositories.ErrAlreadyAttached) {
				return fmt.Errorf("%w: tournament %d, league %d", ErrTournamentAlreadyInLeague, tournamentID, leagueID)
			}
			return err
		}

		if !calculatePoints {
			for _, p := range players {
				delta := repositories.StandingDelta{TournamentsPlayed: 1}
				if err := s.standingRepo.ApplyDelta(ctx, exec, leagueID, p.PlayerID, delta); err != nil {
					return err
				}
			}
			return nil
		}

		for _, result := range results {
			delta := repositories.StandingDelta{
				TotalPoints:       result.points,
				TournamentsPlayed: 1,
			}
			if result.bucket == models.BucketGroupStage {
				delta.GroupStagePoints = result.points
			} else {
				delta.KnockoutStagePoints = result.points
			}
			switch result.finishPosition {
			case 1:
				delta.Championships = 1
			case 2:
				delta.RunnerUps = 1
			case 3:
				delta.SemiFinals = 1
			}
			if err := s.standingRepo.ApplyDelta(ctx, exec, leagueID, result.playerID, delta); err != nil {
				return err
			}

			log := &models.LeagueTournamentPoints{
				LeagueID:       leagueID,
				TournamentID:   tournamentID,
				PlayerID:       result.playerID,
				Points:         result.points,
				Bucket:         result.bucket,
				FinishPosition: result.finishPosition,
			}
			if err := s.leagueRepo.CreatePointsLog(ctx, exec, log); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *leagueService) DetachTournament(ctx context.Context, leagueID, tournamentID int) error {
	attachment, err := s.leagueRepo.GetAttachment(ctx, leagueID, tournamentID)
	if errors.Is(err, repositories.ErrAttachmentNotFound) {
		return fmt.Errorf("%w: tournament %d, league %d", ErrTournamentNotInLeague, tournamentID, leagueID)
	}
	if err != nil {
		return err
	}

	players, err := s.tournamentRepo.ListPlayers(ctx, tournamentID)
	if err != nil {
		return err
	}
	logs, err := s.leagueRepo.ListPointsLog(ctx, leagueID, tournamentID)
	if err != nil {
		return err
	}

	return withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		// Replay the logged deltas negatively: the symmetric undo of attach.
		for _, log := range logs {
			delta := repositories.StandingDelta{TotalPoints: -log.Points}
			if log.Bucket == models.BucketGroupStage {
				delta.GroupStagePoints = -log.Points
			} else {
				delta.KnockoutStagePoints = -log.Points
			}
			switch log.FinishPosition {
			case 1:
				delta.Championships = -1
			case 2:
				delta.RunnerUps = -1
			case 3:
				delta.SemiFinals = -1
			}
			if err := s.standingRepo.ApplyDelta(ctx, exec, leagueID, log.PlayerID, delta); err != nil {
				return err
			}
		}

		for _, p := range players {
			delta := repositories.StandingDelta{TournamentsPlayed: -1}
			if err := s.standingRepo.ApplyDelta(ctx, exec, leagueID, p.PlayerID, delta); err != nil {
				return err
			}
		}

		if err := s.leagueRepo.DeletePointsLog(ctx, exec, leagueID, tournamentID); err != nil {
			return err
		}
		return s.leagueRepo.DeleteAttachment(ctx, exec, attachment.LeagueID, attachment.TournamentID)
	})
}

func (s *leagueService) AdjustPlayerPoints(ctx context.Context, leagueID int, params AdjustPointsParams) error {
	if params.Reason == "" {
		return fmt.Errorf("%w: player %d", ErrAdjustmentNoReason, params.PlayerID)
	}
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return err
	}

	return withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		adjustment := &models.LeagueAdjustment{
			LeagueID: leagueID,
			PlayerID: params.PlayerID,
			Points:   params.PointsAdjustment,
			Reason:   params.Reason,
		}
		if err := s.leagueRepo.CreateAdjustment(ctx, exec, adjustment); err != nil {
			return err
		}
		delta := repositories.StandingDelta{
			TotalPoints:  params.PointsAdjustment,
			ManualPoints: params.PointsAdjustment,
		}
		return s.standingRepo.ApplyDelta(ctx, exec, leagueID, params.PlayerID, delta)
	})
}

func (s *leagueService) RecordExistingPoints(ctx context.Context, leagueID, playerID, points int) error {
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		delta := repositories.StandingDelta{
			TotalPoints:    points,
			ExistingPoints: points,
		}
		return s.standingRepo.ApplyDelta(ctx, exec, leagueID, playerID, delta)
	})
}

func (s *leagueService) getLeague(ctx context.Context, leagueID int) (*models.League, error) {
	league, err := s.leagueRepo.GetByID(ctx, leagueID)
	if errors.Is(err, repositories.ErrLeagueNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrLeagueNotFound, leagueID)
	}
	if err != nil {
		return nil, err
	}
	return league, nil
}

// playerResult is one player's computed outcome of a finished tournament.
type playerResult struct {
	playerID       int
	points         int
	bucket         models.PointsBucket
	finishPosition int
}

// distributePoints derives every participant's final stage from the knockout
// results and prices it with the scoring config. Input players carry their
// tournament-local IDs; output results are keyed by global player ID.
func distributePoints(players []*models.TournamentPlayer, knockoutMatches []*models.Match, scoring *models.ScoringConfig) []playerResult {
	finalRound := 0
	for _, m := range knockoutMatches {
		if m.Round != nil && *m.Round > finalRound {
			finalRound = *m.Round
		}
	}

	// eliminatedIn[player] is the round the player lost in; champion excluded.
	eliminatedIn := make(map[int]int)
	var championID, runnerUpID *int
	inKnockout := make(map[int]bool)

	for _, m := range knockoutMatches {
		for _, pid := range []*int{m.Player1ID, m.Player2ID} {
			if pid != nil {
				inKnockout[*pid] = true
			}
		}
		if m.Status != models.MatchStatusFinished || m.WinnerID == nil || m.Round == nil {
			continue
		}
		loser := m.Player1ID
		if m.Player1ID != nil && *m.Player1ID == *m.WinnerID {
			loser = m.Player2ID
		}
		if *m.Round == finalRound {
			championID = m.WinnerID
			runnerUpID = loser
			continue
		}
		if loser != nil {
			eliminatedIn[*loser] = *m.Round
		}
	}

	results := make([]playerResult, 0, len(players))
	for _, p := range players {
		result := playerResult{playerID: p.PlayerID}
		switch {
		case championID != nil && *championID == p.ID:
			result.points = scoring.ChampionPoints
			result.bucket = models.BucketKnockoutStage
			result.finishPosition = 1
		case runnerUpID != nil && *runnerUpID == p.ID:
			result.points = scoring.RunnerUpPoints
			result.bucket = models.BucketKnockoutStage
			result.finishPosition = 2
		case inKnockout[p.ID]:
			round := eliminatedIn[p.ID]
			result.points = scoring.RoundPoints[round]
			result.bucket = models.BucketKnockoutStage
			if round > 0 {
				// Losers of round r share position 2^(finalRound-r)+1:
				// semifinal losers are joint 3rd, quarterfinal losers joint 5th.
				result.finishPosition = 1<<(finalRound-round) + 1
			}
		default:
			result.points = scoring.GroupDropPoints
			result.bucket = models.BucketGroupStage
			result.finishPosition = 0
		}
		results = append(results, result)
	}
	return results
}
