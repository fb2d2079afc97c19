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
	"golang.org/x/sync/errgroup"
)

type CreateTournamentParams struct {
	ClubID       int                     `json:"club_id"`
	Name         string                  `json:"name"`
	Format       models.TournamentFormat `json:"format"`
	LegsToWin    int                     `json:"legs_to_win"`
	PointsPerWin int                     `json:"points_per_win"`
	BoardsCount  int                     `json:"boards_count"`
	GroupCount   int                     `json:"group_count"`
	PlayerNames  []string                `json:"player_names"`
}

type TournamentService interface {
	// CreateTournament registers the players and, for the group_knockout
	// format, draws groups and their round-robin fixtures.
	CreateTournament(ctx context.Context, params CreateTournamentParams) (*models.Tournament, error)
	GetTournamentByCode(ctx context.Context, code string) (*models.Tournament, error)
	GetGroupStandings(ctx context.Context, code string, groupID int) ([]models.GroupStanding, error)
	// ReopenTournament reverts a finished tournament to its previous phase.
	// Any league point distribution already applied for it is reversed first,
	// so new results can never double-count in league standings.
	ReopenTournament(ctx context.Context, code string) (*models.Tournament, error)
}

// LeagueDetacher is the slice of LeagueService that reopening needs.
type LeagueDetacher interface {
	DetachTournament(ctx context.Context, leagueID, tournamentID int) error
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	playerRepo     repositories.PlayerRepository
	leagueRepo     repositories.LeagueRepository
	leagues        LeagueDetacher
	hub            Notifier
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	playerRepo repositories.PlayerRepository,
	leagueRepo repositories.LeagueRepository,
	leagues LeagueDetacher,
	hub Notifier,
	logger *slog.Logger,
) TournamentService {
	if hub == nil {
		hub = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		playerRepo:     playerRepo,
		leagueRepo:     leagueRepo,
		leagues:        leagues,
		hub:            hub,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, params CreateTournamentParams) (*models.Tournament, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if len(params.PlayerNames) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrPlayersRequired, len(params.PlayerNames))
	}
	if params.Format != models.FormatGroupKnockout && params.Format != models.FormatKnockout {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrValidationFailed, params.Format)
	}
	if params.LegsToWin <= 0 {
		params.LegsToWin = 3
	}
	if params.PointsPerWin <= 0 {
		params.PointsPerWin = 2
	}
	if params.BoardsCount <= 0 {
		params.BoardsCount = 1
	}

	tournament := &models.Tournament{
		Code:         newTournamentCode(),
		ClubID:       params.ClubID,
		Name:         params.Name,
		Format:       params.Format,
		Status:       models.TournamentStatusPending,
		LegsToWin:    params.LegsToWin,
		PointsPerWin: params.PointsPerWin,
		BoardsCount:  params.BoardsCount,
	}

	err := withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.Create(ctx, exec, tournament); err != nil {
			return err
		}

		for seed, name := range params.PlayerNames {
			player, err := s.playerRepo.GetOrCreateByName(ctx, exec, name)
			if err != nil {
				return err
			}
			tp := &models.TournamentPlayer{
				TournamentID: tournament.ID,
				PlayerID:     player.ID,
				Name:         player.Name,
				Seed:         seed + 1,
			}
			if err := s.tournamentRepo.AddPlayer(ctx, exec, tp); err != nil {
				return err
			}
			tournament.Players = append(tournament.Players, *tp)
		}

		if tournament.Format == models.FormatGroupKnockout {
			if err := s.drawGroups(ctx, exec, tournament, params.GroupCount); err != nil {
				return err
			}
			if err := s.tournamentRepo.UpdateStatusIfCurrent(ctx, exec, tournament.ID,
				models.TournamentStatusPending, models.TournamentStatusGroup); err != nil {
				return err
			}
			tournament.Status = models.TournamentStatusGroup
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament created",
		slog.String("code", tournament.Code),
		slog.String("format", string(tournament.Format)),
		slog.Int("players", len(tournament.Players)))
	return tournament, nil
}

// drawGroups deals players into groups snake-style by seed and creates the
// round-robin fixtures per group.
func (s *tournamentService) drawGroups(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, groupCount int) error {
	playerCount := len(tournament.Players)
	if groupCount <= 0 {
		groupCount = (playerCount + 3) / 4
	}
	if groupCount > playerCount/2 {
		return fmt.Errorf("%w: %d groups for %d players", ErrValidationFailed, groupCount, playerCount)
	}

	groups := make([]*models.Group, groupCount)
	for i := range groups {
		groups[i] = &models.Group{
			TournamentID: tournament.ID,
			SortOrder:    i,
			BoardNumber:  i%tournament.BoardsCount + 1,
		}
		if err := s.tournamentRepo.CreateGroup(ctx, exec, groups[i]); err != nil {
			return err
		}
	}

	members := make([][]int, groupCount)
	for i := range tournament.Players {
		player := &tournament.Players[i]

		// Snake draw: 0,1,2,2,1,0,0,1,2,...
		lap := i / groupCount
		gi := i % groupCount
		if lap%2 == 1 {
			gi = groupCount - 1 - gi
		}

		player.GroupID = &groups[gi].ID
		player.GroupSeed = intPtr(len(members[gi]) + 1)
		if err := s.tournamentRepo.AssignPlayerToGroup(ctx, exec, player.ID, groups[gi].ID, *player.GroupSeed); err != nil {
			return err
		}
		members[gi] = append(members[gi], player.ID)
	}

	for gi, group := range groups {
		for _, pairing := range brackets.BuildRoundRobin(members[gi]) {
			match := &models.Match{
				TournamentID: tournament.ID,
				GroupID:      &group.ID,
				Type:         models.MatchTypeGroup,
				Player1ID:    intPtr(pairing.Player1ID),
				Player2ID:    intPtr(pairing.Player2ID),
				LegsToWin:    tournament.LegsToWin,
				Status:       models.MatchStatusPending,
				BoardNumber:  intPtr(group.BoardNumber),
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *tournamentService) GetTournamentByCode(ctx context.Context, code string) (*models.Tournament, error) {
	tournament, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		players, err := s.tournamentRepo.ListPlayers(gCtx, tournament.ID)
		if err != nil {
			return err
		}
		tournament.Players = make([]models.TournamentPlayer, 0, len(players))
		for _, p := range players {
			tournament.Players = append(tournament.Players, *p)
		}
		return nil
	})

	g.Go(func() error {
		groups, err := s.tournamentRepo.ListGroups(gCtx, tournament.ID)
		if err != nil {
			return err
		}
		tournament.Groups = make([]models.Group, 0, len(groups))
		for _, group := range groups {
			tournament.Groups = append(tournament.Groups, *group)
		}
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, tournament.ID, nil)
		if err != nil {
			return err
		}
		tournament.Matches = make([]models.Match, 0, len(matches))
		for _, m := range matches {
			tournament.Matches = append(tournament.Matches, *m)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble tournament %s: %w", code, err)
	}

	for gi := range tournament.Groups {
		group := &tournament.Groups[gi]
		for _, p := range tournament.Players {
			if p.GroupID != nil && *p.GroupID == group.ID {
				group.Players = append(group.Players, p)
			}
		}
		for _, m := range tournament.Matches {
			if m.GroupID != nil && *m.GroupID == group.ID {
				group.Matches = append(group.Matches, m)
			}
		}
		group.Standings = scoring.GroupStandings(group.Matches, group.Players, tournament.PointsPerWin)
	}
	return tournament, nil
}

func (s *tournamentService) GetGroupStandings(ctx context.Context, code string, groupID int) ([]models.GroupStanding, error) {
	tournament, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	groups, err := s.tournamentRepo.ListGroups(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, g := range groups {
		if g.ID == groupID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: id %d in tournament %s", ErrGroupNotFound, groupID, code)
	}

	players, err := s.tournamentRepo.ListPlayers(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	groupPlayers := make([]models.TournamentPlayer, 0)
	for _, p := range players {
		if p.GroupID != nil && *p.GroupID == groupID {
			groupPlayers = append(groupPlayers, *p)
		}
	}

	groupMatches, err := s.matchRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	matches := make([]models.Match, 0, len(groupMatches))
	for _, m := range groupMatches {
		matches = append(matches, *m)
	}

	return scoring.GroupStandings(matches, groupPlayers, tournament.PointsPerWin), nil
}

func (s *tournamentService) ReopenTournament(ctx context.Context, code string) (*models.Tournament, error) {
	tournament, err := s.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusFinished {
		return nil, fmt.Errorf("%w: expected finished, tournament %s is %s",
			ErrTournamentStatusConflict, code, tournament.Status)
	}

	// Reverse every league distribution before the results become mutable
	// again; otherwise re-recorded results would double-count.
	attachments, err := s.leagueRepo.ListAttachmentsByTournament(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	for _, attachment := range attachments {
		if err := s.leagues.DetachTournament(ctx, attachment.LeagueID, tournament.ID); err != nil {
			return nil, fmt.Errorf("failed to reverse league %d points for tournament %s: %w",
				attachment.LeagueID, code, err)
		}
		s.logger.Info("league attachment reversed on reopen",
			slog.String("tournament", code), slog.Int("league_id", attachment.LeagueID))
	}

	knockoutType := models.MatchTypeKnockout
	knockoutMatches, err := s.matchRepo.ListByTournament(ctx, tournament.ID, &knockoutType)
	if err != nil {
		return nil, err
	}
	target := models.TournamentStatusGroup
	if len(knockoutMatches) > 0 || tournament.Format == models.FormatKnockout {
		target = models.TournamentStatusKnockout
	}
	if !isValidTournamentTransition(tournament.Status, target) {
		return nil, fmt.Errorf("%w: cannot reopen %s to %s", ErrTournamentStatusConflict, code, target)
	}

	err = s.tournamentRepo.UpdateStatusIfCurrent(ctx, nil, tournament.ID, models.TournamentStatusFinished, target)
	if errors.Is(err, repositories.ErrTournamentStatusStale) {
		return nil, fmt.Errorf("%w: tournament %s changed state concurrently", ErrTournamentStatusConflict, code)
	}
	if err != nil {
		return nil, err
	}
	tournament.Status = target

	s.hub.BroadcastToRoom(tournament.Code, map[string]interface{}{
		"type":    EventTournamentUpdated,
		"payload": tournament,
	})
	return tournament, nil
}

func (s *tournamentService) getByCode(ctx context.Context, code string) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, fmt.Errorf("%w: code %s", ErrTournamentNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return tournament, nil
}
