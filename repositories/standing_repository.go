package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tomkoooo/tdarts/models"
)

var ErrLeagueStandingNotFound = errors.New("league standing not found")

// StandingDelta is an additive change to one (league, player) standing row.
// Negative fields subtract, which is how detach replays an attachment's log.
type StandingDelta struct {
	TotalPoints         int
	GroupStagePoints    int
	KnockoutStagePoints int
	ManualPoints        int
	ExistingPoints      int
	TournamentsPlayed   int
	Championships       int
	RunnerUps           int
	SemiFinals          int
}

type LeagueStandingRepository interface {
	// ApplyDelta upserts the standing row and applies the delta in one
	// additive statement: concurrent deltas for the same row never lose each
	// other, unlike a read-modify-write of the whole row.
	ApplyDelta(ctx context.Context, exec SQLExecutor, leagueID, playerID int, delta StandingDelta) error
	Get(ctx context.Context, leagueID, playerID int) (*models.LeagueStanding, error)
	ListByLeague(ctx context.Context, leagueID int) ([]*models.LeagueStanding, error)
}

type postgresLeagueStandingRepository struct {
	db *sql.DB
}

func NewPostgresLeagueStandingRepository(db *sql.DB) LeagueStandingRepository {
	return &postgresLeagueStandingRepository{db: db}
}

func (r *postgresLeagueStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLeagueStandingRepository) ApplyDelta(ctx context.Context, exec SQLExecutor, leagueID, playerID int, d StandingDelta) error {
	query := `
		INSERT INTO league_standings
			(league_id, player_id, total_points, group_stage_points, knockout_stage_points,
			 manual_points, existing_points, tournaments_played, championships, runner_ups,
			 semi_finals, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (league_id, player_id) DO UPDATE SET
			total_points          = league_standings.total_points + EXCLUDED.total_points,
			group_stage_points    = league_standings.group_stage_points + EXCLUDED.group_stage_points,
			knockout_stage_points = league_standings.knockout_stage_points + EXCLUDED.knockout_stage_points,
			manual_points         = league_standings.manual_points + EXCLUDED.manual_points,
			existing_points       = league_standings.existing_points + EXCLUDED.existing_points,
			tournaments_played    = league_standings.tournaments_played + EXCLUDED.tournaments_played,
			championships         = league_standings.championships + EXCLUDED.championships,
			runner_ups            = league_standings.runner_ups + EXCLUDED.runner_ups,
			semi_finals           = league_standings.semi_finals + EXCLUDED.semi_finals,
			updated_at            = NOW()`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		leagueID, playerID, d.TotalPoints, d.GroupStagePoints, d.KnockoutStagePoints,
		d.ManualPoints, d.ExistingPoints, d.TournamentsPlayed, d.Championships, d.RunnerUps,
		d.SemiFinals,
	)
	if err != nil {
		return fmt.Errorf("failed to apply standing delta for player %d in league %d: %w", playerID, leagueID, err)
	}
	return nil
}

func (r *postgresLeagueStandingRepository) Get(ctx context.Context, leagueID, playerID int) (*models.LeagueStanding, error) {
	query := `
		SELECT id, league_id, player_id, total_points, group_stage_points, knockout_stage_points,
		       manual_points, existing_points, tournaments_played, championships, runner_ups,
		       semi_finals, updated_at
		FROM league_standings
		WHERE league_id = $1 AND player_id = $2`

	s := &models.LeagueStanding{}
	err := r.db.QueryRowContext(ctx, query, leagueID, playerID).Scan(
		&s.ID, &s.LeagueID, &s.PlayerID, &s.TotalPoints, &s.GroupStagePoints, &s.KnockoutStagePoints,
		&s.ManualPoints, &s.ExistingPoints, &s.TournamentsPlayed, &s.Championships, &s.RunnerUps,
		&s.SemiFinals, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueStandingNotFound
		}
		return nil, fmt.Errorf("failed to scan standing (%d, %d): %w", leagueID, playerID, err)
	}
	return s, nil
}

func (r *postgresLeagueStandingRepository) ListByLeague(ctx context.Context, leagueID int) ([]*models.LeagueStanding, error) {
	query := `
		SELECT s.id, s.league_id, s.player_id, s.total_points, s.group_stage_points,
		       s.knockout_stage_points, s.manual_points, s.existing_points, s.tournaments_played,
		       s.championships, s.runner_ups, s.semi_finals, s.updated_at, p.name
		FROM league_standings s
		JOIN players p ON p.id = s.player_id
		WHERE s.league_id = $1
		ORDER BY s.total_points DESC, s.championships DESC, p.name ASC`

	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings of league %d: %w", leagueID, err)
	}
	defer rows.Close()

	standings := make([]*models.LeagueStanding, 0)
	for rows.Next() {
		var s models.LeagueStanding
		if err := rows.Scan(
			&s.ID, &s.LeagueID, &s.PlayerID, &s.TotalPoints, &s.GroupStagePoints,
			&s.KnockoutStagePoints, &s.ManualPoints, &s.ExistingPoints, &s.TournamentsPlayed,
			&s.Championships, &s.RunnerUps, &s.SemiFinals, &s.UpdatedAt, &s.PlayerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", err)
		}
		standings = append(standings, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during standing rows iteration: %w", err)
	}
	return standings, nil
}
