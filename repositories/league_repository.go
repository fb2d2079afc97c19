package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/lib/pq"
)

var (
	ErrLeagueNotFound     = errors.New("league not found")
	ErrAttachmentNotFound = errors.New("league attachment not found")
	// ErrAlreadyAttached guards against double-counting a tournament: the
	// attachment primary key rejects a second attach of the same pair.
	ErrAlreadyAttached = errors.New("tournament already attached to this league")
)

type LeagueRepository interface {
	Create(ctx context.Context, exec SQLExecutor, league *models.League) error
	GetByID(ctx context.Context, id int) (*models.League, error)
	ListByClub(ctx context.Context, clubID int) ([]*models.League, error)

	CreateAttachment(ctx context.Context, exec SQLExecutor, attachment *models.LeagueAttachment) error
	GetAttachment(ctx context.Context, leagueID, tournamentID int) (*models.LeagueAttachment, error)
	ListAttachmentsByTournament(ctx context.Context, tournamentID int) ([]*models.LeagueAttachment, error)
	DeleteAttachment(ctx context.Context, exec SQLExecutor, leagueID, tournamentID int) error

	CreatePointsLog(ctx context.Context, exec SQLExecutor, row *models.LeagueTournamentPoints) error
	ListPointsLog(ctx context.Context, leagueID, tournamentID int) ([]*models.LeagueTournamentPoints, error)
	DeletePointsLog(ctx context.Context, exec SQLExecutor, leagueID, tournamentID int) error

	CreateAdjustment(ctx context.Context, exec SQLExecutor, adjustment *models.LeagueAdjustment) error
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLeagueRepository) Create(ctx context.Context, exec SQLExecutor, league *models.League) error {
	query := `
		INSERT INTO leagues (club_id, name, scoring_json)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, league.ClubID, league.Name, league.ScoringJSON).
		Scan(&league.ID, &league.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create league %q: %w", league.Name, err)
	}
	return nil
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, id int) (*models.League, error) {
	query := `SELECT id, club_id, name, scoring_json, created_at FROM leagues WHERE id = $1`
	league := &models.League{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&league.ID, &league.ClubID, &league.Name, &league.ScoringJSON, &league.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to scan league %d: %w", id, err)
	}
	return league, nil
}

func (r *postgresLeagueRepository) ListByClub(ctx context.Context, clubID int) ([]*models.League, error) {
	query := `SELECT id, club_id, name, scoring_json, created_at FROM leagues WHERE club_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues of club %d: %w", clubID, err)
	}
	defer rows.Close()

	leagues := make([]*models.League, 0)
	for rows.Next() {
		var l models.League
		if err := rows.Scan(&l.ID, &l.ClubID, &l.Name, &l.ScoringJSON, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan league row: %w", err)
		}
		leagues = append(leagues, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during league rows iteration: %w", err)
	}
	return leagues, nil
}

func (r *postgresLeagueRepository) CreateAttachment(ctx context.Context, exec SQLExecutor, a *models.LeagueAttachment) error {
	query := `
		INSERT INTO league_tournaments (league_id, tournament_id, calculate_points)
		VALUES ($1, $2, $3)
		RETURNING attached_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, a.LeagueID, a.TournamentID, a.CalculatePoints).
		Scan(&a.AttachedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrAlreadyAttached
	}
	if err != nil {
		return fmt.Errorf("failed to attach tournament %d to league %d: %w", a.TournamentID, a.LeagueID, err)
	}
	return nil
}

func (r *postgresLeagueRepository) GetAttachment(ctx context.Context, leagueID, tournamentID int) (*models.LeagueAttachment, error) {
	query := `
		SELECT league_id, tournament_id, calculate_points, attached_at
		FROM league_tournaments
		WHERE league_id = $1 AND tournament_id = $2`

	a := &models.LeagueAttachment{}
	err := r.db.QueryRowContext(ctx, query, leagueID, tournamentID).
		Scan(&a.LeagueID, &a.TournamentID, &a.CalculatePoints, &a.AttachedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to scan attachment (%d, %d): %w", leagueID, tournamentID, err)
	}
	return a, nil
}

func (r *postgresLeagueRepository) ListAttachmentsByTournament(ctx context.Context, tournamentID int) ([]*models.LeagueAttachment, error) {
	query := `
		SELECT league_id, tournament_id, calculate_points, attached_at
		FROM league_tournaments
		WHERE tournament_id = $1`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	attachments := make([]*models.LeagueAttachment, 0)
	for rows.Next() {
		var a models.LeagueAttachment
		if err := rows.Scan(&a.LeagueID, &a.TournamentID, &a.CalculatePoints, &a.AttachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		attachments = append(attachments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during attachment rows iteration: %w", err)
	}
	return attachments, nil
}

func (r *postgresLeagueRepository) DeleteAttachment(ctx context.Context, exec SQLExecutor, leagueID, tournamentID int) error {
	query := `DELETE FROM league_tournaments WHERE league_id = $1 AND tournament_id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, leagueID, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete attachment (%d, %d): %w", leagueID, tournamentID, err)
	}
	return checkAffectedRows(result, ErrAttachmentNotFound)
}

func (r *postgresLeagueRepository) CreatePointsLog(ctx context.Context, exec SQLExecutor, row *models.LeagueTournamentPoints) error {
	query := `
		INSERT INTO league_tournament_points (league_id, tournament_id, player_id, points, bucket, finish_position)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		row.LeagueID, row.TournamentID, row.PlayerID, row.Points, row.Bucket, row.FinishPosition)
	if err != nil {
		return fmt.Errorf("failed to log points for player %d in league %d: %w", row.PlayerID, row.LeagueID, err)
	}
	return nil
}

func (r *postgresLeagueRepository) ListPointsLog(ctx context.Context, leagueID, tournamentID int) ([]*models.LeagueTournamentPoints, error) {
	query := `
		SELECT league_id, tournament_id, player_id, points, bucket, finish_position
		FROM league_tournament_points
		WHERE league_id = $1 AND tournament_id = $2`

	rows, err := r.db.QueryContext(ctx, query, leagueID, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points log (%d, %d): %w", leagueID, tournamentID, err)
	}
	defer rows.Close()

	log := make([]*models.LeagueTournamentPoints, 0)
	for rows.Next() {
		var row models.LeagueTournamentPoints
		if err := rows.Scan(&row.LeagueID, &row.TournamentID, &row.PlayerID, &row.Points, &row.Bucket, &row.FinishPosition); err != nil {
			return nil, fmt.Errorf("failed to scan points log row: %w", err)
		}
		log = append(log, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during points log rows iteration: %w", err)
	}
	return log, nil
}

func (r *postgresLeagueRepository) DeletePointsLog(ctx context.Context, exec SQLExecutor, leagueID, tournamentID int) error {
	query := `DELETE FROM league_tournament_points WHERE league_id = $1 AND tournament_id = $2`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, leagueID, tournamentID); err != nil {
		return fmt.Errorf("failed to delete points log (%d, %d): %w", leagueID, tournamentID, err)
	}
	return nil
}

func (r *postgresLeagueRepository) CreateAdjustment(ctx context.Context, exec SQLExecutor, adj *models.LeagueAdjustment) error {
	query := `
		INSERT INTO league_adjustments (league_id, player_id, points, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, adj.LeagueID, adj.PlayerID, adj.Points, adj.Reason).
		Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create adjustment for player %d in league %d: %w", adj.PlayerID, adj.LeagueID, err)
	}
	return nil
}
