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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentCodeConflict = errors.New("tournament code already in use")
	// ErrTournamentStatusStale is returned when a guarded status transition
	// found the tournament no longer in the expected status.
	ErrTournamentStatusStale = errors.New("tournament status changed concurrently")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetByCode(ctx context.Context, code string) (*models.Tournament, error)
	// UpdateStatusIfCurrent transitions the status only when the row still has
	// the expected one, as a single compare-and-set UPDATE.
	UpdateStatusIfCurrent(ctx context.Context, exec SQLExecutor, id int, expected, next models.TournamentStatus) error

	AddPlayer(ctx context.Context, exec SQLExecutor, player *models.TournamentPlayer) error
	ListPlayers(ctx context.Context, tournamentID int) ([]*models.TournamentPlayer, error)
	AssignPlayerToGroup(ctx context.Context, exec SQLExecutor, tournamentPlayerID, groupID, groupSeed int) error

	CreateGroup(ctx context.Context, exec SQLExecutor, group *models.Group) error
	ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, code, club_id, name, format, status, legs_to_win, points_per_win, boards_count, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (code, club_id, name, format, status, legs_to_win, points_per_win, boards_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Code, t.ClubID, t.Name, t.Format, t.Status, t.LegsToWin, t.PointsPerWin, t.BoardsCount,
	).Scan(&t.ID, &t.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrTournamentCodeConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create tournament %q: %w", t.Name, err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE code = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, code))
}

func (r *postgresTournamentRepository) scanTournament(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(&t.ID, &t.Code, &t.ClubID, &t.Name, &t.Format, &t.Status,
		&t.LegsToWin, &t.PointsPerWin, &t.BoardsCount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) UpdateStatusIfCurrent(ctx context.Context, exec SQLExecutor, id int, expected, next models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update status of tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusStale)
}

func (r *postgresTournamentRepository) AddPlayer(ctx context.Context, exec SQLExecutor, p *models.TournamentPlayer) error {
	query := `
		INSERT INTO tournament_players (tournament_id, player_id, name, seed, group_id, group_seed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.TournamentID, p.PlayerID, p.Name, p.Seed, p.GroupID, p.GroupSeed,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to add player %d to tournament %d: %w", p.PlayerID, p.TournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) ListPlayers(ctx context.Context, tournamentID int) ([]*models.TournamentPlayer, error) {
	query := `
		SELECT id, tournament_id, player_id, name, seed, group_id, group_seed
		FROM tournament_players
		WHERE tournament_id = $1
		ORDER BY seed ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	players := make([]*models.TournamentPlayer, 0)
	for rows.Next() {
		var p models.TournamentPlayer
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.PlayerID, &p.Name, &p.Seed, &p.GroupID, &p.GroupSeed); err != nil {
			return nil, fmt.Errorf("failed to scan tournament player row: %w", err)
		}
		players = append(players, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament player rows iteration: %w", err)
	}
	return players, nil
}

func (r *postgresTournamentRepository) AssignPlayerToGroup(ctx context.Context, exec SQLExecutor, tournamentPlayerID, groupID, groupSeed int) error {
	query := `UPDATE tournament_players SET group_id = $1, group_seed = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, groupID, groupSeed, tournamentPlayerID)
	if err != nil {
		return fmt.Errorf("failed to assign player %d to group %d: %w", tournamentPlayerID, groupID, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresTournamentRepository) CreateGroup(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	query := `
		INSERT INTO groups (tournament_id, sort_order, board_number)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, g.TournamentID, g.SortOrder, g.BoardNumber).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to create group for tournament %d: %w", g.TournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error) {
	query := `
		SELECT id, tournament_id, sort_order, board_number
		FROM groups
		WHERE tournament_id = $1
		ORDER BY sort_order ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.TournamentID, &g.SortOrder, &g.BoardNumber); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during group rows iteration: %w", err)
	}
	return groups, nil
}
