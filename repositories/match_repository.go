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
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchStatusStale is returned when a guarded status transition found
	// the match no longer in the expected status.
	ErrMatchStatusStale = errors.New("match status changed concurrently")
	// ErrBracketSlotConflict is returned when two knockout matches collide on
	// the same (tournament, round, bracket_position) coordinates.
	ErrBracketSlotConflict = errors.New("bracket slot already occupied")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByCoordinates(ctx context.Context, tournamentID, round, bracketPosition int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, matchType *models.MatchType) ([]*models.Match, error)
	ListByGroup(ctx context.Context, groupID int) ([]*models.Match, error)

	UpdateResult(ctx context.Context, exec SQLExecutor, id int, stats models.MatchStatistics, p1LegsWon, p2LegsWon int, winnerID int) error
	UpdateStatusIfCurrent(ctx context.Context, exec SQLExecutor, id int, expected, next models.MatchStatus) error
	UpdatePlayers(ctx context.Context, exec SQLExecutor, id int, player1ID, player2ID *int) error

	// SeatPlayerInSlot writes one player reference into one slot of the match
	// addressed by (tournament, round, bracket_position), as a single targeted
	// UPDATE. Slot is 1 or 2. Two concurrent calls for the two slots of the
	// same match cannot clobber each other.
	SeatPlayerInSlot(ctx context.Context, exec SQLExecutor, tournamentID, round, bracketPosition, slot, playerID int) error
	// ActivateIfSeated flips a placeholder to pending iff both slots are seated.
	ActivateIfSeated(ctx context.Context, exec SQLExecutor, tournamentID, round, bracketPosition int) error

	CountKnockoutByStatus(ctx context.Context, tournamentID int, status models.MatchStatus) (int, error)
	NextBracketPosition(ctx context.Context, tournamentID, round int) (int, error)
	DeleteKnockout(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, group_id, type, player1_id, player2_id, legs_to_win, status,
	winner_id, round, bracket_position, board_number, p1_legs_won, p2_legs_won,
	p1_average, p2_average, p1_darts, p2_darts, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, group_id, type, player1_id, player2_id, legs_to_win, status,
			 winner_id, round, bracket_position, board_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		m.TournamentID, m.GroupID, m.Type, m.Player1ID, m.Player2ID, m.LegsToWin, m.Status,
		m.WinnerID, m.Round, m.BracketPosition, m.BoardNumber,
	).Scan(&m.ID, &m.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrBracketSlotConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create match for tournament %d: %w", m.TournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByCoordinates(ctx context.Context, tournamentID, round, bracketPosition int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE tournament_id = $1 AND round = $2 AND bracket_position = $3 AND type = 'knockout'`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, tournamentID, round, bracketPosition))
}

func (r *postgresMatchRepository) scanMatch(row *sql.Row) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.GroupID, &m.Type, &m.Player1ID, &m.Player2ID,
		&m.LegsToWin, &m.Status, &m.WinnerID, &m.Round, &m.BracketPosition, &m.BoardNumber,
		&m.Player1LegsWon, &m.Player2LegsWon, &m.Player1Average, &m.Player2Average,
		&m.Player1Darts, &m.Player2Darts, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, matchType *models.MatchType) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if matchType != nil {
		query += ` AND type = $2`
		args = append(args, *matchType)
	}
	query += ` ORDER BY round ASC NULLS FIRST, bracket_position ASC NULLS FIRST, id ASC`

	return r.queryMatches(ctx, query, args...)
}

func (r *postgresMatchRepository) ListByGroup(ctx context.Context, groupID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE group_id = $1 ORDER BY id ASC`
	return r.queryMatches(ctx, query, groupID)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(
			&m.ID, &m.TournamentID, &m.GroupID, &m.Type, &m.Player1ID, &m.Player2ID,
			&m.LegsToWin, &m.Status, &m.WinnerID, &m.Round, &m.BracketPosition, &m.BoardNumber,
			&m.Player1LegsWon, &m.Player2LegsWon, &m.Player1Average, &m.Player2Average,
			&m.Player1Darts, &m.Player2Darts, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, stats models.MatchStatistics, p1LegsWon, p2LegsWon int, winnerID int) error {
	query := `
		UPDATE matches
		SET status = 'finished', winner_id = $1,
		    p1_legs_won = $2, p2_legs_won = $3,
		    p1_average = $4, p2_average = $5,
		    p1_darts = $6, p2_darts = $7
		WHERE id = $8`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		winnerID, p1LegsWon, p2LegsWon,
		stats.Player1.Average, stats.Player2.Average,
		stats.Player1.TotalDarts, stats.Player2.TotalDarts, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update result of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatusIfCurrent(ctx context.Context, exec SQLExecutor, id int, expected, next models.MatchStatus) error {
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update status of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusStale)
}

func (r *postgresMatchRepository) UpdatePlayers(ctx context.Context, exec SQLExecutor, id int, player1ID, player2ID *int) error {
	query := `UPDATE matches SET player1_id = $1, player2_id = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, player1ID, player2ID, id)
	if err != nil {
		return fmt.Errorf("failed to update players of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SeatPlayerInSlot(ctx context.Context, exec SQLExecutor, tournamentID, round, bracketPosition, slot, playerID int) error {
	column := "player1_id"
	if slot == 2 {
		column = "player2_id"
	}
	// One targeted UPDATE addressed by coordinates. The sibling slot is never
	// read or written here, so concurrent advancements cannot lose updates.
	query := fmt.Sprintf(`
		UPDATE matches SET %s = $1
		WHERE tournament_id = $2 AND round = $3 AND bracket_position = $4 AND type = 'knockout'`, column)

	result, err := r.getExecutor(exec).ExecContext(ctx, query, playerID, tournamentID, round, bracketPosition)
	if err != nil {
		return fmt.Errorf("failed to seat player %d at (%d, r%d, p%d) slot %d: %w",
			playerID, tournamentID, round, bracketPosition, slot, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ActivateIfSeated(ctx context.Context, exec SQLExecutor, tournamentID, round, bracketPosition int) error {
	query := `
		UPDATE matches SET status = 'pending'
		WHERE tournament_id = $1 AND round = $2 AND bracket_position = $3 AND type = 'knockout'
		  AND status = 'placeholder' AND player1_id IS NOT NULL AND player2_id IS NOT NULL`

	// Zero affected rows is normal: the sibling feeder has not finished yet,
	// or a concurrent advancement already activated the match.
	_, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID, round, bracketPosition)
	if err != nil {
		return fmt.Errorf("failed to activate match at (%d, r%d, p%d): %w", tournamentID, round, bracketPosition, err)
	}
	return nil
}

func (r *postgresMatchRepository) CountKnockoutByStatus(ctx context.Context, tournamentID int, status models.MatchStatus) (int, error) {
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND type = 'knockout' AND status = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tournamentID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count knockout matches of tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) NextBracketPosition(ctx context.Context, tournamentID, round int) (int, error) {
	query := `SELECT COALESCE(MAX(bracket_position) + 1, 0) FROM matches
		WHERE tournament_id = $1 AND round = $2 AND type = 'knockout'`
	var position int
	if err := r.db.QueryRowContext(ctx, query, tournamentID, round).Scan(&position); err != nil {
		return 0, fmt.Errorf("failed to find next bracket position of tournament %d round %d: %w", tournamentID, round, err)
	}
	return position, nil
}

func (r *postgresMatchRepository) DeleteKnockout(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	query := `DELETE FROM matches WHERE tournament_id = $1 AND type = 'knockout'`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to delete knockout matches of tournament %d: %w", tournamentID, err)
	}
	return nil
}
