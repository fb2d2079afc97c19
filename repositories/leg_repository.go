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
	ErrLegNotFound = errors.New("leg not found")
	// ErrDuplicateLegNumber is the write-time rejection of a leg whose number
	// collides with an existing leg of the same match, enforced by the
	// UNIQUE (match_id, leg_number) constraint.
	ErrDuplicateLegNumber = errors.New("leg number already exists for this match")
)

type LegRepository interface {
	// Create inserts the leg and its throws atomically.
	Create(ctx context.Context, exec SQLExecutor, leg *models.Leg) error
	ListByMatch(ctx context.Context, matchID int) ([]models.Leg, error)
}

type postgresLegRepository struct {
	db *sql.DB
}

func NewPostgresLegRepository(db *sql.DB) LegRepository {
	return &postgresLegRepository{db: db}
}

func (r *postgresLegRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLegRepository) Create(ctx context.Context, exec SQLExecutor, leg *models.Leg) error {
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO legs (match_id, leg_number, winner_id, p1_darts, p2_darts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		leg.MatchID, leg.LegNumber, leg.WinnerID, leg.Player1Darts, leg.Player2Darts,
	).Scan(&leg.ID, &leg.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return fmt.Errorf("%w: match %d leg %d", ErrDuplicateLegNumber, leg.MatchID, leg.LegNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to create leg %d of match %d: %w", leg.LegNumber, leg.MatchID, err)
	}

	throwQuery := `
		INSERT INTO throws (leg_id, player_id, throw_order, score, darts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	for i := range leg.Throws {
		th := &leg.Throws[i]
		th.LegID = leg.ID
		if err := executor.QueryRowContext(ctx, throwQuery,
			th.LegID, th.PlayerID, th.ThrowOrder, th.Score, th.Darts,
		).Scan(&th.ID); err != nil {
			return fmt.Errorf("failed to create throw %d of leg %d: %w", th.ThrowOrder, leg.ID, err)
		}
	}
	return nil
}

func (r *postgresLegRepository) ListByMatch(ctx context.Context, matchID int) ([]models.Leg, error) {
	query := `
		SELECT id, match_id, leg_number, winner_id, p1_darts, p2_darts, created_at
		FROM legs
		WHERE match_id = $1
		ORDER BY leg_number ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs of match %d: %w", matchID, err)
	}
	defer rows.Close()

	legs := make([]models.Leg, 0)
	index := make(map[int]int)
	for rows.Next() {
		var leg models.Leg
		if err := rows.Scan(&leg.ID, &leg.MatchID, &leg.LegNumber, &leg.WinnerID,
			&leg.Player1Darts, &leg.Player2Darts, &leg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leg row: %w", err)
		}
		index[leg.ID] = len(legs)
		legs = append(legs, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leg rows iteration: %w", err)
	}
	if len(legs) == 0 {
		return legs, nil
	}

	throwQuery := `
		SELECT t.id, t.leg_id, t.player_id, t.throw_order, t.score, t.darts
		FROM throws t
		JOIN legs l ON l.id = t.leg_id
		WHERE l.match_id = $1
		ORDER BY t.leg_id ASC, t.throw_order ASC`

	throwRows, err := r.db.QueryContext(ctx, throwQuery, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query throws of match %d: %w", matchID, err)
	}
	defer throwRows.Close()

	for throwRows.Next() {
		var th models.Throw
		if err := throwRows.Scan(&th.ID, &th.LegID, &th.PlayerID, &th.ThrowOrder, &th.Score, &th.Darts); err != nil {
			return nil, fmt.Errorf("failed to scan throw row: %w", err)
		}
		if i, ok := index[th.LegID]; ok {
			legs[i].Throws = append(legs[i].Throws, th)
		}
	}
	if err := throwRows.Err(); err != nil {
		return nil, fmt.Errorf("error during throw rows iteration: %w", err)
	}
	return legs, nil
}
