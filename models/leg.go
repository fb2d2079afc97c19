package models

import "time"

// Leg is one complete game within a match. LegNumber is the authoritative
// chronological order inside its match and must be unique there; the database
// enforces this with a UNIQUE (match_id, leg_number) constraint so duplicates
// are rejected at write time.
type Leg struct {
	ID        int       `json:"id" db:"id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	LegNumber int       `json:"leg_number" db:"leg_number"`
	WinnerID  *int      `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Explicitly recorded dart counts for the leg. When absent, counts are
	// derived from the throws (per-throw darts, then 3 per throw).
	Player1Darts *int `json:"player1_darts,omitempty" db:"p1_darts"`
	Player2Darts *int `json:"player2_darts,omitempty" db:"p2_darts"`

	Throws []Throw `json:"throws,omitempty" db:"-"`
}

type Throw struct {
	ID         int  `json:"id" db:"id"`
	LegID      int  `json:"leg_id" db:"leg_id"`
	PlayerID   int  `json:"player_id" db:"player_id"`
	ThrowOrder int  `json:"throw_order" db:"throw_order"`
	Score      int  `json:"score" db:"score"`
	Darts      *int `json:"darts,omitempty" db:"darts"`
}
