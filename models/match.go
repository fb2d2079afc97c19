package models

import "time"

// MatchStatus mirrors the match_status ENUM in the database.
//
// Placeholder is the unplayable state of a knockout slot whose feeders have not
// both finished yet; the advancement engine flips it to pending once both
// player slots are seated.
type MatchStatus string

const (
	MatchStatusPlaceholder MatchStatus = "placeholder"
	MatchStatusPending     MatchStatus = "pending"
	MatchStatusOngoing     MatchStatus = "ongoing"
	MatchStatusFinished    MatchStatus = "finished"
)

type MatchType string

const (
	MatchTypeGroup    MatchType = "group"
	MatchTypeKnockout MatchType = "knockout"
)

type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	GroupID      *int        `json:"group_id,omitempty" db:"group_id"`
	Type         MatchType   `json:"type" db:"type"`
	Player1ID    *int        `json:"player1_id,omitempty" db:"player1_id"`
	Player2ID    *int        `json:"player2_id,omitempty" db:"player2_id"`
	LegsToWin    int         `json:"legs_to_win" db:"legs_to_win"`
	Status       MatchStatus `json:"status" db:"status"`
	WinnerID     *int        `json:"winner_id,omitempty" db:"winner_id"`

	// Knockout coordinates. Round starts at 1; BracketPosition is the match's
	// zero-based index within its round. (Round+1, BracketPosition/2) addresses
	// the downstream match, BracketPosition%2 selects its player slot.
	Round           *int `json:"round,omitempty" db:"round"`
	BracketPosition *int `json:"bracket_position,omitempty" db:"bracket_position"`

	BoardNumber *int      `json:"board_number,omitempty" db:"board_number"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	Player1LegsWon int     `json:"player1_legs_won" db:"p1_legs_won"`
	Player2LegsWon int     `json:"player2_legs_won" db:"p2_legs_won"`
	Player1Average float64 `json:"player1_average" db:"p1_average"`
	Player2Average float64 `json:"player2_average" db:"p2_average"`
	Player1Darts   int     `json:"player1_darts" db:"p1_darts"`
	Player2Darts   int     `json:"player2_darts" db:"p2_darts"`

	Legs []Leg `json:"legs,omitempty" db:"-"`
}

// Playable reports whether the match has both player slots seated.
func (m *Match) Playable() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}
