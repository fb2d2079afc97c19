package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentStatusPending   TournamentStatus = "pending"
	TournamentStatusGroup     TournamentStatus = "group"
	TournamentStatusKnockout  TournamentStatus = "knockout"
	TournamentStatusFinished  TournamentStatus = "finished"
	TournamentStatusCancelled TournamentStatus = "cancelled"
)

type TournamentFormat string

const (
	FormatGroupKnockout TournamentFormat = "group_knockout"
	FormatKnockout      TournamentFormat = "knockout"
)

type Tournament struct {
	ID           int              `json:"id" db:"id"`
	Code         string           `json:"code" db:"code"`
	ClubID       int              `json:"club_id" db:"club_id"`
	Name         string           `json:"name" db:"name"`
	Format       TournamentFormat `json:"format" db:"format"`
	Status       TournamentStatus `json:"status" db:"status"`
	LegsToWin    int              `json:"legs_to_win" db:"legs_to_win"`
	PointsPerWin int              `json:"points_per_win" db:"points_per_win"`
	BoardsCount  int              `json:"boards_count" db:"boards_count"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`

	// Linked data, populated by the service layer, not mapped directly.
	Players []TournamentPlayer `json:"players,omitempty" db:"-"`
	Groups  []Group            `json:"groups,omitempty" db:"-"`
	Matches []Match            `json:"matches,omitempty" db:"-"`
}

// TournamentPlayer is the stable per-tournament reference to a global player.
// Matches, legs and throws all point at this row, never at Player directly.
type TournamentPlayer struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	PlayerID     int    `json:"player_id" db:"player_id"`
	Name         string `json:"name" db:"name"`
	Seed         int    `json:"seed" db:"seed"`
	GroupID      *int   `json:"group_id,omitempty" db:"group_id"`
	GroupSeed    *int   `json:"group_seed,omitempty" db:"group_seed"`
}

type Group struct {
	ID           int `json:"id" db:"id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`
	SortOrder    int `json:"sort_order" db:"sort_order"`
	BoardNumber  int `json:"board_number" db:"board_number"`

	Players   []TournamentPlayer `json:"players,omitempty" db:"-"`
	Matches   []Match            `json:"matches,omitempty" db:"-"`
	Standings []GroupStanding    `json:"standings,omitempty" db:"-"`
}

// GroupStanding is one row of a group table. Standings are recomputed from the
// group's matches on every read, never stored.
type GroupStanding struct {
	PlayerID      int    `json:"player_id"`
	PlayerName    string `json:"player_name"`
	Rank          int    `json:"rank"`
	Points        int    `json:"points"`
	MatchesPlayed int    `json:"matches_played"`
	MatchesWon    int    `json:"matches_won"`
	LegsWon       int    `json:"legs_won"`
	LegsLost      int    `json:"legs_lost"`
	LegDifference int    `json:"leg_difference"`
}
