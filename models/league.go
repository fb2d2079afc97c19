package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PointsBucket identifies which breakdown bucket a standing delta belongs to.
// Manual and existing points are kept apart so automatic recompute can skip
// them and audits can list them.
type PointsBucket string

const (
	BucketGroupStage    PointsBucket = "group_stage"
	BucketKnockoutStage PointsBucket = "knockout_stage"
	BucketManual        PointsBucket = "manual"
	BucketExisting      PointsBucket = "existing"
)

// ScoringConfig is the league's point scheme, stored as JSON text on the
// league row (leagues.scoring_json).
type ScoringConfig struct {
	// Points for players eliminated in the group stage.
	GroupDropPoints int `json:"group_drop_points"`
	// Points by the knockout round a player lost in. The final round is
	// covered by RunnerUpPoints/ChampionPoints instead.
	RoundPoints    map[int]int `json:"round_points"`
	RunnerUpPoints int         `json:"runner_up_points"`
	ChampionPoints int         `json:"champion_points"`
}

type League struct {
	ID          int       `json:"id" db:"id"`
	ClubID      int       `json:"club_id" db:"club_id"`
	Name        string    `json:"name" db:"name"`
	ScoringJSON string    `json:"-" db:"scoring_json"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	Scoring *ScoringConfig `json:"scoring,omitempty" db:"-"`
}

// ParseScoring decodes ScoringJSON into League.Scoring.
func (l *League) ParseScoring() error {
	cfg := &ScoringConfig{}
	if l.ScoringJSON != "" {
		if err := json.Unmarshal([]byte(l.ScoringJSON), cfg); err != nil {
			return fmt.Errorf("invalid scoring config for league %d: %w", l.ID, err)
		}
	}
	l.Scoring = cfg
	return nil
}

// LeagueAttachment links a finished tournament to a league. CalculatePoints
// false is the "averages only" mode: participation is recorded but no points
// are distributed.
type LeagueAttachment struct {
	LeagueID        int       `json:"league_id" db:"league_id"`
	TournamentID    int       `json:"tournament_id" db:"tournament_id"`
	CalculatePoints bool      `json:"calculate_points" db:"calculate_points"`
	AttachedAt      time.Time `json:"attached_at" db:"attached_at"`
}

// LeagueTournamentPoints is one logged delta an attachment contributed to one
// player. Detach replays these rows negatively instead of recomputing from the
// current scoring config, which may have changed since attachment.
type LeagueTournamentPoints struct {
	LeagueID       int          `json:"league_id" db:"league_id"`
	TournamentID   int          `json:"tournament_id" db:"tournament_id"`
	PlayerID       int          `json:"player_id" db:"player_id"`
	Points         int          `json:"points" db:"points"`
	Bucket         PointsBucket `json:"bucket" db:"bucket"`
	FinishPosition int          `json:"finish_position" db:"finish_position"`
}

// LeagueStanding accumulates one player's running totals within a league.
// One row per (league, player); all mutations are additive targeted updates.
type LeagueStanding struct {
	ID                  int       `json:"id" db:"id"`
	LeagueID            int       `json:"league_id" db:"league_id"`
	PlayerID            int       `json:"player_id" db:"player_id"`
	TotalPoints         int       `json:"total_points" db:"total_points"`
	GroupStagePoints    int       `json:"group_stage_points" db:"group_stage_points"`
	KnockoutStagePoints int       `json:"knockout_stage_points" db:"knockout_stage_points"`
	ManualPoints        int       `json:"manual_points" db:"manual_points"`
	ExistingPoints      int       `json:"existing_points" db:"existing_points"`
	TournamentsPlayed   int       `json:"tournaments_played" db:"tournaments_played"`
	Championships       int       `json:"championships" db:"championships"`
	RunnerUps           int       `json:"runner_ups" db:"runner_ups"`
	SemiFinals          int       `json:"semi_finals" db:"semi_finals"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`

	PlayerName string `json:"player_name,omitempty" db:"-"`
}

// LeagueAdjustment is an audited manual point correction.
type LeagueAdjustment struct {
	ID        int       `json:"id" db:"id"`
	LeagueID  int       `json:"league_id" db:"league_id"`
	PlayerID  int       `json:"player_id" db:"player_id"`
	Points    int       `json:"points" db:"points"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
