package models

// PlayerMatchStats is the aggregated per-player result of a match, recomputed
// from legs and throws whenever legs change. Stored copies on the match row are
// a cache of this, never the source of truth.
type PlayerMatchStats struct {
	LegsWon    int     `json:"legs_won"`
	TotalScore int     `json:"total_score"`
	TotalDarts int     `json:"total_darts"`
	Average    float64 `json:"average"`
}

type MatchStatistics struct {
	Player1 PlayerMatchStats `json:"player1"`
	Player2 PlayerMatchStats `json:"player2"`
}
