// Package scoring holds the pure computation core of the engine: leg/match
// aggregation and group standings. It has no persistence dependencies so the
// numeric rules can be tested exhaustively.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Tomkoooo/tdarts/models"
)

var (
	// ErrDuplicateLeg is returned when two legs of one match share a leg number.
	ErrDuplicateLeg = errors.New("duplicate leg number in match")
	// ErrLegWithoutWinner is returned when a leg has no recorded winner.
	ErrLegWithoutWinner = errors.New("leg has no recorded winner")
	// ErrUnknownLegWinner is returned when a leg's winner is neither match player.
	ErrUnknownLegWinner = errors.New("leg winner is not a player of the match")
)

// AggregateMatch validates the legs of a match and computes per-player
// statistics. Legs are processed in LegNumber order, which is the
// authoritative chronology; slice order is ignored. A leg number colliding
// with an already accepted one fails the whole aggregation.
//
// Average = (totalScore / totalDarts) * 3, rounded to two decimal places.
func AggregateMatch(legs []models.Leg, player1ID, player2ID int) (models.MatchStatistics, error) {
	var stats models.MatchStatistics

	ordered := make([]models.Leg, len(legs))
	copy(ordered, legs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].LegNumber < ordered[j].LegNumber
	})

	seen := make(map[int]struct{}, len(ordered))
	for _, leg := range ordered {
		if _, dup := seen[leg.LegNumber]; dup {
			return models.MatchStatistics{}, fmt.Errorf("%w: leg %d of match %d", ErrDuplicateLeg, leg.LegNumber, leg.MatchID)
		}
		seen[leg.LegNumber] = struct{}{}

		if leg.WinnerID == nil {
			return models.MatchStatistics{}, fmt.Errorf("%w: leg %d of match %d", ErrLegWithoutWinner, leg.LegNumber, leg.MatchID)
		}
		switch *leg.WinnerID {
		case player1ID:
			stats.Player1.LegsWon++
		case player2ID:
			stats.Player2.LegsWon++
		default:
			return models.MatchStatistics{}, fmt.Errorf("%w: leg %d winner %d", ErrUnknownLegWinner, leg.LegNumber, *leg.WinnerID)
		}

		stats.Player1.TotalScore += throwsScore(leg.Throws, player1ID)
		stats.Player2.TotalScore += throwsScore(leg.Throws, player2ID)
		stats.Player1.TotalDarts += legDarts(leg, player1ID, leg.Player1Darts)
		stats.Player2.TotalDarts += legDarts(leg, player2ID, leg.Player2Darts)
	}

	stats.Player1.Average = ThreeDartAverage(stats.Player1.TotalScore, stats.Player1.TotalDarts)
	stats.Player2.Average = ThreeDartAverage(stats.Player2.TotalScore, stats.Player2.TotalDarts)

	return stats, nil
}

// ThreeDartAverage computes round(totalScore/totalDarts*3, 2). Zero darts
// yields zero rather than a division error.
func ThreeDartAverage(totalScore, totalDarts int) float64 {
	if totalDarts == 0 {
		return 0
	}
	avg := float64(totalScore) / float64(totalDarts) * 3
	return math.Round(avg*100) / 100
}

func throwsScore(throws []models.Throw, playerID int) int {
	total := 0
	for _, th := range throws {
		if th.PlayerID == playerID {
			total += th.Score
		}
	}
	return total
}

// legDarts resolves a player's dart count for one leg. Precedence: the dart
// count stored on the leg, then per-throw dart counts, then 3 per throw.
func legDarts(leg models.Leg, playerID int, stored *int) int {
	if stored != nil {
		return *stored
	}

	darts := 0
	carriesCounts := false
	throws := 0
	for _, th := range leg.Throws {
		if th.PlayerID != playerID {
			continue
		}
		throws++
		if th.Darts != nil {
			carriesCounts = true
			darts += *th.Darts
		} else {
			darts += 3
		}
	}
	if carriesCounts {
		return darts
	}
	return throws * 3
}
