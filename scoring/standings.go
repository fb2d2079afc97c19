package scoring

import "github.com/Tomkoooo/tdarts/models"

// GroupStandings ranks the players of one group from its matches. Pending
// matches are skipped, so a partially played group yields a provisional table;
// callers gating qualifier selection must check completeness themselves.
//
// Players must be passed in original seed order: the ranking is descending by
// points, tie-broken by leg difference, then legs won, then head-to-head
// between exactly two tied players, and finally by that seed order, which
// makes the output deterministic for identical inputs.
func GroupStandings(matches []models.Match, players []models.TournamentPlayer, pointsPerWin int) []models.GroupStanding {
	rows := make([]models.GroupStanding, len(players))
	index := make(map[int]int, len(players))
	for i, p := range players {
		rows[i] = models.GroupStanding{PlayerID: p.ID, PlayerName: p.Name}
		index[p.ID] = i
	}

	// winners[a][b] = true when a beat b in a finished direct match.
	winners := make(map[int]map[int]bool)

	for _, m := range matches {
		if m.Status != models.MatchStatusFinished || m.Player1ID == nil || m.Player2ID == nil {
			continue
		}
		i1, ok1 := index[*m.Player1ID]
		i2, ok2 := index[*m.Player2ID]
		if !ok1 || !ok2 {
			continue
		}

		rows[i1].MatchesPlayed++
		rows[i2].MatchesPlayed++
		rows[i1].LegsWon += m.Player1LegsWon
		rows[i1].LegsLost += m.Player2LegsWon
		rows[i2].LegsWon += m.Player2LegsWon
		rows[i2].LegsLost += m.Player1LegsWon

		if m.WinnerID == nil {
			continue
		}
		wi, ok := index[*m.WinnerID]
		if !ok {
			continue
		}
		rows[wi].MatchesWon++
		rows[wi].Points += pointsPerWin
		li := i1
		if wi == i1 {
			li = i2
		}
		if winners[rows[wi].PlayerID] == nil {
			winners[rows[wi].PlayerID] = make(map[int]bool)
		}
		winners[rows[wi].PlayerID][rows[li].PlayerID] = true
	}

	for i := range rows {
		rows[i].LegDifference = rows[i].LegsWon - rows[i].LegsLost
	}

	// Insertion sort keeps the comparison explicit and stable over the seed
	// order the rows started in.
	sorted := make([]models.GroupStanding, 0, len(rows))
	for _, row := range rows {
		pos := len(sorted)
		for pos > 0 && standingLess(row, sorted[pos-1], winners) {
			pos--
		}
		sorted = append(sorted[:pos], append([]models.GroupStanding{row}, sorted[pos:]...)...)
	}

	for i := range sorted {
		sorted[i].Rank = i + 1
	}
	return sorted
}

// standingLess reports whether a ranks strictly above b.
func standingLess(a, b models.GroupStanding, winners map[int]map[int]bool) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.LegDifference != b.LegDifference {
		return a.LegDifference > b.LegDifference
	}
	if a.LegsWon != b.LegsWon {
		return a.LegsWon > b.LegsWon
	}
	if winners[a.PlayerID][b.PlayerID] {
		return true
	}
	// Head-to-head loss or no direct result: keep seed order.
	return false
}

// GroupComplete reports whether every match of the group has finished.
func GroupComplete(matches []models.Match) bool {
	for _, m := range matches {
		if m.Status != models.MatchStatusFinished {
			return false
		}
	}
	return true
}
