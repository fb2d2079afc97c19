package services

import (
	"context"
	"testing"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playOutKnockout creates a tournament, runs its whole knockout and leaves it
// finished, returning the tournament and its players in seed order.
func playOutKnockout(t *testing.T, f *tournamentFixture, names ...string) (*models.Tournament, []*models.TournamentPlayer) {
	t.Helper()
	ctx := context.Background()

	created, err := f.tournamentSvc.CreateTournament(ctx, CreateTournamentParams{
		Name:        "league feeder",
		Format:      models.FormatKnockout,
		PlayerNames: names,
	})
	require.NoError(t, err)

	_, err = f.knockoutSvc.GenerateKnockout(ctx, created.Code, GenerateKnockoutParams{})
	require.NoError(t, err)

	// Round by round, player1 of every pending match wins.
	for {
		pending := 0
		knockoutType := models.MatchTypeKnockout
		matches, err := f.matchRepo.ListByTournament(ctx, created.ID, &knockoutType)
		require.NoError(t, err)
		for _, m := range matches {
			if m.Status != models.MatchStatusPending {
				continue
			}
			pending++
			require.NoError(t, f.matchRepo.UpdateResult(ctx, nil, m.ID, models.MatchStatistics{}, 3, 0, *m.Player1ID))
			updated, err := f.matchRepo.GetByID(ctx, m.ID)
			require.NoError(t, err)
			require.NoError(t, f.knockoutSvc.AdvanceWinner(ctx, updated, *m.Player1ID))
		}
		if pending == 0 {
			break
		}
	}

	tournament, err := f.tournamentRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.TournamentStatusFinished, tournament.Status)

	players, err := f.tournamentRepo.ListPlayers(ctx, created.ID)
	require.NoError(t, err)
	return tournament, players
}

func seasonScoring() models.ScoringConfig {
	return models.ScoringConfig{
		GroupDropPoints: 1,
		RoundPoints:     map[int]int{1: 2},
		RunnerUpPoints:  6,
		ChampionPoints:  10,
	}
}

func TestAttachTournament_DistributesPoints(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	tournament, players := playOutKnockout(t, f, "a", "b", "c", "d")
	league, err := f.leagueSvc.CreateLeague(ctx, CreateLeagueParams{Name: "season", Scoring: seasonScoring()})
	require.NoError(t, err)

	require.NoError(t, f.leagueSvc.AttachTournament(ctx, league.ID, tournament.ID, true))

	standings, err := f.leagueSvc.GetStandings(ctx, league.ID)
	require.NoError(t, err)
	require.Len(t, standings, 4)

	byPlayer := make(map[int]*models.LeagueStanding)
	for _, row := range standings {
		byPlayer[row.PlayerID] = row
	}

	// Player1 always wins, so seed order is finish order: champion, runner-up,
	// then the two semifinal losers on round-1 points.
	champion := byPlayer[players[0].PlayerID]
	assert.Equal(t, 10, champion.TotalPoints)
	assert.Equal(t, 10, champion.KnockoutStagePoints)
	assert.Equal(t, 1, champion.Championships)
	assert.Equal(t, 1, champion.TournamentsPlayed)

	runnerUp := byPlayer[players[1].PlayerID]
	assert.Equal(t, 6, runnerUp.TotalPoints)
	assert.Equal(t, 1, runnerUp.RunnerUps)

	for _, semiLoser := range []int{players[2].PlayerID, players[3].PlayerID} {
		row := byPlayer[semiLoser]
		assert.Equal(t, 2, row.TotalPoints)
		assert.Equal(t, 1, row.SemiFinals)
	}
}

func TestAttachTournament_AveragesOnlyMode(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	tournament, _ := playOutKnockout(t, f, "a", "b")
	league, err := f.leagueSvc.CreateLeague(ctx, CreateLeagueParams{Name: "casual", Scoring: seasonScoring()})
	require.NoError(t, err)

	require.NoError(t, f.leagueSvc.AttachTournament(ctx, league.ID, tournament.ID, false))

	standings, err := f.leagueSvc.GetStandings(ctx, league.ID)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	for _, row := range standings {
		assert.Equal(t, 0, row.TotalPoints)
		assert.Equal(t, 1, row.TournamentsPlayed)
	}
}

func TestAttachTournament_Guards(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	league, err := f.leagueSvc.CreateLeague(ctx, CreateLeagueParams{Name: "guards", Scoring: seasonScoring()})
	require.NoError(t, err)

	// Unfinished tournaments cannot join a league.
	unfinished, err := f.tournamentSvc.CreateTournament(ctx, CreateTournamentParams{
		Name: "ongoing", Format: models.FormatKnockout, PlayerNames: []string{"a", "b"},
	})
	require.NoError(t, err)
	err = f.leagueSvc.AttachTournament(ctx, league.ID, unfinished.ID, true)
	assert.ErrorIs(t, err, ErrTournamentStatusConflict)

	tournament, _ := playOutKnockout(t, f, "c", "d")
	require.NoError(t, f.leagueSvc.AttachTournament(ctx, league.ID, tournament.ID, true))

	// A second attach of the same tournament must never double-count.
	err = f.leagueSvc.AttachTournament(ctx, league.ID, tournament.ID, true)
	assert.ErrorIs(t, err, ErrTournamentAlreadyInLeague)

	err = f.leagueSvc.AttachTournament(ctx, 99999, tournament.ID, true)
	assert.ErrorIs(t, err, ErrLeagueNotFound)
}

func TestDetachTournament_RestoresPriorStandings(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	first, _ := playOutKnockout(t, f, "a", "b", "c", "d")
	league, err := f.leagueSvc.CreateLeague(ctx, CreateLeagueParams{Name: "restore", Scoring: seasonScoring()})
	require.NoError(t, err)
	require.NoError(t, f.leagueSvc.AttachTournament(ctx, league.ID, first.ID, true))

	// A manual adjustment on top of the attachment must survive the detach.
	require.NoError(t, f.leagueSvc.AdjustPlayerPoints(ctx, league.ID, AdjustPointsParams{
		PlayerID: 1, PointsAdjustment: 5, Reason: "committee decision",
	}))

	before, err := f.leagueSvc.GetStandings(ctx, league.ID)
	require.NoError(t, err)

	second, _ := playOutKnockout(t, f, "a", "c", "b", "d")
	require.NoError(t, f.leagueSvc.AttachTournament(ctx, league.ID, second.ID, true))
	require.NoError(t, f.leagueSvc.DetachTournament(ctx, league.ID, second.ID))

	after, err := f.leagueSvc.GetStandings(ctx, league.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	byPlayer := func(rows []*models.LeagueStanding) map[int]models.LeagueStanding {
		out := make(map[int]models.LeagueStanding, len(rows))
		for _, row := range rows {
			out[row.PlayerID] = *row
		}
		return out
	}
	beforeRows, afterRows := byPlayer(before), byPlayer(after)
	for playerID, b := range beforeRows {
		a := afterRows[playerID]
		assert.Equal(t, b.TotalPoints, a.TotalPoints, "player %d total", playerID)
		assert.Equal(t, b.KnockoutStagePoints, a.KnockoutStagePoints, "player %d knockout", playerID)
		assert.Equal(t, b.ManualPoints, a.ManualPoints, "player %d manual", playerID)
		assert.Equal(t, b.TournamentsPlayed, a.TournamentsPlayed, "player %d played", playerID)
		assert.Equal(t, b.Championships, a.Championships, "player %d titles", playerID)
		assert.Equal(t, b.RunnerUps, a.RunnerUps, "player %d runner-ups", playerID)
		assert.Equal(t, b.SemiFinals, a.SemiFinals, "player %d semis", playerID)
	}

	err = f.leagueSvc.DetachTournament(ctx, league.ID, second.ID)
	assert.ErrorIs(t, err, ErrTournamentNotInLeague)
}

func TestAdjustPlayerPoints_RequiresReason(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	league, err := f.leagueSvc.CreateLeague(ctx, CreateLeagueParams{Name: "audit", Scoring: seasonScoring()})
	require.NoError(t, err)

	err = f.leagueSvc.AdjustPlayerPoints(ctx, league.ID, AdjustPointsParams{PlayerID: 1, PointsAdjustment: 4})
	assert.ErrorIs(t, err, ErrAdjustmentNoReason)

	require.NoError(t, f.leagueSvc.AdjustPlayerPoints(ctx, league.ID, AdjustPointsParams{
		PlayerID: 1, PointsAdjustment: 4, Reason: "scorer error in week 3",
	}))
	standing, err := f.standingRepo.Get(ctx, league.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, standing.TotalPoints)
	assert.Equal(t, 4, standing.ManualPoints)
	require.Len(t, f.store.adjustments, 1)
	assert.Equal(t, "scorer error in week 3", f.store.adjustments[0].Reason)
}

func TestRecordExistingPoints(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	league, err := f.leagueSvc.CreateLeague(ctx, CreateLeagueParams{Name: "import", Scoring: seasonScoring()})
	require.NoError(t, err)

	require.NoError(t, f.leagueSvc.RecordExistingPoints(ctx, league.ID, 7, 42))

	standing, err := f.standingRepo.Get(ctx, league.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 42, standing.TotalPoints)
	assert.Equal(t, 42, standing.ExistingPoints)
	assert.Equal(t, 0, standing.KnockoutStagePoints)
}

func TestCreateLeague_Validation(t *testing.T) {
	f := newTournamentFixture(t)

	_, err := f.leagueSvc.CreateLeague(context.Background(), CreateLeagueParams{Scoring: seasonScoring()})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
