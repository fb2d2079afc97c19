package services

import (
	"context"
	"testing"

	"github.com/Tomkoooo/tdarts/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinishMatch_TiedResultRejected(t *testing.T) {
	f := newKnockoutFixture(t)

	_, err := f.matchSvc.FinishMatch(context.Background(), f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 3, AllowManualFinish: true,
	})
	assert.ErrorIs(t, err, ErrTiedResult)
}

func TestFinishMatch_PendingNeedsManualFlag(t *testing.T) {
	f := newKnockoutFixture(t)

	_, err := f.matchSvc.FinishMatch(context.Background(), f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 1,
	})
	assert.ErrorIs(t, err, ErrMatchStatusConflict)
}

func TestFinishMatch_NoLegsWithoutManual(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()

	_, err := f.matchSvc.StartMatch(ctx, f.round1[0].ID)
	require.NoError(t, err)

	_, err = f.matchSvc.FinishMatch(ctx, f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 1,
	})
	assert.ErrorIs(t, err, ErrNoLegsRecorded)
}

func TestFinishMatch_LegValidatedFlow(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()
	match := f.round1[0]

	_, err := f.matchSvc.StartMatch(ctx, match.ID)
	require.NoError(t, err)

	// 2-1 over three legs, with throw data on the last one.
	winners := []int{*match.Player1ID, *match.Player2ID, *match.Player1ID}
	for i, w := range winners {
		_, err := f.matchSvc.AddLeg(ctx, match.ID, AddLegParams{
			LegNumber: i + 1,
			WinnerID:  w,
			Throws: []models.Throw{
				{PlayerID: *match.Player1ID, Score: 180},
				{PlayerID: *match.Player2ID, Score: 140},
			},
			Player1Darts: intPtr(15),
			Player2Darts: intPtr(15),
		})
		require.NoError(t, err)
	}

	finished, err := f.matchSvc.FinishMatch(ctx, match.ID, FinishMatchParams{
		Player1LegsWon: 2, Player2LegsWon: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusFinished, finished.Status)
	assert.Equal(t, *match.Player1ID, *finished.WinnerID)
	assert.Equal(t, 45, finished.Player1Darts)
	// 540/45*3 = 36.0
	assert.Equal(t, 36.0, finished.Player1Average)
	assert.Equal(t, 28.0, finished.Player2Average)
}

func TestFinishMatch_LegsWonMismatch(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()
	match := f.round1[0]

	_, err := f.matchSvc.StartMatch(ctx, match.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.matchSvc.AddLeg(ctx, match.ID, AddLegParams{
			LegNumber:    i + 1,
			WinnerID:     *match.Player1ID,
			Player1Darts: intPtr(15),
			Player2Darts: intPtr(12),
		})
		require.NoError(t, err)
	}

	// Declared 3-0 but only two legs recorded.
	_, err = f.matchSvc.FinishMatch(ctx, match.ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 0,
	})
	assert.ErrorIs(t, err, ErrLegsWonMismatch)

	// The manual override accepts the declared score anyway.
	finished, err := f.matchSvc.FinishMatch(ctx, match.ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 0, AllowManualFinish: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, finished.Player1LegsWon)
}

func TestAddLeg_DuplicateLegNumber(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()
	match := f.round1[0]

	_, err := f.matchSvc.StartMatch(ctx, match.ID)
	require.NoError(t, err)

	_, err = f.matchSvc.AddLeg(ctx, match.ID, AddLegParams{LegNumber: 1, WinnerID: *match.Player1ID})
	require.NoError(t, err)

	_, err = f.matchSvc.AddLeg(ctx, match.ID, AddLegParams{LegNumber: 1, WinnerID: *match.Player2ID})
	assert.ErrorIs(t, err, ErrDuplicateLeg)

	legs, err := f.matchSvc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, legs.Legs, 1)
}

func TestAddLeg_RequiresOngoing(t *testing.T) {
	f := newKnockoutFixture(t)

	_, err := f.matchSvc.AddLeg(context.Background(), f.round1[0].ID, AddLegParams{
		LegNumber: 1, WinnerID: *f.round1[0].Player1ID,
	})
	assert.ErrorIs(t, err, ErrMatchStatusConflict)
}

func TestAddLeg_WinnerMustPlay(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()

	_, err := f.matchSvc.StartMatch(ctx, f.round1[0].ID)
	require.NoError(t, err)

	_, err = f.matchSvc.AddLeg(ctx, f.round1[0].ID, AddLegParams{LegNumber: 1, WinnerID: 99999})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestFinishMatch_RefinishNeedsManual(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()

	_, err := f.matchSvc.FinishMatch(ctx, f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 1, AllowManualFinish: true,
	})
	require.NoError(t, err)

	_, err = f.matchSvc.FinishMatch(ctx, f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 2, AllowManualFinish: true,
	})
	assert.ErrorIs(t, err, ErrMatchStatusConflict)
}

func TestFinishMatch_CascadeConflict(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()

	for _, m := range f.round1 {
		_, err := f.matchSvc.FinishMatch(ctx, m.ID, FinishMatchParams{
			Player1LegsWon: 3, Player2LegsWon: 0, AllowManualFinish: true,
		})
		require.NoError(t, err)
	}
	_, err := f.matchSvc.FinishMatch(ctx, f.final.ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 0, AllowManualFinish: true,
	})
	require.NoError(t, err)

	// Correcting a round-1 result now would contradict the played final.
	_, err = f.matchSvc.FinishMatch(ctx, f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 0, Player2LegsWon: 3, IsManual: true, AllowManualFinish: true,
	})
	assert.ErrorIs(t, err, ErrCascadingResultConflict)
}

func TestFinishMatch_ManualCorrectionBeforeDownstreamPlays(t *testing.T) {
	f := newKnockoutFixture(t)
	ctx := context.Background()

	_, err := f.matchSvc.FinishMatch(ctx, f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 3, Player2LegsWon: 0, AllowManualFinish: true,
	})
	require.NoError(t, err)

	// Final not finished yet: the correction goes through and reseats the slot.
	corrected, err := f.matchSvc.FinishMatch(ctx, f.round1[0].ID, FinishMatchParams{
		Player1LegsWon: 0, Player2LegsWon: 3, IsManual: true, AllowManualFinish: true,
	})
	require.NoError(t, err)
	assert.Equal(t, *f.round1[0].Player2ID, *corrected.WinnerID)

	final, err := f.matches.GetByID(ctx, f.final.ID)
	require.NoError(t, err)
	require.NotNil(t, final.Player1ID)
	assert.Equal(t, *f.round1[0].Player2ID, *final.Player1ID)
}
