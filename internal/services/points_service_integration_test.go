//go:build integration

package services

import (
	"context"
	"database/sql"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPointsTestService(t *testing.T) (*PointsService, *sql.DB, int) {
	db := SharedTestDBSetup(t)
	t.Cleanup(func() { db.Close() })

	cfg, err := config.NewConfig()
	require.NoError(t, err)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	userID := mustCreateTestUser(t, db, "points_user", 12)
	return NewPointsServiceWithLogger(db, cfg, logger), db, userID
}

func TestPointsService_AwardPoints_Integration(t *testing.T) {
	svc, db, userID := newPointsTestService(t)
	ctx := context.Background()

	award, err := svc.AwardPoints(ctx, userID, 50, models.TransactionQuizCompletion, "quiz_attempt:1", map[string]interface{}{
		"subject": "math",
	})
	require.NoError(t, err)

	// Fresh user: streak 0 and level 1, both multipliers 1.0.
	assert.Equal(t, 50, award.PointsAwarded)
	assert.Equal(t, 1.0, award.StreakMultiplier)
	assert.Equal(t, 1.0, award.LevelMultiplier)
	assert.Equal(t, int64(50), award.NewTotalXP)
	assert.Equal(t, 1, award.NewLevel)
	assert.False(t, award.LeveledUp)

	// One ledger row with a dedup key was written.
	var count int
	var dedupKey string
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(dedup_key::text)
		FROM point_transactions WHERE user_id = $1`, userID).Scan(&count, &dedupKey)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, dedupKey)
}

func TestPointsService_AwardPoints_RetryDoesNotPayTwice_Integration(t *testing.T) {
	svc, db, userID := newPointsTestService(t)
	ctx := context.Background()

	first, err := svc.AwardPoints(ctx, userID, 50, models.TransactionQuizCompletion, "quiz_attempt:9", nil)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, int64(50), first.NewTotalXP)

	// Same entity-linked award again, as a retried request would send it.
	second, err := svc.AwardPoints(ctx, userID, 50, models.TransactionQuizCompletion, "quiz_attempt:9", nil)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 50, second.PointsAwarded)
	assert.Equal(t, int64(50), second.NewTotalXP)

	var count int
	var total int64
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM point_transactions WHERE user_id = $1`, userID).Scan(&count)
	require.NoError(t, err)
	err = db.QueryRowContext(ctx, `SELECT total_xp FROM user_stats WHERE user_id = $1`, userID).Scan(&total)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(50), total)

	// A different attempt for the same user still pays.
	third, err := svc.AwardPoints(ctx, userID, 50, models.TransactionQuizCompletion, "quiz_attempt:10", nil)
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
	assert.Equal(t, int64(100), third.NewTotalXP)
}

func TestPointsService_AwardPoints_MultipliersApply_Integration(t *testing.T) {
	svc, db, userID := newPointsTestService(t)
	ctx := context.Background()

	// Put the user at streak 7 and level 5 before the award.
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, streak_days, overall_level, total_xp)
		VALUES ($1, 7, 5, 160000)`, userID)
	require.NoError(t, err)

	award, err := svc.AwardPoints(ctx, userID, 50, models.TransactionAssessmentCompletion, "", nil)
	require.NoError(t, err)

	// floor(50 * 1.2 * 1.1) = 66
	assert.Equal(t, 66, award.PointsAwarded)
	assert.Equal(t, 1.2, award.StreakMultiplier)
	assert.Equal(t, 1.1, award.LevelMultiplier)
}

func TestPointsService_AwardPoints_LevelUp_Integration(t *testing.T) {
	svc, _, userID := newPointsTestService(t)
	ctx := context.Background()

	// Level 2 starts at 100 XP.
	award, err := svc.AwardPoints(ctx, userID, 120, models.TransactionQuizCompletion, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, award.NewLevel)
	assert.True(t, award.LeveledUp)
	assert.Equal(t, int64(400-120), award.XPToNextLevel)
}

func TestPointsService_AwardPoints_Validation_Integration(t *testing.T) {
	svc, _, userID := newPointsTestService(t)
	ctx := context.Background()

	_, err := svc.AwardPoints(ctx, userID, -5, models.TransactionQuizCompletion, "", nil)
	assert.Error(t, err)

	_, err = svc.AwardPoints(ctx, userID, 10, models.TransactionType("bogus"), "", nil)
	assert.Error(t, err)
}

func TestPointsService_AddSubjectXP_Integration(t *testing.T) {
	svc, db, userID := newPointsTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddSubjectXP(ctx, userID, models.SubjectMath, 60))
	require.NoError(t, svc.AddSubjectXP(ctx, userID, models.SubjectMath, 60))

	var xp, level, quizzes int
	err := db.QueryRowContext(ctx, `
		SELECT xp, level, quizzes_completed FROM subject_stats
		WHERE user_id = $1 AND subject = $2`, userID, models.SubjectMath).Scan(&xp, &level, &quizzes)
	require.NoError(t, err)
	assert.Equal(t, 120, xp)
	assert.Equal(t, 2, level)
	assert.Equal(t, 2, quizzes)
}

func TestPointsService_GetUserStats_CreatesRow_Integration(t *testing.T) {
	svc, _, userID := newPointsTestService(t)

	stats, err := svc.GetUserStats(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, stats.UserID)
	assert.Equal(t, int64(0), stats.TotalXP)
	assert.Equal(t, 1, stats.OverallLevel)
	assert.True(t, stats.StreakFreezeAvailable)
}

func TestPointsService_GetLeaderboard_Integration(t *testing.T) {
	svc, db, userID := newPointsTestService(t)
	ctx := context.Background()

	otherID := mustCreateTestUser(t, db, "points_rival", 13)
	_, err := svc.AwardPoints(ctx, userID, 100, models.TransactionQuizCompletion, "", nil)
	require.NoError(t, err)
	_, err = svc.AwardPoints(ctx, otherID, 300, models.TransactionQuizCompletion, "", nil)
	require.NoError(t, err)

	board, err := svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "points_rival", board[0].Username)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "points_user", board[1].Username)
	assert.Equal(t, 2, board[1].Rank)
}

func TestPointsService_GetRecentTransactions_Integration(t *testing.T) {
	svc, _, userID := newPointsTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.AwardPoints(ctx, userID, 10, models.TransactionQuizCompletion, "", nil)
		require.NoError(t, err)
	}

	txs, err := svc.GetRecentTransactions(ctx, userID, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	for _, pt := range txs {
		assert.Equal(t, models.TransactionQuizCompletion, pt.TransactionType)
		assert.Equal(t, 10, pt.PointsChange)
	}
}
