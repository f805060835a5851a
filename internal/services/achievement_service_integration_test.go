//go:build integration

package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAchievementTestService(t *testing.T) (*AchievementService, *sql.DB, int) {
	db := SharedTestDBSetup(t)
	t.Cleanup(func() { db.Close() })

	cfg, err := config.NewConfig()
	require.NoError(t, err)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	points := NewPointsServiceWithLogger(db, cfg, logger)
	userID := mustCreateTestUser(t, db, "achievement_user", 14)
	return NewAchievementServiceWithLogger(db, cfg, points, logger), db, userID
}

func seedTestAchievements(t *testing.T, svc *AchievementService) {
	t.Helper()
	entries := []config.CatalogAchievement{
		{Key: "first_quiz", Name: "First Steps", Criteria: json.RawMessage(`{"type":"quiz_count","count":1}`), PointsReward: 25, Rarity: "common"},
		{Key: "quiz_ten", Name: "Ten Down", Criteria: json.RawMessage(`{"type":"quiz_count","count":10}`), PointsReward: 100, Rarity: "rare"},
		{Key: "streak_3", Name: "Warming Up", Criteria: json.RawMessage(`{"type":"streak_days","count":3}`), PointsReward: 50, Rarity: "common"},
		{Key: "perfect", Name: "Flawless", Criteria: json.RawMessage(`{"type":"perfect_score"}`), PointsReward: 75, Rarity: "epic"},
	}
	n, err := svc.SeedCatalog(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, len(entries), n)
}

func insertTestQuizAttempt(t *testing.T, db *sql.DB, userID int, scorePct float64) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO quiz_attempts (user_id, subject, total_questions, correct_answers, score_percentage)
		VALUES ($1, 'math', 5, $2, $3)`,
		userID, int(scorePct/20), scorePct)
	require.NoError(t, err)
}

func TestAchievementService_CheckAchievements_UnlocksOnce_Integration(t *testing.T) {
	svc, db, userID := newAchievementTestService(t)
	ctx := context.Background()
	seedTestAchievements(t, svc)

	insertTestQuizAttempt(t, db, userID, 80)

	unlocked, err := svc.CheckAchievements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first_quiz", unlocked[0].Achievement.Key)
	assert.Equal(t, 25, unlocked[0].PointsAwarded)

	// Re-check: nothing new.
	unlocked, err = svc.CheckAchievements(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	var counter int
	err = db.QueryRowContext(ctx, `SELECT achievements_unlocked FROM user_stats WHERE user_id = $1`, userID).Scan(&counter)
	require.NoError(t, err)
	assert.Equal(t, 1, counter)
}

func TestAchievementService_CheckAchievements_PerfectScore_Integration(t *testing.T) {
	svc, db, userID := newAchievementTestService(t)
	ctx := context.Background()
	seedTestAchievements(t, svc)

	insertTestQuizAttempt(t, db, userID, 100)

	unlocked, err := svc.CheckAchievements(ctx, userID)
	require.NoError(t, err)

	keys := make([]string, 0, len(unlocked))
	for _, u := range unlocked {
		keys = append(keys, u.Achievement.Key)
	}
	assert.ElementsMatch(t, []string{"first_quiz", "perfect"}, keys)
}

func TestAchievementService_CheckAchievements_StreakCriteria_Integration(t *testing.T) {
	svc, db, userID := newAchievementTestService(t)
	ctx := context.Background()
	seedTestAchievements(t, svc)

	_, err := db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, streak_days) VALUES ($1, 5)`, userID)
	require.NoError(t, err)

	unlocked, err := svc.CheckAchievements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "streak_3", unlocked[0].Achievement.Key)
}

func TestAchievementService_GetUserAchievements_Integration(t *testing.T) {
	svc, db, userID := newAchievementTestService(t)
	ctx := context.Background()
	seedTestAchievements(t, svc)

	insertTestQuizAttempt(t, db, userID, 60)
	_, err := svc.CheckAchievements(ctx, userID)
	require.NoError(t, err)

	mine, err := svc.GetUserAchievements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "first_quiz", mine[0].Key)

	catalog, err := svc.GetCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 4)
}

func TestAchievementService_SeedCatalog_Upserts_Integration(t *testing.T) {
	svc, _, _ := newAchievementTestService(t)
	ctx := context.Background()
	seedTestAchievements(t, svc)

	// Re-seeding with a changed reward updates in place.
	n, err := svc.SeedCatalog(ctx, []config.CatalogAchievement{
		{Key: "first_quiz", Name: "First Steps", Criteria: json.RawMessage(`{"type":"quiz_count","count":1}`), PointsReward: 30, Rarity: "common"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	catalog, err := svc.GetCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 4)
	for _, a := range catalog {
		if a.Key == "first_quiz" {
			assert.Equal(t, 30, a.PointsReward)
		}
	}
}

func TestAchievementService_SeedCatalog_RejectsInvalidCriteria_Integration(t *testing.T) {
	svc, _, _ := newAchievementTestService(t)

	_, err := svc.SeedCatalog(context.Background(), []config.CatalogAchievement{
		{Key: "broken", Name: "Broken", Criteria: json.RawMessage(`{"type":"time_travel"}`), PointsReward: 10, Rarity: "common"},
	})
	assert.Error(t, err)
}
