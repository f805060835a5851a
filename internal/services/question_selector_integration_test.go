//go:build integration

package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSelectorTestEnv(t *testing.T) (*QuestionSelectorService, *AdaptiveService, *sql.DB, int) {
	db := SharedTestDBSetup(t)
	t.Cleanup(func() { db.Close() })

	cfg, err := config.NewConfig()
	require.NoError(t, err)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	adaptive := NewAdaptiveServiceWithLogger(db, cfg, logger)
	selector := NewQuestionSelectorServiceWithLogger(db, cfg, adaptive, logger)
	userID := mustCreateTestUser(t, db, "selector_user", 10)
	return selector, adaptive, db, userID
}

func seedQuestionPool(t *testing.T, db *sql.DB, subject models.Subject, ageGroup, perDifficulty int) {
	t.Helper()
	for _, difficulty := range []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
		for i := 0; i < perDifficulty; i++ {
			_, err := db.ExecContext(context.Background(), `
				INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx)
				VALUES ($1, $2, $3, $4, ARRAY['a','b','c','d'], 0)`,
				subject, difficulty, ageGroup,
				fmt.Sprintf("%s %s q%d for age %d", subject, difficulty, i, ageGroup))
			require.NoError(t, err)
		}
	}
}

func TestQuestionSelector_SelectQuestions_Manual_Integration(t *testing.T) {
	selector, _, db, userID := newSelectorTestEnv(t)
	ctx := context.Background()

	seedQuestionPool(t, db, models.SubjectMath, 10, 15)

	result, err := selector.SelectQuestions(ctx, userID, models.SubjectMath, 10, models.SelectionModeManual, models.DifficultyEasy, 10)
	require.NoError(t, err)
	assert.Len(t, result.Questions, 10)
	assert.Equal(t, 10, result.TargetAge)
	assert.Equal(t, 0, result.ExcludedCount)
	for _, q := range result.Questions {
		assert.Equal(t, models.DifficultyEasy, q.Difficulty)
		assert.Equal(t, 10, q.AgeGroup)
	}
}

func TestQuestionSelector_SelectQuestions_Adaptive_Integration(t *testing.T) {
	selector, adaptive, db, userID := newSelectorTestEnv(t)
	ctx := context.Background()

	// Assessment at 60% leaves adjustment 0, so the target age is 10.
	_, err := adaptive.InitializeMetrics(ctx, userID, models.SubjectMath, 60, 10)
	require.NoError(t, err)
	seedQuestionPool(t, db, models.SubjectMath, 10, 15)

	result, err := selector.SelectQuestions(ctx, userID, models.SubjectMath, 10, models.SelectionModeAdaptive, "", 10)
	require.NoError(t, err)
	assert.Len(t, result.Questions, 10)
	assert.Equal(t, 10, result.TargetAge)
	assert.Nil(t, result.RecentAccuracy)

	// No quiz history yet: default 30/40/30 mix.
	assert.Equal(t, 3, result.Distribution.Easy)
	assert.Equal(t, 4, result.Distribution.Medium)
	assert.Equal(t, 3, result.Distribution.Hard)
}

func TestQuestionSelector_SelectQuestions_AdaptiveRequiresAssessment_Integration(t *testing.T) {
	selector, _, db, userID := newSelectorTestEnv(t)

	seedQuestionPool(t, db, models.SubjectMath, 10, 5)

	_, err := selector.SelectQuestions(context.Background(), userID, models.SubjectMath, 10, models.SelectionModeAdaptive, "", 5)
	assert.ErrorIs(t, err, contextutils.ErrAssessmentNotCompleted)
}

func TestQuestionSelector_SelectQuestions_ShortBucketReported_Integration(t *testing.T) {
	selector, _, db, userID := newSelectorTestEnv(t)
	ctx := context.Background()

	// Only 4 easy questions exist for a 10-question easy quiz.
	for i := 0; i < 4; i++ {
		_, err := db.ExecContext(ctx, `
			INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx)
			VALUES ('science', 'easy', 10, $1, ARRAY['a','b'], 0)`, fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}

	result, err := selector.SelectQuestions(ctx, userID, models.SubjectScience, 10, models.SelectionModeManual, models.DifficultyEasy, 10)
	require.NoError(t, err)
	assert.Len(t, result.Questions, 4)
	assert.Equal(t, 6, result.ExcludedCount)
}

func TestQuestionSelector_SelectQuestions_EmptyPool_Integration(t *testing.T) {
	selector, _, _, userID := newSelectorTestEnv(t)

	_, err := selector.SelectQuestions(context.Background(), userID, models.SubjectHistory, 10, models.SelectionModeManual, models.DifficultyMedium, 5)
	assert.ErrorIs(t, err, contextutils.ErrNoQuestionsAvailable)
}

func TestQuestionSelector_SelectQuestions_InactiveExcluded_Integration(t *testing.T) {
	selector, _, db, userID := newSelectorTestEnv(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx, active)
		VALUES ('math', 'medium', 10, 'retired question', ARRAY['a','b'], 0, FALSE)`)
	require.NoError(t, err)

	_, err = selector.SelectQuestions(ctx, userID, models.SubjectMath, 10, models.SelectionModeManual, models.DifficultyMedium, 5)
	assert.ErrorIs(t, err, contextutils.ErrNoQuestionsAvailable)
}
