//go:build integration
// +build integration

package services

import (
	"context"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupService_NewCleanupServiceWithLogger(t *testing.T) {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := NewCleanupServiceWithLogger(nil, logger)

	assert.NotNil(t, service)
	assert.Nil(t, service.db)
	assert.NotNil(t, service.logger)
}

func TestCleanupService_CleanupRetiredQuestions_EmptyDatabase(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := NewCleanupServiceWithLogger(db, logger)

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM questions").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = service.CleanupRetiredQuestions(context.Background())
	assert.NoError(t, err)
}

func TestCleanupService_CleanupRetiredQuestions_MixedQuestions(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := NewCleanupServiceWithLogger(db, logger)

	// Two active questions, two retired. One retired question is referenced
	// by attempt history and must survive the cleanup.
	userID := mustCreateTestUser(t, db, "cleanup_student", 11)

	var referencedID int
	err := db.QueryRow(`
		INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx, active)
		VALUES ('math', 'easy', 11, 'What is 2+2?', ARRAY['3','4','5','6'], 1, FALSE)
		RETURNING id`).Scan(&referencedID)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx, active)
		VALUES
		('math', 'easy', 11, 'What is 3+3?', ARRAY['5','6','7','8'], 1, TRUE),
		('science', 'medium', 12, 'What planet is third from the sun?', ARRAY['Mars','Earth','Venus','Jupiter'], 1, TRUE),
		('math', 'hard', 14, 'What is 12*12?', ARRAY['124','144','154','164'], 1, FALSE)`)
	require.NoError(t, err)

	var quizAttemptID int
	err = db.QueryRow(`
		INSERT INTO quiz_attempts (user_id, subject, total_questions, correct_answers, score_percentage)
		VALUES ($1, 'math', 1, 1, 100)
		RETURNING id`, userID).Scan(&quizAttemptID)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO question_attempts (quiz_attempt_id, question_id, selected_idx, is_correct)
		VALUES ($1, $2, 1, TRUE)`, quizAttemptID, referencedID)
	require.NoError(t, err)

	err = service.CleanupRetiredQuestions(context.Background())
	assert.NoError(t, err)

	// The unreferenced retired question is gone, everything else stays.
	var total int
	err = db.QueryRow("SELECT COUNT(*) FROM questions").Scan(&total)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	var referencedCount int
	err = db.QueryRow("SELECT COUNT(*) FROM questions WHERE id = $1", referencedID).Scan(&referencedCount)
	require.NoError(t, err)
	assert.Equal(t, 1, referencedCount)
}

func TestCleanupService_CleanupOrphanedQuestionAttempts(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := NewCleanupServiceWithLogger(db, logger)

	userID := mustCreateTestUser(t, db, "cleanup_student2", 12)

	var questionID int
	err := db.QueryRow(`
		INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx, active)
		VALUES ('english', 'easy', 12, 'Pick the noun.', ARRAY['run','dog','blue','fast'], 1, TRUE)
		RETURNING id`).Scan(&questionID)
	require.NoError(t, err)

	var quizAttemptID int
	err = db.QueryRow(`
		INSERT INTO quiz_attempts (user_id, subject, total_questions, correct_answers, score_percentage)
		VALUES ($1, 'english', 2, 1, 50)
		RETURNING id`, userID).Scan(&quizAttemptID)
	require.NoError(t, err)

	// One attached attempt and one orphaned attempt (its question was
	// deleted, the FK nulled the reference).
	_, err = db.Exec(`
		INSERT INTO question_attempts (quiz_attempt_id, question_id, selected_idx, is_correct)
		VALUES ($1, $2, 1, TRUE), ($1, NULL, 0, FALSE)`, quizAttemptID, questionID)
	require.NoError(t, err)

	err = service.CleanupOrphanedQuestionAttempts(context.Background())
	assert.NoError(t, err)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM question_attempts").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The parent quiz attempt with its aggregate score is untouched.
	err = db.QueryRow("SELECT COUNT(*) FROM quiz_attempts WHERE id = $1", quizAttemptID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCleanupService_RunFullCleanup_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := NewCleanupServiceWithLogger(db, logger)

	err := service.RunFullCleanup(context.Background())
	assert.NoError(t, err)

	stats, err := service.GetCleanupStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats["retired_questions"])
	assert.Equal(t, 0, stats["orphaned_question_attempts"])
}

func TestCleanupService_CleanupRetiredQuestions_ContextCancellation(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := NewCleanupServiceWithLogger(db, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := service.CleanupRetiredQuestions(ctx)
	assert.Error(t, err)
}
