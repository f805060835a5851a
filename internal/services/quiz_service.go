package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// QuizSubmission is a practice-quiz submission. Difficulty is empty for
// adaptive quizzes that mix buckets.
type QuizSubmission struct {
	Subject          models.Subject           `json:"subject"`
	Difficulty       models.Difficulty        `json:"difficulty,omitempty"`
	TotalQuestions   int                      `json:"total_questions"`
	CorrectAnswers   int                      `json:"correct_answers"`
	TimeSpentSeconds int                      `json:"time_spent_seconds"`
	QuestionAttempts []models.QuestionAttempt `json:"question_attempts"`
}

// QuizResult reports the primary save plus whichever secondary effects
// succeeded. Warnings carries the names of effects that failed.
type QuizResult struct {
	Attempt       *models.QuizAttempt        `json:"attempt"`
	EDLUpdate     *models.PerformanceMetrics `json:"edl_update,omitempty"`
	Points        *AwardResult               `json:"points,omitempty"`
	Streak        *StreakUpdate              `json:"streak,omitempty"`
	NewlyUnlocked []*UnlockedAchievement     `json:"newly_unlocked"`
	Warnings      []string                   `json:"warnings,omitempty"`
}

// QuizServiceInterface defines the interface for quiz submission and history
type QuizServiceInterface interface {
	RecordQuizAttempt(ctx context.Context, userID int, submission *QuizSubmission) (*QuizResult, error)
	GetRecentAttempts(ctx context.Context, userID int, subject models.Subject, limit int) ([]*models.QuizAttempt, error)
}

// QuizService owns the quiz-submission flow. The attempt insert is the only
// step allowed to fail the request; the adaptive update, points, streak and
// achievement effects run independently afterwards and are best-effort.
type QuizService struct {
	db           *sql.DB
	cfg          *config.Config
	logger       *observability.Logger
	adaptive     AdaptiveServiceInterface
	points       PointsServiceInterface
	streaks      StreakServiceInterface
	achievements AchievementServiceInterface
}

// NewQuizServiceWithLogger creates a new QuizService with a logger
func NewQuizServiceWithLogger(db *sql.DB, cfg *config.Config, adaptive AdaptiveServiceInterface, points PointsServiceInterface, streaks StreakServiceInterface, achievements AchievementServiceInterface, logger *observability.Logger) *QuizService {
	return &QuizService{
		db:           db,
		cfg:          cfg,
		logger:       logger,
		adaptive:     adaptive,
		points:       points,
		streaks:      streaks,
		achievements: achievements,
	}
}

// RecordQuizAttempt saves the attempt ledger row (and its per-question rows)
// and then fans out the secondary effects.
func (s *QuizService) RecordQuizAttempt(ctx context.Context, userID int, submission *QuizSubmission) (result0 *QuizResult, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "record_quiz_attempt",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(submission.Subject)),
		attribute.Int("quiz.total", submission.TotalQuestions),
		attribute.Int("quiz.correct", submission.CorrectAnswers),
	)
	defer observability.FinishSpan(span, &err)

	if err = s.validate(submission); err != nil {
		return nil, err
	}

	scorePct := float64(submission.CorrectAnswers) / float64(submission.TotalQuestions) * 100
	span.SetAttributes(observability.AttributeScorePct(scorePct))

	attempt, err := s.saveAttempt(ctx, userID, submission, scorePct)
	if err != nil {
		return nil, err
	}

	result := &QuizResult{Attempt: attempt, NewlyUnlocked: []*UnlockedAchievement{}}
	s.runSecondaryEffects(ctx, userID, submission, attempt, result)
	return result, nil
}

func (s *QuizService) validate(submission *QuizSubmission) error {
	if !submission.Subject.Valid() {
		return contextutils.ErrInvalidSubject
	}
	if submission.Difficulty != "" && !submission.Difficulty.Valid() {
		return contextutils.ErrInvalidDifficulty
	}
	if submission.TotalQuestions <= 0 || submission.CorrectAnswers < 0 || submission.CorrectAnswers > submission.TotalQuestions {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"invalid quiz counts: %d/%d", submission.CorrectAnswers, submission.TotalQuestions)
	}
	if submission.TimeSpentSeconds < 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "time spent must be non-negative")
	}
	return nil
}

// saveAttempt writes the attempt and its question rows in one transaction.
// This is the primary save.
func (s *QuizService) saveAttempt(ctx context.Context, userID int, submission *QuizSubmission, scorePct float64) (result0 *models.QuizAttempt, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "save_attempt",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback quiz save", rbErr)
			}
		}
	}()

	var difficulty sql.NullString
	if submission.Difficulty != "" {
		difficulty = sql.NullString{String: string(submission.Difficulty), Valid: true}
	}

	attempt := &models.QuizAttempt{
		UserID:           userID,
		Subject:          submission.Subject,
		Difficulty:       difficulty,
		TotalQuestions:   submission.TotalQuestions,
		CorrectAnswers:   submission.CorrectAnswers,
		ScorePercentage:  scorePct,
		TimeSpentSeconds: submission.TimeSpentSeconds,
		AttemptType:      models.AttemptTypePractice,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (user_id, subject, difficulty, total_questions, correct_answers, score_percentage, time_spent_seconds, attempt_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, completed_at`,
		userID, submission.Subject, difficulty, submission.TotalQuestions,
		submission.CorrectAnswers, scorePct, submission.TimeSpentSeconds,
		models.AttemptTypePractice).Scan(&attempt.ID, &attempt.CompletedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to save quiz attempt")
	}

	for _, qa := range submission.QuestionAttempts {
		if _, execErr := tx.ExecContext(ctx, `
			INSERT INTO question_attempts (quiz_attempt_id, question_id, selected_idx, is_correct, time_spent_seconds)
			VALUES ($1, $2, $3, $4, $5)`,
			attempt.ID, qa.QuestionID, qa.AnswerIndex, qa.IsCorrect, qa.TimeSpentSecs); execErr != nil {
			err = contextutils.WrapError(execErr, "failed to save question attempt")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit quiz save")
	}
	return attempt, nil
}

// runSecondaryEffects applies the adaptive update, points, streak and
// achievement checks in order. Each failure is logged and recorded as a
// warning; none of them roll back the saved attempt.
func (s *QuizService) runSecondaryEffects(ctx context.Context, userID int, submission *QuizSubmission, attempt *models.QuizAttempt, result *QuizResult) {
	ctx, span := observability.TraceQuizFunction(ctx, "run_secondary_effects",
		observability.AttributeUserID(userID),
	)
	defer span.End()

	warn := func(effect string, err error) {
		result.Warnings = append(result.Warnings, effect)
		s.logger.Error(ctx, "Quiz secondary effect failed", err, map[string]interface{}{
			"user_id":    userID,
			"attempt_id": attempt.ID,
			"effect":     effect,
		})
	}

	if metrics, err := s.adaptive.UpdateAfterQuiz(ctx, userID, submission.Subject, attempt.ScorePercentage); err != nil {
		// Practicing without an assessment is allowed; there is just no
		// adaptive state to move.
		if !errors.Is(err, contextutils.ErrAssessmentNotCompleted) {
			warn("adaptive_update", err)
		}
	} else {
		result.EDLUpdate = metrics
	}

	basePoints := submission.CorrectAnswers * s.cfg.Gamification.BasePointsForDifficulty(string(submission.Difficulty))
	if award, err := s.points.AwardPoints(ctx, userID, basePoints,
		models.TransactionQuizCompletion, fmt.Sprintf("quiz_attempt:%d", attempt.ID),
		map[string]interface{}{"subject": submission.Subject, "score": attempt.ScorePercentage}); err != nil {
		warn("points", err)
	} else {
		result.Points = award
		attempt.PointsEarned = award.PointsAwarded
		if _, updateErr := s.db.ExecContext(ctx,
			`UPDATE quiz_attempts SET points_earned = $2 WHERE id = $1`,
			attempt.ID, award.PointsAwarded); updateErr != nil {
			warn("points_backfill", updateErr)
		}
		if subjectErr := s.points.AddSubjectXP(ctx, userID, submission.Subject, award.PointsAwarded); subjectErr != nil {
			warn("subject_xp", subjectErr)
		}
	}

	if streak, err := s.streaks.RecordActivity(ctx, userID); err != nil {
		warn("streak", err)
	} else {
		result.Streak = streak
	}

	if unlocked, err := s.achievements.CheckAchievements(ctx, userID); err != nil {
		warn("achievements", err)
	} else {
		result.NewlyUnlocked = unlocked
	}
}

// GetRecentAttempts returns the newest attempts for a user, optionally
// filtered by subject.
func (s *QuizService) GetRecentAttempts(ctx context.Context, userID int, subject models.Subject, limit int) (result0 []*models.QuizAttempt, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "get_recent_attempts",
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, user_id, subject, difficulty, total_questions, correct_answers,
		       score_percentage, points_earned, time_spent_seconds, attempt_type, completed_at
		FROM quiz_attempts
		WHERE user_id = $1 AND ($2 = '' OR subject = $2)
		ORDER BY completed_at DESC, id DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, string(subject), limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query quiz attempts")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*models.QuizAttempt
	for rows.Next() {
		var a models.QuizAttempt
		if scanErr := rows.Scan(&a.ID, &a.UserID, &a.Subject, &a.Difficulty, &a.TotalQuestions,
			&a.CorrectAnswers, &a.ScorePercentage, &a.PointsEarned, &a.TimeSpentSeconds,
			&a.AttemptType, &a.CompletedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan quiz attempt")
		}
		out = append(out, &a)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate quiz attempts")
	}
	return out, nil
}
