package services

import (
	"context"
	"database/sql"
	"fmt"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// AssessmentResult is the outcome of a placement assessment submission.
type AssessmentResult struct {
	ScorePercentage float64                    `json:"score_percentage"`
	SkillLevel      int                        `json:"skill_level"`
	Metrics         *models.PerformanceMetrics `json:"edl_init"`
	PointsAwarded   int                        `json:"points_awarded"`
}

// AssessmentServiceInterface defines the interface for assessment scoring
type AssessmentServiceInterface interface {
	SubmitAssessment(ctx context.Context, userID int, subject models.Subject, correct, total, chronologicalAge int) (*AssessmentResult, error)
}

// AssessmentService scores the one-time placement quiz and initializes the
// adaptive state from the result. The attempt row and the adaptive init are
// the contract; the point award is best-effort.
type AssessmentService struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *observability.Logger
	adaptive AdaptiveServiceInterface
	points   PointsServiceInterface
	streaks  StreakServiceInterface
}

// NewAssessmentServiceWithLogger creates a new AssessmentService with a logger
func NewAssessmentServiceWithLogger(db *sql.DB, cfg *config.Config, adaptive AdaptiveServiceInterface, points PointsServiceInterface, streaks StreakServiceInterface, logger *observability.Logger) *AssessmentService {
	return &AssessmentService{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		adaptive: adaptive,
		points:   points,
		streaks:  streaks,
	}
}

// SubmitAssessment scores the submission, appends the attempt to the ledger
// and initializes the subject's adaptive state.
func (s *AssessmentService) SubmitAssessment(ctx context.Context, userID int, subject models.Subject, correct, total, chronologicalAge int) (result0 *AssessmentResult, err error) {
	ctx, span := observability.TraceAssessmentFunction(ctx, "submit_assessment",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(subject)),
		attribute.Int("assessment.correct", correct),
		attribute.Int("assessment.total", total),
	)
	defer observability.FinishSpan(span, &err)

	if !subject.Valid() {
		return nil, contextutils.ErrInvalidSubject
	}
	if total <= 0 || correct < 0 || correct > total {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"invalid assessment counts: %d/%d", correct, total)
	}

	scorePct := float64(correct) / float64(total) * 100
	skillLevel := SkillLevelForScore(scorePct)
	span.SetAttributes(
		observability.AttributeScorePct(scorePct),
		attribute.Int("assessment.skill_level", skillLevel),
	)

	var attemptID int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (user_id, subject, total_questions, correct_answers, score_percentage, attempt_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		userID, subject, total, correct, scorePct, models.AttemptTypeAssessment).Scan(&attemptID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to save assessment attempt")
	}

	metrics, err := s.adaptive.InitializeMetrics(ctx, userID, subject, scorePct, chronologicalAge)
	if err != nil {
		return nil, err
	}

	result := &AssessmentResult{
		ScorePercentage: scorePct,
		SkillLevel:      skillLevel,
		Metrics:         metrics,
	}

	// Secondary effects. Failures here never undo the attempt or the
	// adaptive init.
	award, awardErr := s.points.AwardPoints(ctx, userID, s.cfg.Gamification.AssessmentBasePoints,
		models.TransactionAssessmentCompletion, fmt.Sprintf("quiz_attempt:%d", attemptID),
		map[string]interface{}{"subject": subject})
	if awardErr != nil {
		s.logger.Error(ctx, "Failed to award assessment points", awardErr, map[string]interface{}{
			"user_id": userID,
			"subject": subject,
		})
	} else {
		result.PointsAwarded = award.PointsAwarded
		if _, updateErr := s.db.ExecContext(ctx,
			`UPDATE quiz_attempts SET points_earned = $2 WHERE id = $1`,
			attemptID, award.PointsAwarded); updateErr != nil {
			s.logger.Error(ctx, "Failed to record assessment points on attempt", updateErr, map[string]interface{}{
				"attempt_id": attemptID,
			})
		}
	}

	if _, streakErr := s.streaks.RecordActivity(ctx, userID); streakErr != nil {
		s.logger.Error(ctx, "Failed to record assessment activity for streak", streakErr, map[string]interface{}{
			"user_id": userID,
		})
	}

	return result, nil
}
