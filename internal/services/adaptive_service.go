package services

import (
	"context"
	"database/sql"
	"errors"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// AdaptiveServiceInterface defines the interface for the adaptive difficulty engine
type AdaptiveServiceInterface interface {
	InitializeMetrics(ctx context.Context, userID int, subject models.Subject, assessmentScorePct float64, chronologicalAge int) (*models.PerformanceMetrics, error)
	UpdateAfterQuiz(ctx context.Context, userID int, subject models.Subject, scorePct float64) (*models.PerformanceMetrics, error)
	GetMetrics(ctx context.Context, userID int, subject models.Subject) (*models.PerformanceMetrics, error)
	GetAllMetrics(ctx context.Context, userID int) ([]*models.PerformanceMetrics, error)
}

// AdaptiveService maintains the per user x subject difficulty state. Every
// mutation runs inside a row-locked transaction so concurrent submissions
// cannot lose an update.
type AdaptiveService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewAdaptiveServiceWithLogger creates a new AdaptiveService with a logger
func NewAdaptiveServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *AdaptiveService {
	return &AdaptiveService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

const performanceMetricsColumns = `
	id, user_id, subject, chronological_age, performance_adjustment, effective_age,
	last_quiz_scores, total_quizzes_completed, has_completed_assessment,
	last_quiz_at, created_at, updated_at
`

func scanPerformanceMetrics(row interface{ Scan(...interface{}) error }) (*models.PerformanceMetrics, error) {
	var pm models.PerformanceMetrics
	err := row.Scan(
		&pm.ID, &pm.UserID, &pm.Subject, &pm.ChronologicalAge, &pm.PerformanceAdjustment,
		&pm.EffectiveAge, &pm.LastQuizScores, &pm.TotalQuizzesCompleted,
		&pm.HasCompletedAssessment, &pm.LastQuizAt, &pm.CreatedAt, &pm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// InitializeMetrics creates (or re-initializes) the adaptive state for a
// subject from an assessment result. The starting adjustment comes from the
// shared score bands.
func (s *AdaptiveService) InitializeMetrics(ctx context.Context, userID int, subject models.Subject, assessmentScorePct float64, chronologicalAge int) (result0 *models.PerformanceMetrics, err error) {
	ctx, span := observability.TraceAdaptiveFunction(ctx, "initialize_metrics",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(subject)),
		observability.AttributeScorePct(assessmentScorePct),
	)
	defer observability.FinishSpan(span, &err)

	if chronologicalAge < models.MinContentAge || chronologicalAge > models.MaxContentAge {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"chronological age %d outside supported range [%d,%d]",
			chronologicalAge, models.MinContentAge, models.MaxContentAge)
	}

	adjustment := InitialAdjustmentForScore(assessmentScorePct)
	effectiveAge := models.ClampEffectiveAge(chronologicalAge, adjustment)
	span.SetAttributes(
		observability.AttributeAdjustment(adjustment),
		observability.AttributeEffectiveAge(effectiveAge),
	)

	// Re-taking the assessment resets the subject's adaptive state.
	query := `
		INSERT INTO performance_metrics (
			user_id, subject, chronological_age, performance_adjustment, effective_age,
			last_quiz_scores, total_quizzes_completed, has_completed_assessment, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, '{}', 0, TRUE, NOW())
		ON CONFLICT (user_id, subject) DO UPDATE SET
			chronological_age = EXCLUDED.chronological_age,
			performance_adjustment = EXCLUDED.performance_adjustment,
			effective_age = EXCLUDED.effective_age,
			last_quiz_scores = '{}',
			total_quizzes_completed = 0,
			has_completed_assessment = TRUE,
			updated_at = NOW()
		RETURNING ` + performanceMetricsColumns

	pm, err := scanPerformanceMetrics(s.db.QueryRowContext(ctx, query, userID, subject, chronologicalAge, adjustment, effectiveAge))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to initialize performance metrics")
	}
	return pm, nil
}

// UpdateAfterQuiz pushes a practice-quiz score into the rolling window and,
// on every third completed quiz, moves the adjustment one step based on
// rolling accuracy. Runs under a row lock so two concurrent submissions
// serialize instead of clobbering each other.
func (s *AdaptiveService) UpdateAfterQuiz(ctx context.Context, userID int, subject models.Subject, scorePct float64) (result0 *models.PerformanceMetrics, err error) {
	ctx, span := observability.TraceAdaptiveFunction(ctx, "update_after_quiz",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(subject)),
		observability.AttributeScorePct(scorePct),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback adaptive update", rbErr)
			}
		}
	}()

	lockQuery := `
		SELECT ` + performanceMetricsColumns + `
		FROM performance_metrics
		WHERE user_id = $1 AND subject = $2 AND has_completed_assessment
		FOR UPDATE`

	pm, err := scanPerformanceMetrics(tx.QueryRowContext(ctx, lockQuery, userID, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrAssessmentNotCompleted
		}
		return nil, contextutils.WrapError(err, "failed to lock performance metrics")
	}

	scores := append([]float64(pm.LastQuizScores), scorePct)
	if len(scores) > models.RecentScoreWindow {
		scores = scores[len(scores)-models.RecentScoreWindow:]
	}
	pm.LastQuizScores = scores
	pm.TotalQuizzesCompleted++

	// Checkpoint: every third quiz, re-evaluate the adjustment from the
	// rolling accuracy.
	if pm.TotalQuizzesCompleted%models.AdjustmentCheckpoint == 0 {
		if acc := pm.RecentAccuracy(); acc != nil {
			switch {
			case *acc >= adjustmentRaiseThreshold && pm.PerformanceAdjustment < models.MaxAdjustment:
				pm.PerformanceAdjustment++
			case *acc < adjustmentLowerThreshold && pm.PerformanceAdjustment > models.MinAdjustment:
				pm.PerformanceAdjustment--
			}
		}
	}
	pm.EffectiveAge = models.ClampEffectiveAge(pm.ChronologicalAge, pm.PerformanceAdjustment)

	span.SetAttributes(
		observability.AttributeAdjustment(pm.PerformanceAdjustment),
		observability.AttributeEffectiveAge(pm.EffectiveAge),
		attribute.Int("adaptive.total_quizzes", pm.TotalQuizzesCompleted),
	)

	updateQuery := `
		UPDATE performance_metrics
		SET performance_adjustment = $3,
		    effective_age = $4,
		    last_quiz_scores = $5,
		    total_quizzes_completed = $6,
		    last_quiz_at = NOW(),
		    updated_at = NOW()
		WHERE user_id = $1 AND subject = $2
		RETURNING ` + performanceMetricsColumns

	pm, err = scanPerformanceMetrics(tx.QueryRowContext(ctx, updateQuery,
		userID, subject, pm.PerformanceAdjustment, pm.EffectiveAge,
		pq.Float64Array(pm.LastQuizScores), pm.TotalQuizzesCompleted))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update performance metrics")
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit adaptive update")
	}
	return pm, nil
}

// GetMetrics returns the adaptive state for one subject. A missing row means
// the user has not completed the subject's assessment yet, which callers
// treat differently from a generic not-found.
func (s *AdaptiveService) GetMetrics(ctx context.Context, userID int, subject models.Subject) (result0 *models.PerformanceMetrics, err error) {
	ctx, span := observability.TraceAdaptiveFunction(ctx, "get_metrics",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(subject)),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + performanceMetricsColumns + `
		FROM performance_metrics
		WHERE user_id = $1 AND subject = $2 AND has_completed_assessment`

	pm, err := scanPerformanceMetrics(s.db.QueryRowContext(ctx, query, userID, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrAssessmentNotCompleted
		}
		return nil, contextutils.WrapError(err, "failed to query performance metrics")
	}
	return pm, nil
}

// GetAllMetrics returns the adaptive state for every subject the user has
// been assessed in.
func (s *AdaptiveService) GetAllMetrics(ctx context.Context, userID int) (result0 []*models.PerformanceMetrics, err error) {
	ctx, span := observability.TraceAdaptiveFunction(ctx, "get_all_metrics",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + performanceMetricsColumns + `
		FROM performance_metrics
		WHERE user_id = $1 AND has_completed_assessment
		ORDER BY subject`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query performance metrics")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*models.PerformanceMetrics
	for rows.Next() {
		pm, scanErr := scanPerformanceMetrics(rows)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan performance metrics")
		}
		out = append(out, pm)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate performance metrics")
	}
	return out, nil
}
