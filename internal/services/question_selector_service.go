package services

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"
	"time"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// DifficultyDistribution is the per-bucket question count for one selection.
type DifficultyDistribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Total returns the sum over all buckets.
func (d DifficultyDistribution) Total() int {
	return d.Easy + d.Medium + d.Hard
}

// SelectionResult is what a selection returns: the shuffled questions, the
// age the pool was targeted at, the requested distribution and how many
// requested slots could not be filled from the bank.
type SelectionResult struct {
	Questions             []*models.Question     `json:"questions"`
	TargetAge             int                    `json:"target_age"`
	PerformanceAdjustment int                    `json:"performance_adjustment"`
	RecentAccuracy        *float64               `json:"recent_accuracy"`
	Distribution          DifficultyDistribution `json:"distribution"`
	ExcludedCount         int                    `json:"excluded_count"`
}

// QuestionSelectorServiceInterface defines the interface for question selection
type QuestionSelectorServiceInterface interface {
	SelectQuestions(ctx context.Context, userID int, subject models.Subject, age int, mode models.SelectionMode, difficulty models.Difficulty, limit int) (*SelectionResult, error)
}

// QuestionSelectorService picks questions from the bank. Adaptive mode
// targets the user's effective age with an accuracy-driven difficulty mix;
// manual mode targets the chronological age at one requested difficulty.
type QuestionSelectorService struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *observability.Logger
	adaptive AdaptiveServiceInterface

	mu  sync.Mutex
	rng *rand.Rand
}

// NewQuestionSelectorServiceWithLogger creates a new QuestionSelectorService with a logger
func NewQuestionSelectorServiceWithLogger(db *sql.DB, cfg *config.Config, adaptive AdaptiveServiceInterface, logger *observability.Logger) *QuestionSelectorService {
	return &QuestionSelectorService{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		adaptive: adaptive,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRandSource replaces the shuffle source. Tests use this for determinism.
func (s *QuestionSelectorService) SetRandSource(src rand.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(src)
}

// MaxSelectionLimit bounds a single selection request.
const MaxSelectionLimit = 50

// DistributionForAccuracy maps rolling accuracy to the difficulty mix for a
// limit. Unknown accuracy gets the balanced mix. Floor easy and hard, medium
// absorbs the remainder, so the counts always sum exactly to limit.
func DistributionForAccuracy(recentAccuracy *float64, limit int) DifficultyDistribution {
	easyRatio, hardRatio := 0.30, 0.30
	switch {
	case recentAccuracy == nil:
		// balanced
	case *recentAccuracy >= 75:
		easyRatio, hardRatio = 0.20, 0.50
	case *recentAccuracy < 60:
		easyRatio, hardRatio = 0.50, 0.20
	}

	easy := int(float64(limit) * easyRatio)
	hard := int(float64(limit) * hardRatio)
	return DifficultyDistribution{
		Easy:   easy,
		Medium: limit - easy - hard,
		Hard:   hard,
	}
}

// SelectQuestions picks up to limit questions for the user. The difficulty
// argument only applies in manual mode.
func (s *QuestionSelectorService) SelectQuestions(ctx context.Context, userID int, subject models.Subject, age int, mode models.SelectionMode, difficulty models.Difficulty, limit int) (result0 *SelectionResult, err error) {
	ctx, span := observability.TraceSelectorFunction(ctx, "select_questions",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(subject)),
		observability.AttributeLimit(limit),
		attribute.String("selection.mode", string(mode)),
	)
	defer observability.FinishSpan(span, &err)

	if limit < 1 || limit > MaxSelectionLimit {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "limit %d outside [1,%d]", limit, MaxSelectionLimit)
	}
	if !mode.Valid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown selection mode %q", mode)
	}

	result := &SelectionResult{}

	switch mode {
	case models.SelectionModeManual:
		if !difficulty.Valid() {
			return nil, contextutils.ErrInvalidDifficulty
		}
		result.TargetAge = clampContentAge(age)
		result.Distribution = manualDistribution(difficulty, limit)

	case models.SelectionModeAdaptive:
		pm, metricsErr := s.adaptive.GetMetrics(ctx, userID, subject)
		if metricsErr != nil {
			if errors.Is(metricsErr, contextutils.ErrAssessmentNotCompleted) {
				return nil, metricsErr
			}
			return nil, contextutils.WrapError(metricsErr, "failed to load adaptive state")
		}
		result.TargetAge = pm.EffectiveAge
		result.PerformanceAdjustment = pm.PerformanceAdjustment
		result.RecentAccuracy = pm.RecentAccuracy()
		result.Distribution = DistributionForAccuracy(result.RecentAccuracy, limit)
	}

	span.SetAttributes(
		observability.AttributeEffectiveAge(result.TargetAge),
		attribute.Int("selection.easy", result.Distribution.Easy),
		attribute.Int("selection.medium", result.Distribution.Medium),
		attribute.Int("selection.hard", result.Distribution.Hard),
	)

	buckets := []struct {
		difficulty models.Difficulty
		count      int
	}{
		{models.DifficultyEasy, result.Distribution.Easy},
		{models.DifficultyMedium, result.Distribution.Medium},
		{models.DifficultyHard, result.Distribution.Hard},
	}

	for _, bucket := range buckets {
		if bucket.count == 0 {
			continue
		}
		questions, fetchErr := s.fetchBucket(ctx, subject, result.TargetAge, bucket.difficulty, bucket.count)
		if fetchErr != nil {
			return nil, fetchErr
		}
		// A short bucket is reported, not silently under-filled.
		result.ExcludedCount += bucket.count - len(questions)
		result.Questions = append(result.Questions, questions...)
	}

	if len(result.Questions) == 0 {
		return nil, &NoQuestionsAvailableError{Subject: subject, TargetAge: result.TargetAge, Requested: limit}
	}

	s.shuffle(result.Questions)
	span.SetAttributes(attribute.Int("selection.excluded", result.ExcludedCount))
	return result, nil
}

func manualDistribution(difficulty models.Difficulty, limit int) DifficultyDistribution {
	switch difficulty {
	case models.DifficultyEasy:
		return DifficultyDistribution{Easy: limit}
	case models.DifficultyHard:
		return DifficultyDistribution{Hard: limit}
	default:
		return DifficultyDistribution{Medium: limit}
	}
}

func clampContentAge(age int) int {
	if age < models.MinContentAge {
		return models.MinContentAge
	}
	if age > models.MaxContentAge {
		return models.MaxContentAge
	}
	return age
}

func (s *QuestionSelectorService) fetchBucket(ctx context.Context, subject models.Subject, targetAge int, difficulty models.Difficulty, count int) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceSelectorFunction(ctx, "fetch_bucket",
		observability.AttributeSubject(string(subject)),
		observability.AttributeDifficulty(string(difficulty)),
		observability.AttributeLimit(count),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, subject, difficulty, age_group, prompt, options, correct_idx, explanation, active, created_at
		FROM questions
		WHERE subject = $1 AND age_group = $2 AND difficulty = $3 AND active
		ORDER BY RANDOM()
		LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, subject, targetAge, difficulty, count)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question bank")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var questions []*models.Question
	for rows.Next() {
		var q models.Question
		if scanErr := rows.Scan(&q.ID, &q.Subject, &q.Difficulty, &q.AgeGroup, &q.Prompt, &q.Options, &q.CorrectIdx, &q.Explanation, &q.Active, &q.CreatedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan question")
		}
		questions = append(questions, &q)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate questions")
	}

	span.SetAttributes(attribute.Int("selection.fetched", len(questions)))
	return questions, nil
}

// shuffle is a Fisher-Yates permutation over the combined buckets so the
// client cannot infer difficulty from position.
func (s *QuestionSelectorService) shuffle(questions []*models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(questions) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
