// Package models defines data structures used throughout the practice platform.
package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Subject identifies a practice subject in the content domain.
type Subject string

// Subjects supported by the platform
const (
	// SubjectMath is mathematics practice
	SubjectMath Subject = "math"
	// SubjectEnglish is english language practice
	SubjectEnglish Subject = "english"
	// SubjectScience is science practice
	SubjectScience Subject = "science"
	// SubjectHistory is history practice
	SubjectHistory Subject = "history"
	// SubjectGeography is geography practice
	SubjectGeography Subject = "geography"
)

// AllSubjects lists every supported subject in a stable order.
var AllSubjects = []Subject{SubjectMath, SubjectEnglish, SubjectScience, SubjectHistory, SubjectGeography}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	switch s {
	case SubjectMath, SubjectEnglish, SubjectScience, SubjectHistory, SubjectGeography:
		return true
	}
	return false
}

// Difficulty identifies a question difficulty bucket.
type Difficulty string

// Difficulty buckets
const (
	// DifficultyEasy is the easy bucket
	DifficultyEasy Difficulty = "easy"
	// DifficultyMedium is the medium bucket
	DifficultyMedium Difficulty = "medium"
	// DifficultyHard is the hard bucket
	DifficultyHard Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// SelectionMode controls how selectQuestions picks content.
type SelectionMode string

// Selection modes
const (
	// SelectionModeAdaptive targets the user's effective age with an
	// accuracy-driven difficulty mix
	SelectionModeAdaptive SelectionMode = "adaptive"
	// SelectionModeManual targets the chronological age at a single
	// requested difficulty
	SelectionModeManual SelectionMode = "manual"
)

// Valid reports whether m is a known selection mode.
func (m SelectionMode) Valid() bool {
	return m == SelectionModeAdaptive || m == SelectionModeManual
}

// AttemptType distinguishes the one-time diagnostic from regular practice.
type AttemptType string

// Attempt types
const (
	// AttemptTypeAssessment is the one-time diagnostic quiz
	AttemptTypeAssessment AttemptType = "assessment"
	// AttemptTypePractice is a regular practice quiz
	AttemptTypePractice AttemptType = "practice"
)

// Content-domain bounds for the effective age used in question selection.
const (
	// MinContentAge is the youngest supported content age
	MinContentAge = 7
	// MaxContentAge is the oldest supported content age
	MaxContentAge = 18
)

// Performance adjustment bounds and cadence.
const (
	// MinAdjustment is the floor of the performance adjustment
	MinAdjustment = -2
	// MaxAdjustment is the cap of the performance adjustment
	MaxAdjustment = 2
	// AdjustmentCheckpoint is the number of completed quizzes between
	// adjustment recalculations
	AdjustmentCheckpoint = 3
	// RecentScoreWindow is how many recent quiz scores feed rolling accuracy
	RecentScoreWindow = 3
)

// ClampEffectiveAge clamps chronological age plus adjustment to the content domain.
func ClampEffectiveAge(chronologicalAge, adjustment int) int {
	age := chronologicalAge + adjustment
	if age < MinContentAge {
		return MinContentAge
	}
	if age > MaxContentAge {
		return MaxContentAge
	}
	return age
}

// User represents a student account.
type User struct {
	ID           int            `json:"id"`
	Username     string         `json:"username"`
	Email        sql.NullString `json:"email"`
	Age          int            `json:"age,omitempty"`
	Timezone     sql.NullString `json:"timezone"`
	PasswordHash sql.NullString `json:"-"`
	IsAdmin      bool           `json:"is_admin"`
	LastActive   sql.NullTime   `json:"last_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         int        `json:"id"`
		Username   string     `json:"username"`
		Email      *string    `json:"email"`
		Age        int        `json:"age,omitempty"`
		Timezone   *string    `json:"timezone"`
		IsAdmin    bool       `json:"is_admin"`
		LastActive *time.Time `json:"last_active"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		ID:         u.ID,
		Username:   u.Username,
		Email:      nullStringToPointer(u.Email),
		Age:        u.Age,
		Timezone:   nullStringToPointer(u.Timezone),
		IsAdmin:    u.IsAdmin,
		LastActive: nullTimeToPointer(u.LastActive),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	})
}

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// Question represents one entry in the question bank, keyed by
// (subject, age_group, difficulty) for selection.
type Question struct {
	ID          int            `json:"id"`
	Subject     Subject        `json:"subject"`
	Difficulty  Difficulty     `json:"difficulty"`
	AgeGroup    int            `json:"age_group"`
	Prompt      string         `json:"prompt"`
	Options     pq.StringArray `json:"options"`
	CorrectIdx  int            `json:"-"`
	Explanation sql.NullString `json:"-"`
	Active      bool           `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PerformanceMetrics is the per user x subject state of the adaptive
// difficulty engine. Created on assessment completion, mutated on every
// practice-quiz completion, never deleted.
type PerformanceMetrics struct {
	ID                     int             `json:"id"`
	UserID                 int             `json:"user_id"`
	Subject                Subject         `json:"subject"`
	ChronologicalAge       int             `json:"chronological_age"`
	PerformanceAdjustment  int             `json:"performance_adjustment"`
	EffectiveAge           int             `json:"effective_age"`
	LastQuizScores         pq.Float64Array `json:"last_3_quiz_scores"`
	TotalQuizzesCompleted  int             `json:"total_quizzes_completed"`
	HasCompletedAssessment bool            `json:"has_completed_assessment"`
	LastQuizAt             sql.NullTime    `json:"last_quiz_at"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// RecentAccuracy returns the mean of the rolling score window, or nil when no
// practice quiz has been recorded yet.
func (pm *PerformanceMetrics) RecentAccuracy() *float64 {
	if len(pm.LastQuizScores) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range pm.LastQuizScores {
		sum += s
	}
	avg := sum / float64(len(pm.LastQuizScores))
	return &avg
}

// NextAdjustmentIn returns how many quizzes remain until the next
// checkpoint recalculation.
func (pm *PerformanceMetrics) NextAdjustmentIn() int {
	rem := pm.TotalQuizzesCompleted % AdjustmentCheckpoint
	return AdjustmentCheckpoint - rem
}

// EDLStatus classifies the learner's current calibration band.
type EDLStatus string

// EDL status bands derived from rolling accuracy
const (
	// EDLStatusExceptional is accuracy >= 90
	EDLStatusExceptional EDLStatus = "exceptional"
	// EDLStatusApproachingMastery is accuracy >= 85
	EDLStatusApproachingMastery EDLStatus = "approaching_mastery"
	// EDLStatusFlowZone is the well-calibrated band (60-85), also the
	// default when no accuracy is known yet
	EDLStatusFlowZone EDLStatus = "flow_zone"
	// EDLStatusChallenging is accuracy >= 50
	EDLStatusChallenging EDLStatus = "challenging"
	// EDLStatusStruggling is accuracy < 50
	EDLStatusStruggling EDLStatus = "struggling"
)

// Status classifies the metrics' rolling accuracy into an EDL band.
func (pm *PerformanceMetrics) Status() EDLStatus {
	acc := pm.RecentAccuracy()
	if acc == nil {
		return EDLStatusFlowZone
	}
	switch {
	case *acc >= 90:
		return EDLStatusExceptional
	case *acc >= 85:
		return EDLStatusApproachingMastery
	case *acc >= 60:
		return EDLStatusFlowZone
	case *acc >= 50:
		return EDLStatusChallenging
	default:
		return EDLStatusStruggling
	}
}

// QuizAttempt is an append-only ledger row written once per submission.
type QuizAttempt struct {
	ID               int            `json:"id"`
	UserID           int            `json:"user_id"`
	Subject          Subject        `json:"subject"`
	Difficulty       sql.NullString `json:"difficulty"`
	TotalQuestions   int            `json:"total_questions"`
	CorrectAnswers   int            `json:"correct_answers"`
	ScorePercentage  float64        `json:"score_percentage"`
	PointsEarned     int            `json:"points_earned"`
	TimeSpentSeconds int            `json:"time_spent_seconds"`
	AttemptType      AttemptType    `json:"attempt_type"`
	CompletedAt      time.Time      `json:"completed_at"`
}

// QuestionAttempt is a single answered question inside a quiz submission.
type QuestionAttempt struct {
	QuestionID    int  `json:"question_id" binding:"required"`
	AnswerIndex   int  `json:"answer_index"`
	IsCorrect     bool `json:"is_correct"`
	TimeSpentSecs int  `json:"time_spent_seconds"`
}

// UserStats is the per-user gamification state row. All numeric mutations go
// through atomic increments or conditional updates, never fetch-then-write.
type UserStats struct {
	UserID                int          `json:"user_id"`
	TotalXP               int64        `json:"total_xp"`
	OverallLevel          int          `json:"overall_level"`
	StreakDays            int          `json:"streak_days"`
	HighestStreak         int          `json:"highest_streak"`
	StreakFreezeAvailable bool         `json:"streak_freeze_available"`
	StreakFreezeLastReset sql.NullTime `json:"streak_freeze_last_reset"`
	LastActivityDate      sql.NullTime `json:"last_activity_date"`
	AchievementsUnlocked  int          `json:"achievements_unlocked"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// SubjectStats tracks per-subject XP and level.
type SubjectStats struct {
	UserID           int       `json:"user_id"`
	Subject          Subject   `json:"subject"`
	XP               int64     `json:"xp"`
	Level            int       `json:"level"`
	QuizzesCompleted int       `json:"quizzes_completed"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TransactionType categorizes a point transaction.
type TransactionType string

// Point transaction types
const (
	// TransactionQuizCompletion is points earned by finishing a quiz
	TransactionQuizCompletion TransactionType = "quiz_completion"
	// TransactionStreakMilestone is a streak milestone bonus
	TransactionStreakMilestone TransactionType = "streak_milestone"
	// TransactionAchievementUnlock is an achievement reward
	TransactionAchievementUnlock TransactionType = "achievement_unlock"
	// TransactionAssessmentCompletion is points for finishing the diagnostic
	TransactionAssessmentCompletion TransactionType = "assessment_completion"
	// TransactionAdminGrant is a manual admin award
	TransactionAdminGrant TransactionType = "admin_grant"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionQuizCompletion, TransactionStreakMilestone, TransactionAchievementUnlock,
		TransactionAssessmentCompletion, TransactionAdminGrant:
		return true
	}
	return false
}

// PointTransaction is an immutable ledger entry. DedupKey guards against
// double-application when a secondary effect is retried.
type PointTransaction struct {
	ID               int                    `json:"id"`
	UserID           int                    `json:"user_id"`
	DedupKey         string                 `json:"dedup_key"`
	BasePoints       int                    `json:"base_points"`
	Multiplier       float64                `json:"multiplier"`
	PointsChange     int                    `json:"points_change"`
	TransactionType  TransactionType        `json:"transaction_type"`
	RelatedEntity    sql.NullString         `json:"related_entity"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// StreakMilestone records that a streak bonus was paid for (user, days).
// The unique pair guards against double-awarding.
type StreakMilestone struct {
	UserID        int       `json:"user_id"`
	MilestoneDays int       `json:"milestone_days"`
	AwardedAt     time.Time `json:"awarded_at"`
}
