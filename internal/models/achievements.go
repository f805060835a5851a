package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rarity grades how hard an achievement is to earn.
type Rarity string

// Achievement rarities
const (
	// RarityCommon is the baseline rarity
	RarityCommon Rarity = "common"
	// RarityRare is awarded for sustained effort
	RarityRare Rarity = "rare"
	// RarityEpic is awarded for significant accomplishments
	RarityEpic Rarity = "epic"
	// RarityLegendary is the top rarity tier
	RarityLegendary Rarity = "legendary"
)

// CriteriaType tags an UnlockCriteria variant. The set is closed: evaluation
// switches exhaustively over these tags and rejects anything else at load time.
type CriteriaType string

// Unlock criteria variants
const (
	// CriteriaQuizCount unlocks after N completed quizzes
	CriteriaQuizCount CriteriaType = "quiz_count"
	// CriteriaStreakDays unlocks at a streak of N days
	CriteriaStreakDays CriteriaType = "streak_days"
	// CriteriaSubjectLevel unlocks when a subject reaches level N
	CriteriaSubjectLevel CriteriaType = "subject_level"
	// CriteriaSubjectsCompleted unlocks when N subjects have completed assessments
	CriteriaSubjectsCompleted CriteriaType = "subjects_completed"
	// CriteriaPerfectScore unlocks on the first 100% quiz
	CriteriaPerfectScore CriteriaType = "perfect_score"
	// CriteriaAssessmentComplete unlocks when any assessment is completed
	CriteriaAssessmentComplete CriteriaType = "assessment_complete"
)

// UnlockCriteria is the closed tagged variant describing when an achievement
// unlocks. Count is used by the quiz_count, streak_days, subject_level and
// subjects_completed variants; Subject only by subject_level.
type UnlockCriteria struct {
	Type    CriteriaType `json:"type"`
	Count   int          `json:"count,omitempty"`
	Subject Subject      `json:"subject,omitempty"`
}

// Validate rejects unknown tags and malformed parameters so a bad catalog row
// fails at load instead of silently never unlocking.
func (c UnlockCriteria) Validate() error {
	switch c.Type {
	case CriteriaQuizCount, CriteriaStreakDays, CriteriaSubjectsCompleted:
		if c.Count <= 0 {
			return fmt.Errorf("criteria %q requires a positive count", c.Type)
		}
	case CriteriaSubjectLevel:
		if c.Count <= 0 {
			return fmt.Errorf("criteria %q requires a positive level count", c.Type)
		}
		if !c.Subject.Valid() {
			return fmt.Errorf("criteria %q requires a known subject, got %q", c.Type, c.Subject)
		}
	case CriteriaPerfectScore, CriteriaAssessmentComplete:
		// No parameters.
	default:
		return fmt.Errorf("unknown criteria type %q", c.Type)
	}
	return nil
}

// AchievementStats is the aggregated snapshot the evaluator matches criteria
// against. Assembled once per check from the durable store.
type AchievementStats struct {
	QuizCount              int             `json:"quiz_count"`
	StreakDays             int             `json:"streak_days"`
	SubjectLevels          map[Subject]int `json:"subject_levels"`
	SubjectsCompleted      int             `json:"subjects_completed"`
	HasCompletedAssessment bool            `json:"has_completed_assessment"`
	HasPerfectScore        bool            `json:"has_perfect_score"`
}

// Matches evaluates the criteria against a stats snapshot. The switch is
// exhaustive over the closed variant set; unknown tags never match.
func (c UnlockCriteria) Matches(stats AchievementStats) bool {
	switch c.Type {
	case CriteriaQuizCount:
		return stats.QuizCount >= c.Count
	case CriteriaStreakDays:
		return stats.StreakDays >= c.Count
	case CriteriaSubjectLevel:
		return stats.SubjectLevels[c.Subject] >= c.Count
	case CriteriaSubjectsCompleted:
		return stats.SubjectsCompleted >= c.Count
	case CriteriaPerfectScore:
		return stats.HasPerfectScore
	case CriteriaAssessmentComplete:
		return stats.HasCompletedAssessment
	default:
		return false
	}
}

// Achievement is a read-mostly catalog entry.
type Achievement struct {
	ID           int            `json:"id"`
	Key          string         `json:"key"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Criteria     UnlockCriteria `json:"unlock_criteria"`
	PointsReward int            `json:"points_reward"`
	Rarity       Rarity         `json:"rarity"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ScanCriteria decodes the jsonb criteria column into the tagged variant and
// validates it.
func ScanCriteria(raw []byte) (UnlockCriteria, error) {
	var c UnlockCriteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return UnlockCriteria{}, fmt.Errorf("decode unlock criteria: %w", err)
	}
	if err := c.Validate(); err != nil {
		return UnlockCriteria{}, err
	}
	return c, nil
}

// UserAchievement records a single unlock. The (user_id, achievement_id) pair
// is unique; unlock inserts are idempotent.
type UserAchievement struct {
	UserID        int       `json:"user_id"`
	AchievementID int       `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}
