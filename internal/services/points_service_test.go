package services

import (
	"math"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP_QuadraticThresholds(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{900, 4},
		{2500, 6},
		{10000, 11},
		{980100, 100},
		{5000000, 100}, // capped
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelForXP(tc.xp), "xp %d", tc.xp)
	}
}

func TestLevelForXP_MatchesClosedForm(t *testing.T) {
	for xp := int64(0); xp <= 50000; xp += 37 {
		want := int(math.Floor(math.Sqrt(float64(xp)/100.0))) + 1
		if want > MaxLevel {
			want = MaxLevel
		}
		assert.Equal(t, want, LevelForXP(xp), "xp %d", xp)
	}
}

func TestXPToNextLevel(t *testing.T) {
	assert.Equal(t, int64(100), XPToNextLevel(0))
	assert.Equal(t, int64(1), XPToNextLevel(99))
	assert.Equal(t, int64(300), XPToNextLevel(100))
	assert.Equal(t, int64(0), XPToNextLevel(XPForLevel(MaxLevel)))
}

func TestPointsComputation_FloorsMultipliedValue(t *testing.T) {
	g := &config.GamificationConfig{}

	// streak 7 -> 1.2, level 5 -> 1.1; 50 * 1.2 * 1.1 = 66.0
	sm := g.StreakMultiplier(7)
	lm := g.LevelMultiplier(5)
	awarded := int(math.Floor(50 * sm * lm))
	assert.Equal(t, 66, awarded)

	// 25 * 1.1 * 1.0 = 27.5 floors to 27
	sm = g.StreakMultiplier(3)
	lm = g.LevelMultiplier(1)
	awarded = int(math.Floor(25 * sm * lm))
	assert.Equal(t, 27, awarded)
}

func TestDedupKeyFor_EntityLinkedAwardsAreDeterministic(t *testing.T) {
	a := dedupKeyFor(7, models.TransactionQuizCompletion, "quiz_attempt:42")
	b := dedupKeyFor(7, models.TransactionQuizCompletion, "quiz_attempt:42")
	assert.Equal(t, a, b)

	// Different entity, user or type each produce a different key.
	assert.NotEqual(t, a, dedupKeyFor(7, models.TransactionQuizCompletion, "quiz_attempt:43"))
	assert.NotEqual(t, a, dedupKeyFor(8, models.TransactionQuizCompletion, "quiz_attempt:42"))
	assert.NotEqual(t, a, dedupKeyFor(7, models.TransactionAssessmentCompletion, "quiz_attempt:42"))
}

func TestDedupKeyFor_AdminGrantsStayRandom(t *testing.T) {
	a := dedupKeyFor(7, models.TransactionAdminGrant, "spot bonus")
	b := dedupKeyFor(7, models.TransactionAdminGrant, "spot bonus")
	assert.NotEqual(t, a, b)

	// No related entity means nothing to key on either.
	assert.NotEqual(t,
		dedupKeyFor(7, models.TransactionQuizCompletion, ""),
		dedupKeyFor(7, models.TransactionQuizCompletion, ""))
}
