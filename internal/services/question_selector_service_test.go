package services

import (
	"math/rand"
	"testing"

	"practicehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestDistributionForAccuracy_Ratios(t *testing.T) {
	cases := []struct {
		name     string
		accuracy *float64
		limit    int
		want     DifficultyDistribution
	}{
		{"unknown accuracy is balanced", nil, 10, DifficultyDistribution{Easy: 3, Medium: 4, Hard: 3}},
		{"high accuracy skews hard", floatPtr(80), 10, DifficultyDistribution{Easy: 2, Medium: 3, Hard: 5}},
		{"boundary 75 skews hard", floatPtr(75), 10, DifficultyDistribution{Easy: 2, Medium: 3, Hard: 5}},
		{"low accuracy skews easy", floatPtr(45), 10, DifficultyDistribution{Easy: 5, Medium: 3, Hard: 2}},
		{"mid accuracy is balanced", floatPtr(65), 10, DifficultyDistribution{Easy: 3, Medium: 4, Hard: 3}},
		{"boundary 60 is balanced", floatPtr(60), 10, DifficultyDistribution{Easy: 3, Medium: 4, Hard: 3}},
		{"single question goes to medium", nil, 1, DifficultyDistribution{Easy: 0, Medium: 1, Hard: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistributionForAccuracy(tc.accuracy, tc.limit)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDistributionForAccuracy_AlwaysSumsToLimit(t *testing.T) {
	for acc := 0; acc <= 100; acc++ {
		for limit := 1; limit <= MaxSelectionLimit; limit++ {
			d := DistributionForAccuracy(floatPtr(float64(acc)), limit)
			require.Equal(t, limit, d.Total(), "accuracy=%d limit=%d", acc, limit)
			require.GreaterOrEqual(t, d.Easy, 0)
			require.GreaterOrEqual(t, d.Medium, 0)
			require.GreaterOrEqual(t, d.Hard, 0)
		}
	}
	for limit := 1; limit <= MaxSelectionLimit; limit++ {
		d := DistributionForAccuracy(nil, limit)
		require.Equal(t, limit, d.Total(), "nil accuracy limit=%d", limit)
	}
}

func TestManualDistribution(t *testing.T) {
	assert.Equal(t, DifficultyDistribution{Easy: 12}, manualDistribution(models.DifficultyEasy, 12))
	assert.Equal(t, DifficultyDistribution{Medium: 12}, manualDistribution(models.DifficultyMedium, 12))
	assert.Equal(t, DifficultyDistribution{Hard: 12}, manualDistribution(models.DifficultyHard, 12))
}

func TestShuffle_IsPermutation(t *testing.T) {
	s := &QuestionSelectorService{rng: rand.New(rand.NewSource(42))}

	questions := make([]*models.Question, 20)
	for i := range questions {
		questions[i] = &models.Question{ID: i + 1}
	}

	s.shuffle(questions)

	seen := make(map[int]bool, len(questions))
	for _, q := range questions {
		require.False(t, seen[q.ID], "duplicate id %d", q.ID)
		seen[q.ID] = true
	}
	assert.Len(t, seen, 20)
}

func TestShuffle_PositionsRoughlyUniform(t *testing.T) {
	s := &QuestionSelectorService{rng: rand.New(rand.NewSource(1))}

	const n = 10
	const trials = 20000
	// counts[id][pos]
	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}

	for trial := 0; trial < trials; trial++ {
		questions := make([]*models.Question, n)
		for i := range questions {
			questions[i] = &models.Question{ID: i}
		}
		s.shuffle(questions)
		for pos, q := range questions {
			counts[q.ID][pos]++
		}
	}

	// Each cell should be near trials/n; allow a generous 20% band.
	expected := float64(trials) / float64(n)
	for id := 0; id < n; id++ {
		for pos := 0; pos < n; pos++ {
			assert.InDelta(t, expected, float64(counts[id][pos]), expected*0.2,
				"id %d at position %d", id, pos)
		}
	}
}

func TestClampContentAge(t *testing.T) {
	assert.Equal(t, models.MinContentAge, clampContentAge(3))
	assert.Equal(t, 12, clampContentAge(12))
	assert.Equal(t, models.MaxContentAge, clampContentAge(25))
}
