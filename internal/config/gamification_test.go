package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultGamification() *GamificationConfig {
	g := &GamificationConfig{}
	g.applyDefaults()
	return g
}

func TestStreakMultiplier_StepBoundaries(t *testing.T) {
	g := defaultGamification()

	cases := []struct {
		streak int
		want   float64
	}{
		{0, 1.0},
		{2, 1.0},
		{3, 1.1},
		{6, 1.1},
		{7, 1.2},
		{13, 1.2},
		{14, 1.3},
		{30, 1.5},
		{60, 1.75},
		{99, 1.75},
		{100, 2.0},
		{365, 2.0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, g.StreakMultiplier(tc.streak), 0.0001, "streak %d", tc.streak)
	}
}

func TestLevelMultiplier_StepBoundaries(t *testing.T) {
	g := defaultGamification()

	assert.InDelta(t, 1.0, g.LevelMultiplier(1), 0.0001)
	assert.InDelta(t, 1.0, g.LevelMultiplier(4), 0.0001)
	assert.InDelta(t, 1.1, g.LevelMultiplier(5), 0.0001)
	assert.InDelta(t, 1.2, g.LevelMultiplier(10), 0.0001)
	assert.InDelta(t, 1.3, g.LevelMultiplier(20), 0.0001)
	assert.InDelta(t, 1.5, g.LevelMultiplier(50), 0.0001)
	assert.InDelta(t, 1.5, g.LevelMultiplier(100), 0.0001)
}

func TestMultipliers_MonotonicNonDecreasing(t *testing.T) {
	g := defaultGamification()

	prev := 0.0
	for streak := 0; streak <= 120; streak++ {
		m := g.StreakMultiplier(streak)
		assert.GreaterOrEqual(t, m, prev, "streak %d", streak)
		prev = m
	}

	prev = 0.0
	for level := 1; level <= 100; level++ {
		m := g.LevelMultiplier(level)
		assert.GreaterOrEqual(t, m, prev, "level %d", level)
		prev = m
	}
}

func TestMilestoneBonusFor(t *testing.T) {
	g := defaultGamification()

	bonus, ok := g.MilestoneBonusFor(7)
	assert.True(t, ok)
	assert.Equal(t, 100, bonus)

	_, ok = g.MilestoneBonusFor(8)
	assert.False(t, ok)
}

func TestDefaultMilestoneDays(t *testing.T) {
	// The config table is the only milestone-day list in the codebase;
	// anything paying streak bonuses must read it from here.
	g := defaultGamification()
	days := make([]int, 0, len(g.StreakMilestoneBonuses))
	for _, m := range g.StreakMilestoneBonuses {
		days = append(days, m.Days)
	}
	assert.Equal(t, []int{3, 7, 14, 30, 60, 100}, days)
}

func TestCustomTablesOverrideDefaults(t *testing.T) {
	g := &GamificationConfig{
		StreakMultipliers: []MultiplierStep{
			{Threshold: 0, Multiplier: 1.0},
			{Threshold: 10, Multiplier: 3.0},
		},
	}
	g.applyDefaults()

	assert.InDelta(t, 1.0, g.StreakMultiplier(9), 0.0001)
	assert.InDelta(t, 3.0, g.StreakMultiplier(10), 0.0001)
	// Untouched tables still get the defaults.
	assert.InDelta(t, 1.1, g.LevelMultiplier(5), 0.0001)
}

func TestBasePointsForDifficulty_UnknownFallsBackToMedium(t *testing.T) {
	g := defaultGamification()

	assert.Equal(t, 30, g.BasePointsForDifficulty("hard"))
	assert.Equal(t, 20, g.BasePointsForDifficulty("impossible"))
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "achievements.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAchievementsCatalog_Valid(t *testing.T) {
	path := writeCatalog(t, `[
		{"key": "first_quiz", "name": "First Steps", "description": "Complete a quiz",
		 "criteria": {"type": "quiz_count", "count": 1}, "points_reward": 50, "rarity": "common"},
		{"key": "week_streak", "name": "On Fire", "description": "7 day streak",
		 "criteria": {"type": "streak_days", "count": 7}, "points_reward": 150, "rarity": "rare"}
	]`)

	catalog, err := LoadAchievementsCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "first_quiz", catalog[0].Key)
	assert.Equal(t, 150, catalog[1].PointsReward)
}

func TestLoadAchievementsCatalog_RejectsBadEntries(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing criteria", `[{"key": "a", "name": "A", "points_reward": 10, "rarity": "common"}]`},
		{"bad rarity", `[{"key": "a", "name": "A", "criteria": {"type": "quiz_count", "count": 1}, "points_reward": 10, "rarity": "mythic"}]`},
		{"bad key characters", `[{"key": "Not A Key", "name": "A", "criteria": {"type": "quiz_count", "count": 1}, "points_reward": 10, "rarity": "common"}]`},
		{"not an array", `{"key": "a"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadAchievementsCatalog(writeCatalog(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadAchievementsCatalog_RejectsDuplicateKeys(t *testing.T) {
	path := writeCatalog(t, `[
		{"key": "dup", "name": "A", "criteria": {"type": "quiz_count", "count": 1}, "points_reward": 10, "rarity": "common"},
		{"key": "dup", "name": "B", "criteria": {"type": "quiz_count", "count": 5}, "points_reward": 20, "rarity": "rare"}
	]`)

	_, err := LoadAchievementsCatalog(path)
	assert.Error(t, err)
}
