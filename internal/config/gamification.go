package config

// MultiplierStep is one row of a monotonic step lookup table. A step applies
// when the looked-up value is >= Threshold; the highest satisfied threshold
// wins.
type MultiplierStep struct {
	Threshold  int     `json:"threshold" yaml:"threshold"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// MilestoneBonus maps a streak milestone (in days) to a fixed bonus point
// award.
type MilestoneBonus struct {
	Days  int `json:"days" yaml:"days"`
	Bonus int `json:"bonus" yaml:"bonus"`
}

// GamificationConfig carries the tunable scoring tables. All tables are
// injectable via YAML so point economies can be rebalanced without a code
// change; missing tables fall back to the defaults below.
type GamificationConfig struct {
	// Base points per question by difficulty, before multipliers.
	QuizBasePoints map[string]int `json:"quiz_base_points" yaml:"quiz_base_points"`

	// Flat award for completing a placement assessment.
	AssessmentBasePoints int `json:"assessment_base_points" yaml:"assessment_base_points"`

	// Streak multiplier steps keyed by streak days.
	StreakMultipliers []MultiplierStep `json:"streak_multipliers" yaml:"streak_multipliers"`

	// Level multiplier steps keyed by overall level.
	LevelMultipliers []MultiplierStep `json:"level_multipliers" yaml:"level_multipliers"`

	// Fixed bonuses for streak milestones.
	StreakMilestoneBonuses []MilestoneBonus `json:"streak_milestone_bonuses" yaml:"streak_milestone_bonuses"`

	// Path to the achievements catalog JSON file used for seeding.
	AchievementsFile string `json:"achievements_file" yaml:"achievements_file"`

	streakSteps []MultiplierStep
	levelSteps  []MultiplierStep
}

func defaultQuizBasePoints() map[string]int {
	return map[string]int{
		"easy":   10,
		"medium": 20,
		"hard":   30,
	}
}

func defaultStreakMultipliers() []MultiplierStep {
	return []MultiplierStep{
		{Threshold: 0, Multiplier: 1.0},
		{Threshold: 3, Multiplier: 1.1},
		{Threshold: 7, Multiplier: 1.2},
		{Threshold: 14, Multiplier: 1.3},
		{Threshold: 30, Multiplier: 1.5},
		{Threshold: 60, Multiplier: 1.75},
		{Threshold: 100, Multiplier: 2.0},
	}
}

func defaultLevelMultipliers() []MultiplierStep {
	return []MultiplierStep{
		{Threshold: 1, Multiplier: 1.0},
		{Threshold: 5, Multiplier: 1.1},
		{Threshold: 10, Multiplier: 1.2},
		{Threshold: 20, Multiplier: 1.3},
		{Threshold: 50, Multiplier: 1.5},
	}
}

func defaultStreakMilestoneBonuses() []MilestoneBonus {
	return []MilestoneBonus{
		{Days: 3, Bonus: 50},
		{Days: 7, Bonus: 100},
		{Days: 14, Bonus: 200},
		{Days: 30, Bonus: 500},
		{Days: 60, Bonus: 1000},
		{Days: 100, Bonus: 2000},
	}
}

func (g *GamificationConfig) applyDefaults() {
	if len(g.QuizBasePoints) == 0 {
		g.QuizBasePoints = defaultQuizBasePoints()
	}
	if g.AssessmentBasePoints <= 0 {
		g.AssessmentBasePoints = 50
	}
	if len(g.StreakMultipliers) == 0 {
		g.StreakMultipliers = defaultStreakMultipliers()
	}
	if len(g.LevelMultipliers) == 0 {
		g.LevelMultipliers = defaultLevelMultipliers()
	}
	if len(g.StreakMilestoneBonuses) == 0 {
		g.StreakMilestoneBonuses = defaultStreakMilestoneBonuses()
	}
	g.streakSteps = sortedStepsDescending(g.StreakMultipliers)
	g.levelSteps = sortedStepsDescending(g.LevelMultipliers)
}

// StreakMultiplier returns the point multiplier for the given streak length.
func (g *GamificationConfig) StreakMultiplier(streakDays int) float64 {
	source := g.StreakMultipliers
	if len(source) == 0 {
		source = defaultStreakMultipliers()
	}
	return lookupStep(g.steps(&g.streakSteps, source), streakDays)
}

// LevelMultiplier returns the point multiplier for the given overall level.
func (g *GamificationConfig) LevelMultiplier(level int) float64 {
	source := g.LevelMultipliers
	if len(source) == 0 {
		source = defaultLevelMultipliers()
	}
	return lookupStep(g.steps(&g.levelSteps, source), level)
}

// MilestoneBonusFor returns the bonus for a streak milestone, or false when
// the day count is not a configured milestone.
func (g *GamificationConfig) MilestoneBonusFor(days int) (int, bool) {
	for _, m := range g.milestones() {
		if m.Days == days {
			return m.Bonus, true
		}
	}
	return 0, false
}

// MilestoneDays returns the configured milestone day counts in ascending
// order.
func (g *GamificationConfig) MilestoneDays() []int {
	milestones := g.milestones()
	days := make([]int, 0, len(milestones))
	for _, m := range milestones {
		days = append(days, m.Days)
	}
	for i := 1; i < len(days); i++ {
		for j := i; j > 0 && days[j] < days[j-1]; j-- {
			days[j], days[j-1] = days[j-1], days[j]
		}
	}
	return days
}

// BasePointsForDifficulty returns the per-question base points for a
// difficulty, defaulting to the medium tier for unknown values.
func (g *GamificationConfig) BasePointsForDifficulty(difficulty string) int {
	table := g.QuizBasePoints
	if len(table) == 0 {
		table = defaultQuizBasePoints()
	}
	if pts, ok := table[difficulty]; ok {
		return pts
	}
	return table["medium"]
}

func (g *GamificationConfig) milestones() []MilestoneBonus {
	if len(g.StreakMilestoneBonuses) == 0 {
		return defaultStreakMilestoneBonuses()
	}
	return g.StreakMilestoneBonuses
}

// steps returns the cached descending-sorted table, rebuilding it when the
// config was populated without going through applyDefaults (tests, literals).
func (g *GamificationConfig) steps(cache *[]MultiplierStep, source []MultiplierStep) []MultiplierStep {
	if len(*cache) != len(source) {
		*cache = sortedStepsDescending(source)
	}
	return *cache
}

func lookupStep(descending []MultiplierStep, value int) float64 {
	for _, step := range descending {
		if value >= step.Threshold {
			return step.Multiplier
		}
	}
	return 1.0
}
