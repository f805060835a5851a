package services

// Score bands shared by assessment scoring and adaptive initialization. The
// skill level and the initial performance adjustment come from the same
// boundaries, so the two tables can never drift apart.

// scoreBand maps a minimum percentage to a skill level and the initial
// performance adjustment for that level.
type scoreBand struct {
	minScore   float64
	skillLevel int
	adjustment int
}

// bands are ordered highest first; the first satisfied band wins.
var scoreBands = []scoreBand{
	{minScore: 85, skillLevel: 5, adjustment: 2},
	{minScore: 70, skillLevel: 4, adjustment: 1},
	{minScore: 55, skillLevel: 3, adjustment: 0},
	{minScore: 40, skillLevel: 2, adjustment: -1},
	{minScore: 0, skillLevel: 1, adjustment: -2},
}

// SkillLevelForScore maps an assessment score percentage to a skill level in
// [1,5]. Monotonic non-decreasing in the score.
func SkillLevelForScore(scorePct float64) int {
	for _, b := range scoreBands {
		if scorePct >= b.minScore {
			return b.skillLevel
		}
	}
	return 1
}

// InitialAdjustmentForScore maps an assessment score percentage to the
// starting performance adjustment in [-2,2].
func InitialAdjustmentForScore(scorePct float64) int {
	for _, b := range scoreBands {
		if scorePct >= b.minScore {
			return b.adjustment
		}
	}
	return -2
}

// Rolling-accuracy thresholds for checkpoint adjustment moves.
const (
	// adjustmentRaiseThreshold raises the adjustment at a checkpoint
	adjustmentRaiseThreshold = 85.0
	// adjustmentLowerThreshold lowers the adjustment at a checkpoint
	adjustmentLowerThreshold = 50.0
)
