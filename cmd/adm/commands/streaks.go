package commands

import (
	"context"
	"fmt"

	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/spf13/cobra"
)

// StreakCommands returns the streak batch job commands. These run the same
// jobs the worker schedules, for operators who need an out-of-band run.
func StreakCommands(streakService *services.StreakService, logger *observability.Logger) *cobra.Command {
	streakCmd := &cobra.Command{
		Use:   "streak",
		Short: "Streak batch job commands",
		Long: `Streak batch job commands for the practicehub platform.

Available commands:
  run-daily-check    - Consume freezes and reset lapsed streaks
  run-weekly-reset   - Restore weekly streak freezes`,
	}

	streakCmd.AddCommand(runDailyCheckCmd(streakService, logger))
	streakCmd.AddCommand(runWeeklyResetCmd(streakService, logger))

	return streakCmd
}

// runDailyCheckCmd returns the run-daily-check command
func runDailyCheckCmd(streakService *services.StreakService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run-daily-check",
		Short: "Run the daily streak check",
		Long: `Consume a streak freeze for every user who missed yesterday and still
has one available, and reset the streak of every user who missed yesterday
without a freeze. Safe to run more than once per day.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Running daily streak check", map[string]interface{}{})

			result, err := streakService.RunDailyCheck(ctx)
			if err != nil {
				logger.Error(ctx, "Daily streak check failed", err, map[string]interface{}{})
				return contextutils.WrapError(err, "daily streak check failed")
			}

			fmt.Printf("Daily streak check done: %d freezes consumed, %d streaks reset\n",
				result.FreezesConsumed, result.StreaksReset)
			logger.Info(ctx, "Daily streak check completed", map[string]interface{}{
				"freezes_consumed": result.FreezesConsumed,
				"streaks_reset":    result.StreaksReset,
			})
			return nil
		},
	}
}

// runWeeklyResetCmd returns the run-weekly-reset command
func runWeeklyResetCmd(streakService *services.StreakService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run-weekly-reset",
		Short: "Restore weekly streak freezes",
		Long: `Restore the streak freeze for every user whose freeze was consumed
more than a week ago. Safe to run more than once per week.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Running weekly freeze reset", map[string]interface{}{})

			restored, err := streakService.RunWeeklyFreezeReset(ctx)
			if err != nil {
				logger.Error(ctx, "Weekly freeze reset failed", err, map[string]interface{}{})
				return contextutils.WrapError(err, "weekly freeze reset failed")
			}

			fmt.Printf("Weekly freeze reset done: %d freezes restored\n", restored)
			logger.Info(ctx, "Weekly freeze reset completed", map[string]interface{}{"freezes_restored": restored})
			return nil
		},
	}
}
