package commands

import (
	"context"
	"fmt"

	"practicehub/internal/config"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/spf13/cobra"
)

// GamificationCommands returns the gamification management commands
func GamificationCommands(achievementService *services.AchievementService, logger *observability.Logger) *cobra.Command {
	gamificationCmd := &cobra.Command{
		Use:   "gamification",
		Short: "Gamification management commands",
		Long: `Gamification management commands for the practicehub platform.

Available commands:
  seed-achievements - Load the achievements catalog into the database`,
	}

	gamificationCmd.AddCommand(seedAchievementsCmd(achievementService, logger))

	return gamificationCmd
}

// seedAchievementsCmd returns the seed-achievements command
func seedAchievementsCmd(achievementService *services.AchievementService, logger *observability.Logger) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "seed-achievements",
		Short: "Seed the achievements catalog",
		Long: `Load the achievements catalog JSON file and upsert every entry.

Seeding is idempotent: existing achievements are updated in place by key,
and unlocks already granted to users are never touched.`,
		RunE: runSeedAchievements(achievementService, logger, &catalogPath),
	}

	cmd.Flags().StringVar(&catalogPath, "file", "achievements.catalog.json", "Path to the achievements catalog JSON file")

	return cmd
}

// runSeedAchievements returns a function that seeds the achievements catalog
func runSeedAchievements(achievementService *services.AchievementService, logger *observability.Logger, catalogPath *string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Loading achievements catalog", map[string]interface{}{"path": *catalogPath})

		catalog, err := config.LoadAchievementsCatalog(*catalogPath)
		if err != nil {
			logger.Error(ctx, "Failed to load achievements catalog", err, map[string]interface{}{"path": *catalogPath})
			return contextutils.WrapErrorf(err, "failed to load achievements catalog from %s", *catalogPath)
		}

		seeded, err := achievementService.SeedCatalog(ctx, catalog)
		if err != nil {
			logger.Error(ctx, "Failed to seed achievements", err, map[string]interface{}{"path": *catalogPath, "entries": len(catalog)})
			return contextutils.WrapError(err, "failed to seed achievements")
		}

		fmt.Printf("Seeded %d of %d achievements from %s\n", seeded, len(catalog), *catalogPath)
		logger.Info(ctx, "Achievements catalog seeded", map[string]interface{}{"seeded": seeded, "entries": len(catalog)})
		return nil
	}
}
