package services

import (
	"context"
	"database/sql"
	"errors"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// UnlockedAchievement pairs a catalog entry with what the unlock paid out.
type UnlockedAchievement struct {
	Achievement   *models.Achievement `json:"achievement"`
	PointsAwarded int                 `json:"points_awarded"`
}

// AchievementServiceInterface defines the interface for the achievement evaluator
type AchievementServiceInterface interface {
	CheckAchievements(ctx context.Context, userID int) ([]*UnlockedAchievement, error)
	GetUserAchievements(ctx context.Context, userID int) ([]*models.Achievement, error)
	GetCatalog(ctx context.Context) ([]*models.Achievement, error)
	SeedCatalog(ctx context.Context, entries []config.CatalogAchievement) (int, error)
}

// AchievementService evaluates the unlock catalog against a stats snapshot.
// The unique (user, achievement) pair makes re-runs and concurrent checks
// safe: the insert either lands once or not at all.
type AchievementService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	points PointsServiceInterface
}

// NewAchievementServiceWithLogger creates a new AchievementService with a logger
func NewAchievementServiceWithLogger(db *sql.DB, cfg *config.Config, points PointsServiceInterface, logger *observability.Logger) *AchievementService {
	return &AchievementService{
		db:     db,
		cfg:    cfg,
		logger: logger,
		points: points,
	}
}

// CheckAchievements builds the stats snapshot, evaluates every locked catalog
// entry and unlocks the ones whose criteria match. Running it again with no
// new activity returns an empty list.
func (s *AchievementService) CheckAchievements(ctx context.Context, userID int) (result0 []*UnlockedAchievement, err error) {
	ctx, span := observability.TraceAchievementFunction(ctx, "check_achievements",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	stats, err := s.buildStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.lockedCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlocked := []*UnlockedAchievement{}
	for _, achievement := range candidates {
		if !achievement.Criteria.Matches(*stats) {
			continue
		}

		inserted, unlockErr := s.unlockOnce(ctx, userID, achievement.ID)
		if unlockErr != nil {
			s.logger.Error(ctx, "Failed to unlock achievement", unlockErr, map[string]interface{}{
				"user_id":         userID,
				"achievement_key": achievement.Key,
			})
			continue
		}
		if !inserted {
			// Another request got there first.
			continue
		}

		entry := &UnlockedAchievement{Achievement: achievement}
		if achievement.PointsReward > 0 {
			award, awardErr := s.points.AwardPoints(ctx, userID, achievement.PointsReward,
				models.TransactionAchievementUnlock, "achievement:"+achievement.Key,
				map[string]interface{}{"achievement_key": achievement.Key})
			if awardErr != nil {
				s.logger.Error(ctx, "Failed to award achievement points", awardErr, map[string]interface{}{
					"user_id":         userID,
					"achievement_key": achievement.Key,
				})
			} else {
				entry.PointsAwarded = award.PointsAwarded
			}
		}
		unlocked = append(unlocked, entry)
	}

	span.SetAttributes(attribute.Int("achievements.unlocked", len(unlocked)))
	return unlocked, nil
}

// buildStats assembles the aggregated snapshot the criteria match against.
func (s *AchievementService) buildStats(ctx context.Context, userID int) (result0 *models.AchievementStats, err error) {
	ctx, span := observability.TraceAchievementFunction(ctx, "build_stats",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	stats := &models.AchievementStats{
		SubjectLevels: make(map[models.Subject]int),
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1),
			COALESCE((SELECT streak_days FROM user_stats WHERE user_id = $1), 0),
			(SELECT COUNT(*) FROM performance_metrics WHERE user_id = $1 AND has_completed_assessment),
			EXISTS(SELECT 1 FROM quiz_attempts WHERE user_id = $1 AND score_percentage >= 100)`

	err = s.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.QuizCount, &stats.StreakDays, &stats.SubjectsCompleted, &stats.HasPerfectScore,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to build achievement stats")
	}
	stats.HasCompletedAssessment = stats.SubjectsCompleted > 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, level FROM subject_stats WHERE user_id = $1`, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subject levels")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()
	for rows.Next() {
		var subject models.Subject
		var level int
		if scanErr := rows.Scan(&subject, &level); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan subject level")
		}
		stats.SubjectLevels[subject] = level
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate subject levels")
	}

	return stats, nil
}

// lockedCandidates returns catalog entries the user has not unlocked yet.
// Rows with malformed criteria are skipped with a log line instead of
// failing the whole check.
func (s *AchievementService) lockedCandidates(ctx context.Context, userID int) (result0 []*models.Achievement, err error) {
	ctx, span := observability.TraceAchievementFunction(ctx, "locked_candidates",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.key, a.name, COALESCE(a.description, ''), a.criteria, a.points_reward, a.rarity, a.created_at
		FROM achievements a
		LEFT JOIN user_achievements ua ON ua.achievement_id = a.id AND ua.user_id = $1
		WHERE ua.user_id IS NULL
		ORDER BY a.id`, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query achievement catalog")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*models.Achievement
	for rows.Next() {
		var a models.Achievement
		var criteriaRaw []byte
		if scanErr := rows.Scan(&a.ID, &a.Key, &a.Name, &a.Description, &criteriaRaw, &a.PointsReward, &a.Rarity, &a.CreatedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan achievement")
		}
		criteria, criteriaErr := models.ScanCriteria(criteriaRaw)
		if criteriaErr != nil {
			s.logger.Warn(ctx, "Skipping achievement with invalid criteria", map[string]interface{}{
				"achievement_key": a.Key,
				"error":           criteriaErr.Error(),
			})
			continue
		}
		a.Criteria = criteria
		out = append(out, &a)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate achievements")
	}
	return out, nil
}

// unlockOnce inserts the unlock pair and bumps the unlock counter. Returns
// false when the pair already exists.
func (s *AchievementService) unlockOnce(ctx context.Context, userID, achievementID int) (result0 bool, err error) {
	var insertedID int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
		RETURNING achievement_id`,
		userID, achievementID).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, contextutils.WrapError(err, "failed to insert achievement unlock")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE user_stats
		SET achievements_unlocked = achievements_unlocked + 1, updated_at = NOW()
		WHERE user_id = $1`, userID)
	if err != nil {
		// Counter drift is tolerable; the unlock row is the source of truth.
		s.logger.Error(ctx, "Failed to bump achievement counter", err, map[string]interface{}{
			"user_id": userID,
		})
	}
	return true, nil
}

// GetUserAchievements returns the unlocked catalog entries for a user, newest
// first.
func (s *AchievementService) GetUserAchievements(ctx context.Context, userID int) (result0 []*models.Achievement, err error) {
	ctx, span := observability.TraceAchievementFunction(ctx, "get_user_achievements",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.key, a.name, COALESCE(a.description, ''), a.criteria, a.points_reward, a.rarity, ua.unlocked_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.unlocked_at DESC`, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query user achievements")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	return s.collectAchievements(ctx, rows)
}

// GetCatalog returns every catalog entry.
func (s *AchievementService) GetCatalog(ctx context.Context) (result0 []*models.Achievement, err error) {
	ctx, span := observability.TraceAchievementFunction(ctx, "get_catalog")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, name, COALESCE(description, ''), criteria, points_reward, rarity, created_at
		FROM achievements
		ORDER BY id`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query achievement catalog")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	return s.collectAchievements(ctx, rows)
}

func (s *AchievementService) collectAchievements(ctx context.Context, rows *sql.Rows) ([]*models.Achievement, error) {
	var out []*models.Achievement
	for rows.Next() {
		var a models.Achievement
		var criteriaRaw []byte
		if scanErr := rows.Scan(&a.ID, &a.Key, &a.Name, &a.Description, &criteriaRaw, &a.PointsReward, &a.Rarity, &a.CreatedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan achievement")
		}
		criteria, criteriaErr := models.ScanCriteria(criteriaRaw)
		if criteriaErr != nil {
			s.logger.Warn(ctx, "Achievement has invalid criteria", map[string]interface{}{
				"achievement_key": a.Key,
				"error":           criteriaErr.Error(),
			})
		} else {
			a.Criteria = criteria
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate achievements")
	}
	return out, nil
}

// SeedCatalog upserts validated catalog entries by key and returns how many
// rows were written. Criteria get a semantic validation pass on top of the
// structural one done at file load.
func (s *AchievementService) SeedCatalog(ctx context.Context, entries []config.CatalogAchievement) (result0 int, err error) {
	ctx, span := observability.TraceAchievementFunction(ctx, "seed_catalog",
		attribute.Int("achievements.entries", len(entries)),
	)
	defer observability.FinishSpan(span, &err)

	written := 0
	for _, entry := range entries {
		if _, criteriaErr := models.ScanCriteria(entry.Criteria); criteriaErr != nil {
			return written, contextutils.WrapErrorf(contextutils.ErrValidationFailed,
				"achievement %q has invalid criteria: %v", entry.Key, criteriaErr)
		}

		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO achievements (key, name, description, criteria, points_reward, rarity)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (key) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				criteria = EXCLUDED.criteria,
				points_reward = EXCLUDED.points_reward,
				rarity = EXCLUDED.rarity`,
			entry.Key, entry.Name, entry.Description, []byte(entry.Criteria), entry.PointsReward, entry.Rarity)
		if execErr != nil {
			return written, contextutils.WrapErrorf(execErr, "failed to seed achievement %q", entry.Key)
		}
		written++
	}

	s.logger.Info(ctx, "Achievement catalog seeded", map[string]interface{}{
		"entries": written,
	})
	return written, nil
}
