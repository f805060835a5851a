package services

import (
	"context"
	"database/sql"
	"fmt"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// StreakUpdate reports the outcome of a live streak update.
type StreakUpdate struct {
	StreakDays       int  `json:"streak_days"`
	HighestStreak    int  `json:"highest_streak"`
	Extended         bool `json:"extended"`
	MilestoneAwarded int  `json:"milestone_awarded,omitempty"` // 0 when no milestone hit
	MilestoneBonus   int  `json:"milestone_bonus,omitempty"`
}

// DailyCheckResult reports how many users the daily batch touched.
type DailyCheckResult struct {
	FreezesConsumed int `json:"freezes_consumed"`
	StreaksReset    int `json:"streaks_reset"`
}

// StreakReminderTarget is a user whose streak lapses today without activity.
type StreakReminderTarget struct {
	UserID     int
	Username   string
	Email      string
	StreakDays int
}

// StreakServiceInterface defines the interface for streak tracking
type StreakServiceInterface interface {
	RecordActivity(ctx context.Context, userID int) (*StreakUpdate, error)
	RunDailyCheck(ctx context.Context) (*DailyCheckResult, error)
	RunWeeklyFreezeReset(ctx context.Context) (int, error)
	GetStreakAtRiskUsers(ctx context.Context) ([]*StreakReminderTarget, error)
}

// StreakService is the daily/weekly streak state machine. Every transition is
// expressed as a state-conditioned UPDATE so concurrent submissions and
// re-run batch jobs settle to the same result.
type StreakService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	points PointsServiceInterface
}

// NewStreakServiceWithLogger creates a new StreakService with a logger
func NewStreakServiceWithLogger(db *sql.DB, cfg *config.Config, points PointsServiceInterface, logger *observability.Logger) *StreakService {
	return &StreakService{
		db:     db,
		cfg:    cfg,
		logger: logger,
		points: points,
	}
}

// RecordActivity settles today's activity into the streak. Same-day repeats
// are no-ops, yesterday extends, a gap restarts at 1. The whole transition is
// one conditional UPDATE.
func (s *StreakService) RecordActivity(ctx context.Context, userID int) (result0 *StreakUpdate, err error) {
	ctx, span := observability.TraceStreakFunction(ctx, "record_activity",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to ensure user stats row")
	}

	query := `
		UPDATE user_stats
		SET streak_days = CASE
		        WHEN last_activity_date = CURRENT_DATE THEN streak_days
		        WHEN last_activity_date = CURRENT_DATE - 1 THEN streak_days + 1
		        ELSE 1
		    END,
		    highest_streak = GREATEST(highest_streak, CASE
		        WHEN last_activity_date = CURRENT_DATE THEN streak_days
		        WHEN last_activity_date = CURRENT_DATE - 1 THEN streak_days + 1
		        ELSE 1
		    END),
		    last_activity_date = CURRENT_DATE,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING streak_days, highest_streak,
		          (SELECT us.streak_days FROM user_stats us WHERE us.user_id = $1) AS prev`

	update := &StreakUpdate{}
	var prevStreak int
	err = s.db.QueryRowContext(ctx, query, userID).Scan(&update.StreakDays, &update.HighestStreak, &prevStreak)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update streak")
	}
	update.Extended = update.StreakDays > prevStreak

	span.SetAttributes(
		attribute.Int("streak.days", update.StreakDays),
		attribute.Bool("streak.extended", update.Extended),
	)

	if update.Extended {
		s.awardMilestoneIfDue(ctx, userID, update)
	}
	return update, nil
}

// awardMilestoneIfDue pays the milestone bonus exactly once per (user, days)
// pair. The unique insert is the gate; the bonus itself is best-effort.
func (s *StreakService) awardMilestoneIfDue(ctx context.Context, userID int, update *StreakUpdate) {
	bonus, isMilestone := s.cfg.Gamification.MilestoneBonusFor(update.StreakDays)
	if !isMilestone {
		return
	}

	var days int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO streak_milestones (user_id, milestone_days)
		VALUES ($1, $2)
		ON CONFLICT (user_id, milestone_days) DO NOTHING
		RETURNING milestone_days`,
		userID, update.StreakDays).Scan(&days)
	if err != nil {
		if err == sql.ErrNoRows {
			// Already awarded for this pair.
			return
		}
		s.logger.Error(ctx, "Failed to record streak milestone", err, map[string]interface{}{
			"user_id":   userID,
			"milestone": update.StreakDays,
		})
		return
	}

	related := fmt.Sprintf("streak:%d", days)
	award, err := s.points.AwardPoints(ctx, userID, bonus, models.TransactionStreakMilestone, related, map[string]interface{}{
		"milestone_days": days,
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to award streak milestone bonus", err, map[string]interface{}{
			"user_id":   userID,
			"milestone": days,
		})
		return
	}
	update.MilestoneAwarded = days
	update.MilestoneBonus = award.PointsAwarded
}

// RunDailyCheck settles lapsed streaks. Users with a freeze keep the streak
// and burn the freeze; everyone else resets to zero. Consuming a freeze also
// moves last_activity_date to yesterday so a same-day re-run is a no-op, and
// resets only match streak_days > 0, so the job is idempotent.
func (s *StreakService) RunDailyCheck(ctx context.Context) (result0 *DailyCheckResult, err error) {
	ctx, span := observability.TraceStreakFunction(ctx, "run_daily_check")
	defer observability.FinishSpan(span, &err)

	result := &DailyCheckResult{}

	frozen, err := s.db.ExecContext(ctx, `
		UPDATE user_stats
		SET streak_freeze_available = FALSE,
		    last_activity_date = CURRENT_DATE - 1,
		    updated_at = NOW()
		WHERE last_activity_date < CURRENT_DATE - 1
		  AND streak_days > 0
		  AND streak_freeze_available`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to consume streak freezes")
	}
	if n, raErr := frozen.RowsAffected(); raErr == nil {
		result.FreezesConsumed = int(n)
	}

	reset, err := s.db.ExecContext(ctx, `
		UPDATE user_stats
		SET highest_streak = GREATEST(highest_streak, streak_days),
		    streak_days = 0,
		    updated_at = NOW()
		WHERE last_activity_date < CURRENT_DATE - 1
		  AND streak_days > 0
		  AND NOT streak_freeze_available`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to reset lapsed streaks")
	}
	if n, raErr := reset.RowsAffected(); raErr == nil {
		result.StreaksReset = int(n)
	}

	span.SetAttributes(
		attribute.Int("streak.freezes_consumed", result.FreezesConsumed),
		attribute.Int("streak.resets", result.StreaksReset),
	)
	s.logger.Info(ctx, "Daily streak check completed", map[string]interface{}{
		"freezes_consumed": result.FreezesConsumed,
		"streaks_reset":    result.StreaksReset,
	})
	return result, nil
}

// RunWeeklyFreezeReset restores the streak freeze for users whose last reset
// is at least six days old. Idempotent: a restored freeze no longer matches.
func (s *StreakService) RunWeeklyFreezeReset(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceStreakFunction(ctx, "run_weekly_freeze_reset")
	defer observability.FinishSpan(span, &err)

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_stats
		SET streak_freeze_available = TRUE,
		    streak_freeze_last_reset = CURRENT_DATE,
		    updated_at = NOW()
		WHERE NOT streak_freeze_available
		  AND streak_freeze_last_reset <= CURRENT_DATE - 6`)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to reset streak freezes")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count freeze resets")
	}

	span.SetAttributes(attribute.Int("streak.freezes_restored", int(n)))
	s.logger.Info(ctx, "Weekly freeze reset completed", map[string]interface{}{
		"freezes_restored": n,
	})
	return int(n), nil
}

// GetStreakAtRiskUsers lists users with an active streak and no activity
// today, for the reminder email.
func (s *StreakService) GetStreakAtRiskUsers(ctx context.Context) (result0 []*StreakReminderTarget, err error) {
	ctx, span := observability.TraceStreakFunction(ctx, "get_streak_at_risk_users")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, s.streak_days
		FROM user_stats s
		JOIN users u ON u.id = s.user_id
		WHERE s.streak_days > 0
		  AND s.last_activity_date < CURRENT_DATE
		  AND u.email IS NOT NULL`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query streak-at-risk users")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*StreakReminderTarget
	for rows.Next() {
		var target StreakReminderTarget
		if scanErr := rows.Scan(&target.UserID, &target.Username, &target.Email, &target.StreakDays); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan reminder target")
		}
		out = append(out, &target)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate reminder targets")
	}

	span.SetAttributes(attribute.Int("streak.at_risk_users", len(out)))
	return out, nil
}
