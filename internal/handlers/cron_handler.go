package handlers

import (
	"net/http"

	"practicehub/internal/config"
	"practicehub/internal/observability"
	"practicehub/internal/services"

	"github.com/gin-gonic/gin"
)

// CronHandler exposes the batch jobs to an external scheduler. The routes sit
// behind the X-Cron-Secret middleware, not the session auth.
type CronHandler struct {
	streaks services.StreakServiceInterface
	cfg     *config.Config
	logger  *observability.Logger
}

// NewCronHandler creates a new CronHandler
func NewCronHandler(streaks services.StreakServiceInterface, cfg *config.Config, logger *observability.Logger) *CronHandler {
	return &CronHandler{
		streaks: streaks,
		cfg:     cfg,
		logger:  logger,
	}
}

// DailyStreakCheck consumes freezes for users who missed yesterday and resets
// the rest. Safe to re-run; a second invocation is a no-op.
func (h *CronHandler) DailyStreakCheck(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "cron_daily_streak_check")
	defer span.End()

	result, err := h.streaks.RunDailyCheck(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Daily streak check completed", map[string]interface{}{
		"freezes_consumed": result.FreezesConsumed,
		"streaks_reset":    result.StreaksReset,
	})

	c.JSON(http.StatusOK, result)
}

// WeeklyFreezeReset restores the streak freeze for users whose last reset is
// at least a week old.
func (h *CronHandler) WeeklyFreezeReset(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "cron_weekly_freeze_reset")
	defer span.End()

	restored, err := h.streaks.RunWeeklyFreezeReset(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Weekly freeze reset completed", map[string]interface{}{
		"freezes_restored": restored,
	})

	c.JSON(http.StatusOK, gin.H{"freezes_restored": restored})
}
