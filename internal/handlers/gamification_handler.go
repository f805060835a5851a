package handlers

import (
	"net/http"
	"strconv"

	"practicehub/internal/config"
	"practicehub/internal/middleware"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/gin-gonic/gin"
)

// GamificationHandler exposes the points, streak and achievement surface.
type GamificationHandler struct {
	points       services.PointsServiceInterface
	achievements services.AchievementServiceInterface
	cfg          *config.Config
	logger       *observability.Logger
}

// NewGamificationHandler creates a new GamificationHandler
func NewGamificationHandler(points services.PointsServiceInterface, achievements services.AchievementServiceInterface, cfg *config.Config, logger *observability.Logger) *GamificationHandler {
	return &GamificationHandler{
		points:       points,
		achievements: achievements,
		cfg:          cfg,
		logger:       logger,
	}
}

// GetProfile returns the full gamification profile: overall counters,
// per-subject XP, unlocked achievements and the newest ledger entries.
func (h *GamificationHandler) GetProfile(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "gamification_profile")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	stats, err := h.points.GetUserStats(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	subjects, err := h.points.GetSubjectStats(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	unlocked, err := h.achievements.GetUserAchievements(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	transactions, err := h.points.GetRecentTransactions(ctx, userID, 10)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":               stats,
		"subjects":            subjects,
		"achievements":        unlocked,
		"recent_transactions": transactions,
	})
}

// GetLeaderboard returns the top users by total XP.
func (h *GamificationHandler) GetLeaderboard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "gamification_leaderboard")
	defer span.End()

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			HandleValidationError(c, "limit", raw, "must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.points.GetLeaderboard(ctx, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// CheckAchievements re-evaluates the unlock catalog for the current user and
// returns anything newly unlocked.
func (h *GamificationHandler) CheckAchievements(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "gamification_check_achievements")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	newlyUnlocked, err := h.achievements.CheckAchievements(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"newly_unlocked": newlyUnlocked})
}

// GetAchievementCatalog returns every defined achievement.
func (h *GamificationHandler) GetAchievementCatalog(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "gamification_achievement_catalog")
	defer span.End()

	catalog, err := h.achievements.GetCatalog(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"achievements": catalog})
}

type awardPointsRequest struct {
	UserID     int    `json:"user_id" binding:"required,min=1"`
	BasePoints int    `json:"base_points" binding:"required,min=1"`
	Reason     string `json:"reason" binding:"required"`
}

// AwardPoints grants points to any user. Admin only; the grant goes through
// the normal ledger so multipliers and level recalculation apply.
func (h *GamificationHandler) AwardPoints(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "gamification_award_points")
	defer span.End()

	var req awardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "award request", nil, err.Error())
		return
	}

	result, err := h.points.AwardPoints(ctx, req.UserID, req.BasePoints,
		models.TransactionAdminGrant, req.Reason, map[string]interface{}{
			"granted_by": c.GetString(middleware.UsernameKey),
		})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
