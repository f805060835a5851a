package handlers

import (
	"net/http"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/gin-gonic/gin"
)

// EDLHandler exposes the adaptive difficulty state (the "effective difficulty
// level") to the client.
type EDLHandler struct {
	adaptive services.AdaptiveServiceInterface
	cfg      *config.Config
	logger   *observability.Logger
}

// NewEDLHandler creates a new EDLHandler
func NewEDLHandler(adaptive services.AdaptiveServiceInterface, cfg *config.Config, logger *observability.Logger) *EDLHandler {
	return &EDLHandler{
		adaptive: adaptive,
		cfg:      cfg,
		logger:   logger,
	}
}

// edlStatusView is the client-facing projection of PerformanceMetrics.
type edlStatusView struct {
	Subject               models.Subject   `json:"subject"`
	EffectiveAge          int              `json:"effective_age"`
	PerformanceAdjustment int              `json:"performance_adjustment"`
	RecentAccuracy        *float64         `json:"recent_accuracy"`
	Status                models.EDLStatus `json:"status"`
	TotalQuizzes          int              `json:"total_quizzes"`
	NextAdjustmentIn      int              `json:"next_adjustment_in"`
}

func newEDLStatusView(pm *models.PerformanceMetrics) *edlStatusView {
	return &edlStatusView{
		Subject:               pm.Subject,
		EffectiveAge:          pm.EffectiveAge,
		PerformanceAdjustment: pm.PerformanceAdjustment,
		RecentAccuracy:        pm.RecentAccuracy(),
		Status:                pm.Status(),
		TotalQuizzes:          pm.TotalQuizzesCompleted,
		NextAdjustmentIn:      pm.NextAdjustmentIn(),
	}
}

// GetStatus returns the adaptive state for every assessed subject.
func (h *EDLHandler) GetStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "edl_status_all")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	metrics, err := h.adaptive.GetAllMetrics(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	views := make([]*edlStatusView, 0, len(metrics))
	for _, pm := range metrics {
		views = append(views, newEDLStatusView(pm))
	}

	c.JSON(http.StatusOK, gin.H{"subjects": views})
}

// GetSubjectStatus returns the adaptive state for one subject.
func (h *EDLHandler) GetSubjectStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "edl_status_subject")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	subject := models.Subject(c.Param("subject"))
	if !subject.Valid() {
		HandleAppError(c, contextutils.ErrInvalidSubject)
		return
	}

	pm, err := h.adaptive.GetMetrics(ctx, userID, subject)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newEDLStatusView(pm))
}
