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

// TutorHandler exposes the external hint/explanation collaborator. The route
// is rate limited per IP; identical requests are served from cache.
type TutorHandler struct {
	tutor  services.TutorServiceInterface
	cfg    *config.Config
	logger *observability.Logger
}

// NewTutorHandler creates a new TutorHandler
func NewTutorHandler(tutor services.TutorServiceInterface, cfg *config.Config, logger *observability.Logger) *TutorHandler {
	return &TutorHandler{
		tutor:  tutor,
		cfg:    cfg,
		logger: logger,
	}
}

type tutorHintQuery struct {
	Subject string `form:"subject" binding:"required"`
	Kind    string `form:"kind" binding:"omitempty,oneof=hint explanation"`
	Prompt  string `form:"prompt" binding:"required"`
	Answer  string `form:"answer"`
}

// GetHint asks the tutor for a hint or explanation for a question.
func (h *TutorHandler) GetHint(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "tutor_get_hint")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var query tutorHintQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		HandleValidationError(c, "tutor request", nil, err.Error())
		return
	}
	if query.Kind == "" {
		query.Kind = "hint"
	}

	resp, err := h.tutor.GetHelp(ctx, userID, &services.TutorRequest{
		Subject: models.Subject(query.Subject),
		Kind:    query.Kind,
		Prompt:  query.Prompt,
		Answer:  query.Answer,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
