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

// AssessmentHandler exposes the placement assessment submission.
type AssessmentHandler struct {
	assessments services.AssessmentServiceInterface
	users       services.UserServiceInterface
	cfg         *config.Config
	logger      *observability.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler
func NewAssessmentHandler(assessments services.AssessmentServiceInterface, users services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		users:       users,
		cfg:         cfg,
		logger:      logger,
	}
}

type assessmentSubmission struct {
	TotalQuestions int `json:"total_questions" binding:"required,min=1"`
	CorrectAnswers int `json:"correct_answers" binding:"min=0"`
	// Age overrides the profile age when the account has none on file.
	Age int `json:"age"`
}

// Submit scores the placement assessment for a subject and initializes the
// adaptive difficulty state from the result.
func (h *AssessmentHandler) Submit(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "assessment_submit")
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

	var req assessmentSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "assessment submission", subject, err.Error())
		return
	}

	age := req.Age
	if age == 0 {
		profileAge, err := h.users.GetUserAge(ctx, userID)
		if err != nil {
			HandleValidationError(c, "age", age, "no age on profile and none provided")
			return
		}
		age = profileAge
	}

	result, err := h.assessments.SubmitAssessment(ctx, userID, subject, req.CorrectAnswers, req.TotalQuestions, age)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
