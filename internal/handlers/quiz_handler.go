package handlers

import (
	"net/http"
	"strconv"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/gin-gonic/gin"
)

// QuizHandler exposes quiz submission, history and question selection.
type QuizHandler struct {
	quiz     services.QuizServiceInterface
	selector services.QuestionSelectorServiceInterface
	users    services.UserServiceInterface
	cfg      *config.Config
	logger   *observability.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(quiz services.QuizServiceInterface, selector services.QuestionSelectorServiceInterface, users services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *QuizHandler {
	return &QuizHandler{
		quiz:     quiz,
		selector: selector,
		users:    users,
		cfg:      cfg,
		logger:   logger,
	}
}

type quizSubmissionRequest struct {
	Difficulty       string                   `json:"difficulty"`
	TotalQuestions   int                      `json:"total_questions" binding:"required,min=1"`
	CorrectAnswers   int                      `json:"correct_answers" binding:"min=0"`
	TimeSpentSeconds int                      `json:"time_spent_seconds" binding:"min=0"`
	QuestionAttempts []models.QuestionAttempt `json:"question_attempts"`
}

// SubmitAttempt records a finished quiz and runs the downstream effects
// (adaptive update, points, streak, achievements).
func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "quiz_submit_attempt")
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

	var req quizSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "quiz submission", subject, err.Error())
		return
	}

	result, err := h.quiz.RecordQuizAttempt(ctx, userID, &services.QuizSubmission{
		Subject:          subject,
		Difficulty:       models.Difficulty(req.Difficulty),
		TotalQuestions:   req.TotalQuestions,
		CorrectAnswers:   req.CorrectAnswers,
		TimeSpentSeconds: req.TimeSpentSeconds,
		QuestionAttempts: req.QuestionAttempts,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetQuestions selects a question set for the subject. Adaptive mode follows
// the user's difficulty state; manual mode takes an explicit difficulty.
func (h *QuizHandler) GetQuestions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "quiz_get_questions")
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

	mode := models.SelectionMode(c.DefaultQuery("mode", string(models.SelectionModeAdaptive)))
	if !mode.Valid() {
		HandleValidationError(c, "mode", c.Query("mode"), "must be adaptive or manual")
		return
	}

	var difficulty models.Difficulty
	if mode == models.SelectionModeManual {
		difficulty = models.Difficulty(c.Query("difficulty"))
		if !difficulty.Valid() {
			HandleValidationError(c, "difficulty", c.Query("difficulty"), "must be easy, medium or hard")
			return
		}
	}

	limit := config.DefaultSelectionLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			HandleValidationError(c, "limit", raw, "must be an integer")
			return
		}
		limit = parsed
	}

	age, err := h.users.GetUserAge(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	result, err := h.selector.SelectQuestions(ctx, userID, subject, age, mode, difficulty, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecentAttempts returns the user's most recent quiz attempts, optionally
// filtered to one subject.
func (h *QuizHandler) GetRecentAttempts(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "quiz_recent_attempts")
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

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			HandleValidationError(c, "limit", raw, "must be a positive integer")
			return
		}
		limit = parsed
	}

	attempts, err := h.quiz.GetRecentAttempts(ctx, userID, subject, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}
