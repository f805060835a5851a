package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"practicehub/internal/models"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type assessmentRouterEnv struct {
	testRouterEnv
	assessments *MockAssessmentService
	users       *MockUserService
}

func newAssessmentTestRouter() *assessmentRouterEnv {
	env := &assessmentRouterEnv{
		assessments: &MockAssessmentService{},
		users:       &MockUserService{},
	}
	router := newSessionRouter()
	handler := NewAssessmentHandler(env.assessments, env.users, newTestConfig(), newTestLogger())
	router.POST("/v1/assessment/:subject/submit", handler.Submit)
	env.router = router
	return env
}

func TestAssessmentHandler_Submit(t *testing.T) {
	env := newAssessmentTestRouter()
	env.users.On("GetUserAge", mock.Anything, 42).Return(10, nil)
	env.assessments.On("SubmitAssessment", mock.Anything, 42, models.SubjectMath, 9, 10, 10).
		Return(&services.AssessmentResult{
			ScorePercentage: 90,
			SkillLevel:      5,
			PointsAwarded:   50,
		}, nil)

	cookies := loginCookies(t, env.router)
	body, _ := json.Marshal(map[string]interface{}{
		"total_questions": 10,
		"correct_answers": 9,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessment/math/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	attachCookies(req, cookies)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp services.AssessmentResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 90.0, resp.ScorePercentage, 0.001)
	assert.Equal(t, 5, resp.SkillLevel)
	env.assessments.AssertExpectations(t)
}

func TestAssessmentHandler_Submit_ExplicitAge(t *testing.T) {
	env := newAssessmentTestRouter()
	env.assessments.On("SubmitAssessment", mock.Anything, 42, models.SubjectScience, 6, 10, 13).
		Return(&services.AssessmentResult{ScorePercentage: 60, SkillLevel: 3}, nil)

	cookies := loginCookies(t, env.router)
	body, _ := json.Marshal(map[string]interface{}{
		"total_questions": 10,
		"correct_answers": 6,
		"age":             13,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessment/science/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	attachCookies(req, cookies)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// Age from the request body wins, so no profile lookup happens.
	env.users.AssertNotCalled(t, "GetUserAge", mock.Anything, mock.Anything)
}

func TestAssessmentHandler_Submit_UnknownSubject(t *testing.T) {
	env := newAssessmentTestRouter()
	cookies := loginCookies(t, env.router)

	body, _ := json.Marshal(map[string]interface{}{"total_questions": 10, "correct_answers": 5})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessment/alchemy/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	attachCookies(req, cookies)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SUBJECT")
}

func TestAssessmentHandler_Submit_NoAgeAnywhere(t *testing.T) {
	env := newAssessmentTestRouter()
	env.users.On("GetUserAge", mock.Anything, 42).
		Return(0, contextutils.ErrRecordNotFound)

	cookies := loginCookies(t, env.router)
	body, _ := json.Marshal(map[string]interface{}{"total_questions": 10, "correct_answers": 5})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessment/math/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	attachCookies(req, cookies)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssessmentHandler_Submit_RequiresAuth(t *testing.T) {
	env := newAssessmentTestRouter()

	body, _ := json.Marshal(map[string]interface{}{"total_questions": 10, "correct_answers": 5})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessment/math/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
