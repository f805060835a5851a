package handlers

import (
	"context"
	"database/sql"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/services"

	"github.com/stretchr/testify/mock"
)

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUserWithPassword(ctx context.Context, username, email, password string, age int) (*models.User, error) {
	args := m.Called(ctx, username, email, password, age)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserAge(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserService) UpdateLastActive(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) IsAdmin(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error {
	args := m.Called(ctx, adminUsername, adminPassword)
	return args.Error(0)
}

func (m *MockUserService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) error {
	args := m.Called(ctx, userID, newPassword)
	return args.Error(0)
}

func (m *MockUserService) GetDB() *sql.DB {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*sql.DB)
}

// MockAssessmentService implements AssessmentServiceInterface for testing
type MockAssessmentService struct {
	mock.Mock
}

func (m *MockAssessmentService) SubmitAssessment(ctx context.Context, userID int, subject models.Subject, correct, total, chronologicalAge int) (*services.AssessmentResult, error) {
	args := m.Called(ctx, userID, subject, correct, total, chronologicalAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AssessmentResult), args.Error(1)
}

// MockQuizService implements QuizServiceInterface for testing
type MockQuizService struct {
	mock.Mock
}

func (m *MockQuizService) RecordQuizAttempt(ctx context.Context, userID int, submission *services.QuizSubmission) (*services.QuizResult, error) {
	args := m.Called(ctx, userID, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.QuizResult), args.Error(1)
}

func (m *MockQuizService) GetRecentAttempts(ctx context.Context, userID int, subject models.Subject, limit int) ([]*models.QuizAttempt, error) {
	args := m.Called(ctx, userID, subject, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QuizAttempt), args.Error(1)
}

// MockQuestionSelectorService implements QuestionSelectorServiceInterface for testing
type MockQuestionSelectorService struct {
	mock.Mock
}

func (m *MockQuestionSelectorService) SelectQuestions(ctx context.Context, userID int, subject models.Subject, age int, mode models.SelectionMode, difficulty models.Difficulty, limit int) (*services.SelectionResult, error) {
	args := m.Called(ctx, userID, subject, age, mode, difficulty, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SelectionResult), args.Error(1)
}

// MockAdaptiveService implements AdaptiveServiceInterface for testing
type MockAdaptiveService struct {
	mock.Mock
}

func (m *MockAdaptiveService) InitializeMetrics(ctx context.Context, userID int, subject models.Subject, assessmentScorePct float64, chronologicalAge int) (*models.PerformanceMetrics, error) {
	args := m.Called(ctx, userID, subject, assessmentScorePct, chronologicalAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PerformanceMetrics), args.Error(1)
}

func (m *MockAdaptiveService) UpdateAfterQuiz(ctx context.Context, userID int, subject models.Subject, scorePct float64) (*models.PerformanceMetrics, error) {
	args := m.Called(ctx, userID, subject, scorePct)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PerformanceMetrics), args.Error(1)
}

func (m *MockAdaptiveService) GetMetrics(ctx context.Context, userID int, subject models.Subject) (*models.PerformanceMetrics, error) {
	args := m.Called(ctx, userID, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PerformanceMetrics), args.Error(1)
}

func (m *MockAdaptiveService) GetAllMetrics(ctx context.Context, userID int) ([]*models.PerformanceMetrics, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PerformanceMetrics), args.Error(1)
}

// MockPointsService implements PointsServiceInterface for testing
type MockPointsService struct {
	mock.Mock
}

func (m *MockPointsService) AwardPoints(ctx context.Context, userID, basePoints int, txType models.TransactionType, relatedEntity string, metadata map[string]interface{}) (*services.AwardResult, error) {
	args := m.Called(ctx, userID, basePoints, txType, relatedEntity, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AwardResult), args.Error(1)
}

func (m *MockPointsService) AddSubjectXP(ctx context.Context, userID int, subject models.Subject, xp int) error {
	args := m.Called(ctx, userID, subject, xp)
	return args.Error(0)
}

func (m *MockPointsService) GetUserStats(ctx context.Context, userID int) (*models.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStats), args.Error(1)
}

func (m *MockPointsService) GetSubjectStats(ctx context.Context, userID int) ([]*models.SubjectStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubjectStats), args.Error(1)
}

func (m *MockPointsService) GetRecentTransactions(ctx context.Context, userID, limit int) ([]*models.PointTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PointTransaction), args.Error(1)
}

func (m *MockPointsService) GetLeaderboard(ctx context.Context, limit int) ([]*services.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.LeaderboardEntry), args.Error(1)
}

// MockAchievementService implements AchievementServiceInterface for testing
type MockAchievementService struct {
	mock.Mock
}

func (m *MockAchievementService) CheckAchievements(ctx context.Context, userID int) ([]*services.UnlockedAchievement, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.UnlockedAchievement), args.Error(1)
}

func (m *MockAchievementService) GetUserAchievements(ctx context.Context, userID int) ([]*models.Achievement, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Achievement), args.Error(1)
}

func (m *MockAchievementService) GetCatalog(ctx context.Context) ([]*models.Achievement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Achievement), args.Error(1)
}

func (m *MockAchievementService) SeedCatalog(ctx context.Context, entries []config.CatalogAchievement) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

// MockStreakService implements StreakServiceInterface for testing
type MockStreakService struct {
	mock.Mock
}

func (m *MockStreakService) RecordActivity(ctx context.Context, userID int) (*services.StreakUpdate, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StreakUpdate), args.Error(1)
}

func (m *MockStreakService) RunDailyCheck(ctx context.Context) (*services.DailyCheckResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DailyCheckResult), args.Error(1)
}

func (m *MockStreakService) RunWeeklyFreezeReset(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStreakService) GetStreakAtRiskUsers(ctx context.Context) ([]*services.StreakReminderTarget, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.StreakReminderTarget), args.Error(1)
}

// MockTutorService implements TutorServiceInterface for testing
type MockTutorService struct {
	mock.Mock
}

func (m *MockTutorService) GetHelp(ctx context.Context, userID int, req *services.TutorRequest) (*services.TutorResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TutorResponse), args.Error(1)
}
