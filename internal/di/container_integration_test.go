//go:build integration
// +build integration

package di

import (
	"context"
	"os"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ServiceContainerIntegrationTestSuite provides integration tests for the DI container
type ServiceContainerIntegrationTestSuite struct {
	suite.Suite
	Config    *config.Config
	Logger    *observability.Logger
	Container ServiceContainerInterface
}

func TestServiceContainerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceContainerIntegrationTestSuite))
}

func (suite *ServiceContainerIntegrationTestSuite) SetupSuite() {
	suite.Logger = observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	testDatabaseURL := os.Getenv("TEST_DATABASE_URL")
	require.NotEmpty(suite.T(), testDatabaseURL, "TEST_DATABASE_URL must be set for integration tests")

	suite.Config = &config.Config{
		Database: config.DatabaseConfig{URL: testDatabaseURL},
		Server: config.ServerConfig{
			AdminUsername: "admin",
			AdminPassword: "admin-test-password",
			SessionSecret: "integration-test-secret",
		},
		IsTest: true,
	}
	suite.Container = NewServiceContainer(suite.Config, suite.Logger)

	ctx := context.Background()
	require.NoError(suite.T(), suite.Container.Initialize(ctx))
	require.NoError(suite.T(), suite.Container.EnsureAdminUser(ctx))
}

func (suite *ServiceContainerIntegrationTestSuite) TearDownSuite() {
	if suite.Container != nil {
		assert.NoError(suite.T(), suite.Container.Shutdown(context.Background()))
	}
}

func (suite *ServiceContainerIntegrationTestSuite) TestAllServicesResolve() {
	userService, err := suite.Container.GetUserService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), userService)

	adaptiveService, err := suite.Container.GetAdaptiveService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), adaptiveService)

	assessmentService, err := suite.Container.GetAssessmentService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), assessmentService)

	quizService, err := suite.Container.GetQuizService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), quizService)

	selectorService, err := suite.Container.GetQuestionSelectorService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), selectorService)

	pointsService, err := suite.Container.GetPointsService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), pointsService)

	streakService, err := suite.Container.GetStreakService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), streakService)

	achievementService, err := suite.Container.GetAchievementService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), achievementService)

	tutorService, err := suite.Container.GetTutorService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), tutorService)

	emailService, err := suite.Container.GetEmailService()
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), emailService)
}

func (suite *ServiceContainerIntegrationTestSuite) TestUnknownServiceFails() {
	_, err := suite.Container.GetService("telepathy")
	assert.Error(suite.T(), err)
}

func (suite *ServiceContainerIntegrationTestSuite) TestDatabaseIsShared() {
	db := suite.Container.GetDatabase()
	require.NotNil(suite.T(), db)
	assert.NoError(suite.T(), db.Ping())
}

func (suite *ServiceContainerIntegrationTestSuite) TestAdminUserIsAdmin() {
	userService, err := suite.Container.GetUserService()
	require.NoError(suite.T(), err)

	ctx := context.Background()
	admin, err := userService.GetUserByUsername(ctx, "admin")
	require.NoError(suite.T(), err)

	isAdmin, err := userService.IsAdmin(ctx, admin.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), isAdmin)
}
