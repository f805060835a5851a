// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"practicehub/internal/config"
	"practicehub/internal/database"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/redis/go-redis/v9"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetAdaptiveService() (services.AdaptiveServiceInterface, error)
	GetAssessmentService() (services.AssessmentServiceInterface, error)
	GetQuizService() (services.QuizServiceInterface, error)
	GetQuestionSelectorService() (services.QuestionSelectorServiceInterface, error)
	GetPointsService() (services.PointsServiceInterface, error)
	GetStreakService() (services.StreakServiceInterface, error)
	GetAchievementService() (services.AchievementServiceInterface, error)
	GetTutorService() (services.TutorServiceInterface, error)
	GetEmailService() (services.EmailServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	redisClient   *redis.Client
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	// Optional Redis connection for the tutor cache
	if sc.cfg.Redis.Enabled {
		sc.redisClient = redis.NewClient(&redis.Options{
			Addr:     sc.cfg.Redis.Addr,
			Password: sc.cfg.Redis.Password,
			DB:       sc.cfg.Redis.DB,
		})
		if err := sc.redisClient.Ping(ctx).Err(); err != nil {
			sc.logger.Warn(ctx, "Redis unreachable, tutor cache falls back to in-process", map[string]interface{}{
				"addr":  sc.cfg.Redis.Addr,
				"error": err.Error(),
			})
			sc.redisClient = nil
		} else {
			client := sc.redisClient
			sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
				return client.Close()
			})
		}
	}

	sc.initializeServices(ctx)

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetAdaptiveService returns the adaptive difficulty service
func (sc *ServiceContainer) GetAdaptiveService() (services.AdaptiveServiceInterface, error) {
	return GetServiceAs[services.AdaptiveServiceInterface](sc, "adaptive")
}

// GetAssessmentService returns the assessment service
func (sc *ServiceContainer) GetAssessmentService() (services.AssessmentServiceInterface, error) {
	return GetServiceAs[services.AssessmentServiceInterface](sc, "assessment")
}

// GetQuizService returns the quiz service
func (sc *ServiceContainer) GetQuizService() (services.QuizServiceInterface, error) {
	return GetServiceAs[services.QuizServiceInterface](sc, "quiz")
}

// GetQuestionSelectorService returns the question selector service
func (sc *ServiceContainer) GetQuestionSelectorService() (services.QuestionSelectorServiceInterface, error) {
	return GetServiceAs[services.QuestionSelectorServiceInterface](sc, "question_selector")
}

// GetPointsService returns the points service
func (sc *ServiceContainer) GetPointsService() (services.PointsServiceInterface, error) {
	return GetServiceAs[services.PointsServiceInterface](sc, "points")
}

// GetStreakService returns the streak service
func (sc *ServiceContainer) GetStreakService() (services.StreakServiceInterface, error) {
	return GetServiceAs[services.StreakServiceInterface](sc, "streak")
}

// GetAchievementService returns the achievement service
func (sc *ServiceContainer) GetAchievementService() (services.AchievementServiceInterface, error) {
	return GetServiceAs[services.AchievementServiceInterface](sc, "achievement")
}

// GetTutorService returns the tutor service
func (sc *ServiceContainer) GetTutorService() (services.TutorServiceInterface, error) {
	return GetServiceAs[services.TutorServiceInterface](sc, "tutor")
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (services.EmailServiceInterface, error) {
	return GetServiceAs[services.EmailServiceInterface](sc, "email")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown services in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	// Core services that don't depend on other services
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	adaptiveService := services.NewAdaptiveServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["adaptive"] = adaptiveService

	pointsService := services.NewPointsServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["points"] = pointsService

	// Streaks award milestone bonuses through the points ledger
	streakService := services.NewStreakServiceWithLogger(sc.db, sc.cfg, pointsService, sc.logger)
	sc.services["streak"] = streakService

	achievementService := services.NewAchievementServiceWithLogger(sc.db, sc.cfg, pointsService, sc.logger)
	sc.services["achievement"] = achievementService

	assessmentService := services.NewAssessmentServiceWithLogger(sc.db, sc.cfg, adaptiveService, pointsService, streakService, sc.logger)
	sc.services["assessment"] = assessmentService

	quizService := services.NewQuizServiceWithLogger(sc.db, sc.cfg, adaptiveService, pointsService, streakService, achievementService, sc.logger)
	sc.services["quiz"] = quizService

	selectorService := services.NewQuestionSelectorServiceWithLogger(sc.db, sc.cfg, adaptiveService, sc.logger)
	sc.services["question_selector"] = selectorService

	tutorService := services.NewTutorServiceWithLogger(sc.cfg, sc.redisClient, sc.logger)
	sc.services["tutor"] = tutorService

	emailService := services.NewEmailService(sc.cfg, sc.logger)
	sc.services["email"] = emailService
}

// EnsureAdminUser creates the admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminPassword)
}
