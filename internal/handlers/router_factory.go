package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"practicehub/internal/config"
	"practicehub/internal/middleware"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	"practicehub/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	assessmentService services.AssessmentServiceInterface,
	quizService services.QuizServiceInterface,
	selectorService services.QuestionSelectorServiceInterface,
	adaptiveService services.AdaptiveServiceInterface,
	pointsService services.PointsServiceInterface,
	achievementService services.AchievementServiceInterface,
	streakService services.StreakServiceInterface,
	tutorService services.TutorServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging middleware using our observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backend"})
	})

	// OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddlewareWithErrorHandling("practicehub-backend"))

	// Standardized error responses and panic recovery
	router.Use(middleware.ErrorRecoveryMiddleware(logger))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Setup session middleware
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	// Per-IP budget for the tutor proxy
	tutorLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute, time.Minute, config.RateLimitSweepInterval)

	// Initialize handlers
	authHandler := NewAuthHandler(userService, cfg, logger)
	assessmentHandler := NewAssessmentHandler(assessmentService, userService, cfg, logger)
	quizHandler := NewQuizHandler(quizService, selectorService, userService, cfg, logger)
	edlHandler := NewEDLHandler(adaptiveService, cfg, logger)
	gamificationHandler := NewGamificationHandler(pointsService, achievementService, cfg, logger)
	cronHandler := NewCronHandler(streakService, cfg, logger)
	tutorHandler := NewTutorHandler(tutorService, cfg, logger)

	// Version endpoint (no auth)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   "backend",
			"version":   version.Version,
			"commit":    version.Commit,
			"buildTime": version.BuildTime,
		})
	})

	// V1 routes
	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/signup", authHandler.Signup)
			auth.GET("/status", authHandler.Status)
		}

		assessment := v1.Group("/assessment")
		assessment.Use(middleware.RequireAuth())
		{
			assessment.POST("/:subject/submit", assessmentHandler.Submit)
		}

		quiz := v1.Group("/quiz")
		quiz.Use(middleware.RequireAuth())
		{
			quiz.POST("/:subject/attempts", quizHandler.SubmitAttempt)
			quiz.GET("/:subject/attempts", quizHandler.GetRecentAttempts)
			quiz.GET("/:subject/questions", quizHandler.GetQuestions)
		}

		edl := v1.Group("/edl")
		edl.Use(middleware.RequireAuth())
		{
			edl.GET("/status", edlHandler.GetStatus)
			edl.GET("/status/:subject", edlHandler.GetSubjectStatus)
		}

		gamification := v1.Group("/gamification")
		gamification.Use(middleware.RequireAuth())
		{
			gamification.GET("/profile", gamificationHandler.GetProfile)
			gamification.GET("/leaderboard", gamificationHandler.GetLeaderboard)
			gamification.GET("/achievements", gamificationHandler.GetAchievementCatalog)
			gamification.POST("/achievements/check", gamificationHandler.CheckAchievements)
		}

		// Admin point grants
		v1.POST("/points/award", middleware.RequireAdmin(userService), gamificationHandler.AwardPoints)

		// Batch jobs, guarded by the shared cron secret instead of sessions
		cron := v1.Group("/cron")
		cron.Use(middleware.RequireCronSecret(cfg.Server.CronSecret))
		{
			cron.POST("/daily-streak-check", cronHandler.DailyStreakCheck)
			cron.POST("/weekly-freeze-reset", cronHandler.WeeklyFreezeReset)
		}

		tutor := v1.Group("/tutor")
		tutor.Use(middleware.RequireAuth())
		tutor.Use(middleware.RateLimit(tutorLimiter, "tutor"))
		{
			tutor.GET("/hint", tutorHandler.GetHint)
		}
	}

	// API-style 404 for anything under /v1
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown route"})
	})

	return router
}
