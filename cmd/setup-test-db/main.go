// Package main provides a utility to set up the test database with initial data.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"practicehub/internal/config"
	"practicehub/internal/database"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/lib/pq"
	"go.uber.org/zap/zapcore"
)

// TestUser describes one seeded student account.
type TestUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

// seededUsers is the fixed roster of student accounts E2E tests log in as.
var seededUsers = []TestUser{
	{Username: "maya", Email: "maya@example.com", Password: "maya-password-1", Age: 8},
	{Username: "leo", Email: "leo@example.com", Password: "leo-password-1", Age: 11},
	{Username: "ana", Email: "ana@example.com", Password: "ana-password-1", Age: 14},
	{Username: "sam", Email: "sam@example.com", Password: "sam-password-1", Age: 17},
}

func resetTestDatabase(databaseURL, testDB string, logger *observability.Logger) error {
	ctx := context.Background()

	// Create admin connection string by replacing the database name with 'postgres'
	// This connects to the admin database to drop/create the test database
	adminConnStr := strings.Replace(databaseURL, "/"+testDB+"?", "/postgres?", 1)
	if !strings.Contains(adminConnStr, "/postgres?") {
		// Handle case where there's no query string
		adminConnStr = strings.Replace(databaseURL, "/"+testDB, "/postgres", 1)
	}

	logger.Info(ctx, "Connecting to admin database", map[string]interface{}{"connection_string": adminConnStr})
	adminDB, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to connect to postgres database for drop/create: %v", err)
	}
	defer func() {
		if err := adminDB.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close adminDB", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info(ctx, "Terminating connections to test DB", map[string]interface{}{"database": testDB})
	_, err = adminDB.Exec(fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid();
	`, testDB))
	if err != nil {
		logger.Warn(ctx, "Warning: failed to terminate connections", map[string]interface{}{"error": err.Error()})
	}

	logger.Info(ctx, "Dropping test database", map[string]interface{}{"database": testDB})
	_, err = adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE);", testDB))
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to drop test database: %v", err)
	}
	logger.Info(ctx, "Successfully dropped test database", map[string]interface{}{"database": testDB})

	logger.Info(ctx, "Creating test database", map[string]interface{}{"database": testDB})
	_, err = adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s;", testDB))
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create test database: %v", err)
	}
	logger.Info(ctx, "Successfully created test database", map[string]interface{}{"database": testDB})

	logger.Info(ctx, "Test database reset complete")
	return nil
}

func main() {
	ctx := context.Background()

	// CLI flags
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	questionsPerPool := flag.Int("questions-per-pool", 5, "questions to seed per subject/age/difficulty pool")
	flag.Parse()

	// Load configuration first
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup observability (tracing/metrics). Suppress logger creation here to avoid startup noise.
	originalLogging := cfg.OpenTelemetry.EnableLogging
	cfg.OpenTelemetry.EnableLogging = false
	tp, mp, _, err := observability.SetupObservability(&cfg.OpenTelemetry, "setup-test-db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// Create logger with level based on --verbose flag
	logLevel := zapcore.WarnLevel
	if *verbose {
		logLevel = zapcore.InfoLevel
	}
	// Restore config flag for logger construction (to allow OTLP exporter if enabled)
	cfg.OpenTelemetry.EnableLogging = originalLogging
	logger := observability.NewLoggerWithLevel(&cfg.OpenTelemetry, logLevel)
	defer func() {
		if err := observability.ShutdownTracerProvider(context.TODO(), tp); err != nil {
			logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error()})
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error()})
			}
		}
	}()

	// Get DB connection info from env or use defaults
	dbUser := "practicehub_user"
	dbPassword := "practicehub_password"
	dbHost := "localhost"
	dbPort := "5433"
	testDB := "practicehub_test_db"

	// Allow override from DATABASE_URL
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, testDB)
	}

	logger.Info(ctx, "Using database URL", map[string]interface{}{"database_url": databaseURL})

	// --- Drop and recreate the test database ---
	if err := resetTestDatabase(databaseURL, testDB, logger); err != nil {
		logger.Error(ctx, "Failed to reset test database", err)
		os.Exit(1)
	}

	// Now connect to the new test database; InitDB runs the migrations.
	logger.Info(ctx, "Connecting to database", map[string]interface{}{"database_url": databaseURL})

	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDB(databaseURL)
	if err != nil {
		logger.Error(ctx, "Failed to initialize database", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Initialize services
	userService := services.NewUserServiceWithLogger(db, cfg, logger)
	pointsService := services.NewPointsServiceWithLogger(db, cfg, logger)
	achievementService := services.NewAchievementServiceWithLogger(db, cfg, pointsService, logger)

	// Ensure admin user exists
	if err := userService.EnsureAdminUserExists(ctx, "admin", "password"); err != nil {
		logger.Error(ctx, "Failed to ensure admin user exists", err)
		os.Exit(1)
	}

	// Seed student accounts
	users, err := createTestUsers(ctx, userService, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create test users", err)
		os.Exit(1)
	}

	// Seed the question bank
	seeded, err := seedQuestionBank(ctx, db, *questionsPerPool, logger)
	if err != nil {
		logger.Error(ctx, "Failed to seed question bank", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Seeded question bank", map[string]interface{}{"questions": seeded})

	// Seed the achievements catalog when the file is present
	if err := seedAchievements(ctx, achievementService, logger); err != nil {
		logger.Error(ctx, "Failed to seed achievements", err)
		os.Exit(1)
	}

	// Output user data to JSON file for E2E tests
	rootDir, err := os.Getwd()
	if err != nil {
		logger.Error(ctx, "Failed to get working directory", err)
		os.Exit(1)
	}
	if err := outputUserDataForTests(users, rootDir, logger); err != nil {
		logger.Error(ctx, "Failed to output user data for tests", err)
		os.Exit(1)
	}

	logger.Info(ctx, "Test database created successfully")
}

// createTestUsers creates the fixed student roster.
func createTestUsers(ctx context.Context, userService *services.UserService, logger *observability.Logger) (map[string]*models.User, error) {
	created := make(map[string]*models.User, len(seededUsers))
	for _, tu := range seededUsers {
		user, err := userService.CreateUserWithPassword(ctx, tu.Username, tu.Email, tu.Password, tu.Age)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to create test user '%s'", tu.Username)
		}
		created[tu.Username] = user
		logger.Info(ctx, "Created test user", map[string]interface{}{"username": user.Username, "user_id": user.ID, "age": tu.Age})
	}
	return created, nil
}

// seedQuestionBank fills every subject/age/difficulty pool with templated
// multiple-choice questions. The content is synthetic; what matters to tests
// is that every pool the selector can ask for is non-empty.
func seedQuestionBank(ctx context.Context, db *sql.DB, perPool int, logger *observability.Logger) (int, error) {
	total := 0
	for _, subject := range models.AllSubjects {
		for age := models.MinContentAge; age <= models.MaxContentAge; age++ {
			for _, difficulty := range []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
				for n := 1; n <= perPool; n++ {
					prompt := fmt.Sprintf("[%s/%s, age %d] Practice question %d", subject, difficulty, age, n)
					options := pq.StringArray{
						fmt.Sprintf("Answer A for %s %d", subject, n),
						fmt.Sprintf("Answer B for %s %d", subject, n),
						fmt.Sprintf("Answer C for %s %d", subject, n),
						fmt.Sprintf("Answer D for %s %d", subject, n),
					}
					correctIdx := n % len(options)
					explanation := fmt.Sprintf("Option %d is correct for practice question %d.", correctIdx+1, n)

					_, err := db.ExecContext(ctx, `
						INSERT INTO questions (subject, difficulty, age_group, prompt, options, correct_idx, explanation)
						VALUES ($1, $2, $3, $4, $5, $6, $7)`,
						string(subject), string(difficulty), age, prompt, options, correctIdx, explanation)
					if err != nil {
						return total, contextutils.WrapErrorf(err, "failed to seed question for %s/%s age %d", subject, difficulty, age)
					}
					total++
				}
			}
		}
	}
	logger.Info(ctx, "Question bank seeded", map[string]interface{}{"total": total, "per_pool": perPool})
	return total, nil
}

// seedAchievements loads the repo catalog file when present. A missing file
// is not an error; unit fixtures create their own achievements.
func seedAchievements(ctx context.Context, achievementService *services.AchievementService, logger *observability.Logger) error {
	catalogPath := "achievements.catalog.json"
	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		logger.Info(ctx, "No achievements catalog file, skipping seed", map[string]interface{}{"path": catalogPath})
		return nil
	}

	catalog, err := config.LoadAchievementsCatalog(catalogPath)
	if err != nil {
		return contextutils.WrapError(err, "failed to load achievements catalog")
	}

	seeded, err := achievementService.SeedCatalog(ctx, catalog)
	if err != nil {
		return contextutils.WrapError(err, "failed to seed achievements catalog")
	}

	logger.Info(ctx, "Achievements catalog seeded", map[string]interface{}{"seeded": seeded, "entries": len(catalog)})
	return nil
}

// outputUserDataForTests writes the seeded accounts, passwords included, to
// a JSON artifact E2E tests read to log in.
func outputUserDataForTests(users map[string]*models.User, rootDir string, logger *observability.Logger) error {
	ctx := context.Background()

	type userArtifact struct {
		TestUser
		ID int `json:"id"`
	}

	artifact := make([]userArtifact, 0, len(seededUsers))
	for _, tu := range seededUsers {
		user, ok := users[tu.Username]
		if !ok {
			continue
		}
		artifact = append(artifact, userArtifact{TestUser: tu, ID: user.ID})
	}

	outPath := filepath.Join(rootDir, "test_users.json")
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal test user data")
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return contextutils.WrapErrorf(err, "failed to write %s", outPath)
	}

	logger.Info(ctx, "Wrote test user artifact", map[string]interface{}{"path": outPath, "users": len(artifact)})
	return nil
}
