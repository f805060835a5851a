//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/database"
	"practicehub/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, isolated database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	observabilityLogger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(observabilityLogger)

	// Require TEST_DATABASE_URL environment variable to be set
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)

	return db
}

// cleanupDatabase truncates every table touched by the integration tests and
// resets the serial sequences so IDs are predictable across runs.
func cleanupDatabase(db *sql.DB, logger *observability.Logger) {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "Failed to begin cleanup transaction", err)
		}
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	cleanupQueries := []string{
		"TRUNCATE TABLE streak_milestones CASCADE",
		"TRUNCATE TABLE user_achievements CASCADE",
		"TRUNCATE TABLE achievements CASCADE",
		"TRUNCATE TABLE point_transactions CASCADE",
		"TRUNCATE TABLE subject_stats CASCADE",
		"TRUNCATE TABLE user_stats CASCADE",
		"TRUNCATE TABLE question_attempts CASCADE",
		"TRUNCATE TABLE quiz_attempts CASCADE",
		"TRUNCATE TABLE performance_metrics CASCADE",
		"TRUNCATE TABLE questions CASCADE",
		"TRUNCATE TABLE users CASCADE",
	}

	for _, query := range cleanupQueries {
		_, err := tx.ExecContext(ctx, query)
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "Could not execute cleanup query", map[string]interface{}{
					"query": query,
				})
			}
		}
	}

	sequenceQueries := []string{
		"ALTER SEQUENCE users_id_seq RESTART WITH 1",
		"ALTER SEQUENCE questions_id_seq RESTART WITH 1",
		"ALTER SEQUENCE quiz_attempts_id_seq RESTART WITH 1",
		"ALTER SEQUENCE question_attempts_id_seq RESTART WITH 1",
		"ALTER SEQUENCE point_transactions_id_seq RESTART WITH 1",
		"ALTER SEQUENCE achievements_id_seq RESTART WITH 1",
	}

	for _, query := range sequenceQueries {
		_, err := tx.ExecContext(ctx, query)
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "Could not reset sequence", map[string]interface{}{
					"query": query,
				})
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		if logger != nil {
			logger.Error(ctx, "Failed to commit cleanup transaction", err)
		}
	}
}

// CleanupTestDatabase cleans up the database for integration tests
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	cleanupDatabase(db, nil)
}

// mustCreateTestUser inserts a user directly and returns its ID.
func mustCreateTestUser(t *testing.T, db *sql.DB, username string, age int) int {
	t.Helper()
	var id int
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO users (username, email, password_hash, age)
		VALUES ($1, $2, 'x', $3)
		RETURNING id`,
		username, username+"@example.com", age).Scan(&id)
	require.NoError(t, err)
	return id
}
