package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"practicehub/internal/observability"
)

// CleanupService handles database maintenance tasks for the question bank
// and attempt history.
type CleanupService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewCleanupServiceWithLogger creates a new cleanup service with logger
func NewCleanupServiceWithLogger(db *sql.DB, logger *observability.Logger) *CleanupService {
	return &CleanupService{
		db:     db,
		logger: logger,
	}
}

// CleanupRetiredQuestions removes deactivated questions that no attempt row
// references. Retired questions still referenced by history are kept so
// per-question attempt detail stays resolvable.
func (c *CleanupService) CleanupRetiredQuestions(ctx context.Context) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "cleanup_retired_questions")
	defer func() {
		if err != nil {
			span.RecordError(err, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.db == nil {
		return errors.New("database connection not available")
	}

	var count int
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM questions q
		WHERE NOT q.active
		AND NOT EXISTS (SELECT 1 FROM question_attempts qa WHERE qa.question_id = q.id)
	`).Scan(&count)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	span.SetAttributes(attribute.Int("cleanup.retired_questions_count", count))

	if count == 0 {
		c.logger.Info(ctx, "No retired questions to cleanup", map[string]interface{}{})
		span.SetAttributes(attribute.String("cleanup.result", "no_retired_questions"))
		return nil
	}

	c.logger.Info(ctx, "Found retired questions to cleanup", map[string]interface{}{"count": count})

	result, err := c.db.ExecContext(ctx, `
		DELETE FROM questions q
		WHERE NOT q.active
		AND NOT EXISTS (SELECT 1 FROM question_attempts qa WHERE qa.question_id = q.id)
	`)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	span.SetAttributes(
		attribute.Int64("cleanup.rows_affected", rowsAffected),
		attribute.String("cleanup.result", "success"),
	)

	c.logger.Info(ctx, "Successfully cleaned up retired questions", map[string]interface{}{"rows_affected": rowsAffected})
	return nil
}

// CleanupOrphanedQuestionAttempts removes per-question attempt detail whose
// source question was deleted. The parent quiz attempt row keeps the
// aggregate score, so nothing user-visible is lost.
func (c *CleanupService) CleanupOrphanedQuestionAttempts(ctx context.Context) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "cleanup_orphaned_question_attempts")
	defer func() {
		if err != nil {
			span.RecordError(err, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.db == nil {
		return errors.New("database connection not available")
	}

	var count int
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM question_attempts
		WHERE question_id IS NULL
	`).Scan(&count)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	span.SetAttributes(attribute.Int("cleanup.orphaned_attempts_count", count))

	if count == 0 {
		c.logger.Info(ctx, "No orphaned question attempts to cleanup", map[string]interface{}{})
		span.SetAttributes(attribute.String("cleanup.result", "no_orphaned_attempts"))
		return nil
	}

	c.logger.Info(ctx, "Found orphaned question attempts to cleanup", map[string]interface{}{"count": count})

	result, err := c.db.ExecContext(ctx, `
		DELETE FROM question_attempts
		WHERE question_id IS NULL
	`)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	span.SetAttributes(
		attribute.Int64("cleanup.rows_affected", rowsAffected),
		attribute.String("cleanup.result", "success"),
	)

	c.logger.Info(ctx, "Successfully cleaned up orphaned question attempts", map[string]interface{}{"rows_affected": rowsAffected})
	return nil
}

// RunFullCleanup performs all cleanup operations
func (c *CleanupService) RunFullCleanup(ctx context.Context) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "run_full_cleanup")
	defer func() {
		if err != nil {
			span.RecordError(err, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	span.SetAttributes(attribute.String("cleanup.start_time", time.Now().Format(time.RFC3339)))

	c.logger.Info(ctx, "Starting database cleanup", map[string]interface{}{"start_time": time.Now().Format(time.RFC3339)})

	if err = c.CleanupOrphanedQuestionAttempts(ctx); err != nil {
		c.logger.Error(ctx, "Failed to cleanup orphaned question attempts", err, map[string]interface{}{})
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	if err = c.CleanupRetiredQuestions(ctx); err != nil {
		c.logger.Error(ctx, "Failed to cleanup retired questions", err, map[string]interface{}{})
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	span.SetAttributes(
		attribute.String("cleanup.end_time", time.Now().Format(time.RFC3339)),
		attribute.String("cleanup.result", "success"),
	)

	c.logger.Info(ctx, "Database cleanup completed successfully", map[string]interface{}{"end_time": time.Now().Format(time.RFC3339)})
	return nil
}

// GetCleanupStats returns counts of what a full cleanup would remove.
func (c *CleanupService) GetCleanupStats(ctx context.Context) (result0 map[string]int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_cleanup_stats")
	defer func() {
		if err != nil {
			span.RecordError(err, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.db == nil {
		return nil, errors.New("database connection not available")
	}

	stats := make(map[string]int)

	var retiredCount int
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM questions q
		WHERE NOT q.active
		AND NOT EXISTS (SELECT 1 FROM question_attempts qa WHERE qa.question_id = q.id)
	`).Scan(&retiredCount)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}
	stats["retired_questions"] = retiredCount

	var orphanedCount int
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM question_attempts
		WHERE question_id IS NULL
	`).Scan(&orphanedCount)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}
	stats["orphaned_question_attempts"] = orphanedCount

	span.SetAttributes(
		attribute.Int("cleanup.stats.retired_questions", retiredCount),
		attribute.Int("cleanup.stats.orphaned_question_attempts", orphanedCount),
	)

	return stats, nil
}
