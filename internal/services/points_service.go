package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// MaxLevel caps the quadratic leveling curve.
const MaxLevel = 100

// LevelForXP returns the largest level L in [1,MaxLevel] whose threshold
// (L-1)^2 * 100 does not exceed totalXP.
func LevelForXP(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	level := int(math.Sqrt(float64(totalXP)/100.0)) + 1
	// Guard against float edge cases right at a threshold.
	for level > 1 && XPForLevel(level) > totalXP {
		level--
	}
	for level < MaxLevel && XPForLevel(level+1) <= totalXP {
		level++
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}

// XPForLevel returns the total XP threshold at which the level begins.
func XPForLevel(level int) int64 {
	return int64(level-1) * int64(level-1) * 100
}

// XPToNextLevel returns how much XP is missing until the next level, or 0 at
// the cap.
func XPToNextLevel(totalXP int64) int64 {
	level := LevelForXP(totalXP)
	if level >= MaxLevel {
		return 0
	}
	return XPForLevel(level+1) - totalXP
}

// AwardResult reports the outcome of a point award.
type AwardResult struct {
	PointsAwarded    int     `json:"points_awarded"`
	BasePoints       int     `json:"base_points"`
	StreakMultiplier float64 `json:"streak_multiplier"`
	LevelMultiplier  float64 `json:"level_multiplier"`
	NewTotalXP       int64   `json:"new_total_xp"`
	NewLevel         int     `json:"new_level"`
	XPToNextLevel    int64   `json:"xp_to_next_level"`
	LeveledUp        bool    `json:"leveled_up"`
	Duplicate        bool    `json:"duplicate,omitempty"`
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	Username   string `json:"username"`
	TotalXP    int64  `json:"total_xp"`
	Level      int    `json:"level"`
	StreakDays int    `json:"streak_days"`
}

// PointsServiceInterface defines the interface for the points engine
type PointsServiceInterface interface {
	AwardPoints(ctx context.Context, userID, basePoints int, txType models.TransactionType, relatedEntity string, metadata map[string]interface{}) (*AwardResult, error)
	AddSubjectXP(ctx context.Context, userID int, subject models.Subject, xp int) error
	GetUserStats(ctx context.Context, userID int) (*models.UserStats, error)
	GetSubjectStats(ctx context.Context, userID int) ([]*models.SubjectStats, error)
	GetRecentTransactions(ctx context.Context, userID, limit int) ([]*models.PointTransaction, error)
	GetLeaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error)
}

// PointsService writes the immutable point ledger and keeps the per-user XP
// counters. The total is only ever moved by atomic in-database increments.
type PointsService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewPointsServiceWithLogger creates a new PointsService with a logger
func NewPointsServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *PointsService {
	return &PointsService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// AwardPoints applies streak and level multipliers to basePoints, writes a
// ledger entry and atomically bumps the user's total XP. The level is
// recomputed inside the same UPDATE so concurrent awards cannot regress it.
func (s *PointsService) AwardPoints(ctx context.Context, userID, basePoints int, txType models.TransactionType, relatedEntity string, metadata map[string]interface{}) (result0 *AwardResult, err error) {
	ctx, span := observability.TracePointsFunction(ctx, "award_points",
		observability.AttributeUserID(userID),
		attribute.Int("points.base", basePoints),
		attribute.String("points.transaction_type", string(txType)),
	)
	defer observability.FinishSpan(span, &err)

	if basePoints < 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "base points must be non-negative, got %d", basePoints)
	}
	if !txType.Valid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown transaction type %q", txType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to rollback point award", rbErr)
			}
		}
	}()

	if err = ensureUserStatsRow(ctx, tx, userID); err != nil {
		return nil, err
	}

	// Multipliers come from the pre-award streak and level.
	var streakDays, currentLevel int
	err = tx.QueryRowContext(ctx,
		`SELECT streak_days, overall_level FROM user_stats WHERE user_id = $1`,
		userID).Scan(&streakDays, &currentLevel)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read user stats")
	}

	streakMult := s.cfg.Gamification.StreakMultiplier(streakDays)
	levelMult := s.cfg.Gamification.LevelMultiplier(currentLevel)
	pointsAwarded := int(math.Floor(float64(basePoints) * streakMult * levelMult))

	var metadataJSON []byte
	if metadata != nil {
		if metadataJSON, err = json.Marshal(metadata); err != nil {
			return nil, contextutils.WrapError(err, "failed to marshal transaction metadata")
		}
	}

	var related sql.NullString
	if relatedEntity != "" {
		related = sql.NullString{String: relatedEntity, Valid: true}
	}

	dedupKey := dedupKeyFor(userID, txType, relatedEntity)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO point_transactions (user_id, base_points, multiplier, points_change, transaction_type, related_entity, dedup_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedup_key) DO NOTHING`,
		userID, basePoints, streakMult*levelMult, pointsAwarded, txType, related, dedupKey, metadataJSON)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to write point transaction")
	}
	if inserted, raErr := res.RowsAffected(); raErr == nil && inserted == 0 {
		// A retry of an award already in the ledger. Report the recorded
		// outcome without moving any counters.
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error(ctx, "Failed to rollback duplicate point award", rbErr)
		}
		return s.recordedAward(ctx, dedupKey, userID)
	}

	var newTotal int64
	var newLevel int
	err = tx.QueryRowContext(ctx, `
		UPDATE user_stats
		SET total_xp = total_xp + $2,
		    overall_level = LEAST($3, FLOOR(SQRT((total_xp + $2) / 100.0))::int + 1),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING total_xp, overall_level`,
		userID, pointsAwarded, MaxLevel).Scan(&newTotal, &newLevel)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to apply point award")
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit point award")
	}

	span.SetAttributes(
		attribute.Int("points.awarded", pointsAwarded),
		attribute.Int64("points.new_total", newTotal),
		attribute.Int("points.new_level", newLevel),
	)

	return &AwardResult{
		PointsAwarded:    pointsAwarded,
		BasePoints:       basePoints,
		StreakMultiplier: streakMult,
		LevelMultiplier:  levelMult,
		NewTotalXP:       newTotal,
		NewLevel:         newLevel,
		XPToNextLevel:    XPToNextLevel(newTotal),
		LeveledUp:        newLevel > currentLevel,
	}, nil
}

// dedupKeyFor derives the ledger dedup key. Entity-linked awards get a
// deterministic key from (user, type, entity) so a retried award lands on the
// UNIQUE dedup_key column instead of paying twice. Admin grants carry a
// free-text reason that may legitimately repeat, so they stay random.
func dedupKeyFor(userID int, txType models.TransactionType, relatedEntity string) string {
	if relatedEntity == "" || txType == models.TransactionAdminGrant {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d|%s|%s", userID, txType, relatedEntity))).String()
}

// recordedAward reads back the ledger entry a duplicate award collided with.
func (s *PointsService) recordedAward(ctx context.Context, dedupKey string, userID int) (*AwardResult, error) {
	var base, change int
	var mult float64
	err := s.db.QueryRowContext(ctx,
		`SELECT base_points, multiplier, points_change FROM point_transactions WHERE dedup_key = $1`,
		dedupKey).Scan(&base, &mult, &change)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read recorded point transaction")
	}

	var total int64
	var level int
	err = s.db.QueryRowContext(ctx,
		`SELECT total_xp, overall_level FROM user_stats WHERE user_id = $1`,
		userID).Scan(&total, &level)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read user stats")
	}

	return &AwardResult{
		PointsAwarded: change,
		BasePoints:    base,
		NewTotalXP:    total,
		NewLevel:      level,
		XPToNextLevel: XPToNextLevel(total),
		Duplicate:     true,
	}, nil
}

// AddSubjectXP bumps the per-subject counters with a single upsert.
func (s *PointsService) AddSubjectXP(ctx context.Context, userID int, subject models.Subject, xp int) (err error) {
	ctx, span := observability.TracePointsFunction(ctx, "add_subject_xp",
		observability.AttributeUserID(userID),
		observability.AttributeSubject(string(subject)),
		attribute.Int("points.subject_xp", xp),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subject_stats (user_id, subject, xp, level, quizzes_completed, updated_at)
		VALUES ($1, $2, $3, LEAST($4, FLOOR(SQRT($3 / 100.0))::int + 1), 1, NOW())
		ON CONFLICT (user_id, subject) DO UPDATE SET
			xp = subject_stats.xp + $3,
			level = LEAST($4, FLOOR(SQRT((subject_stats.xp + $3) / 100.0))::int + 1),
			quizzes_completed = subject_stats.quizzes_completed + 1,
			updated_at = NOW()`,
		userID, subject, xp, MaxLevel)
	if err != nil {
		return contextutils.WrapError(err, "failed to update subject stats")
	}
	return nil
}

// GetUserStats returns the gamification counters, creating the row on first
// access.
func (s *PointsService) GetUserStats(ctx context.Context, userID int) (result0 *models.UserStats, err error) {
	ctx, span := observability.TracePointsFunction(ctx, "get_user_stats",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO user_stats (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, total_xp, overall_level, streak_days, highest_streak,
		          streak_freeze_available, streak_freeze_last_reset,
		          last_activity_date, achievements_unlocked, updated_at`

	var stats models.UserStats
	err = s.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID, &stats.TotalXP, &stats.OverallLevel, &stats.StreakDays,
		&stats.HighestStreak, &stats.StreakFreezeAvailable, &stats.StreakFreezeLastReset,
		&stats.LastActivityDate, &stats.AchievementsUnlocked, &stats.UpdatedAt,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load user stats")
	}
	return &stats, nil
}

// GetSubjectStats returns the per-subject XP counters, ordered by subject.
func (s *PointsService) GetSubjectStats(ctx context.Context, userID int) (result0 []*models.SubjectStats, err error) {
	ctx, span := observability.TracePointsFunction(ctx, "get_subject_stats",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, subject, xp, level, quizzes_completed, updated_at
		FROM subject_stats
		WHERE user_id = $1
		ORDER BY subject`, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subject stats")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*models.SubjectStats
	for rows.Next() {
		var ss models.SubjectStats
		if scanErr := rows.Scan(&ss.UserID, &ss.Subject, &ss.XP, &ss.Level,
			&ss.QuizzesCompleted, &ss.UpdatedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan subject stats")
		}
		out = append(out, &ss)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate subject stats")
	}
	return out, nil
}

// GetRecentTransactions returns the newest ledger entries for a user.
func (s *PointsService) GetRecentTransactions(ctx context.Context, userID, limit int) (result0 []*models.PointTransaction, err error) {
	ctx, span := observability.TracePointsFunction(ctx, "get_recent_transactions",
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, dedup_key, base_points, multiplier, points_change,
		       transaction_type, related_entity, metadata, created_at
		FROM point_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query point transactions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*models.PointTransaction
	for rows.Next() {
		var pt models.PointTransaction
		var metadataJSON []byte
		if scanErr := rows.Scan(&pt.ID, &pt.UserID, &pt.DedupKey, &pt.BasePoints, &pt.Multiplier,
			&pt.PointsChange, &pt.TransactionType, &pt.RelatedEntity, &metadataJSON, &pt.CreatedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan point transaction")
		}
		if len(metadataJSON) > 0 {
			if unmarshalErr := json.Unmarshal(metadataJSON, &pt.Metadata); unmarshalErr != nil {
				s.logger.Warn(ctx, "Failed to unmarshal transaction metadata", map[string]interface{}{
					"transaction_id": pt.ID,
					"error":          unmarshalErr.Error(),
				})
			}
		}
		out = append(out, &pt)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate point transactions")
	}
	return out, nil
}

// GetLeaderboard returns the top users by total XP.
func (s *PointsService) GetLeaderboard(ctx context.Context, limit int) (result0 []*LeaderboardEntry, err error) {
	ctx, span := observability.TracePointsFunction(ctx, "get_leaderboard",
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username, s.total_xp, s.overall_level, s.streak_days
		FROM user_stats s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.total_xp DESC, u.username
		LIMIT $1`, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query leaderboard")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var out []*LeaderboardEntry
	rank := 0
	for rows.Next() {
		rank++
		entry := &LeaderboardEntry{Rank: rank}
		if scanErr := rows.Scan(&entry.Username, &entry.TotalXP, &entry.Level, &entry.StreakDays); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan leaderboard entry")
		}
		out = append(out, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate leaderboard")
	}
	return out, nil
}

// ensureUserStatsRow guarantees the counters row exists before an atomic
// increment targets it.
func ensureUserStatsRow(ctx context.Context, tx *sql.Tx, userID int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to ensure user stats row")
	}
	return nil
}
