package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"practicehub/internal/config"
	"practicehub/internal/models"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user management
type UserServiceInterface interface {
	CreateUserWithPassword(ctx context.Context, username, email, password string, age int) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserAge(ctx context.Context, userID int) (int, error)
	UpdateLastActive(ctx context.Context, userID int) error
	IsAdmin(ctx context.Context, userID int) (bool, error)
	EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserPassword(ctx context.Context, userID int, newPassword string) error
	GetDB() *sql.DB
}

// UserService manages student accounts.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewUserServiceWithLogger creates a new UserService with a logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

const userColumns = `id, username, email, password_hash, age, timezone, is_admin, last_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var age sql.NullInt64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &age, &u.Timezone,
		&u.IsAdmin, &u.LastActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if age.Valid {
		u.Age = int(age.Int64)
	}
	return &u, nil
}

// CreateUserWithPassword creates a student account with a bcrypt-hashed
// password.
func (s *UserService) CreateUserWithPassword(ctx context.Context, username, email, password string, age int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user_with_password",
		attribute.String("user.username", username),
	)
	defer observability.FinishSpan(span, &err)

	username = strings.TrimSpace(username)
	if !contextutils.IsValidUsername(username) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid username %q", username)
	}
	if email != "" && !contextutils.IsValidEmail(email) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid email")
	}
	if len(password) < 8 {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "password must be at least 8 characters")
	}
	if age != 0 && (age < models.MinContentAge || age > models.MaxContentAge) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"age %d outside supported range [%d,%d]", age, models.MinContentAge, models.MaxContentAge)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	var emailVal sql.NullString
	if email != "" {
		emailVal = sql.NullString{String: email, Valid: true}
	}
	var ageVal sql.NullInt64
	if age != 0 {
		ageVal = sql.NullInt64{Int64: int64(age), Valid: true}
	}

	query := `
		INSERT INTO users (username, email, password_hash, age)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, username, emailVal, string(hash), ageVal))
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, contextutils.ErrRecordExists
		}
		return nil, contextutils.WrapError(err, "failed to create user")
	}
	return user, nil
}

// AuthenticateUser verifies the username/password pair.
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user",
		attribute.String("user.username", username),
	)
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, contextutils.ErrRecordNotFound) {
			return nil, contextutils.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)) != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByID fetches one user row.
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id",
		observability.AttributeUserID(id),
	)
	defer observability.FinishSpan(span, &err)

	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapError(err, "failed to query user")
	}
	return user, nil
}

// GetUserByUsername fetches one user row by username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username",
		attribute.String("user.username", username),
	)
	defer observability.FinishSpan(span, &err)

	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapError(err, "failed to query user")
	}
	return user, nil
}

// GetUserAge returns the user's chronological age. Missing profile age is a
// validation problem for the caller, not a not-found.
func (s *UserService) GetUserAge(ctx context.Context, userID int) (result0 int, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_age",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var age sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT age FROM users WHERE id = $1`, userID).Scan(&age)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, contextutils.ErrRecordNotFound
		}
		return 0, contextutils.WrapError(err, "failed to query user age")
	}
	if !age.Valid {
		return 0, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "user %d has no age on profile", userID)
	}
	return int(age.Int64), nil
}

// UpdateLastActive stamps the user's last activity time.
func (s *UserService) UpdateLastActive(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_last_active",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET last_active = NOW(), updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update last active")
	}
	return nil
}

// EnsureAdminUserExists creates the admin account on first boot, or promotes
// an existing row of the same name.
func (s *UserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user_exists",
		attribute.String("user.username", adminUsername),
	)
	defer observability.FinishSpan(span, &err)

	if adminUsername == "" || adminPassword == "" {
		s.logger.Warn(ctx, "Admin credentials not configured, skipping admin bootstrap")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash admin password")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (username) DO UPDATE SET is_admin = TRUE`,
		adminUsername, string(hash))
	if err != nil {
		return contextutils.WrapError(err, "failed to ensure admin user")
	}

	s.logger.Info(ctx, "Admin user ensured", map[string]interface{}{
		"username": adminUsername,
	})
	return nil
}

// IsAdmin reports whether the user holds the admin flag.
func (s *UserService) IsAdmin(ctx context.Context, userID int) (result0 bool, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "is_admin",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var isAdmin bool
	err = s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, contextutils.WrapError(err, "failed to check admin status")
	}
	return isAdmin, nil
}

// GetAllUsers lists every user row, ordered by id. Used by the admin CLI.
func (s *UserService) GetAllUsers(ctx context.Context) (result0 []*models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_all_users")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr)
		}
	}()

	var users []*models.User
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate users")
	}
	return users, nil
}

// UpdateUserPassword replaces the user's password hash.
func (s *UserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if len(newPassword) < 8 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		string(hash), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// GetDB exposes the underlying handle for integration tests and the admin CLI.
func (s *UserService) GetDB() *sql.DB {
	return s.db
}
