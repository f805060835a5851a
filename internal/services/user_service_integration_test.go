//go:build integration

package services

import (
	"context"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserTestService(t *testing.T) *UserService {
	db := SharedTestDBSetup(t)
	t.Cleanup(func() { db.Close() })

	cfg, err := config.NewConfig()
	require.NoError(t, err)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewUserServiceWithLogger(db, cfg, logger)
}

func TestUserService_CreateUserWithPassword_Integration(t *testing.T) {
	svc := newUserTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUserWithPassword(ctx, "student_one", "student@example.com", "password123", 11)
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Greater(t, user.ID, 0)
	assert.Equal(t, "student_one", user.Username)
	assert.Equal(t, 11, user.Age)
	assert.True(t, user.Email.Valid)
	assert.True(t, user.PasswordHash.Valid)
	assert.NotEqual(t, "password123", user.PasswordHash.String)
	assert.False(t, user.IsAdmin)
}

func TestUserService_CreateUserWithPassword_Duplicate_Integration(t *testing.T) {
	svc := newUserTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUserWithPassword(ctx, "student_dup", "", "password123", 0)
	require.NoError(t, err)

	_, err = svc.CreateUserWithPassword(ctx, "student_dup", "", "password123", 0)
	assert.ErrorIs(t, err, contextutils.ErrRecordExists)
}

func TestUserService_CreateUserWithPassword_Validation_Integration(t *testing.T) {
	svc := newUserTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
		age      int
	}{
		{"empty username", "", "", "password123", 10},
		{"short password", "student_v", "", "short", 10},
		{"bad email", "student_v", "not-an-email", "password123", 10},
		{"age too young", "student_v", "", "password123", 5},
		{"age too old", "student_v", "", "password123", 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUserWithPassword(ctx, tt.username, tt.email, tt.password, tt.age)
			assert.Error(t, err)
		})
	}
}

func TestUserService_AuthenticateUser_Integration(t *testing.T) {
	svc := newUserTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUserWithPassword(ctx, "student_auth", "", "password123", 12)
	require.NoError(t, err)

	user, err := svc.AuthenticateUser(ctx, "student_auth", "password123")
	require.NoError(t, err)
	assert.Equal(t, "student_auth", user.Username)

	_, err = svc.AuthenticateUser(ctx, "student_auth", "wrongpass")
	assert.Error(t, err)

	_, err = svc.AuthenticateUser(ctx, "nobody", "password123")
	assert.Error(t, err)
}

func TestUserService_GetUserAge_Integration(t *testing.T) {
	svc := newUserTestService(t)
	ctx := context.Background()

	withAge, err := svc.CreateUserWithPassword(ctx, "student_aged", "", "password123", 15)
	require.NoError(t, err)
	age, err := svc.GetUserAge(ctx, withAge.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, age)

	// Age 0 at signup means not provided.
	without, err := svc.CreateUserWithPassword(ctx, "student_ageless", "", "password123", 0)
	require.NoError(t, err)
	_, err = svc.GetUserAge(ctx, without.ID)
	assert.Error(t, err)
}

func TestUserService_EnsureAdminUserExists_Integration(t *testing.T) {
	svc := newUserTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdminUserExists(ctx, "admin", "adminpass123"))

	admin, err := svc.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	// Second call is a no-op upsert.
	require.NoError(t, svc.EnsureAdminUserExists(ctx, "admin", "adminpass123"))
}
