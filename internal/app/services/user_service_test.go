package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.CreateUser(ctx, NewUserInput{
		Username:  "kari.nordmann",
		Password:  "long-enough",
		FirstName: "Kari",
		LastName:  "Nordmann",
		Role:      models.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "long-enough", u.Password)
	assert.True(t, auth.CheckPassword(u.Password, "long-enough"))

	tests := []struct {
		name  string
		input NewUserInput
		want  error
	}{
		{"duplicate username", NewUserInput{Username: "kari.nordmann", Password: "long-enough", Role: models.RoleStudent}, apperrors.ErrUsernameTaken},
		{"bad username", NewUserInput{Username: "kari nordmann", Password: "long-enough", Role: models.RoleStudent}, apperrors.ErrValidationFailed},
		{"bad email", NewUserInput{Username: "ola", Email: "ola-at-ntnu", Password: "long-enough", Role: models.RoleStudent}, apperrors.ErrValidationFailed},
		{"short password", NewUserInput{Username: "ola", Password: "short", Role: models.RoleStudent}, apperrors.ErrValidationFailed},
		{"unknown role", NewUserInput{Username: "ola", Password: "long-enough", Role: "ADMIN"}, apperrors.ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.CreateUser(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.ResetPassword(ctx, f.student.Username, "brand-new-secret"))
	u, err := f.env.Repos.UserRepository.GetByID(ctx, f.student.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(u.Password, "brand-new-secret"))
	assert.False(t, auth.CheckPassword(u.Password, testutil.Password))

	assert.ErrorIs(t, f.users.ResetPassword(ctx, f.student.Username, "short"), apperrors.ErrValidationFailed)
	assert.ErrorIs(t, f.users.ResetPassword(ctx, "ghost", "brand-new-secret"), apperrors.ErrUserNotFound)
}

func TestAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.SetAvatar(ctx, f.student.ID, fileHeader(t, "notes.txt", "hello"))
	assert.ErrorIs(t, err, apperrors.ErrAvatarNotSupported)

	_, err = f.users.SetAvatar(ctx, f.student.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, _, err = f.users.OpenAvatar(ctx, f.student.ID)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	u, err := f.users.SetAvatar(ctx, f.student.ID, fileHeader(t, "me.png", "png-one"))
	require.NoError(t, err)
	require.NotNil(t, u.AvatarPath)
	assert.Contains(t, *u.AvatarPath, "avatars/user_student_")
	first := f.storage.GetFullPath(*u.AvatarPath)
	assert.FileExists(t, first)

	u, err = f.users.SetAvatar(ctx, f.student.ID, fileHeader(t, "me.JPG", "jpg-two"))
	require.NoError(t, err)
	assert.NoFileExists(t, first)

	rc, name, err := f.users.OpenAvatar(ctx, f.student.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "jpg-two", string(body))
	assert.Equal(t, "me.JPG", name)

	second := f.storage.GetFullPath(*u.AvatarPath)
	require.NoError(t, f.users.DeleteAvatar(ctx, f.student.ID))
	assert.NoFileExists(t, second)
	assert.ErrorIs(t, f.users.DeleteAvatar(ctx, f.student.ID), apperrors.ErrResourceNotFound)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "test", AccessTokenExp: time.Hour, TokenIssuer: "itsbooking"})
	svc := NewAuthService(f.env.Repos.UserRepository, jwtService, zerolog.Nop())

	resp, err := svc.Login(ctx, &dto.LoginRequest{Username: f.assistant.Username, Password: testutil.Password})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, models.RoleAssistant, resp.User.Role)

	claims, err := jwtService.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.assistant.ID, claims.UserID)

	_, err = svc.Login(ctx, &dto.LoginRequest{Username: f.assistant.Username, Password: "wrong-password"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, &dto.LoginRequest{Username: "ghost", Password: testutil.Password})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	me, err := svc.Me(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, f.student.Username, me.Username)
	assert.False(t, me.HasAvatar)
}
