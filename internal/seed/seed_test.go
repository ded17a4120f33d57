package seed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/bootstrap"
	"github.com/itsbooking/portal/internal/config"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/testutil"
)

func newServices(t *testing.T) *bootstrap.Services {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()
	svc, err := bootstrap.BuildServices(cfg, testutil.NewDB(t), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	res, err := Populate(ctx, "development", svc, DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Users)
	assert.Equal(t, 3, res.Courses)

	student, err := svc.Repos.UserRepository.GetByUsername(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, student.Role)
	assert.True(t, auth.CheckPassword(student.Password, DefaultPassword))

	_, err = svc.Repos.UserRepository.GetByUsername(ctx, "assistant3")
	require.NoError(t, err)

	algdat, err := svc.Repos.CourseRepository.GetByCode(ctx, "TDT4120")
	require.NoError(t, err)
	require.NotNil(t, algdat.CoordinatorID)

	assistants, err := svc.Repos.CourseRepository.CountAssistants(ctx, algdat.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, assistants)

	rows, err := svc.Repos.ReservationRepository.ListDetails(ctx, repositories.ReservationFilter{CourseID: &algdat.ID})
	require.NoError(t, err)
	assert.Len(t, rows, res.Reservations)

	registered, err := svc.Repos.BookingIntervalRepository.RegisteredByCourse(ctx, algdat.ID)
	require.NoError(t, err)
	total := 0
	for _, ids := range registered {
		total += len(ids)
	}
	assert.Equal(t, res.Registrations, total)

	courses, err := svc.Repos.CourseRepository.ListForUser(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, courses, 3)

	// a second run needs an empty database
	_, err = Populate(ctx, "development", svc, DefaultOptions(), zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
}

func TestPopulate_RefusesProduction(t *testing.T) {
	svc := newServices(t)

	_, err := Populate(context.Background(), "Production", svc, DefaultOptions(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrProductionMode)

	users, err := svc.Repos.UserRepository.ListByRole(context.Background(), models.RoleStudent)
	require.NoError(t, err)
	assert.Empty(t, users)
}
