package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
)

func TestCreateCourse_GeneratesWeeklyGrid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "tdt4120", f.course.Slug)
	require.NotNil(t, f.course.CoordinatorID)
	assert.Equal(t, f.coordinator.ID, *f.course.CoordinatorID)

	intervals, err := f.env.Repos.BookingIntervalRepository.ListByCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, intervals, 25)

	slots, err := f.env.Repos.ReservationRepository.ListIntervalsByCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 200)

	for _, bi := range intervals {
		assert.Equal(t, 0, bi.MaxAvailableAssistants)
		assert.Equal(t, 120, int(bi.End-bi.Start))
	}

	first := f.interval(t, 0, 8, 0)
	got, err := f.env.Repos.ReservationRepository.ListIntervals(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, got, 8)
	assert.Equal(t, "08:00", got[0].Start.String())
	assert.Equal(t, "08:15", got[0].End.String())
	assert.Equal(t, 7, got[7].Index)
	assert.Equal(t, "10:00", got[7].End.String())
}

func TestEnsureGrid_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.courses.EnsureGrid(ctx, f.course.Code)
	require.NoError(t, err)
	assert.Zero(t, created)

	n, err := f.env.Repos.BookingIntervalRepository.CountByCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	slots, err := f.env.Repos.ReservationRepository.ListIntervalsByCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 200)
}

func TestCreateCourse_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: "Matematikk 1", Code: "TMA4100", Coordinator: f.assistant.Username})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: "Matematikk 1", Code: "TMA4100", Coordinator: f.coordinator.Username})
	assert.ErrorIs(t, err, apperrors.ErrCoordinatorTaken)

	_, err = f.courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: "Another title", Code: "TDT4120"})
	assert.ErrorIs(t, err, apperrors.ErrCourseAlreadyExists)

	_, err = f.courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: "", Code: "TMA4100"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: "Matematikk 1", Code: "TMA-4100"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	// failed creations leave no half generated grid behind
	courses, err := f.courses.ListCourses(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 1)
}

func TestEnroll_ByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course, err := f.courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: "Matematikk 1", Code: "TMA4100"})
	require.NoError(t, err)

	newcomer := f.env.User(t, "course_coordinator1", models.RoleCoordinator)
	for _, u := range []*models.User{f.student, f.assistant, newcomer} {
		role, err := f.courses.Enroll(ctx, course.Code, u.Username)
		require.NoError(t, err)
		assert.Equal(t, u.Role, role)
	}

	isStudent, err := f.env.Repos.CourseRepository.IsStudent(ctx, course.ID, f.student.ID)
	require.NoError(t, err)
	assert.True(t, isStudent)
	isAssistant, err := f.env.Repos.CourseRepository.IsAssistant(ctx, course.ID, f.assistant.ID)
	require.NoError(t, err)
	assert.True(t, isAssistant)
	reloaded, err := f.env.Repos.CourseRepository.GetByCode(ctx, course.Code)
	require.NoError(t, err)
	assert.True(t, reloaded.IsCoordinator(newcomer.ID))

	_, err = f.courses.Enroll(ctx, "NOPE", f.student.Username)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
	_, err = f.courses.Enroll(ctx, course.Code, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestTable_StudentSeesSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bi := f.interval(t, 1, 10, 0)
	f.register(t, bi, f.assistant)
	slot := f.firstSlot(t, bi)
	_, err := f.reservations.Reserve(ctx, f.student.ID, f.course.Slug, slot.ID)
	require.NoError(t, err)

	table, err := f.courses.Table(ctx, f.student.ID, f.course.Slug)
	require.NoError(t, err)
	require.Len(t, table.Days, 5)
	assert.Equal(t, "Mandag", table.Days[0].Name)
	require.Len(t, table.Blocks, 5)
	assert.Equal(t, "08:00", table.Blocks[0].Start.String())

	row := table.Blocks[1]
	require.Len(t, row.Cells, 5)
	cell := row.Cells[1]
	assert.Equal(t, bi.NK, cell.NK)
	assert.Equal(t, 1, cell.RegisteredAssistants)
	require.Len(t, cell.Slots, 8)
	assert.True(t, cell.Slots[0].ReservedByMe)
	assert.Equal(t, 0, cell.Slots[0].AvailableSlots)
	assert.False(t, cell.Slots[1].ReservedByMe)
	assert.Equal(t, 1, cell.Slots[1].AvailableSlots)

	other, err := f.courses.Table(ctx, f.student2.ID, f.course.Slug)
	require.NoError(t, err)
	assert.False(t, other.Blocks[1].Cells[1].Slots[0].ReservedByMe)
}

func TestTable_AssistantSeesRegistrations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bi := f.interval(t, 0, 8, 0)
	f.register(t, bi, f.assistant)

	table, err := f.courses.Table(ctx, f.assistant.ID, f.course.Slug)
	require.NoError(t, err)
	cell := table.Blocks[0].Cells[0]
	assert.True(t, cell.RegisteredByMe)
	assert.Equal(t, 1, cell.RegisteredAssistants)
	assert.Empty(t, cell.Slots)

	table, err = f.courses.Table(ctx, f.assistant2.ID, f.course.Slug)
	require.NoError(t, err)
	assert.False(t, table.Blocks[0].Cells[0].RegisteredByMe)
}

func TestTable_NonMember(t *testing.T) {
	f := newFixture(t)
	outsider := f.env.User(t, "student5", models.RoleStudent)

	_, err := f.courses.Table(context.Background(), outsider.ID, f.course.Slug)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.courses.Table(context.Background(), f.student.ID, "nope")
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)

	_, err = f.courses.CourseIDForMember(context.Background(), outsider.ID, f.course.Slug)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestDeleteCourse_RemovesFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ex, err := f.exercises.Upload(ctx, f.student.ID, f.course.Slug, fileHeader(t, "oving1.pdf", "answer"))
	require.NoError(t, err)
	stored, err := f.env.Repos.ExerciseRepository.GetByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.FileExists(t, f.storage.GetFullPath(stored.FilePath))

	require.NoError(t, f.courses.DeleteCourse(ctx, f.course.Code))
	assert.NoFileExists(t, f.storage.GetFullPath(stored.FilePath))

	_, err = f.env.Repos.CourseRepository.GetByID(ctx, f.course.ID)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
	n, err := f.env.Repos.BookingIntervalRepository.CountByCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
