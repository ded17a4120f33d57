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

func TestHome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	home, err := f.dashboard.Home(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, home.Courses, 1)
	assert.Equal(t, f.course.Slug, home.Courses[0].Slug)
	assert.Nil(t, home.SupervisedCourse)

	home, err = f.dashboard.Home(ctx, f.coordinator.ID)
	require.NoError(t, err)
	require.NotNil(t, home.SupervisedCourse)
	assert.Equal(t, f.course.ID, home.SupervisedCourse.ID)

	idle := f.env.User(t, "course_coordinator1", models.RoleCoordinator)
	home, err = f.dashboard.Home(ctx, idle.ID)
	require.NoError(t, err)
	assert.Empty(t, home.Courses)
	assert.Nil(t, home.SupervisedCourse)

	_, err = f.dashboard.Home(ctx, 987654)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLanding_PerRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bi := f.interval(t, 0, 8, 0)
	_, err := f.availability.UpdateCapacity(ctx, f.coordinator.ID, bi.NK, 1)
	require.NoError(t, err)
	f.register(t, bi, f.assistant)
	_, err = f.reservations.Reserve(ctx, f.student.ID, f.course.Slug, f.firstSlot(t, bi).ID)
	require.NoError(t, err)
	_, err = f.exercises.Upload(ctx, f.student.ID, f.course.Slug, fileHeader(t, "oving1.pdf", "x"))
	require.NoError(t, err)
	_, err = f.announcements.Create(ctx, f.coordinator.ID, f.course.Slug, &dto.CreateAnnouncementRequest{Title: "Velkommen", Content: "Hei"})
	require.NoError(t, err)

	student, err := f.dashboard.Landing(ctx, f.student.ID, f.course.Slug)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, student.Role)
	assert.Len(t, student.Reservations, 1)
	assert.Len(t, student.Exercises, 1)
	assert.Empty(t, student.Announcements)
	assert.Nil(t, student.Overview)

	assistant, err := f.dashboard.Landing(ctx, f.assistant.ID, f.course.Slug)
	require.NoError(t, err)
	require.Len(t, assistant.BookingIntervals, 1)
	assert.Equal(t, bi.NK, assistant.BookingIntervals[0].NK)
	assert.True(t, assistant.BookingIntervals[0].RegisteredByMe)
	assert.Len(t, assistant.Announcements, 1)
	assert.Len(t, assistant.UnreviewedExercises, 1)
	assert.Empty(t, assistant.Reservations)

	coordinator, err := f.dashboard.Landing(ctx, f.coordinator.ID, f.course.Slug)
	require.NoError(t, err)
	require.NotNil(t, coordinator.Overview)
	o := coordinator.Overview
	assert.Equal(t, 1, o.RegisteredAssistants)
	assert.Equal(t, 2, o.CourseAssistants)
	assert.Equal(t, 50, o.AssistantPercent)
	assert.Equal(t, 1, o.BookedSlots)
	assert.Equal(t, 8, o.AvailableSlots)
	assert.Equal(t, 13, o.StudentPercent)
	assert.Equal(t, 25, o.TotalIntervals)
	// intervals with zero capacity and nobody registered count as full
	assert.Equal(t, 25, o.FullIntervals)
	assert.InDelta(t, 2.0, o.TotalOpeningHours, 0.001)
	assert.Len(t, coordinator.Announcements, 1)
	assert.Len(t, coordinator.UnreviewedExercises, 1)

	outsider := f.env.User(t, "student3", models.RoleStudent)
	_, err = f.dashboard.Landing(ctx, outsider.ID, f.course.Slug)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}
