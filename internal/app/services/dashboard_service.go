package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
)

// landingAnnouncements is how many announcements a landing page shows
const landingAnnouncements = 5

// DashboardService builds the home page and the per role course landing pages
type DashboardService struct {
	repos  *repositories.Repositories
	access courseAccess
	grid   booking.Grid
	logger zerolog.Logger
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(repos *repositories.Repositories, authz *auth.AuthorizationService, grid booking.Grid, logger zerolog.Logger) *DashboardService {
	return &DashboardService{
		repos:  repos,
		access: courseAccess{authz: authz, courses: repos.CourseRepository},
		grid:   grid,
		logger: logger,
	}
}

// Home lists the courses of the caller. A coordinator also gets the course they supervise.
func (s *DashboardService) Home(ctx context.Context, userID int64) (*dto.HomeResponse, error) {
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	courses, err := s.repos.CourseRepository.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.HomeResponse{Courses: make([]dto.CourseResponse, 0, len(courses))}
	for i := range courses {
		resp.Courses = append(resp.Courses, dto.NewCourseResponse(&courses[i]))
	}

	if user.Role == models.RoleCoordinator {
		supervised, err := s.repos.CourseRepository.GetByCoordinator(ctx, user.ID)
		switch {
		case err == nil:
			cr := dto.NewCourseResponse(supervised)
			resp.SupervisedCourse = &cr
		case !errors.Is(err, apperrors.ErrCourseNotFound):
			return nil, err
		}
	}
	return resp, nil
}

// Landing builds the start page of a course for the caller's role
func (s *DashboardService) Landing(ctx context.Context, userID int64, slug string) (*dto.LandingResponse, error) {
	user, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	resp := &dto.LandingResponse{Role: user.Role, Course: dto.NewCourseResponse(course)}
	switch user.Role {
	case models.RoleStudent:
		err = s.studentLanding(ctx, user, course, resp)
	case models.RoleAssistant:
		err = s.assistantLanding(ctx, user, course, resp)
	case models.RoleCoordinator:
		err = s.coordinatorLanding(ctx, course, resp)
	default:
		err = apperrors.ErrUnknownRole
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *DashboardService) studentLanding(ctx context.Context, user *models.User, course *models.Course, resp *dto.LandingResponse) error {
	reservations, err := s.repos.ReservationRepository.ListDetails(ctx, repositories.ReservationFilter{
		StudentID: &user.ID,
		CourseID:  &course.ID,
	})
	if err != nil {
		return err
	}
	exercises, _, err := s.repos.ExerciseRepository.List(ctx, repositories.ExerciseFilter{
		CourseID:  course.ID,
		StudentID: &user.ID,
	}, 0, 0)
	if err != nil {
		return err
	}

	resp.Reservations = dto.NewReservationResponses(reservations)
	resp.Exercises = dto.NewExerciseResponses(exercises)
	return nil
}

func (s *DashboardService) assistantLanding(ctx context.Context, user *models.User, course *models.Course, resp *dto.LandingResponse) error {
	if err := s.staffSections(ctx, course, resp); err != nil {
		return err
	}

	intervals, err := s.repos.BookingIntervalRepository.ListForAssistant(ctx, user.ID, &course.ID)
	if err != nil {
		return err
	}
	registered, err := s.repos.BookingIntervalRepository.RegisteredByCourse(ctx, course.ID)
	if err != nil {
		return err
	}

	resp.BookingIntervals = make([]dto.IntervalCell, 0, len(intervals))
	for i := range intervals {
		bi := &intervals[i]
		resp.BookingIntervals = append(resp.BookingIntervals, dto.NewIntervalCell(bi, len(registered[bi.ID]), true))
	}
	return nil
}

func (s *DashboardService) coordinatorLanding(ctx context.Context, course *models.Course, resp *dto.LandingResponse) error {
	if err := s.staffSections(ctx, course, resp); err != nil {
		return err
	}
	overview, err := s.Overview(ctx, course)
	if err != nil {
		return err
	}
	resp.Overview = overview
	return nil
}

// staffSections fills the latest announcements and the unreviewed exercises
func (s *DashboardService) staffSections(ctx context.Context, course *models.Course, resp *dto.LandingResponse) error {
	announcements, _, err := s.repos.AnnouncementRepository.ListByCourse(ctx, course.ID, 0, landingAnnouncements)
	if err != nil {
		return err
	}
	unreviewed, _, err := s.repos.ExerciseRepository.List(ctx, repositories.ExerciseFilter{
		CourseID:       course.ID,
		UnreviewedOnly: true,
	}, 0, 0)
	if err != nil {
		return err
	}

	resp.Announcements = dto.NewAnnouncementResponses(announcements)
	resp.UnreviewedExercises = dto.NewExerciseResponses(unreviewed)
	return nil
}

// Overview computes the coordinator statistics of a course
func (s *DashboardService) Overview(ctx context.Context, course *models.Course) (*booking.Overview, error) {
	intervals, err := s.repos.BookingIntervalRepository.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	registered, err := s.repos.BookingIntervalRepository.RegisteredByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repos.ReservationRepository.ListIntervalsByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.ReservationRepository.ConnectionCountsByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	courseAssistants, err := s.repos.CourseRepository.CountAssistants(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	slotsPer := make(map[int64]int, len(intervals))
	connectionsPer := make(map[int64]int, len(intervals))
	for _, ri := range slots {
		slotsPer[ri.BookingIntervalID]++
		connectionsPer[ri.BookingIntervalID] += counts[ri.ID]
	}

	loads := make([]booking.IntervalLoad, 0, len(intervals))
	for _, bi := range intervals {
		loads = append(loads, booking.IntervalLoad{
			MaxAssistants: bi.MaxAvailableAssistants,
			Assistants:    registered[bi.ID],
			Slots:         slotsPer[bi.ID],
			Connections:   connectionsPer[bi.ID],
		})
	}

	overview := booking.Summarize(loads, courseAssistants, s.grid.IntervalMinutes)
	return &overview, nil
}
