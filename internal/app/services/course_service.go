package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
	"github.com/itsbooking/portal/internal/pkg/helpers"
)

// CourseService creates courses with their weekly grid and renders the booking table
type CourseService struct {
	db      *db.DB
	repos   *repositories.Repositories
	access  courseAccess
	grid    booking.Grid
	storage filestorage.FileStorage
	logger  zerolog.Logger
}

// NewCourseService creates a new CourseService
func NewCourseService(
	database *db.DB,
	repos *repositories.Repositories,
	authz *auth.AuthorizationService,
	grid booking.Grid,
	storage filestorage.FileStorage,
	logger zerolog.Logger,
) *CourseService {
	return &CourseService{
		db:      database,
		repos:   repos,
		access:  courseAccess{authz: authz, courses: repos.CourseRepository},
		grid:    grid,
		storage: storage,
		logger:  logger,
	}
}

// CreateCourse stores a course and generates its booking grid in one transaction.
// The optional coordinator must be a user with the coordinator role.
func (s *CourseService) CreateCourse(ctx context.Context, req *dto.CreateCourseRequest) (*models.Course, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Code = strings.TrimSpace(req.Code)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	course := &models.Course{
		Title: req.Title,
		Code:  req.Code,
		Slug:  helpers.Slugify(req.Code),
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		if req.Coordinator != "" {
			coordinator, err := s.repos.UserRepository.GetByUsername(ctx, req.Coordinator)
			if err != nil {
				return err
			}
			if coordinator.Role != models.RoleCoordinator {
				return apperrors.NewValidationError(fmt.Sprintf("%s is not a course coordinator", coordinator.Username))
			}
			course.CoordinatorID = &coordinator.ID
		}

		if err := s.repos.CourseRepository.Create(ctx, course); err != nil {
			return err
		}
		_, err := s.generateGrid(ctx, course)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("courseID", course.ID).Str("code", course.Code).Msg("Course created")
	return course, nil
}

// EnsureGrid generates whatever part of the grid of a course is missing.
// On a fully generated course it changes nothing.
func (s *CourseService) EnsureGrid(ctx context.Context, code string) (int, error) {
	var created int
	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		course, err := s.repos.CourseRepository.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		created, err = s.generateGrid(ctx, course)
		return err
	})
	return created, err
}

// generateGrid creates the booking intervals of a course that has none, then
// splits every interval without reservation intervals into slots. It returns
// the number of booking intervals created.
func (s *CourseService) generateGrid(ctx context.Context, course *models.Course) (int, error) {
	existing, err := s.repos.BookingIntervalRepository.CountByCourse(ctx, course.ID)
	if err != nil {
		return 0, err
	}

	created := 0
	if existing == 0 {
		for _, iv := range s.grid.Intervals(course.Code) {
			_, ok, err := s.repos.BookingIntervalRepository.Insert(ctx, course.ID, iv)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
	}

	intervals, err := s.repos.BookingIntervalRepository.ListByCourse(ctx, course.ID)
	if err != nil {
		return created, err
	}
	for i := range intervals {
		bi := &intervals[i]
		n, err := s.repos.BookingIntervalRepository.CountReservationIntervals(ctx, bi.ID)
		if err != nil {
			return created, err
		}
		if n > 0 {
			continue
		}

		slots, err := s.grid.Slots(bi.Start)
		if err != nil {
			s.logger.Warn().Err(err).Str("nk", bi.NK).Msg("Skipping reservation intervals for booking interval")
			continue
		}
		if err := s.repos.BookingIntervalRepository.InsertReservationIntervals(ctx, bi.ID, slots); err != nil {
			return created, err
		}
	}

	if created > 0 {
		s.logger.Debug().Int64("courseID", course.ID).Int("intervals", created).Msg("Booking grid generated")
	}
	return created, nil
}

// Enroll adds username to the course with the given code according to the user's role.
// A coordinator becomes the coordinator of the course.
func (s *CourseService) Enroll(ctx context.Context, code, username string) (models.Role, error) {
	course, err := s.repos.CourseRepository.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}
	user, err := s.repos.UserRepository.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	switch user.Role {
	case models.RoleStudent:
		err = s.repos.CourseRepository.AddStudent(ctx, course.ID, user.ID)
	case models.RoleAssistant:
		err = s.repos.CourseRepository.AddAssistant(ctx, course.ID, user.ID)
	case models.RoleCoordinator:
		err = s.repos.CourseRepository.SetCoordinator(ctx, course.ID, user.ID)
	default:
		err = apperrors.ErrUnknownRole
	}
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("course", course.Code).Str("username", user.Username).Str("role", string(user.Role)).Msg("User enrolled")
	return user.Role, nil
}

// DeleteCourse removes a course with everything that belongs to it, including uploaded files
func (s *CourseService) DeleteCourse(ctx context.Context, code string) error {
	course, err := s.repos.CourseRepository.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	paths, err := s.repos.ExerciseRepository.FilePathsByCourse(ctx, course.ID)
	if err != nil {
		return err
	}
	if err := s.repos.CourseRepository.Delete(ctx, course.ID); err != nil {
		return err
	}

	for _, p := range paths {
		if err := s.storage.DeleteFile(p); err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("Failed to remove exercise file of deleted course")
		}
	}
	s.logger.Info().Int64("courseID", course.ID).Str("code", course.Code).Msg("Course deleted")
	return nil
}

// ListCourses returns every course
func (s *CourseService) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.repos.CourseRepository.ListAll(ctx)
}

// CourseIDForMember resolves slug for a member of the course
func (s *CourseService) CourseIDForMember(ctx context.Context, userID int64, slug string) (int64, error) {
	_, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return 0, err
	}
	return course.ID, nil
}

// Table renders the weekly booking table of a course for the caller.
// Students and the coordinator see reservation slots with their availability;
// assistants see their registrations.
func (s *CourseService) Table(ctx context.Context, userID int64, slug string) (*dto.CourseTableResponse, error) {
	user, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	intervals, err := s.repos.BookingIntervalRepository.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	registered, err := s.repos.BookingIntervalRepository.RegisteredByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	var slots map[int64][]dto.SlotView
	if user.Role != models.RoleAssistant {
		slots, err = s.slotViews(ctx, user, course, registered)
		if err != nil {
			return nil, err
		}
	}

	cells := make([]dto.IntervalCell, 0, len(intervals))
	for i := range intervals {
		bi := &intervals[i]
		assistants := registered[bi.ID]
		cell := dto.NewIntervalCell(bi, len(assistants), containsID(assistants, user.ID))
		if slots != nil {
			cell.Slots = slots[bi.ID]
		}
		cells = append(cells, cell)
	}

	return &dto.CourseTableResponse{
		Course: dto.NewCourseResponse(course),
		Days:   dayHeaders(cells),
		Blocks: blockRows(cells),
	}, nil
}

// slotViews returns the reservation intervals of a course grouped by booking interval
func (s *CourseService) slotViews(ctx context.Context, user *models.User, course *models.Course, registered map[int64][]int64) (map[int64][]dto.SlotView, error) {
	ris, err := s.repos.ReservationRepository.ListIntervalsByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.ReservationRepository.ConnectionCountsByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	mine := map[int64]bool{}
	if user.Role == models.RoleStudent {
		own, err := s.repos.ReservationRepository.ListDetails(ctx, repositories.ReservationFilter{
			StudentID: &user.ID,
			CourseID:  &course.ID,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range own {
			mine[r.ReservationIntervalID] = true
		}
	}

	out := make(map[int64][]dto.SlotView)
	for _, ri := range ris {
		out[ri.BookingIntervalID] = append(out[ri.BookingIntervalID], dto.SlotView{
			ReservationIntervalID: ri.ID,
			Index:                 ri.Index,
			Start:                 ri.Start,
			End:                   ri.End,
			AvailableSlots:        booking.AvailableSlots(len(registered[ri.BookingIntervalID]), counts[ri.ID]),
			ReservedByMe:          mine[ri.ID],
		})
	}
	return out, nil
}

func dayHeaders(cells []dto.IntervalCell) []dto.DayHeader {
	seen := map[booking.Weekday]bool{}
	headers := []dto.DayHeader{}
	for _, c := range cells {
		if !seen[c.Day] {
			seen[c.Day] = true
			headers = append(headers, dto.DayHeader{Day: c.Day, Name: c.DayName})
		}
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Day < headers[j].Day })
	return headers
}

// blockRows groups cells by start time, each row ordered by day
func blockRows(cells []dto.IntervalCell) []dto.BlockRow {
	index := map[booking.TimeOfDay]int{}
	rows := []dto.BlockRow{}
	for _, c := range cells {
		i, ok := index[c.Start]
		if !ok {
			i = len(rows)
			index[c.Start] = i
			rows = append(rows, dto.BlockRow{Start: c.Start, End: c.End})
		}
		rows[i].Cells = append(rows[i].Cells, c)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Start < rows[j].Start })
	for _, r := range rows {
		sort.SliceStable(r.Cells, func(i, j int) bool { return r.Cells[i].Day < r.Cells[j].Day })
	}
	return rows
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

