package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/metrics"
	"github.com/itsbooking/portal/internal/pkg/websocket"
)

// ErrNoAssistantsForSlot is the validation error returned when every
// registered assistant of a reservation interval is already taken
var ErrNoAssistantsForSlot = apperrors.NewCustomError(
	fmt.Errorf("%w: %w", apperrors.ErrValidationFailed, apperrors.ErrNoAssistantsAvailable),
	"No assistants available for this reservation interval")

// ReservationService reserves reservation intervals for students and lists reservations
type ReservationService struct {
	db      *db.DB
	repos   *repositories.Repositories
	access  courseAccess
	events  EventPublisher
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	database *db.DB,
	repos *repositories.Repositories,
	authz *auth.AuthorizationService,
	events EventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		db:      database,
		repos:   repos,
		access:  courseAccess{authz: authz, courses: repos.CourseRepository},
		events:  publisherOrNop(events),
		metrics: m,
		logger:  logger,
	}
}

// Reserve books reservationIntervalID in the course identified by slug for the
// calling student and assigns the free registered assistant with the lowest id.
// The availability check and the assignment run in one transaction holding a
// lock on the parent booking interval.
func (s *ReservationService) Reserve(ctx context.Context, userID int64, slug string, reservationIntervalID int64) (*dto.ReservationResponse, error) {
	user, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateEnrolledStudent(ctx, user, course); err != nil {
		return nil, err
	}

	conn := &models.ReservationConnection{ReservationIntervalID: reservationIntervalID, StudentID: user.ID}
	err = s.db.WithTransaction(ctx, func(ctx context.Context) error {
		ri, err := s.repos.ReservationRepository.GetInterval(ctx, reservationIntervalID)
		if err != nil {
			return err
		}
		bi, err := s.repos.BookingIntervalRepository.GetByID(ctx, ri.BookingIntervalID, true)
		if err != nil {
			return err
		}
		if bi.CourseID != course.ID {
			return apperrors.ErrReservationNotFound
		}

		held, err := s.repos.ReservationRepository.HasConnection(ctx, ri.ID, user.ID)
		if err != nil {
			return err
		}
		if held {
			return apperrors.ErrAlreadyReserved
		}

		registered, err := s.repos.BookingIntervalRepository.RegisteredAssistants(ctx, bi.ID)
		if err != nil {
			return err
		}
		bound, err := s.repos.ReservationRepository.BoundAssistants(ctx, ri.ID)
		if err != nil {
			return err
		}
		if booking.AvailableSlots(len(registered), len(bound)) <= 0 {
			return ErrNoAssistantsForSlot
		}

		assistantID, err := booking.PickAssistant(registered, bound)
		if err != nil {
			return fmt.Errorf("reservation interval %d: %w", ri.ID, err)
		}
		conn.AssistantID = assistantID
		return s.repos.ReservationRepository.Create(ctx, conn)
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyReserved):
			s.metrics.Reservation(metrics.ResultDuplicate)
		case errors.Is(err, apperrors.ErrNoAssistantsAvailable):
			s.metrics.Reservation(metrics.ResultNoCapacity)
			if !errors.Is(err, ErrNoAssistantsForSlot) {
				err = ErrNoAssistantsForSlot
			}
		}
		return nil, err
	}

	detail, err := s.repos.ReservationRepository.GetDetail(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewReservationResponse(detail)

	s.metrics.Reservation(metrics.ResultCreated)
	s.events.Publish(course.ID, websocket.EventReservationCreated, reservationEvent{
		ID:                    conn.ID,
		ReservationIntervalID: conn.ReservationIntervalID,
	})
	s.logger.Info().
		Int64("reservationID", conn.ID).
		Int64("studentID", user.ID).
		Int64("assistantID", conn.AssistantID).
		Int64("reservationIntervalID", reservationIntervalID).
		Msg("Reservation created")
	return &resp, nil
}

type reservationEvent struct {
	ID                    int64 `json:"id"`
	ReservationIntervalID int64 `json:"reservationIntervalId"`
}

// Cancel deletes a reservation. Only the student holding it may cancel.
func (s *ReservationService) Cancel(ctx context.Context, userID, reservationID int64) error {
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return err
	}

	detail, err := s.repos.ReservationRepository.GetDetail(ctx, reservationID)
	if err != nil {
		return err
	}
	if detail.StudentID != user.ID {
		return apperrors.NewForbiddenError("You can only cancel your own reservations")
	}

	if err := s.repos.ReservationRepository.Delete(ctx, reservationID); err != nil {
		return err
	}

	s.metrics.Reservation(metrics.ResultCancelled)
	s.events.Publish(detail.CourseID, websocket.EventReservationDeleted, reservationEvent{
		ID:                    detail.ID,
		ReservationIntervalID: detail.ReservationIntervalID,
	})
	s.logger.Info().Int64("reservationID", reservationID).Int64("studentID", user.ID).Msg("Reservation cancelled")
	return nil
}

// ListForStudent returns the reservations of the calling student across all courses
func (s *ReservationService) ListForStudent(ctx context.Context, userID int64) ([]dto.ReservationResponse, error) {
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleStudent {
		return nil, auth.ErrNotEnrolledStudent
	}

	rows, err := s.repos.ReservationRepository.ListDetails(ctx, repositories.ReservationFilter{StudentID: &user.ID})
	if err != nil {
		return nil, err
	}
	return dto.NewReservationResponses(rows), nil
}

// ListForAssistant returns the booking intervals the calling assistant is
// registered for, each with its reservation intervals and the reservation
// assigned to the assistant on them. A non-empty slug limits the result to one course.
func (s *ReservationService) ListForAssistant(ctx context.Context, userID int64, slug string) ([]dto.AssistantIntervalView, error) {
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAssistant {
		return nil, auth.ErrNotCourseStaff
	}

	var courseID *int64
	if slug != "" {
		_, course, err := s.access.member(ctx, userID, slug)
		if err != nil {
			return nil, err
		}
		courseID = &course.ID
	}

	intervals, err := s.repos.BookingIntervalRepository.ListForAssistant(ctx, user.ID, courseID)
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return []dto.AssistantIntervalView{}, nil
	}

	ids := make([]int64, 0, len(intervals))
	for _, bi := range intervals {
		ids = append(ids, bi.ID)
	}
	slots, err := s.repos.ReservationRepository.ListIntervals(ctx, ids...)
	if err != nil {
		return nil, err
	}
	mine, err := s.repos.ReservationRepository.ListDetails(ctx, repositories.ReservationFilter{
		AssistantID: &user.ID,
		CourseID:    courseID,
	})
	if err != nil {
		return nil, err
	}

	bySlot := make(map[int64]*dto.ReservationResponse, len(mine))
	for i := range mine {
		r := dto.NewReservationResponse(&mine[i])
		bySlot[r.ReservationIntervalID] = &r
	}
	slotsByInterval := make(map[int64][]dto.AssistantSlotView)
	for _, ri := range slots {
		slotsByInterval[ri.BookingIntervalID] = append(slotsByInterval[ri.BookingIntervalID], dto.AssistantSlotView{
			ReservationIntervalID: ri.ID,
			Index:                 ri.Index,
			Start:                 ri.Start,
			End:                   ri.End,
			Reservation:           bySlot[ri.ID],
		})
	}

	courses := make(map[int64]dto.CourseResponse)
	views := make([]dto.AssistantIntervalView, 0, len(intervals))
	for _, bi := range intervals {
		cr, ok := courses[bi.CourseID]
		if !ok {
			course, err := s.repos.CourseRepository.GetByID(ctx, bi.CourseID)
			if err != nil {
				return nil, err
			}
			cr = dto.NewCourseResponse(course)
			courses[bi.CourseID] = cr
		}
		views = append(views, dto.AssistantIntervalView{
			NK:      bi.NK,
			Course:  cr,
			Day:     bi.Day,
			DayName: bi.Day.Norwegian(),
			Start:   bi.Start,
			End:     bi.End,
			Slots:   slotsByInterval[bi.ID],
		})
	}
	return views, nil
}
