package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/metrics"
	"github.com/itsbooking/portal/internal/pkg/websocket"
)

// AvailabilityService registers assistants for booking intervals and manages interval capacity
type AvailabilityService struct {
	db              *db.DB
	repos           *repositories.Repositories
	access          courseAccess
	enforceCapacity bool
	events          EventPublisher
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewAvailabilityService creates a new AvailabilityService. With enforceCapacity
// an assistant cannot register for an interval that is already at capacity.
func NewAvailabilityService(
	database *db.DB,
	repos *repositories.Repositories,
	authz *auth.AuthorizationService,
	enforceCapacity bool,
	events EventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		db:              database,
		repos:           repos,
		access:          courseAccess{authz: authz, courses: repos.CourseRepository},
		enforceCapacity: enforceCapacity,
		events:          publisherOrNop(events),
		metrics:         m,
		logger:          logger,
	}
}

type availabilityEvent struct {
	NK                       string `json:"nk"`
	AssistantID              int64  `json:"assistantId"`
	Registered               bool   `json:"registered"`
	AvailableAssistantsCount int    `json:"availableAssistantsCount"`
}

// Toggle flips the registration of the calling assistant on the booking
// interval identified by nk and returns the new registered count.
func (s *AvailabilityService) Toggle(ctx context.Context, userID int64, nk string) (*dto.RegistrationSwitchResponse, error) {
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		course     *models.Course
		registered bool
		count      int
	)
	err = s.db.WithTransaction(ctx, func(ctx context.Context) error {
		bi, err := s.repos.BookingIntervalRepository.GetByNK(ctx, nk, true)
		if err != nil {
			return err
		}
		course, err = s.repos.CourseRepository.GetByID(ctx, bi.CourseID)
		if err != nil {
			return err
		}
		if err := s.access.authz.ValidateAssistant(ctx, user, course); err != nil {
			return err
		}

		assistants, err := s.repos.BookingIntervalRepository.RegisteredAssistants(ctx, bi.ID)
		if err != nil {
			return err
		}

		if containsID(assistants, user.ID) {
			if err := s.repos.BookingIntervalRepository.RemoveAssistant(ctx, bi.ID, user.ID); err != nil {
				return err
			}
			count = len(assistants) - 1
			return nil
		}

		if s.enforceCapacity && len(assistants) >= bi.MaxAvailableAssistants {
			return apperrors.NewCustomError(apperrors.ErrCapacityReached,
				fmt.Sprintf("This interval already has %d of %d assistants", len(assistants), bi.MaxAvailableAssistants))
		}
		if err := s.repos.BookingIntervalRepository.AddAssistant(ctx, bi.ID, user.ID); err != nil {
			return err
		}
		registered = true
		count = len(assistants) + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	if registered {
		s.metrics.Toggle(metrics.ActionRegister)
	} else {
		s.metrics.Toggle(metrics.ActionUnregister)
	}
	s.events.Publish(course.ID, websocket.EventAvailabilityToggled, availabilityEvent{
		NK:                       nk,
		AssistantID:              user.ID,
		Registered:               registered,
		AvailableAssistantsCount: count,
	})
	s.logger.Debug().Str("nk", nk).Int64("userID", user.ID).Bool("registered", registered).Int("count", count).Msg("Availability toggled")

	return &dto.RegistrationSwitchResponse{
		RegistrationAvailable:    !registered,
		AvailableAssistantsCount: count,
	}, nil
}

// UpdateCapacity sets how many assistants a booking interval wants. Only the
// coordinator of the course may change it.
func (s *AvailabilityService) UpdateCapacity(ctx context.Context, userID int64, nk string, num int) (*dto.CapacityResponse, error) {
	if num < 0 {
		return nil, apperrors.NewValidationError("Number of assistants cannot be negative")
	}
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	bi, err := s.repos.BookingIntervalRepository.GetByNK(ctx, nk, false)
	if err != nil {
		return nil, err
	}
	course, err := s.repos.CourseRepository.GetByID(ctx, bi.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateCoordinator(user, course); err != nil {
		return nil, err
	}

	if err := s.repos.BookingIntervalRepository.UpdateCapacity(ctx, bi.ID, num); err != nil {
		return nil, err
	}

	resp := &dto.CapacityResponse{NK: bi.NK, MaxAvailableAssistants: num}
	s.events.Publish(course.ID, websocket.EventCapacityUpdated, resp)
	s.logger.Info().Str("nk", nk).Int("max", num).Msg("Interval capacity updated")
	return resp, nil
}
