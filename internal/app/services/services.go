package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/go-playground/validator/v10"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
)

// Services defined in this package:
// - AuthService: login and the current user
// - UserService: accounts, passwords and avatars
// - CourseService: courses, grid generation, membership and the weekly table
// - DashboardService: home page, course landing pages and coordinator statistics
// - AvailabilityService: assistant registration and interval capacity
// - ReservationService: reserving, cancelling and listing reservation slots
// - ExerciseService: exercise upload and review
// - AnnouncementService: announcements and comments

// EventPublisher pushes live events to the clients watching a course
type EventPublisher interface {
	Publish(courseID int64, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(int64, string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// courseAccess loads the caller and a course and checks that the caller belongs to it
type courseAccess struct {
	authz   *auth.AuthorizationService
	courses *repositories.CourseRepository
}

func (a courseAccess) user(ctx context.Context, userID int64) (*models.User, error) {
	user, err := a.authz.GetUserInfo(ctx, userID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	return user, err
}

// member returns the caller and the course identified by slug
func (a courseAccess) member(ctx context.Context, userID int64, slug string) (*models.User, *models.Course, error) {
	user, err := a.user(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	course, err := a.courses.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if err := a.authz.ValidateMember(ctx, user, course); err != nil {
		return nil, nil, err
	}
	return user, course, nil
}

// byID returns the caller and a course without checking membership
func (a courseAccess) byID(ctx context.Context, userID, courseID int64) (*models.User, *models.Course, error) {
	user, err := a.user(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	course, err := a.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	return user, course, nil
}

var validate = validator.New()

// validateRequest checks the validate tags of req and reports the first failing field
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	detail := dto.HandleValidationError(err)
	msg := detail.Message
	if fields, ok := detail.Details.([]dto.FieldError); ok && len(fields) > 0 {
		msg = fields[0].Message
	}
	return apperrors.NewCustomError(apperrors.ErrValidationFailed, msg)
}

// storeUpload saves an uploaded file under dir. A missing file or a file name
// that cannot be stored is a validation error; what names the upload in messages.
func storeUpload(storage filestorage.FileStorage, fileHeader *multipart.FileHeader, dir, what string) (string, error) {
	stored, err := storage.SaveFileWithPath(fileHeader, dir)
	if errors.Is(err, filestorage.ErrInvalidPath) {
		return "", apperrors.NewValidationError(fmt.Sprintf("The %s needs a file with a valid name", what))
	}
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", what, err)
	}
	return stored, nil
}
