package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/logger"
)

// Permission errors returned by the validators
var (
	ErrNotCourseMember      = apperrors.NewForbiddenError("You are not a member of this course")
	ErrNotCourseStaff       = apperrors.NewForbiddenError("Only assistants and the coordinator of this course can do this")
	ErrNotCourseCoordinator = apperrors.NewForbiddenError("Only the coordinator of this course can do this")
	ErrNotEnrolledStudent   = apperrors.NewForbiddenError("Only students enrolled in this course can do this")
	ErrReviewLocked         = apperrors.NewForbiddenError("This exercise was reviewed by someone else")
	ErrNotExerciseOwner     = apperrors.NewForbiddenError("You do not have access to this exercise")
)

// AuthorizationService answers course membership and ownership questions
type AuthorizationService struct {
	userRepo   *repositories.UserRepository
	courseRepo *repositories.CourseRepository
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(userRepo *repositories.UserRepository, courseRepo *repositories.CourseRepository) *AuthorizationService {
	return &AuthorizationService{
		userRepo:   userRepo,
		courseRepo: courseRepo,
	}
}

// GetUserInfo returns the user behind an authenticated request
func (s *AuthorizationService) GetUserInfo(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Int64("userID", userID).Msg("Error getting user by ID in GetUserInfo")
		return nil, fmt.Errorf("failed to get user information: %w", err)
	}
	return user, nil
}

// IsMember reports whether user belongs to the course in their role
func (s *AuthorizationService) IsMember(ctx context.Context, user *models.User, course *models.Course) (bool, error) {
	switch user.Role {
	case models.RoleStudent:
		return s.courseRepo.IsStudent(ctx, course.ID, user.ID)
	case models.RoleAssistant:
		return s.courseRepo.IsAssistant(ctx, course.ID, user.ID)
	case models.RoleCoordinator:
		return course.IsCoordinator(user.ID), nil
	default:
		return false, apperrors.ErrUnknownRole
	}
}

// IsStaff reports whether user assists in or coordinates the course
func (s *AuthorizationService) IsStaff(ctx context.Context, user *models.User, course *models.Course) (bool, error) {
	switch user.Role {
	case models.RoleAssistant, models.RoleCoordinator:
		return s.IsMember(ctx, user, course)
	default:
		return false, nil
	}
}

// ValidateMember fails with a permission error unless user belongs to the course
func (s *AuthorizationService) ValidateMember(ctx context.Context, user *models.User, course *models.Course) error {
	ok, err := s.IsMember(ctx, user, course)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCourseMember
	}
	return nil
}

// ValidateStaff fails unless user is an assistant or the coordinator of the course
func (s *AuthorizationService) ValidateStaff(ctx context.Context, user *models.User, course *models.Course) error {
	ok, err := s.IsStaff(ctx, user, course)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCourseStaff
	}
	return nil
}

// ValidateAssistant fails unless user is an assistant of the course
func (s *AuthorizationService) ValidateAssistant(ctx context.Context, user *models.User, course *models.Course) error {
	if user.Role != models.RoleAssistant {
		return ErrNotCourseStaff
	}
	return s.ValidateStaff(ctx, user, course)
}

// ValidateCoordinator fails unless user coordinates the course
func (s *AuthorizationService) ValidateCoordinator(user *models.User, course *models.Course) error {
	if user.Role != models.RoleCoordinator || !course.IsCoordinator(user.ID) {
		return ErrNotCourseCoordinator
	}
	return nil
}

// ValidateEnrolledStudent fails unless user is a student enrolled in the course
func (s *AuthorizationService) ValidateEnrolledStudent(ctx context.Context, user *models.User, course *models.Course) error {
	if user.Role != models.RoleStudent {
		return ErrNotEnrolledStudent
	}
	ok, err := s.courseRepo.IsStudent(ctx, course.ID, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolledStudent
	}
	return nil
}

// ValidateReviewer checks that user may set the verdict of exercise.
// Unreviewed exercises can be reviewed by any assistant or the coordinator of
// the course; once reviewed only the original reviewer or the coordinator may
// change the verdict.
func (s *AuthorizationService) ValidateReviewer(ctx context.Context, user *models.User, course *models.Course, exercise *models.Exercise) error {
	if err := s.ValidateStaff(ctx, user, course); err != nil {
		return err
	}
	if !exercise.Reviewed() || course.IsCoordinator(user.ID) {
		return nil
	}
	if exercise.ReviewerID != nil && *exercise.ReviewerID == user.ID {
		return nil
	}
	return ErrReviewLocked
}

// ValidateExerciseAccess allows the uploading student and the course staff
func (s *AuthorizationService) ValidateExerciseAccess(ctx context.Context, user *models.User, course *models.Course, exercise *models.Exercise) error {
	if exercise.StudentID == user.ID {
		return nil
	}
	ok, err := s.IsStaff(ctx, user, course)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotExerciseOwner
	}
	return nil
}

// ValidateExerciseDelete allows the uploading student and the coordinator
func (s *AuthorizationService) ValidateExerciseDelete(user *models.User, course *models.Course, exercise *models.Exercise) error {
	if exercise.StudentID == user.ID || course.IsCoordinator(user.ID) {
		return nil
	}
	return ErrNotExerciseOwner
}
