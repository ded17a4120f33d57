package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
	"github.com/itsbooking/portal/internal/pkg/helpers"
	"github.com/itsbooking/portal/internal/pkg/metrics"
)

// ExerciseService handles exercise uploads and their review
type ExerciseService struct {
	repos   *repositories.Repositories
	access  courseAccess
	storage filestorage.FileStorage
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewExerciseService creates a new ExerciseService
func NewExerciseService(
	repos *repositories.Repositories,
	authz *auth.AuthorizationService,
	storage filestorage.FileStorage,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ExerciseService {
	return &ExerciseService{
		repos:   repos,
		access:  courseAccess{authz: authz, courses: repos.CourseRepository},
		storage: storage,
		metrics: m,
		logger:  logger,
	}
}

// ExerciseListOptions narrows and pages List
type ExerciseListOptions struct {
	UnreviewedOnly bool
	Page           int
	PageSize       int
}

// exerciseDir is where the uploads of a student in a course are stored
func exerciseDir(course *models.Course, studentID int64) string {
	return fmt.Sprintf("exercises/%s/user_%d", course.Code, studentID)
}

// Upload stores a file from an enrolled student as a new unreviewed exercise
func (s *ExerciseService) Upload(ctx context.Context, userID int64, slug string, fileHeader *multipart.FileHeader) (*dto.ExerciseResponse, error) {
	user, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateEnrolledStudent(ctx, user, course); err != nil {
		return nil, err
	}

	stored, err := storeUpload(s.storage, fileHeader, exerciseDir(course, user.ID), "exercise")
	if err != nil {
		return nil, err
	}

	exercise := &models.Exercise{
		CourseID:  course.ID,
		StudentID: user.ID,
		FilePath:  stored,
		FileName:  fileHeader.Filename,
	}
	if err := s.repos.ExerciseRepository.Create(ctx, exercise); err != nil {
		if delErr := s.storage.DeleteFile(stored); delErr != nil {
			s.logger.Error().Err(delErr).Str("path", stored).Msg("Failed to remove orphaned exercise file")
		}
		return nil, err
	}

	s.metrics.Upload(metrics.UploadKindExercise)
	s.logger.Info().Int64("exerciseID", exercise.ID).Int64("courseID", course.ID).Int64("studentID", user.ID).Msg("Exercise uploaded")
	return s.response(ctx, exercise.ID)
}

// List returns a page of the exercises of a course. Students see their own
// uploads, assistants and the coordinator see every upload. Unreviewed
// exercises come first, then the newest.
func (s *ExerciseService) List(ctx context.Context, userID int64, slug string, opts ExerciseListOptions) (*dto.PagedResponse, error) {
	user, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	filter := repositories.ExerciseFilter{CourseID: course.ID, UnreviewedOnly: opts.UnreviewedOnly}
	if user.Role == models.RoleStudent {
		filter.StudentID = &user.ID
	}

	offset, limit := helpers.CalculateOffsetLimit(opts.Page, opts.PageSize)
	rows, total, err := s.repos.ExerciseRepository.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}

	return &dto.PagedResponse{
		Items:      dto.NewExerciseResponses(rows),
		Pagination: helpers.NewPaginationInfo(total, opts.Page, opts.PageSize),
	}, nil
}

// load returns the caller, an exercise and its course
func (s *ExerciseService) load(ctx context.Context, userID, exerciseID int64) (*models.User, *models.Course, *models.ExerciseDetail, error) {
	exercise, err := s.repos.ExerciseRepository.GetByID(ctx, exerciseID)
	if err != nil {
		return nil, nil, nil, err
	}
	user, course, err := s.access.byID(ctx, userID, exercise.CourseID)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, course, exercise, nil
}

func (s *ExerciseService) response(ctx context.Context, exerciseID int64) (*dto.ExerciseResponse, error) {
	exercise, err := s.repos.ExerciseRepository.GetByID(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewExerciseResponse(exercise)
	return &resp, nil
}

// Get returns an exercise to its owner or the course staff
func (s *ExerciseService) Get(ctx context.Context, userID, exerciseID int64) (*dto.ExerciseResponse, error) {
	user, course, exercise, err := s.load(ctx, userID, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateExerciseAccess(ctx, user, course, &exercise.Exercise); err != nil {
		return nil, err
	}
	resp := dto.NewExerciseResponse(exercise)
	return &resp, nil
}

// Review records the verdict and feedback of the caller on an exercise
func (s *ExerciseService) Review(ctx context.Context, userID, exerciseID int64, req *dto.ReviewExerciseRequest) (*dto.ExerciseResponse, error) {
	if req.Approved == nil {
		return nil, apperrors.NewValidationError("approved is required")
	}

	user, course, exercise, err := s.load(ctx, userID, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateReviewer(ctx, user, course, &exercise.Exercise); err != nil {
		return nil, err
	}

	if err := s.repos.ExerciseRepository.Review(ctx, exercise.ID, req.Feedback, *req.Approved, user.ID); err != nil {
		return nil, err
	}

	if *req.Approved {
		s.metrics.Review(metrics.ReviewApproved)
	} else {
		s.metrics.Review(metrics.ReviewRejected)
	}
	s.logger.Info().Int64("exerciseID", exercise.ID).Int64("reviewerID", user.ID).Bool("approved", *req.Approved).Msg("Exercise reviewed")
	return s.response(ctx, exercise.ID)
}

// Open returns the uploaded file of an exercise and its original name
func (s *ExerciseService) Open(ctx context.Context, userID, exerciseID int64) (io.ReadCloser, string, error) {
	user, course, exercise, err := s.load(ctx, userID, exerciseID)
	if err != nil {
		return nil, "", err
	}
	if err := s.access.authz.ValidateExerciseAccess(ctx, user, course, &exercise.Exercise); err != nil {
		return nil, "", err
	}

	rc, err := s.storage.Open(exercise.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperrors.NewResourceNotFoundError("Exercise file missing")
		}
		return nil, "", fmt.Errorf("failed to open exercise file: %w", err)
	}
	return rc, exercise.FileName, nil
}

// Delete removes an exercise and its file. Allowed for the owner and the coordinator.
func (s *ExerciseService) Delete(ctx context.Context, userID, exerciseID int64) error {
	user, course, exercise, err := s.load(ctx, userID, exerciseID)
	if err != nil {
		return err
	}
	if err := s.access.authz.ValidateExerciseDelete(user, course, &exercise.Exercise); err != nil {
		return err
	}

	if err := s.repos.ExerciseRepository.Delete(ctx, exercise.ID); err != nil {
		return err
	}
	if err := s.storage.DeleteFile(exercise.FilePath); err != nil {
		s.logger.Warn().Err(err).Str("path", exercise.FilePath).Msg("Failed to remove exercise file")
	}

	s.logger.Info().Int64("exerciseID", exercise.ID).Int64("userID", user.ID).Msg("Exercise deleted")
	return nil
}
