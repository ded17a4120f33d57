package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/helpers"
	"github.com/itsbooking/portal/internal/pkg/validation"
	"github.com/itsbooking/portal/internal/pkg/websocket"
)

// Text limits of announcements and comments
const (
	AnnouncementTitleMaxLength   = 45
	AnnouncementContentMaxLength = 1500
	CommentMaxLength             = 500
)

// AnnouncementService manages the course bulletin board shared by assistants and the coordinator
type AnnouncementService struct {
	repos  *repositories.Repositories
	access courseAccess
	events EventPublisher
	logger zerolog.Logger
}

// NewAnnouncementService creates a new AnnouncementService
func NewAnnouncementService(repos *repositories.Repositories, authz *auth.AuthorizationService, events EventPublisher, logger zerolog.Logger) *AnnouncementService {
	return &AnnouncementService{
		repos:  repos,
		access: courseAccess{authz: authz, courses: repos.CourseRepository},
		events: publisherOrNop(events),
		logger: logger,
	}
}

// staff returns the caller and the course after checking the caller is course staff
func (s *AnnouncementService) staff(ctx context.Context, userID int64, course *models.Course) (*models.User, error) {
	user, err := s.access.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateStaff(ctx, user, course); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns a page of the announcements of a course, newest first
func (s *AnnouncementService) List(ctx context.Context, userID int64, slug string, page, size int) (*dto.PagedResponse, error) {
	_, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.staff(ctx, userID, course); err != nil {
		return nil, err
	}

	offset, limit := helpers.CalculateOffsetLimit(page, size)
	rows, total, err := s.repos.AnnouncementRepository.ListByCourse(ctx, course.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &dto.PagedResponse{
		Items:      dto.NewAnnouncementResponses(rows),
		Pagination: helpers.NewPaginationInfo(total, page, size),
	}, nil
}

// Get returns an announcement with its comments
func (s *AnnouncementService) Get(ctx context.Context, userID, announcementID int64) (*dto.AnnouncementResponse, error) {
	a, err := s.repos.AnnouncementRepository.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	_, course, err := s.access.byID(ctx, userID, a.CourseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.staff(ctx, userID, course); err != nil {
		return nil, err
	}

	comments, err := s.repos.AnnouncementRepository.ListComments(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	resp := dto.NewAnnouncementResponse(a)
	resp.Comments = make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		resp.Comments = append(resp.Comments, dto.NewCommentResponse(&comments[i]))
	}
	return &resp, nil
}

// Create posts an announcement. Only the coordinator of the course may post.
func (s *AnnouncementService) Create(ctx context.Context, userID int64, slug string, req *dto.CreateAnnouncementRequest) (*dto.AnnouncementResponse, error) {
	title, content := strings.TrimSpace(req.Title), strings.TrimSpace(req.Content)
	err := validation.All(
		validation.NewStringValidation("title", title).WithMaxLength(AnnouncementTitleMaxLength),
		validation.NewStringValidation("content", content).WithMaxLength(AnnouncementContentMaxLength),
	)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	user, course, err := s.access.member(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := s.access.authz.ValidateCoordinator(user, course); err != nil {
		return nil, err
	}

	a := &models.Announcement{CourseID: course.ID, AuthorID: user.ID, Title: title, Content: content}
	if err := s.repos.AnnouncementRepository.Create(ctx, a); err != nil {
		return nil, err
	}

	detail, err := s.repos.AnnouncementRepository.GetByID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewAnnouncementResponse(detail)
	s.events.Publish(course.ID, websocket.EventAnnouncementCreated, resp)
	s.logger.Info().Int64("announcementID", a.ID).Int64("courseID", course.ID).Msg("Announcement created")
	return &resp, nil
}

// Delete removes an announcement with its comments. Only the coordinator of the course may delete.
func (s *AnnouncementService) Delete(ctx context.Context, userID, announcementID int64) error {
	a, err := s.repos.AnnouncementRepository.GetByID(ctx, announcementID)
	if err != nil {
		return err
	}
	user, course, err := s.access.byID(ctx, userID, a.CourseID)
	if err != nil {
		return err
	}
	if err := s.access.authz.ValidateCoordinator(user, course); err != nil {
		return err
	}

	if err := s.repos.AnnouncementRepository.Delete(ctx, a.ID); err != nil {
		return err
	}
	s.events.Publish(course.ID, websocket.EventAnnouncementDeleted, map[string]int64{"id": a.ID})
	s.logger.Info().Int64("announcementID", a.ID).Msg("Announcement deleted")
	return nil
}

// Comment adds a comment to an announcement. Assistants and the coordinator may comment.
func (s *AnnouncementService) Comment(ctx context.Context, userID, announcementID int64, req *dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	content := strings.TrimSpace(req.Content)
	if err := validation.NewStringValidation("content", content).WithMaxLength(CommentMaxLength).Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	a, err := s.repos.AnnouncementRepository.GetByID(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	_, course, err := s.access.byID(ctx, userID, a.CourseID)
	if err != nil {
		return nil, err
	}
	user, err := s.staff(ctx, userID, course)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{AnnouncementID: a.ID, AuthorID: user.ID, Content: content}
	if err := s.repos.AnnouncementRepository.CreateComment(ctx, c); err != nil {
		return nil, err
	}

	resp := dto.NewCommentResponse(&models.CommentDetail{
		Comment: *c,
		Author:  models.PersonName{Username: user.Username, FirstName: user.FirstName, LastName: user.LastName},
	})
	s.events.Publish(course.ID, websocket.EventCommentCreated, struct {
		AnnouncementID int64 `json:"announcementId"`
		dto.CommentResponse
	}{a.ID, resp})
	return &resp, nil
}
