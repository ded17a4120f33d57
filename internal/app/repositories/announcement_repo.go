package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/dberrors"
)

var announcementDetailColumns = []string{
	"a.id", "a.course_id", "a.author_id", "a.title", "a.content", "a.created_at",
	`u.username AS "author.username"`, `u.first_name AS "author.first_name"`, `u.last_name AS "author.last_name"`,
	"(SELECT COUNT(*) FROM comments cm WHERE cm.announcement_id = a.id) AS comment_count",
}

// AnnouncementRepository handles announcements and their comments
type AnnouncementRepository struct {
	db *db.DB
}

// NewAnnouncementRepository creates a new AnnouncementRepository
func NewAnnouncementRepository(database *db.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: database}
}

// Create inserts an announcement and sets its ID
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.db.Builder.Insert("announcements").
		Columns("course_id", "author_id", "title", "content", "created_at").
		Values(a.CourseID, a.AuthorID, a.Title, a.Content, a.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create announcement query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &a.ID, query, args...); err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *AnnouncementRepository) selectDetails() sq.SelectBuilder {
	return r.db.Builder.Select(announcementDetailColumns...).
		From("announcements a").
		Join("users u ON u.id = a.author_id")
}

// GetByID retrieves an announcement with its author
func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*models.AnnouncementDetail, error) {
	query, args, err := r.selectDetails().Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get announcement query: %w", err)
	}

	var a models.AnnouncementDetail
	if err := r.db.Conn(ctx).GetContext(ctx, &a, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrAnnouncementNotFound
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return &a, nil
}

// ListByCourse returns one page of a course's announcements, newest first, and the total count.
// A zero limit returns every announcement.
func (r *AnnouncementRepository) ListByCourse(ctx context.Context, courseID int64, offset, limit uint64) ([]models.AnnouncementDetail, int64, error) {
	countQuery, countArgs, err := r.db.Builder.Select("COUNT(*)").
		From("announcements").
		Where(sq.Eq{"course_id": courseID}).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count announcements query: %w", err)
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count announcements: %w", err)
	}
	if total == 0 {
		return []models.AnnouncementDetail{}, 0, nil
	}

	q := r.selectDetails().Where(sq.Eq{"a.course_id": courseID}).OrderBy("a.id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list announcements query: %w", err)
	}

	rows := []models.AnnouncementDetail{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list announcements: %w", err)
	}
	return rows, total, nil
}

// Delete removes an announcement and its comments
func (r *AnnouncementRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.db.Builder.Delete("announcements").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete announcement query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrAnnouncementNotFound
	}
	return nil
}

// CreateComment inserts a comment and sets its ID
func (r *AnnouncementRepository) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.db.Builder.Insert("comments").
		Columns("announcement_id", "author_id", "content", "created_at").
		Values(c.AnnouncementID, c.AuthorID, c.Content, c.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create comment query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &c.ID, query, args...); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListComments lists the comments of an announcement, oldest first
func (r *AnnouncementRepository) ListComments(ctx context.Context, announcementID int64) ([]models.CommentDetail, error) {
	query, args, err := r.db.Builder.Select(
		"cm.id", "cm.announcement_id", "cm.author_id", "cm.content", "cm.created_at",
		`u.username AS "author.username"`, `u.first_name AS "author.first_name"`, `u.last_name AS "author.last_name"`,
	).
		From("comments cm").
		Join("users u ON u.id = cm.author_id").
		Where(sq.Eq{"cm.announcement_id": announcementID}).
		OrderBy("cm.created_at", "cm.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list comments query: %w", err)
	}

	rows := []models.CommentDetail{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return rows, nil
}
