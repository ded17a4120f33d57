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

var courseColumns = []string{"c.id", "c.title", "c.code", "c.slug", "c.coordinator_id", "c.created_at"}

// Course membership tables
const (
	courseStudentsTable   = "course_students"
	courseAssistantsTable = "course_assistants"
)

// CourseRepository handles courses and their membership
type CourseRepository struct {
	db *db.DB
}

// NewCourseRepository creates a new CourseRepository
func NewCourseRepository(database *db.DB) *CourseRepository {
	return &CourseRepository{db: database}
}

// Create inserts a course and sets its ID
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.db.Builder.Insert("courses").
		Columns("title", "code", "slug", "coordinator_id", "created_at").
		Values(course.Title, course.Code, course.Slug, course.CoordinatorID, course.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create course query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &course.ID, query, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "courses_coordinator_id_key", "courses.coordinator_id") {
			return apperrors.ErrCoordinatorTaken
		}
		if dberrors.IsUniqueViolation(err) {
			return apperrors.ErrCourseAlreadyExists
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

func (r *CourseRepository) getBy(ctx context.Context, where sq.Eq) (*models.Course, error) {
	query, args, err := r.db.Builder.Select(courseColumns...).From("courses c").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get course query: %w", err)
	}

	var course models.Course
	if err := r.db.Conn(ctx).GetContext(ctx, &course, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &course, nil
}

// GetByID retrieves a course by ID
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	return r.getBy(ctx, sq.Eq{"c.id": id})
}

// GetBySlug retrieves a course by slug
func (r *CourseRepository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return r.getBy(ctx, sq.Eq{"c.slug": slug})
}

// GetByCode retrieves a course by code
func (r *CourseRepository) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	return r.getBy(ctx, sq.Eq{"c.code": code})
}

// GetByCoordinator retrieves the course supervised by userID
func (r *CourseRepository) GetByCoordinator(ctx context.Context, userID int64) (*models.Course, error) {
	return r.getBy(ctx, sq.Eq{"c.coordinator_id": userID})
}

// ListForUser lists the courses userID takes, assists or coordinates, ordered by title
func (r *CourseRepository) ListForUser(ctx context.Context, userID int64) ([]models.Course, error) {
	query, args, err := r.db.Builder.Select(courseColumns...).
		From("courses c").
		Where(sq.Or{
			sq.Eq{"c.coordinator_id": userID},
			sq.Expr("EXISTS (SELECT 1 FROM "+courseStudentsTable+" cs WHERE cs.course_id = c.id AND cs.user_id = ?)", userID),
			sq.Expr("EXISTS (SELECT 1 FROM "+courseAssistantsTable+" ca WHERE ca.course_id = c.id AND ca.user_id = ?)", userID),
		}).
		OrderBy("c.title").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list courses query: %w", err)
	}

	courses := []models.Course{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// ListAll lists every course ordered by title
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	query, args, err := r.db.Builder.Select(courseColumns...).From("courses c").OrderBy("c.title").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list courses query: %w", err)
	}

	courses := []models.Course{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// SetCoordinator makes userID the coordinator of the course
func (r *CourseRepository) SetCoordinator(ctx context.Context, courseID, userID int64) error {
	query, args, err := r.db.Builder.Update("courses").
		Set("coordinator_id", userID).
		Where(sq.Eq{"id": courseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build set coordinator query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return apperrors.ErrCoordinatorTaken
		}
		return fmt.Errorf("failed to set coordinator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrCourseNotFound
	}
	return nil
}

// Delete removes a course. Intervals, reservations, exercises and announcements cascade.
func (r *CourseRepository) Delete(ctx context.Context, courseID int64) error {
	query, args, err := r.db.Builder.Delete("courses").Where(sq.Eq{"id": courseID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete course query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrCourseNotFound
	}
	return nil
}

// AddStudent enrolls userID. Enrolling twice is a no-op.
func (r *CourseRepository) AddStudent(ctx context.Context, courseID, userID int64) error {
	return r.addMember(ctx, courseStudentsTable, courseID, userID)
}

// AddAssistant makes userID an assistant of the course. Adding twice is a no-op.
func (r *CourseRepository) AddAssistant(ctx context.Context, courseID, userID int64) error {
	return r.addMember(ctx, courseAssistantsTable, courseID, userID)
}

// IsStudent reports whether userID is enrolled in the course
func (r *CourseRepository) IsStudent(ctx context.Context, courseID, userID int64) (bool, error) {
	return r.isMember(ctx, courseStudentsTable, courseID, userID)
}

// IsAssistant reports whether userID assists in the course
func (r *CourseRepository) IsAssistant(ctx context.Context, courseID, userID int64) (bool, error) {
	return r.isMember(ctx, courseAssistantsTable, courseID, userID)
}

// CountAssistants returns the number of assistants of the course
func (r *CourseRepository) CountAssistants(ctx context.Context, courseID int64) (int, error) {
	query, args, err := r.db.Builder.Select("COUNT(*)").
		From(courseAssistantsTable).
		Where(sq.Eq{"course_id": courseID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count assistants query: %w", err)
	}

	var n int
	if err := r.db.Conn(ctx).GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count assistants: %w", err)
	}
	return n, nil
}

func (r *CourseRepository) addMember(ctx context.Context, table string, courseID, userID int64) error {
	query, args, err := r.db.Builder.Insert(table).
		Columns("course_id", "user_id").
		Values(courseID, userID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build add member query: %w", err)
	}

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add course member: %w", err)
	}
	return nil
}

func (r *CourseRepository) isMember(ctx context.Context, table string, courseID, userID int64) (bool, error) {
	query, args, err := r.db.Builder.Select("COUNT(*)").
		From(table).
		Where(sq.Eq{"course_id": courseID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build membership query: %w", err)
	}

	var n int
	if err := r.db.Conn(ctx).GetContext(ctx, &n, query, args...); err != nil {
		return false, fmt.Errorf("failed to check course membership: %w", err)
	}
	return n > 0, nil
}
