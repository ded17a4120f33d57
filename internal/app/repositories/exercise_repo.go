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

var exerciseDetailColumns = []string{
	"e.id", "e.course_id", "e.student_id", "e.file_path", "e.file_name", "e.feedback",
	"e.approved", "e.reviewer_id", "e.uploaded_at", "e.reviewed_at",
	`u.username AS "student.username"`, `u.first_name AS "student.first_name"`, `u.last_name AS "student.last_name"`,
}

// ExerciseFilter narrows exercise lists
type ExerciseFilter struct {
	CourseID       int64
	StudentID      *int64
	UnreviewedOnly bool
}

func (f ExerciseFilter) where() sq.And {
	and := sq.And{sq.Eq{"e.course_id": f.CourseID}}
	if f.StudentID != nil {
		and = append(and, sq.Eq{"e.student_id": *f.StudentID})
	}
	if f.UnreviewedOnly {
		and = append(and, sq.Eq{"e.approved": nil})
	}
	return and
}

// ExerciseRepository handles exercise uploads
type ExerciseRepository struct {
	db *db.DB
}

// NewExerciseRepository creates a new ExerciseRepository
func NewExerciseRepository(database *db.DB) *ExerciseRepository {
	return &ExerciseRepository{db: database}
}

// Create inserts an exercise and sets its ID
func (r *ExerciseRepository) Create(ctx context.Context, e *models.Exercise) error {
	if e.UploadedAt.IsZero() {
		e.UploadedAt = time.Now().UTC()
	}
	query, args, err := r.db.Builder.Insert("exercises").
		Columns("course_id", "student_id", "file_path", "file_name", "feedback", "uploaded_at").
		Values(e.CourseID, e.StudentID, e.FilePath, e.FileName, e.Feedback, e.UploadedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create exercise query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &e.ID, query, args...); err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}
	return nil
}

func (r *ExerciseRepository) selectDetails() sq.SelectBuilder {
	return r.db.Builder.Select(exerciseDetailColumns...).
		From("exercises e").
		Join("users u ON u.id = e.student_id")
}

// GetByID retrieves an exercise with its student
func (r *ExerciseRepository) GetByID(ctx context.Context, id int64) (*models.ExerciseDetail, error) {
	query, args, err := r.selectDetails().Where(sq.Eq{"e.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get exercise query: %w", err)
	}

	var e models.ExerciseDetail
	if err := r.db.Conn(ctx).GetContext(ctx, &e, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrExerciseNotFound
		}
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	return &e, nil
}

// List returns one page of exercises, unreviewed first then newest first, and the total count
func (r *ExerciseRepository) List(ctx context.Context, f ExerciseFilter, offset, limit uint64) ([]models.ExerciseDetail, int64, error) {
	countQuery, countArgs, err := r.db.Builder.Select("COUNT(*)").
		From("exercises e").
		Where(f.where()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count exercises query: %w", err)
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count exercises: %w", err)
	}
	if total == 0 {
		return []models.ExerciseDetail{}, 0, nil
	}

	q := r.selectDetails().
		Where(f.where()).
		OrderBy("CASE WHEN e.approved IS NULL THEN 0 ELSE 1 END", "e.uploaded_at DESC", "e.id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list exercises query: %w", err)
	}

	rows := []models.ExerciseDetail{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list exercises: %w", err)
	}
	return rows, total, nil
}

// Review stores feedback, approval and reviewer
func (r *ExerciseRepository) Review(ctx context.Context, id int64, feedback string, approved bool, reviewerID int64) error {
	query, args, err := r.db.Builder.Update("exercises").
		Set("feedback", feedback).
		Set("approved", approved).
		Set("reviewer_id", reviewerID).
		Set("reviewed_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build review exercise query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to review exercise: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrExerciseNotFound
	}
	return nil
}

// Delete removes an exercise row
func (r *ExerciseRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.db.Builder.Delete("exercises").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete exercise query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrExerciseNotFound
	}
	return nil
}

// FilePathsByCourse lists the stored files of every exercise in a course
func (r *ExerciseRepository) FilePathsByCourse(ctx context.Context, courseID int64) ([]string, error) {
	query, args, err := r.db.Builder.Select("file_path").
		From("exercises").
		Where(sq.Eq{"course_id": courseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build exercise files query: %w", err)
	}

	paths := []string{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &paths, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list exercise files: %w", err)
	}
	return paths, nil
}
