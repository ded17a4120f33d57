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

var reservationIntervalColumns = []string{"ri.id", "ri.booking_interval_id", "ri.idx", "ri.start_minute", "ri.end_minute"}

var reservationDetailColumns = []string{
	"rc.id", "rc.reservation_interval_id", "rc.student_id", "rc.assistant_id", "rc.created_at",
	"bi.day", "ri.start_minute", "ri.end_minute",
	"c.id AS course_id", "c.title AS course_title", "c.slug AS course_slug",
	`su.username AS "student.username"`, `su.first_name AS "student.first_name"`, `su.last_name AS "student.last_name"`,
	`au.username AS "assistant.username"`, `au.first_name AS "assistant.first_name"`, `au.last_name AS "assistant.last_name"`,
}

// ReservationRepository handles reservation intervals and reservation connections
type ReservationRepository struct {
	db *db.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(database *db.DB) *ReservationRepository {
	return &ReservationRepository{db: database}
}

// GetInterval retrieves a reservation interval by ID
func (r *ReservationRepository) GetInterval(ctx context.Context, id int64) (*models.ReservationInterval, error) {
	query, args, err := r.db.Builder.Select(reservationIntervalColumns...).
		From("reservation_intervals ri").
		Where(sq.Eq{"ri.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get slot query: %w", err)
	}

	var ri models.ReservationInterval
	if err := r.db.Conn(ctx).GetContext(ctx, &ri, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation interval: %w", err)
	}
	return &ri, nil
}

// ListIntervals lists the reservation intervals of the given booking intervals ordered by index
func (r *ReservationRepository) ListIntervals(ctx context.Context, bookingIntervalIDs ...int64) ([]models.ReservationInterval, error) {
	if len(bookingIntervalIDs) == 0 {
		return []models.ReservationInterval{}, nil
	}
	query, args, err := r.db.Builder.Select(reservationIntervalColumns...).
		From("reservation_intervals ri").
		Where(sq.Eq{"ri.booking_interval_id": bookingIntervalIDs}).
		OrderBy("ri.booking_interval_id", "ri.idx").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list slots query: %w", err)
	}

	slots := []models.ReservationInterval{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reservation intervals: %w", err)
	}
	return slots, nil
}

// ListIntervalsByCourse lists every reservation interval of a course
func (r *ReservationRepository) ListIntervalsByCourse(ctx context.Context, courseID int64) ([]models.ReservationInterval, error) {
	query, args, err := r.db.Builder.Select(reservationIntervalColumns...).
		From("reservation_intervals ri").
		Join("booking_intervals bi ON bi.id = ri.booking_interval_id").
		Where(sq.Eq{"bi.course_id": courseID}).
		OrderBy("ri.booking_interval_id", "ri.idx").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list slots query: %w", err)
	}

	slots := []models.ReservationInterval{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reservation intervals: %w", err)
	}
	return slots, nil
}

// BoundAssistants returns the assistants already assigned on a reservation interval
func (r *ReservationRepository) BoundAssistants(ctx context.Context, reservationIntervalID int64) ([]int64, error) {
	query, args, err := r.db.Builder.Select("assistant_id").
		From("reservation_connections").
		Where(sq.Eq{"reservation_interval_id": reservationIntervalID}).
		OrderBy("assistant_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bound assistants query: %w", err)
	}

	ids := []int64{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bound assistants: %w", err)
	}
	return ids, nil
}

// HasConnection reports whether studentID already holds the reservation interval
func (r *ReservationRepository) HasConnection(ctx context.Context, reservationIntervalID, studentID int64) (bool, error) {
	query, args, err := r.db.Builder.Select("COUNT(*)").
		From("reservation_connections").
		Where(sq.Eq{"reservation_interval_id": reservationIntervalID, "student_id": studentID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build has reservation query: %w", err)
	}

	var n int
	if err := r.db.Conn(ctx).GetContext(ctx, &n, query, args...); err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return n > 0, nil
}

// ConnectionCountsByCourse maps reservation interval IDs of a course to their number of connections.
// Intervals without connections are absent.
func (r *ReservationRepository) ConnectionCountsByCourse(ctx context.Context, courseID int64) (map[int64]int, error) {
	query, args, err := r.db.Builder.Select("rc.reservation_interval_id", "COUNT(*) AS n").
		From("reservation_connections rc").
		Join("reservation_intervals ri ON ri.id = rc.reservation_interval_id").
		Join("booking_intervals bi ON bi.id = ri.booking_interval_id").
		Where(sq.Eq{"bi.course_id": courseID}).
		GroupBy("rc.reservation_interval_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection count query: %w", err)
	}

	var rows []struct {
		IntervalID int64 `db:"reservation_interval_id"`
		N          int   `db:"n"`
	}
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count connections: %w", err)
	}

	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.IntervalID] = row.N
	}
	return out, nil
}

// Create inserts a connection. A second connection for the same student or
// assistant on the interval is reported as ErrAlreadyReserved or ErrNoAssistantsAvailable.
func (r *ReservationRepository) Create(ctx context.Context, conn *models.ReservationConnection) error {
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.db.Builder.Insert("reservation_connections").
		Columns("reservation_interval_id", "student_id", "assistant_id", "created_at").
		Values(conn.ReservationIntervalID, conn.StudentID, conn.AssistantID, conn.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create reservation query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &conn.ID, query, args...); err != nil {
		switch {
		case dberrors.IsDuplicateConstraintError(err, "reservation_connections_interval_student_key",
			"reservation_connections.reservation_interval_id", "reservation_connections.student_id"):
			return apperrors.ErrAlreadyReserved
		case dberrors.IsUniqueViolation(err):
			return apperrors.ErrNoAssistantsAvailable
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

// GetConnection retrieves a connection by ID
func (r *ReservationRepository) GetConnection(ctx context.Context, id int64) (*models.ReservationConnection, error) {
	query, args, err := r.db.Builder.Select("id", "reservation_interval_id", "student_id", "assistant_id", "created_at").
		From("reservation_connections").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get reservation query: %w", err)
	}

	var conn models.ReservationConnection
	if err := r.db.Conn(ctx).GetContext(ctx, &conn, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &conn, nil
}

// Delete removes a connection
func (r *ReservationRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.db.Builder.Delete("reservation_connections").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete reservation query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrConnectionNotFound
	}
	return nil
}

// ReservationFilter narrows ListDetails
type ReservationFilter struct {
	ReservationID *int64
	StudentID     *int64
	AssistantID   *int64
	CourseID      *int64
}

// ListDetails lists connections joined with their slot, course and people,
// ordered by day and start time
func (r *ReservationRepository) ListDetails(ctx context.Context, f ReservationFilter) ([]models.ReservationDetail, error) {
	where := sq.Eq{}
	if f.ReservationID != nil {
		where["rc.id"] = *f.ReservationID
	}
	if f.StudentID != nil {
		where["rc.student_id"] = *f.StudentID
	}
	if f.AssistantID != nil {
		where["rc.assistant_id"] = *f.AssistantID
	}
	if f.CourseID != nil {
		where["c.id"] = *f.CourseID
	}

	query, args, err := r.db.Builder.Select(reservationDetailColumns...).
		From("reservation_connections rc").
		Join("reservation_intervals ri ON ri.id = rc.reservation_interval_id").
		Join("booking_intervals bi ON bi.id = ri.booking_interval_id").
		Join("courses c ON c.id = bi.course_id").
		Join("users su ON su.id = rc.student_id").
		Join("users au ON au.id = rc.assistant_id").
		Where(where).
		OrderBy("bi.day", "ri.start_minute", "c.title").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list reservations query: %w", err)
	}

	rows := []models.ReservationDetail{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return rows, nil
}

// GetDetail retrieves one joined connection
func (r *ReservationRepository) GetDetail(ctx context.Context, id int64) (*models.ReservationDetail, error) {
	rows, err := r.ListDetails(ctx, ReservationFilter{ReservationID: &id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrConnectionNotFound
	}
	return &rows[0], nil
}
