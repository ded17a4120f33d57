package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/dberrors"
)

var bookingIntervalColumns = []string{
	"bi.id", "bi.course_id", "bi.day", "bi.start_minute", "bi.end_minute", "bi.max_available_assistants", "bi.nk",
}

// BookingIntervalRepository handles booking intervals, their registered
// assistants and their reservation intervals
type BookingIntervalRepository struct {
	db *db.DB
}

// NewBookingIntervalRepository creates a new BookingIntervalRepository
func NewBookingIntervalRepository(database *db.DB) *BookingIntervalRepository {
	return &BookingIntervalRepository{db: database}
}

// CountByCourse returns the number of booking intervals of a course
func (r *BookingIntervalRepository) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	query, args, err := r.db.Builder.Select("COUNT(*)").
		From("booking_intervals").
		Where(sq.Eq{"course_id": courseID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count intervals query: %w", err)
	}

	var n int
	if err := r.db.Conn(ctx).GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count booking intervals: %w", err)
	}
	return n, nil
}

// Insert creates a booking interval from iv. When an interval with the same
// key exists nothing is written and created is false.
func (r *BookingIntervalRepository) Insert(ctx context.Context, courseID int64, iv booking.IntervalSpec) (id int64, created bool, err error) {
	query, args, err := r.db.Builder.Insert("booking_intervals").
		Columns("course_id", "day", "start_minute", "end_minute", "max_available_assistants", "nk").
		Values(courseID, int(iv.Day), int(iv.Start), int(iv.End), 0, iv.Key).
		Suffix("ON CONFLICT (nk) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build insert interval query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &id, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to insert booking interval: %w", err)
	}
	return id, true, nil
}

func (r *BookingIntervalRepository) selectIntervals() sq.SelectBuilder {
	return r.db.Builder.Select(bookingIntervalColumns...).From("booking_intervals bi")
}

// GetByNK retrieves a booking interval by its key. With lock set the row is
// locked until the enclosing transaction ends.
func (r *BookingIntervalRepository) GetByNK(ctx context.Context, nk string, lock bool) (*models.BookingInterval, error) {
	q := r.selectIntervals().Where(sq.Eq{"bi.nk": nk})
	if lock {
		q = q.Suffix(r.db.LockSuffix())
	}
	return r.get(ctx, q)
}

// GetByID retrieves a booking interval by ID, optionally locking it
func (r *BookingIntervalRepository) GetByID(ctx context.Context, id int64, lock bool) (*models.BookingInterval, error) {
	q := r.selectIntervals().Where(sq.Eq{"bi.id": id})
	if lock {
		q = q.Suffix(r.db.LockSuffix())
	}
	return r.get(ctx, q)
}

func (r *BookingIntervalRepository) get(ctx context.Context, q sq.SelectBuilder) (*models.BookingInterval, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get interval query: %w", err)
	}

	var bi models.BookingInterval
	if err := r.db.Conn(ctx).GetContext(ctx, &bi, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrBookingIntervalNotFound
		}
		return nil, fmt.Errorf("failed to get booking interval: %w", err)
	}
	return &bi, nil
}

// ListByCourse lists the booking intervals of a course ordered by start then day
func (r *BookingIntervalRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.BookingInterval, error) {
	return r.list(ctx, r.selectIntervals().
		Where(sq.Eq{"bi.course_id": courseID}).
		OrderBy("bi.start_minute", "bi.day"))
}

// ListForAssistant lists the booking intervals userID registered for, optionally within one course
func (r *BookingIntervalRepository) ListForAssistant(ctx context.Context, userID int64, courseID *int64) ([]models.BookingInterval, error) {
	q := r.selectIntervals().
		Join("booking_interval_assistants bia ON bia.booking_interval_id = bi.id").
		Where(sq.Eq{"bia.user_id": userID}).
		OrderBy("bi.course_id", "bi.day", "bi.start_minute")
	if courseID != nil {
		q = q.Where(sq.Eq{"bi.course_id": *courseID})
	}
	return r.list(ctx, q)
}

func (r *BookingIntervalRepository) list(ctx context.Context, q sq.SelectBuilder) ([]models.BookingInterval, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list intervals query: %w", err)
	}

	intervals := []models.BookingInterval{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &intervals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list booking intervals: %w", err)
	}
	return intervals, nil
}

// UpdateCapacity sets max_available_assistants
func (r *BookingIntervalRepository) UpdateCapacity(ctx context.Context, intervalID int64, max int) error {
	query, args, err := r.db.Builder.Update("booking_intervals").
		Set("max_available_assistants", max).
		Where(sq.Eq{"id": intervalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update capacity query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update capacity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrBookingIntervalNotFound
	}
	return nil
}

// RegisteredAssistants returns the IDs of the assistants registered on an interval, ascending
func (r *BookingIntervalRepository) RegisteredAssistants(ctx context.Context, intervalID int64) ([]int64, error) {
	query, args, err := r.db.Builder.Select("user_id").
		From("booking_interval_assistants").
		Where(sq.Eq{"booking_interval_id": intervalID}).
		OrderBy("user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registered assistants query: %w", err)
	}

	ids := []int64{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list registered assistants: %w", err)
	}
	return ids, nil
}

// RegisteredByCourse maps every booking interval of a course to its registered assistant IDs
func (r *BookingIntervalRepository) RegisteredByCourse(ctx context.Context, courseID int64) (map[int64][]int64, error) {
	query, args, err := r.db.Builder.Select("bia.booking_interval_id", "bia.user_id").
		From("booking_interval_assistants bia").
		Join("booking_intervals bi ON bi.id = bia.booking_interval_id").
		Where(sq.Eq{"bi.course_id": courseID}).
		OrderBy("bia.booking_interval_id", "bia.user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registered assistants query: %w", err)
	}

	var rows []struct {
		IntervalID int64 `db:"booking_interval_id"`
		UserID     int64 `db:"user_id"`
	}
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list registered assistants: %w", err)
	}

	out := make(map[int64][]int64)
	for _, row := range rows {
		out[row.IntervalID] = append(out[row.IntervalID], row.UserID)
	}
	return out, nil
}

// AddAssistant registers userID on the interval
func (r *BookingIntervalRepository) AddAssistant(ctx context.Context, intervalID, userID int64) error {
	query, args, err := r.db.Builder.Insert("booking_interval_assistants").
		Columns("booking_interval_id", "user_id").
		Values(intervalID, userID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build add assistant query: %w", err)
	}

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to register assistant: %w", err)
	}
	return nil
}

// RemoveAssistant unregisters userID from the interval
func (r *BookingIntervalRepository) RemoveAssistant(ctx context.Context, intervalID, userID int64) error {
	query, args, err := r.db.Builder.Delete("booking_interval_assistants").
		Where(sq.Eq{"booking_interval_id": intervalID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build remove assistant query: %w", err)
	}

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to unregister assistant: %w", err)
	}
	return nil
}

// CountReservationIntervals returns the number of sub-slots of an interval
func (r *BookingIntervalRepository) CountReservationIntervals(ctx context.Context, intervalID int64) (int, error) {
	query, args, err := r.db.Builder.Select("COUNT(*)").
		From("reservation_intervals").
		Where(sq.Eq{"booking_interval_id": intervalID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count slots query: %w", err)
	}

	var n int
	if err := r.db.Conn(ctx).GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count reservation intervals: %w", err)
	}
	return n, nil
}

// InsertReservationIntervals writes the sub-slots of an interval in one statement
func (r *BookingIntervalRepository) InsertReservationIntervals(ctx context.Context, intervalID int64, slots []booking.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	q := r.db.Builder.Insert("reservation_intervals").
		Columns("booking_interval_id", "idx", "start_minute", "end_minute")
	for _, s := range slots {
		q = q.Values(intervalID, s.Index, int(s.Start), int(s.End))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert slots query: %w", err)
	}

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert reservation intervals: %w", err)
	}
	return nil
}
