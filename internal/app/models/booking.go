package models

import (
	"time"

	"github.com/itsbooking/portal/internal/booking"
)

// BookingInterval is a block on a weekday that assistants register for
type BookingInterval struct {
	ID                     int64             `db:"id"`
	CourseID               int64             `db:"course_id"`
	Day                    booking.Weekday   `db:"day"`
	Start                  booking.TimeOfDay `db:"start_minute"`
	End                    booking.TimeOfDay `db:"end_minute"`
	MaxAvailableAssistants int               `db:"max_available_assistants"`
	NK                     string            `db:"nk"`
}

// ReservationInterval is a sub-slot of a booking interval
type ReservationInterval struct {
	ID                int64             `db:"id"`
	BookingIntervalID int64             `db:"booking_interval_id"`
	Index             int               `db:"idx"`
	Start             booking.TimeOfDay `db:"start_minute"`
	End               booking.TimeOfDay `db:"end_minute"`
}

// ReservationConnection binds a student and an assistant to a reservation interval
type ReservationConnection struct {
	ID                    int64     `db:"id"`
	ReservationIntervalID int64     `db:"reservation_interval_id"`
	StudentID             int64     `db:"student_id"`
	AssistantID           int64     `db:"assistant_id"`
	CreatedAt             time.Time `db:"created_at"`
}

// ReservationDetail is a connection joined with its slot, course and people
type ReservationDetail struct {
	ID                    int64             `db:"id"`
	ReservationIntervalID int64             `db:"reservation_interval_id"`
	StudentID             int64             `db:"student_id"`
	AssistantID           int64             `db:"assistant_id"`
	CreatedAt             time.Time         `db:"created_at"`
	Day                   booking.Weekday   `db:"day"`
	Start                 booking.TimeOfDay `db:"start_minute"`
	End                   booking.TimeOfDay `db:"end_minute"`
	CourseID              int64             `db:"course_id"`
	CourseTitle           string            `db:"course_title"`
	CourseSlug            string            `db:"course_slug"`
	Student               PersonName        `db:"student"`
	Assistant             PersonName        `db:"assistant"`
}
