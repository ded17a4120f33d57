package dto

import (
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/booking"
)

// CourseResponse is the public view of a course
type CourseResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Code  string `json:"code"`
	Slug  string `json:"slug"`
}

// NewCourseResponse converts a course model
func NewCourseResponse(c *models.Course) CourseResponse {
	return CourseResponse{ID: c.ID, Title: c.Title, Code: c.Code, Slug: c.Slug}
}

// CreateCourseRequest is used by the admin CLI to create a course
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,max=50"`
	Code        string `json:"code" validate:"required,max=10,alphanum"`
	Coordinator string `json:"coordinator"`
}

// DayHeader is a column of the weekly table
type DayHeader struct {
	Day  booking.Weekday `json:"day"`
	Name string          `json:"name"`
}

// SlotView is a reservation interval as shown in the weekly table
type SlotView struct {
	ReservationIntervalID int64             `json:"reservationIntervalId"`
	Index                 int               `json:"index"`
	Start                 booking.TimeOfDay `json:"start"`
	End                   booking.TimeOfDay `json:"end"`
	AvailableSlots        int               `json:"availableSlots"`
	ReservedByMe          bool              `json:"reservedByMe"`
}

// IntervalCell is one booking interval in the weekly table
type IntervalCell struct {
	NK                     string            `json:"nk"`
	Day                    booking.Weekday   `json:"day"`
	DayName                string            `json:"dayName"`
	Start                  booking.TimeOfDay `json:"start"`
	End                    booking.TimeOfDay `json:"end"`
	MaxAvailableAssistants int               `json:"maxAvailableAssistants"`
	RegisteredAssistants   int               `json:"registeredAssistants"`
	RegisteredByMe         bool              `json:"registeredByMe"`
	Slots                  []SlotView        `json:"slots,omitempty"`
}

// BlockRow is a row of the weekly table: one block with a cell per day
type BlockRow struct {
	Start booking.TimeOfDay `json:"start"`
	End   booking.TimeOfDay `json:"end"`
	Cells []IntervalCell    `json:"cells"`
}

// CourseTableResponse is the weekly booking table of a course
type CourseTableResponse struct {
	Course CourseResponse `json:"course"`
	Days   []DayHeader    `json:"days"`
	Blocks []BlockRow     `json:"blocks"`
}

// NewIntervalCell converts a booking interval into a table cell
func NewIntervalCell(bi *models.BookingInterval, registered int, registeredByMe bool) IntervalCell {
	return IntervalCell{
		NK:                     bi.NK,
		Day:                    bi.Day,
		DayName:                bi.Day.Norwegian(),
		Start:                  bi.Start,
		End:                    bi.End,
		MaxAvailableAssistants: bi.MaxAvailableAssistants,
		RegisteredAssistants:   registered,
		RegisteredByMe:         registeredByMe,
	}
}

// LandingResponse is the course start page. Which sections are filled depends on the role.
type LandingResponse struct {
	Role                models.Role            `json:"role"`
	Course              CourseResponse         `json:"course"`
	Reservations        []ReservationResponse  `json:"reservations,omitempty"`
	Exercises           []ExerciseResponse     `json:"exercises,omitempty"`
	Announcements       []AnnouncementResponse `json:"announcements,omitempty"`
	BookingIntervals    []IntervalCell         `json:"bookingIntervals,omitempty"`
	UnreviewedExercises []ExerciseResponse     `json:"unreviewedExercises,omitempty"`
	Overview            *booking.Overview      `json:"overview,omitempty"`
}

// HomeResponse lists the courses of the current user
type HomeResponse struct {
	Courses          []CourseResponse `json:"courses"`
	SupervisedCourse *CourseResponse  `json:"supervisedCourse,omitempty"`
}
