package dto

import (
	"time"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/booking"
)

// RegistrationSwitchResponse is the raw body of the availability toggle
type RegistrationSwitchResponse struct {
	RegistrationAvailable    bool `json:"registration_available"`
	AvailableAssistantsCount int  `json:"available_assistants_count"`
}

// CapacityResponse is the raw body of the capacity update
type CapacityResponse struct {
	NK                     string `json:"nk"`
	MaxAvailableAssistants int    `json:"max_available_assistants"`
}

// ReserveRequest asks for a reservation interval
type ReserveRequest struct {
	ReservationIntervalID int64 `json:"reservationIntervalId" binding:"required,gt=0"`
}

// ReservationResponse is a reservation connection with its slot
type ReservationResponse struct {
	ID                    int64             `json:"id"`
	ReservationIntervalID int64             `json:"reservationIntervalId"`
	Day                   booking.Weekday   `json:"day"`
	DayName               string            `json:"dayName"`
	Start                 booking.TimeOfDay `json:"start"`
	End                   booking.TimeOfDay `json:"end"`
	Course                CourseResponse    `json:"course"`
	Student               string            `json:"student"`
	Assistant             string            `json:"assistant"`
	CreatedAt             time.Time         `json:"createdAt"`
}

// NewReservationResponse converts a joined reservation row
func NewReservationResponse(r *models.ReservationDetail) ReservationResponse {
	return ReservationResponse{
		ID:                    r.ID,
		ReservationIntervalID: r.ReservationIntervalID,
		Day:                   r.Day,
		DayName:               r.Day.Norwegian(),
		Start:                 r.Start,
		End:                   r.End,
		Course:                CourseResponse{ID: r.CourseID, Title: r.CourseTitle, Slug: r.CourseSlug},
		Student:               r.Student.DisplayName(),
		Assistant:             r.Assistant.DisplayName(),
		CreatedAt:             r.CreatedAt,
	}
}

// NewReservationResponses converts a list of joined reservation rows
func NewReservationResponses(rows []models.ReservationDetail) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, NewReservationResponse(&rows[i]))
	}
	return out
}

// AssistantSlotView is a reservation interval seen by an assistant, with the
// reservation assigned to that assistant if there is one
type AssistantSlotView struct {
	ReservationIntervalID int64                `json:"reservationIntervalId"`
	Index                 int                  `json:"index"`
	Start                 booking.TimeOfDay    `json:"start"`
	End                   booking.TimeOfDay    `json:"end"`
	Reservation           *ReservationResponse `json:"reservation,omitempty"`
}

// AssistantIntervalView is a booking interval the assistant registered for
type AssistantIntervalView struct {
	NK      string              `json:"nk"`
	Course  CourseResponse      `json:"course"`
	Day     booking.Weekday     `json:"day"`
	DayName string              `json:"dayName"`
	Start   booking.TimeOfDay   `json:"start"`
	End     booking.TimeOfDay   `json:"end"`
	Slots   []AssistantSlotView `json:"slots"`
}
