package models

import "time"

// Course is the root aggregate of the booking data
type Course struct {
	ID            int64     `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Code          string    `json:"code" db:"code"`
	Slug          string    `json:"slug" db:"slug"`
	CoordinatorID *int64    `json:"coordinatorId,omitempty" db:"coordinator_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// IsCoordinator reports whether userID supervises the course
func (c *Course) IsCoordinator(userID int64) bool {
	return c.CoordinatorID != nil && *c.CoordinatorID == userID
}
