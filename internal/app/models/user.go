package models

import (
	"time"

	"github.com/itsbooking/portal/internal/booking"
)

// User defines the user model based on the 'users' table
type User struct {
	ID         int64     `json:"id" db:"id"`
	Username   string    `json:"username" db:"username"`
	Email      string    `json:"email" db:"email"`
	Password   string    `json:"-" db:"password"`
	FirstName  string    `json:"firstName" db:"first_name"`
	LastName   string    `json:"lastName" db:"last_name"`
	Role       Role      `json:"role" db:"role"`
	AvatarPath *string   `json:"-" db:"avatar_path"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// DisplayName is the name shown to other users
func (u *User) DisplayName() string {
	return booking.DisplayName(u.FirstName, u.LastName, u.Username)
}

// PersonName holds the columns needed to render a display name from a join
type PersonName struct {
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

// DisplayName renders the name the same way as User.DisplayName
func (p PersonName) DisplayName() string {
	return booking.DisplayName(p.FirstName, p.LastName, p.Username)
}
