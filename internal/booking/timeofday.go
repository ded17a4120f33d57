// Package booking holds the scheduling rules of the portal: the weekly grid of
// booking intervals, their reservation sub-slots, the content key that
// identifies an interval and the assistant assignment rule. Everything here
// is pure and independent of storage.
package booking

import (
	"errors"
	"fmt"

	"github.com/itsbooking/portal/internal/config"
)

// MinutesPerDay is the number of minutes in a day
const MinutesPerDay = 24 * 60

// ErrDayOverflow is returned when clock arithmetic passes midnight
var ErrDayOverflow = errors.New("time of day passes midnight")

// TimeOfDay is a wall clock time stored as minutes since midnight.
// 1440 is a valid end time and renders as 24:00.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour and minute
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %02d:%02d", hour, minute)
	}
	t := TimeOfDay(hour*60 + minute)
	if t > MinutesPerDay {
		return 0, fmt.Errorf("invalid time %02d:%02d: %w", hour, minute, ErrDayOverflow)
	}
	return t, nil
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" with the same rules as the
// booking configuration. Seconds are dropped.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	minutes, err := config.ParseClock(value)
	if err != nil {
		return 0, err
	}
	return TimeOfDay(minutes), nil
}

// Hour returns the hour component
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add returns t shifted by minutes. Results past 24:00 are an error.
func (t TimeOfDay) Add(minutes int) (TimeOfDay, error) {
	r := int(t) + minutes
	if r < 0 || r > MinutesPerDay {
		return 0, fmt.Errorf("%s + %d min: %w", t, minutes, ErrDayOverflow)
	}
	return TimeOfDay(r), nil
}

// String renders HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Long renders HH:MM:SS, the form used in interval keys
func (t TimeOfDay) Long() string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute())
}

// MarshalText renders the time as HH:MM in JSON
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Weekday numbers days from Monday = 0
type Weekday int

var (
	englishDays   = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	norwegianDays = [7]string{"Mandag", "Tirsdag", "Onsdag", "Torsdag", "Fredag", "Lørdag", "Søndag"}
)

// Valid reports whether d is a real weekday
func (d Weekday) Valid() bool { return d >= 0 && d < 7 }

// String returns the English day name
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return englishDays[d]
}

// Norwegian returns the Norwegian (bokmål) day name shown to users
func (d Weekday) Norwegian() string {
	if !d.Valid() {
		return ""
	}
	return norwegianDays[d]
}
