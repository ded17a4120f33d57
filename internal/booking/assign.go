package booking

import (
	"errors"
	"math"
	"sort"
)

// ErrNoAssistantAvailable means an assignment was attempted although every
// registered assistant is already bound to the slot. Callers check
// AvailableSlots first, so hitting this is a bug.
var ErrNoAssistantAvailable = errors.New("no assistant available for reservation interval")

// AvailableSlots is the number of further reservations a slot can take
func AvailableSlots(registeredAssistants, connections int) int {
	return registeredAssistants - connections
}

// PickAssistant returns the registered assistant with the lowest id who is not
// already bound to the slot.
func PickAssistant(registered, bound []int64) (int64, error) {
	taken := make(map[int64]struct{}, len(bound))
	for _, id := range bound {
		taken[id] = struct{}{}
	}

	candidates := append([]int64(nil), registered...)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for _, id := range candidates {
		if _, ok := taken[id]; !ok {
			return id, nil
		}
	}
	return 0, ErrNoAssistantAvailable
}

// Percent returns round(part/whole*100), or 0 when whole is 0
func Percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// IntervalLoad is the per booking interval input of an Overview
type IntervalLoad struct {
	MaxAssistants int
	Assistants    []int64
	Slots         int
	Connections   int
}

// Overview is the coordinator's summary of a course
type Overview struct {
	RegisteredAssistants int     `json:"registeredAssistants"`
	CourseAssistants     int     `json:"courseAssistants"`
	BookedSlots          int     `json:"bookedSlots"`
	AvailableSlots       int     `json:"availableSlots"`
	FullIntervals        int     `json:"fullIntervals"`
	TotalIntervals       int     `json:"totalIntervals"`
	TotalOpeningHours    float64 `json:"totalOpeningHours"`
	AssistantPercent     int     `json:"assistantPercent"`
	StudentPercent       int     `json:"studentPercent"`
	FullIntervalPercent  int     `json:"fullIntervalPercent"`
}

// Summarize computes the coordinator overview for a course.
// An interval counts as full when its registered count equals its capacity,
// and as open when its capacity is positive.
func Summarize(loads []IntervalLoad, courseAssistants, intervalMinutes int) Overview {
	distinct := make(map[int64]struct{})
	o := Overview{CourseAssistants: courseAssistants, TotalIntervals: len(loads)}
	open := 0
	for _, l := range loads {
		for _, id := range l.Assistants {
			distinct[id] = struct{}{}
		}
		o.AvailableSlots += l.Slots * len(l.Assistants)
		o.BookedSlots += l.Connections
		if l.MaxAssistants == len(l.Assistants) {
			o.FullIntervals++
		}
		if l.MaxAssistants > 0 {
			open++
		}
	}
	o.RegisteredAssistants = len(distinct)
	o.TotalOpeningHours = float64(open*intervalMinutes) / 60
	o.AssistantPercent = Percent(o.RegisteredAssistants, o.CourseAssistants)
	o.StudentPercent = Percent(o.BookedSlots, o.AvailableSlots)
	o.FullIntervalPercent = Percent(o.FullIntervals, o.TotalIntervals)
	return o
}

// DisplayName renders a user the way the portal shows people:
// "first last", else first name, else username.
func DisplayName(firstName, lastName, username string) string {
	switch {
	case firstName != "" && lastName != "":
		return firstName + " " + lastName
	case firstName != "":
		return firstName
	default:
		return username
	}
}
