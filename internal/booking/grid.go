package booking

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/itsbooking/portal/internal/config"
)

// Grid describes the weekly layout every course gets
type Grid struct {
	Open               TimeOfDay
	Close              TimeOfDay
	IntervalMinutes    int
	ReservationMinutes int
	NumDays            int
}

// DefaultGrid is 08:00-18:00 in two hour blocks split into 15 minute slots, Monday to Friday
var DefaultGrid = Grid{
	Open:               8 * 60,
	Close:              18 * 60,
	IntervalMinutes:    120,
	ReservationMinutes: 15,
	NumDays:            5,
}

// GridFromConfig converts the booking section of the configuration
func GridFromConfig(c config.BookingConfig) (Grid, error) {
	if err := c.Validate(); err != nil {
		return Grid{}, err
	}
	open, err := ParseTimeOfDay(c.OpenTime)
	if err != nil {
		return Grid{}, err
	}
	closing, err := ParseTimeOfDay(c.CloseTime)
	if err != nil {
		return Grid{}, err
	}
	return Grid{
		Open:               open,
		Close:              closing,
		IntervalMinutes:    c.IntervalMinutes,
		ReservationMinutes: c.ReservationMinutes,
		NumDays:            c.NumDays,
	}, nil
}

// Block is one row of the weekly table
type Block struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Blocks returns the booking blocks of a single day. A trailing block that
// would run past Close is not generated.
func (g Grid) Blocks() []Block {
	if g.IntervalMinutes <= 0 {
		return nil
	}
	var blocks []Block
	for start := int(g.Open); start+g.IntervalMinutes <= int(g.Close); start += g.IntervalMinutes {
		blocks = append(blocks, Block{Start: TimeOfDay(start), End: TimeOfDay(start + g.IntervalMinutes)})
	}
	return blocks
}

// Days returns the weekdays covered by the grid
func (g Grid) Days() []Weekday {
	days := make([]Weekday, 0, g.NumDays)
	for d := 0; d < g.NumDays && d < 7; d++ {
		days = append(days, Weekday(d))
	}
	return days
}

// SlotsPerInterval is the number of reservation slots in one booking interval
func (g Grid) SlotsPerInterval() int {
	if g.ReservationMinutes <= 0 {
		return 0
	}
	return g.IntervalMinutes / g.ReservationMinutes
}

// IntervalSpec is a booking interval to be created for a course
type IntervalSpec struct {
	Day   Weekday
	Start TimeOfDay
	End   TimeOfDay
	Key   string
}

// Intervals lists every booking interval of the grid for the given course code,
// ordered by day then start time.
func (g Grid) Intervals(courseCode string) []IntervalSpec {
	blocks := g.Blocks()
	specs := make([]IntervalSpec, 0, len(blocks)*g.NumDays)
	for _, day := range g.Days() {
		for _, b := range blocks {
			specs = append(specs, IntervalSpec{
				Day:   day,
				Start: b.Start,
				End:   b.End,
				Key:   IntervalKey(b.Start, day, courseCode),
			})
		}
	}
	return specs
}

// IntervalKey is the external identifier of a booking interval: the hex md5
// digest of "HH:MM:SS-<English day name>-<course code>". Equal inputs always
// give equal keys, so inserting an existing key means the interval already exists.
func IntervalKey(start TimeOfDay, day Weekday, courseCode string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%s-%s", start.Long(), day.String(), courseCode)))
	return hex.EncodeToString(sum[:])
}

// Slot is a reservation sub-interval
type Slot struct {
	Index int
	Start TimeOfDay
	End   TimeOfDay
}

// SplitInterval divides [start, end) into consecutive slots of slotMinutes.
// Arithmetic is done in minutes since midnight; a slot ending after 24:00 is
// an error and no slots are returned.
func SplitInterval(start, end TimeOfDay, slotMinutes int) ([]Slot, error) {
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %d", slotMinutes)
	}
	if end <= start {
		return nil, fmt.Errorf("interval end %s is not after start %s", end, start)
	}
	n := (int(end) - int(start)) / slotMinutes
	slots := make([]Slot, 0, n)
	for i := 0; i < n; i++ {
		s, err := start.Add(slotMinutes * i)
		if err != nil {
			return nil, err
		}
		e, err := start.Add(slotMinutes * (i + 1))
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{Index: i, Start: s, End: e})
	}
	return slots, nil
}

// Slots returns the reservation slots of a booking interval starting at start,
// using the grid's interval and reservation lengths.
func (g Grid) Slots(start TimeOfDay) ([]Slot, error) {
	end := int(start) + g.IntervalMinutes
	if end > MinutesPerDay {
		return nil, fmt.Errorf("interval starting %s lasting %d min: %w", start, g.IntervalMinutes, ErrDayOverflow)
	}
	return SplitInterval(start, TimeOfDay(end), g.ReservationMinutes)
}
