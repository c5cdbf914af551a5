// Package recurrence encodes weekly repeat schedules as a 7-bit weekday mask.
//
// The bit layout is fixed and shared with stored data: Mon=1, Tue=2, Wed=4,
// Thu=8, Fri=16, Sat=32, Sun=64. A mask of 0 means the chore does not repeat.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/roomies/internal/apperr"
)

// Weekday is a single bit of the repeat mask.
type Weekday uint8

const (
	Monday Weekday = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const (
	// All is the mask with every weekday set.
	All = 127
	// Weekdays is Monday through Friday.
	Weekdays = int(Monday | Tuesday | Wednesday | Thursday | Friday)
	// Weekend is Saturday and Sunday.
	Weekend = int(Saturday | Sunday)
)

// Week lists the weekdays in canonical Monday-first order.
var Week = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = map[Weekday]string{
	Monday:    "Mon",
	Tuesday:   "Tue",
	Wednesday: "Wed",
	Thursday:  "Thu",
	Friday:    "Fri",
	Saturday:  "Sat",
	Sunday:    "Sun",
}

func (d Weekday) Valid() bool {
	_, ok := weekdayNames[d]
	return ok
}

func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Weekday(%d)", uint8(d))
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseWeekday accepts short names ("Mon"), full names ("monday") and RRULE
// abbreviations ("MO"), case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, d := range Week {
		short := strings.ToLower(d.String())
		if key == short || key == short[:2] || key == strings.ToLower(d.Time().String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// FromTime maps a time.Weekday onto its mask bit.
func FromTime(wd time.Weekday) Weekday {
	if wd == time.Sunday {
		return Sunday
	}
	return Week[int(wd)-1]
}

// Time maps the bit back onto time.Weekday.
func (d Weekday) Time() time.Weekday {
	for i, w := range Week {
		if w == d {
			return time.Weekday((i + 1) % 7)
		}
	}
	return -1
}

// Encode ORs the days into a mask. Duplicates are harmless and values that
// are not a single weekday bit are ignored.
func Encode(days []Weekday) int {
	mask := 0
	for _, d := range days {
		if d.Valid() {
			mask |= int(d)
		}
	}
	return mask
}

// Validate rejects masks outside [0, 127].
func Validate(mask int) error {
	if mask < 0 || mask > All {
		return apperr.Invalid("repeat_mask", fmt.Sprintf("must be between 0 and %d, got %d", All, mask))
	}
	return nil
}

// Decode expands a mask into its weekdays in Monday-first order. A zero mask
// yields an empty, non-nil slice.
func Decode(mask int) ([]Weekday, error) {
	if err := Validate(mask); err != nil {
		return nil, err
	}
	days := make([]Weekday, 0, 7)
	for _, d := range Week {
		if mask&int(d) != 0 {
			days = append(days, d)
		}
	}
	return days, nil
}

// Describe returns a short human-readable summary of a mask.
func Describe(mask int) string {
	switch mask {
	case 0:
		return "Does not repeat"
	case All:
		return "Repeats daily"
	case Weekdays:
		return "Repeats on weekdays"
	case Weekend:
		return "Repeats on weekends"
	}
	days, err := Decode(mask)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String())
	}
	return "Repeats on " + strings.Join(names, ", ")
}

// Next returns the first calendar day strictly after the day of `after` that
// falls on a weekday in mask. It reports false for a zero or invalid mask.
func Next(mask int, after time.Time) (time.Time, bool) {
	if mask <= 0 || mask > All {
		return time.Time{}, false
	}
	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, after.Location())
	for i := 1; i <= 7; i++ {
		d := day.AddDate(0, 0, i)
		if mask&int(FromTime(d.Weekday())) != 0 {
			return d, true
		}
	}
	return time.Time{}, false
}
