package recurrence

import (
	"fmt"
	"strings"
)

var dayAbbrev = map[Weekday]string{
	Monday:    "MO",
	Tuesday:   "TU",
	Wednesday: "WE",
	Thursday:  "TH",
	Friday:    "FR",
	Saturday:  "SA",
	Sunday:    "SU",
}

// RRule renders a mask as an iCalendar recurrence rule, e.g.
// "FREQ=WEEKLY;BYDAY=MO,WE". A full week renders as "FREQ=DAILY" and a zero
// mask as the empty string.
func RRule(mask int) (string, error) {
	days, err := Decode(mask)
	if err != nil {
		return "", err
	}
	switch mask {
	case 0:
		return "", nil
	case All:
		return "FREQ=DAILY", nil
	}
	abbrevs := make([]string, 0, len(days))
	for _, d := range days {
		abbrevs = append(abbrevs, dayAbbrev[d])
	}
	return "FREQ=WEEKLY;BYDAY=" + strings.Join(abbrevs, ","), nil
}

// ParseRRule converts the subset of RRULE that a weekday mask can express
// (FREQ=DAILY, or FREQ=WEEKLY with BYDAY) back to a mask.
func ParseRRule(rule string) (int, error) {
	rule = strings.TrimSpace(strings.TrimPrefix(rule, "RRULE:"))
	if rule == "" {
		return 0, nil
	}

	var freq string
	var byDay []string
	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return 0, fmt.Errorf("invalid rule part: %q", part)
		}
		switch kv[0] {
		case "FREQ":
			freq = kv[1]
		case "BYDAY":
			byDay = strings.Split(kv[1], ",")
		case "INTERVAL":
			if kv[1] != "1" {
				return 0, fmt.Errorf("unsupported interval: %q", kv[1])
			}
		default:
			return 0, fmt.Errorf("unsupported rule key: %q", kv[0])
		}
	}

	switch freq {
	case "DAILY":
		if len(byDay) > 0 {
			return 0, fmt.Errorf("BYDAY is not supported with FREQ=DAILY")
		}
		return All, nil
	case "WEEKLY":
		if len(byDay) == 0 {
			return 0, fmt.Errorf("FREQ=WEEKLY requires BYDAY")
		}
		days := make([]Weekday, 0, len(byDay))
		for _, s := range byDay {
			d, err := ParseWeekday(s)
			if err != nil {
				return 0, err
			}
			days = append(days, d)
		}
		return Encode(days), nil
	case "":
		return 0, fmt.Errorf("FREQ is required")
	}
	return 0, fmt.Errorf("unsupported frequency: %q", freq)
}
