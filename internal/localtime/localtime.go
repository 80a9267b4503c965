// Package localtime converts UTC instants into user-local display strings.
package localtime

import (
	"fmt"
	"time"
)

// Clock renders t in the given IANA zone as a short 12-hour clock string,
// e.g. "3:04 PM". An unknown zone is a configuration error and is returned
// to the caller rather than silently falling back to UTC.
func Clock(t time.Time, zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return t.In(loc).Format("3:04 PM"), nil
}

// CalendarDate renders t in the given IANA zone as a long calendar-date
// string with an ordinal day suffix, e.g. "Monday - January 2nd, 2006".
func CalendarDate(t time.Time, zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("load timezone %q: %w", zone, err)
	}
	local := t.In(loc)
	return fmt.Sprintf("%s - %s %d%s, %d",
		local.Weekday(), local.Month(), local.Day(), ordinalSuffix(local.Day()), local.Year()), nil
}

// SameCalendarDay reports whether a and b fall on the same local calendar
// date in the given zone.
func SameCalendarDay(a, b time.Time, zone string) (bool, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd, nil
}

func ordinalSuffix(day int) string {
	// 11th, 12th and 13th break the last-digit rule.
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
