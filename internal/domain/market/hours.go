// Package market models London precious-metals trading hours.
package market

import (
	"time"
	_ "time/tzdata" // Europe/London must resolve on minimal images
)

const closeHour = 22

// London returns the Europe/London location, or UTC if it cannot be loaded.
func London() *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Hours decides whether the London market is open.
// The market trades around the clock on weekdays; it closes Friday 22:00
// and reopens Sunday 22:00 local time.
type Hours struct {
	loc *time.Location
}

// NewHours creates a trading-hours calendar in loc (nil means London).
func NewHours(loc *time.Location) Hours {
	if loc == nil {
		loc = London()
	}
	return Hours{loc: loc}
}

// IsOpen reports whether the market is trading at t.
func (h Hours) IsOpen(t time.Time) bool {
	local := t.In(h.loc)
	switch local.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return local.Hour() >= closeHour
	case time.Friday:
		return local.Hour() < closeHour
	default:
		return true
	}
}

// NextOpen returns the first instant at or after t when the market is open.
func (h Hours) NextOpen(t time.Time) time.Time {
	if h.IsOpen(t) {
		return t
	}
	local := t.In(h.loc)
	// Closed window always ends on Sunday at closeHour.
	days := (int(time.Sunday) - int(local.Weekday()) + 7) % 7
	sunday := local.AddDate(0, 0, days)
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), closeHour, 0, 0, 0, h.loc)
}
