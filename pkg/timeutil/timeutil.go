// Package timeutil provides timezone utilities for the association's home
// timezone (Europe/Helsinki). Membership years, schedule math and the
// graduation cutoffs all follow local calendar time, so every date-level
// decision goes through this package.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// HomeTZ is the association's home timezone. Helsinki observes DST, so the
// IANA database entry is preferred; the fixed EET offset is only a fallback
// for stripped-down containers without tzdata.
var HomeTZ = loadHomeTZ()

func loadHomeTZ() *time.Location {
	loc, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		return time.FixedZone("EET", 2*60*60)
	}
	return loc
}

// Now returns the current time in the home timezone.
func Now() time.Time {
	return time.Now().In(HomeTZ)
}

// ToHome converts a time to the home timezone.
func ToHome(t time.Time) time.Time {
	return t.In(HomeTZ)
}

// Date creates a local-midnight time for the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, HomeTZ)
}

// StartOfDay returns 00:00:00 of the given time's local day.
func StartOfDay(t time.Time) time.Time {
	local := ToHome(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, HomeTZ)
}

// StartOfYear returns local midnight on January 1st of the given time's year.
func StartOfYear(t time.Time) time.Time {
	return Date(ToHome(t).Year(), 1, 1)
}

// CurrentYear returns the current calendar year in the home timezone.
// The category rules compare graduation years against this value.
func CurrentYear() int {
	return Now().Year()
}

// SameDay checks whether two times fall on the same local day.
func SameDay(t1, t2 time.Time) bool {
	a, b := ToHome(t1), ToHome(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetween returns the absolute number of whole local days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// FormatDateStr formats a time as a date string in the home timezone.
func FormatDateStr(t time.Time) string {
	return ToHome(t).Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) as local midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, HomeTZ)
}

// MonthIn reports whether the given time's local month is in the set.
// Used by the daily convergence trigger's eligibility window.
func MonthIn(t time.Time, months []time.Month) bool {
	m := ToHome(t).Month()
	for _, candidate := range months {
		if m == candidate {
			return true
		}
	}
	return false
}
