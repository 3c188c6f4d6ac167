package birthday

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// MinPlausibleYear is the earliest birth year accepted for age calculations.
const MinPlausibleYear = 1900

// Date is a calendar birthdate. Year 0 means the birth year is unknown;
// month and day alone drive recurrence.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ErrUnparseableDate is returned by ParseDate for input that is not a valid
// calendar date in one of the accepted formats.
var ErrUnparseableDate = errors.New("unparseable date, expected YYYY-MM-DD or MM-DD")

// ParseDate parses "YYYY-MM-DD" or, for an unknown birth year, "MM-DD".
// Impossible dates (e.g. 02-30) are rejected. Feb 29 is accepted regardless
// of year; non-leap reference years map it to Feb 28 during evaluation.
func ParseDate(input string) (Date, error) {
	if t, err := time.Parse("2006-01-02", input); err == nil {
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}
	// Strict parsing rejects Feb 29 in non-leap birth years (a real thing on
	// some civil registries), so accept that shape explicitly.
	if len(input) == 10 && strings.HasSuffix(input, "-02-29") {
		if year, err := strconv.Atoi(input[:4]); err == nil && year > 0 {
			return Date{Year: year, Month: time.February, Day: 29}, nil
		}
	}
	// "01-02" parses with year 0, which is a leap year, so 02-29 stays valid.
	if t, err := time.Parse("01-02", input); err == nil {
		return Date{Month: t.Month(), Day: t.Day()}, nil
	}
	return Date{}, ErrUnparseableDate
}

// YearKnown reports whether the birth year was recorded.
func (d Date) YearKnown() bool { return d.Year != 0 }

// String renders the date back in its parse format.
func (d Date) String() string {
	if d.YearKnown() {
		return civil(d.Year, d.Month, d.Day).Format("2006-01-02")
	}
	return civil(2000, d.Month, d.Day).Format("01-02")
}

// PlausibleYear reports whether year is usable for age calculation:
// not before MinPlausibleYear and not after the reference year.
func PlausibleYear(year int, ref time.Time) bool {
	return year >= MinPlausibleYear && year <= ref.Year()
}

// civil builds a wall-clock-free date in UTC so day arithmetic never crosses
// DST transitions.
func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// occurrenceIn returns the occurrence of d within the given year.
// Feb 29 birthdates fall on Feb 28 in non-leap years.
func occurrenceIn(year int, d Date) time.Time {
	day := d.Day
	if d.Month == time.February && d.Day == 29 && !isLeap(year) {
		day = 28
	}
	return civil(year, d.Month, day)
}

// NextOccurrence returns the next calendar date >= ref whose month/day match
// the birthdate, in ref's location at midnight. The caller is expected to
// pass ref already shifted into the owner's timezone.
func NextOccurrence(d Date, ref time.Time) time.Time {
	y, m, day := ref.Date()
	refDate := civil(y, m, day)
	occ := occurrenceIn(y, d)
	if occ.Before(refDate) {
		occ = occurrenceIn(y+1, d)
	}
	return time.Date(occ.Year(), occ.Month(), occ.Day(), 0, 0, 0, 0, ref.Location())
}

// IsToday reports whether the birthday occurs on ref's calendar date.
func IsToday(d Date, ref time.Time) bool {
	y, m, day := ref.Date()
	occ := occurrenceIn(y, d)
	return occ.Month() == m && occ.Day() == day
}

// DaysUntil returns the number of whole days from ref's date to the next
// occurrence. Zero means the birthday is today.
func DaysUntil(d Date, ref time.Time) int {
	y, m, day := ref.Date()
	refDate := civil(y, m, day)
	occ := occurrenceIn(y, d)
	if occ.Before(refDate) {
		occ = occurrenceIn(y+1, d)
	}
	return int(occ.Sub(refDate) / (24 * time.Hour))
}

// Age returns the age turning on (or already turned by) ref's date.
// ok is false when the birth year is unknown or implausible.
func Age(d Date, ref time.Time) (age int, ok bool) {
	if !d.YearKnown() || !PlausibleYear(d.Year, ref) {
		return 0, false
	}
	y, m, day := ref.Date()
	age = y - d.Year
	if civil(y, m, day).Before(occurrenceIn(y, d)) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
