package waste

import (
	"fmt"
	"time"
)

// dateLayout is the canonical form of a calendar date.
const dateLayout = "2006-01-02"

// Date is a pure calendar date, timezone-naive. Collection schedules operate
// on whatever the local wall clock reports; no timezone conversion is applied
// anywhere in the domain.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a canonical YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf truncates an instant to the calendar date it falls on.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String renders the canonical YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns the date at local midnight.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.Local)
}

// Weekday returns the day of week (Sunday=0 .. Saturday=6).
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// WeekOfMonth returns the 1-based ordinal of which occurrence of this
// weekday falls within the month: day 1 always belongs to week 1, and the
// week number increments every 7 days from the 1st.
//
// This is the sole implementation of week-of-month arithmetic in the
// repository. Every caller, interactive or background, must go through it.
func (d Date) WeekOfMonth() int {
	firstWeekday := int(time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.Local).Weekday())
	return (d.Day-1+firstWeekday)/7 + 1
}

// AddDays returns the date n calendar days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Compare orders two dates chronologically: -1 if d is earlier than other,
// 0 if equal, 1 if later.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
