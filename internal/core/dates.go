package core

import (
	"fmt"
	"time"
)

// Date is a calendar day with no time-of-day component. Dates are parsed at
// local midnight so that ISO round-trips never shift by a day.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)}
}

// ParseDay parses a canonical YYYY-MM-DD string.
func ParseDay(s string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// Today truncates t to its calendar day.
func Today(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ISODay returns the canonical YYYY-MM-DD form.
func (d Date) ISODay() string {
	return d.Format("2006-01-02")
}

// ISOMonth returns the canonical YYYY-MM form.
func (d Date) ISOMonth() string {
	return d.Format("2006-01")
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// After reports whether d falls on a later day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// AddMonthsClamped adds n calendar months, clamping the day-of-month to the
// last valid day of the target month (Jan 31 + 1 month is Feb 28 or 29, not
// Mar 2 as time.AddDate would produce).
func (d Date) AddMonthsClamped(n int) Date {
	year, month, day := d.Year(), d.Month(), d.Day()
	month += n
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// MonthsBetween returns the whole-month difference between a and b. Partial
// months count as zero: only the year and month fields participate.
func MonthsBetween(a, b Date) int {
	return (b.Year()-a.Year())*12 + (b.Month() - a.Month())
}

func daysInMonth(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.Local).Day()
}
