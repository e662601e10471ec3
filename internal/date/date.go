// Package date is a calendar date with no time-of-day or zone component.
package date

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Layout is the ISO 8601 calendar date format used on the wire and in storage.
const Layout = "2006-01-02"

// Dates outside MinYear..MaxYear have no four-digit Layout form.
const (
	MinYear = 1
	MaxYear = 9999
)

// Date is a year-month-day triple. The zero value is "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Of returns the calendar date of t in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// New builds a Date, normalizing overflow the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return Of(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil || !Of(t).InRange() {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return Of(t), nil
}

// MustParse is for tests and constants.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// InRange reports whether d can be written with Layout and read back.
func (d Date) InRange() bool {
	return d.Year >= MinYear && d.Year <= MaxYear
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(Layout)
}

func (d Date) AddDays(n int) Date {
	return Of(d.Time().AddDate(0, 0, n))
}

// DaysSince returns the number of whole days from other to d.
func (d Date) DaysSince(other Date) int {
	return int((d.Time().Unix() - other.Time().Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func (d Date) Compare(other Date) int {
	return d.Time().Compare(other.Time())
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool  { return d == other }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores dates as TEXT so that lexical order matches calendar order.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = Of(v.UTC())
		return nil
	default:
		return fmt.Errorf("date scan: unsupported type %T", src)
	}
}
