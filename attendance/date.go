package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil calendar date (no clock, no zone)
// =============================================================================

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Date is a calendar day. Internally it is always midnight UTC so that
// arithmetic never drifts across DST changes; use At/In to anchor it to a
// location.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &InvalidArgumentError{Field: "date", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return DateOf(t), nil
}

// MustParseDate is for tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool              { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int              { return d.t.Year() }
func (d Date) Month() time.Month      { return d.t.Month() }
func (d Date) Day() int               { return d.t.Day() }
func (d Date) Weekday() time.Weekday  { return d.t.Weekday() }
func (d Date) CalendarMonth() Month   { return Month{Year: d.Year(), Month: d.Month()} }
func (d Date) String() string         { return d.t.Format(DateLayout) }

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// At anchors a clock time to d in loc.
func (d Date) At(loc *time.Location, c ClockTime) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, c.Minutes(), 0, 0, loc)
}

// StartOfWeek returns the Monday on or before d.
func (d Date) StartOfWeek() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// EndOfWeek returns the Sunday on or after d.
func (d Date) EndOfWeek() Date {
	return d.StartOfWeek().AddDays(6)
}

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// MONTH
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, &InvalidArgumentError{Field: "month", Value: s, Reason: "expected YYYY-MM"}
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) First() Date { return NewDate(m.Year, m.Month, 1) }
func (m Month) Last() Date  { return m.Next().First().AddDays(-1) }
func (m Month) Next() Month { return DateOf(time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)).CalendarMonth() }
func (m Month) Prev() Month { return DateOf(time.Date(m.Year, m.Month-1, 1, 0, 0, 0, 0, time.UTC)).CalendarMonth() }
func (m Month) IsZero() bool { return m.Year == 0 }

func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Range returns the in-month days.
func (m Month) Range() DateRange {
	return DateRange{From: m.First(), To: m.Last()}
}

// WeekSpan widens the month to the Monday..Sunday weeks touching it. The
// extra leading and trailing days are the "prev" and "next" partial weeks.
func (m Month) WeekSpan() DateRange {
	return DateRange{From: m.First().StartOfWeek(), To: m.Last().EndOfWeek()}
}
