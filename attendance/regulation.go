package attendance

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CLOCK TIME - Local wall-clock time of day
// =============================================================================

// ClockTime is a time of day as minutes after midnight.
type ClockTime int

// ParseClockTime accepts "15:04" and "15:04:05". Seconds are dropped.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
	}
	if err != nil {
		return 0, &InvalidArgumentError{Field: "clock time", Value: s, Reason: "expected HH:MM"}
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func MustParseClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Minutes() int { return int(c) }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// =============================================================================
// WEEKDAY CODES
// =============================================================================

var weekdayCodes = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts three-letter codes and full English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayCodes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, &InvalidArgumentError{Field: "weekday", Value: s, Reason: "expected mon..sun"}
	}
	return wd, nil
}

// WeekdayCode is the inverse of ParseWeekday (three-letter, lower case).
func WeekdayCode(wd time.Weekday) string {
	return strings.ToLower(wd.String()[:3])
}

// =============================================================================
// WORK REGULATION - Contractual working pattern
// =============================================================================

// WorkRegulation is immutable reference data owned by the organisation and
// referenced by contracts.
type WorkRegulation struct {
	ID                string
	Name              string
	ScheduledWorkDays []time.Weekday
	LegalHoliday      *time.Weekday // nil = no legal holiday weekday
	StartTime         ClockTime
	EndTime           ClockTime
	BreakMinutes      int
}

// ScheduledWorkMinutes is (end - start) - break, never negative.
func (r WorkRegulation) ScheduledWorkMinutes() int {
	return max(0, r.EndTime.Minutes()-r.StartTime.Minutes()-r.BreakMinutes)
}

func (r WorkRegulation) IsScheduledWorkDay(wd time.Weekday) bool {
	for _, d := range r.ScheduledWorkDays {
		if d == wd {
			return true
		}
	}
	return false
}

func (r WorkRegulation) IsLegalHoliday(wd time.Weekday) bool {
	return r.LegalHoliday != nil && *r.LegalHoliday == wd
}

// Validate checks the regulation is internally consistent.
func (r WorkRegulation) Validate() error {
	if r.ID == "" {
		return &InvalidArgumentError{Field: "regulation.id", Reason: "required"}
	}
	if r.BreakMinutes < 0 {
		return &InvalidArgumentError{Field: "regulation.break_minutes", Value: r.ID, Reason: "must be >= 0"}
	}
	if r.StartTime < 0 || r.StartTime >= 24*60 || r.EndTime < 0 || r.EndTime >= 24*60 {
		return &InvalidArgumentError{Field: "regulation.hours", Value: r.ID, Reason: "clock times must be within 00:00-23:59"}
	}
	if r.LegalHoliday != nil && r.IsScheduledWorkDay(*r.LegalHoliday) {
		return &InvalidArgumentError{
			Field:  "regulation.legal_holiday",
			Value:  r.ID,
			Reason: fmt.Sprintf("%s is also a scheduled work day", r.LegalHoliday),
		}
	}
	return nil
}

// =============================================================================
// RULES - The labour-law regime parameters
// =============================================================================

// Rules holds the statutory thresholds and the night window. There is one
// regime; the values are configurable but not per-employee.
type Rules struct {
	DailyStatutoryMinutes  int
	WeeklyStatutoryMinutes int
	NightStart             ClockTime
	NightEnd               ClockTime
}

// DefaultRules: 8h/day, 40h/week, night 22:00-05:00.
func DefaultRules() Rules {
	return Rules{
		DailyStatutoryMinutes:  8 * 60,
		WeeklyStatutoryMinutes: 40 * 60,
		NightStart:             22 * 60,
		NightEnd:               5 * 60,
	}
}
