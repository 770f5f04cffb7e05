/*
Package attendance computes labour-time breakdowns for shift workers.

PURPOSE:
  Given the contract (and embedded work regulation) in effect for an
  employee and the raw clock intervals recorded against their shifts, the
  engine classifies every calendar day and splits worked time into
  overlapping buckets: scheduled, non-scheduled, statutory overtime,
  non-statutory overtime, holiday and night.

PIPELINE (leaf to root):
  1. ContractIndex   - which contract applies on a date (contract.go)
  2. DayBuilder      - one DailyRecord per date (daily.go)
  3. Reallocator     - redistributes holiday overtime within an ISO week
                       against the 40h/week threshold (weekly.go)
  4. Aggregate       - read-only monthly roll-up (monthly.go)
  5. Engine          - batch orchestration, idempotent delete-then-rebuild
                       (engine.go)

KEY CONCEPTS IN THIS FILE (types.go):
  - DayType: scheduled / non-statutory-holiday / legal-holiday / undefined
  - WorkInterval: a raw clock-in/clock-out pair for a shift date
  - DailyRecord: the computed snapshot for one employee and date
  - MonthlyRecord: sums over the in-month daily records

All minute values are whole minutes and never negative.

SEE ALSO:
  - store.go: persistence interfaces the engine consumes
  - errors.go: error taxonomy
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

// =============================================================================
// DAY TYPE
// =============================================================================

type DayType string

const (
	DayScheduled           DayType = "scheduled"
	DayNonStatutoryHoliday DayType = "non-statutory-holiday"
	DayLegalHoliday        DayType = "legal-holiday"
	DayUndefined           DayType = "undefined"
)

// IsHoliday is true for both holiday kinds.
func (t DayType) IsHoliday() bool {
	return t == DayNonStatutoryHoliday || t == DayLegalHoliday
}

// ParseDayType is used by stores reading persisted records.
func ParseDayType(s string) DayType {
	switch DayType(s) {
	case DayScheduled, DayNonStatutoryHoliday, DayLegalHoliday:
		return DayType(s)
	default:
		return DayUndefined
	}
}

// =============================================================================
// WORK INTERVAL - Raw clock record
// =============================================================================

// WorkInterval is one clock-in/clock-out pair recorded against the shift's
// nominal date. EndAtNextDay anchors EndTime to Date+1.
type WorkInterval struct {
	ID           string
	EmployeeID   EmployeeID
	Date         Date
	StartTime    ClockTime
	EndTime      ClockTime
	EndAtNextDay bool
	BreakMinutes int
}

// Validate rejects intervals that end before they start.
func (w WorkInterval) Validate() error {
	switch {
	case w.ID == "":
		return &InvalidArgumentError{Field: "interval.id", Reason: "required"}
	case w.EmployeeID == "":
		return &InvalidArgumentError{Field: "interval.employee_id", Value: w.ID, Reason: "required"}
	case w.Date.IsZero():
		return &InvalidArgumentError{Field: "interval.date", Value: w.ID, Reason: "required"}
	case w.BreakMinutes < 0:
		return &InvalidArgumentError{Field: "interval.break_minutes", Value: w.ID, Reason: "must be >= 0"}
	case !w.EndAtNextDay && w.EndTime < w.StartTime:
		return &InvalidArgumentError{Field: "interval.end_time", Value: w.EndTime.String(), Reason: "before start time; set end_at_next_day"}
	}
	return nil
}

// Span returns the absolute start and end of the interval in loc.
func (w WorkInterval) Span(loc *time.Location) (time.Time, time.Time) {
	start := w.Date.At(loc, w.StartTime)
	endDate := w.Date
	if w.EndAtNextDay {
		endDate = endDate.AddDays(1)
	}
	return start, endDate.At(loc, w.EndTime)
}

// =============================================================================
// DAILY RECORD
// =============================================================================

// DailyRecord is keyed by (EmployeeID, Date). Every derived field is computed
// once by the DayBuilder; only the Reallocator patches the two overtime
// fields on holiday records afterwards.
type DailyRecord struct {
	EmployeeID  EmployeeID
	Date        Date
	ContractIDs []string
	IntervalIDs []string

	DayType               DayType
	IsNextDayLegalHoliday bool

	StartTime    *time.Time
	EndTime      *time.Time
	BreakMinutes int

	TotalWorkingMinutes      int
	CurrentDayWorkingMinutes int
	NextDayWorkingMinutes    int

	ScheduledWorkMinutes        int
	ScheduledWorkingMinutes     int
	NonScheduledWorkingMinutes  int
	StatutoryOvertimeMinutes    int
	NonStatutoryOvertimeMinutes int
	HolidayWorkingMinutes       int
	NighttimeWorkingMinutes     int
}

// Key is the natural key "employee:date".
func (r DailyRecord) Key() string {
	return string(r.EmployeeID) + ":" + r.Date.String()
}

// Basis is the figure used for entitlement math: only the current-day part
// counts when tomorrow is a legal holiday.
func (r DailyRecord) Basis() int {
	if r.IsNextDayLegalHoliday {
		return r.CurrentDayWorkingMinutes
	}
	return r.TotalWorkingMinutes
}

func (r DailyRecord) Worked() bool { return r.TotalWorkingMinutes > 0 }

// OvertimePatch carries the only two fields the Reallocator writes back.
type OvertimePatch struct {
	EmployeeID                  EmployeeID
	Date                        Date
	StatutoryOvertimeMinutes    int
	NonStatutoryOvertimeMinutes int
}

// =============================================================================
// MONTHLY RECORD
// =============================================================================

// MonthlyRecord is keyed by (EmployeeID, Month). Prev and Next hold the
// partial weeks around the month; totals are over Records only.
type MonthlyRecord struct {
	EmployeeID EmployeeID
	Month      Month

	Records []DailyRecord
	Prev    []DailyRecord
	Next    []DailyRecord

	BreakMinutes                int
	TotalWorkingMinutes         int
	CurrentDayWorkingMinutes    int
	NextDayWorkingMinutes       int
	ScheduledWorkMinutes        int
	ScheduledWorkingMinutes     int
	NonScheduledWorkingMinutes  int
	StatutoryOvertimeMinutes    int
	NonStatutoryOvertimeMinutes int
	HolidayWorkingMinutes       int
	NighttimeWorkingMinutes     int

	TotalWorkingDays             int
	TotalScheduledWorkDays       int
	TotalScheduledWorkingDays    int
	TotalNonScheduledWorkingDays int
	HolidayWorkingDays           int
}

func (m MonthlyRecord) Key() string {
	return string(m.EmployeeID) + ":" + m.Month.String()
}

// =============================================================================
// HOURS - Display conversion
// =============================================================================

var sixty = decimal.NewFromInt(60)

// Hours converts whole minutes to hours rounded to two decimals.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}
