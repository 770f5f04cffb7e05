package attendance

import (
	"time"
)

// =============================================================================
// DAY BUILDER - One DailyRecord from a date, its contracts and intervals
// =============================================================================

// DayBuilder is pure: the same input always yields the same record.
type DayBuilder struct {
	Rules    Rules
	Location *time.Location
}

// DayInput is everything the builder needs for one date.
type DayInput struct {
	EmployeeID EmployeeID
	Date       Date

	// Contract applies on Date, NextDayContract on Date+1. Either may be nil
	// and they may differ.
	Contract        *EmployeeContract
	NextDayContract *EmployeeContract

	// Intervals whose nominal date is Date.
	Intervals []WorkInterval
}

// Build computes the record. Holiday overtime is left at zero here; the
// Reallocator assigns it once the whole week is known.
func (b DayBuilder) Build(in DayInput) DailyRecord {
	rec := DailyRecord{
		EmployeeID:            in.EmployeeID,
		Date:                  in.Date,
		ContractIDs:           []string{},
		IntervalIDs:           []string{},
		DayType:               ClassifyDay(in.Contract, in.Date),
		IsNextDayLegalHoliday: ClassifyDay(in.NextDayContract, in.Date.AddDays(1)) == DayLegalHoliday,
	}

	if in.Contract != nil {
		rec.ContractIDs = append(rec.ContractIDs, in.Contract.ID)
	}
	if in.NextDayContract != nil && (in.Contract == nil || in.NextDayContract.ID != in.Contract.ID) {
		rec.ContractIDs = append(rec.ContractIDs, in.NextDayContract.ID)
	}

	b.applyTimes(&rec, in.Intervals)
	b.applyEntitlements(&rec, in.Contract)
	return rec
}

func (b DayBuilder) location() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

// applyTimes fills the span, break, midnight split and night minutes.
func (b DayBuilder) applyTimes(rec *DailyRecord, intervals []WorkInterval) {
	if len(intervals) == 0 {
		return
	}
	loc := b.location()

	var start, end time.Time
	for i, w := range intervals {
		s, e := w.Span(loc)
		if i == 0 || s.Before(start) {
			start = s
		}
		if i == 0 || e.After(end) {
			end = e
		}
		rec.BreakMinutes += max(0, w.BreakMinutes)
		rec.IntervalIDs = append(rec.IntervalIDs, w.ID)
	}
	rec.StartTime = &start
	rec.EndTime = &end

	// Break comes off the current-day side first, capped at that side's span.
	midnight := rec.Date.AddDays(1).In(loc)
	before := minutesBetween(start, earliest(end, midnight))
	after := minutesBetween(latest(start, midnight), end)
	currentBreak := min(rec.BreakMinutes, before)

	rec.CurrentDayWorkingMinutes = before - currentBreak
	rec.NextDayWorkingMinutes = max(0, after-(rec.BreakMinutes-currentBreak))
	rec.TotalWorkingMinutes = rec.CurrentDayWorkingMinutes + rec.NextDayWorkingMinutes

	rec.NighttimeWorkingMinutes = b.nightMinutes(rec.Date, start, end)
}

// nightMinutes intersects [start, end] with the night window opening on the
// date and the one that opened the evening before.
func (b DayBuilder) nightMinutes(d Date, start, end time.Time) int {
	total := 0
	for _, nd := range []Date{d, d.AddDays(-1)} {
		ws, we := b.nightWindow(nd)
		total += minutesBetween(latest(start, ws), earliest(end, we))
	}
	return total
}

func (b DayBuilder) nightWindow(d Date) (time.Time, time.Time) {
	loc := b.location()
	endDate := d
	if b.Rules.NightEnd <= b.Rules.NightStart {
		endDate = d.AddDays(1)
	}
	return d.At(loc, b.Rules.NightStart), endDate.At(loc, b.Rules.NightEnd)
}

// applyEntitlements splits the basis into scheduled and overtime buckets.
func (b DayBuilder) applyEntitlements(rec *DailyRecord, c *EmployeeContract) {
	basis := rec.Basis()

	switch rec.DayType {
	case DayScheduled:
		daily := b.Rules.DailyStatutoryMinutes
		rec.ScheduledWorkMinutes = c.Regulation.ScheduledWorkMinutes()
		rec.ScheduledWorkingMinutes = min(rec.ScheduledWorkMinutes, basis)
		rec.NonScheduledWorkingMinutes = basis - rec.ScheduledWorkingMinutes
		rec.StatutoryOvertimeMinutes = max(0, min(daily-rec.ScheduledWorkingMinutes, rec.NonScheduledWorkingMinutes))
		rec.NonStatutoryOvertimeMinutes = max(0, basis-daily)

	case DayNonStatutoryHoliday:
		rec.NonScheduledWorkingMinutes = basis

	case DayLegalHoliday:
		// Overflow past midnight into a non-holiday is accounted as
		// non-scheduled work and settled by the Reallocator.
		if !rec.IsNextDayLegalHoliday {
			rec.NonScheduledWorkingMinutes = rec.NextDayWorkingMinutes
		}

	case DayUndefined:
		return
	}

	if rec.DayType == DayLegalHoliday {
		rec.HolidayWorkingMinutes += rec.CurrentDayWorkingMinutes
	}
	if rec.IsNextDayLegalHoliday {
		rec.HolidayWorkingMinutes += rec.NextDayWorkingMinutes
	}
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// minutesBetween returns whole minutes from a to b, or 0 if b is not after a.
func minutesBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	return int(b.Sub(a) / time.Minute)
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
