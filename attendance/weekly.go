package attendance

import (
	"sort"
)

// =============================================================================
// WEEKLY REALLOCATOR - Settles holiday overtime against the weekly ceiling
// =============================================================================

// Reallocator distributes the week's remaining statutory headroom over the
// non-scheduled work done on holidays. The order is fixed policy:
// non-statutory holidays by date first, then legal holidays by date.
type Reallocator struct {
	Rules Rules
}

// WeekResult summarises one reallocation.
type WeekResult struct {
	WeekStart Date

	// WeeklyWorkingMinutes is scheduled + statutory minutes on scheduled days.
	WeeklyWorkingMinutes int

	// Headroom is the statutory headroom before any grant; Remaining after.
	Headroom  int
	Remaining int

	// Patches has one entry per holiday record, in grant order.
	Patches []OvertimePatch
}

// Reallocate mutates the holiday records of records in place. records must
// be exactly the seven days Monday..Sunday of one week, in any order.
func (ra Reallocator) Reallocate(records []DailyRecord) (WeekResult, error) {
	if len(records) == 0 {
		return WeekResult{}, &ConsistencyError{Expected: 7}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	weekStart := records[0].Date.StartOfWeek()
	if err := checkWeek(records, weekStart); err != nil {
		return WeekResult{}, err
	}

	res := WeekResult{WeekStart: weekStart}
	for _, r := range records {
		if r.DayType == DayScheduled {
			res.WeeklyWorkingMinutes += r.ScheduledWorkingMinutes + r.StatutoryOvertimeMinutes
		}
	}
	res.Headroom = max(ra.Rules.WeeklyStatutoryMinutes-res.WeeklyWorkingMinutes, 0)

	excess := res.Headroom
	for _, dt := range []DayType{DayNonStatutoryHoliday, DayLegalHoliday} {
		for i := range records {
			r := &records[i]
			if r.DayType != dt {
				continue
			}
			grant := min(r.NonScheduledWorkingMinutes, excess)
			r.StatutoryOvertimeMinutes = grant
			r.NonStatutoryOvertimeMinutes = r.NonScheduledWorkingMinutes - grant
			excess -= grant

			res.Patches = append(res.Patches, OvertimePatch{
				EmployeeID:                  r.EmployeeID,
				Date:                        r.Date,
				StatutoryOvertimeMinutes:    r.StatutoryOvertimeMinutes,
				NonStatutoryOvertimeMinutes: r.NonStatutoryOvertimeMinutes,
			})
		}
	}
	res.Remaining = excess
	return res, nil
}

// checkWeek requires one record per day of the week, same employee.
func checkWeek(records []DailyRecord, weekStart Date) error {
	cerr := &ConsistencyError{
		EmployeeID: records[0].EmployeeID,
		WeekStart:  weekStart,
		Expected:   7,
		Found:      len(records),
	}
	if len(records) != 7 {
		return cerr
	}
	for i, r := range records {
		if !r.Date.Equal(weekStart.AddDays(i)) || r.EmployeeID != records[0].EmployeeID {
			return cerr
		}
	}
	return nil
}
