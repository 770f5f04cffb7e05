package attendance

import (
	"sort"
)

// Aggregate rolls daily records up into the month. records may cover any
// span; in-month days feed the totals, the partial weeks before and after
// the month are kept as Prev and Next, and anything else is ignored.
func Aggregate(employeeID EmployeeID, month Month, records []DailyRecord) MonthlyRecord {
	sorted := make([]DailyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	span := month.WeekSpan()
	m := MonthlyRecord{
		EmployeeID: employeeID,
		Month:      month,
		Records:    []DailyRecord{},
		Prev:       []DailyRecord{},
		Next:       []DailyRecord{},
	}

	for _, r := range sorted {
		switch {
		case month.Contains(r.Date):
			m.Records = append(m.Records, r)
			m.add(r)
		case span.Contains(r.Date) && r.Date.Before(month.First()):
			m.Prev = append(m.Prev, r)
		case span.Contains(r.Date):
			m.Next = append(m.Next, r)
		}
	}
	return m
}

func (m *MonthlyRecord) add(r DailyRecord) {
	m.BreakMinutes += r.BreakMinutes
	m.TotalWorkingMinutes += r.TotalWorkingMinutes
	m.CurrentDayWorkingMinutes += r.CurrentDayWorkingMinutes
	m.NextDayWorkingMinutes += r.NextDayWorkingMinutes
	m.ScheduledWorkMinutes += r.ScheduledWorkMinutes
	m.ScheduledWorkingMinutes += r.ScheduledWorkingMinutes
	m.NonScheduledWorkingMinutes += r.NonScheduledWorkingMinutes
	m.StatutoryOvertimeMinutes += r.StatutoryOvertimeMinutes
	m.NonStatutoryOvertimeMinutes += r.NonStatutoryOvertimeMinutes
	m.HolidayWorkingMinutes += r.HolidayWorkingMinutes
	m.NighttimeWorkingMinutes += r.NighttimeWorkingMinutes

	if r.Worked() {
		m.TotalWorkingDays++
	}
	if r.DayType == DayScheduled {
		m.TotalScheduledWorkDays++
		if r.Worked() {
			m.TotalScheduledWorkingDays++
		}
	}
	if r.DayType.IsHoliday() && r.Worked() {
		m.TotalNonScheduledWorkingDays++
	}
	if r.HolidayWorkingMinutes > 0 {
		m.HolidayWorkingDays++
	}
}
