package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

func TestAggregate_SplitsPartialWeeksAndSumsMonthOnly(t *testing.T) {
	// GIVEN: February 2025 starts on a Saturday and ends on a Friday, so its
	// week span is 2025-01-27 .. 2025-03-02
	feb := attendance.Month{Year: 2025, Month: time.February}
	span := feb.WeekSpan()
	require.Equal(t, "2025-01-27", span.From.String())
	require.Equal(t, "2025-03-02", span.To.String())

	var records []attendance.DailyRecord
	for _, d := range span.Days() {
		records = append(records, attendance.DailyRecord{
			EmployeeID:              "emp-1",
			Date:                    d,
			DayType:                 attendance.DayScheduled,
			TotalWorkingMinutes:     60,
			ScheduledWorkingMinutes: 60,
		})
	}
	// A stray record outside the span is ignored.
	records = append(records, attendance.DailyRecord{EmployeeID: "emp-1", Date: span.To.AddDays(1), TotalWorkingMinutes: 999})

	// WHEN
	m := attendance.Aggregate("emp-1", feb, records)

	// THEN
	assert.Len(t, m.Prev, 5)
	assert.Len(t, m.Records, 28)
	assert.Len(t, m.Next, 2)
	assert.Equal(t, 28*60, m.TotalWorkingMinutes)
	assert.Equal(t, 28, m.TotalWorkingDays)
	assert.Equal(t, 28, m.TotalScheduledWorkDays)
	assert.Equal(t, "emp-1:2025-02", m.Key())
}

func TestAggregate_DayCounts(t *testing.T) {
	jan := attendance.Month{Year: 2025, Month: time.January}
	records := []attendance.DailyRecord{
		{EmployeeID: "emp-1", Date: monday, DayType: attendance.DayScheduled, TotalWorkingMinutes: 480, ScheduledWorkingMinutes: 480},
		{EmployeeID: "emp-1", Date: monday.AddDays(1), DayType: attendance.DayScheduled},
		{EmployeeID: "emp-1", Date: saturday, DayType: attendance.DayNonStatutoryHoliday, TotalWorkingMinutes: 300, NonScheduledWorkingMinutes: 300, StatutoryOvertimeMinutes: 300},
		{EmployeeID: "emp-1", Date: sunday, DayType: attendance.DayLegalHoliday, TotalWorkingMinutes: 240, HolidayWorkingMinutes: 240},
		{EmployeeID: "emp-1", Date: sunday.AddDays(1), DayType: attendance.DayUndefined},
	}

	m := attendance.Aggregate("emp-1", jan, records)

	assert.Equal(t, 3, m.TotalWorkingDays)
	assert.Equal(t, 2, m.TotalScheduledWorkDays)
	assert.Equal(t, 1, m.TotalScheduledWorkingDays)
	assert.Equal(t, 2, m.TotalNonScheduledWorkingDays)
	assert.Equal(t, 1, m.HolidayWorkingDays)
	assert.Equal(t, 1020, m.TotalWorkingMinutes)
	assert.Equal(t, 300, m.StatutoryOvertimeMinutes)
	assert.Equal(t, 240, m.HolidayWorkingMinutes)
}

func TestAggregate_Empty(t *testing.T) {
	m := attendance.Aggregate("emp-1", attendance.Month{Year: 2025, Month: time.March}, nil)

	assert.NotNil(t, m.Records)
	assert.Empty(t, m.Records)
	assert.Equal(t, 0, m.TotalWorkingMinutes)
}

func TestHours_RoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, "8", attendance.Hours(480).String())
	assert.Equal(t, "1.33", attendance.Hours(80).String())
	assert.Equal(t, "0.02", attendance.Hours(1).String())
}
