package attendance_test

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// Week of 2025-01-06 (Mon) .. 2025-01-12 (Sun).
var (
	monday   = attendance.MustParseDate("2025-01-06")
	friday   = attendance.MustParseDate("2025-01-10")
	saturday = attendance.MustParseDate("2025-01-11")
	sunday   = attendance.MustParseDate("2025-01-12")
)

// standardRegulation: Mon-Fri 09:00-18:00, 60 min break (480 min), Sunday
// is the legal holiday, Saturday a non-statutory one.
func standardRegulation() attendance.WorkRegulation {
	legal := time.Sunday
	return attendance.WorkRegulation{
		ID:   "reg-std",
		Name: "Standard",
		ScheduledWorkDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		LegalHoliday: &legal,
		StartTime:    attendance.MustParseClockTime("09:00"),
		EndTime:      attendance.MustParseClockTime("18:00"),
		BreakMinutes: 60,
	}
}

func contract(id string, emp attendance.EmployeeID, start, expired string) attendance.EmployeeContract {
	c := attendance.EmployeeContract{
		ID:         id,
		EmployeeID: emp,
		StartDate:  attendance.MustParseDate(start),
		Regulation: standardRegulation(),
	}
	if expired != "" {
		d := attendance.MustParseDate(expired)
		c.ExpiredDate = &d
	}
	return c
}

func interval(id string, emp attendance.EmployeeID, date attendance.Date, start, end string, nextDay bool, breakMinutes int) attendance.WorkInterval {
	return attendance.WorkInterval{
		ID:           id,
		EmployeeID:   emp,
		Date:         date,
		StartTime:    attendance.MustParseClockTime(start),
		EndTime:      attendance.MustParseClockTime(end),
		EndAtNextDay: nextDay,
		BreakMinutes: breakMinutes,
	}
}

func newBuilder() attendance.DayBuilder {
	return attendance.DayBuilder{Rules: attendance.DefaultRules(), Location: time.UTC}
}

func buildDay(c *attendance.EmployeeContract, d attendance.Date, intervals ...attendance.WorkInterval) attendance.DailyRecord {
	return newBuilder().Build(attendance.DayInput{
		EmployeeID:      "emp-1",
		Date:            d,
		Contract:        c,
		NextDayContract: c,
		Intervals:       intervals,
	})
}

// weekRecord is a bare daily record used to drive the Reallocator directly.
func weekRecord(d attendance.Date, dt attendance.DayType, scheduledWorking, statutory, nonScheduled int) attendance.DailyRecord {
	return attendance.DailyRecord{
		EmployeeID:                 "emp-1",
		Date:                       d,
		DayType:                    dt,
		ScheduledWorkingMinutes:    scheduledWorking,
		StatutoryOvertimeMinutes:   statutory,
		NonScheduledWorkingMinutes: nonScheduled,
	}
}
