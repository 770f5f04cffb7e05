package attendance_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

func newReallocator() attendance.Reallocator {
	return attendance.Reallocator{Rules: attendance.DefaultRules()}
}

// week builds Mon-Fri scheduled records plus the given Saturday and Sunday.
func week(scheduled [5]int, sat, sun attendance.DailyRecord) []attendance.DailyRecord {
	records := make([]attendance.DailyRecord, 0, 7)
	for i, minutes := range scheduled {
		records = append(records, weekRecord(monday.AddDays(i), attendance.DayScheduled, minutes, 0, 0))
	}
	return append(records, sat, sun)
}

func TestReallocate_NonStatutoryHolidayWithHeadroom(t *testing.T) {
	// GIVEN: 2000 minutes on scheduled days, 300 worked on Saturday
	records := week([5]int{480, 480, 480, 480, 80},
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 300),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 0),
	)

	// WHEN
	res, err := newReallocator().Reallocate(records)

	// THEN: all of Saturday fits under the weekly 2400
	require.NoError(t, err)
	assert.Equal(t, 2000, res.WeeklyWorkingMinutes)
	assert.Equal(t, 400, res.Headroom)
	assert.Equal(t, 100, res.Remaining)

	sat := records[5]
	assert.Equal(t, 300, sat.StatutoryOvertimeMinutes)
	assert.Equal(t, 0, sat.NonStatutoryOvertimeMinutes)
}

func TestReallocate_NonStatutoryBeforeLegal(t *testing.T) {
	// GIVEN: 400 headroom, 300 on Saturday and 200 on the legal Sunday
	records := week([5]int{480, 480, 480, 480, 80},
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 300),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 200),
	)

	res, err := newReallocator().Reallocate(records)
	require.NoError(t, err)

	// THEN: Saturday is served first, Sunday gets what is left
	assert.Equal(t, 0, res.Remaining)
	require.Len(t, res.Patches, 2)
	assert.Equal(t, saturday, res.Patches[0].Date)
	assert.Equal(t, 300, res.Patches[0].StatutoryOvertimeMinutes)
	assert.Equal(t, sunday, res.Patches[1].Date)
	assert.Equal(t, 100, res.Patches[1].StatutoryOvertimeMinutes)
	assert.Equal(t, 100, res.Patches[1].NonStatutoryOvertimeMinutes)
}

func TestReallocate_NoHeadroom_AllNonStatutory(t *testing.T) {
	records := week([5]int{480, 480, 480, 480, 480},
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 240),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 0),
	)

	res, err := newReallocator().Reallocate(records)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Headroom)
	assert.Equal(t, 0, records[5].StatutoryOvertimeMinutes)
	assert.Equal(t, 240, records[5].NonStatutoryOvertimeMinutes)
}

func TestReallocate_StatutoryOvertimeCountsTowardsWeek(t *testing.T) {
	// GIVEN: a 300 minute regulation with 180 statutory overtime every weekday
	records := make([]attendance.DailyRecord, 0, 7)
	for i := 0; i < 5; i++ {
		records = append(records, weekRecord(monday.AddDays(i), attendance.DayScheduled, 300, 180, 180))
	}
	records = append(records,
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 120),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 0),
	)

	res, err := newReallocator().Reallocate(records)
	require.NoError(t, err)

	assert.Equal(t, 2400, res.WeeklyWorkingMinutes)
	assert.Equal(t, 120, records[5].NonStatutoryOvertimeMinutes)
}

func TestReallocate_ScheduledDaysUntouched(t *testing.T) {
	records := week([5]int{480, 480, 480, 480, 480},
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 60),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 0),
	)
	records[0].NonStatutoryOvertimeMinutes = 45

	res, err := newReallocator().Reallocate(records)
	require.NoError(t, err)

	assert.Equal(t, 45, records[0].NonStatutoryOvertimeMinutes)
	for _, p := range res.Patches {
		assert.NotEqual(t, monday, p.Date)
	}
}

func TestReallocate_AnyInputOrder(t *testing.T) {
	records := week([5]int{480, 480, 480, 480, 80},
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 300),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 0),
	)
	// Reverse.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	res, err := newReallocator().Reallocate(records)
	require.NoError(t, err)
	assert.Equal(t, monday, res.WeekStart)
	assert.Equal(t, 100, res.Remaining)
}

func TestReallocate_IncompleteWeek_ConsistencyError(t *testing.T) {
	records := week([5]int{480, 480, 480, 480, 480},
		weekRecord(saturday, attendance.DayNonStatutoryHoliday, 0, 0, 0),
		weekRecord(sunday, attendance.DayLegalHoliday, 0, 0, 0),
	)[:6]

	_, err := newReallocator().Reallocate(records)

	require.Error(t, err)
	var cerr *attendance.ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 7, cerr.Expected)
	assert.Equal(t, 6, cerr.Found)
	assert.Equal(t, monday, cerr.WeekStart)
	assert.True(t, attendance.IsRetryable(err))
	assert.False(t, attendance.IsClientError(err))
}
