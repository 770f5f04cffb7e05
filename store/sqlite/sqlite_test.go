package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRegulation() attendance.WorkRegulation {
	legal := time.Sunday
	return attendance.WorkRegulation{
		ID:                "reg-std",
		Name:              "Standard",
		ScheduledWorkDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		LegalHoliday:      &legal,
		StartTime:         attendance.MustParseClockTime("09:00"),
		EndTime:           attendance.MustParseClockTime("18:00"),
		BreakMinutes:      60,
	}
}

func testContract(id string, emp attendance.EmployeeID, start, expired string) attendance.EmployeeContract {
	c := attendance.EmployeeContract{
		ID:         id,
		EmployeeID: emp,
		StartDate:  attendance.MustParseDate(start),
		Regulation: testRegulation(),
	}
	if expired != "" {
		d := attendance.MustParseDate(expired)
		c.ExpiredDate = &d
	}
	return c
}

func day(s string) attendance.Date { return attendance.MustParseDate(s) }

func testRecord(emp attendance.EmployeeID, date string, total int) attendance.DailyRecord {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(total+60) * time.Minute)
	return attendance.DailyRecord{
		EmployeeID:               emp,
		Date:                     day(date),
		ContractIDs:              []string{"c1"},
		IntervalIDs:              []string{"i1", "i2"},
		DayType:                  attendance.DayScheduled,
		StartTime:                &start,
		EndTime:                  &end,
		BreakMinutes:             60,
		TotalWorkingMinutes:      total,
		CurrentDayWorkingMinutes: total,
		ScheduledWorkMinutes:     480,
		ScheduledWorkingMinutes:  min(total, 480),
		NighttimeWorkingMinutes:  5,
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestContracts_RoundTripWithRegulation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := testContract("c1", "emp-1", "2025-01-01", "2025-06-30")
	require.NoError(t, store.SaveContract(ctx, c))

	got, err := store.ListContracts(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0])

	reg, err := store.GetRegulation(ctx, "reg-std")
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, 480, reg.ScheduledWorkMinutes())
}

func TestSaveContract_Invalid(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveContract(context.Background(), testContract("c1", "emp-1", "2025-02-01", "2025-01-01"))

	assert.True(t, attendance.IsClientError(err))
}

func TestResolveContracts_IncludesLatestBeforeRange(t *testing.T) {
	// GIVEN: an old expired contract, a recent one that started before the
	// range, and one starting after it
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveContract(ctx, testContract("c0", "emp-1", "2023-01-01", "2023-12-31")))
	require.NoError(t, store.SaveContract(ctx, testContract("c1", "emp-1", "2024-01-01", "")))
	require.NoError(t, store.SaveContract(ctx, testContract("c9", "emp-1", "2025-03-01", "")))

	// WHEN
	got, err := store.ResolveContracts(ctx, "emp-1", day("2025-01-06"), day("2025-01-13"))

	// THEN
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
}

func TestActiveEmployees(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveContract(ctx, testContract("c1", "emp-2", "2025-01-01", "")))
	require.NoError(t, store.SaveContract(ctx, testContract("c2", "emp-1", "2024-01-01", "2025-01-06")))
	require.NoError(t, store.SaveContract(ctx, testContract("c3", "emp-3", "2024-01-01", "2024-12-31")))

	got, err := store.ActiveEmployees(ctx, day("2025-01-06"), day("2025-01-12"))

	require.NoError(t, err)
	assert.Equal(t, []attendance.EmployeeID{"emp-1", "emp-2"}, got)
}

func TestWorkIntervals_SaveResolveDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	w := attendance.WorkInterval{
		ID:           "i1",
		EmployeeID:   "emp-1",
		Date:         day("2025-01-11"),
		StartTime:    attendance.MustParseClockTime("20:00"),
		EndTime:      attendance.MustParseClockTime("02:00"),
		EndAtNextDay: true,
		BreakMinutes: 15,
	}
	require.NoError(t, store.SaveWorkInterval(ctx, w))

	got, err := store.ResolveWorkIntervals(ctx, "emp-1", day("2025-01-06"), day("2025-01-12"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, w, got[0])

	require.NoError(t, store.DeleteWorkInterval(ctx, "i1"))
	err = store.DeleteWorkInterval(ctx, "i1")
	assert.True(t, errors.Is(err, attendance.ErrRecordNotFound))
}

// =============================================================================
// DAILY RECORDS
// =============================================================================

func TestDailyRecords_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := testRecord("emp-1", "2025-01-06", 540)

	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{rec}))

	got, err := store.LoadDailyRecords(ctx, "emp-1", day("2025-01-06"), day("2025-01-06"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestDailyRecords_WriteReplacesByKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{testRecord("emp-1", "2025-01-06", 540)}))
	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{testRecord("emp-1", "2025-01-06", 300)}))

	got, err := store.LoadDailyRecords(ctx, "emp-1", day("2025-01-01"), day("2025-01-31"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 300, got[0].TotalWorkingMinutes)
}

func TestDeleteDailyRecords_Bounded(t *testing.T) {
	// GIVEN: five records across two employees
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{
		testRecord("emp-1", "2025-01-06", 480),
		testRecord("emp-1", "2025-01-07", 480),
		testRecord("emp-1", "2025-01-08", 480),
		testRecord("emp-2", "2025-01-06", 480),
		testRecord("emp-2", "2025-01-20", 480),
	}))

	// WHEN: deleting all employees in the first week, two at a time
	from, to := day("2025-01-06"), day("2025-01-12")
	n, err := store.DeleteDailyRecords(ctx, "", from, to, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.DeleteDailyRecords(ctx, "", from, to, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.DeleteDailyRecords(ctx, "", from, to, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// THEN: the record outside the range survives
	got, err := store.LoadDailyRecords(ctx, "emp-2", day("2025-01-01"), day("2025-01-31"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-01-20", got[0].Date.String())
}

func TestDeleteDailyRecords_SingleEmployee(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{
		testRecord("emp-1", "2025-01-06", 480),
		testRecord("emp-2", "2025-01-06", 480),
	}))

	n, err := store.DeleteDailyRecords(ctx, "emp-1", day("2025-01-06"), day("2025-01-06"), 500)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := store.LoadDailyRecords(ctx, "emp-2", day("2025-01-06"), day("2025-01-06"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPatchWeeklyOvertime(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{testRecord("emp-1", "2025-01-11", 300)}))

	err := store.PatchWeeklyOvertime(ctx, []attendance.OvertimePatch{{
		EmployeeID:                  "emp-1",
		Date:                        day("2025-01-11"),
		StatutoryOvertimeMinutes:    200,
		NonStatutoryOvertimeMinutes: 100,
	}})
	require.NoError(t, err)

	got, err := store.LoadDailyRecords(ctx, "emp-1", day("2025-01-11"), day("2025-01-11"))
	require.NoError(t, err)
	assert.Equal(t, 200, got[0].StatutoryOvertimeMinutes)
	assert.Equal(t, 100, got[0].NonStatutoryOvertimeMinutes)
	assert.Equal(t, 300, got[0].TotalWorkingMinutes)
}

func TestPatchWeeklyOvertime_MissingRecord_NothingApplied(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.WriteDailyRecords(ctx, []attendance.DailyRecord{testRecord("emp-1", "2025-01-11", 300)}))

	err := store.PatchWeeklyOvertime(ctx, []attendance.OvertimePatch{
		{EmployeeID: "emp-1", Date: day("2025-01-11"), StatutoryOvertimeMinutes: 300},
		{EmployeeID: "emp-1", Date: day("2025-01-12"), StatutoryOvertimeMinutes: 10},
	})
	assert.True(t, errors.Is(err, attendance.ErrRecordNotFound))

	got, err := store.LoadDailyRecords(ctx, "emp-1", day("2025-01-11"), day("2025-01-11"))
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].StatutoryOvertimeMinutes)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s attendance.Store) error {
		if err := s.WriteDailyRecords(ctx, []attendance.DailyRecord{testRecord("emp-1", "2025-01-06", 480)}); err != nil {
			return err
		}
		// Visible inside the transaction.
		got, err := s.LoadDailyRecords(ctx, "emp-1", day("2025-01-06"), day("2025-01-06"))
		if err != nil {
			return err
		}
		if len(got) != 1 {
			return errors.New("write not visible inside transaction")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.LoadDailyRecords(ctx, "emp-1", day("2025-01-06"), day("2025-01-06"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// MONTHLY RECORDS
// =============================================================================

func TestMonthlyRecord_RoundTripReloadsDays(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	jan := attendance.Month{Year: 2025, Month: time.January}
	records := []attendance.DailyRecord{
		testRecord("emp-1", "2024-12-30", 480),
		testRecord("emp-1", "2025-01-06", 540),
		testRecord("emp-1", "2025-02-01", 480),
	}
	require.NoError(t, store.WriteDailyRecords(ctx, records))

	m := attendance.Aggregate("emp-1", jan, records)
	require.NoError(t, store.WriteMonthlyRecord(ctx, m))

	got, err := store.LoadMonthlyRecord(ctx, "emp-1", jan)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m, *got)

	missing, err := store.LoadMonthlyRecord(ctx, "emp-1", jan.Next().Next())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// RUNS
// =============================================================================

func TestRuns_SaveAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	started := time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC)
	week := day("2025-01-13")
	jan := attendance.Month{Year: 2025, Month: time.January}

	first := &attendance.BatchReport{
		RunID:       "run-1",
		Step:        attendance.StepWeekly,
		Range:       attendance.DateRange{From: day("2025-01-06"), To: day("2025-01-19")},
		Processed:   []attendance.EmployeeID{"emp-1"},
		Failed:      []attendance.EmployeeFailure{{EmployeeID: "emp-2", WeekStart: &week, Kind: attendance.FailureConsistency, Message: "missing"}},
		Warnings:    []attendance.DataIntegrityWarning{},
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
	}
	second := &attendance.BatchReport{
		RunID:       "run-2",
		Step:        attendance.StepMonthly,
		Range:       jan.Range(),
		Month:       &jan,
		EmployeeID:  "emp-1",
		Processed:   []attendance.EmployeeID{"emp-1"},
		Failed:      []attendance.EmployeeFailure{},
		Warnings:    []attendance.DataIntegrityWarning{{EmployeeID: "emp-1", Date: day("2025-01-09"), Kind: attendance.WarningNoApplicableContract}},
		StartedAt:   started.Add(time.Minute),
		CompletedAt: started.Add(2 * time.Minute),
	}
	require.NoError(t, store.SaveRun(ctx, first))
	require.NoError(t, store.SaveRun(ctx, second))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].RunID)
	require.NotNil(t, runs[0].Month)
	assert.Equal(t, jan, *runs[0].Month)
	assert.Equal(t, attendance.EmployeeID("emp-1"), runs[0].EmployeeID)
	assert.Equal(t, attendance.WarningNoApplicableContract, runs[0].Warnings[0].Kind)

	assert.Equal(t, "run-1", runs[1].RunID)
	require.Len(t, runs[1].Failed, 1)
	require.NotNil(t, runs[1].Failed[0].WeekStart)
	assert.Equal(t, week, *runs[1].Failed[0].WeekStart)
	assert.True(t, runs[1].StartedAt.Equal(started))
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestEngine_RecomputeOnSQLite(t *testing.T) {
	// GIVEN: 2000 minutes on scheduled days and 300 on Saturday
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveContract(ctx, testContract("c1", "emp-1", "2025-01-01", "")))
	intervals := []attendance.WorkInterval{
		{ID: "mon", Date: day("2025-01-06"), StartTime: 9 * 60, EndTime: 18 * 60, BreakMinutes: 60},
		{ID: "tue", Date: day("2025-01-07"), StartTime: 9 * 60, EndTime: 18 * 60, BreakMinutes: 60},
		{ID: "wed", Date: day("2025-01-08"), StartTime: 9 * 60, EndTime: 18 * 60, BreakMinutes: 60},
		{ID: "thu", Date: day("2025-01-09"), StartTime: 9 * 60, EndTime: 18 * 60, BreakMinutes: 60},
		{ID: "fri", Date: day("2025-01-10"), StartTime: 9 * 60, EndTime: 10*60 + 20},
		{ID: "sat", Date: day("2025-01-11"), StartTime: 9 * 60, EndTime: 14 * 60},
	}
	for _, w := range intervals {
		w.EmployeeID = "emp-1"
		require.NoError(t, store.SaveWorkInterval(ctx, w))
	}
	engine := attendance.NewEngine(store, nil)
	week := attendance.DateRange{From: day("2025-01-06"), To: day("2025-01-12")}

	// WHEN
	p, err := engine.Recompute(ctx, attendance.RangeRequest{Range: week})

	// THEN
	require.NoError(t, err)
	assert.True(t, p.Succeeded())

	records, err := engine.DailyRecords(ctx, "emp-1", week)
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, 300, records[5].StatutoryOvertimeMinutes)
	assert.Equal(t, 0, records[5].NonStatutoryOvertimeMinutes)

	m, err := engine.MonthlyRecord(ctx, "emp-1", attendance.Month{Year: 2025, Month: time.January})
	require.NoError(t, err)
	assert.Equal(t, 2300, m.TotalWorkingMinutes)
	assert.Len(t, m.Records, 7)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
