package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// DAILY RECORDS (attendance.DailyRecordStore interface)
// =============================================================================

func (s *Store) DeleteDailyRecords(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteDailyRecords(ctx, s.db, employeeID, from, to, limit)
}

// WriteDailyRecords writes the batch atomically.
func (s *Store) WriteDailyRecords(ctx context.Context, records []attendance.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeDailyRecords(ctx, tx, records)
	})
}

func (s *Store) LoadDailyRecords(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadDailyRecords(ctx, s.db, employeeID, from, to)
}

// PatchWeeklyOvertime applies all patches or none.
func (s *Store) PatchWeeklyOvertime(ctx context.Context, patches []attendance.OvertimePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return patchWeeklyOvertime(ctx, tx, patches)
	})
}

// deleteDailyRecords removes at most limit rows, oldest first. An empty
// employeeID matches everyone.
func deleteDailyRecords(ctx context.Context, db dbtx, employeeID attendance.EmployeeID, from, to attendance.Date, limit int) (int, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM daily_attendance_records
		WHERE rowid IN (
			SELECT rowid FROM daily_attendance_records
			WHERE (? = '' OR employee_id = ?)
			  AND date >= ? AND date <= ?
			ORDER BY date, employee_id
			LIMIT ?
		)`,
		string(employeeID), string(employeeID), from.String(), to.String(), limit,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete daily records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

const dailyColumns = `
	employee_id, date, contract_ids, interval_ids, day_type, is_next_day_legal_holiday,
	start_time, end_time, break_minutes,
	total_working_minutes, current_day_working_minutes, next_day_working_minutes,
	scheduled_work_minutes, scheduled_working_minutes, non_scheduled_working_minutes,
	statutory_overtime_minutes, non_statutory_overtime_minutes,
	holiday_working_minutes, nighttime_working_minutes`

func writeDailyRecords(ctx context.Context, db dbtx, records []attendance.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}
	ts := now()
	for _, r := range records {
		contractIDs, err := json.Marshal(r.ContractIDs)
		if err != nil {
			return err
		}
		intervalIDs, err := json.Marshal(r.IntervalIDs)
		if err != nil {
			return err
		}

		_, err = db.ExecContext(ctx, `
			INSERT OR REPLACE INTO daily_attendance_records (`+dailyColumns+`, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(r.EmployeeID), r.Date.String(), string(contractIDs), string(intervalIDs),
			string(r.DayType), r.IsNextDayLegalHoliday,
			nullTime(r.StartTime), nullTime(r.EndTime), r.BreakMinutes,
			r.TotalWorkingMinutes, r.CurrentDayWorkingMinutes, r.NextDayWorkingMinutes,
			r.ScheduledWorkMinutes, r.ScheduledWorkingMinutes, r.NonScheduledWorkingMinutes,
			r.StatutoryOvertimeMinutes, r.NonStatutoryOvertimeMinutes,
			r.HolidayWorkingMinutes, r.NighttimeWorkingMinutes,
			ts,
		)
		if err != nil {
			return fmt.Errorf("failed to write daily record %s: %w", r.Key(), err)
		}
	}
	return nil
}

func loadDailyRecords(ctx context.Context, db dbtx, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.DailyRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+dailyColumns+`
		FROM daily_attendance_records
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		string(employeeID), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily records: %w", err)
	}
	defer rows.Close()

	records := []attendance.DailyRecord{}
	for rows.Next() {
		r, err := scanDailyRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanDailyRecord(rows *sql.Rows) (attendance.DailyRecord, error) {
	var (
		r                        attendance.DailyRecord
		employeeID, date         string
		contractIDs, intervalIDs string
		dayType                  string
		start, end               sql.NullString
	)
	err := rows.Scan(
		&employeeID, &date, &contractIDs, &intervalIDs, &dayType, &r.IsNextDayLegalHoliday,
		&start, &end, &r.BreakMinutes,
		&r.TotalWorkingMinutes, &r.CurrentDayWorkingMinutes, &r.NextDayWorkingMinutes,
		&r.ScheduledWorkMinutes, &r.ScheduledWorkingMinutes, &r.NonScheduledWorkingMinutes,
		&r.StatutoryOvertimeMinutes, &r.NonStatutoryOvertimeMinutes,
		&r.HolidayWorkingMinutes, &r.NighttimeWorkingMinutes,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan daily record: %w", err)
	}

	r.EmployeeID = attendance.EmployeeID(employeeID)
	r.DayType = attendance.ParseDayType(dayType)
	if r.Date, err = attendance.ParseDate(date); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(contractIDs), &r.ContractIDs); err != nil {
		return r, fmt.Errorf("daily record %s: contract ids: %w", r.Key(), err)
	}
	if err := json.Unmarshal([]byte(intervalIDs), &r.IntervalIDs); err != nil {
		return r, fmt.Errorf("daily record %s: interval ids: %w", r.Key(), err)
	}
	if r.StartTime, err = parseNullTime(start); err != nil {
		return r, err
	}
	if r.EndTime, err = parseNullTime(end); err != nil {
		return r, err
	}
	return r, nil
}

func patchWeeklyOvertime(ctx context.Context, db dbtx, patches []attendance.OvertimePatch) error {
	ts := now()
	for _, p := range patches {
		res, err := db.ExecContext(ctx, `
			UPDATE daily_attendance_records
			SET statutory_overtime_minutes = ?, non_statutory_overtime_minutes = ?, updated_at = ?
			WHERE employee_id = ? AND date = ?`,
			p.StatutoryOvertimeMinutes, p.NonStatutoryOvertimeMinutes, ts,
			string(p.EmployeeID), p.Date.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to patch daily record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("patch %s:%s: %w", p.EmployeeID, p.Date, attendance.ErrRecordNotFound)
		}
	}
	return nil
}

// =============================================================================
// MONTHLY RECORDS (attendance.MonthlyRecordStore interface)
// =============================================================================

func (s *Store) WriteMonthlyRecord(ctx context.Context, record attendance.MonthlyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeMonthlyRecord(ctx, s.db, record)
}

func (s *Store) LoadMonthlyRecord(ctx context.Context, employeeID attendance.EmployeeID, month attendance.Month) (*attendance.MonthlyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadMonthlyRecord(ctx, s.db, employeeID, month)
}

const monthlyColumns = `
	break_minutes, total_working_minutes, current_day_working_minutes, next_day_working_minutes,
	scheduled_work_minutes, scheduled_working_minutes, non_scheduled_working_minutes,
	statutory_overtime_minutes, non_statutory_overtime_minutes,
	holiday_working_minutes, nighttime_working_minutes,
	total_working_days, total_scheduled_work_days, total_scheduled_working_days,
	total_non_scheduled_working_days, holiday_working_days`

// writeMonthlyRecord stores the totals only. The daily rows behind a month
// are re-read on load.
func writeMonthlyRecord(ctx context.Context, db dbtx, m attendance.MonthlyRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO monthly_attendance_records (employee_id, month, `+monthlyColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.EmployeeID), m.Month.String(),
		m.BreakMinutes, m.TotalWorkingMinutes, m.CurrentDayWorkingMinutes, m.NextDayWorkingMinutes,
		m.ScheduledWorkMinutes, m.ScheduledWorkingMinutes, m.NonScheduledWorkingMinutes,
		m.StatutoryOvertimeMinutes, m.NonStatutoryOvertimeMinutes,
		m.HolidayWorkingMinutes, m.NighttimeWorkingMinutes,
		m.TotalWorkingDays, m.TotalScheduledWorkDays, m.TotalScheduledWorkingDays,
		m.TotalNonScheduledWorkingDays, m.HolidayWorkingDays,
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write monthly record %s: %w", m.Key(), err)
	}
	return nil
}

func loadMonthlyRecord(ctx context.Context, db dbtx, employeeID attendance.EmployeeID, month attendance.Month) (*attendance.MonthlyRecord, error) {
	m := attendance.MonthlyRecord{EmployeeID: employeeID, Month: month}
	err := db.QueryRowContext(ctx, `
		SELECT `+monthlyColumns+`
		FROM monthly_attendance_records
		WHERE employee_id = ? AND month = ?`,
		string(employeeID), month.String(),
	).Scan(
		&m.BreakMinutes, &m.TotalWorkingMinutes, &m.CurrentDayWorkingMinutes, &m.NextDayWorkingMinutes,
		&m.ScheduledWorkMinutes, &m.ScheduledWorkingMinutes, &m.NonScheduledWorkingMinutes,
		&m.StatutoryOvertimeMinutes, &m.NonStatutoryOvertimeMinutes,
		&m.HolidayWorkingMinutes, &m.NighttimeWorkingMinutes,
		&m.TotalWorkingDays, &m.TotalScheduledWorkDays, &m.TotalScheduledWorkingDays,
		&m.TotalNonScheduledWorkingDays, &m.HolidayWorkingDays,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly record: %w", err)
	}

	span := month.WeekSpan()
	daily, err := loadDailyRecords(ctx, db, employeeID, span.From, span.To)
	if err != nil {
		return nil, err
	}
	split := attendance.Aggregate(employeeID, month, daily)
	m.Records, m.Prev, m.Next = split.Records, split.Prev, split.Next
	return &m, nil
}
