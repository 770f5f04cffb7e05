package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// Employee represents an employee record.
type Employee struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`

	_, err := s.db.ExecContext(ctx, query, emp.ID, emp.Name, nullString(emp.Email), now())
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp Employee
	var email sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emp.Email = email.String
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM employees ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		var emp Employee
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&emp.ID, &emp.Name, &email, &createdAt); err != nil {
			return nil, err
		}
		emp.Email = email.String
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// WORK REGULATIONS
// =============================================================================

// SaveRegulation inserts or replaces a regulation.
func (s *Store) SaveRegulation(ctx context.Context, reg attendance.WorkRegulation) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRegulation(ctx, s.db, reg)
}

// GetRegulation returns nil, nil when the regulation does not exist.
func (s *Store) GetRegulation(ctx context.Context, id string) (*attendance.WorkRegulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, scheduled_work_days, legal_holiday, start_time, end_time, break_minutes
		FROM work_regulations WHERE id = ?`, id)
	reg, err := scanRegulation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *Store) ListRegulations(ctx context.Context) ([]attendance.WorkRegulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, scheduled_work_days, legal_holiday, start_time, end_time, break_minutes
		FROM work_regulations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := []attendance.WorkRegulation{}
	for rows.Next() {
		reg, err := scanRegulation(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func saveRegulation(ctx context.Context, db dbtx, reg attendance.WorkRegulation) error {
	days := make([]string, 0, len(reg.ScheduledWorkDays))
	for _, wd := range reg.ScheduledWorkDays {
		days = append(days, attendance.WeekdayCode(wd))
	}
	var legal sql.NullString
	if reg.LegalHoliday != nil {
		legal = nullString(attendance.WeekdayCode(*reg.LegalHoliday))
	}

	ts := now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO work_regulations
		(id, name, scheduled_work_days, legal_holiday, start_time, end_time, break_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			scheduled_work_days = excluded.scheduled_work_days,
			legal_holiday = excluded.legal_holiday,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			break_minutes = excluded.break_minutes,
			updated_at = excluded.updated_at`,
		reg.ID, reg.Name, strings.Join(days, ","), legal,
		reg.StartTime.String(), reg.EndTime.String(), reg.BreakMinutes, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save regulation: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegulation(row scanner) (attendance.WorkRegulation, error) {
	var (
		reg        attendance.WorkRegulation
		days       string
		legal      sql.NullString
		start, end string
	)
	if err := row.Scan(&reg.ID, &reg.Name, &days, &legal, &start, &end, &reg.BreakMinutes); err != nil {
		return reg, err
	}
	return reg, decodeRegulation(&reg, days, legal, start, end)
}

func decodeRegulation(reg *attendance.WorkRegulation, days string, legal sql.NullString, start, end string) error {
	var err error
	for _, code := range strings.Split(days, ",") {
		if code == "" {
			continue
		}
		wd, err := attendance.ParseWeekday(code)
		if err != nil {
			return fmt.Errorf("regulation %s: %w", reg.ID, err)
		}
		reg.ScheduledWorkDays = append(reg.ScheduledWorkDays, wd)
	}
	if legal.Valid {
		wd, err := attendance.ParseWeekday(legal.String)
		if err != nil {
			return fmt.Errorf("regulation %s: %w", reg.ID, err)
		}
		reg.LegalHoliday = &wd
	}
	if reg.StartTime, err = attendance.ParseClockTime(start); err != nil {
		return fmt.Errorf("regulation %s: %w", reg.ID, err)
	}
	if reg.EndTime, err = attendance.ParseClockTime(end); err != nil {
		return fmt.Errorf("regulation %s: %w", reg.ID, err)
	}
	return nil
}

// =============================================================================
// CONTRACTS (attendance.ContractSource + ReferenceStore)
// =============================================================================

// SaveContract stores the contract and, in the same transaction, its
// regulation.
func (s *Store) SaveContract(ctx context.Context, c attendance.EmployeeContract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := saveRegulation(ctx, tx, c.Regulation); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO employee_contracts (id, employee_id, regulation_id, start_date, expired_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				employee_id = excluded.employee_id,
				regulation_id = excluded.regulation_id,
				start_date = excluded.start_date,
				expired_date = excluded.expired_date`,
			c.ID, string(c.EmployeeID), c.Regulation.ID, c.StartDate.String(), nullDate(c.ExpiredDate), now(),
		)
		if isForeignKeyError(err) {
			return &attendance.InvalidArgumentError{Field: "contract.regulation_id", Value: c.Regulation.ID, Reason: "unknown regulation"}
		}
		if err != nil {
			return fmt.Errorf("failed to save contract: %w", err)
		}
		return nil
	})
}

func (s *Store) ListContracts(ctx context.Context, employeeID attendance.EmployeeID) ([]attendance.EmployeeContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryContracts(ctx, s.db, contractSelect+`
		WHERE c.employee_id = ?
		ORDER BY c.start_date, c.id`, string(employeeID))
}

func (s *Store) ResolveContracts(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.EmployeeContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolveContracts(ctx, s.db, employeeID, from, to)
}

func (s *Store) ActiveEmployees(ctx context.Context, from, to attendance.Date) ([]attendance.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeEmployees(ctx, s.db, from, to)
}

const contractSelect = `
	SELECT c.id, c.employee_id, c.start_date, c.expired_date,
	       r.id, r.name, r.scheduled_work_days, r.legal_holiday, r.start_time, r.end_time, r.break_minutes
	FROM employee_contracts c
	JOIN work_regulations r ON r.id = c.regulation_id`

// resolveContracts returns contracts in effect on any day of [from, to]
// plus the latest one starting before from.
func resolveContracts(ctx context.Context, db dbtx, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.EmployeeContract, error) {
	inRange, err := queryContracts(ctx, db, contractSelect+`
		WHERE c.employee_id = ?
		  AND c.start_date <= ?
		  AND (c.expired_date IS NULL OR c.expired_date >= ?)
		ORDER BY c.start_date, c.id`,
		string(employeeID), to.String(), from.String())
	if err != nil {
		return nil, err
	}

	before, err := queryContracts(ctx, db, contractSelect+`
		WHERE c.employee_id = ? AND c.start_date < ?
		ORDER BY c.start_date DESC, c.id DESC
		LIMIT 1`,
		string(employeeID), from.String())
	if err != nil {
		return nil, err
	}

	for _, b := range before {
		dup := false
		for _, c := range inRange {
			dup = dup || c.ID == b.ID
		}
		if !dup {
			inRange = append(inRange, b)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool { return inRange[i].StartDate.Before(inRange[j].StartDate) })
	return inRange, nil
}

func activeEmployees(ctx context.Context, db dbtx, from, to attendance.Date) ([]attendance.EmployeeID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT employee_id FROM employee_contracts
		WHERE start_date <= ? AND (expired_date IS NULL OR expired_date >= ?)
		ORDER BY employee_id`,
		to.String(), from.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query active employees: %w", err)
	}
	defer rows.Close()

	ids := []attendance.EmployeeID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, attendance.EmployeeID(id))
	}
	return ids, rows.Err()
}

func queryContracts(ctx context.Context, db dbtx, query string, args ...any) ([]attendance.EmployeeContract, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	contracts := []attendance.EmployeeContract{}
	for rows.Next() {
		var (
			c                 attendance.EmployeeContract
			employeeID, start string
			expired           sql.NullString
			days              string
			legal             sql.NullString
			regStart, regEnd  string
		)
		err := rows.Scan(&c.ID, &employeeID, &start, &expired,
			&c.Regulation.ID, &c.Regulation.Name, &days, &legal, &regStart, &regEnd, &c.Regulation.BreakMinutes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}

		c.EmployeeID = attendance.EmployeeID(employeeID)
		if c.StartDate, err = attendance.ParseDate(start); err != nil {
			return nil, fmt.Errorf("contract %s: %w", c.ID, err)
		}
		if expired.Valid {
			d, err := attendance.ParseDate(expired.String)
			if err != nil {
				return nil, fmt.Errorf("contract %s: %w", c.ID, err)
			}
			c.ExpiredDate = &d
		}
		if err := decodeRegulation(&c.Regulation, days, legal, regStart, regEnd); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// =============================================================================
// WORK INTERVALS (attendance.WorkIntervalSource + ReferenceStore)
// =============================================================================

func (s *Store) SaveWorkInterval(ctx context.Context, w attendance.WorkInterval) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_intervals (id, employee_id, date, start_time, end_time, end_at_next_day, break_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			end_at_next_day = excluded.end_at_next_day,
			break_minutes = excluded.break_minutes`,
		w.ID, string(w.EmployeeID), w.Date.String(), w.StartTime.String(), w.EndTime.String(),
		w.EndAtNextDay, w.BreakMinutes, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save work interval: %w", err)
	}
	return nil
}

func (s *Store) DeleteWorkInterval(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM work_intervals WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("work interval %s: %w", id, attendance.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) ResolveWorkIntervals(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.WorkInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return resolveWorkIntervals(ctx, s.db, employeeID, from, to)
}

func resolveWorkIntervals(ctx context.Context, db dbtx, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.WorkInterval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, date, start_time, end_time, end_at_next_day, break_minutes
		FROM work_intervals
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date, start_time, id`,
		string(employeeID), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query work intervals: %w", err)
	}
	defer rows.Close()

	intervals := []attendance.WorkInterval{}
	for rows.Next() {
		var (
			w                     attendance.WorkInterval
			emp, date, start, end string
		)
		if err := rows.Scan(&w.ID, &emp, &date, &start, &end, &w.EndAtNextDay, &w.BreakMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan work interval: %w", err)
		}
		w.EmployeeID = attendance.EmployeeID(emp)
		if w.Date, err = attendance.ParseDate(date); err != nil {
			return nil, fmt.Errorf("work interval %s: %w", w.ID, err)
		}
		if w.StartTime, err = attendance.ParseClockTime(start); err != nil {
			return nil, fmt.Errorf("work interval %s: %w", w.ID, err)
		}
		if w.EndTime, err = attendance.ParseClockTime(end); err != nil {
			return nil, fmt.Errorf("work interval %s: %w", w.ID, err)
		}
		intervals = append(intervals, w)
	}
	return intervals, rows.Err()
}
