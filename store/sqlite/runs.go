package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// RECOMPUTE RUNS (attendance.RunStore interface)
// =============================================================================

// runTimeLayout is fixed width so started_at sorts lexically.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveRun stores a finished batch report. Saving the same run ID again
// replaces it.
func (s *Store) SaveRun(ctx context.Context, r *attendance.BatchReport) error {
	processed, err := json.Marshal(r.Processed)
	if err != nil {
		return err
	}
	failed, err := json.Marshal(r.Failed)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(r.Warnings)
	if err != nil {
		return err
	}
	var month sql.NullString
	if r.Month != nil {
		month = nullString(r.Month.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO recompute_runs
		(id, step, range_from, range_to, month, employee_id,
		 processed_json, failed_json, warnings_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, string(r.Step), r.Range.From.String(), r.Range.To.String(), month,
		nullString(string(r.EmployeeID)), string(processed), string(failed), string(warnings),
		r.StartedAt.UTC().Format(runTimeLayout), r.CompletedAt.UTC().Format(runTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*attendance.BatchReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step, range_from, range_to, month, employee_id,
		       processed_json, failed_json, warnings_json, started_at, completed_at
		FROM recompute_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*attendance.BatchReport{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (*attendance.BatchReport, error) {
	var (
		r                           attendance.BatchReport
		step, from, to              string
		month, employeeID           sql.NullString
		processed, failed, warnings string
		startedAt, completedAt      string
	)
	err := rows.Scan(&r.RunID, &step, &from, &to, &month, &employeeID,
		&processed, &failed, &warnings, &startedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	r.Step = attendance.Step(step)
	r.EmployeeID = attendance.EmployeeID(employeeID.String)
	if r.Range.From, err = attendance.ParseDate(from); err != nil {
		return nil, err
	}
	if r.Range.To, err = attendance.ParseDate(to); err != nil {
		return nil, err
	}
	if month.Valid {
		m, err := attendance.ParseMonth(month.String)
		if err != nil {
			return nil, err
		}
		r.Month = &m
	}
	if err := json.Unmarshal([]byte(processed), &r.Processed); err != nil {
		return nil, fmt.Errorf("run %s: processed: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(failed), &r.Failed); err != nil {
		return nil, fmt.Errorf("run %s: failed: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return nil, fmt.Errorf("run %s: warnings: %w", r.RunID, err)
	}
	r.StartedAt, _ = time.Parse(runTimeLayout, startedAt)
	r.CompletedAt, _ = time.Parse(runTimeLayout, completedAt)
	return &r, nil
}
