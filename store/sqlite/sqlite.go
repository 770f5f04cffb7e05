/*
Package sqlite provides a SQLite-backed implementation of the attendance
storage interfaces.

PURPOSE:
  Implements attendance.TxStore, attendance.RunStore and
  attendance.ReferenceStore on SQLite. The same schema ports to PostgreSQL
  with minor dialect changes (INSERT OR REPLACE, rowid deletes).

INTERFACES IMPLEMENTED:
  attendance.Store:          contracts, intervals, daily and monthly records
  attendance.TxStore:        per-employee transactions via WithTx
  attendance.RunStore:       batch report history
  attendance.ReferenceStore: contract and interval upkeep

KEY TABLES:
  employees:                  employee directory (display only)
  work_regulations:           working patterns referenced by contracts
  employee_contracts:         effective-dated employee -> regulation links
  work_intervals:             raw clock records
  daily_attendance_records:   one row per (employee_id, date)
  monthly_attendance_records: one row per (employee_id, month)
  recompute_runs:             BatchReport history

DATES:
  Calendar dates are stored as YYYY-MM-DD text so range predicates compare
  lexically. Absolute times are RFC3339 UTC.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction and the view it hands out talks to the *sql.Tx only, so
  reads inside a transaction see its own writes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := attendance.NewEngine(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/attendance"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// has a single writer anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_regulations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		scheduled_work_days TEXT NOT NULL,
		legal_holiday TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employee_contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		regulation_id TEXT NOT NULL REFERENCES work_regulations(id),
		start_date TEXT NOT NULL,
		expired_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Contract resolution (hot path of the daily step)
	CREATE INDEX IF NOT EXISTS idx_contracts_employee_start
		ON employee_contracts(employee_id, start_date);

	CREATE TABLE IF NOT EXISTS work_intervals (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		end_at_next_day BOOLEAN NOT NULL DEFAULT FALSE,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_employee_date
		ON work_intervals(employee_id, date);

	CREATE TABLE IF NOT EXISTS daily_attendance_records (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		contract_ids TEXT NOT NULL,
		interval_ids TEXT NOT NULL,
		day_type TEXT NOT NULL,
		is_next_day_legal_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		start_time TEXT,
		end_time TEXT,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		total_working_minutes INTEGER NOT NULL DEFAULT 0,
		current_day_working_minutes INTEGER NOT NULL DEFAULT 0,
		next_day_working_minutes INTEGER NOT NULL DEFAULT 0,
		scheduled_work_minutes INTEGER NOT NULL DEFAULT 0,
		scheduled_working_minutes INTEGER NOT NULL DEFAULT 0,
		non_scheduled_working_minutes INTEGER NOT NULL DEFAULT 0,
		statutory_overtime_minutes INTEGER NOT NULL DEFAULT 0,
		non_statutory_overtime_minutes INTEGER NOT NULL DEFAULT 0,
		holiday_working_minutes INTEGER NOT NULL DEFAULT 0,
		nighttime_working_minutes INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, date)
	);

	-- Range deletes across all employees
	CREATE INDEX IF NOT EXISTS idx_daily_records_date
		ON daily_attendance_records(date);

	CREATE TABLE IF NOT EXISTS monthly_attendance_records (
		employee_id TEXT NOT NULL,
		month TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		total_working_minutes INTEGER NOT NULL DEFAULT 0,
		current_day_working_minutes INTEGER NOT NULL DEFAULT 0,
		next_day_working_minutes INTEGER NOT NULL DEFAULT 0,
		scheduled_work_minutes INTEGER NOT NULL DEFAULT 0,
		scheduled_working_minutes INTEGER NOT NULL DEFAULT 0,
		non_scheduled_working_minutes INTEGER NOT NULL DEFAULT 0,
		statutory_overtime_minutes INTEGER NOT NULL DEFAULT 0,
		non_statutory_overtime_minutes INTEGER NOT NULL DEFAULT 0,
		holiday_working_minutes INTEGER NOT NULL DEFAULT 0,
		nighttime_working_minutes INTEGER NOT NULL DEFAULT 0,
		total_working_days INTEGER NOT NULL DEFAULT 0,
		total_scheduled_work_days INTEGER NOT NULL DEFAULT 0,
		total_scheduled_working_days INTEGER NOT NULL DEFAULT 0,
		total_non_scheduled_working_days INTEGER NOT NULL DEFAULT 0,
		holiday_working_days INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, month)
	);

	CREATE TABLE IF NOT EXISTS recompute_runs (
		id TEXT PRIMARY KEY,
		step TEXT NOT NULL,
		range_from TEXT NOT NULL,
		range_to TEXT NOT NULL,
		month TEXT,
		employee_id TEXT,
		processed_json TEXT NOT NULL,
		failed_json TEXT NOT NULL,
		warnings_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recompute_runs_started
		ON recompute_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (attendance.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store attendance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// inTx runs fn in its own transaction. The caller holds the write lock.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the view handed to WithTx callbacks. Every call goes through
// the transaction; the parent lock is already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) ResolveContracts(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.EmployeeContract, error) {
	return resolveContracts(ctx, ts.tx, employeeID, from, to)
}

func (ts *txStore) ActiveEmployees(ctx context.Context, from, to attendance.Date) ([]attendance.EmployeeID, error) {
	return activeEmployees(ctx, ts.tx, from, to)
}

func (ts *txStore) ResolveWorkIntervals(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.WorkInterval, error) {
	return resolveWorkIntervals(ctx, ts.tx, employeeID, from, to)
}

func (ts *txStore) DeleteDailyRecords(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date, limit int) (int, error) {
	return deleteDailyRecords(ctx, ts.tx, employeeID, from, to, limit)
}

func (ts *txStore) WriteDailyRecords(ctx context.Context, records []attendance.DailyRecord) error {
	return writeDailyRecords(ctx, ts.tx, records)
}

func (ts *txStore) LoadDailyRecords(ctx context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.DailyRecord, error) {
	return loadDailyRecords(ctx, ts.tx, employeeID, from, to)
}

func (ts *txStore) PatchWeeklyOvertime(ctx context.Context, patches []attendance.OvertimePatch) error {
	return patchWeeklyOvertime(ctx, ts.tx, patches)
}

func (ts *txStore) WriteMonthlyRecord(ctx context.Context, record attendance.MonthlyRecord) error {
	return writeMonthlyRecord(ctx, ts.tx, record)
}

func (ts *txStore) LoadMonthlyRecord(ctx context.Context, employeeID attendance.EmployeeID, month attendance.Month) (*attendance.MonthlyRecord, error) {
	return loadMonthlyRecord(ctx, ts.tx, employeeID, month)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"daily_attendance_records", "monthly_attendance_records", "recompute_runs",
		"work_intervals", "employee_contracts", "work_regulations", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d *attendance.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(t.UTC().Format(time.RFC3339))
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
