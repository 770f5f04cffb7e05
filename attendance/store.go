/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine never decides how records are stored. It reads contracts and
  raw intervals, and replaces daily/monthly records, through these
  interfaces.

KEY INTERFACES:
  ContractSource:      contracts in range (+ the latest one before it)
  WorkIntervalSource:  raw clock intervals in range
  DailyRecordStore:    bounded delete, write, load, overtime patch
  MonthlyRecordStore:  replace/load monthly roll-ups
  TxStore:             runs a function atomically over a Store view
  RunStore:            optional run history for batch reports
  ReferenceStore:      contract and interval upkeep for the HTTP/CLI surfaces

TRANSACTION VIEW CONTRACT:
  Reads made through the Store passed to WithTx's callback must observe the
  writes made earlier through the same view. The weekly step relies on it.

IMPLEMENTATIONS:
  - attendance/store/memory.go: in-memory (tests, dev)
  - store/sqlite/sqlite.go: SQLite
*/
package attendance

import "context"

// =============================================================================
// READ INTERFACES
// =============================================================================

type ContractSource interface {
	// ResolveContracts returns every contract of the employee in effect on
	// any day of [from, to], plus the most recent one starting before from.
	ResolveContracts(ctx context.Context, employeeID EmployeeID, from, to Date) ([]EmployeeContract, error)

	// ActiveEmployees returns employees with a contract in effect on any day
	// of [from, to], sorted.
	ActiveEmployees(ctx context.Context, from, to Date) ([]EmployeeID, error)
}

type WorkIntervalSource interface {
	// ResolveWorkIntervals returns intervals whose nominal date is in [from, to].
	ResolveWorkIntervals(ctx context.Context, employeeID EmployeeID, from, to Date) ([]WorkInterval, error)
}

// =============================================================================
// WRITE INTERFACES
// =============================================================================

type DailyRecordStore interface {
	// DeleteDailyRecords removes at most limit records in [from, to] for the
	// employee (all employees when employeeID is empty) and returns how many
	// it removed. Callers loop until fewer than limit are removed.
	DeleteDailyRecords(ctx context.Context, employeeID EmployeeID, from, to Date, limit int) (int, error)

	// WriteDailyRecords inserts or fully replaces records by (employee, date).
	WriteDailyRecords(ctx context.Context, records []DailyRecord) error

	// LoadDailyRecords returns the employee's records in [from, to] by date.
	LoadDailyRecords(ctx context.Context, employeeID EmployeeID, from, to Date) ([]DailyRecord, error)

	// PatchWeeklyOvertime updates only the two overtime fields. A patch for
	// a record that does not exist fails with ErrRecordNotFound.
	PatchWeeklyOvertime(ctx context.Context, patches []OvertimePatch) error
}

type MonthlyRecordStore interface {
	WriteMonthlyRecord(ctx context.Context, record MonthlyRecord) error

	// LoadMonthlyRecord returns nil, nil when no record exists.
	LoadMonthlyRecord(ctx context.Context, employeeID EmployeeID, month Month) (*MonthlyRecord, error)
}

// =============================================================================
// COMBINED STORES
// =============================================================================

type Store interface {
	ContractSource
	WorkIntervalSource
	DailyRecordStore
	MonthlyRecordStore
}

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// RunStore persists batch reports. Optional: the engine checks for it.
type RunStore interface {
	SaveRun(ctx context.Context, report *BatchReport) error
	ListRuns(ctx context.Context, limit int) ([]*BatchReport, error)
}

// ReferenceStore maintains the inputs the engine reads. Saves are upserts
// by ID.
type ReferenceStore interface {
	SaveContract(ctx context.Context, contract EmployeeContract) error
	ListContracts(ctx context.Context, employeeID EmployeeID) ([]EmployeeContract, error)
	SaveWorkInterval(ctx context.Context, interval WorkInterval) error
	DeleteWorkInterval(ctx context.Context, id string) error
}
