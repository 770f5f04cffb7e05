/*
engine.go - Batch orchestration of the daily, weekly and monthly steps

PIPELINE:
  1. RecomputeDailyAttendance   delete-then-rebuild one DailyRecord per day
  2. ReallocateWeeklyOvertime   settle holiday overtime per Monday-Sunday week
  3. RecomputeMonthlyAttendance replace one MonthlyRecord per employee

  Recompute runs all three over the range widened to full weeks.

UNIT OF WORK:
  One employee (weekly: one employee-week) per store transaction. A failure
  is recorded in the BatchReport and the batch moves on; re-invoking the same
  call is the retry. Records are keyed by (employee, date) so a rerun
  converges on the same state.

CONCURRENCY:
  Employees run on a bounded errgroup. Weeks of one employee run in order.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 500
	DefaultConcurrency = 4
)

// Engine runs the attendance steps against a store.
type Engine struct {
	Store    TxStore
	Rules    Rules
	Location *time.Location

	// BatchSize bounds deletes, writes and patches per statement.
	BatchSize int

	// Concurrency bounds how many employees are processed at once.
	Concurrency int

	Logger *zap.Logger
	Now    func() time.Time
}

func NewEngine(store TxStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Store:       store,
		Rules:       DefaultRules(),
		Location:    time.UTC,
		BatchSize:   DefaultBatchSize,
		Concurrency: DefaultConcurrency,
		Logger:      logger,
		Now:         time.Now,
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// RangeRequest targets one employee, or every active one when EmployeeID is
// empty, over an inclusive date range.
type RangeRequest struct {
	Range      DateRange
	EmployeeID EmployeeID
}

// NewRangeRequest parses YYYY-MM-DD bounds.
func NewRangeRequest(from, to, employeeID string) (RangeRequest, error) {
	f, err := parseDateField("from", from)
	if err != nil {
		return RangeRequest{}, err
	}
	t, err := parseDateField("to", to)
	if err != nil {
		return RangeRequest{}, err
	}
	req := RangeRequest{Range: DateRange{From: f, To: t}, EmployeeID: EmployeeID(employeeID)}
	return req, req.Validate()
}

func (r RangeRequest) Validate() error {
	return r.Range.Validate()
}

// MonthRequest targets one calendar month.
type MonthRequest struct {
	Month      Month
	EmployeeID EmployeeID
}

// NewMonthRequest parses a YYYY-MM month.
func NewMonthRequest(month, employeeID string) (MonthRequest, error) {
	if month == "" {
		return MonthRequest{}, &InvalidArgumentError{Field: "month", Reason: "required"}
	}
	m, err := ParseMonth(month)
	if err != nil {
		return MonthRequest{}, err
	}
	return MonthRequest{Month: m, EmployeeID: EmployeeID(employeeID)}, nil
}

func (r MonthRequest) Validate() error {
	if r.Month.IsZero() || r.Month.Month < time.January || r.Month.Month > time.December {
		return &InvalidArgumentError{Field: "month", Value: r.Month.String(), Reason: "not a calendar month"}
	}
	return nil
}

func parseDateField(field, value string) (Date, error) {
	if value == "" {
		return Date{}, &InvalidArgumentError{Field: field, Reason: "required"}
	}
	d, err := ParseDate(value)
	if err != nil {
		return Date{}, &InvalidArgumentError{Field: field, Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// =============================================================================
// DAILY
// =============================================================================

// RecomputeDailyAttendance deletes the daily records in range and rebuilds
// one per employee per day. Holiday overtime is left for the weekly step.
func (e *Engine) RecomputeDailyAttendance(ctx context.Context, req RangeRequest) (*BatchReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	report := e.newReport(StepDaily, req.EmployeeID)
	report.Range = req.Range

	if err := e.deleteDailyRecords(ctx, req); err != nil {
		return e.complete(ctx, report), err
	}

	employees, err := e.targetEmployees(ctx, req.EmployeeID, req.Range)
	if err != nil {
		return e.complete(ctx, report), err
	}

	e.forEachEmployee(ctx, report, employees, func(ctx context.Context, id EmployeeID) []error {
		warnings, err := e.rebuildEmployeeDays(ctx, id, req.Range)
		if err != nil {
			return []error{err}
		}
		if len(warnings) > 0 {
			report.addWarnings(warnings)
			e.logger().Warn("data integrity warnings",
				zap.String("run_id", report.RunID),
				zap.String("employee_id", string(id)),
				zap.Int("count", len(warnings)))
		}
		return nil
	})
	return e.complete(ctx, report), nil
}

// deleteDailyRecords removes records in bounded chunks until a chunk comes
// back short. Each chunk commits on its own.
func (e *Engine) deleteDailyRecords(ctx context.Context, req RangeRequest) error {
	total := 0
	for {
		n, err := e.Store.DeleteDailyRecords(ctx, req.EmployeeID, req.Range.From, req.Range.To, e.batchSize())
		if err != nil {
			return &TransactionError{
				EmployeeID: req.EmployeeID,
				Step:       StepDaily,
				Err:        fmt.Errorf("delete daily records: %w", err),
			}
		}
		total += n
		if n < e.batchSize() {
			break
		}
	}
	e.logger().Debug("deleted daily records",
		zap.String("range", req.Range.String()),
		zap.String("employee_id", string(req.EmployeeID)),
		zap.Int("deleted", total))
	return nil
}

func (e *Engine) rebuildEmployeeDays(ctx context.Context, id EmployeeID, r DateRange) ([]DataIntegrityWarning, error) {
	var warnings []DataIntegrityWarning
	err := e.inTx(ctx, id, StepDaily, func(s Store) error {
		contracts, err := s.ResolveContracts(ctx, id, r.From, r.To.AddDays(1))
		if err != nil {
			return fmt.Errorf("resolve contracts: %w", err)
		}
		intervals, err := s.ResolveWorkIntervals(ctx, id, r.From, r.To)
		if err != nil {
			return fmt.Errorf("resolve work intervals: %w", err)
		}

		var records []DailyRecord
		records, warnings = e.BuildDays(id, r, contracts, intervals)
		for _, batch := range chunk(records, e.batchSize()) {
			if err := s.WriteDailyRecords(ctx, batch); err != nil {
				return fmt.Errorf("write daily records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return warnings, nil
}

// BuildDays computes one record per day of r from pre-fetched contracts and
// intervals. It touches no store.
func (e *Engine) BuildDays(id EmployeeID, r DateRange, contracts []EmployeeContract, intervals []WorkInterval) ([]DailyRecord, []DataIntegrityWarning) {
	index := NewContractIndex(contracts)
	builder := DayBuilder{Rules: e.Rules, Location: e.Location}

	byDate := make(map[string][]WorkInterval)
	for _, w := range intervals {
		if w.EmployeeID == id && r.Contains(w.Date) {
			byDate[w.Date.String()] = append(byDate[w.Date.String()], w)
		}
	}

	days := r.Days()
	records := make([]DailyRecord, 0, len(days))
	var warnings []DataIntegrityWarning
	for _, d := range days {
		res := index.Resolve(d)
		switch {
		case res.Overlap:
			warnings = append(warnings, DataIntegrityWarning{
				EmployeeID: id,
				Date:       d,
				Kind:       WarningOverlappingContracts,
				Message:    fmt.Sprintf("more than one contract applies; using %s", res.Contract.ID),
			})
		case res.Contract == nil:
			warnings = append(warnings, DataIntegrityWarning{
				EmployeeID: id,
				Date:       d,
				Kind:       WarningNoApplicableContract,
				Message:    ErrNoApplicableContract.Error(),
			})
		}

		records = append(records, builder.Build(DayInput{
			EmployeeID:      id,
			Date:            d,
			Contract:        res.Contract,
			NextDayContract: index.Resolve(d.AddDays(1)).Contract,
			Intervals:       byDate[d.String()],
		}))
	}
	return records, warnings
}

// =============================================================================
// WEEKLY
// =============================================================================

// ReallocateWeeklyOvertime settles holiday overtime for every Monday-Sunday
// week intersecting the range. A week missing daily records fails with a
// consistency failure; the employee's other weeks still run.
func (e *Engine) ReallocateWeeklyOvertime(ctx context.Context, req RangeRequest) (*BatchReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	report := e.newReport(StepWeekly, req.EmployeeID)
	report.Range = req.Range.FullWeeks()

	employees, err := e.targetEmployees(ctx, req.EmployeeID, req.Range)
	if err != nil {
		return e.complete(ctx, report), err
	}

	weeks := req.Range.Weeks()
	e.forEachEmployee(ctx, report, employees, func(ctx context.Context, id EmployeeID) []error {
		var errs []error
		for _, week := range weeks {
			if err := e.reallocateWeek(ctx, id, week); err != nil {
				errs = append(errs, &WeekError{WeekStart: week.From, Err: err})
			}
		}
		return errs
	})
	return e.complete(ctx, report), nil
}

func (e *Engine) reallocateWeek(ctx context.Context, id EmployeeID, week DateRange) error {
	return e.inTx(ctx, id, StepWeekly, func(s Store) error {
		records, err := s.LoadDailyRecords(ctx, id, week.From, week.To)
		if err != nil {
			return fmt.Errorf("load daily records: %w", err)
		}
		if len(records) != 7 {
			return &ConsistencyError{EmployeeID: id, WeekStart: week.From, Expected: 7, Found: len(records)}
		}

		res, err := Reallocator{Rules: e.Rules}.Reallocate(records)
		if err != nil {
			return err
		}
		for _, batch := range chunk(res.Patches, e.batchSize()) {
			if err := s.PatchWeeklyOvertime(ctx, batch); err != nil {
				return fmt.Errorf("patch weekly overtime: %w", err)
			}
		}

		e.logger().Debug("reallocated week",
			zap.String("employee_id", string(id)),
			zap.String("week_start", week.From.String()),
			zap.Int("weekly_working_minutes", res.WeeklyWorkingMinutes),
			zap.Int("headroom", res.Headroom),
			zap.Int("remaining", res.Remaining))
		return nil
	})
}

// =============================================================================
// MONTHLY
// =============================================================================

// RecomputeMonthlyAttendance replaces each employee's record for the month
// from the daily records of the weeks spanning it.
func (e *Engine) RecomputeMonthlyAttendance(ctx context.Context, req MonthRequest) (*BatchReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	report := e.newReport(StepMonthly, req.EmployeeID)
	month := req.Month
	report.Month = &month
	report.Range = month.Range()

	employees, err := e.targetEmployees(ctx, req.EmployeeID, month.Range())
	if err != nil {
		return e.complete(ctx, report), err
	}

	span := month.WeekSpan()
	e.forEachEmployee(ctx, report, employees, func(ctx context.Context, id EmployeeID) []error {
		err := e.inTx(ctx, id, StepMonthly, func(s Store) error {
			records, err := s.LoadDailyRecords(ctx, id, span.From, span.To)
			if err != nil {
				return fmt.Errorf("load daily records: %w", err)
			}
			if err := s.WriteMonthlyRecord(ctx, Aggregate(id, month, records)); err != nil {
				return fmt.Errorf("write monthly record: %w", err)
			}
			return nil
		})
		if err != nil {
			return []error{err}
		}
		return nil
	})
	return e.complete(ctx, report), nil
}

// =============================================================================
// PIPELINE
// =============================================================================

// Recompute runs daily, weekly and monthly over the range widened to full
// weeks, so the weekly step always finds complete weeks. It stops early only
// on a call error; per-employee failures are in the reports.
func (e *Engine) Recompute(ctx context.Context, req RangeRequest) (*PipelineReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	full := RangeRequest{Range: req.Range.FullWeeks(), EmployeeID: req.EmployeeID}
	p := &PipelineReport{}

	var err error
	if p.Daily, err = e.RecomputeDailyAttendance(ctx, full); err != nil {
		return p, err
	}
	if p.Weekly, err = e.ReallocateWeeklyOvertime(ctx, full); err != nil {
		return p, err
	}
	for _, m := range full.Range.Months() {
		mr, err := e.RecomputeMonthlyAttendance(ctx, MonthRequest{Month: m, EmployeeID: req.EmployeeID})
		if mr != nil {
			p.Monthly = append(p.Monthly, mr)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) DailyRecords(ctx context.Context, id EmployeeID, r DateRange) ([]DailyRecord, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &InvalidArgumentError{Field: "employee_id", Reason: "required"}
	}
	return e.Store.LoadDailyRecords(ctx, id, r.From, r.To)
}

// MonthlyRecord returns ErrRecordNotFound when the month was never computed.
func (e *Engine) MonthlyRecord(ctx context.Context, id EmployeeID, month Month) (*MonthlyRecord, error) {
	if err := (MonthRequest{Month: month}).Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &InvalidArgumentError{Field: "employee_id", Reason: "required"}
	}
	rec, err := e.Store.LoadMonthlyRecord(ctx, id, month)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("monthly record %s/%s: %w", id, month, ErrRecordNotFound)
	}
	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) newReport(step Step, id EmployeeID) *BatchReport {
	return &BatchReport{
		RunID:      uuid.NewString(),
		Step:       step,
		EmployeeID: id,
		Processed:  []EmployeeID{},
		Failed:     []EmployeeFailure{},
		Warnings:   []DataIntegrityWarning{},
		StartedAt:  e.now(),
	}
}

// complete stamps the report, logs it and stores it when the store keeps
// run history. A failed save is logged, not returned.
func (e *Engine) complete(ctx context.Context, report *BatchReport) *BatchReport {
	report.finish(e.now())

	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.String("step", string(report.Step)),
		zap.String("range", report.Range.String()),
		zap.Int("processed", len(report.Processed)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("elapsed", report.CompletedAt.Sub(report.StartedAt)),
	}
	if report.EmployeeID != "" {
		fields = append(fields, zap.String("employee_id", string(report.EmployeeID)))
	}
	if report.Succeeded() {
		e.logger().Info("batch completed", fields...)
	} else {
		e.logger().Warn("batch completed with failures", fields...)
	}

	if runs, ok := e.Store.(RunStore); ok {
		if err := runs.SaveRun(ctx, report); err != nil {
			e.logger().Error("save run", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	return report
}

// targetEmployees is the single employee when one is named, otherwise every
// employee with a contract in range.
func (e *Engine) targetEmployees(ctx context.Context, id EmployeeID, r DateRange) ([]EmployeeID, error) {
	if id != "" {
		return []EmployeeID{id}, nil
	}
	employees, err := e.Store.ActiveEmployees(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return employees, nil
}

// forEachEmployee runs fn for every employee on a bounded worker group and
// records the outcome. fn returns every failure it hit; none means processed.
func (e *Engine) forEachEmployee(ctx context.Context, report *BatchReport, employees []EmployeeID, fn func(context.Context, EmployeeID) []error) {
	var g errgroup.Group
	g.SetLimit(e.concurrency())

	for _, id := range employees {
		id := id
		g.Go(func() error {
			var errs []error
			if err := ctx.Err(); err != nil {
				errs = []error{&TransactionError{EmployeeID: id, Step: report.Step, Err: err}}
			} else {
				errs = fn(ctx, id)
			}

			if len(errs) == 0 {
				report.addProcessed(id)
				return nil
			}
			for _, err := range errs {
				f := failureFor(id, err)
				report.addFailure(f)
				e.logger().Error("employee failed",
					zap.String("run_id", report.RunID),
					zap.String("step", string(report.Step)),
					zap.String("employee_id", string(id)),
					zap.String("kind", string(f.Kind)),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// inTx runs fn in one store transaction. Store failures come back as
// *TransactionError; consistency failures pass through unchanged.
func (e *Engine) inTx(ctx context.Context, id EmployeeID, step Step, fn func(Store) error) error {
	err := e.Store.WithTx(ctx, fn)
	if err == nil || errors.Is(err, ErrConsistency) {
		return err
	}
	var terr *TransactionError
	if errors.As(err, &terr) {
		return err
	}
	return &TransactionError{EmployeeID: id, Step: step, Err: err}
}

func failureFor(id EmployeeID, err error) EmployeeFailure {
	f := EmployeeFailure{EmployeeID: id, Kind: classify(err), Message: err.Error()}
	var werr *WeekError
	if errors.As(err, &werr) {
		ws := werr.WeekStart
		f.WeekStart = &ws
	}
	return f
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for size > 0 && len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

func (e *Engine) concurrency() int {
	if e.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return e.Concurrency
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now().UTC()
}
