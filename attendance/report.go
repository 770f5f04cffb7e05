package attendance

import (
	"sort"
	"sync"
	"time"
)

// Step names a phase of the pipeline.
type Step string

const (
	StepDaily   Step = "daily"
	StepWeekly  Step = "weekly"
	StepMonthly Step = "monthly"
)

type FailureKind string

const (
	FailureTransaction     FailureKind = "transaction_failure"
	FailureConsistency     FailureKind = "consistency_failure"
	FailureInvalidArgument FailureKind = "invalid_argument"
)

type WarningKind string

const (
	WarningOverlappingContracts WarningKind = "overlapping_contracts"
	WarningNoApplicableContract WarningKind = "no_applicable_contract"
)

// EmployeeFailure is one employee (and, for the weekly step, one week) that
// could not be processed. Re-invoking the same call is the retry.
type EmployeeFailure struct {
	EmployeeID EmployeeID  `json:"employee_id"`
	WeekStart  *Date       `json:"week_start,omitempty"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
}

// DataIntegrityWarning is reported but never stops the batch.
type DataIntegrityWarning struct {
	EmployeeID EmployeeID  `json:"employee_id"`
	Date       Date        `json:"date"`
	Kind       WarningKind `json:"kind"`
	Message    string      `json:"message"`
}

// BatchReport summarises one engine call. Partial completion across
// employees is normal; see Failed.
type BatchReport struct {
	RunID       string
	Step        Step
	Range       DateRange
	Month       *Month
	EmployeeID  EmployeeID // empty = all active employees
	Processed   []EmployeeID
	Failed      []EmployeeFailure
	Warnings    []DataIntegrityWarning
	StartedAt   time.Time
	CompletedAt time.Time

	mu sync.Mutex
}

// Succeeded is true when no employee failed.
func (r *BatchReport) Succeeded() bool { return len(r.Failed) == 0 }

func (r *BatchReport) addProcessed(id EmployeeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed = append(r.Processed, id)
}

func (r *BatchReport) addFailure(f EmployeeFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, f)
}

func (r *BatchReport) addWarnings(ws []DataIntegrityWarning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, ws...)
}

// finish sorts everything so reports are stable regardless of worker order.
func (r *BatchReport) finish(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.Slice(r.Processed, func(i, j int) bool { return r.Processed[i] < r.Processed[j] })
	sort.SliceStable(r.Failed, func(i, j int) bool {
		a, b := r.Failed[i], r.Failed[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.WeekStart != nil && b.WeekStart != nil && a.WeekStart.Before(*b.WeekStart)
	})
	sort.SliceStable(r.Warnings, func(i, j int) bool {
		a, b := r.Warnings[i], r.Warnings[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.Date.Before(b.Date)
	})
	r.CompletedAt = now
}

// PipelineReport is returned by Engine.Recompute.
type PipelineReport struct {
	Daily   *BatchReport
	Weekly  *BatchReport
	Monthly []*BatchReport
}

// Succeeded is true when every phase succeeded.
func (p *PipelineReport) Succeeded() bool {
	if p.Daily == nil || !p.Daily.Succeeded() || p.Weekly == nil || !p.Weekly.Succeeded() {
		return false
	}
	for _, m := range p.Monthly {
		if !m.Succeeded() {
			return false
		}
	}
	return true
}
