// Package store provides in-memory attendance.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	contracts map[attendance.EmployeeID][]attendance.EmployeeContract
	intervals map[attendance.EmployeeID][]attendance.WorkInterval
	daily     map[string]attendance.DailyRecord
	monthly   map[string]attendance.MonthlyRecord
	runs      []*attendance.BatchReport
}

func NewMemory() *Memory {
	return &Memory{
		contracts: make(map[attendance.EmployeeID][]attendance.EmployeeContract),
		intervals: make(map[attendance.EmployeeID][]attendance.WorkInterval),
		daily:     make(map[string]attendance.DailyRecord),
		monthly:   make(map[string]attendance.MonthlyRecord),
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) SaveContract(_ context.Context, c attendance.EmployeeContract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.contracts[c.EmployeeID]
	for i := range list {
		if list[i].ID == c.ID {
			list[i] = c
			return nil
		}
	}
	m.contracts[c.EmployeeID] = append(list, c)
	return nil
}

func (m *Memory) ListContracts(_ context.Context, employeeID attendance.EmployeeID) ([]attendance.EmployeeContract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := append([]attendance.EmployeeContract{}, m.contracts[employeeID]...)
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	return result, nil
}

func (m *Memory) SaveWorkInterval(_ context.Context, w attendance.WorkInterval) error {
	if err := w.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteIntervalLocked(w.ID)
	m.intervals[w.EmployeeID] = append(m.intervals[w.EmployeeID], w)
	return nil
}

func (m *Memory) DeleteWorkInterval(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.deleteIntervalLocked(id) {
		return fmt.Errorf("work interval %s: %w", id, attendance.ErrRecordNotFound)
	}
	return nil
}

func (m *Memory) deleteIntervalLocked(id string) bool {
	for emp, list := range m.intervals {
		for i := range list {
			if list[i].ID == id {
				m.intervals[emp] = append(list[:i:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

// =============================================================================
// attendance.Store
// =============================================================================

func (m *Memory) ResolveContracts(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.EmployeeContract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveContractsLocked(employeeID, from, to), nil
}

func (m *Memory) ActiveEmployees(_ context.Context, from, to attendance.Date) ([]attendance.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeEmployeesLocked(from, to), nil
}

func (m *Memory) ResolveWorkIntervals(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.WorkInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveIntervalsLocked(employeeID, from, to), nil
}

func (m *Memory) DeleteDailyRecords(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteDailyLocked(employeeID, from, to, limit), nil
}

func (m *Memory) WriteDailyRecords(_ context.Context, records []attendance.DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeDailyLocked(records)
	return nil
}

func (m *Memory) LoadDailyRecords(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadDailyLocked(employeeID, from, to), nil
}

func (m *Memory) PatchWeeklyOvertime(_ context.Context, patches []attendance.OvertimePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patchLocked(patches)
}

func (m *Memory) WriteMonthlyRecord(_ context.Context, record attendance.MonthlyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monthly[record.Key()] = record
	return nil
}

func (m *Memory) LoadMonthlyRecord(_ context.Context, employeeID attendance.EmployeeID, month attendance.Month) (*attendance.MonthlyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadMonthlyLocked(employeeID, month), nil
}

// =============================================================================
// attendance.RunStore
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, report *attendance.BatchReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, report)
	return nil
}

// ListRuns returns the most recent runs first.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]*attendance.BatchReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*attendance.BatchReport, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, m.runs[i])
	}
	return result, nil
}

// =============================================================================
// LOCKED HELPERS - Caller holds mu
// =============================================================================

func (m *Memory) resolveContractsLocked(employeeID attendance.EmployeeID, from, to attendance.Date) []attendance.EmployeeContract {
	r := attendance.DateRange{From: from, To: to}
	var result []attendance.EmployeeContract
	var before *attendance.EmployeeContract
	for i, c := range m.contracts[employeeID] {
		switch {
		case c.Overlaps(r):
			result = append(result, c)
		case c.StartDate.Before(from) && (before == nil || before.StartDate.Before(c.StartDate)):
			before = &m.contracts[employeeID][i]
		}
	}
	if before != nil {
		result = append(result, *before)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	return result
}

func (m *Memory) activeEmployeesLocked(from, to attendance.Date) []attendance.EmployeeID {
	r := attendance.DateRange{From: from, To: to}
	var result []attendance.EmployeeID
	for emp, list := range m.contracts {
		for _, c := range list {
			if c.Overlaps(r) {
				result = append(result, emp)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (m *Memory) resolveIntervalsLocked(employeeID attendance.EmployeeID, from, to attendance.Date) []attendance.WorkInterval {
	r := attendance.DateRange{From: from, To: to}
	var result []attendance.WorkInterval
	for _, w := range m.intervals[employeeID] {
		if r.Contains(w.Date) {
			result = append(result, w)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result
}

// deleteDailyLocked removes up to limit matching records, oldest first.
func (m *Memory) deleteDailyLocked(employeeID attendance.EmployeeID, from, to attendance.Date, limit int) int {
	r := attendance.DateRange{From: from, To: to}
	var keys []string
	for k, rec := range m.daily {
		if (employeeID == "" || rec.EmployeeID == employeeID) && r.Contains(rec.Date) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	for _, k := range keys {
		delete(m.daily, k)
	}
	return len(keys)
}

func (m *Memory) writeDailyLocked(records []attendance.DailyRecord) {
	for _, rec := range records {
		m.daily[rec.Key()] = rec
	}
}

func (m *Memory) loadDailyLocked(employeeID attendance.EmployeeID, from, to attendance.Date) []attendance.DailyRecord {
	result := []attendance.DailyRecord{}
	for d := from; !d.After(to); d = d.AddDays(1) {
		if rec, ok := m.daily[string(employeeID)+":"+d.String()]; ok {
			result = append(result, rec)
		}
	}
	return result
}

// patchLocked checks every target exists before touching any of them.
func (m *Memory) patchLocked(patches []attendance.OvertimePatch) error {
	for _, p := range patches {
		k := string(p.EmployeeID) + ":" + p.Date.String()
		if _, ok := m.daily[k]; !ok {
			return fmt.Errorf("patch %s: %w", k, attendance.ErrRecordNotFound)
		}
	}
	for _, p := range patches {
		k := string(p.EmployeeID) + ":" + p.Date.String()
		rec := m.daily[k]
		rec.StatutoryOvertimeMinutes = p.StatutoryOvertimeMinutes
		rec.NonStatutoryOvertimeMinutes = p.NonStatutoryOvertimeMinutes
		m.daily[k] = rec
	}
	return nil
}

func (m *Memory) loadMonthlyLocked(employeeID attendance.EmployeeID, month attendance.Month) *attendance.MonthlyRecord {
	rec, ok := m.monthly[string(employeeID)+":"+month.String()]
	if !ok {
		return nil
	}
	return &rec
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are serialized by the write lock.
func (tm *TxMemory) WithTx(_ context.Context, fn func(attendance.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

// Only the derived records change inside a transaction.
type memorySnapshot struct {
	daily   map[string]attendance.DailyRecord
	monthly map[string]attendance.MonthlyRecord
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		daily:   make(map[string]attendance.DailyRecord, len(tm.daily)),
		monthly: make(map[string]attendance.MonthlyRecord, len(tm.monthly)),
	}
	for k, v := range tm.daily {
		s.daily[k] = v
	}
	for k, v := range tm.monthly {
		s.monthly[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.daily = s.daily
	tm.monthly = s.monthly
}

// txMemoryView reads and writes the parent directly; WithTx holds the lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) ResolveContracts(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.EmployeeContract, error) {
	return tv.parent.resolveContractsLocked(employeeID, from, to), nil
}

func (tv *txMemoryView) ActiveEmployees(_ context.Context, from, to attendance.Date) ([]attendance.EmployeeID, error) {
	return tv.parent.activeEmployeesLocked(from, to), nil
}

func (tv *txMemoryView) ResolveWorkIntervals(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.WorkInterval, error) {
	return tv.parent.resolveIntervalsLocked(employeeID, from, to), nil
}

func (tv *txMemoryView) DeleteDailyRecords(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date, limit int) (int, error) {
	return tv.parent.deleteDailyLocked(employeeID, from, to, limit), nil
}

func (tv *txMemoryView) WriteDailyRecords(_ context.Context, records []attendance.DailyRecord) error {
	tv.parent.writeDailyLocked(records)
	return nil
}

func (tv *txMemoryView) LoadDailyRecords(_ context.Context, employeeID attendance.EmployeeID, from, to attendance.Date) ([]attendance.DailyRecord, error) {
	return tv.parent.loadDailyLocked(employeeID, from, to), nil
}

func (tv *txMemoryView) PatchWeeklyOvertime(_ context.Context, patches []attendance.OvertimePatch) error {
	return tv.parent.patchLocked(patches)
}

func (tv *txMemoryView) WriteMonthlyRecord(_ context.Context, record attendance.MonthlyRecord) error {
	tv.parent.monthly[record.Key()] = record
	return nil
}

func (tv *txMemoryView) LoadMonthlyRecord(_ context.Context, employeeID attendance.EmployeeID, month attendance.Month) (*attendance.MonthlyRecord, error) {
	return tv.parent.loadMonthlyLocked(employeeID, month), nil
}
