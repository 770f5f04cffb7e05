/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Reference data:
    EmployeeDTO, CreateEmployeeRequest, ContractDTO (wraps factory.ContractJSON),
    WorkIntervalDTO, CreateWorkIntervalRequest

  Results:
    DailyRecordDTO, MonthlyRecordDTO, HoursDTO

  Batch:
    RecomputeRequest, BatchReportDTO, PipelineReportDTO

HOURS:
  Every minute total is also exposed as decimal hours rounded to two places
  (attendance.Hours), the unit payroll exports expect.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toEmployeeDTO(e sqlite.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: e.ID, Name: e.Name, Email: e.Email}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// ContractDTO is the factory JSON shape; the regulation is embedded.
type ContractDTO = factory.ContractJSON

type WorkIntervalDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	EndAtNextDay bool   `json:"end_at_next_day"`
	BreakMinutes int    `json:"break_minutes"`
}

type CreateWorkIntervalRequest struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	EndAtNextDay bool   `json:"end_at_next_day"`
	BreakMinutes int    `json:"break_minutes"`
}

func (req CreateWorkIntervalRequest) toWorkInterval(employeeID string) (attendance.WorkInterval, error) {
	w := attendance.WorkInterval{
		ID:           req.ID,
		EmployeeID:   attendance.EmployeeID(employeeID),
		EndAtNextDay: req.EndAtNextDay,
		BreakMinutes: req.BreakMinutes,
	}
	var err error
	if w.Date, err = attendance.ParseDate(req.Date); err != nil {
		return w, &attendance.InvalidArgumentError{Field: "date", Value: req.Date, Reason: "expected YYYY-MM-DD"}
	}
	if w.StartTime, err = attendance.ParseClockTime(req.StartTime); err != nil {
		return w, err
	}
	if w.EndTime, err = attendance.ParseClockTime(req.EndTime); err != nil {
		return w, err
	}
	return w, w.Validate()
}

func toWorkIntervalDTO(w attendance.WorkInterval) WorkIntervalDTO {
	return WorkIntervalDTO{
		ID:           w.ID,
		EmployeeID:   string(w.EmployeeID),
		Date:         w.Date.String(),
		StartTime:    w.StartTime.String(),
		EndTime:      w.EndTime.String(),
		EndAtNextDay: w.EndAtNextDay,
		BreakMinutes: w.BreakMinutes,
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// HoursDTO repeats the headline minute totals as decimal hours.
type HoursDTO struct {
	TotalWorking         decimal.Decimal `json:"total_working"`
	ScheduledWorking     decimal.Decimal `json:"scheduled_working"`
	NonScheduledWorking  decimal.Decimal `json:"non_scheduled_working"`
	StatutoryOvertime    decimal.Decimal `json:"statutory_overtime"`
	NonStatutoryOvertime decimal.Decimal `json:"non_statutory_overtime"`
	HolidayWorking       decimal.Decimal `json:"holiday_working"`
	NighttimeWorking     decimal.Decimal `json:"nighttime_working"`
}

type DailyRecordDTO struct {
	EmployeeID            string   `json:"employee_id"`
	Date                  string   `json:"date"`
	DayType               string   `json:"day_type"`
	IsNextDayLegalHoliday bool     `json:"is_next_day_legal_holiday"`
	ContractIDs           []string `json:"contract_ids"`
	IntervalIDs           []string `json:"interval_ids"`
	StartTime             string   `json:"start_time,omitempty"`
	EndTime               string   `json:"end_time,omitempty"`
	BreakMinutes          int      `json:"break_minutes"`

	TotalWorkingMinutes         int `json:"total_working_minutes"`
	CurrentDayWorkingMinutes    int `json:"current_day_working_minutes"`
	NextDayWorkingMinutes       int `json:"next_day_working_minutes"`
	ScheduledWorkMinutes        int `json:"scheduled_work_minutes"`
	ScheduledWorkingMinutes     int `json:"scheduled_working_minutes"`
	NonScheduledWorkingMinutes  int `json:"non_scheduled_working_minutes"`
	StatutoryOvertimeMinutes    int `json:"statutory_overtime_minutes"`
	NonStatutoryOvertimeMinutes int `json:"non_statutory_overtime_minutes"`
	HolidayWorkingMinutes       int `json:"holiday_working_minutes"`
	NighttimeWorkingMinutes     int `json:"nighttime_working_minutes"`

	Hours HoursDTO `json:"hours"`
}

func toDailyRecordDTO(r attendance.DailyRecord) DailyRecordDTO {
	dto := DailyRecordDTO{
		EmployeeID:                  string(r.EmployeeID),
		Date:                        r.Date.String(),
		DayType:                     string(r.DayType),
		IsNextDayLegalHoliday:       r.IsNextDayLegalHoliday,
		ContractIDs:                 nonNil(r.ContractIDs),
		IntervalIDs:                 nonNil(r.IntervalIDs),
		BreakMinutes:                r.BreakMinutes,
		TotalWorkingMinutes:         r.TotalWorkingMinutes,
		CurrentDayWorkingMinutes:    r.CurrentDayWorkingMinutes,
		NextDayWorkingMinutes:       r.NextDayWorkingMinutes,
		ScheduledWorkMinutes:        r.ScheduledWorkMinutes,
		ScheduledWorkingMinutes:     r.ScheduledWorkingMinutes,
		NonScheduledWorkingMinutes:  r.NonScheduledWorkingMinutes,
		StatutoryOvertimeMinutes:    r.StatutoryOvertimeMinutes,
		NonStatutoryOvertimeMinutes: r.NonStatutoryOvertimeMinutes,
		HolidayWorkingMinutes:       r.HolidayWorkingMinutes,
		NighttimeWorkingMinutes:     r.NighttimeWorkingMinutes,
		Hours: HoursDTO{
			TotalWorking:         attendance.Hours(r.TotalWorkingMinutes),
			ScheduledWorking:     attendance.Hours(r.ScheduledWorkingMinutes),
			NonScheduledWorking:  attendance.Hours(r.NonScheduledWorkingMinutes),
			StatutoryOvertime:    attendance.Hours(r.StatutoryOvertimeMinutes),
			NonStatutoryOvertime: attendance.Hours(r.NonStatutoryOvertimeMinutes),
			HolidayWorking:       attendance.Hours(r.HolidayWorkingMinutes),
			NighttimeWorking:     attendance.Hours(r.NighttimeWorkingMinutes),
		},
	}
	if r.StartTime != nil {
		dto.StartTime = r.StartTime.Format(time.RFC3339)
	}
	if r.EndTime != nil {
		dto.EndTime = r.EndTime.Format(time.RFC3339)
	}
	return dto
}

type MonthlyRecordDTO struct {
	EmployeeID string `json:"employee_id"`
	Month      string `json:"month"`

	BreakMinutes                int `json:"break_minutes"`
	TotalWorkingMinutes         int `json:"total_working_minutes"`
	CurrentDayWorkingMinutes    int `json:"current_day_working_minutes"`
	NextDayWorkingMinutes       int `json:"next_day_working_minutes"`
	ScheduledWorkMinutes        int `json:"scheduled_work_minutes"`
	ScheduledWorkingMinutes     int `json:"scheduled_working_minutes"`
	NonScheduledWorkingMinutes  int `json:"non_scheduled_working_minutes"`
	StatutoryOvertimeMinutes    int `json:"statutory_overtime_minutes"`
	NonStatutoryOvertimeMinutes int `json:"non_statutory_overtime_minutes"`
	HolidayWorkingMinutes       int `json:"holiday_working_minutes"`
	NighttimeWorkingMinutes     int `json:"nighttime_working_minutes"`

	TotalWorkingDays             int `json:"total_working_days"`
	TotalScheduledWorkDays       int `json:"total_scheduled_work_days"`
	TotalScheduledWorkingDays    int `json:"total_scheduled_working_days"`
	TotalNonScheduledWorkingDays int `json:"total_non_scheduled_working_days"`
	HolidayWorkingDays           int `json:"holiday_working_days"`

	Hours HoursDTO `json:"hours"`

	Records []DailyRecordDTO `json:"records"`
	Prev    []DailyRecordDTO `json:"prev"`
	Next    []DailyRecordDTO `json:"next"`
}

func toMonthlyRecordDTO(m attendance.MonthlyRecord) MonthlyRecordDTO {
	return MonthlyRecordDTO{
		EmployeeID:                   string(m.EmployeeID),
		Month:                        m.Month.String(),
		BreakMinutes:                 m.BreakMinutes,
		TotalWorkingMinutes:          m.TotalWorkingMinutes,
		CurrentDayWorkingMinutes:     m.CurrentDayWorkingMinutes,
		NextDayWorkingMinutes:        m.NextDayWorkingMinutes,
		ScheduledWorkMinutes:         m.ScheduledWorkMinutes,
		ScheduledWorkingMinutes:      m.ScheduledWorkingMinutes,
		NonScheduledWorkingMinutes:   m.NonScheduledWorkingMinutes,
		StatutoryOvertimeMinutes:     m.StatutoryOvertimeMinutes,
		NonStatutoryOvertimeMinutes:  m.NonStatutoryOvertimeMinutes,
		HolidayWorkingMinutes:        m.HolidayWorkingMinutes,
		NighttimeWorkingMinutes:      m.NighttimeWorkingMinutes,
		TotalWorkingDays:             m.TotalWorkingDays,
		TotalScheduledWorkDays:       m.TotalScheduledWorkDays,
		TotalScheduledWorkingDays:    m.TotalScheduledWorkingDays,
		TotalNonScheduledWorkingDays: m.TotalNonScheduledWorkingDays,
		HolidayWorkingDays:           m.HolidayWorkingDays,
		Hours: HoursDTO{
			TotalWorking:         attendance.Hours(m.TotalWorkingMinutes),
			ScheduledWorking:     attendance.Hours(m.ScheduledWorkingMinutes),
			NonScheduledWorking:  attendance.Hours(m.NonScheduledWorkingMinutes),
			StatutoryOvertime:    attendance.Hours(m.StatutoryOvertimeMinutes),
			NonStatutoryOvertime: attendance.Hours(m.NonStatutoryOvertimeMinutes),
			HolidayWorking:       attendance.Hours(m.HolidayWorkingMinutes),
			NighttimeWorking:     attendance.Hours(m.NighttimeWorkingMinutes),
		},
		Records: toDailyRecordDTOs(m.Records),
		Prev:    toDailyRecordDTOs(m.Prev),
		Next:    toDailyRecordDTOs(m.Next),
	}
}

func toDailyRecordDTOs(records []attendance.DailyRecord) []DailyRecordDTO {
	dtos := make([]DailyRecordDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, toDailyRecordDTO(r))
	}
	return dtos
}

// =============================================================================
// BATCH
// =============================================================================

// RecomputeRequest is the body of every recompute endpoint. Range endpoints
// read from/to, the monthly endpoint reads month.
type RecomputeRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Month      string `json:"month"`
	EmployeeID string `json:"employee_id"`
}

type BatchReportDTO struct {
	RunID       string                            `json:"run_id"`
	Step        string                            `json:"step"`
	From        string                            `json:"from,omitempty"`
	To          string                            `json:"to,omitempty"`
	Month       string                            `json:"month,omitempty"`
	EmployeeID  string                            `json:"employee_id,omitempty"`
	Succeeded   bool                              `json:"succeeded"`
	Processed   []attendance.EmployeeID           `json:"processed"`
	Failed      []attendance.EmployeeFailure      `json:"failed"`
	Warnings    []attendance.DataIntegrityWarning `json:"warnings"`
	StartedAt   string                            `json:"started_at"`
	CompletedAt string                            `json:"completed_at,omitempty"`
}

func toBatchReportDTO(r *attendance.BatchReport) BatchReportDTO {
	dto := BatchReportDTO{
		RunID:      r.RunID,
		Step:       string(r.Step),
		EmployeeID: string(r.EmployeeID),
		Succeeded:  r.Succeeded(),
		Processed:  r.Processed,
		Failed:     r.Failed,
		Warnings:   r.Warnings,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
	}
	if !r.Range.From.IsZero() {
		dto.From = r.Range.From.String()
		dto.To = r.Range.To.String()
	}
	if r.Month != nil {
		dto.Month = r.Month.String()
	}
	if !r.CompletedAt.IsZero() {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

type PipelineReportDTO struct {
	Succeeded bool             `json:"succeeded"`
	Daily     *BatchReportDTO  `json:"daily,omitempty"`
	Weekly    *BatchReportDTO  `json:"weekly,omitempty"`
	Monthly   []BatchReportDTO `json:"monthly"`
}

func toPipelineReportDTO(p *attendance.PipelineReport) PipelineReportDTO {
	dto := PipelineReportDTO{Succeeded: p.Succeeded(), Monthly: []BatchReportDTO{}}
	if p.Daily != nil {
		d := toBatchReportDTO(p.Daily)
		dto.Daily = &d
	}
	if p.Weekly != nil {
		w := toBatchReportDTO(p.Weekly)
		dto.Weekly = &w
	}
	for _, m := range p.Monthly {
		dto.Monthly = append(dto.Monthly, toBatchReportDTO(m))
	}
	return dto
}

// =============================================================================
// MISC
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Month       string `json:"month"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
