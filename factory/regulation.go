/*
Package factory provides JSON to Go conversion for work regulations and
employee contracts.

PURPOSE:
  Converts JSON regulation and contract definitions into
  attendance.WorkRegulation and attendance.EmployeeContract. HR defines
  working patterns in JSON (admin UI, API, seed files) and the factory
  builds validated Go values.

JSON SCHEMA:
  {
    "id": "reg-standard",
    "name": "Standard office week",
    "scheduled_work_days": ["mon", "tue", "wed", "thu", "fri"],
    "legal_holiday": "sun",
    "start_time": "09:00",
    "end_time": "18:00",
    "break_minutes": 60
  }

  A contract embeds its regulation:
  {
    "id": "c-emp-1",
    "employee_id": "emp-1",
    "start_date": "2025-01-01",
    "expired_date": "2025-12-31",
    "regulation": { ... }
  }

USAGE:
  f := factory.NewRegulationFactory()
  reg, err := f.ParseRegulation(factory.StandardWeekJSON("reg-std", "Standard"))
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RegulationJSON is the JSON representation of a work regulation.
type RegulationJSON struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	ScheduledWorkDays []string `json:"scheduled_work_days"`
	LegalHoliday      string   `json:"legal_holiday,omitempty"` // empty = none
	StartTime         string   `json:"start_time"`
	EndTime           string   `json:"end_time"`
	BreakMinutes      int      `json:"break_minutes"`
}

// ContractJSON is the JSON representation of an employee contract.
type ContractJSON struct {
	ID          string         `json:"id"`
	EmployeeID  string         `json:"employee_id"`
	StartDate   string         `json:"start_date"`
	ExpiredDate string         `json:"expired_date,omitempty"` // empty = open-ended
	Regulation  RegulationJSON `json:"regulation"`
}

// =============================================================================
// REGULATION FACTORY
// =============================================================================

// RegulationFactory converts JSON regulations and contracts to Go structs.
type RegulationFactory struct{}

func NewRegulationFactory() *RegulationFactory {
	return &RegulationFactory{}
}

// ParseRegulation parses a JSON string into a validated WorkRegulation.
func (f *RegulationFactory) ParseRegulation(jsonStr string) (attendance.WorkRegulation, error) {
	var rj RegulationJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return attendance.WorkRegulation{}, &attendance.InvalidArgumentError{
			Field: "regulation", Reason: fmt.Sprintf("malformed JSON: %v", err),
		}
	}
	return f.FromJSON(rj)
}

// FromJSON converts RegulationJSON to a validated WorkRegulation.
func (f *RegulationFactory) FromJSON(rj RegulationJSON) (attendance.WorkRegulation, error) {
	reg := attendance.WorkRegulation{
		ID:           rj.ID,
		Name:         rj.Name,
		BreakMinutes: rj.BreakMinutes,
	}

	seen := make(map[time.Weekday]bool)
	for _, code := range rj.ScheduledWorkDays {
		wd, err := attendance.ParseWeekday(code)
		if err != nil {
			return reg, err
		}
		if !seen[wd] {
			seen[wd] = true
			reg.ScheduledWorkDays = append(reg.ScheduledWorkDays, wd)
		}
	}

	if rj.LegalHoliday != "" {
		wd, err := attendance.ParseWeekday(rj.LegalHoliday)
		if err != nil {
			return reg, err
		}
		reg.LegalHoliday = &wd
	}

	var err error
	if reg.StartTime, err = attendance.ParseClockTime(rj.StartTime); err != nil {
		return reg, err
	}
	if reg.EndTime, err = attendance.ParseClockTime(rj.EndTime); err != nil {
		return reg, err
	}

	return reg, reg.Validate()
}

// ToJSON converts a WorkRegulation to RegulationJSON.
func (f *RegulationFactory) ToJSON(reg attendance.WorkRegulation) RegulationJSON {
	rj := RegulationJSON{
		ID:                reg.ID,
		Name:              reg.Name,
		ScheduledWorkDays: make([]string, 0, len(reg.ScheduledWorkDays)),
		StartTime:         reg.StartTime.String(),
		EndTime:           reg.EndTime.String(),
		BreakMinutes:      reg.BreakMinutes,
	}
	for _, wd := range reg.ScheduledWorkDays {
		rj.ScheduledWorkDays = append(rj.ScheduledWorkDays, attendance.WeekdayCode(wd))
	}
	if reg.LegalHoliday != nil {
		rj.LegalHoliday = attendance.WeekdayCode(*reg.LegalHoliday)
	}
	return rj
}

// ParseContract parses a JSON string into a validated EmployeeContract.
func (f *RegulationFactory) ParseContract(jsonStr string) (attendance.EmployeeContract, error) {
	var cj ContractJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return attendance.EmployeeContract{}, &attendance.InvalidArgumentError{
			Field: "contract", Reason: fmt.Sprintf("malformed JSON: %v", err),
		}
	}
	return f.ContractFromJSON(cj)
}

// ContractFromJSON converts ContractJSON to a validated EmployeeContract.
func (f *RegulationFactory) ContractFromJSON(cj ContractJSON) (attendance.EmployeeContract, error) {
	reg, err := f.FromJSON(cj.Regulation)
	if err != nil {
		return attendance.EmployeeContract{}, err
	}

	c := attendance.EmployeeContract{
		ID:         cj.ID,
		EmployeeID: attendance.EmployeeID(cj.EmployeeID),
		Regulation: reg,
	}
	if cj.StartDate == "" {
		return c, &attendance.InvalidArgumentError{Field: "contract.start_date", Value: cj.ID, Reason: "required"}
	}
	if c.StartDate, err = attendance.ParseDate(cj.StartDate); err != nil {
		return c, err
	}
	if cj.ExpiredDate != "" {
		d, err := attendance.ParseDate(cj.ExpiredDate)
		if err != nil {
			return c, err
		}
		c.ExpiredDate = &d
	}
	return c, c.Validate()
}

// ContractToJSON converts an EmployeeContract to ContractJSON.
func (f *RegulationFactory) ContractToJSON(c attendance.EmployeeContract) ContractJSON {
	cj := ContractJSON{
		ID:         c.ID,
		EmployeeID: string(c.EmployeeID),
		StartDate:  c.StartDate.String(),
		Regulation: f.ToJSON(c.Regulation),
	}
	if c.ExpiredDate != nil {
		cj.ExpiredDate = c.ExpiredDate.String()
	}
	return cj
}
