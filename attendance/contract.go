package attendance

import (
	"sort"
)

// =============================================================================
// EMPLOYEE CONTRACT - Effective-dated link to a work regulation
// =============================================================================

// EmployeeContract links an employee to a regulation for [StartDate,
// ExpiredDate]. ExpiredDate nil means open-ended.
type EmployeeContract struct {
	ID          string
	EmployeeID  EmployeeID
	StartDate   Date
	ExpiredDate *Date
	Regulation  WorkRegulation
}

// IsActive returns true if the contract is in effect on d.
func (c EmployeeContract) IsActive(d Date) bool {
	if d.Before(c.StartDate) {
		return false
	}
	if c.ExpiredDate != nil && d.After(*c.ExpiredDate) {
		return false
	}
	return true
}

// Validate rejects contracts the engine cannot resolve.
func (c EmployeeContract) Validate() error {
	switch {
	case c.ID == "":
		return &InvalidArgumentError{Field: "contract.id", Reason: "required"}
	case c.EmployeeID == "":
		return &InvalidArgumentError{Field: "contract.employee_id", Value: c.ID, Reason: "required"}
	case c.StartDate.IsZero():
		return &InvalidArgumentError{Field: "contract.start_date", Value: c.ID, Reason: "required"}
	case c.ExpiredDate != nil && c.ExpiredDate.Before(c.StartDate):
		return &InvalidArgumentError{Field: "contract.expired_date", Value: c.ExpiredDate.String(), Reason: "before start date"}
	}
	return c.Regulation.Validate()
}

// Overlaps reports whether the contract is in effect on any day of r.
func (c EmployeeContract) Overlaps(r DateRange) bool {
	if c.StartDate.After(r.To) {
		return false
	}
	return c.ExpiredDate == nil || !c.ExpiredDate.Before(r.From)
}

// =============================================================================
// CONTRACT INDEX - Pre-fetched, sorted lookup per employee
// =============================================================================

// ContractIndex answers "which contract applies on date d" for one
// employee without store round-trips. Contracts are sorted by StartDate,
// then ID, so the search is a binary search plus a short backward scan.
type ContractIndex struct {
	contracts []EmployeeContract
}

// Resolution is the outcome of a lookup.
type Resolution struct {
	Contract *EmployeeContract
	// Overlap is set when more than one contract applies; Contract is then
	// the one with the latest StartDate, ties broken by the highest ID.
	Overlap bool
}

func NewContractIndex(contracts []EmployeeContract) *ContractIndex {
	sorted := make([]EmployeeContract, len(contracts))
	copy(sorted, contracts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &ContractIndex{contracts: sorted}
}

func (ix *ContractIndex) Len() int { return len(ix.contracts) }

// Resolve returns the applicable contract on d.
func (ix *ContractIndex) Resolve(d Date) Resolution {
	// First contract starting after d; everything before it is a candidate.
	i := sort.Search(len(ix.contracts), func(i int) bool {
		return ix.contracts[i].StartDate.After(d)
	})

	var res Resolution
	for j := i - 1; j >= 0; j-- {
		c := ix.contracts[j]
		if !c.IsActive(d) {
			continue
		}
		if res.Contract != nil {
			res.Overlap = true
			break
		}
		res.Contract = &ix.contracts[j]
	}
	return res
}

// DayTypeOn classifies d against the contract applying on d.
func (ix *ContractIndex) DayTypeOn(d Date) DayType {
	return ClassifyDay(ix.Resolve(d).Contract, d)
}

// ClassifyDay applies the day-type state machine.
func ClassifyDay(c *EmployeeContract, d Date) DayType {
	switch {
	case c == nil:
		return DayUndefined
	case c.Regulation.IsScheduledWorkDay(d.Weekday()):
		return DayScheduled
	case c.Regulation.IsLegalHoliday(d.Weekday()):
		return DayLegalHoliday
	default:
		return DayNonStatutoryHoliday
	}
}
