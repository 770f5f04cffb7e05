/*
errors.go - Error taxonomy for the attendance engine

ERROR CATEGORIES:
  1. InvalidArgument       - malformed range/month; rejected before any read
  2. DataIntegrityWarning  - overlapping contracts, day without contract;
                             reported, never fatal (see report.go)
  3. TransactionFailure    - store transaction aborted for one employee
  4. ConsistencyFailure    - a week is missing day records during reallocation

Batch operations collect 3 and 4 per employee in the BatchReport and only
return InvalidArgument (or a failure that prevents any employee from being
processed) as the call error.
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidArgument = errors.New("invalid argument")

	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConsistency is returned when a step finds fewer records than an
	// earlier step should have produced.
	ErrConsistency = errors.New("consistency failure")

	ErrNoApplicableContract = errors.New("no applicable contract")

	ErrOverlappingContracts = errors.New("overlapping contracts")

	ErrRecordNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type InvalidArgumentError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// ConsistencyError reports a week that could not be reallocated.
type ConsistencyError struct {
	EmployeeID EmployeeID
	WeekStart  Date
	Expected   int
	Found      int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("week %s for %s: expected %d daily records, found %d",
		e.WeekStart, e.EmployeeID, e.Expected, e.Found)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// TransactionError wraps a store failure for one employee and step.
type TransactionError struct {
	EmployeeID EmployeeID
	Step       Step
	Err        error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Step, e.EmployeeID, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransactionFailed, e.Err} }

// WeekError ties a weekly-step failure to the week it happened in.
type WeekError struct {
	WeekStart Date
	Err       error
}

func (e *WeekError) Error() string {
	return fmt.Sprintf("week of %s: %v", e.WeekStart, e.Err)
}

func (e *WeekError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the caller sent bad input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsRetryable returns true if re-invoking the same call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) || errors.Is(err, ErrConsistency)
}

// classify maps an error to the failure kind recorded in reports.
func classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrConsistency):
		return FailureConsistency
	case errors.Is(err, ErrInvalidArgument):
		return FailureInvalidArgument
	default:
		return FailureTransaction
	}
}
