package attendance

// =============================================================================
// DATE RANGE - Inclusive [From, To]
// =============================================================================

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From Date
	To   Date
}

// Validate rejects zero bounds and inverted ranges.
func (r DateRange) Validate() error {
	if r.From.IsZero() {
		return &InvalidArgumentError{Field: "from", Reason: "required"}
	}
	if r.To.IsZero() {
		return &InvalidArgumentError{Field: "to", Reason: "required"}
	}
	if r.From.After(r.To) {
		return &InvalidArgumentError{Field: "from", Value: r.From.String(), Reason: "after to " + r.To.String()}
	}
	return nil
}

// Contains returns true if d is within [From, To].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.From) && d.BeforeOrEqual(r.To)
}

// Overlaps reports whether the two ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.To.Before(o.From) && !o.To.Before(r.From)
}

// Len returns the number of days in the range.
func (r DateRange) Len() int {
	return DaysBetween(r.From, r.To) + 1
}

// Days returns every day in the range in order.
func (r DateRange) Days() []Date {
	days := make([]Date, 0, r.Len())
	for d := r.From; d.BeforeOrEqual(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// FullWeeks widens the range to whole Monday..Sunday weeks.
func (r DateRange) FullWeeks() DateRange {
	return DateRange{From: r.From.StartOfWeek(), To: r.To.EndOfWeek()}
}

// Weeks returns the Monday..Sunday weeks touching the range, in order.
func (r DateRange) Weeks() []DateRange {
	var weeks []DateRange
	for ws := r.From.StartOfWeek(); ws.BeforeOrEqual(r.To); ws = ws.AddDays(7) {
		weeks = append(weeks, DateRange{From: ws, To: ws.AddDays(6)})
	}
	return weeks
}

// Months returns the calendar months touching the range, in order.
func (r DateRange) Months() []Month {
	var months []Month
	last := r.To.CalendarMonth()
	for m := r.From.CalendarMonth(); ; m = m.Next() {
		months = append(months, m)
		if m == last {
			break
		}
	}
	return months
}

func (r DateRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}
