package ledger

import "time"

const dateLayout = "2006-01-02"

// Period is the service period a payment covers. The zero value means no period.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod builds a period truncated to calendar dates in UTC
func NewPeriod(start, end time.Time) Period {
	return Period{Start: truncateDate(start), End: truncateDate(end)}
}

// IsZero reports whether no period was given
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// IsComplete reports whether both bounds are present
func (p Period) IsComplete() bool {
	return !p.Start.IsZero() && !p.End.IsZero()
}

// Validate checks ordering of the bounds. Arrears periods additionally must not start after today.
func (p Period) Validate(arrears bool, today time.Time) error {
	if p.IsZero() {
		if arrears {
			return ErrPeriodRequired
		}
		return nil
	}
	if !p.IsComplete() {
		return ErrPeriodIncomplete
	}
	if truncateDate(p.Start).After(truncateDate(p.End)) {
		return ErrPeriodStartAfterEnd
	}
	if arrears && truncateDate(p.Start).After(truncateDate(today)) {
		return ErrPeriodInFuture
	}
	return nil
}

// Contains reports whether t falls within the period, inclusive, by calendar date
func (p Period) Contains(t time.Time) bool {
	if !p.IsComplete() {
		return false
	}
	d := truncateDate(t)
	return !d.Before(truncateDate(p.Start)) && !d.After(truncateDate(p.End))
}

// String formats the period as "start..end"
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Start.Format(dateLayout) + ".." + p.End.Format(dateLayout)
}

func truncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
