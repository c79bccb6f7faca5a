package casework

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD IDENTIFIERS - ISO week and month keys for documentation records
// =============================================================================

// WeekID is an ISO-8601 week identifier, e.g. "2024-W01".
// Zero-padded so lexicographic order equals chronological order within a
// period type.
type WeekID string

// MonthID is a month identifier, e.g. "2024-01". Same ordering property.
type MonthID string

// PeriodType distinguishes week-keyed from month-keyed records in the
// history ledger.
type PeriodType string

const (
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// NewWeekID builds a WeekID from an ISO year and week number.
func NewWeekID(year, week int) WeekID {
	return WeekID(fmt.Sprintf("%04d-W%02d", year, week))
}

// NewMonthID builds a MonthID from a year and month.
func NewMonthID(year int, month time.Month) MonthID {
	return MonthID(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// WeekIDOf returns the ISO week containing t.
func WeekIDOf(t time.Time) WeekID {
	year, week := t.ISOWeek()
	return NewWeekID(year, week)
}

// MonthIDOf returns the month containing t.
func MonthIDOf(t time.Time) MonthID {
	return NewMonthID(t.Year(), t.Month())
}

// ParseWeekID validates and decomposes a week id.
func ParseWeekID(id WeekID) (year, week int, err error) {
	n, err := fmt.Sscanf(string(id), "%4d-W%2d", &year, &week)
	if err != nil || n != 2 || len(id) != 8 {
		return 0, 0, fmt.Errorf("%w: %q is not a week id (want YYYY-Www)", ErrInvalidPeriodID, id)
	}
	// ISO years have 52 or 53 weeks; 53 is valid only for long years, but the
	// upstream Visma export already guarantees that, so we only bound-check.
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("%w: week %d out of range", ErrInvalidPeriodID, week)
	}
	return year, week, nil
}

// ParseMonthID validates and decomposes a month id.
func ParseMonthID(id MonthID) (year int, month time.Month, err error) {
	var m int
	n, err := fmt.Sscanf(string(id), "%4d-%2d", &year, &m)
	if err != nil || n != 2 || len(id) != 7 {
		return 0, 0, fmt.Errorf("%w: %q is not a month id (want YYYY-MM)", ErrInvalidPeriodID, id)
	}
	if m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriodID, m)
	}
	return year, time.Month(m), nil
}

// ValidPeriodID reports whether id is well-formed for the given period type.
func ValidPeriodID(pt PeriodType, id string) bool {
	switch pt {
	case PeriodWeek:
		_, _, err := ParseWeekID(WeekID(id))
		return err == nil
	case PeriodMonth:
		_, _, err := ParseMonthID(MonthID(id))
		return err == nil
	default:
		return false
	}
}
