package core

import (
	"strings"
	"time"
)

// FilterByPeriod keeps the records whose start date lies in [from, to],
// preserving input order. The end date of a record is not considered, so a
// night shift starting the day before the window is excluded even though it
// ends inside it.
func FilterByPeriod(records []ShiftRecord, from, to Date) []ShiftRecord {
	lo, hi := from.String(), to.String()
	out := make([]ShiftRecord, 0, len(records))
	for _, r := range records {
		start := r.PeriodFrom.String()
		if start >= lo && start <= hi {
			out = append(out, r)
		}
	}
	return out
}

// DeriveShiftEnd returns the default end date for a shift starting on start:
// the next day for a night shift, the same day otherwise.
func DeriveShiftEnd(start Date, shift ShiftType) Date {
	if shift == Night {
		return start.AddDays(1)
	}
	return start
}

// MonthToDate returns the window from the first day of now's month through
// now's date.
func MonthToDate(now time.Time) (from, to Date) {
	to = DateOf(now)
	from = NewDate(to.Year(), int(to.Month()), 1)
	return from, to
}

// Search keeps the records whose comment contains term (case-insensitive) or
// whose start date contains it. An empty term keeps everything.
func Search(records []ShiftRecord, term string) []ShiftRecord {
	term = strings.TrimSpace(term)
	if term == "" {
		return append([]ShiftRecord(nil), records...)
	}
	needle := strings.ToLower(term)
	out := make([]ShiftRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Comment), needle) || strings.Contains(r.PeriodFrom.String(), term) {
			out = append(out, r)
		}
	}
	return out
}
