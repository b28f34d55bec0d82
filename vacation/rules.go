/*
rules.go - Pure booking validation and working-day accounting

No I/O in this file: callers load whatever records they need first and pass
them in, which keeps every rule deterministic and trivially testable.
*/
package vacation

import (
	"time"

	"github.com/warp/vacation-engine/holiday"
)

// ValidateNewVacation checks a proposed [start, end] interval against the
// user's existing vacations. It fails with ErrInvalidRange when start is
// after end, and with ErrOverlap when any existing interval intersects the
// proposed one under closed-interval semantics (boundary days conflict).
//
// This check runs at creation time only. Two concurrent bookings can both
// validate against the same stale read and both land: the store offers no
// cross-key transaction to close that race, and this engine accepts it.
func ValidateNewVacation(start, end time.Time, existing []Vacation) error {
	if start.After(end) {
		return ErrInvalidRange
	}
	for _, v := range existing {
		if !v.End.Before(start) && !v.Start.After(end) {
			return ErrOverlap
		}
	}
	return nil
}

// WorkingDaysInRange counts working days in [start, end], INCLUSIVE of the
// end date - a one-day vacation covers one day. A day counts iff it falls on
// Monday-Friday and is not a holiday in the given calendar. byYear breaks the
// total down per calendar year for multi-year ranges.
func WorkingDaysInRange(start, end time.Time, cal holiday.Calendar) (total int, byYear map[int]int) {
	byYear = make(map[int]int)
	if cal == nil {
		cal = holiday.None{}
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if cal.IsHoliday(day) {
			continue
		}
		total++
		byYear[day.Year()]++
	}
	return total, byYear
}
