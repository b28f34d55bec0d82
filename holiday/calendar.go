/*
Package holiday provides holiday-calendar lookup for working-day accounting.

The consumers only ever ask one question - "is this date a holiday?" - so the
package exposes a single-method Calendar interface plus three implementations:
a no-op calendar, an explicit date set (handy for tests and custom calendars)
and the fixed Ukrainian national calendar, which includes the movable feasts
derived from Orthodox Easter.
*/
package holiday

import "time"

// Calendar answers whether a calendar date is a public holiday.
type Calendar interface {
	IsHoliday(date time.Time) bool
}

// =============================================================================
// NONE - Calendar with no holidays
// =============================================================================

type None struct{}

func (None) IsHoliday(time.Time) bool { return false }

// =============================================================================
// SET - Explicit list of dates
// =============================================================================

// Set is a calendar backed by an explicit list of "YYYY-MM-DD" dates.
type Set map[string]struct{}

// NewSet builds a Set from date strings.
func NewSet(dates ...string) Set {
	s := make(Set, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s Set) IsHoliday(date time.Time) bool {
	_, ok := s[date.Format("2006-01-02")]
	return ok
}

// =============================================================================
// UKRAINE - Fixed national calendar
// =============================================================================

// Ukraine implements the Ukrainian public-holiday calendar: the fixed-date
// holidays plus Orthodox Easter and Trinity (Easter + 49 days).
type Ukraine struct{}

// fixed holidays as (month, day)
var ukraineFixed = map[[2]int]bool{
	{1, 1}:   true, // New Year's Day
	{1, 7}:   true, // Christmas (Julian)
	{3, 8}:   true, // International Women's Day
	{5, 1}:   true, // Labour Day
	{5, 9}:   true, // Victory Day
	{6, 28}:  true, // Constitution Day
	{8, 24}:  true, // Independence Day
	{10, 14}: true, // Defenders Day
	{12, 25}: true, // Christmas (Gregorian)
}

func (Ukraine) IsHoliday(date time.Time) bool {
	if ukraineFixed[[2]int{int(date.Month()), date.Day()}] {
		return true
	}
	easter := OrthodoxEaster(date.Year())
	if sameDay(date, easter) {
		return true
	}
	// Trinity falls 49 days after Easter.
	return sameDay(date, easter.AddDate(0, 0, 49))
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// OrthodoxEaster returns the Gregorian date of Orthodox Easter for the given
// year, using the Meeus Julian algorithm plus the 13-day Julian/Gregorian
// offset. The offset holds for years 1900-2099, which covers every date this
// system will ever book.
func OrthodoxEaster(year int) time.Time {
	a := year % 4
	b := year % 7
	c := year % 19
	d := (19*c + 15) % 30
	e := (2*a + 4*b - d + 34) % 7
	month := (d + e + 114) / 31
	day := (d+e+114)%31 + 1

	julian := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return julian.AddDate(0, 0, 13)
}
