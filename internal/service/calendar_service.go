package service

import "time"

// WorkingDayCalendar answers working-day questions against a configured
// bank-holiday set. It is pure and safe for concurrent use.
type WorkingDayCalendar struct {
	holidays map[string]struct{}
}

// NewWorkingDayCalendar builds a calendar over the supplied holiday date set
// (keys formatted YYYY-MM-DD).
func NewWorkingDayCalendar(holidays map[string]struct{}) *WorkingDayCalendar {
	if holidays == nil {
		holidays = map[string]struct{}{}
	}
	return &WorkingDayCalendar{holidays: holidays}
}

// IsWorkingDay reports whether the date is neither a weekend nor a configured
// bank holiday.
func (c *WorkingDayCalendar) IsWorkingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	_, holiday := c.holidays[date.Format("2006-01-02")]
	return !holiday
}

// AddWorkingDays adds n working days to date. The baseline is first rolled
// forward to the next working day, then n working days are counted; the
// result is always a working day. With n = 0 a weekend or holiday baseline
// therefore yields the next working day, not itself.
func (c *WorkingDayCalendar) AddWorkingDays(date time.Time, n int) time.Time {
	result := truncateToDay(date)
	for !c.IsWorkingDay(result) {
		result = result.AddDate(0, 0, 1)
	}

	for added := 0; added < n; {
		result = result.AddDate(0, 0, 1)
		if c.IsWorkingDay(result) {
			added++
		}
	}

	return result
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
