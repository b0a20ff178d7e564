package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCalendar() *WorkingDayCalendar {
	return NewWorkingDayCalendar(map[string]struct{}{
		"2025-12-25": {},
		"2025-12-26": {},
	})
}

func TestIsWorkingDay(t *testing.T) {
	calendar := testCalendar()

	require.True(t, calendar.IsWorkingDay(date(2025, time.November, 3)))   // Monday
	require.True(t, calendar.IsWorkingDay(date(2025, time.November, 7)))   // Friday
	require.False(t, calendar.IsWorkingDay(date(2025, time.November, 8)))  // Saturday
	require.False(t, calendar.IsWorkingDay(date(2025, time.November, 9)))  // Sunday
	require.False(t, calendar.IsWorkingDay(date(2025, time.December, 25))) // bank holiday
	require.False(t, calendar.IsWorkingDay(date(2025, time.December, 26))) // bank holiday
}

func TestAddWorkingDaysSkipsWeekends(t *testing.T) {
	calendar := testCalendar()

	// Wednesday + 5 working days spans a weekend.
	result := calendar.AddWorkingDays(date(2025, time.November, 5), 5)
	require.Equal(t, date(2025, time.November, 12), result)
}

func TestAddWorkingDaysSkipsHolidays(t *testing.T) {
	calendar := testCalendar()

	// Wednesday 24 Dec + 2: Thu and Fri are holidays, the weekend follows,
	// so counting lands on Mon 29 and Tue 30.
	result := calendar.AddWorkingDays(date(2025, time.December, 24), 2)
	require.Equal(t, date(2025, time.December, 30), result)
}

func TestAddWorkingDaysRollsBaselineForwardFirst(t *testing.T) {
	calendar := testCalendar()

	// A Saturday baseline rolls to Monday before counting begins.
	result := calendar.AddWorkingDays(date(2025, time.November, 8), 0)
	require.Equal(t, date(2025, time.November, 10), result)

	result = calendar.AddWorkingDays(date(2025, time.November, 8), 1)
	require.Equal(t, date(2025, time.November, 11), result)
}

func TestAddWorkingDaysZeroOnWorkingDayIsIdentity(t *testing.T) {
	calendar := testCalendar()

	monday := date(2025, time.November, 3)
	require.Equal(t, monday, calendar.AddWorkingDays(monday, 0))
}

func TestAddWorkingDaysAlwaysReturnsWorkingDay(t *testing.T) {
	calendar := testCalendar()

	start := date(2025, time.December, 1)
	for n := 0; n <= 25; n++ {
		result := calendar.AddWorkingDays(start, n)
		require.True(t, calendar.IsWorkingDay(result), "n=%d returned %s", n, result.Format("2006-01-02"))
		require.False(t, result.Before(start))
	}
}

func TestAddWorkingDaysTruncatesTimeOfDay(t *testing.T) {
	calendar := testCalendar()

	noon := time.Date(2025, time.November, 3, 12, 30, 0, 0, time.UTC)
	require.Equal(t, date(2025, time.November, 4), calendar.AddWorkingDays(noon, 1))
}
