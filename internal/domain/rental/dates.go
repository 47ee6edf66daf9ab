package rental

import "time"

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	return Date(time.Now())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// monthAt returns the year and month that lie n months after t's month.
func monthAt(t time.Time, n int) (int, time.Month) {
	idx := t.Year()*12 + int(t.Month()) - 1 + n
	return idx / 12, time.Month(idx%12 + 1)
}

// dayInMonth places day in the given month, clamped to the month's last day.
func dayInMonth(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(year, month, day)
}

// AddMonthsClamped adds n calendar months to t. When the target month is
// shorter the day is clamped to its last day (2025-01-31 + 1 = 2025-02-28).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m := monthAt(t, n)
	return dayInMonth(y, m, t.Day())
}

// ContractEndDate is the last day covered by a contract of the given length.
func ContractEndDate(start time.Time, months int) time.Time {
	return AddMonthsClamped(Date(start), months).AddDate(0, 0, -1)
}
