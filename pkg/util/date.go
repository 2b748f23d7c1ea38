package util

import "time"

// DayLayout is the provider's calendar date format.
const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}
