package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock parses a wall clock time in HH:MM form
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// IsBusinessDay reports whether t falls on Monday through Friday in its own location
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// NextBusinessDay returns midnight of the first business day after t, in t's location
func NextBusinessDay(t time.Time) time.Time {
	d := startOfDay(t).AddDate(0, 0, 1)
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayKey identifies a calendar day in the business timezone
func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
