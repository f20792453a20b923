package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of local_date columns.
const DateLayout = "2006-01-02"

// FormatDate renders a calendar date the way local_date stores it.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a local_date value into a date pinned at UTC midnight,
// which is the form the recurrence arithmetic works in.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// Clock is a wall-clock time of day without a date, as stored in
// start_time / window columns ("HH:MM" or "HH:MM:SS").
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts "HH:MM" and "HH:MM:SS"; seconds are discarded.
func ParseClock(raw string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("invalid clock time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On combines the clock time with a calendar date in the given location
// and returns the resulting absolute instant.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, loc)
}
