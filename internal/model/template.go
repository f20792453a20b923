package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default values applied to malformed template fields. Defaulting happens
// exactly once, when rows leave the store adapter; the algorithms never
// re-derive fallbacks.
const (
	DefaultStartTime       = "09:00"
	DefaultDurationMinutes = 30
	DefaultPriority        = 3

	PriorityHighest = 1
	PriorityLowest  = 5
)

// Template is a recurring or one-off task definition owned by one user.
type Template struct {
	ID     string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"index;size:36"`

	Title       string
	Description string

	// RepeatUnit is one of none, daily, weekly, monthly, annual.
	RepeatUnit     string
	RepeatInterval int
	// RepeatDays is a comma-separated day-of-week set (Monday=0) for
	// weekly rules, e.g. "0,2,4".
	RepeatDays string
	// RepeatDayOfWeek is the legacy single day-of-week column kept for
	// templates authored before RepeatDays existed.
	RepeatDayOfWeek *int
	DayOfMonth      *int
	// AnchorDate is the reference date for interval counting; for
	// one-off templates it doubles as the defer date.
	AnchorDate *time.Time

	StartTime       string
	DurationMinutes int
	Priority        int
	WindowStart     string
	WindowEnd       string

	Kind      string
	IsDeleted bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RepeatDaySet parses the day-of-week set, dropping anything outside 0-6.
func (t *Template) RepeatDaySet() []int {
	if strings.TrimSpace(t.RepeatDays) == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(t.RepeatDays, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		days = append(days, d)
	}
	return days
}

// AnchorDay returns the anchor truncated to a UTC-midnight date, or nil.
func (t *Template) AnchorDay() *time.Time {
	if t.AnchorDate == nil {
		return nil
	}
	d := time.Date(t.AnchorDate.Year(), t.AnchorDate.Month(), t.AnchorDate.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Normalize applies documented defaults to malformed scheduling fields in
// place and reports what was fixed, so the adapter can log each repair
// against the template identity.
func (t *Template) Normalize() []string {
	var fixes []string

	if strings.TrimSpace(t.Title) == "" {
		t.Title = "Untitled task"
		fixes = append(fixes, "empty title")
	}
	if t.StartTime != "" {
		if _, err := ParseClock(t.StartTime); err != nil {
			fixes = append(fixes, fmt.Sprintf("bad start_time %q", t.StartTime))
			t.StartTime = DefaultStartTime
		}
	}
	if t.DurationMinutes <= 0 {
		fixes = append(fixes, fmt.Sprintf("bad duration %d", t.DurationMinutes))
		t.DurationMinutes = DefaultDurationMinutes
	}
	if t.Priority < PriorityHighest || t.Priority > PriorityLowest {
		if t.Priority != 0 {
			fixes = append(fixes, fmt.Sprintf("priority %d out of range", t.Priority))
		}
		t.Priority = DefaultPriority
	}
	if t.RepeatInterval < 1 {
		t.RepeatInterval = 1
	}
	for _, field := range []*string{&t.WindowStart, &t.WindowEnd} {
		if *field == "" {
			continue
		}
		if _, err := ParseClock(*field); err != nil {
			fixes = append(fixes, fmt.Sprintf("bad window bound %q", *field))
			*field = ""
		}
	}
	return fixes
}
