// Package recur decides whether a repeat rule fires on a given calendar
// date. Everything here is pure date arithmetic: no I/O, no clock reads,
// no time zones beyond the UTC-midnight date convention.
package recur

import (
	"strings"
	"time"
)

// Unit is the repeat cadence of a rule.
type Unit string

const (
	UnitNone    Unit = "none"
	UnitDaily   Unit = "daily"
	UnitWeekly  Unit = "weekly"
	UnitMonthly Unit = "monthly"
	UnitAnnual  Unit = "annual"
)

// ParseUnit canonicalizes a stored repeat unit. Unknown values survive
// as-is so IsDue can report them as unsupported instead of guessing.
func ParseUnit(raw string) Unit {
	u := Unit(strings.ToLower(strings.TrimSpace(raw)))
	switch u {
	case "":
		return UnitNone
	case UnitNone, UnitDaily, UnitWeekly, UnitMonthly, UnitAnnual:
		return u
	default:
		return u
	}
}

// Rule is a fully-resolved repeat rule. Anchor (when set) is a date at
// UTC midnight; Interval is at least 1.
type Rule struct {
	Unit     Unit
	Interval int

	// DaysOfWeek constrains weekly rules; Monday=0 .. Sunday=6.
	DaysOfWeek []int
	// LegacyDayOfWeek is the pre-DaysOfWeek single-day column; it
	// matches in addition to the set.
	LegacyDayOfWeek *int
	// DayOfMonth constrains monthly rules.
	DayOfMonth *int

	Anchor *time.Time
}

// Reason explains an IsDue verdict.
type Reason string

const (
	ReasonDue            Reason = "due"
	ReasonAnchorMismatch Reason = "anchor date does not match"
	ReasonBeforeAnchor   Reason = "before anchor date"
	ReasonOffInterval    Reason = "off interval"
	ReasonWeekdayMiss    Reason = "day of week not in set"
	ReasonDayOfMonthMiss Reason = "day of month does not match"
	ReasonMonthDayMiss   Reason = "month/day does not match anchor"
	ReasonUnsupported    Reason = "unsupported repeat unit"
)

// IsDue reports whether the rule fires on date. The date must be a
// calendar date (time-of-day is ignored). Total: every input yields a
// verdict with a reason, never an error.
func IsDue(rule Rule, date time.Time) (bool, Reason) {
	day := truncate(date)
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	switch rule.Unit {
	case UnitNone:
		// A one-off with no anchor is due the first time it is seen;
		// the materializer persists the instance so re-runs dedupe.
		if rule.Anchor == nil {
			return true, ReasonDue
		}
		if sameDay(*rule.Anchor, day) {
			return true, ReasonDue
		}
		return false, ReasonAnchorMismatch

	case UnitDaily:
		anchor := anchorOr(rule.Anchor, day)
		if day.Before(anchor) {
			return false, ReasonBeforeAnchor
		}
		if mod(daysBetween(anchor, day), interval) != 0 {
			return false, ReasonOffInterval
		}
		return true, ReasonDue

	case UnitWeekly:
		anchor := anchorOr(rule.Anchor, day)
		days := rule.DaysOfWeek
		// Snap the anchor to the first day the rule can actually fire
		// on; otherwise interval counting drifts when a template is
		// created mid-week (e.g. a Sunday-created Monday task).
		if len(days) > 0 {
			anchor = snapToWeekday(anchor, days)
		}
		if !weekdayAllowed(day, days, rule.LegacyDayOfWeek) {
			return false, ReasonWeekdayMiss
		}
		weeksSince := floorDiv(daysBetween(anchor, day), 7)
		if mod(weeksSince, interval) != 0 {
			return false, ReasonOffInterval
		}
		return true, ReasonDue

	case UnitMonthly:
		anchor := anchorOr(rule.Anchor, day)
		monthsSince := 12*(day.Year()-anchor.Year()) + int(day.Month()) - int(anchor.Month())
		if mod(monthsSince, interval) != 0 {
			return false, ReasonOffInterval
		}
		if rule.DayOfMonth != nil && day.Day() != *rule.DayOfMonth {
			return false, ReasonDayOfMonthMiss
		}
		return true, ReasonDue

	case UnitAnnual:
		anchor := anchorOr(rule.Anchor, day)
		if mod(day.Year()-anchor.Year(), interval) != 0 {
			return false, ReasonOffInterval
		}
		if day.Month() != anchor.Month() || day.Day() != anchor.Day() {
			return false, ReasonMonthDayMiss
		}
		return true, ReasonDue

	default:
		return false, ReasonUnsupported
	}
}

// Weekday returns the day of week with Monday=0 .. Sunday=6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func weekdayAllowed(day time.Time, days []int, legacy *int) bool {
	if len(days) == 0 && legacy == nil {
		return true
	}
	dow := Weekday(day)
	for _, d := range days {
		if d == dow {
			return true
		}
	}
	return legacy != nil && *legacy == dow
}

// snapToWeekday moves the anchor forward to the first day whose weekday
// is in the set.
func snapToWeekday(anchor time.Time, days []int) time.Time {
	dow := Weekday(anchor)
	best := -1
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		delta := mod(d-dow, 7)
		if best == -1 || delta < best {
			best = delta
		}
	}
	if best <= 0 {
		return anchor
	}
	return anchor.AddDate(0, 0, best)
}

func anchorOr(anchor *time.Time, fallback time.Time) time.Time {
	if anchor == nil {
		return fallback
	}
	return truncate(*anchor)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func daysBetween(from, to time.Time) int {
	return int(truncate(to).Sub(truncate(from)).Hours() / 24)
}

// floorDiv is integer division rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod is the non-negative remainder.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
