package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func intPtr(v int) *int { return &v }

func TestIsDue_OneOff(t *testing.T) {
	rule := Rule{Unit: UnitNone, Interval: 1, Anchor: datePtr("2025-12-25")}

	due, reason := IsDue(rule, date("2025-12-24"))
	assert.False(t, due)
	assert.Equal(t, ReasonAnchorMismatch, reason)

	due, _ = IsDue(rule, date("2025-12-25"))
	assert.True(t, due)

	due, _ = IsDue(rule, date("2025-12-26"))
	assert.False(t, due)
}

func TestIsDue_OneOffWithoutAnchor(t *testing.T) {
	due, reason := IsDue(Rule{Unit: UnitNone, Interval: 1}, date("2025-03-03"))
	assert.True(t, due, "anchorless one-off is due on first sight")
	assert.Equal(t, ReasonDue, reason)
}

func TestIsDue_Daily(t *testing.T) {
	tests := []struct {
		name     string
		anchor   string
		interval int
		day      string
		due      bool
		reason   Reason
	}{
		{"anchor day itself", "2025-01-01", 1, "2025-01-01", true, ReasonDue},
		{"every day", "2025-01-01", 1, "2025-01-17", true, ReasonDue},
		{"every third day hit", "2025-01-01", 3, "2025-01-10", true, ReasonDue},
		{"every third day miss", "2025-01-01", 3, "2025-01-09", false, ReasonOffInterval},
		{"future anchor", "2026-07-01", 1, "2026-06-15", false, ReasonBeforeAnchor},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			due, reason := IsDue(Rule{Unit: UnitDaily, Interval: tc.interval, Anchor: datePtr(tc.anchor)}, date(tc.day))
			assert.Equal(t, tc.due, due)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestIsDue_WeeklyBiweeklyMonday(t *testing.T) {
	// Anchor 2025-01-06 is a Monday.
	rule := Rule{Unit: UnitWeekly, Interval: 2, DaysOfWeek: []int{0}, Anchor: datePtr("2025-01-06")}

	due, _ := IsDue(rule, date("2025-01-06"))
	assert.True(t, due, "anchor Monday")

	due, reason := IsDue(rule, date("2025-01-13"))
	assert.False(t, due, "off-cycle Monday")
	assert.Equal(t, ReasonOffInterval, reason)

	due, _ = IsDue(rule, date("2025-01-20"))
	assert.True(t, due, "second cycle Monday")

	due, reason = IsDue(rule, date("2025-01-21"))
	assert.False(t, due, "Tuesday never fires")
	assert.Equal(t, ReasonWeekdayMiss, reason)
}

func TestIsDue_WeeklyAnchorSnap(t *testing.T) {
	// Template created on Sunday 2024-11-10 for Mondays, every 2 weeks.
	// Counting must start from Monday 2024-11-11, not the Sunday.
	rule := Rule{Unit: UnitWeekly, Interval: 2, DaysOfWeek: []int{0}, Anchor: datePtr("2024-11-10")}

	due, _ := IsDue(rule, date("2024-11-11"))
	assert.True(t, due, "first Monday after creation")

	due, _ = IsDue(rule, date("2024-11-18"))
	assert.False(t, due)

	due, _ = IsDue(rule, date("2024-11-25"))
	assert.True(t, due)
}

func TestIsDue_WeeklyLegacySingleDay(t *testing.T) {
	// No set, only the legacy single day column (Wednesday=2).
	rule := Rule{Unit: UnitWeekly, Interval: 1, LegacyDayOfWeek: intPtr(2), Anchor: datePtr("2025-01-01")}

	due, _ := IsDue(rule, date("2025-01-08"))
	assert.True(t, due)

	due, _ = IsDue(rule, date("2025-01-09"))
	assert.False(t, due)
}

func TestIsDue_WeeklyNoConstraint(t *testing.T) {
	rule := Rule{Unit: UnitWeekly, Interval: 1, Anchor: datePtr("2025-01-06")}
	for _, d := range []string{"2025-01-06", "2025-01-07", "2025-01-12"} {
		due, _ := IsDue(rule, date(d))
		assert.True(t, due, "unconstrained weekly fires all week, got miss on %s", d)
	}
}

func TestIsDue_MonthlyDay31(t *testing.T) {
	rule := Rule{Unit: UnitMonthly, Interval: 1, DayOfMonth: intPtr(31), Anchor: datePtr("2025-01-31")}

	due, _ := IsDue(rule, date("2025-01-31"))
	assert.True(t, due)

	due, reason := IsDue(rule, date("2025-02-28"))
	assert.False(t, due, "February has no 31st")
	assert.Equal(t, ReasonDayOfMonthMiss, reason)

	due, _ = IsDue(rule, date("2025-03-31"))
	assert.True(t, due)
}

func TestIsDue_MonthlyInterval(t *testing.T) {
	rule := Rule{Unit: UnitMonthly, Interval: 3, DayOfMonth: intPtr(15), Anchor: datePtr("2025-01-15")}

	due, _ := IsDue(rule, date("2025-04-15"))
	assert.True(t, due)

	due, reason := IsDue(rule, date("2025-03-15"))
	assert.False(t, due)
	assert.Equal(t, ReasonOffInterval, reason)
}

func TestIsDue_Annual(t *testing.T) {
	rule := Rule{Unit: UnitAnnual, Interval: 1, Anchor: datePtr("2020-06-14")}

	due, _ := IsDue(rule, date("2025-06-14"))
	assert.True(t, due)

	due, reason := IsDue(rule, date("2025-06-15"))
	assert.False(t, due)
	assert.Equal(t, ReasonMonthDayMiss, reason)

	biennial := Rule{Unit: UnitAnnual, Interval: 2, Anchor: datePtr("2020-06-14")}
	due, _ = IsDue(biennial, date("2025-06-14"))
	assert.False(t, due, "odd year offset on a 2-year cadence")
	due, _ = IsDue(biennial, date("2026-06-14"))
	assert.True(t, due)
}

func TestIsDue_UnsupportedUnit(t *testing.T) {
	due, reason := IsDue(Rule{Unit: Unit("fortnightly"), Interval: 1}, date("2025-01-01"))
	assert.False(t, due)
	assert.Equal(t, ReasonUnsupported, reason)
}

func TestIsDue_ZeroIntervalTreatedAsOne(t *testing.T) {
	rule := Rule{Unit: UnitDaily, Interval: 0, Anchor: datePtr("2025-01-01")}
	due, _ := IsDue(rule, date("2025-01-02"))
	assert.True(t, due)
}

func TestParseUnit(t *testing.T) {
	assert.Equal(t, UnitNone, ParseUnit(""))
	assert.Equal(t, UnitNone, ParseUnit("none"))
	assert.Equal(t, UnitWeekly, ParseUnit(" Weekly "))
	assert.Equal(t, Unit("biweekly"), ParseUnit("biweekly"))
}

func TestWeekday(t *testing.T) {
	require.Equal(t, 0, Weekday(date("2025-01-06")), "2025-01-06 is a Monday")
	require.Equal(t, 6, Weekday(date("2025-01-12")), "2025-01-12 is a Sunday")
}
