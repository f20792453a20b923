package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", Clock{9, 0}, false},
		{"18:30:00", Clock{18, 30}, false},
		{" 07:05 ", Clock{7, 5}, false},
		{"24:00", Clock{}, true},
		{"09:60", Clock{}, true},
		{"morning", Clock{}, true},
		{"", Clock{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseClock(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClockOn(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	date := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)

	got := Clock{Hour: 9, Minute: 30}.On(date, loc)
	assert.Equal(t, time.Date(2025, 6, 4, 9, 30, 0, 0, loc), got)
}

func TestParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2025-06-04")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-04", FormatDate(d))

	_, err = ParseDate("04/06/2025")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindAppointment, ParseKind("appointment"))
	assert.Equal(t, KindRoutine, ParseKind(" Routine "))
	assert.Equal(t, KindFixed, ParseKind("fixed"))
	assert.Equal(t, KindFloating, ParseKind("floating"))
	assert.Equal(t, KindFloating, ParseKind(""))
	assert.Equal(t, KindFloating, ParseKind("something-else"))
}

func TestInstanceKindFlagsRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindFloating, KindFixed, KindRoutine, KindAppointment} {
		var inst Instance
		inst.SetKind(k)
		assert.Equal(t, k, inst.Kind(), "round trip for %s", k)
	}
}

func TestTemplateNormalizeDefaults(t *testing.T) {
	tpl := Template{
		Title:           "  ",
		StartTime:       "late morning",
		DurationMinutes: -10,
		Priority:        9,
		RepeatInterval:  0,
		WindowStart:     "07:00",
		WindowEnd:       "not a time",
	}
	fixes := tpl.Normalize()

	assert.Equal(t, "Untitled task", tpl.Title)
	assert.Equal(t, DefaultStartTime, tpl.StartTime)
	assert.Equal(t, DefaultDurationMinutes, tpl.DurationMinutes)
	assert.Equal(t, DefaultPriority, tpl.Priority)
	assert.Equal(t, 1, tpl.RepeatInterval)
	assert.Equal(t, "07:00", tpl.WindowStart, "valid bounds survive")
	assert.Empty(t, tpl.WindowEnd)
	assert.NotEmpty(t, fixes)
}

func TestTemplateNormalizeLeavesValidAlone(t *testing.T) {
	tpl := Template{
		Title:           "Gym",
		StartTime:       "18:30",
		DurationMinutes: 45,
		Priority:        2,
		RepeatInterval:  2,
	}
	fixes := tpl.Normalize()
	assert.Empty(t, fixes)
	assert.Equal(t, "18:30", tpl.StartTime)
	assert.Equal(t, 45, tpl.DurationMinutes)
	assert.Equal(t, 2, tpl.Priority)
}

func TestTemplateRepeatDaySet(t *testing.T) {
	tpl := Template{RepeatDays: "0, 2,4, 9,junk"}
	assert.Equal(t, []int{0, 2, 4}, tpl.RepeatDaySet())

	var empty Template
	assert.Nil(t, empty.RepeatDaySet())
}

func TestInstanceHasTimes(t *testing.T) {
	start := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	assert.False(t, (&Instance{}).HasTimes())
	assert.False(t, (&Instance{StartTime: &start}).HasTimes())
	assert.False(t, (&Instance{StartTime: &start, EndTime: &start}).HasTimes())
	assert.True(t, (&Instance{StartTime: &start, EndTime: &end}).HasTimes())
}
