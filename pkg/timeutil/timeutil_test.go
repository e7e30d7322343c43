package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2026, time.June, 10, 17, 45, 12, 0, HomeTZ)
	start := StartOfDay(ts)

	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 0, start.Minute())
	assert.Equal(t, ts.Day(), start.Day())
}

func TestStartOfYear(t *testing.T) {
	ts := Date(2026, 7, 20)
	start := StartOfYear(ts)

	assert.Equal(t, 2026, start.Year())
	assert.Equal(t, time.January, start.Month())
	assert.Equal(t, 1, start.Day())
}

func TestSameDayAndDaysBetween(t *testing.T) {
	a := Date(2026, 3, 15)
	b := a.Add(20 * time.Hour)
	c := a.AddDate(0, 0, 3)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(a, c))
	assert.Equal(t, 3, DaysBetween(a, c))
	assert.Equal(t, 3, DaysBetween(c, a))
}

func TestParseDateRoundTrip(t *testing.T) {
	parsed, err := ParseDate("2026-08-31")
	assert.NoError(t, err)
	assert.Equal(t, "2026-08-31", FormatDateStr(parsed))
}

func TestMonthIn(t *testing.T) {
	window := []time.Month{time.January, time.May, time.June, time.December}

	assert.True(t, MonthIn(Date(2026, 5, 20), window))
	assert.True(t, MonthIn(Date(2026, 12, 1), window))
	assert.False(t, MonthIn(Date(2026, 3, 15), window))
}
