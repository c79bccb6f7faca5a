package casework_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordcare/casework-engine/casework"
)

func TestWeekID_FormatAndParse(t *testing.T) {
	id := casework.NewWeekID(2024, 3)
	assert.Equal(t, casework.WeekID("2024-W03"), id)

	year, week, err := casework.ParseWeekID(id)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 3, week)
}

func TestWeekIDOf_ISOYearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday and already belongs to ISO week 1 of 2025.
	t1 := time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, casework.WeekID("2025-W01"), casework.WeekIDOf(t1))

	// 2021-01-01 is a Friday in ISO week 53 of 2020.
	t2 := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, casework.WeekID("2020-W53"), casework.WeekIDOf(t2))
}

func TestParseWeekID_Rejects(t *testing.T) {
	for _, bad := range []casework.WeekID{
		"2024-03",    // month format
		"2024-W00",   // below range
		"2024-W54",   // above range
		"24-W03",     // short year
		"2024-W3",    // unpadded week
		"garbage",    //
		"2024-W03-x", // trailing junk
	} {
		_, _, err := casework.ParseWeekID(bad)
		assert.ErrorIs(t, err, casework.ErrInvalidPeriodID, "%q should be rejected", bad)
	}
}

func TestMonthID_FormatAndParse(t *testing.T) {
	id := casework.NewMonthID(2024, time.November)
	assert.Equal(t, casework.MonthID("2024-11"), id)

	year, month, err := casework.ParseMonthID(id)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.November, month)
}

func TestParseMonthID_Rejects(t *testing.T) {
	for _, bad := range []casework.MonthID{
		"2024-00",
		"2024-13",
		"2024-W03",
		"2024-1",
		"2024/11",
	} {
		_, _, err := casework.ParseMonthID(bad)
		assert.ErrorIs(t, err, casework.ErrInvalidPeriodID, "%q should be rejected", bad)
	}
}

func TestValidPeriodID(t *testing.T) {
	assert.True(t, casework.ValidPeriodID(casework.PeriodWeek, "2024-W44"))
	assert.True(t, casework.ValidPeriodID(casework.PeriodMonth, "2024-11"))

	assert.False(t, casework.ValidPeriodID(casework.PeriodWeek, "2024-11"))
	assert.False(t, casework.ValidPeriodID(casework.PeriodMonth, "2024-W44"))
	assert.False(t, casework.ValidPeriodID("quarter", "2024-Q1"))
}

func TestPeriodIDs_LexicographicOrderIsChronological(t *testing.T) {
	assert.Less(t, casework.NewWeekID(2024, 9), casework.NewWeekID(2024, 10))
	assert.Less(t, casework.NewWeekID(2024, 52), casework.NewWeekID(2025, 1))
	assert.Less(t, casework.NewMonthID(2024, time.September), casework.NewMonthID(2024, time.October))
}
