package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"09:00", "10:00", 60},
		{"22:00", "02:00", 240},
		{"00:00", "23:59", 1439},
		{"10:00", "10:00", 0},
	}
	for _, tc := range cases {
		got, err := Duration(tc.start, tc.end)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s-%s", tc.start, tc.end)
	}

	_, err := Duration("25:00", "10:00")
	assert.Error(t, err)
	_, err = Duration("", "10:00")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestAddMinutesWraps(t *testing.T) {
	got, err := AddMinutes("23:30", 60)
	require.NoError(t, err)
	assert.Equal(t, "00:30", got)

	got, err = AddMinutes("00:15", -30)
	require.NoError(t, err)
	assert.Equal(t, "23:45", got)
}

func TestRangesOverlap(t *testing.T) {
	assert.True(t, RangesOverlap(540, 600, 570, 630))
	assert.False(t, RangesOverlap(540, 600, 600, 660), "touching ranges")
	assert.True(t, RangesOverlap(540, 660, 570, 600), "containment")

	pairs := [][4]int{{0, 10, 5, 15}, {0, 10, 10, 20}, {100, 200, 0, 50}, {30, 40, 0, 1440}}
	for _, p := range pairs {
		assert.Equal(t, RangesOverlap(p[0], p[1], p[2], p[3]), RangesOverlap(p[2], p[3], p[0], p[1]))
	}
}

func TestDateStringsUseWallClock(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 1, 6, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-01-06", ToDateString(ts))
	assert.Equal(t, "23:30", ToTimeString(ts))
	assert.Equal(t, "2025-01-06", ToDateString(Day(ts)))
}

func TestParseClockAcceptsSeconds(t *testing.T) {
	m, err := ParseClock("09:05:00")
	require.NoError(t, err)
	assert.Equal(t, 545, m)
	assert.Equal(t, "09:05", FormatClock(m))
}

func TestSplitDateTime(t *testing.T) {
	d, c, ok := SplitDateTime("2025-01-06T9:30")
	require.True(t, ok)
	assert.Equal(t, "2025-01-06", d)
	assert.Equal(t, "09:30", c)

	_, _, ok = SplitDateTime("09:30")
	assert.False(t, ok)
}

func TestWeekdayAndValidators(t *testing.T) {
	wd, err := Weekday("2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, wd)

	assert.True(t, IsDate("2024-02-29"))
	assert.False(t, IsDate("2025-02-29"))
	assert.False(t, IsDate("2025-1-6"))
	assert.True(t, IsTime("23:59"))
	assert.False(t, IsTime("24:00"))
}
