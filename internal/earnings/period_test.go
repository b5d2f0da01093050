package earnings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePeriodWeekly(t *testing.T) {
	// 2024-06-03 is a Monday
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		now  time.Time
	}{
		{"monday", time.Date(2024, 6, 3, 9, 15, 0, 0, time.Local)},
		{"wednesday", time.Date(2024, 6, 5, 23, 59, 59, 0, time.Local)},
		{"saturday", time.Date(2024, 6, 8, 12, 0, 0, 0, time.Local)},
		{"sunday", time.Date(2024, 6, 9, 18, 30, 0, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, err := ResolvePeriod(PeriodWeekly, tt.now)
			require.NoError(t, err)

			assert.Equal(t, monday, period.Start, "start should be the most recent Monday")
			assert.Equal(t, tt.now, period.End)
			assert.Equal(t, monday.AddDate(0, 0, 7), period.BucketEnd)
		})
	}
}

func TestResolvePeriodWeeklySundayIsNotNextWeek(t *testing.T) {
	// Sunday must map to an offset of 6 days back, not -1 forward
	sunday := time.Date(2024, 6, 9, 1, 0, 0, 0, time.Local)

	period, err := ResolvePeriod(PeriodWeekly, sunday)
	require.NoError(t, err)

	assert.Equal(t, time.Monday, period.Start.Weekday())
	assert.True(t, period.Start.Before(sunday))
	assert.Equal(t, 6, int(sunday.Sub(period.Start).Hours())/24)
}

func TestResolvePeriodMonthly(t *testing.T) {
	now := time.Date(2024, 6, 17, 14, 45, 12, 0, time.Local)

	period, err := ResolvePeriod(PeriodMonthly, now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local), period.Start)
	assert.Equal(t, now, period.End)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.Local), period.BucketEnd)
}

func TestResolvePeriodStartIsMidnightAndBeforeNow(t *testing.T) {
	for _, periodType := range []string{PeriodWeekly, PeriodMonthly} {
		// Walk across a month boundary and a DST-free spread of days
		now := time.Date(2024, 5, 25, 7, 3, 9, 0, time.Local)
		for day := 0; day < 14; day++ {
			period, err := ResolvePeriod(periodType, now)
			require.NoError(t, err)

			assert.Equal(t, 0, period.Start.Hour())
			assert.Equal(t, 0, period.Start.Minute())
			assert.Equal(t, 0, period.Start.Second())
			assert.False(t, period.Start.After(now), "start must not be after now")
			assert.True(t, now.Before(period.BucketEnd), "now must fall inside the bucket")

			now = now.AddDate(0, 0, 1)
		}
	}
}

func TestResolvePeriodUnknownType(t *testing.T) {
	_, err := ResolvePeriod("daily", time.Now())
	assert.Error(t, err)
}
