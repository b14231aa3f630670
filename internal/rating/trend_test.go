package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2025, time.March, 15, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), WindowStart(now))
}

func TestMonthlyTrend(t *testing.T) {
	now := time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Rating: r(5), CreatedAt: at(2025, time.March, 1)},
		{Rating: r(3), CreatedAt: at(2025, time.March, 10)},
		{Rating: nil, CreatedAt: at(2025, time.January, 4)},
		{Rating: r(4), CreatedAt: at(2024, time.March, 15)},  // on the boundary day
		{Rating: r(1), CreatedAt: at(2024, time.March, 14)},  // before the window
		{Rating: r(2), CreatedAt: at(2023, time.December, 1)}, // far outside
	}

	got, err := MonthlyTrend(samples, now)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "2025-03", got[0].Month)
	assert.Equal(t, 2, got[0].ReviewCount)
	require.NotNil(t, got[0].AvgRating)
	assert.Equal(t, 4.0, *got[0].AvgRating)

	assert.Equal(t, "2025-01", got[1].Month)
	assert.Equal(t, 1, got[1].ReviewCount)
	assert.Nil(t, got[1].AvgRating)

	assert.Equal(t, "2024-03", got[2].Month)
	assert.Equal(t, 1, got[2].ReviewCount)
}

func TestMonthlyTrend_CapsAtTwelveDescending(t *testing.T) {
	now := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	var samples []Sample
	// June 2024 (from the 20th) through June 2025 spans thirteen calendar months.
	for i := 0; i <= 12; i++ {
		samples = append(samples, Sample{Rating: r(4), CreatedAt: at(2024, time.June, 25).AddDate(0, i, 0)})
	}

	got, err := MonthlyTrend(samples, now)
	require.NoError(t, err)
	require.Len(t, got, TrendMonths)

	assert.Equal(t, "2025-06", got[0].Month)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1].Month, got[i].Month)
	}
	assert.Equal(t, "2024-07", got[len(got)-1].Month)
}

func TestMonthlyTrend_Empty(t *testing.T) {
	got, err := MonthlyTrend(nil, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMonthlyTrend_ZeroNow(t *testing.T) {
	_, err := MonthlyTrend(nil, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
