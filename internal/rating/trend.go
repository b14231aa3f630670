package rating

import (
	"fmt"
	"sort"
	"time"
)

// TrendMonths is both the window length and the row cap of MonthlyTrend.
const TrendMonths = 12

// MonthTrend is one calendar month of review activity.
type MonthTrend struct {
	Month       string   `json:"month"` // YYYY-MM
	ReviewCount int      `json:"review_count"`
	AvgRating   *float64 `json:"avg_rating"`
}

// WindowStart is midnight, in now's location, of the day TrendMonths months
// before now.
func WindowStart(now time.Time) time.Time {
	start := now.AddDate(0, -TrendMonths, 0)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
}

// MonthlyTrend buckets samples created on or after WindowStart(now) by calendar
// month, newest month first, at most TrendMonths rows. AvgRating is nil for a
// month without rated reviews.
func MonthlyTrend(samples []Sample, now time.Time) ([]MonthTrend, error) {
	if now.IsZero() {
		return nil, fmt.Errorf("%w: now must be set", ErrInvalidInput)
	}

	start := WindowStart(now)
	loc := now.Location()

	type acc struct {
		count, rated, sum int
	}
	months := make(map[string]*acc)

	for _, s := range samples {
		if s.CreatedAt.Before(start) {
			continue
		}
		key := s.CreatedAt.In(loc).Format("2006-01")
		a, ok := months[key]
		if !ok {
			a = &acc{}
			months[key] = a
		}
		a.count++
		if s.Rating != nil {
			a.rated++
			a.sum += *s.Rating
		}
	}

	trend := make([]MonthTrend, 0, len(months))
	for key, a := range months {
		row := MonthTrend{Month: key, ReviewCount: a.count}
		if a.rated > 0 {
			avg := float64(a.sum) / float64(a.rated)
			row.AvgRating = &avg
		}
		trend = append(trend, row)
	}

	sort.Slice(trend, func(i, j int) bool { return trend[i].Month > trend[j].Month })
	if len(trend) > TrendMonths {
		trend = trend[:TrendMonths]
	}
	return trend, nil
}
