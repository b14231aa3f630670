// Package rating computes product rating aggregates from review samples.
//
// Nothing in this package touches the database or the HTTP layer: callers load
// review samples through their repositories and pass them in, together with the
// current time where it matters.
package rating

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	MinRating = 1
	MaxRating = 5
)

// Sample is the projection of a review the aggregations need.
type Sample struct {
	Rating       *int
	CreatedAt    time.Time
	Tags         []string
	HasComment   bool
	PhotoCount   int
	HelpfulCount int
}

// TotalPolicy decides what a product's total review counter counts.
type TotalPolicy string

const (
	// TotalAll counts every review, text-only ones included.
	TotalAll TotalPolicy = "all"
	// TotalRated counts only reviews carrying a rating.
	TotalRated TotalPolicy = "rated"
)

func ParseTotalPolicy(s string) (TotalPolicy, error) {
	switch TotalPolicy(s) {
	case TotalAll, TotalRated:
		return TotalPolicy(s), nil
	case "":
		return TotalAll, nil
	default:
		return "", fmt.Errorf("%w: unknown total policy %q", ErrInvalidInput, s)
	}
}

// Summary is what gets written to the product row.
type Summary struct {
	Average float64
	Total   int
	Rated   int
}

// ValidateProductID rejects the zero id.
func ValidateProductID(id uint) error {
	if id == 0 {
		return fmt.Errorf("%w: product id must be positive", ErrInvalidInput)
	}
	return nil
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ValidRating reports whether r is inside the 1..5 scale.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Summarize returns the rounded mean of rated samples (0 when none) and the
// total counter under the given policy.
func Summarize(samples []Sample, policy TotalPolicy) Summary {
	var sum, rated int
	for _, s := range samples {
		if s.Rating == nil {
			continue
		}
		sum += *s.Rating
		rated++
	}

	out := Summary{Rated: rated, Total: rated}
	if policy != TotalRated {
		out.Total = len(samples)
	}
	if rated > 0 {
		out.Average = Round1(float64(sum) / float64(rated))
	}
	return out
}

// OverallStats is the headline block of the product statistics payload.
type OverallStats struct {
	TotalReviews        int     `json:"total_reviews"`
	TotalRatings        int     `json:"total_ratings"`
	TotalWrittenReviews int     `json:"total_written_reviews"`
	ReviewsWithPhotos   int     `json:"reviews_with_photos"`
	AverageRating       float64 `json:"average_rating"`
	MinRating           *int    `json:"min_rating"`
	MaxRating           *int    `json:"max_rating"`
	TotalHelpfulVotes   int     `json:"total_helpful_votes"`
}

func Overall(samples []Sample) OverallStats {
	stats := OverallStats{TotalReviews: len(samples)}

	var sum int
	for _, s := range samples {
		if s.HasComment {
			stats.TotalWrittenReviews++
		}
		if s.PhotoCount > 0 {
			stats.ReviewsWithPhotos++
		}
		stats.TotalHelpfulVotes += s.HelpfulCount

		if s.Rating == nil {
			continue
		}
		r := *s.Rating
		sum += r
		stats.TotalRatings++
		if stats.MinRating == nil || r < *stats.MinRating {
			stats.MinRating = intPtr(r)
		}
		if stats.MaxRating == nil || r > *stats.MaxRating {
			stats.MaxRating = intPtr(r)
		}
	}

	if stats.TotalRatings > 0 {
		stats.AverageRating = Round1(float64(sum) / float64(stats.TotalRatings))
	}
	return stats
}

func intPtr(v int) *int {
	return &v
}
