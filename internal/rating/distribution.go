package rating

// Bucket is one row of the rating histogram.
type Bucket struct {
	Rating     int     `json:"rating"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution groups rated samples by rating, highest rating first. Ratings
// with no reviews are omitted and the result is empty (not nil) when nothing is
// rated.
func Distribution(samples []Sample) []Bucket {
	var counts [MaxRating + 1]int
	rated := 0
	for _, s := range samples {
		if s.Rating == nil || !ValidRating(*s.Rating) {
			continue
		}
		counts[*s.Rating]++
		rated++
	}

	buckets := make([]Bucket, 0, MaxRating)
	if rated == 0 {
		return buckets
	}
	for r := MaxRating; r >= MinRating; r-- {
		if counts[r] == 0 {
			continue
		}
		buckets = append(buckets, Bucket{
			Rating:     r,
			Count:      counts[r],
			Percentage: Round1(float64(counts[r]) * 100 / float64(rated)),
		})
	}
	return buckets
}
