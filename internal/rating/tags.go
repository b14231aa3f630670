package rating

import "strings"

// TagCount is a ranked tag.
type TagCount struct {
	TagName string `json:"tagName"`
	Count   int    `json:"count"`
}

// NormalizeTag trims surrounding whitespace and lowercases the tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags normalizes every entry and drops the ones left empty.
// Duplicates are kept: each occurrence counts once.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// CountTags tallies normalized tag occurrences across reviews.
func CountTags(tagLists ...[]string) map[string]int {
	counts := make(map[string]int)
	for _, tags := range tagLists {
		for _, t := range NormalizeTags(tags) {
			counts[t]++
		}
	}
	return counts
}

// DiffTags compares the tags of a review before and after an edit and returns
// how many occurrences of each normalized tag were added and removed.
func DiffTags(before, after []string) (added, removed map[string]int) {
	oldCounts := CountTags(before)
	newCounts := CountTags(after)

	added = make(map[string]int)
	removed = make(map[string]int)

	for tag, n := range newCounts {
		if d := n - oldCounts[tag]; d > 0 {
			added[tag] = d
		}
	}
	for tag, n := range oldCounts {
		if d := n - newCounts[tag]; d > 0 {
			removed[tag] = d
		}
	}
	return added, removed
}
