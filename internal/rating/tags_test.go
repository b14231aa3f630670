package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"fast", "fast", "fast"}, NormalizeTags([]string{"Fast", "fast ", "FAST"}))
	assert.Equal(t, []string{"great value"}, NormalizeTags([]string{"  ", " Great Value "}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestCountTags(t *testing.T) {
	counts := CountTags([]string{"Great", "durable"}, []string{"great"}, nil)
	assert.Equal(t, map[string]int{"great": 2, "durable": 1}, counts)
}

func TestDiffTags(t *testing.T) {
	tests := []struct {
		name        string
		before      []string
		after       []string
		wantAdded   map[string]int
		wantRemoved map[string]int
	}{
		{
			name:        "unchanged modulo case",
			before:      []string{"Fast", "durable"},
			after:       []string{"fast", "Durable "},
			wantAdded:   map[string]int{},
			wantRemoved: map[string]int{},
		},
		{
			name:        "swap one tag",
			before:      []string{"fast", "cheap"},
			after:       []string{"fast", "sturdy"},
			wantAdded:   map[string]int{"sturdy": 1},
			wantRemoved: map[string]int{"cheap": 1},
		},
		{
			name:        "duplicate occurrences",
			before:      []string{"fast"},
			after:       []string{"fast", "FAST", "fast "},
			wantAdded:   map[string]int{"fast": 2},
			wantRemoved: map[string]int{},
		},
		{
			name:        "all removed",
			before:      []string{"a", "b"},
			after:       nil,
			wantAdded:   map[string]int{},
			wantRemoved: map[string]int{"a": 1, "b": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := DiffTags(tt.before, tt.after)
			assert.Equal(t, tt.wantAdded, added)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}
