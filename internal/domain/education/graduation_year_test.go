package education

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraduationYear_ResolveIndividualYears(t *testing.T) {
	tests := []struct {
		in   GraduationYear
		want int
	}{
		{"1980", 1980},
		{"2004", 2004},
		{"2026", 2026},
		{" 2031 ", 2031},
	}

	for _, tt := range tests {
		year, recognized := tt.in.Resolve(2026)
		assert.True(t, recognized, "input %q", tt.in)
		assert.Equal(t, tt.want, year, "input %q", tt.in)
	}
}

func TestGraduationYear_ResolveDecadeBuckets(t *testing.T) {
	tests := []struct {
		in   GraduationYear
		want int
	}{
		{"1950s", 1950},
		{"1960s", 1960},
		{"1970s", 1970},
	}

	for _, tt := range tests {
		year, recognized := tt.in.Resolve(2026)
		assert.True(t, recognized, "input %q", tt.in)
		assert.Equal(t, tt.want, year, "input %q", tt.in)
		assert.True(t, tt.in.IsDecadeBucket(), "input %q", tt.in)
		// Decade buckets must always satisfy year < currentYear-1.
		assert.Less(t, year, 2026-1)
	}
}

func TestGraduationYear_PostCutoverDecadeIsNotABucket(t *testing.T) {
	// Decade precision only exists for pre-1980 records; "1980s" was never a
	// valid enum value in the source registry.
	_, recognized := GraduationYear("1980s").Resolve(2026)
	assert.False(t, recognized)
	assert.False(t, GraduationYear("1980s").IsDecadeBucket())
}

func TestGraduationYear_UnrecognizedFallsBackToCurrentYear(t *testing.T) {
	for _, in := range []GraduationYear{"", "abc", "19x0", "1850", "2500", "60s"} {
		year, recognized := in.Resolve(2026)
		assert.False(t, recognized, "input %q", in)
		assert.Equal(t, 2026, year, "input %q", in)
	}
}
