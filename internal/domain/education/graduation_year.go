package education

import (
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADUATION YEAR
// ══════════════════════════════════════════════════════════════════════════════

// GraduationYear is the enumerated year value carried on an education record.
// Recent records hold individual years ("2026"); very old records were
// migrated with decade buckets ("1960s") because the source registry only
// kept decade precision before 1980.
type GraduationYear string

// Bounds for individual year values. Anything outside this range is treated
// as unrecognized and falls back to the current calendar year.
const (
	minIndividualYear = 1980
	maxIndividualYear = 2100
)

// String returns the raw enumerated value.
func (g GraduationYear) String() string {
	return string(g)
}

// IsDecadeBucket reports whether the value is a pre-1980 decade bucket.
func (g GraduationYear) IsDecadeBucket() bool {
	_, ok := g.decadeStart()
	return ok
}

// decadeStart decodes a "NNNNs" decade bucket into its first year.
func (g GraduationYear) decadeStart() (int, bool) {
	s := string(g)
	if len(s) != 5 || !strings.HasSuffix(s, "s") {
		return 0, false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year%10 != 0 || year >= minIndividualYear {
		return 0, false
	}
	return year, true
}

// Resolve decodes the enumerated value into a single numeric year.
//
// Decade buckets resolve to the first year of the decade, which is always
// strictly below currentYear-1 and therefore guarantees GRADUATED.
// Unrecognized values resolve to currentYear; recognized is false so the
// caller can surface the data-quality problem as a run warning instead of
// letting it pass silently.
func (g GraduationYear) Resolve(currentYear int) (year int, recognized bool) {
	if start, ok := g.decadeStart(); ok {
		return start, true
	}

	year, err := strconv.Atoi(strings.TrimSpace(string(g)))
	if err != nil || year < minIndividualYear || year > maxIndividualYear {
		return currentYear, false
	}
	return year, true
}
