package education

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixed reference date for deterministic tests: 2026-03-15
var today = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func yearOf(y int) GraduationYear {
	return GraduationYear(fmt.Sprintf("%d", y))
}

func TestEvaluate_FutureYearIsStudent(t *testing.T) {
	// Scenario 1: graduation year in the future -> STUDENT regardless of expiry.
	expiry := datePtr(today.AddDate(0, 1, 0))

	assert.Equal(t, CategoryStudent, Evaluate(yearOf(today.Year()+1), expiry, today))
	assert.Equal(t, CategoryStudent, Evaluate(yearOf(today.Year()+1), nil, today))
	assert.Equal(t, CategoryStudent, Evaluate(yearOf(today.Year()+5), nil, today))
}

func TestEvaluate_RecentGraduateWithinExpiryIsNewGraduated(t *testing.T) {
	// Scenario 2: graduated this year, expiry 30 days out.
	expiry := datePtr(today.AddDate(0, 0, 30))

	assert.Equal(t, CategoryNewGraduated, Evaluate(yearOf(today.Year()), expiry, today))
	assert.Equal(t, CategoryNewGraduated, Evaluate(yearOf(today.Year()-1), expiry, today))
}

func TestEvaluate_ExpiryOnTodayStillCounts(t *testing.T) {
	// today <= expiry is inclusive.
	expiry := datePtr(today)
	assert.Equal(t, CategoryNewGraduated, Evaluate(yearOf(today.Year()), expiry, today))
}

func TestEvaluate_ExpiredWindowIsGraduated(t *testing.T) {
	// Scenario 3: graduated this year but the expiry has passed.
	expiry := datePtr(today.AddDate(0, 0, -1))
	assert.Equal(t, CategoryGraduated, Evaluate(yearOf(today.Year()), expiry, today))
}

func TestEvaluate_MissingExpiryIsGraduated(t *testing.T) {
	// Rule 4 boundary: recent graduate, no expiry date configured.
	assert.Equal(t, CategoryGraduated, Evaluate(yearOf(today.Year()), nil, today))
	assert.Equal(t, CategoryGraduated, Evaluate(yearOf(today.Year()-1), nil, today))
}

func TestEvaluate_OldGraduateIsGraduated(t *testing.T) {
	// Scenario 4: graduated three years ago, expiry irrelevant.
	expiry := datePtr(today.AddDate(1, 0, 0))

	assert.Equal(t, CategoryGraduated, Evaluate(yearOf(today.Year()-3), expiry, today))
	assert.Equal(t, CategoryGraduated, Evaluate(yearOf(today.Year()-3), nil, today))
}

func TestEvaluate_DecadeBucketIsAlwaysGraduated(t *testing.T) {
	// Scenario 5: decade buckets never participate in STUDENT/NEW_GRADUATED.
	expiry := datePtr(today.AddDate(1, 0, 0))

	for _, bucket := range []GraduationYear{"1950s", "1960s", "1970s"} {
		assert.Equal(t, CategoryGraduated, Evaluate(bucket, expiry, today), "bucket %s", bucket)
		assert.Equal(t, CategoryGraduated, Evaluate(bucket, nil, today), "bucket %s", bucket)
	}
}

func TestEvaluate_UnrecognizedYearFallsBackToCurrentYear(t *testing.T) {
	// Tolerant default: garbage resolves to the current year, so the record
	// behaves like a current-year graduate.
	expiry := datePtr(today.AddDate(0, 0, 10))

	assert.Equal(t, CategoryNewGraduated, Evaluate("not-a-year", expiry, today))
	assert.Equal(t, CategoryGraduated, Evaluate("not-a-year", nil, today))
}

func TestEvaluate_Idempotent(t *testing.T) {
	expiry := datePtr(today.AddDate(0, 0, 30))
	inputs := []GraduationYear{"2027", "2026", "2025", "2020", "1995", "1960s", "bogus"}

	for _, gy := range inputs {
		first := Evaluate(gy, expiry, today)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Evaluate(gy, expiry, today), "input %s", gy)
		}
	}
}

func TestEvaluate_MonotonicNonRegression(t *testing.T) {
	// Once a record evaluates to GRADUATED, advancing the clock must never
	// return it to an earlier category.
	gy := yearOf(today.Year())
	expiry := datePtr(today.AddDate(0, 0, 30))

	reachedGraduated := false
	for day := 0; day < 365*3; day += 7 {
		now := today.AddDate(0, 0, day)
		got := Evaluate(gy, expiry, now)
		if reachedGraduated {
			assert.Equal(t, CategoryGraduated, got, "regressed at %s", now.Format("2006-01-02"))
		}
		if got == CategoryGraduated {
			reachedGraduated = true
		}
	}
	assert.True(t, reachedGraduated)
}

func TestRecord_NeedsUpdate(t *testing.T) {
	rec := &Record{
		ID:             "rec-1",
		SubjectID:      "M-100200",
		GraduationYear: yearOf(today.Year() - 5),
		Category:       CategoryStudent,
	}

	next, changed := rec.NeedsUpdate(nil, today)
	assert.True(t, changed)
	assert.Equal(t, CategoryGraduated, next)

	rec.Category = CategoryGraduated
	_, changed = rec.NeedsUpdate(nil, today)
	assert.False(t, changed)
}

func TestRecord_Validate(t *testing.T) {
	rec := &Record{ID: "rec-1", SubjectID: "M-100200", Category: CategoryStudent}
	assert.NoError(t, rec.Validate())

	assert.ErrorIs(t, (&Record{SubjectID: "M-1", Category: CategoryStudent}).Validate(), ErrMissingRecordID)
	assert.ErrorIs(t, (&Record{ID: "rec-1", Category: CategoryStudent}).Validate(), ErrMissingSubjectID)
	assert.ErrorIs(t, (&Record{ID: "rec-1", SubjectID: "M-1", Category: "WAT"}).Validate(), ErrInvalidCategory)
}
