package education

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY RULE EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluate derives the category for a graduation year. Pure function, no I/O.
//
// Rules are ordered; the first match wins:
//  1. graduation year after the current year       -> STUDENT
//  2. graduated this year or last year, and the
//     membership-expiry date is set and not passed -> NEW_GRADUATED
//  3. graduated earlier than last year             -> GRADUATED
//  4. anything else (recent graduate whose expiry
//     window is missing or already passed)         -> GRADUATED
//
// membershipExpiresOn is advisory input owned by the membership-settings
// subsystem. Gating NEW_GRADUATED on it - rather than on any self-reported
// status field - is what prevents members from manufacturing new-graduate
// discount eligibility themselves. The evaluator never computes or caches
// the date; it is passed in at call time.
func Evaluate(graduationYear GraduationYear, membershipExpiresOn *time.Time, today time.Time) Category {
	currentYear := today.Year()
	year, _ := graduationYear.Resolve(currentYear)

	switch {
	case year > currentYear:
		return CategoryStudent

	case (year == currentYear || year == currentYear-1) &&
		membershipExpiresOn != nil && !today.After(*membershipExpiresOn):
		return CategoryNewGraduated

	default:
		// Covers both rule 3 (year < currentYear-1) and the rule 4
		// boundary where a recent graduate fails the expiry condition.
		return CategoryGraduated
	}
}
