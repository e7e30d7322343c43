// Package education contains the domain model for professional-education
// credential records. This is the core of the business logic - no external
// dependencies live here.
package education

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category is the derived classification of an education record's standing.
// It is never set by direct user input - it is always computed from the
// graduation year and the admin-controlled membership-expiry date.
type Category string

const (
	// CategoryStudent - education not yet complete.
	CategoryStudent Category = "STUDENT"

	// CategoryNewGraduated - graduated this year or last year, within the
	// membership-expiry window that gates new-graduate benefits.
	CategoryNewGraduated Category = "NEW_GRADUATED"

	// CategoryGraduated - terminal state. Once a record reaches GRADUATED
	// it never regresses to an earlier category.
	CategoryGraduated Category = "GRADUATED"
)

// IsValid reports whether the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryStudent, CategoryNewGraduated, CategoryGraduated:
		return true
	}
	return false
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsTerminal reports whether the category can still change.
// GRADUATED records are excluded from convergence sweeps entirely.
func (c Category) IsTerminal() bool {
	return c == CategoryGraduated
}

// CandidateCategories are the categories subject to re-evaluation.
// GRADUATED is deliberately absent: once graduated, a record can never
// regress, so fetching those rows would be wasted work.
func CandidateCategories() []Category {
	return []Category{CategoryStudent, CategoryNewGraduated}
}

// AllCategories returns every known category, in lifecycle order.
func AllCategories() []Category {
	return []Category{CategoryStudent, CategoryNewGraduated, CategoryGraduated}
}

// ParseCategory parses a string into a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.IsValid()
}
