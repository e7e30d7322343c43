package education

import (
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// RecordID is the opaque identifier assigned by the record store.
// Stable and immutable once created.
type RecordID string

// IsValid checks that the record ID is non-empty.
func (id RecordID) IsValid() bool {
	return strings.TrimSpace(string(id)) != ""
}

// String returns the string form of the record ID.
func (id RecordID) String() string {
	return string(id)
}

// SubjectBusinessID is the external human-facing identifier for the person,
// distinct from the store-assigned RecordID. Unique across all records and
// immutable after creation.
type SubjectBusinessID string

// IsValid checks basic shape of the business ID.
func (id SubjectBusinessID) IsValid() bool {
	s := string(id)
	return len(s) >= 2 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string form of the business ID.
func (id SubjectBusinessID) String() string {
	return string(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// EDUCATION RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is a person's professional-education credential entry - the unit
// the lifecycle engine operates on. Category is the only field the engine
// ever writes; everything else is owned by the record store and the CRUD
// layers in front of it.
type Record struct {
	// ID is the store-assigned identifier.
	ID RecordID

	// SubjectID is the person's external business identifier.
	SubjectID SubjectBusinessID

	// GraduationYear is the enumerated year value, possibly a decade bucket.
	GraduationYear GraduationYear

	// Category is the current derived classification.
	Category Category

	// UpdatedAt is the store's last-modified timestamp, informational only.
	UpdatedAt time.Time
}

// Validation errors for records arriving from the store.
var (
	ErrMissingRecordID  = errors.New("education: record id is required")
	ErrMissingSubjectID = errors.New("education: subject business id is required")
	ErrInvalidCategory  = errors.New("education: unknown category")
)

// Validate checks the structural invariants of a record.
func (r *Record) Validate() error {
	if !r.ID.IsValid() {
		return ErrMissingRecordID
	}
	if !r.SubjectID.IsValid() {
		return ErrMissingSubjectID
	}
	if !r.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}

// NeedsUpdate reports whether re-evaluating the record against the given
// expiry date and reference time yields a different category.
func (r *Record) NeedsUpdate(membershipExpiresOn *time.Time, today time.Time) (Category, bool) {
	next := Evaluate(r.GraduationYear, membershipExpiresOn, today)
	return next, next != r.Category
}
