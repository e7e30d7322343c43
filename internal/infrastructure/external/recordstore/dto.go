package recordstore

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse is the standard envelope returned by the entity store.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	TotalCount int `json:"total_count"`
}

// EducationRecordDTO is the store's representation of an education record.
type EducationRecordDTO struct {
	ID             string    `json:"id"`
	SubjectID      string    `json:"subject_id"`
	GraduationYear string    `json:"graduation_year"`
	Category       string    `json:"category"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecordsRequestDTO carries the filters for a record listing request.
type RecordsRequestDTO struct {
	Category string
	Page     int
	PerPage  int
}

// UpdateCategoryDTO is the body for a category update.
// Category is the only field this backend ever writes on a record.
type UpdateCategoryDTO struct {
	Category string `json:"category"`
}

// APIErrorDTO is the structured error body the store returns on 4xx/5xx.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Details != "" {
		return e.Code + ": " + e.Message + " (" + e.Details + ")"
	}
	return e.Code + ": " + e.Message
}
