package sweep

import "time"

// RunStats aggregates the outcome of a single convergence run.
// A run processes every candidate record exactly once; each record lands in
// exactly one of the transition, skipped, or error buckets.
type RunStats struct {
	// OperationID uniquely identifies this run.
	OperationID string `json:"operationId"`

	// Reason records what triggered the run ("manual", "scheduled-daily", ...).
	Reason string `json:"reason"`

	// TotalProcessed is the number of candidate records evaluated.
	TotalProcessed int `json:"totalProcessed"`

	// StudentsToNewGrad counts STUDENT → NEW_GRADUATED transitions.
	StudentsToNewGrad int `json:"studentsToNewGrad"`

	// NewGradToGraduated counts NEW_GRADUATED → GRADUATED transitions.
	NewGradToGraduated int `json:"newGradToGraduated"`

	// GraduatedRemaining counts records that arrived at GRADUATED during this
	// run, including direct STUDENT → GRADUATED jumps.
	GraduatedRemaining int `json:"graduatedRemaining"`

	// Skipped counts records whose category was already correct.
	Skipped int `json:"skipped"`

	// Errors counts per-record update failures. They never abort the run.
	Errors int `json:"errors"`

	// Warnings counts records with unrecognized graduation-year values that
	// were evaluated against the current-year fallback.
	Warnings int `json:"warnings"`

	// Truncated is set when the run was cancelled before dispatching all
	// batches. Counts reflect only the batches that completed.
	Truncated bool `json:"truncated"`

	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
}

// Transitions returns the total number of records whose category changed.
// GraduatedRemaining already includes the NEW_GRADUATED → GRADUATED moves.
func (s *RunStats) Transitions() int {
	return s.StudentsToNewGrad + s.GraduatedRemaining
}

// Distribution is a read-only snapshot of how records spread over categories.
type Distribution struct {
	Students     int                     `json:"students"`
	NewGraduated int                     `json:"newGraduated"`
	Graduated    int                     `json:"graduated"`
	Total        int                     `json:"total"`
	Percentages  DistributionPercentages `json:"percentages"`
	LastUpdated  time.Time               `json:"lastUpdated"`
}

// DistributionPercentages holds each category's share of the total.
type DistributionPercentages struct {
	Students     float64 `json:"students"`
	NewGraduated float64 `json:"newGraduated"`
	Graduated    float64 `json:"graduated"`
}
