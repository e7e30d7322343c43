package education

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY CHANGE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// CategoryChanged describes a single category transition applied by the
// convergence engine. Emitted once per successfully updated record.
type CategoryChanged struct {
	RecordID    RecordID          `json:"record_id"`
	SubjectID   SubjectBusinessID `json:"subject_id"`
	OldCategory Category          `json:"old_category"`
	NewCategory Category          `json:"new_category"`
	Reason      string            `json:"reason"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// CategoryChangedHook is invoked by the sweeper for every applied transition.
// The host decides what to do with it - structured logging, a message bus,
// or nothing. Hooks must be fast; a slow hook delays the whole batch.
type CategoryChangedHook func(ctx context.Context, change CategoryChanged)

// NopCategoryChangedHook discards all change notifications.
func NopCategoryChangedHook(context.Context, CategoryChanged) {}
