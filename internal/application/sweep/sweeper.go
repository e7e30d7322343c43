// Package sweep implements the batch convergence sweeper: the routine that
// re-evaluates every candidate education record against the category rules
// and writes back the records whose category changed.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/memberhub/member-records/internal/domain/education"
	"github.com/memberhub/member-records/pkg/timeutil"
)

// ErrRunInProgress is returned when a run is triggered while another run is
// still executing. Runs are never queued.
var ErrRunInProgress = errors.New("convergence run already in progress")

// DefaultBatchSize is the number of records updated per batch.
const DefaultBatchSize = 50

// DefaultBatchDelay is the pause between consecutive batches, keeping write
// pressure on the entity store low.
const DefaultBatchDelay = 1 * time.Second

// RecordStore is the subset of the entity store gateway the sweeper needs.
type RecordStore interface {
	FindRecordsByCategory(ctx context.Context, category education.Category) ([]*education.Record, []error, error)
	UpdateRecordCategory(ctx context.Context, id education.RecordID, category education.Category) error
}

// ExpirySource provides the admin-controlled membership expiry date.
type ExpirySource interface {
	CurrentMembershipExpiry(ctx context.Context) (*time.Time, error)
}

// Config contains the sweeper's tunables.
type Config struct {
	// BatchSize is the number of records per batch. Default 50.
	BatchSize int

	// BatchDelay is the pause between batches. Default 1s.
	BatchDelay time.Duration

	// Logger for structured logging.
	Logger *slog.Logger

	// OnCategoryChanged is invoked once per successful transition.
	OnCategoryChanged education.CategoryChangedHook

	// sleep is the inter-batch wait, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Sweeper runs convergence sweeps over the candidate records.
type Sweeper struct {
	store    RecordStore
	settings ExpirySource
	ledger   RunLedger
	config   Config

	// runGate serializes runs without queueing. Buffered with one slot:
	// acquiring means no other run is active.
	runGate chan struct{}
}

// NewSweeper creates a Sweeper.
func NewSweeper(store RecordStore, settings ExpirySource, ledger RunLedger, config Config) *Sweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchDelay <= 0 {
		config.BatchDelay = DefaultBatchDelay
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.OnCategoryChanged == nil {
		config.OnCategoryChanged = education.NopCategoryChangedHook
	}
	if config.sleep == nil {
		config.sleep = sleepCtx
	}
	if config.now == nil {
		config.now = timeutil.Now
	}
	if ledger == nil {
		ledger = NewMemoryRunLedger(0, 0)
	}

	gate := make(chan struct{}, 1)
	gate <- struct{}{}

	return &Sweeper{
		store:    store,
		settings: settings,
		ledger:   ledger,
		config:   config,
		runGate:  gate,
	}
}

// Ledger exposes the run ledger for the control surface.
func (s *Sweeper) Ledger() RunLedger {
	return s.ledger
}

// Run executes one convergence sweep and returns its statistics.
//
// The run fails as a whole only when the candidate fetch fails or when
// another run is already in progress. Per-record update failures are
// absorbed into the error count. Cancellation stops dispatching new
// batches; the in-flight batch finishes and the stats come back with
// Truncated set.
func (s *Sweeper) Run(ctx context.Context, reason string) (*RunStats, error) {
	select {
	case <-s.runGate:
	default:
		return nil, ErrRunInProgress
	}
	defer func() { s.runGate <- struct{}{} }()

	stats := &RunStats{
		OperationID: uuid.NewString(),
		Reason:      reason,
		StartedAt:   s.config.now(),
	}

	log := s.config.Logger.With("operation_id", stats.OperationID, "reason", reason)
	log.Info("convergence run started")

	expiry, err := s.settings.CurrentMembershipExpiry(ctx)
	if err != nil {
		// An unreadable expiry date is the same as an absent one: rule 2
		// cannot match, records still converge toward GRADUATED.
		log.Warn("membership expiry unavailable, treating as absent", "error", err)
		expiry = nil
	}

	candidates, err := s.fetchCandidates(ctx, stats, log)
	if err != nil {
		log.Error("candidate fetch failed", "error", err)
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	today := s.config.now()
	batches := partition(candidates, s.config.BatchSize)
	log.Info("candidates fetched", "candidates", len(candidates), "batches", len(batches))

	for i, batch := range batches {
		if ctx.Err() != nil {
			stats.Truncated = true
			log.Warn("run cancelled, remaining batches dropped", "completed_batches", i)
			break
		}

		s.processBatch(ctx, batch, expiry, today, stats, log.With("batch_index", i))

		if i < len(batches)-1 {
			if err := s.config.sleep(ctx, s.config.BatchDelay); err != nil {
				stats.Truncated = true
				log.Warn("run cancelled during inter-batch delay", "completed_batches", i+1)
				break
			}
		}
	}

	stats.FinishedAt = s.config.now()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)

	s.saveRun(stats, log)

	log.Info("convergence run finished",
		"total_processed", stats.TotalProcessed,
		"students_to_new_grad", stats.StudentsToNewGrad,
		"new_grad_to_graduated", stats.NewGradToGraduated,
		"graduated_remaining", stats.GraduatedRemaining,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"warnings", stats.Warnings,
		"truncated", stats.Truncated,
		"duration", stats.Duration,
	)

	return stats, nil
}

// fetchCandidates pulls the records that can still change category. Records
// already GRADUATED are terminal and never fetched.
func (s *Sweeper) fetchCandidates(ctx context.Context, stats *RunStats, log *slog.Logger) ([]*education.Record, error) {
	var candidates []*education.Record

	for _, category := range education.CandidateCategories() {
		records, rejected, err := s.store.FindRecordsByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}

		for _, rejectErr := range rejected {
			stats.Errors++
			log.Warn("invalid record skipped", "error", rejectErr)
		}

		candidates = append(candidates, records...)
	}

	return candidates, nil
}

// processBatch evaluates and updates one batch of records.
func (s *Sweeper) processBatch(ctx context.Context, batch []*education.Record, expiry *time.Time, today time.Time, stats *RunStats, log *slog.Logger) {
	for _, record := range batch {
		stats.TotalProcessed++

		if _, recognized := record.GraduationYear.Resolve(today.Year()); !recognized {
			stats.Warnings++
			log.Warn("unrecognized graduation year, using current-year fallback",
				"record_id", record.ID.String(),
				"graduation_year", string(record.GraduationYear),
			)
		}

		newCategory, changed := record.NeedsUpdate(expiry, today)
		if !changed {
			stats.Skipped++
			continue
		}

		if err := s.store.UpdateRecordCategory(ctx, record.ID, newCategory); err != nil {
			stats.Errors++
			log.Warn("record update failed",
				"record_id", record.ID.String(),
				"from", record.Category.String(),
				"to", newCategory.String(),
				"error", err,
			)
			continue
		}

		s.countTransition(record.Category, newCategory, stats)

		s.config.OnCategoryChanged(ctx, education.CategoryChanged{
			RecordID:    record.ID,
			SubjectID:   record.SubjectID,
			OldCategory: record.Category,
			NewCategory: newCategory,
			Reason:      stats.Reason,
			OccurredAt:  s.config.now(),
		})
	}
}

// countTransition attributes a successful update to its stats bucket.
func (s *Sweeper) countTransition(from, to education.Category, stats *RunStats) {
	switch {
	case from == education.CategoryStudent && to == education.CategoryNewGraduated:
		stats.StudentsToNewGrad++
	case from == education.CategoryNewGraduated && to == education.CategoryGraduated:
		stats.NewGradToGraduated++
		stats.GraduatedRemaining++
	case to == education.CategoryGraduated:
		// Direct STUDENT → GRADUATED jump.
		stats.GraduatedRemaining++
	}
}

// saveRun persists the run to the ledger. Ledger failures never fail the run.
func (s *Sweeper) saveRun(stats *RunStats, log *slog.Logger) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.ledger.SaveRun(saveCtx, stats); err != nil {
		log.Warn("run ledger save failed", "error", err)
	}
}

// partition splits records into consecutive batches of size.
func partition(records []*education.Record, size int) [][]*education.Record {
	if len(records) == 0 {
		return nil
	}

	batches := make([][]*education.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
