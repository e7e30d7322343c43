// Package jobs contains the scheduled convergence jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memberhub/member-records/internal/application/sweep"
	"github.com/memberhub/member-records/pkg/timeutil"
)

// Cron expressions for the periodic triggers, evaluated in the home timezone.
const (
	// DailyCron runs the daily convergence check at 06:00.
	DailyCron = "0 6 * * *"

	// AnnualCron runs the year-boundary convergence shortly after midnight
	// on 1 January, catching rollover transitions the daily job's
	// eligibility window might delay.
	AnnualCron = "15 0 1 1 *"
)

// Reason tags attached to scheduled runs.
const (
	ReasonDaily  = "scheduled-daily"
	ReasonAnnual = "scheduled-annual"
)

// DefaultEligibilityMonths are the membership-year transition months during
// which the daily job performs a full sweep. Outside them it no-ops.
func DefaultEligibilityMonths() []time.Month {
	return []time.Month{time.January, time.May, time.June, time.December}
}

// SweepRunner is the sweep entry point the jobs drive.
type SweepRunner interface {
	Run(ctx context.Context, reason string) (*sweep.RunStats, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyConvergenceJob runs the convergence sweep once a day, but only during
// the configured eligibility months. The gating is a cost-control heuristic,
// not a correctness requirement: the annual and manual triggers always run.
type DailyConvergenceJob struct {
	sweeper SweepRunner
	months  []time.Month
	logger  *slog.Logger
	now     func() time.Time
}

// NewDailyConvergenceJob creates the daily job. Passing no months selects
// the default eligibility window.
func NewDailyConvergenceJob(sweeper SweepRunner, months []time.Month, logger *slog.Logger) *DailyConvergenceJob {
	if len(months) == 0 {
		months = DefaultEligibilityMonths()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyConvergenceJob{
		sweeper: sweeper,
		months:  months,
		logger:  logger,
		now:     timeutil.Now,
	}
}

// Name returns the unique name of the job.
func (j *DailyConvergenceJob) Name() string {
	return "daily-convergence"
}

// Description returns a human-readable description of the job.
func (j *DailyConvergenceJob) Description() string {
	return fmt.Sprintf("daily category convergence sweep, active in months %v", j.months)
}

// EligibilityMonths returns the months the job is active in.
func (j *DailyConvergenceJob) EligibilityMonths() []time.Month {
	return j.months
}

// Run executes the sweep if the current month is inside the eligibility
// window, and no-ops otherwise.
func (j *DailyConvergenceJob) Run(ctx context.Context) error {
	now := j.now()
	if !timeutil.MonthIn(now, j.months) {
		j.logger.Info("daily convergence skipped, outside eligibility window",
			"month", now.Month().String(),
		)
		return nil
	}

	return runSweep(ctx, j.sweeper, ReasonDaily, j.logger)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANNUAL JOB
// ══════════════════════════════════════════════════════════════════════════════

// AnnualConvergenceJob runs the convergence sweep at the year boundary,
// unconditionally.
type AnnualConvergenceJob struct {
	sweeper SweepRunner
	logger  *slog.Logger
}

// NewAnnualConvergenceJob creates the annual job.
func NewAnnualConvergenceJob(sweeper SweepRunner, logger *slog.Logger) *AnnualConvergenceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnnualConvergenceJob{sweeper: sweeper, logger: logger}
}

// Name returns the unique name of the job.
func (j *AnnualConvergenceJob) Name() string {
	return "annual-convergence"
}

// Description returns a human-readable description of the job.
func (j *AnnualConvergenceJob) Description() string {
	return "unconditional year-boundary category convergence sweep"
}

// Run executes the sweep.
func (j *AnnualConvergenceJob) Run(ctx context.Context) error {
	return runSweep(ctx, j.sweeper, ReasonAnnual, j.logger)
}

// runSweep drives one sweep for a periodic trigger. A run already in
// progress is expected occasionally and not treated as a job failure.
func runSweep(ctx context.Context, sweeper SweepRunner, reason string, logger *slog.Logger) error {
	stats, err := sweeper.Run(ctx, reason)
	if err != nil {
		if errors.Is(err, sweep.ErrRunInProgress) {
			logger.Warn("convergence run already in progress, trigger dropped", "reason", reason)
			return nil
		}
		return fmt.Errorf("convergence run: %w", err)
	}

	logger.Info("scheduled convergence run finished",
		"reason", reason,
		"operation_id", stats.OperationID,
		"transitions", stats.Transitions(),
		"errors", stats.Errors,
	)
	return nil
}
