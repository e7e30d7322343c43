// Package scheduler implements background job scheduling for the
// membership-records backend. It drives the periodic convergence runs while
// keeping the sweep routine itself independent of any recurrence mechanism.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob is returned when trying to register a nil job.
	ErrNilJob = fmt.Errorf("job cannot be nil")

	// ErrNilSchedule is returned when trying to register a job with nil schedule.
	ErrNilSchedule = fmt.Errorf("schedule cannot be nil")

	// ErrJobAlreadyExists is returned when a job with the same name already exists.
	ErrJobAlreadyExists = fmt.Errorf("job already exists")

	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = fmt.Errorf("job not found")

	// ErrSchedulerAlreadyRunning is returned when Start is called on a running scheduler.
	ErrSchedulerAlreadyRunning = fmt.Errorf("scheduler is already running")

	// ErrSchedulerNotRunning is returned when Stop is called on a stopped scheduler.
	ErrSchedulerNotRunning = fmt.Errorf("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	logger   *slog.Logger
	timezone *time.Location

	jobs      map[string]*scheduledJob
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

// scheduledJob wraps a Job with scheduling information.
type scheduledJob struct {
	job       Job
	schedule  Schedule
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// Config contains configuration for the Scheduler.
type Config struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location
}

// New creates a new Scheduler with the given configuration.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}

	return &Scheduler{
		logger:   config.Logger,
		timezone: config.Timezone,
		jobs:     make(map[string]*scheduledJob),
	}
}

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	now := time.Now().In(s.timezone)
	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(now),
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
		"next_run", sj.nextRun.Format(time.RFC3339),
	)
	return nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		"jobs_count", len(s.jobs),
		"timezone", s.timezone.String(),
	)

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop gracefully stops the scheduler.
// It waits for all currently running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// runLoop wakes at the start of every minute and dispatches due jobs.
func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.untilNextMinute())
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			timer.Reset(s.untilNextMinute())
			s.dispatchDueJobs()
		}
	}
}

// untilNextMinute returns the duration until the start of the next minute.
func (s *Scheduler) untilNextMinute() time.Duration {
	now := time.Now().In(s.timezone)
	return time.Until(now.Truncate(time.Minute).Add(time.Minute))
}

// dispatchDueJobs runs every job whose next-run time has passed.
func (s *Scheduler) dispatchDueJobs() {
	now := time.Now().In(s.timezone)

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if !sj.nextRun.IsZero() && !sj.nextRun.After(now) {
			sj.lastRun = now
			sj.nextRun = sj.schedule.Next(now)
			sj.runCount++
			due = append(due, sj)
		}
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go s.runJob(sj)
	}
}

// runJob executes a single job and records the outcome.
func (s *Scheduler) runJob(sj *scheduledJob) {
	defer s.wg.Done()

	name := sj.job.Name()
	start := time.Now()
	s.logger.Info("job started", "job", name)

	err := sj.job.Run(s.ctx)
	duration := time.Since(start)

	if err != nil {
		s.mu.Lock()
		sj.failCount++
		s.mu.Unlock()

		s.logger.Error("job failed", "job", name, "duration", duration.String(), "error", err)
		return
	}

	s.logger.Info("job completed", "job", name, "duration", duration.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
}

// ListJobs returns information about all registered jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Timezone returns the scheduler's timezone.
func (s *Scheduler) Timezone() *time.Location {
	return s.timezone
}
