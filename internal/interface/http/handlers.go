package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/memberhub/member-records/internal/application/sweep"
	"github.com/memberhub/member-records/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY ADMINISTRATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// triggerResponse is the fixed contract of the trigger endpoint. The HTTP
// status is always 200; Success reports the run outcome.
type triggerResponse struct {
	Success     bool            `json:"success"`
	Stats       *sweep.RunStats `json:"stats,omitempty"`
	OperationID string          `json:"operationId,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// handleTriggerUpdate starts a convergence run and waits for it to finish.
// POST /api/v1/categories/trigger-update
func (s *Server) handleTriggerUpdate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sweeper == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "sweeper_unavailable", "Convergence sweeper is not configured")
		return
	}

	reason := getQueryParam(r, "reason", "manual")

	stats, err := s.deps.Sweeper.Run(r.Context(), reason)
	if err != nil {
		if errors.Is(err, sweep.ErrRunInProgress) {
			writeJSON(w, http.StatusOK, triggerResponse{
				Success: false,
				Error:   "an update run is already in progress",
			})
			return
		}

		s.logger.Error("manual convergence run failed",
			logger.Reason(reason),
			logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSON(w, http.StatusOK, triggerResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse{
		Success:     true,
		Stats:       stats,
		OperationID: stats.OperationID,
	})
}

// statsResponse wraps the distribution with an optional degradation note.
type statsResponse struct {
	sweep.Distribution
	Note string `json:"note,omitempty"`
}

// handleCategoryStats returns the current category distribution. A failed
// count degrades to a zeroed snapshot instead of an error status, so
// dashboards keep rendering.
// GET /api/v1/categories/stats
func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Distribution == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "stats_unavailable", "Distribution reader is not configured")
		return
	}

	dist, err := s.deps.Distribution.Read(r.Context())
	if err != nil {
		s.logger.Warn("distribution read failed",
			logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSON(w, http.StatusOK, statsResponse{
			Distribution: sweep.Distribution{LastUpdated: time.Now().UTC()},
			Note:         "record store unavailable, returning zeroed counts",
		})
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Distribution: *dist})
}

// jobStatus describes one scheduled trigger.
type jobStatus struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	RunCount    int64      `json:"runCount"`
	FailCount   int64      `json:"failCount"`
}

// statusResponse describes the scheduling setup.
type statusResponse struct {
	Running           bool        `json:"running"`
	Timezone          string      `json:"timezone"`
	Jobs              []jobStatus `json:"jobs"`
	EligibilityMonths []string    `json:"eligibilityMonths"`
}

// handleSchedulerStatus reports the registered jobs, their cron expressions,
// and the daily job's eligibility window.
// GET /api/v1/categories/status
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "Scheduler is not configured")
		return
	}

	infos := s.deps.Jobs.ListJobs()
	jobs := make([]jobStatus, 0, len(infos))
	for _, info := range infos {
		js := jobStatus{
			Name:        info.Name,
			Description: info.Description,
			Schedule:    info.Schedule,
			RunCount:    info.RunCount,
			FailCount:   info.FailCount,
		}
		if !info.LastRun.IsZero() {
			lastRun := info.LastRun
			js.LastRun = &lastRun
		}
		if !info.NextRun.IsZero() {
			nextRun := info.NextRun
			js.NextRun = &nextRun
		}
		jobs = append(jobs, js)
	}

	months := make([]string, 0, len(s.deps.EligibilityMonths))
	for _, m := range s.deps.EligibilityMonths {
		months = append(months, m.String())
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Running:           s.deps.Jobs.IsRunning(),
		Timezone:          s.deps.Jobs.Timezone().String(),
		Jobs:              jobs,
		EligibilityMonths: months,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN LEDGER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// runsResponse lists recent runs, newest first.
type runsResponse struct {
	Runs  []*sweep.RunStats `json:"runs"`
	Count int               `json:"count"`
}

// handleRecentRuns returns the most recent convergence runs.
// GET /api/v1/categories/runs?limit=20
func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "ledger_unavailable", "Run ledger is not configured")
		return
	}

	limit := getQueryParamInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := s.deps.Ledger.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent runs lookup failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "ledger_error", "Could not read run history")
		return
	}
	if runs == nil {
		runs = []*sweep.RunStats{}
	}

	writeJSON(w, http.StatusOK, runsResponse{Runs: runs, Count: len(runs)})
}

// handleGetRun returns one run by operation ID.
// GET /api/v1/categories/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "ledger_unavailable", "Run ledger is not configured")
		return
	}

	id := r.PathValue("id")
	run, err := s.deps.Ledger.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, sweep.ErrRunNotFound) {
			writeJSONError(w, http.StatusNotFound, "run_not_found", "No run with that operation ID")
			return
		}
		s.logger.Error("run lookup failed", logger.OperationID(id), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "ledger_error", "Could not read run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & INFO HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// healthResponse is the probe contract.
type healthResponse struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Checks    map[string]any `json:"checks,omitempty"`
	Uptime    string         `json:"uptime,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version,omitempty"`
}

// handleHealth runs all registered checks and reports aggregate health.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Message:   status.Message,
		Checks:    make(map[string]any, len(status.Checks)),
		Uptime:    status.Uptime,
		Timestamp: status.Timestamp,
		Version:   status.Version,
	}
	for name, check := range status.Checks {
		resp.Checks[name] = check
	}

	code := http.StatusOK
	if !status.Healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

// handleReady reports readiness to serve requests.
// GET /ready
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// handleLive reports process liveness. Always 200 while the process runs.
// GET /live
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alive": true})
}

// handleRoot returns service information.
// GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": "member-records",
		"uptime":  s.Uptime().Round(time.Second).String(),
		"endpoints": []string{
			"POST /api/v1/categories/trigger-update",
			"GET /api/v1/categories/stats",
			"GET /api/v1/categories/status",
			"GET /api/v1/categories/runs",
			"GET /api/v1/categories/runs/{id}",
			"GET /health",
		},
	})
}
