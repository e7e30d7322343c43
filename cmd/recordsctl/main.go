// Package main implements recordsctl, the operator CLI for the
// membership-records control surface. It talks to the worker's HTTP API:
//
//	recordsctl trigger            start a convergence run and print its stats
//	recordsctl stats              show the category distribution
//	recordsctl status             show the scheduled jobs
//	recordsctl runs               list recent convergence runs
//	recordsctl run <operationId>  show one run
//	recordsctl health             show collaborator health
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

const defaultTimeout = 15 * time.Minute // a triggered run waits for completion

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", envOr("RECORDSCTL_URL", "http://localhost:8080"), "control surface base URL")
	apiKey := flag.String("key", envOr("RECORDSCTL_API_KEY", ""), "API key for the trigger endpoint")
	reason := flag.String("reason", "manual", "reason tag for triggered runs")
	limit := flag.Int("limit", 20, "number of runs to list")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctl := &controlClient{
		baseURL: *baseURL,
		apiKey:  *apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	var err error
	switch flag.Arg(0) {
	case "trigger":
		err = ctl.trigger(*reason)
	case "stats":
		err = ctl.stats()
	case "status":
		err = ctl.status()
	case "runs":
		err = ctl.runs(*limit)
	case "run":
		if flag.NArg() < 2 {
			err = fmt.Errorf("usage: recordsctl run <operationId>")
		} else {
			err = ctl.run(flag.Arg(1))
		}
	case "health":
		err = ctl.health()
	default:
		err = fmt.Errorf("unknown command %q", flag.Arg(0))
	}

	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

// controlClient is a thin client over the worker's REST API.
type controlClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func (c *controlClient) get(path string, into any) error {
	return c.do(http.MethodGet, path, into)
}

func (c *controlClient) do(method, path string, into any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(body))
	}

	return json.Unmarshal(body, into)
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

type runStats struct {
	OperationID        string `json:"operationId"`
	Reason             string `json:"reason"`
	TotalProcessed     int    `json:"totalProcessed"`
	StudentsToNewGrad  int    `json:"studentsToNewGrad"`
	NewGradToGraduated int    `json:"newGradToGraduated"`
	GraduatedRemaining int    `json:"graduatedRemaining"`
	Skipped            int    `json:"skipped"`
	Errors             int    `json:"errors"`
	Warnings           int    `json:"warnings"`
	Truncated          bool   `json:"truncated"`
	StartedAt          string `json:"startedAt"`
}

func (c *controlClient) trigger(reason string) error {
	var result struct {
		Success     bool      `json:"success"`
		Stats       *runStats `json:"stats"`
		OperationID string    `json:"operationId"`
		Error       string    `json:"error"`
	}

	path := "/api/v1/categories/trigger-update?reason=" + url.QueryEscape(reason)
	if err := c.do(http.MethodPost, path, &result); err != nil {
		return err
	}

	if !result.Success {
		color.Red("run failed: %s", result.Error)
		return nil
	}

	color.Green("run completed: %s", result.OperationID)
	printRunTable(result.Stats)
	return nil
}

func (c *controlClient) stats() error {
	var dist struct {
		Students     int `json:"students"`
		NewGraduated int `json:"newGraduated"`
		Graduated    int `json:"graduated"`
		Total        int `json:"total"`
		Percentages  struct {
			Students     float64 `json:"students"`
			NewGraduated float64 `json:"newGraduated"`
			Graduated    float64 `json:"graduated"`
		} `json:"percentages"`
		LastUpdated string `json:"lastUpdated"`
		Note        string `json:"note"`
	}

	if err := c.get("/api/v1/categories/stats", &dist); err != nil {
		return err
	}

	color.Cyan("\nCategory Distribution")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "Count", "Share"})
	table.Append([]string{"STUDENT", strconv.Itoa(dist.Students), percent(dist.Percentages.Students)})
	table.Append([]string{"NEW_GRADUATED", strconv.Itoa(dist.NewGraduated), percent(dist.Percentages.NewGraduated)})
	table.Append([]string{"GRADUATED", strconv.Itoa(dist.Graduated), percent(dist.Percentages.Graduated)})
	table.SetFooter([]string{"TOTAL", strconv.Itoa(dist.Total), ""})
	table.Render()

	if dist.Note != "" {
		color.Yellow("note: %s", dist.Note)
	}
	return nil
}

func (c *controlClient) status() error {
	var status struct {
		Running  bool   `json:"running"`
		Timezone string `json:"timezone"`
		Jobs     []struct {
			Name      string `json:"name"`
			Schedule  string `json:"schedule"`
			LastRun   string `json:"lastRun"`
			NextRun   string `json:"nextRun"`
			RunCount  int64  `json:"runCount"`
			FailCount int64  `json:"failCount"`
		} `json:"jobs"`
		EligibilityMonths []string `json:"eligibilityMonths"`
	}

	if err := c.get("/api/v1/categories/status", &status); err != nil {
		return err
	}

	if status.Running {
		color.Green("scheduler running (timezone %s)", status.Timezone)
	} else {
		color.Yellow("scheduler stopped (timezone %s)", status.Timezone)
	}
	fmt.Printf("daily job eligibility months: %v\n", status.EligibilityMonths)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Job", "Schedule", "Last Run", "Next Run", "Runs", "Failures"})
	for _, job := range status.Jobs {
		table.Append([]string{
			job.Name,
			job.Schedule,
			orDash(job.LastRun),
			orDash(job.NextRun),
			strconv.FormatInt(job.RunCount, 10),
			strconv.FormatInt(job.FailCount, 10),
		})
	}
	table.Render()
	return nil
}

func (c *controlClient) runs(limit int) error {
	var listing struct {
		Runs  []runStats `json:"runs"`
		Count int        `json:"count"`
	}

	if err := c.get("/api/v1/categories/runs?limit="+strconv.Itoa(limit), &listing); err != nil {
		return err
	}

	if listing.Count == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Operation ID", "Reason", "Started", "Processed", "Changed", "Errors"})
	for _, run := range listing.Runs {
		changed := run.StudentsToNewGrad + run.GraduatedRemaining
		table.Append([]string{
			run.OperationID,
			run.Reason,
			run.StartedAt,
			strconv.Itoa(run.TotalProcessed),
			strconv.Itoa(changed),
			strconv.Itoa(run.Errors),
		})
	}
	table.Render()
	return nil
}

func (c *controlClient) run(operationID string) error {
	var run runStats
	if err := c.get("/api/v1/categories/runs/"+url.PathEscape(operationID), &run); err != nil {
		return err
	}
	printRunTable(&run)
	return nil
}

func (c *controlClient) health() error {
	var health struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Healthy  bool   `json:"healthy"`
			Message  string `json:"message"`
			Duration string `json:"duration"`
		} `json:"checks"`
	}

	// The endpoint answers 503 when unhealthy; the body is still the report.
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("GET /health: %s: %w", resp.Status, err)
	}

	if health.Status == "healthy" {
		color.Green("service healthy")
	} else {
		color.Red("service %s", health.Status)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Check", "Healthy", "Message", "Duration"})
	for name, check := range health.Checks {
		table.Append([]string{name, strconv.FormatBool(check.Healthy), check.Message, check.Duration})
	}
	table.Render()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

func printRunTable(stats *runStats) {
	if stats == nil {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Operation ID", stats.OperationID})
	table.Append([]string{"Reason", stats.Reason})
	table.Append([]string{"Total processed", strconv.Itoa(stats.TotalProcessed)})
	table.Append([]string{"STUDENT -> NEW_GRADUATED", strconv.Itoa(stats.StudentsToNewGrad)})
	table.Append([]string{"NEW_GRADUATED -> GRADUATED", strconv.Itoa(stats.NewGradToGraduated)})
	table.Append([]string{"Arrived at GRADUATED", strconv.Itoa(stats.GraduatedRemaining)})
	table.Append([]string{"Skipped", strconv.Itoa(stats.Skipped)})
	table.Append([]string{"Errors", strconv.Itoa(stats.Errors)})
	table.Append([]string{"Warnings", strconv.Itoa(stats.Warnings)})
	table.Append([]string{"Truncated", strconv.FormatBool(stats.Truncated)})
	table.Render()

	if stats.Truncated {
		color.Yellow("run was cancelled before finishing; counts cover completed batches only")
	}
	if stats.Errors > 0 {
		color.Yellow("%d record(s) failed to update and will be retried on the next run", stats.Errors)
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
