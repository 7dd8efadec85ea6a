package models

import (
	"fmt"
	"time"
)

// Outcome tags a processing log entry
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeError   Outcome = "ERROR"
)

// LogEntry is one processing log event
type LogEntry struct {
	Outcome Outcome   `json:"outcome"`
	Image   string    `json:"image"`
	Field   string    `json:"field,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Time    time.Time `json:"time"`
}

// String renders the entry as one processing log line
func (e LogEntry) String() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s [%s] - %s", e.Outcome, e.Image, e.Field, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s - %s", e.Outcome, e.Image, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Outcome, e.Image)
	}
}

// Summary holds batch-level counters and run identity
type Summary struct {
	RunID       string    `json:"run_id"`
	ProjectName string    `json:"project_name"`
	ToolVersion string    `json:"tool_version"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Attempted   int       `json:"attempted"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	FieldErrors int       `json:"field_errors"`
	Partial     bool      `json:"partial"`
	AbortReason string    `json:"abort_reason,omitempty"`
}

// CohortResult is the outcome of one batch run. Records and Log are in
// traversal order of the input collection.
type CohortResult struct {
	Records []*Record  `json:"records"`
	Log     []LogEntry `json:"processing_log"`
	Summary Summary    `json:"summary"`
}

// LogLines renders the processing log, one line per entry
func (c *CohortResult) LogLines() []string {
	lines := make([]string, 0, len(c.Log))
	for _, e := range c.Log {
		lines = append(lines, e.String())
	}
	return lines
}

// EntriesFor returns the log entries referencing one image
func (c *CohortResult) EntriesFor(image string) []LogEntry {
	var out []LogEntry
	for _, e := range c.Log {
		if e.Image == image {
			out = append(out, e)
		}
	}
	return out
}
