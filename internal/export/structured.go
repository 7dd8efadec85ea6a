package export

import (
	"time"

	"go-wsi-cohort/pkg/models"
)

// Document is the structured export envelope. Records keep their dynamic
// value types.
type Document struct {
	ExportTimestamp string           `json:"export_timestamp"`
	ToolVersion     string           `json:"tool_version"`
	ProjectName     string           `json:"project_name"`
	TotalImages     int              `json:"total_images"`
	RunID           string           `json:"run_id,omitempty"`
	Partial         bool             `json:"partial"`
	Summary         *models.Summary  `json:"summary,omitempty"`
	ColumnCoverage  map[string]int   `json:"column_coverage,omitempty"`
	ProcessingLog   []string         `json:"processing_log,omitempty"`
	Records         []*models.Record `json:"cohort_metadata"`
}

// StructuredOptions selects the optional envelope sections
type StructuredOptions struct {
	ToolVersion          string
	ProjectName          string
	IncludeSummary       bool
	IncludeProcessingLog bool
}

// ToStructured builds the envelope for a result. The project name falls back
// to the one recorded in the run summary.
func ToStructured(result *models.CohortResult, opts StructuredOptions, now time.Time) *Document {
	project := opts.ProjectName
	if project == "" {
		project = result.Summary.ProjectName
	}
	version := opts.ToolVersion
	if version == "" {
		version = result.Summary.ToolVersion
	}

	records := result.Records
	if records == nil {
		records = []*models.Record{}
	}

	doc := &Document{
		ExportTimestamp: now.UTC().Format(time.RFC3339),
		ToolVersion:     version,
		ProjectName:     project,
		TotalImages:     len(records),
		RunID:           result.Summary.RunID,
		Partial:         result.Summary.Partial,
		Records:         records,
	}
	if opts.IncludeSummary {
		summary := result.Summary
		doc.Summary = &summary
		doc.ColumnCoverage = ColumnCoverage(records)
	}
	if opts.IncludeProcessingLog {
		doc.ProcessingLog = result.LogLines()
	}
	return doc
}
