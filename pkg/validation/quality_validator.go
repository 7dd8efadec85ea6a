package validation

import (
	"fmt"
	"strings"

	"go-wsi-cohort/pkg/models"
)

// QualityThresholds defines configurable thresholds for slide quality checks
type QualityThresholds struct {
	// Resolution thresholds
	MinImageAreaPixels int64
	MinPyramidLevels   int

	// Storage thresholds
	MaxFileSizeMB float64

	// Calibration plausibility (µm/pixel)
	MinPixelSizeUM float64
	MaxPixelSizeUM float64
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinImageAreaPixels: 1_000_000,
		MinPyramidLevels:   3,
		MaxFileSizeMB:      10_000,
		MinPixelSizeUM:     0.1, // Beyond 100x oil objectives
		MaxPixelSizeUM:     10.0,
	}
}

// QualityValidator handles slide quality validation logic
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Issue types reported by the validator
const (
	IssueSmallImage         = "small_image"
	IssueLargeFile          = "large_file"
	IssueFewPyramidLevels   = "insufficient_pyramid_levels"
	IssueMissingCalibration = "missing_calibration"
	IssueImplausiblePixel   = "implausible_pixel_size"
)

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// SlideQualityMetrics holds the record values a quality check needs. Nil
// means the value is unknown, and unknown values are not judged.
type SlideQualityMetrics struct {
	AreaPixels   *int64
	FileSizeMB   *float64
	LevelCount   *int64
	PixelWidthUM *float64
}

// MetricsFromRecord reads quality inputs from a normalized record
func MetricsFromRecord(rec *models.Record) SlideQualityMetrics {
	var m SlideQualityMetrics
	if v, ok := rec.Int(models.FieldAreaPixels); ok {
		m.AreaPixels = &v
	}
	if v, ok := rec.Float(models.FieldFileSizeMB); ok {
		m.FileSizeMB = &v
	}
	if v, ok := rec.Int(models.FieldLevelCount); ok {
		m.LevelCount = &v
	}
	if v, ok := rec.Float(models.FieldPixelWidthUM); ok {
		m.PixelWidthUM = &v
	}
	return m
}

// PixelSizePlausible reports whether a pixel size lies in the configured range
func (qv *QualityValidator) PixelSizePlausible(um float64) bool {
	return um >= qv.thresholds.MinPixelSizeUM && um <= qv.thresholds.MaxPixelSizeUM
}

// Validate checks one slide against the thresholds
func (qv *QualityValidator) Validate(metrics SlideQualityMetrics) []QualityIssue {
	var issues []QualityIssue

	// 1. Resolution
	if metrics.AreaPixels != nil && *metrics.AreaPixels < qv.thresholds.MinImageAreaPixels {
		issues = append(issues, QualityIssue{
			Type:        IssueSmallImage,
			Message:     "Image area is below the minimum for slide analysis.",
			Severity:    "error",
			ActualValue: float64(*metrics.AreaPixels),
			Threshold:   float64(qv.thresholds.MinImageAreaPixels),
		})
	}

	// 2. File size
	if metrics.FileSizeMB != nil && *metrics.FileSizeMB > qv.thresholds.MaxFileSizeMB {
		issues = append(issues, QualityIssue{
			Type:        IssueLargeFile,
			Message:     "File is larger than the configured maximum.",
			Severity:    "warning",
			ActualValue: *metrics.FileSizeMB,
			Threshold:   qv.thresholds.MaxFileSizeMB,
		})
	}

	// 3. Pyramid depth
	if metrics.LevelCount != nil && *metrics.LevelCount < int64(qv.thresholds.MinPyramidLevels) {
		issues = append(issues, QualityIssue{
			Type:        IssueFewPyramidLevels,
			Message:     fmt.Sprintf("Slide has %d resolution levels; viewers and tilers expect at least %d.", *metrics.LevelCount, qv.thresholds.MinPyramidLevels),
			Severity:    "warning",
			ActualValue: float64(*metrics.LevelCount),
			Threshold:   float64(qv.thresholds.MinPyramidLevels),
		})
	}

	// 4. Calibration
	switch {
	case metrics.PixelWidthUM == nil || *metrics.PixelWidthUM <= 0:
		issues = append(issues, QualityIssue{
			Type:     IssueMissingCalibration,
			Message:  "Slide reports no usable pixel calibration.",
			Severity: "warning",
		})
	case !qv.PixelSizePlausible(*metrics.PixelWidthUM):
		threshold := qv.thresholds.MinPixelSizeUM
		if *metrics.PixelWidthUM > qv.thresholds.MaxPixelSizeUM {
			threshold = qv.thresholds.MaxPixelSizeUM
		}
		issues = append(issues, QualityIssue{
			Type:        IssueImplausiblePixel,
			Message:     "Pixel size is outside the plausible range for whole-slide scanners.",
			Severity:    "error",
			ActualValue: *metrics.PixelWidthUM,
			Threshold:   threshold,
		})
	}

	return issues
}

// ConvertIssuesToMessages converts quality issues to simple messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// JoinIssueTypes renders issue types as one semicolon separated cell
func JoinIssueTypes(issues []QualityIssue) string {
	types := make([]string, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}
	return strings.Join(types, ";")
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
