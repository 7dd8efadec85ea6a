package strategy

import (
	"context"
	"fmt"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/metadata"
	"go-wsi-cohort/pkg/models"
	"go-wsi-cohort/pkg/validation"
)

// Extractor adds fields to a record after core normalization and quality
// analysis. Extractors compose; none of them replaces the base pipeline.
type Extractor interface {
	Extract(ctx context.Context, desc models.Descriptor, rec *models.Record) error
	GetStrategyName() string
}

// VendorExtractor canonicalizes the scanner vendor
type VendorExtractor struct {
	matcher *metadata.VendorMatcher
}

// NewVendorExtractor creates a vendor extractor over a token to vendor table
func NewVendorExtractor(table map[string]string, maxDistance int) Extractor {
	return &VendorExtractor{matcher: metadata.NewVendorMatcher(table, maxDistance)}
}

// Extract sets scanner_vendor when the scanner identity or tag namespaces
// name a known vendor
func (s *VendorExtractor) Extract(ctx context.Context, desc models.Descriptor, rec *models.Record) error {
	scanner, _ := rec.Get("scanner")
	// A fresh resolver keeps the record's unmapped metadata untouched
	vendor, ok := s.matcher.Match(scanner, metadata.NewResolver(desc.Tags()))
	if !ok {
		return nil
	}
	return rec.Set(models.FieldScannerVendor, vendor)
}

// GetStrategyName returns the strategy name
func (s *VendorExtractor) GetStrategyName() string {
	return "scanner_vendor"
}

// QualityCheckExtractor applies threshold quality checks
type QualityCheckExtractor struct {
	validator *validation.QualityValidator
}

// NewQualityCheckExtractor creates a quality check extractor
func NewQualityCheckExtractor(validator *validation.QualityValidator) Extractor {
	if validator == nil {
		validator = validation.NewQualityValidator()
	}
	return &QualityCheckExtractor{validator: validator}
}

// Extract sets quality_issues, quality_passed and pixel_size_plausible
func (s *QualityCheckExtractor) Extract(ctx context.Context, desc models.Descriptor, rec *models.Record) error {
	metrics := validation.MetricsFromRecord(rec)
	issues := s.validator.Validate(metrics)

	if err := rec.Set(models.FieldQualityIssues, validation.JoinIssueTypes(issues)); err != nil {
		return err
	}
	if err := rec.Set(models.FieldQualityPassed, !s.validator.HasCriticalIssues(issues)); err != nil {
		return err
	}
	if metrics.PixelWidthUM != nil && *metrics.PixelWidthUM > 0 {
		return rec.Set(models.FieldPixelPlausible, s.validator.PixelSizePlausible(*metrics.PixelWidthUM))
	}
	return nil
}

// GetStrategyName returns the strategy name
func (s *QualityCheckExtractor) GetStrategyName() string {
	return "quality_checks"
}

// FuncExtractor adapts a plain function, for callers adding their own fields
type FuncExtractor struct {
	name string
	fn   func(ctx context.Context, desc models.Descriptor, rec *models.Record) error
}

// NewFuncExtractor wraps fn under a name used to scope its errors
func NewFuncExtractor(name string, fn func(ctx context.Context, desc models.Descriptor, rec *models.Record) error) Extractor {
	return &FuncExtractor{name: name, fn: fn}
}

// Extract runs the wrapped function
func (s *FuncExtractor) Extract(ctx context.Context, desc models.Descriptor, rec *models.Record) error {
	return s.fn(ctx, desc, rec)
}

// GetStrategyName returns the strategy name
func (s *FuncExtractor) GetStrategyName() string {
	return s.name
}

// Chain runs extractors in order
type Chain struct {
	extractors []Extractor
}

// NewChain creates a chain of extractors
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Add appends an extractor
func (c *Chain) Add(e Extractor) {
	c.extractors = append(c.extractors, e)
}

// Names returns the extractor names in execution order
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.extractors))
	for _, e := range c.extractors {
		names = append(names, e.GetStrategyName())
	}
	return names
}

// Execute runs every extractor. An error or panic in one extractor is
// recorded on the record under the extractor's name and the rest still run.
func (c *Chain) Execute(ctx context.Context, desc models.Descriptor, rec *models.Record) {
	for _, e := range c.extractors {
		if err := runExtractor(ctx, e, desc, rec); err != nil {
			rec.AddError(e.GetStrategyName(), apperrors.NewFieldError(e.GetStrategyName(), "extractor failed", err))
		}
	}
}

func runExtractor(ctx context.Context, e Extractor, desc models.Descriptor, rec *models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Extract(ctx, desc, rec)
}
