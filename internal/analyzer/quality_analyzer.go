package analyzer

import (
	"fmt"
	"math"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/pkg/models"

	"github.com/sirupsen/logrus"
)

// QualityAnalyzer derives pyramid and analysis suggestion fields from a
// normalized record, probing the descriptor only for per-level geometry
type QualityAnalyzer struct {
	opts AnalysisOptions
}

// NewQualityAnalyzer creates an analyzer; zero option values fall back to defaults
func NewQualityAnalyzer(opts AnalysisOptions) *QualityAnalyzer {
	def := DefaultOptions()
	if opts.TargetPixelSizeUM <= 0 {
		opts.TargetPixelSizeUM = def.TargetPixelSizeUM
	}
	if opts.LargeImagePixels <= 0 {
		opts.LargeImagePixels = def.LargeImagePixels
	}
	if opts.AssumedPyramidFactor <= 0 {
		opts.AssumedPyramidFactor = def.AssumedPyramidFactor
	}
	return &QualityAnalyzer{opts: opts}
}

// Analyze enriches the record in place and returns it. Level read failures
// are logged and recorded on the record; they never propagate.
func (a *QualityAnalyzer) Analyze(rec *models.Record, desc models.Descriptor) *models.Record {
	name, _ := rec.String(models.FieldImageName)

	levels, ok := rec.Int(models.FieldLevelCount)
	if !ok || levels < 1 {
		levels = 1
	}
	hasPyramid := levels > 1
	setField(rec, models.FieldHasPyramid, hasPyramid)

	if hasPyramid {
		factor, estimated, err := a.pyramidFactor(desc)
		if err != nil {
			a.levelReadFailed(rec, name, models.FieldPyramidFactor, err)
		}
		setField(rec, models.FieldPyramidFactor, factor)
		setField(rec, models.FieldPyramidEstimated, estimated)
	}

	level, err := a.suggestedLevel(rec, desc, int(levels))
	if err != nil {
		a.levelReadFailed(rec, name, models.FieldSuggestedLevel, err)
	}
	setField(rec, models.FieldSuggestedLevel, level)

	// an RGB image without a channel count has its three colour channels
	channels, okC := rec.Int(models.FieldChannels)
	if rgb, ok := rec.Bool(models.FieldRGB); ok {
		setField(rec, models.FieldIsFluorescence, (okC && channels > 3) || !rgb)
	}

	if area, ok := rec.Int(models.FieldAreaPixels); ok {
		setField(rec, models.FieldNeedsPyramid, !hasPyramid && area > a.opts.LargeImagePixels)
	}

	return rec
}

// pyramidFactor measures width(0)/width(1), falling back to the assumed factor
// flagged as estimated when level 1 cannot be read
func (a *QualityAnalyzer) pyramidFactor(desc models.Descriptor) (float64, bool, error) {
	w0, err := desc.LevelWidth(0)
	if err != nil {
		return a.opts.AssumedPyramidFactor, true, fmt.Errorf("level 0 width: %w", err)
	}
	w1, err := desc.LevelWidth(1)
	if err != nil {
		return a.opts.AssumedPyramidFactor, true, fmt.Errorf("level 1 width: %w", err)
	}
	if w0 <= 0 || w1 <= 0 {
		return a.opts.AssumedPyramidFactor, true, nil
	}
	return math.Round(float64(w0)/float64(w1)*100) / 100, false, nil
}

// suggestedLevel returns the first level whose effective pixel size reaches
// the target, the highest level when none does, and 0 without calibration
func (a *QualityAnalyzer) suggestedLevel(rec *models.Record, desc models.Descriptor, levels int) (int, error) {
	base, ok := rec.Float(models.FieldPixelWidthUM)
	if !ok || !(base > 0) {
		return 0, nil
	}

	// Reported downsamples are rarely exact powers of two
	target := a.opts.TargetPixelSizeUM * (1 - 1e-9)
	for level := 0; level < levels; level++ {
		ds, err := desc.LevelDownsample(level)
		if err != nil {
			return 0, fmt.Errorf("level %d downsample: %w", level, err)
		}
		if base*ds >= target {
			return level, nil
		}
	}
	return levels - 1, nil
}

func (a *QualityAnalyzer) levelReadFailed(rec *models.Record, image, field string, err error) {
	rec.AddError(field, apperrors.NewFieldError(field, "level read failed", err))
	logger.WithFields(logrus.Fields{
		"image": image,
		"field": field,
		"error": err.Error(),
	}).Warn("Resolution level read failed")
}

func setField(rec *models.Record, field string, value any) {
	if err := rec.Set(field, value); err != nil {
		rec.AddError(field, apperrors.NewFieldError(field, "invalid value", err))
	}
}
