// Package normalizer turns one image descriptor into a canonical record.
package normalizer

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/internal/metadata"
	"go-wsi-cohort/internal/storage"
	"go-wsi-cohort/pkg/models"

	"github.com/sirupsen/logrus"
)

// Field groups used to scope accessor failures that affect several fields
const (
	GroupDimensions  = "dimensions"
	GroupCalibration = "calibration"
	GroupLevels      = "resolution_levels"
	GroupFile        = "file"
)

// referencePixelSizeUM at referenceMagnification is the fixed scale used to
// estimate magnification from calibration
const (
	referencePixelSizeUM   = 0.25
	referenceMagnification = 40.0
)

// Normalizer builds NormalizedRecords from descriptors
type Normalizer struct {
	statter     storage.FileStatter
	projectName string
	now         func() time.Time
}

// New creates a normalizer. A nil statter leaves file stat fields empty.
func New(statter storage.FileStatter) *Normalizer {
	return &Normalizer{statter: statter, now: time.Now}
}

// WithClock replaces the extraction timestamp source
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// WithProjectName sets the project used when a descriptor reports none
func (n *Normalizer) WithProjectName(name string) *Normalizer {
	n.projectName = name
	return n
}

// Normalize produces the canonical record for one descriptor. A failure
// deriving a field never aborts the remaining fields: it is attached to the
// record as a FieldError and the affected fields stay absent.
func (n *Normalizer) Normalize(ctx context.Context, desc models.Descriptor) *models.Record {
	rec := models.NewRecord()

	n.identity(rec, desc)
	dims, dimsOK := n.geometry(rec, desc)
	n.calibration(rec, desc, dims, dimsOK)

	resolver := metadata.NewResolver(desc.Tags())
	n.scanner(rec, resolver)
	rec.Unmapped = resolver.Unmapped()

	n.file(ctx, rec, desc)
	n.associated(rec, desc)

	if len(rec.Errors) > 0 {
		logger.WithFields(logrus.Fields{
			"image":  desc.Name(),
			"errors": len(rec.Errors),
		}).Debug("Normalization finished with field errors")
	}
	return rec
}

// set stores a value and turns a kind violation into a field error
func set(rec *models.Record, field string, value any) {
	if err := rec.Set(field, value); err != nil {
		rec.AddError(field, apperrors.NewFieldError(field, "invalid value", err))
	}
}

func fail(rec *models.Record, field string, err error) {
	rec.AddError(field, apperrors.NewFieldError(field, "derivation failed", err))
}

func (n *Normalizer) identity(rec *models.Record, desc models.Descriptor) {
	set(rec, models.FieldImageName, desc.Name())

	project := desc.ProjectName()
	if project == "" {
		project = n.projectName
	}
	if project != "" {
		set(rec, models.FieldProjectName, project)
	}

	set(rec, models.FieldExtractedAt, n.now().UTC().Format(time.RFC3339))
	if v := desc.ReaderVersion(); v != "" {
		set(rec, models.FieldReaderVersion, v)
	}
}

func (n *Normalizer) geometry(rec *models.Record, desc models.Descriptor) (models.Dimensions, bool) {
	levels, err := desc.LevelCount()
	if err != nil {
		fail(rec, GroupLevels, err)
	} else {
		set(rec, models.FieldLevelCount, levels)
	}

	dims, err := desc.Dimensions()
	if err != nil {
		fail(rec, GroupDimensions, err)
		return models.Dimensions{}, false
	}

	set(rec, models.FieldWidthPixels, dims.Width)
	set(rec, models.FieldHeightPixels, dims.Height)
	// unreported counts stay absent
	for field, n := range map[string]int{
		models.FieldChannels:   dims.Channels,
		models.FieldZSlices:    dims.ZSlices,
		models.FieldTimepoints: dims.Timepoints,
	} {
		if n > 0 {
			set(rec, field, n)
		}
	}
	set(rec, models.FieldRGB, dims.RGB)
	if dims.PixelType != "" {
		set(rec, models.FieldPixelType, dims.PixelType)
	}

	area, err := imageArea(dims.Width, dims.Height)
	if err != nil {
		fail(rec, models.FieldAreaPixels, err)
	} else {
		set(rec, models.FieldAreaPixels, area)
	}

	if dims.Height > 0 && dims.Width > 0 {
		set(rec, models.FieldAspectRatio, round(float64(dims.Width)/float64(dims.Height), 4))
	}
	return dims, true
}

// imageArea multiplies in int64; slides beyond 2^63 pixels are rejected
func imageArea(width, height int64) (int64, error) {
	if width < 0 || height < 0 {
		return 0, fmt.Errorf("negative dimensions %dx%d", width, height)
	}
	if width != 0 && height > math.MaxInt64/width {
		return 0, fmt.Errorf("area of %dx%d overflows", width, height)
	}
	return width * height, nil
}

func (n *Normalizer) calibration(rec *models.Record, desc models.Descriptor, dims models.Dimensions, dimsOK bool) {
	cal, err := desc.Calibration()
	if err != nil {
		fail(rec, GroupCalibration, err)
		return
	}
	if !cal.Available {
		return
	}

	set(rec, models.FieldPixelWidthUM, cal.PixelWidthUM)
	set(rec, models.FieldPixelHeightUM, cal.PixelHeightUM)
	if cal.Unit != "" {
		set(rec, models.FieldPixelUnit, cal.Unit)
	}
	if cal.ZSpacingUM != nil {
		set(rec, models.FieldZSpacingUM, *cal.ZSpacingUM)
	}

	pw, ph := cal.PixelWidthUM, cal.PixelHeightUM
	if !(pw > 0) || math.IsInf(pw, 0) {
		return
	}

	if mag, ok := EstimateMagnification(pw); ok {
		set(rec, models.FieldEstimatedMag, mag)
	} else {
		fail(rec, models.FieldEstimatedMag, fmt.Errorf("pixel width %g µm is outside the magnification scale", pw))
	}
	if ph > 0 {
		set(rec, models.FieldPixelAvgUM, (pw+ph)/2)
	}
	if !dimsOK {
		return
	}

	widthUM := float64(dims.Width) * pw
	set(rec, models.FieldWidthUM, widthUM)
	if ph > 0 {
		heightUM := float64(dims.Height) * ph
		set(rec, models.FieldHeightUM, heightUM)
		set(rec, models.FieldAreaMM2, widthUM*heightUM/1_000_000)
	}
}

// EstimateMagnification maps a pixel size onto the 0.25 µm = 40x scale,
// rounding half away from zero. Non-positive sizes, and sizes so small that
// the estimate does not fit an int64, have no estimate.
func EstimateMagnification(pixelWidthUM float64) (int64, bool) {
	if !(pixelWidthUM > 0) {
		return 0, false
	}
	mag := math.Round(referencePixelSizeUM / pixelWidthUM * referenceMagnification)
	if math.IsNaN(mag) || math.IsInf(mag, 0) || mag >= 0x1p63 {
		return 0, false
	}
	return int64(mag), true
}

func (n *Normalizer) scanner(rec *models.Record, resolver *metadata.Resolver) {
	for _, m := range metadata.ScannerFields {
		v, _, ok := resolver.Resolve(m.Candidates...)
		if !ok || v == nil {
			continue
		}
		set(rec, m.Field, v)
	}

	icc, ok := rec.Get("icc_profile")
	set(rec, models.FieldICCProfilePresent, ok && strings.TrimSpace(fmt.Sprint(icc)) != "")
}

func (n *Normalizer) file(ctx context.Context, rec *models.Record, desc models.Descriptor) {
	uris := desc.URIs()
	if len(uris) == 0 || uris[0] == "" {
		return
	}

	location := uris[0]
	filePath := location
	if p, ok := storage.LocalPath(location); ok {
		filePath = p
	}
	set(rec, models.FieldFilePath, filePath)
	if ext := Extension(filePath); ext != "" {
		set(rec, models.FieldFileExtension, ext)
	}

	if n.statter == nil {
		return
	}
	info, err := n.statter.Stat(ctx, location)
	if err != nil {
		// A missing or unreadable file leaves the stat fields empty
		logger.WithFields(logrus.Fields{
			"image":    desc.Name(),
			"location": location,
			"error":    err.Error(),
		}).Debug("File stat unavailable")
		return
	}

	set(rec, models.FieldFileSizeBytes, info.SizeBytes)
	set(rec, models.FieldFileSizeMB, round(float64(info.SizeBytes)/(1024*1024), 2))
	if !info.LastModified.IsZero() {
		set(rec, models.FieldFileModified, info.LastModified.UTC().Format(time.RFC3339))
	}
}

// Extension returns the lowercase extension of the last path segment without
// the dot, or "" when the segment has none
func Extension(location string) string {
	base := location
	if i := strings.IndexAny(base, "?#"); i >= 0 && strings.Contains(base, "://") {
		base = base[:i]
	}
	base = path.Base(strings.ReplaceAll(base, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// associated checks names case sensitively; "Macro" or "LABEL" do not count
func (n *Normalizer) associated(rec *models.Record, desc models.Descriptor) {
	names := desc.AssociatedImages()
	hasMacro, hasLabel := false, false
	for _, name := range names {
		switch name {
		case "macro":
			hasMacro = true
		case "label":
			hasLabel = true
		}
	}
	set(rec, models.FieldHasMacro, hasMacro)
	set(rec, models.FieldHasLabel, hasLabel)
	set(rec, models.FieldAssociatedCount, len(names))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
