package models

import (
	"fmt"
)

// Descriptor is the read-only view of one whole-slide image produced by the
// image-reading collaborator. Accessors that query the underlying reader may
// fail; callers treat a failure as scoped to the fields that depend on it.
type Descriptor interface {
	Name() string
	ProjectName() string
	ReaderVersion() string

	Dimensions() (Dimensions, error)
	Calibration() (Calibration, error)

	// LevelCount is the number of resolution levels, at least 1.
	LevelCount() (int, error)
	LevelWidth(level int) (int64, error)
	LevelDownsample(level int) (float64, error)

	URIs() []string
	AssociatedImages() []string

	// Tags is the raw vendor metadata bag. It must not be indexed directly
	// outside the field resolver.
	Tags() map[string]any
}

// Dimensions holds the geometry reported for the full resolution level.
// Channels, ZSlices and Timepoints are 0 when the reader does not report them.
type Dimensions struct {
	Width      int64
	Height     int64
	Channels   int
	ZSlices    int
	Timepoints int
	RGB        bool
	PixelType  string
}

// Calibration holds the physical pixel size in micrometers.
// Available is false when the reader reports no calibration at all.
type Calibration struct {
	Available     bool
	PixelWidthUM  float64
	PixelHeightUM float64
	Unit          string
	ZSpacingUM    *float64
}

// Level describes one pyramid level in a descriptor manifest
type Level struct {
	Width      int64   `json:"width" yaml:"width"`
	Height     int64   `json:"height,omitempty" yaml:"height,omitempty"`
	Downsample float64 `json:"downsample,omitempty" yaml:"downsample,omitempty"`
}

// SlideDescriptor is a plain value implementation of Descriptor, decoded from
// manifests, HTTP slide servers and API requests.
type SlideDescriptor struct {
	ImageName     string         `json:"name" yaml:"name"`
	Project       string         `json:"project_name,omitempty" yaml:"project_name,omitempty"`
	Reader        string         `json:"reader_version,omitempty" yaml:"reader_version,omitempty"`
	Width         int64          `json:"width" yaml:"width"`
	Height        int64          `json:"height" yaml:"height"`
	Channels      int            `json:"channels,omitempty" yaml:"channels,omitempty"`
	ZSlices       int            `json:"z_slices,omitempty" yaml:"z_slices,omitempty"`
	Timepoints    int            `json:"timepoints,omitempty" yaml:"timepoints,omitempty"`
	RGB           bool           `json:"rgb" yaml:"rgb"`
	PixelType     string         `json:"pixel_type,omitempty" yaml:"pixel_type,omitempty"`
	Levels        []Level        `json:"levels,omitempty" yaml:"levels,omitempty"`
	PixelWidthUM  *float64       `json:"pixel_width_um,omitempty" yaml:"pixel_width_um,omitempty"`
	PixelHeightUM *float64       `json:"pixel_height_um,omitempty" yaml:"pixel_height_um,omitempty"`
	Unit          string         `json:"unit,omitempty" yaml:"unit,omitempty"`
	ZSpacingUM    *float64       `json:"z_spacing_um,omitempty" yaml:"z_spacing_um,omitempty"`
	Sources       []string       `json:"uris,omitempty" yaml:"uris,omitempty"`
	Associated    []string       `json:"associated_images,omitempty" yaml:"associated_images,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (d *SlideDescriptor) Name() string          { return d.ImageName }
func (d *SlideDescriptor) ProjectName() string   { return d.Project }
func (d *SlideDescriptor) ReaderVersion() string { return d.Reader }

func (d *SlideDescriptor) Dimensions() (Dimensions, error) {
	return Dimensions{
		Width:      d.Width,
		Height:     d.Height,
		Channels:   max(d.Channels, 0),
		ZSlices:    max(d.ZSlices, 0),
		Timepoints: max(d.Timepoints, 0),
		RGB:        d.RGB,
		PixelType:  d.PixelType,
	}, nil
}

func (d *SlideDescriptor) Calibration() (Calibration, error) {
	if d.PixelWidthUM == nil {
		return Calibration{Unit: d.Unit}, nil
	}
	height := *d.PixelWidthUM
	if d.PixelHeightUM != nil {
		height = *d.PixelHeightUM
	}
	unit := d.Unit
	if unit == "" {
		unit = "µm"
	}
	return Calibration{
		Available:     true,
		PixelWidthUM:  *d.PixelWidthUM,
		PixelHeightUM: height,
		Unit:          unit,
		ZSpacingUM:    d.ZSpacingUM,
	}, nil
}

func (d *SlideDescriptor) LevelCount() (int, error) {
	if len(d.Levels) == 0 {
		return 1, nil
	}
	return len(d.Levels), nil
}

func (d *SlideDescriptor) LevelWidth(level int) (int64, error) {
	if len(d.Levels) == 0 && level == 0 {
		return d.Width, nil
	}
	if level < 0 || level >= len(d.Levels) {
		return 0, fmt.Errorf("level %d out of range (have %d)", level, len(d.Levels))
	}
	return d.Levels[level].Width, nil
}

// LevelDownsample returns the declared downsample or, when absent, the ratio of
// the level 0 width to the level width.
func (d *SlideDescriptor) LevelDownsample(level int) (float64, error) {
	if level == 0 && len(d.Levels) == 0 {
		return 1, nil
	}
	if level < 0 || level >= len(d.Levels) {
		return 0, fmt.Errorf("level %d out of range (have %d)", level, len(d.Levels))
	}
	if ds := d.Levels[level].Downsample; ds > 0 {
		return ds, nil
	}
	base, err := d.LevelWidth(0)
	if err != nil {
		return 0, err
	}
	width := d.Levels[level].Width
	if width <= 0 || base <= 0 {
		return 0, fmt.Errorf("level %d has no usable width", level)
	}
	return float64(base) / float64(width), nil
}

func (d *SlideDescriptor) URIs() []string             { return d.Sources }
func (d *SlideDescriptor) AssociatedImages() []string { return d.Associated }
func (d *SlideDescriptor) Tags() map[string]any       { return d.Metadata }
