package models

// Kind is the semantic type a canonical field keeps across every record
type Kind int

const (
	// KindAny marks vendor pass-through values whose dynamic type is kept as read
	KindAny Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "any"
	}
}

// Canonical field names.
const (
	// identity
	FieldImageName     = "image_name"
	FieldProjectName   = "project_name"
	FieldExtractedAt   = "extraction_timestamp"
	FieldReaderVersion = "reader_version"

	// geometry
	FieldWidthPixels  = "width_pixels"
	FieldHeightPixels = "height_pixels"
	FieldChannels     = "channel_count"
	FieldZSlices      = "z_slices"
	FieldTimepoints   = "timepoints"
	FieldLevelCount   = "resolution_level_count"
	FieldRGB          = "is_rgb"
	FieldPixelType    = "pixel_type"
	FieldAreaPixels   = "image_area_pixels"
	FieldAspectRatio  = "aspect_ratio"

	// calibration
	FieldPixelWidthUM  = "pixel_width_um"
	FieldPixelHeightUM = "pixel_height_um"
	FieldPixelUnit     = "pixel_unit"
	FieldZSpacingUM    = "z_spacing_um"
	FieldPixelAvgUM    = "microns_per_pixel_avg"
	FieldWidthUM       = "width_um"
	FieldHeightUM      = "height_um"
	FieldAreaMM2       = "area_mm2"
	FieldEstimatedMag  = "estimated_magnification"

	// file
	FieldFilePath      = "file_path"
	FieldFileExtension = "file_extension"
	FieldFileSizeBytes = "file_size_bytes"
	FieldFileSizeMB    = "file_size_mb"
	FieldFileModified  = "file_last_modified"

	// associated images
	FieldHasMacro        = "has_macro_image"
	FieldHasLabel        = "has_label_image"
	FieldAssociatedCount = "associated_image_count"

	// quality
	FieldHasPyramid        = "has_pyramid"
	FieldPyramidFactor     = "pyramid_factor"
	FieldPyramidEstimated  = "pyramid_factor_is_estimated"
	FieldSuggestedLevel    = "suggested_analysis_level"
	FieldIsFluorescence    = "is_fluorescence"
	FieldNeedsPyramid      = "needs_pyramid"
	FieldPixelPlausible    = "pixel_size_plausible"
	FieldQualityIssues     = "quality_issues"
	FieldQualityPassed     = "quality_passed"
	FieldScannerVendor     = "scanner_vendor"
	FieldICCProfilePresent = "icc_profile_present"
)

// FieldKinds pins the semantic type of every canonical field produced by the
// pipeline. Fields not listed here (scanner pass-through values, fields added
// by extra extractors) are KindAny.
var FieldKinds = map[string]Kind{
	FieldImageName:     KindString,
	FieldProjectName:   KindString,
	FieldExtractedAt:   KindString,
	FieldReaderVersion: KindString,

	FieldWidthPixels:  KindInt,
	FieldHeightPixels: KindInt,
	FieldChannels:     KindInt,
	FieldZSlices:      KindInt,
	FieldTimepoints:   KindInt,
	FieldLevelCount:   KindInt,
	FieldRGB:          KindBool,
	FieldPixelType:    KindString,
	FieldAreaPixels:   KindInt,
	FieldAspectRatio:  KindFloat,

	FieldPixelWidthUM:  KindFloat,
	FieldPixelHeightUM: KindFloat,
	FieldPixelUnit:     KindString,
	FieldZSpacingUM:    KindFloat,
	FieldPixelAvgUM:    KindFloat,
	FieldWidthUM:       KindFloat,
	FieldHeightUM:      KindFloat,
	FieldAreaMM2:       KindFloat,
	FieldEstimatedMag:  KindInt,

	FieldFilePath:      KindString,
	FieldFileExtension: KindString,
	FieldFileSizeBytes: KindInt,
	FieldFileSizeMB:    KindFloat,
	FieldFileModified:  KindString,

	FieldHasMacro:        KindBool,
	FieldHasLabel:        KindBool,
	FieldAssociatedCount: KindInt,

	FieldHasPyramid:        KindBool,
	FieldPyramidFactor:     KindFloat,
	FieldPyramidEstimated:  KindBool,
	FieldSuggestedLevel:    KindInt,
	FieldIsFluorescence:    KindBool,
	FieldNeedsPyramid:      KindBool,
	FieldPixelPlausible:    KindBool,
	FieldQualityIssues:     KindString,
	FieldQualityPassed:     KindBool,
	FieldScannerVendor:     KindString,
	FieldICCProfilePresent: KindBool,
}

// KindOf returns the pinned kind of a field, KindAny when unpinned
func KindOf(field string) Kind {
	if k, ok := FieldKinds[field]; ok {
		return k
	}
	return KindAny
}
