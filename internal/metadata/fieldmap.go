package metadata

// FieldMapping binds a canonical field to its candidate raw key substrings,
// most specific first.
type FieldMapping struct {
	Field      string
	Candidates []string
}

// ScannerFields is the scanner and acquisition mapping table. Order matters
// only for consumption of shared keys: a raw key claimed by an earlier field
// can still be matched by a later one.
var ScannerFields = []FieldMapping{
	{Field: "scanner", Candidates: []string{"ScannerModel", "ScannerType", "Scanner", "Instrument", "Device"}},
	{Field: "scanner_serial", Candidates: []string{"ScannerSerialID", "ScanScope ID", "SerialNumber", "Serial"}},
	{Field: "scan_date", Candidates: []string{"ScanDate", "AcquisitionDate", "DateTime", "Date"}},
	{Field: "scan_time", Candidates: []string{"ScanTime", "AcquisitionTime", "Time"}},
	{Field: "timezone", Candidates: []string{"TimeZone", "Time Zone"}},
	{Field: "objective_magnification", Candidates: []string{"AppMag", "ObjectivePower", "objective-power", "NominalMagnification", "Magnification", "Objective"}},
	{Field: "focus_method", Candidates: []string{"FocusMethod", "Focus Method", "Focus"}},
	{Field: "exposure_time", Candidates: []string{"ExposureTime", "Exposure Time", "Exposure"}},
	{Field: "exposure_scale", Candidates: []string{"ExposureScale", "Exposure Scale"}},
	{Field: "compression", Candidates: []string{"CompressionType", "Compression", "Codec"}},
	{Field: "compression_quality", Candidates: []string{"CompressionQuality", "Compression Quality", "JPEGQuality", "Quality"}},
	{Field: "compression_ratio", Candidates: []string{"CompressionRatio", "Compression Ratio"}},
	{Field: "stage_position_x", Candidates: []string{"StagePositionX", "Stage Position X", "StageX", "Stage.X"}},
	{Field: "stage_position_y", Candidates: []string{"StagePositionY", "Stage Position Y", "StageY", "Stage.Y"}},
	{Field: "tile_width", Candidates: []string{"TileWidth", "Tile Width", "tile-width"}},
	{Field: "tile_height", Candidates: []string{"TileHeight", "Tile Height", "tile-height"}},
	{Field: "icc_profile", Candidates: []string{"ICCProfile", "ICC Profile", "ICC"}},
	{Field: "scan_warning", Candidates: []string{"ScanWarning", "Warning"}},
	{Field: "software", Candidates: []string{"Software", "Application"}},
	{Field: "software_version", Candidates: []string{"SoftwareVersion", "Software Version", "AppVersion"}},
	{Field: "description", Candidates: []string{"ImageDescription", "Description", "Comment"}},
}
