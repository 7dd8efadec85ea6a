package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/pkg/models"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newRecord(t *testing.T, fields map[string]any) *models.Record {
	t.Helper()
	r := models.NewRecord()
	for k, v := range fields {
		require.NoError(t, r.Set(k, v))
	}
	return r
}

func sampleResult(t *testing.T) *models.CohortResult {
	return &models.CohortResult{
		Records: []*models.Record{
			newRecord(t, map[string]any{
				models.FieldImageName:    "b.svs",
				models.FieldWidthPixels:  int64(1000),
				models.FieldPixelWidthUM: 0.25,
				models.FieldRGB:          true,
			}),
			newRecord(t, map[string]any{
				models.FieldImageName:     "a.svs",
				models.FieldScannerVendor: "Aperio",
				"aperio.AppMag":           int64(20),
			}),
		},
		Log: []models.LogEntry{
			{Outcome: models.OutcomeSuccess, Image: "b.svs"},
			{Outcome: models.OutcomeFailed, Image: "c.svs", Detail: "unreadable"},
			{Outcome: models.OutcomeSuccess, Image: "a.svs"},
			{Outcome: models.OutcomeError, Image: "a.svs", Field: "calibration", Detail: "bad tag"},
		},
		Summary: models.Summary{RunID: "run-9", ProjectName: "Breast", ToolVersion: "wsicohort/test", Attempted: 3, Succeeded: 2, Failed: 1, FieldErrors: 1},
	}
}

func TestToTable_ColumnCompleteness(t *testing.T) {
	result := sampleResult(t)
	rows := ToTable(result.Records, DefaultPrecision)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"aperio.AppMag", "image_name", "is_rgb", "pixel_width_um", "scanner_vendor", "width_pixels",
	}, rows[0])
	for i, row := range rows {
		assert.Len(t, row, len(rows[0]), "row %d", i)
	}

	assert.Equal(t, []string{"", "b.svs", "true", "0.250000", "", "1000"}, rows[1], "input order is kept")
	assert.Equal(t, []string{"20", "a.svs", "", "", "Aperio", ""}, rows[2])
}

func TestToTable_Empty(t *testing.T) {
	rows := ToTable(nil, DefaultPrecision)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0])
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		precision int
		want      string
	}{
		{"nil", nil, 6, ""},
		{"string", "x", 6, "x"},
		{"bool", false, 6, "false"},
		{"int", int64(-42), 6, "-42"},
		{"float default", 0.1, 6, "0.100000"},
		{"float precision 2", 2.0 / 3.0, 2, "0.67"},
		{"negative precision", 1.5, -1, "1.500000"},
		{"plain int", 7, 6, "7"},
		{"list", []any{1.5, int64(2), "x"}, 6, `[1.5,2,"x"]`},
		{"object", map[string]any{"k": int64(1)}, 6, `{"k":1}`},
		{"unnormalized list", []string{"a", "b"}, 6, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.value, tt.precision); got != tt.want {
				t.Errorf("FormatValue(%v, %d) = %q, want %q", tt.value, tt.precision, got, tt.want)
			}
		})
	}
}

func TestWriteCSV_EscapingRoundTrip(t *testing.T) {
	tricky := "Scanner, \"model\" X\nline two"
	records := []*models.Record{newRecord(t, map[string]any{
		models.FieldImageName: "a.svs",
		"comment":             tricky,
	})}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(Options{Precision: 6}).WriteCSV(&buf, records))

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, []string{"comment", "image_name"}, parsed[0])
	assert.Equal(t, tricky, parsed[1][0])
}

func TestToStructured(t *testing.T) {
	result := sampleResult(t)

	doc := ToStructured(result, StructuredOptions{IncludeSummary: true, IncludeProcessingLog: true}, exportTime)
	assert.Equal(t, "2024-05-06T07:08:09Z", doc.ExportTimestamp)
	assert.Equal(t, "Breast", doc.ProjectName)
	assert.Equal(t, "wsicohort/test", doc.ToolVersion)
	assert.Equal(t, 2, doc.TotalImages)
	require.NotNil(t, doc.Summary)
	assert.Equal(t, 1, doc.ColumnCoverage["aperio.AppMag"])
	assert.Equal(t, 2, doc.ColumnCoverage[models.FieldImageName])
	assert.Equal(t, "ERROR: a.svs [calibration] - bad tag", doc.ProcessingLog[3])

	lean := ToStructured(result, StructuredOptions{ProjectName: "Override"}, exportTime)
	assert.Equal(t, "Override", lean.ProjectName)
	assert.Nil(t, lean.Summary)
	assert.Nil(t, lean.ColumnCoverage)
	assert.Nil(t, lean.ProcessingLog)
}

func TestWriteJSON_KeepsTypes(t *testing.T) {
	var buf bytes.Buffer
	exp := NewExporter(Options{}).WithClock(func() time.Time { return exportTime })
	require.NoError(t, exp.WriteJSON(&buf, sampleResult(t)))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	for _, key := range []string{"export_timestamp", "tool_version", "project_name", "total_images", "cohort_metadata"} {
		assert.Contains(t, doc, key)
	}
	records := doc["cohort_metadata"].([]any)
	require.Len(t, records, 2)

	first := records[0].(map[string]any)
	assert.Equal(t, float64(1000), first["width_pixels"])
	assert.Equal(t, true, first["is_rgb"])
	assert.Equal(t, 0.25, first["pixel_width_um"])
}

func TestWriteJSON_KeepsListAndObjectTags(t *testing.T) {
	rec := newRecord(t, map[string]any{
		models.FieldImageName: "a.svs",
		"stage_position_x":    []any{1.5, 2.5},
		"description":         map[string]any{"k": 1},
	})
	result := &models.CohortResult{Records: []*models.Record{rec}}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(Options{}).WriteJSON(&buf, result))

	var doc struct {
		Records []map[string]any `json:"cohort_metadata"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Records, 1)
	assert.Equal(t, []any{1.5, 2.5}, doc.Records[0]["stage_position_x"])
	assert.Equal(t, map[string]any{"k": float64(1)}, doc.Records[0]["description"])

	rows := ToTable(result.Records, 6)
	require.Len(t, rows, 2)
	for i, col := range rows[0] {
		switch col {
		case "stage_position_x":
			assert.Equal(t, "[1.5,2.5]", rows[1][i])
		case "description":
			assert.Equal(t, `{"k":1}`, rows[1][i])
		}
	}
}

func TestWriteJSON_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(Options{}).WriteJSON(&buf, &models.CohortResult{}))
	assert.Contains(t, buf.String(), `"cohort_metadata": []`)
	assert.Contains(t, buf.String(), `"total_images": 0`)
}

func TestWriteLog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, sampleResult(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"SUCCESS: b.svs",
		"FAILED: c.svs - unreadable",
		"SUCCESS: a.svs",
		"ERROR: a.svs [calibration] - bad tag",
	}, lines)
}

func TestWriteParquet(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult(t)
	require.NoError(t, NewExporter(Options{Precision: 6}).WriteParquet(&buf, result.Records))

	f, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.NumRows())

	var names []string
	for _, field := range f.Schema().Fields() {
		names = append(names, field.Name())
	}
	assert.ElementsMatch(t, Columns(result.Records), names)
}

func TestColumnKind(t *testing.T) {
	records := []*models.Record{
		newRecord(t, map[string]any{"mixed": int64(1), "ints": int64(2), "flag": true, "num": int64(1)}),
		newRecord(t, map[string]any{"mixed": "x", "num": 1.5}),
	}

	assert.Equal(t, models.KindString, columnKind(records, "mixed"))
	assert.Equal(t, models.KindInt, columnKind(records, "ints"))
	assert.Equal(t, models.KindBool, columnKind(records, "flag"))
	assert.Equal(t, models.KindFloat, columnKind(records, "num"))
	assert.Equal(t, models.KindFloat, columnKind(records, models.FieldPixelWidthUM), "pinned kinds win")
}

func TestExport_WritesAllFiles(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(Options{
		Directory:            dir,
		CSVFile:              "cohort.csv",
		JSONFile:             "cohort.json",
		ParquetFile:          "cohort.parquet",
		LogFile:              "log.txt",
		Precision:            6,
		IncludeProcessingLog: true,
	})

	files, err := exp.Export(sampleResult(t))
	require.NoError(t, err)

	for _, p := range []string{files.CSV, files.JSON, files.Parquet, files.Log} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temporary files are left behind")
}

func TestExport_LogDisabled(t *testing.T) {
	dir := t.TempDir()
	files, err := NewExporter(Options{Directory: dir, CSVFile: "c.csv", LogFile: "log.txt"}).Export(sampleResult(t))
	require.NoError(t, err)
	assert.Empty(t, files.Log)

	_, err = os.Stat(filepath.Join(dir, "log.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExport_FailureIsExportError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := NewExporter(Options{Directory: missing, CSVFile: "c.csv"}).Export(sampleResult(t))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExport))
}
