package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "go-wsi-cohort/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "cohort_export", cfg.Output.Directory)
	assert.Equal(t, "cohort_metadata.csv", cfg.Output.CSVFile)
	assert.Equal(t, "cohort_metadata.json", cfg.Output.JSONFile)
	assert.Equal(t, 6, cfg.Output.FloatPrecision)
	assert.True(t, cfg.Output.IncludeProcessingLog)
	assert.Equal(t, 1.0, cfg.Quality.TargetPixelSizeUM)
	assert.Equal(t, int64(100_000_000), cfg.Quality.LargeImagePixels)
	assert.Equal(t, 2*time.Minute, cfg.Processing.ImageTimeout)
	assert.True(t, cfg.Processing.ContinueOnError)
	assert.Equal(t, "Hamamatsu", cfg.ScannerVendors["nanozoomer"])
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wsicohort.yaml")
	content := `
project_name: BreastCohort
output:
  directory: /tmp/out
  float_precision: 3
processing:
  workers: 4
  image_timeout: 45s
server:
  allowed_source_hosts: [slides.internal]
scanner_vendors:
  acme: ACME Imaging
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("WSICOHORT_OUTPUT_CSV_FILE", "slides.csv")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BreastCohort", cfg.ProjectName)
	assert.Equal(t, "/tmp/out", cfg.Output.Directory)
	assert.Equal(t, 3, cfg.Output.FloatPrecision)
	assert.Equal(t, "slides.csv", cfg.Output.CSVFile)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, 45*time.Second, cfg.Processing.ImageTimeout)
	assert.Equal(t, "ACME Imaging", cfg.ScannerVendors["acme"])
	assert.Equal(t, []string{"slides.internal"}, cfg.Server.AllowedSourceHosts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty output directory", func(c *Config) { c.Output.Directory = " " }},
		{"negative precision", func(c *Config) { c.Output.FloatPrecision = -1 }},
		{"inverted pixel range", func(c *Config) { c.Quality.MinPixelSizeUM = 5; c.Quality.MaxPixelSizeUM = 1 }},
		{"bad port", func(c *Config) { c.Server.Port = "99999" }},
		{"unknown source", func(c *Config) { c.Source.Type = "ftp" }},
		{"http source without url", func(c *Config) { c.Source.Type = "http" }},
		{"zero timeout", func(c *Config) { c.Processing.ImageTimeout = 0 }},
		{"negative max errors", func(c *Config) { c.Processing.MaxErrorsBeforeStop = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
		})
	}
}

func TestEnsureOutputDir(t *testing.T) {
	cfg := Default()
	cfg.Output.Directory = filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, cfg.EnsureOutputDir())

	entries, err := os.ReadDir(cfg.Output.Directory)
	require.NoError(t, err)
	assert.Empty(t, entries, "write check file must be cleaned up")
}

func TestEnsureOutputDir_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := Default()
	cfg.Output.Directory = filepath.Join(blocker, "out")
	err := cfg.EnsureOutputDir()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestServerAddress(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = " 127.0.0.1 "
	cfg.Server.Port = "9090"
	assert.Equal(t, "127.0.0.1:9090", cfg.ServerAddress())
}
