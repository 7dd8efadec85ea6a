package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-wsi-cohort/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `project_name: Breast
images:
  - name: a.svs
    width: 46000
    height: 32914
    rgb: true
    pixel_width_um: 0.25
    levels: [{width: 46000}, {width: 11500}, {width: 2875}]
    metadata: {aperio.AppMag: 40}
  - name: b.ndpi
    width: 20000
    height: 10000
    rgb: true
    pixel_width_um: 0.5
    metadata: {hamamatsu.SourceLens: 20}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, config.Version, strings.TrimSpace(out))
}

func TestExtractThenFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cohort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	outDir := filepath.Join(dir, "export")

	out, err := run(t, "extract", "--manifest", path, "--output-dir", outDir, "--parquet")
	require.NoError(t, err)
	assert.Contains(t, out, "2 attempted, 2 succeeded, 0 failed")
	assert.Contains(t, out, "cohort_metadata.parquet")

	jsonPath := filepath.Join(outDir, "cohort_metadata.json")
	tablePath := filepath.Join(dir, "filtered.csv")
	out, err = run(t, "filter", jsonPath, "--where", "estimated_magnification=30..", "--output", tablePath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 2 records match")

	f, err := os.Open(tablePath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	col := -1
	for i, name := range rows[0] {
		if name == "image_name" {
			col = i
		}
	}
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, "a.svs", rows[1][col])
}

func TestFilterCmd_Errors(t *testing.T) {
	_, err := run(t, "filter", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, "filter", "x.json", "--where", "broken")
	assert.Error(t, err)
}

func TestExtractCmd_InvalidConfig(t *testing.T) {
	_, err := run(t, "extract", "--workers", "-1")
	assert.Error(t, err)
}
