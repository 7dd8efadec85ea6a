package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/pkg/models"

	"github.com/sirupsen/logrus"
)

// Options configures the output files of a run. Empty file names disable the
// corresponding output.
type Options struct {
	Directory   string
	CSVFile     string
	JSONFile    string
	ParquetFile string
	LogFile     string

	Precision            int
	ToolVersion          string
	ProjectName          string
	IncludeSummary       bool
	IncludeProcessingLog bool
}

// Files lists the paths written by Export
type Files struct {
	CSV     string `json:"csv,omitempty"`
	JSON    string `json:"json,omitempty"`
	Parquet string `json:"parquet,omitempty"`
	Log     string `json:"log,omitempty"`
}

// Exporter writes cohort results. A single exporter writes each output once
// per run; it is not meant to be shared by concurrent runs targeting the same
// directory.
type Exporter struct {
	opts Options
	now  func() time.Time
}

// NewExporter creates an exporter
func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts, now: time.Now}
}

// WithClock replaces the export timestamp source
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Export writes every enabled output. The first failure stops the export and
// is returned as an export error; files already renamed into place stay valid.
func (e *Exporter) Export(result *models.CohortResult) (Files, error) {
	var files Files
	path := func(name string) string { return filepath.Join(e.opts.Directory, name) }

	if e.opts.CSVFile != "" {
		files.CSV = path(e.opts.CSVFile)
		if err := writeAtomic(files.CSV, func(w io.Writer) error {
			return e.WriteCSV(w, result.Records)
		}); err != nil {
			return files, apperrors.NewExportError("failed to write "+files.CSV, err)
		}
	}

	if e.opts.JSONFile != "" {
		files.JSON = path(e.opts.JSONFile)
		if err := writeAtomic(files.JSON, func(w io.Writer) error {
			return e.WriteJSON(w, result)
		}); err != nil {
			return files, apperrors.NewExportError("failed to write "+files.JSON, err)
		}
	}

	if e.opts.ParquetFile != "" {
		files.Parquet = path(e.opts.ParquetFile)
		if err := writeAtomic(files.Parquet, func(w io.Writer) error {
			return writeParquet(w, result.Records, e.opts.Precision)
		}); err != nil {
			return files, apperrors.NewExportError("failed to write "+files.Parquet, err)
		}
	}

	if e.opts.IncludeProcessingLog && e.opts.LogFile != "" {
		files.Log = path(e.opts.LogFile)
		if err := writeAtomic(files.Log, func(w io.Writer) error {
			return WriteLog(w, result)
		}); err != nil {
			return files, apperrors.NewExportError("failed to write "+files.Log, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"run_id":  result.Summary.RunID,
		"records": len(result.Records),
		"csv":     files.CSV,
		"json":    files.JSON,
		"parquet": files.Parquet,
		"log":     files.Log,
		"partial": result.Summary.Partial,
	}).Info("Cohort export written")

	return files, nil
}

// WriteCSV writes the table with standard CSV quoting
func (e *Exporter) WriteCSV(w io.Writer, records []*models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ToTable(records, e.opts.Precision)); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

// WriteJSON writes the structured envelope
func (e *Exporter) WriteJSON(w io.Writer, result *models.CohortResult) error {
	doc := ToStructured(result, StructuredOptions{
		ToolVersion:          e.opts.ToolVersion,
		ProjectName:          e.opts.ProjectName,
		IncludeSummary:       e.opts.IncludeSummary,
		IncludeProcessingLog: e.opts.IncludeProcessingLog,
	}, e.now())

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// WriteParquet writes one typed column per field
func (e *Exporter) WriteParquet(w io.Writer, records []*models.Record) error {
	return writeParquet(w, records, e.opts.Precision)
}

// WriteLog writes the processing log, one line per entry
func WriteLog(w io.Writer, result *models.CohortResult) error {
	bw := bufio.NewWriter(w)
	for _, line := range result.LogLines() {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeAtomic writes through a temporary file in the target directory and
// renames it into place, so a failed write never leaves a truncated output
func writeAtomic(path string, write func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
