// Package filter selects records from a structured cohort export.
package filter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/export"
	"go-wsi-cohort/pkg/models"
)

// Criterion is either a string equality or an inclusive numeric range.
// Either range bound may be open.
type Criterion struct {
	Column string
	Equals string
	Min    *float64
	Max    *float64
	ranged bool
}

// String renders the criterion in the syntax accepted by Parse
func (c Criterion) String() string {
	if !c.ranged {
		return c.Column + "=" + c.Equals
	}
	bound := func(b *float64) string {
		if b == nil {
			return ""
		}
		return strconv.FormatFloat(*b, 'f', -1, 64)
	}
	return c.Column + "=" + bound(c.Min) + ".." + bound(c.Max)
}

// Parse reads "column=value" or "column=min..max"
func Parse(expr string) (Criterion, error) {
	column, value, ok := strings.Cut(expr, "=")
	column = strings.TrimSpace(column)
	if !ok || column == "" {
		return Criterion{}, apperrors.NewValidationError(fmt.Sprintf("criterion %q: expected column=value or column=min..max", expr), nil)
	}
	value = strings.TrimSpace(value)

	lo, hi, isRange := strings.Cut(value, "..")
	if !isRange {
		return Criterion{Column: column, Equals: value}, nil
	}

	c := Criterion{Column: column, ranged: true}
	var err error
	if c.Min, err = parseBound(lo); err != nil {
		return Criterion{}, apperrors.NewValidationError(fmt.Sprintf("criterion %q: bad lower bound", expr), err)
	}
	if c.Max, err = parseBound(hi); err != nil {
		return Criterion{}, apperrors.NewValidationError(fmt.Sprintf("criterion %q: bad upper bound", expr), err)
	}
	if c.Min == nil && c.Max == nil {
		return Criterion{}, apperrors.NewValidationError(fmt.Sprintf("criterion %q: range needs at least one bound", expr), nil)
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return Criterion{}, apperrors.NewValidationError(fmt.Sprintf("criterion %q: lower bound exceeds upper bound", expr), nil)
	}
	return c, nil
}

// ParseAll parses every expression, stopping at the first invalid one
func ParseAll(exprs []string) ([]Criterion, error) {
	out := make([]Criterion, 0, len(exprs))
	for _, e := range exprs {
		c, err := Parse(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, fmt.Errorf("NaN bound")
	}
	return &v, nil
}

// Match reports whether the record satisfies the criterion. A record without
// the column never matches.
func (c Criterion) Match(rec *models.Record) bool {
	v, ok := rec.Get(c.Column)
	if !ok {
		return false
	}

	if c.ranged {
		f, ok := rec.Float(c.Column)
		if !ok || math.IsNaN(f) {
			return false
		}
		return (c.Min == nil || f >= *c.Min) && (c.Max == nil || f <= *c.Max)
	}

	if f, ok := rec.Float(c.Column); ok {
		if want, err := strconv.ParseFloat(c.Equals, 64); err == nil {
			return f == want
		}
	}
	return valueString(v) == c.Equals
}

func valueString(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return export.FormatValue(v, export.DefaultPrecision)
}

// Apply keeps the records matching every criterion, in input order
func Apply(records []*models.Record, criteria []Criterion) []*models.Record {
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		keep := true
		for _, c := range criteria {
			if !c.Match(r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// Cohort is the part of a structured export the filter needs
type Cohort struct {
	ProjectName string
	ToolVersion string
	Records     []*models.Record
}

type envelope struct {
	ProjectName string                       `json:"project_name"`
	ToolVersion string                       `json:"tool_version"`
	Records     []map[string]json.RawMessage `json:"cohort_metadata"`
}

// Load decodes a structured export. Numbers are restored to the kind pinned for
// their field; unpinned integral numbers become int64.
func Load(r io.Reader) (*Cohort, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, apperrors.NewValidationError("invalid cohort document", err)
	}
	if env.Records == nil {
		return nil, apperrors.NewValidationError("cohort document has no cohort_metadata array", nil)
	}

	cohort := &Cohort{ProjectName: env.ProjectName, ToolVersion: env.ToolVersion}
	for i, raw := range env.Records {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("cohort_metadata[%d]", i), err)
		}
		cohort.Records = append(cohort.Records, rec)
	}
	return cohort, nil
}

// LoadFile decodes the structured export at path
func LoadFile(path string) (*Cohort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewNotFoundError("cannot open cohort document "+path, err)
	}
	defer f.Close()
	return Load(f)
}

func decodeRecord(raw map[string]json.RawMessage) (*models.Record, error) {
	rec := models.NewRecord()
	for key, msg := range raw {
		if key == "unmapped_metadata" {
			if err := json.Unmarshal(msg, &rec.Unmapped); err != nil {
				return nil, err
			}
			continue
		}

		var v any
		dec := json.NewDecoder(strings.NewReader(string(msg)))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if n, ok := v.(json.Number); ok {
			v = restoreNumber(key, n)
		}
		if v == nil {
			continue
		}
		if err := rec.Set(key, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func restoreNumber(field string, n json.Number) any {
	if models.KindOf(field) != models.KindFloat {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}
