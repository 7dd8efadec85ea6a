// Package export writes cohort results as CSV, structured JSON, Parquet and a
// plain-text processing log.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"go-wsi-cohort/pkg/models"
)

// DefaultPrecision is the number of fixed-point digits for float cells
const DefaultPrecision = 6

// Columns returns the sorted union of the field names present across all
// records. It must see the whole result set before any row is written.
func Columns(records []*models.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, k := range r.Keys() {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// ToTable flattens records into a header row followed by one row per record,
// in input order. Every row has exactly len(header) cells.
func ToTable(records []*models.Record, precision int) [][]string {
	cols := Columns(records)
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, cols)
	for _, r := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := r.Get(c); ok {
				row[i] = FormatValue(v, precision)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatValue renders one cell. Floats use fixed-point with the given number
// of digits; NaN and infinities render empty like a missing value. Lists and
// objects render as JSON text.
func FormatValue(v any, precision int) string {
	if precision < 0 {
		precision = DefaultPrecision
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', precision, 64)
	case []any, map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return FormatValue(normalize(v), precision)
	}
}

// normalize maps values that bypassed Record.Set onto the record kinds
func normalize(v any) any {
	r := models.NewRecord()
	if err := r.Set("value", v); err != nil {
		return nil
	}
	out, _ := r.Get("value")
	return out
}

// ColumnCoverage counts, per column, the records in which the field is present
func ColumnCoverage(records []*models.Record) map[string]int {
	coverage := make(map[string]int)
	for _, c := range Columns(records) {
		coverage[c] = 0
	}
	for _, r := range records {
		for _, k := range r.Keys() {
			coverage[k]++
		}
	}
	return coverage
}
