package export

import (
	"io"

	"go-wsi-cohort/pkg/models"

	"github.com/parquet-go/parquet-go"
)

// columnKind returns the pinned kind of a column, or infers one from the
// values of unpinned vendor pass-through columns
func columnKind(records []*models.Record, col string) models.Kind {
	if k := models.KindOf(col); k != models.KindAny {
		return k
	}

	ints, floats, bools, others := 0, 0, 0, 0
	for _, r := range records {
		v, ok := r.Get(col)
		if !ok {
			continue
		}
		switch v.(type) {
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		default:
			others++
		}
	}
	switch {
	case others > 0:
		return models.KindString
	case bools > 0 && ints+floats > 0:
		return models.KindString
	case bools > 0:
		return models.KindBool
	case floats > 0:
		return models.KindFloat
	case ints > 0:
		return models.KindInt
	default:
		return models.KindString
	}
}

func leafFor(kind models.Kind) parquet.Node {
	switch kind {
	case models.KindInt:
		return parquet.Int(64)
	case models.KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	case models.KindBool:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

// parquetSchema builds one optional typed column per field
func parquetSchema(records []*models.Record, cols []string) (*parquet.Schema, map[string]models.Kind) {
	group := parquet.Group{}
	kinds := make(map[string]models.Kind, len(cols))
	for _, c := range cols {
		kinds[c] = columnKind(records, c)
		group[c] = parquet.Optional(leafFor(kinds[c]))
	}
	return parquet.NewSchema("cohort_metadata", group), kinds
}

func parquetValue(v any, kind models.Kind, precision int) (parquet.Value, bool) {
	switch kind {
	case models.KindInt:
		if x, ok := v.(int64); ok {
			return parquet.Int64Value(x), true
		}
	case models.KindFloat:
		switch x := v.(type) {
		case float64:
			return parquet.DoubleValue(x), true
		case int64:
			return parquet.DoubleValue(float64(x)), true
		}
	case models.KindBool:
		if x, ok := v.(bool); ok {
			return parquet.BooleanValue(x), true
		}
	default:
		return parquet.ByteArrayValue([]byte(FormatValue(v, precision))), true
	}
	return parquet.Value{}, false
}

// writeParquet encodes the records with one typed column per field. Column
// order follows the schema, absent fields are written as nulls.
func writeParquet(w io.Writer, records []*models.Record, precision int) error {
	cols := Columns(records)
	if len(cols) == 0 {
		// Parquet needs at least one leaf column
		cols = []string{models.FieldImageName}
	}
	schema, kinds := parquetSchema(records, cols)
	fields := schema.Fields()

	rows := make([]parquet.Row, 0, len(records))
	for _, r := range records {
		row := make(parquet.Row, len(fields))
		for i, f := range fields {
			row[i] = parquet.NullValue().Level(0, 0, i)
			v, ok := r.Get(f.Name())
			if !ok {
				continue
			}
			if pv, ok := parquetValue(v, kinds[f.Name()], precision); ok {
				row[i] = pv.Level(0, 1, i)
			}
		}
		rows = append(rows, row)
	}

	pw := parquet.NewWriter(w, schema)
	if _, err := pw.WriteRows(rows); err != nil {
		return err
	}
	return pw.Close()
}
