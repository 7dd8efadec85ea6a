package models

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

// FieldError is a per-field derivation failure attached to a record
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Record is the canonical flat output unit for one image.
//
// Values are restricted to int64, float64, string and bool, plus []any and
// map[string]any of those for unpinned vendor fields; a field that is missing
// is absent, never zero-filled. Raw vendor tags that no canonical field
// consumed are kept in Unmapped for traceability and are excluded from the
// tabular columns.
type Record struct {
	values   map[string]any
	Unmapped map[string]any
	Errors   []FieldError
}

// NewRecord returns an empty record
func NewRecord() *Record {
	return &Record{
		values:   make(map[string]any),
		Unmapped: make(map[string]any),
	}
}

// Set stores a value under a canonical field name. A nil value removes the
// field. Values whose type contradicts the pinned kind of the field are
// rejected so the column keeps one semantic type across records.
func (r *Record) Set(field string, value any) error {
	if value == nil {
		delete(r.values, field)
		return nil
	}
	v, err := coerce(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	if err := checkKind(field, v); err != nil {
		return err
	}
	r.values[field] = v
	return nil
}

// Get returns the value of a field and whether it is present
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Int returns an integer field
func (r *Record) Int(field string) (int64, bool) {
	v, ok := r.values[field].(int64)
	return v, ok
}

// Float returns a float field; integer fields are widened
func (r *Record) Float(field string) (float64, bool) {
	switch v := r.values[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns a boolean field
func (r *Record) Bool(field string) (bool, bool) {
	v, ok := r.values[field].(bool)
	return v, ok
}

// String returns a string field
func (r *Record) String(field string) (string, bool) {
	v, ok := r.values[field].(string)
	return v, ok
}

// Keys returns the present field names in ascending order
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of present fields
func (r *Record) Len() int {
	return len(r.values)
}

// Values returns a copy of the present fields
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// AddError records a field-scoped failure
func (r *Record) AddError(field string, err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, FieldError{Field: field, Message: err.Error()})
}

// MarshalJSON emits the fields as a flat object with their dynamic types kept,
// plus the unmapped vendor tags nested under unmapped_metadata.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.values)+1)
	for k, v := range r.values {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			continue
		}
		out[k] = v
	}
	if len(r.Unmapped) > 0 {
		out["unmapped_metadata"] = r.Unmapped
	}
	return json.Marshal(out)
}

func coerce(value any) (any, error) {
	switch v := value.(type) {
	case int64, float64, string, bool:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
		return v.String(), nil
	case time.Time:
		return formatTime(v), nil
	case []byte:
		return string(v), nil
	case []any:
		return coerceList(reflect.ValueOf(v))
	case map[string]any:
		return coerceMap(reflect.ValueOf(v))
	case fmt.Stringer:
		return v.String(), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return coerceList(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return coerceMap(rv)
		}
	}
	return fmt.Sprint(value), nil
}

func coerceList(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		v, err := coerceElem(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerceMap(rv reflect.Value) (any, error) {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		v, err := coerceElem(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// coerceElem normalizes a nested value; nil and non-finite floats become JSON null
func coerceElem(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	v, err := coerce(value)
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, err
	}
	return v, err
}

// formatTime keeps date-only values as dates and everything else as RFC 3339
func formatTime(t time.Time) string {
	h, m, sec := t.Clock()
	if h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

func checkKind(field string, v any) error {
	kind := KindOf(field)
	ok := true
	switch kind {
	case KindInt:
		_, ok = v.(int64)
	case KindFloat:
		_, ok = v.(float64)
	case KindString:
		_, ok = v.(string)
	case KindBool:
		_, ok = v.(bool)
	}
	if !ok {
		return fmt.Errorf("field %s expects %s, got %T", field, kind, v)
	}
	return nil
}
