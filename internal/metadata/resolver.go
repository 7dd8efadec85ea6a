// Package metadata turns loosely typed vendor metadata into canonical fields.
//
// Vendor vocabularies are inconsistent and unversioned ("ScanDate", "Date",
// "AcquisitionDate" and "DateTime" all name the acquisition timestamp), so
// canonical fields are looked up with priority ordered, case insensitive
// substring candidates.
package metadata

import (
	"sort"
	"strings"
)

// Resolve returns the first tag value whose key contains one of the candidate
// substrings, case insensitively. Candidates are tried in order, most specific
// first; within one candidate, keys are scanned in ascending order so the
// result is reproducible. The value is returned in its original dynamic type.
func Resolve(tags map[string]any, candidates ...string) (any, bool) {
	v, _, ok := NewResolver(tags).Resolve(candidates...)
	return v, ok
}

// Resolver resolves many fields against one tag map and tracks which raw keys
// were consumed, so the remainder can be preserved as unmapped metadata.
type Resolver struct {
	tags     map[string]any
	keys     []string
	lower    []string
	consumed map[string]bool
}

// NewResolver indexes a raw tag map. A nil map resolves nothing.
func NewResolver(tags map[string]any) *Resolver {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lower := make([]string, len(keys))
	for i, k := range keys {
		lower[i] = strings.ToLower(k)
	}

	return &Resolver{
		tags:     tags,
		keys:     keys,
		lower:    lower,
		consumed: make(map[string]bool),
	}
}

// Resolve returns the matched value and the raw key it came from
func (r *Resolver) Resolve(candidates ...string) (any, string, bool) {
	for _, candidate := range candidates {
		needle := strings.ToLower(strings.TrimSpace(candidate))
		if needle == "" {
			continue
		}
		for i, key := range r.lower {
			if strings.Contains(key, needle) {
				raw := r.keys[i]
				r.consumed[raw] = true
				return r.tags[raw], raw, true
			}
		}
	}
	return nil, "", false
}

// Namespaces returns the distinct lowercase prefixes before the first dot of
// every key, in ascending order ("aperio.AppMag" yields "aperio").
func (r *Resolver) Namespaces() []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range r.lower {
		i := strings.IndexByte(key, '.')
		if i <= 0 {
			continue
		}
		ns := key[:i]
		if !seen[ns] {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	return out
}

// Unmapped returns the raw tags no Resolve call consumed
func (r *Resolver) Unmapped() map[string]any {
	out := make(map[string]any)
	for _, k := range r.keys {
		if !r.consumed[k] {
			out[k] = r.tags[k]
		}
	}
	return out
}
