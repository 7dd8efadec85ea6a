package metadata

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
)

// DefaultScannerVendors maps lowercase scanner tokens to a canonical vendor
func DefaultScannerVendors() map[string]string {
	return map[string]string{
		"aperio":     "Aperio",
		"scanscope":  "Aperio",
		"gt450":      "Aperio",
		"hamamatsu":  "Hamamatsu",
		"nanozoomer": "Hamamatsu",
		"ndpi":       "Hamamatsu",
		"3dhistech":  "3DHISTECH",
		"mirax":      "3DHISTECH",
		"pannoramic": "3DHISTECH",
		"philips":    "Philips",
		"leica":      "Leica",
		"ventana":    "Ventana",
		"roche":      "Ventana",
		"zeiss":      "Zeiss",
		"olympus":    "Olympus",
		"huron":      "Huron",
		"motic":      "Motic",
		"kfbio":      "KFBIO",
	}
}

// minFuzzyLength keeps short words (model numbers, "scn") out of edit
// distance matching
const minFuzzyLength = 5

// VendorMatcher canonicalizes scanner identity strings
type VendorMatcher struct {
	table       map[string]string
	tokens      []string
	maxDistance int
}

// NewVendorMatcher builds a matcher from a token to vendor table
func NewVendorMatcher(table map[string]string, maxDistance int) *VendorMatcher {
	normalized := make(map[string]string, len(table))
	for token, vendor := range table {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" || vendor == "" {
			continue
		}
		normalized[token] = vendor
	}

	tokens := make([]string, 0, len(normalized))
	for token := range normalized {
		tokens = append(tokens, token)
	}
	// Longest first so "nanozoomer" wins over a shorter token it contains
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	if maxDistance < 0 {
		maxDistance = 0
	}
	return &VendorMatcher{table: normalized, tokens: tokens, maxDistance: maxDistance}
}

// Match resolves a vendor from the scanner string first, then from the
// vendor hint tag and the raw tag namespaces, and finally by edit distance
// between scanner words and known tokens.
func (m *VendorMatcher) Match(scanner any, r *Resolver) (string, bool) {
	text := ""
	if scanner != nil {
		text = strings.ToLower(fmt.Sprint(scanner))
	}

	if vendor, ok := m.bySubstring(text); ok {
		return vendor, true
	}

	if r != nil {
		if hint, _, ok := r.Resolve("openslide.vendor", "Vendor", "Manufacturer"); ok && hint != nil {
			if vendor, ok := m.bySubstring(strings.ToLower(fmt.Sprint(hint))); ok {
				return vendor, true
			}
		}
		for _, ns := range r.Namespaces() {
			if vendor, ok := m.table[ns]; ok {
				return vendor, true
			}
		}
	}

	return m.byDistance(text)
}

func (m *VendorMatcher) bySubstring(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, token := range m.tokens {
		if strings.Contains(text, token) {
			return m.table[token], true
		}
	}
	return "", false
}

func (m *VendorMatcher) byDistance(text string) (string, bool) {
	if text == "" || m.maxDistance == 0 {
		return "", false
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	best, bestDistance := "", m.maxDistance+1
	for _, word := range words {
		if len(word) < minFuzzyLength {
			continue
		}
		for _, token := range m.tokens {
			if len(token) < minFuzzyLength {
				continue
			}
			d := levenshtein.Distance(word, token)
			if d < bestDistance {
				best, bestDistance = token, d
			}
		}
	}
	if best == "" {
		return "", false
	}
	return m.table[best], true
}
