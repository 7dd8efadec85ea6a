package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PriorityOrder(t *testing.T) {
	tags := map[string]any{
		"Date":     "2021-01-01",
		"ScanDate": "2023-06-15",
	}

	v, ok := Resolve(tags, "ScanDate", "Date")
	require.True(t, ok)
	assert.Equal(t, "2023-06-15", v)
}

func TestResolve_CaseInsensitiveSubstring(t *testing.T) {
	tags := map[string]any{"aperio.AppMag": 40}

	v, ok := Resolve(tags, "appmag")
	require.True(t, ok)
	assert.Equal(t, 40, v, "value keeps its dynamic type")
}

func TestResolve_NoMatch(t *testing.T) {
	v, ok := Resolve(map[string]any{"Foo": "bar"}, "ScanDate", "Date")
	assert.False(t, ok)
	assert.Nil(t, v)

	_, ok = Resolve(nil, "Date")
	assert.False(t, ok)
}

func TestResolve_DeterministicWithinCandidate(t *testing.T) {
	tags := map[string]any{
		"z.Date": "later",
		"a.Date": "earlier",
		"m.Date": "middle",
	}
	for i := 0; i < 20; i++ {
		v, ok := Resolve(tags, "Date")
		require.True(t, ok)
		assert.Equal(t, "earlier", v)
	}
}

func TestResolver_Unmapped(t *testing.T) {
	r := NewResolver(map[string]any{
		"ScanDate":    "2023-06-15",
		"Custom.Flag": true,
		"ICC Profile": "sRGB",
	})

	_, key, ok := r.Resolve("ScanDate")
	require.True(t, ok)
	assert.Equal(t, "ScanDate", key)
	_, _, ok = r.Resolve("ICC")
	require.True(t, ok)

	assert.Equal(t, map[string]any{"Custom.Flag": true}, r.Unmapped())
}

func TestResolver_Namespaces(t *testing.T) {
	r := NewResolver(map[string]any{
		"hamamatsu.SourceLens": 20,
		"openslide.mpp-x":      0.45,
		"Plain":                "x",
		"hamamatsu.Other":      1,
	})
	assert.Equal(t, []string{"hamamatsu", "openslide"}, r.Namespaces())
}

func TestVendorMatcher(t *testing.T) {
	m := NewVendorMatcher(DefaultScannerVendors(), 2)

	tests := []struct {
		name    string
		scanner any
		tags    map[string]any
		want    string
		found   bool
	}{
		{name: "substring", scanner: "Aperio GT 450", want: "Aperio", found: true},
		{name: "longest token wins", scanner: "NanoZoomer S360", want: "Hamamatsu", found: true},
		{name: "namespace", scanner: nil, tags: map[string]any{"mirax.GENERAL.SLIDE_NAME": "x"}, want: "3DHISTECH", found: true},
		{name: "vendor hint", scanner: nil, tags: map[string]any{"openslide.vendor": "philips"}, want: "Philips", found: true},
		{name: "typo within distance", scanner: "Hamamtsu C13220", want: "Hamamatsu", found: true},
		{name: "unknown", scanner: "Homemade rig", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.scanner, NewResolver(tt.tags))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVendorMatcher_DistanceDisabled(t *testing.T) {
	m := NewVendorMatcher(DefaultScannerVendors(), 0)
	_, ok := m.Match("Hamamtsu", nil)
	assert.False(t, ok)
}
