package storage

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testAccountKey = base64.StdEncoding.EncodeToString([]byte("wsicohort-test-key"))

// blobServer answers blob property requests for one known blob
func blobServer(t *testing.T, path string, size string, modified time.Time) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Errorf("request to %s carries no shared key signature", r.URL.Path)
		}
		if r.Method != http.MethodHead || r.URL.Path != path {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", size)
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		w.Header().Set("x-ms-blob-type", "BlockBlob")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAzureStatter_Stat(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := blobServer(t, "/slides/cohort/a.svs", "1048576", modified)

	s, err := NewAzureStatter(srv.URL, "devaccount", testAccountKey)
	if err != nil {
		t.Fatalf("NewAzureStatter: %v", err)
	}

	tests := []string{
		"az://slides/cohort/a.svs",
		"https://devaccount.blob.core.windows.net/slides/cohort/a.svs",
	}
	for _, location := range tests {
		info, err := s.Stat(context.Background(), location)
		if err != nil {
			t.Fatalf("Stat(%q): %v", location, err)
		}
		if info.SizeBytes != 1048576 {
			t.Errorf("Stat(%q) size = %d, want 1048576", location, info.SizeBytes)
		}
		if !info.LastModified.Equal(modified) {
			t.Errorf("Stat(%q) modified = %v, want %v", location, info.LastModified, modified)
		}
		if info.Path != location {
			t.Errorf("Stat(%q) path = %q", location, info.Path)
		}
	}
}

func TestAzureStatter_Errors(t *testing.T) {
	srv := blobServer(t, "/slides/a.svs", "1", time.Now())

	s, err := NewAzureStatter(srv.URL, "devaccount", testAccountKey)
	if err != nil {
		t.Fatalf("NewAzureStatter: %v", err)
	}

	if _, err := s.Stat(context.Background(), "az://slides/missing.svs"); err == nil {
		t.Error("Expected error for a missing blob")
	}
	if _, err := s.Stat(context.Background(), "az://slides"); err == nil {
		t.Error("Expected error for a location without a blob name")
	}
}

func TestNewAzureStatter_InvalidKey(t *testing.T) {
	if _, err := NewAzureStatter("", "devaccount", "not base64!"); err == nil {
		t.Error("Expected error for a key that is not base64")
	}
}

func TestParseBlobLocation(t *testing.T) {
	tests := []struct {
		in        string
		container string
		blob      string
		wantErr   bool
	}{
		{"https://acct.blob.core.windows.net/slides/cohort/a.svs", "slides", "cohort/a.svs", false},
		{"az://slides/a.svs", "slides", "a.svs", false},
		{"az://slides/nested/dir/a.svs", "slides", "nested/dir/a.svs", false},
		{"https://acct.blob.core.windows.net/slides", "", "", true},
	}

	for _, tt := range tests {
		c, b, err := ParseBlobLocation(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseBlobLocation(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || c != tt.container || b != tt.blob {
			t.Errorf("ParseBlobLocation(%q) = (%q, %q, %v)", tt.in, c, b, err)
		}
	}
}
