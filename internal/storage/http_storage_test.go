package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoWithRetry_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int32 // Expected number of requests
		expectError   bool
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 404},
			expectRetries: 2,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&requestCount, 1)
				if int(n) > len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				status := tt.responses[n-1]
				if status == 200 {
					w.Header().Set("Content-Length", "2048")
					w.Header().Set("Last-Modified", "Tue, 03 Sep 2024 10:00:00 GMT")
					w.WriteHeader(200)
					return
				}
				w.WriteHeader(status)
			}))
			defer server.Close()

			statter := NewHTTPStatter(server.Client()).WithBackoff(time.Millisecond)
			info, err := statter.Stat(context.Background(), server.URL+"/slides/a.svs")

			if got := atomic.LoadInt32(&requestCount); got != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, got)
			}

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if info.SizeBytes != 2048 {
				t.Errorf("Expected size 2048, got %d", info.SizeBytes)
			}
			if info.LastModified.Year() != 2024 {
				t.Errorf("Expected Last-Modified to be parsed, got %v", info.LastModified)
			}
		})
	}
}

func TestDoWithRetry_NetworkError_Retry(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) < 3 {
			// Simulate network error by closing connection
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Length", "10")
		w.WriteHeader(200)
	}))
	defer server.Close()

	statter := NewHTTPStatter(server.Client()).WithBackoff(10 * time.Millisecond)

	start := time.Now()
	_, err := statter.Stat(context.Background(), server.URL)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success after retries, got error: %s", err.Error())
	}
	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	// Backoff is linear: 1x + 2x the unit
	if duration < 30*time.Millisecond {
		t.Errorf("Expected at least 30ms due to backoff, took %v", duration)
	}
}

func TestDoWithRetry_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := DoWithRetry(ctx, server.Client(), http.MethodGet, server.URL, 3, time.Second)
	if err == nil {
		t.Fatal("Expected an error when the context expires during backoff")
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"/data/slides/a.svs", "/data/slides/a.svs", true},
		{"file:///data/slides/a.svs", "/data/slides/a.svs", true},
		{"file://localhost/data/a.ndpi", "/data/a.ndpi", true},
		{"relative/b.tiff", "relative/b.tiff", true},
		{"https://example.org/a.svs", "", false},
		{"az://container/a.svs", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := LocalPath(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("LocalPath(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLocalStatter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slide.svs")
	if err := os.WriteFile(path, make([]byte, 1500), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := NewLocalStatter().Stat(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SizeBytes != 1500 {
		t.Errorf("Expected 1500 bytes, got %d", info.SizeBytes)
	}
	if info.Path != path {
		t.Errorf("Expected path %s, got %s", path, info.Path)
	}

	if _, err := NewLocalStatter().Stat(context.Background(), filepath.Join(dir, "missing.svs")); err == nil {
		t.Error("Expected error for missing file")
	}
}

type countingStatter struct {
	calls int
	info  FileInfo
}

func (c *countingStatter) Stat(ctx context.Context, location string) (FileInfo, error) {
	c.calls++
	return c.info, nil
}

func TestCachedStatter(t *testing.T) {
	inner := &countingStatter{info: FileInfo{SizeBytes: 42}}
	cached := NewCachedStatter(inner, time.Minute)

	for i := 0; i < 3; i++ {
		info, err := cached.Stat(context.Background(), "https://example.org/a.svs")
		if err != nil || info.SizeBytes != 42 {
			t.Fatalf("unexpected result: %+v, %v", info, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected a single underlying stat, got %d", inner.calls)
	}

	cached.Flush()
	_, _ = cached.Stat(context.Background(), "https://example.org/a.svs")
	if inner.calls != 2 {
		t.Errorf("Expected a fresh stat after flush, got %d calls", inner.calls)
	}
}

func TestRouter(t *testing.T) {
	local := &countingStatter{}
	remote := &countingStatter{}
	azure := &countingStatter{}
	r := NewRouter(local, remote, azure)
	ctx := context.Background()

	_, _ = r.Stat(ctx, "/tmp/a.svs")
	_, _ = r.Stat(ctx, "https://slides.example.org/a.svs")
	_, _ = r.Stat(ctx, "https://acct.blob.core.windows.net/slides/a.svs")
	_, _ = r.Stat(ctx, "az://slides/a.svs")

	if local.calls != 1 || remote.calls != 1 || azure.calls != 2 {
		t.Errorf("unexpected routing: local=%d http=%d azure=%d", local.calls, remote.calls, azure.calls)
	}

	if _, err := NewRouter(local, nil, nil).Stat(ctx, "https://x.org/a.svs"); err == nil {
		t.Error("Expected error for unconfigured http storage")
	}
	if _, err := r.Stat(ctx, "s3://bucket/a.svs"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}
