package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"
)

// HTTPStatter resolves size and modification time of remote slides with HEAD requests
type HTTPStatter struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewHTTPClient builds the shared client used for slide servers and HEAD stats
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		// Stats and descriptor fetches are small; keep the pool modest
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 16 * 1024,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			return nil
		},
	}
}

// NewHTTPStatter creates an HTTP HEAD statter
func NewHTTPStatter(client *http.Client) *HTTPStatter {
	if client == nil {
		client = NewHTTPClient(15 * time.Second)
	}
	return &HTTPStatter{client: client, retries: 3, backoff: time.Second}
}

// WithBackoff overrides the delay unit between retries
func (h *HTTPStatter) WithBackoff(d time.Duration) *HTTPStatter {
	h.backoff = d
	return h
}

func (h *HTTPStatter) Stat(ctx context.Context, location string) (FileInfo, error) {
	resp, err := DoWithRetry(ctx, h.client, http.MethodHead, location, h.retries, h.backoff)
	if err != nil {
		return FileInfo{}, err
	}
	defer resp.Body.Close()

	info := FileInfo{Path: location, SizeBytes: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	if info.SizeBytes < 0 {
		return FileInfo{}, fmt.Errorf("server reported no content length for %s", location)
	}
	return info, nil
}

// DoWithRetry performs a request, retrying transient failures (transport
// errors and 5xx) up to attempts times. 4xx responses are not retried.
// The caller closes the body of the returned response.
func DoWithRetry(ctx context.Context, client *http.Client, method, target string, attempts int, backoff time.Duration) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		req.Header.Set("User-Agent", "wsicohort/1.4")
		req.Header.Set("Accept", "application/json, */*")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return resp, nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				resp.Body.Close()
				return nil, fmt.Errorf("client error: status code %d", resp.StatusCode)
			default:
				resp.Body.Close()
				lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
			}
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * backoff):
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("unknown error")
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// RemoteName returns the last path segment of a URL-like location
func RemoteName(location string) string {
	trimmed := strings.TrimRight(location, "/")
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return path.Base(trimmed)
}
