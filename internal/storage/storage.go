package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// FileInfo is what the normalizer needs to know about a slide file
type FileInfo struct {
	Path         string
	SizeBytes    int64
	LastModified time.Time
}

// FileStatter resolves file-system stats for a slide location
type FileStatter interface {
	Stat(ctx context.Context, location string) (FileInfo, error)
}

// LocalPath converts a file URI into a filesystem path. Plain paths are
// returned unchanged; other schemes report false.
func LocalPath(location string) (string, bool) {
	if location == "" {
		return "", false
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return location, true
	}
	// Windows drive letters parse as a one letter scheme
	if len(u.Scheme) == 1 {
		return location, true
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", false
	}
	path := u.Path
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		path = "//" + u.Host + path
	}
	return path, path != ""
}

// localStatter stats files on the local filesystem
type localStatter struct{}

// NewLocalStatter creates a statter for file URIs and plain paths
func NewLocalStatter() FileStatter {
	return &localStatter{}
}

func (s *localStatter) Stat(ctx context.Context, location string) (FileInfo, error) {
	path, ok := LocalPath(location)
	if !ok {
		return FileInfo{}, fmt.Errorf("not a local file location: %s", location)
	}
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	if info.IsDir() {
		// Directory based formats (e.g. MRXS data folders) report the folder
		return FileInfo{Path: path, SizeBytes: dirSize(path), LastModified: info.ModTime()}, nil
	}
	return FileInfo{Path: path, SizeBytes: info.Size(), LastModified: info.ModTime()}, nil
}

func dirSize(path string) int64 {
	var total int64
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !info.IsDir() {
			total += info.Size()
		}
	}
	return total
}

// Router dispatches a location to the statter registered for its scheme
type Router struct {
	local FileStatter
	http  FileStatter
	azure FileStatter
}

// NewRouter creates a scheme router; nil statters are treated as unsupported
func NewRouter(local, http, azure FileStatter) *Router {
	return &Router{local: local, http: http, azure: azure}
}

func (r *Router) Stat(ctx context.Context, location string) (FileInfo, error) {
	if _, ok := LocalPath(location); ok {
		return r.use(r.local, "local", ctx, location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return FileInfo{}, fmt.Errorf("invalid location %q: %w", location, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "az", "azure":
		return r.use(r.azure, "azure", ctx, location)
	case "http", "https":
		if IsAzureBlobHost(u.Host) {
			return r.use(r.azure, "azure", ctx, location)
		}
		return r.use(r.http, "http", ctx, location)
	}
	return FileInfo{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
}

func (r *Router) use(s FileStatter, kind string, ctx context.Context, location string) (FileInfo, error) {
	if s == nil {
		return FileInfo{}, fmt.Errorf("%s storage is not configured", kind)
	}
	return s.Stat(ctx, location)
}
