package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedStatter memoizes successful stats so a slide listed twice, or a
// remote slide re-read within one run, costs one lookup.
type CachedStatter struct {
	next  FileStatter
	cache *cache.Cache
}

// NewCachedStatter wraps a statter with a TTL cache
func NewCachedStatter(next FileStatter, ttl time.Duration) *CachedStatter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStatter{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedStatter) Stat(ctx context.Context, location string) (FileInfo, error) {
	if v, ok := c.cache.Get(location); ok {
		return v.(FileInfo), nil
	}
	info, err := c.next.Stat(ctx, location)
	if err != nil {
		return FileInfo{}, err
	}
	c.cache.Set(location, info, cache.DefaultExpiration)
	return info, nil
}

// Flush drops every cached stat
func (c *CachedStatter) Flush() {
	c.cache.Flush()
}
