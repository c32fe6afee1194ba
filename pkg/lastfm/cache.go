package lastfm

import (
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheTTL is how long read responses are served from cache.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheSize is the number of read responses kept in cache.
	DefaultCacheSize = 256
)

// responseCache holds raw bodies of successful read calls, keyed by the
// full encoded parameter set. A nil cache is valid and never hits.
type responseCache struct {
	lru *expirable.LRU[string, []byte]
}

func newResponseCache(size int, ttl time.Duration) *responseCache {
	if ttl < 0 {
		return nil
	}
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &responseCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// cacheKey is stable for equal parameter sets; url.Values.Encode sorts by key.
func cacheKey(values url.Values) string {
	return values.Encode()
}

func (rc *responseCache) get(key string) ([]byte, bool) {
	if rc == nil {
		return nil, false
	}
	return rc.lru.Get(key)
}

func (rc *responseCache) add(key string, body []byte) {
	if rc == nil {
		return
	}
	rc.lru.Add(key, body)
}

// Len returns the number of cached responses.
func (rc *responseCache) Len() int {
	if rc == nil {
		return 0
	}
	return rc.lru.Len()
}
