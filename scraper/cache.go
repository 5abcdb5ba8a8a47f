package scraper

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// CachedFetcher memoises successful fetches in a bounded LRU. GET payloads of one
// session are treated as immutable, so a repeated request is answered locally.
type CachedFetcher struct {
	next    Fetcher
	cache   *lru.Cache[string, parser.Raw]
	metrics *Metrics
}

// NewCachedFetcher wraps next with an LRU of the given size. A size of zero disables
// caching and returns next unchanged.
func NewCachedFetcher(next Fetcher, size int, metrics *Metrics) (Fetcher, error) {
	if size <= 0 {
		return next, nil
	}
	cache, err := lru.New[string, parser.Raw](size)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &CachedFetcher{next: next, cache: cache, metrics: metrics}, nil
}

func (c *CachedFetcher) Fetch(ctx context.Context, req Request) (parser.Raw, error) {
	key := req.Kind + " " + req.URL
	if raw, ok := c.cache.Get(key); ok {
		c.metrics.IncCacheHit()
		return raw, nil
	}
	raw, err := c.next.Fetch(ctx, req)
	if err != nil {
		return raw, err
	}
	c.cache.Add(key, raw)
	return raw, nil
}

// Len returns the number of cached responses.
func (c *CachedFetcher) Len() int {
	return c.cache.Len()
}
