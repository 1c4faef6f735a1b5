package httpcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"

	"translocrt/internal/cache"
)

// Client is a conditional-caching HTTP client for the static GTFS dump.
// It is the only state shared across requests: an in-process LRU of
// response bodies plus validators, optionally backed by Redis so replicas
// share downloads. Entries are revalidated with If-None-Match /
// If-Modified-Since once their freshness lifetime passes.
type Client struct {
	inner  *http.Client
	lru    gcache.Cache
	redis  *cache.RedisCache
	maxAge time.Duration
	ttl    time.Duration
	logger *slog.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	revalidated atomic.Int64
	staleServes atomic.Int64
}

type entry struct {
	Body         []byte        `json:"body"`
	ETag         string        `json:"etag"`
	LastModified string        `json:"last_modified"`
	FetchedAt    time.Time     `json:"fetched_at"`
	MaxAge       time.Duration `json:"max_age"`
}

// New builds a caching client. redisCache may be nil. maxAge is the
// default freshness lifetime used when the origin sends no max-age.
func New(entries int, maxAge, redisTTL, timeout time.Duration, redisCache *cache.RedisCache, logger *slog.Logger) *Client {
	return &Client{
		inner:  &http.Client{Timeout: timeout},
		lru:    gcache.New(entries).LRU().Build(),
		redis:  redisCache,
		maxAge: maxAge,
		ttl:    redisTTL,
		logger: logger.With("component", "http_cache"),
	}
}

// Get fetches url, serving from cache while fresh, revalidating when
// stale, and falling back to the cached body when the origin fails.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	cached := c.lookup(ctx, url)

	if cached != nil && time.Since(cached.FetchedAt) < cached.MaxAge {
		c.hits.Add(1)
		c.logger.Debug("serving fresh cached response", "url", url, "age", time.Since(cached.FetchedAt))
		return cached.Body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		if cached != nil && ctx.Err() == nil {
			c.staleServes.Add(1)
			c.logger.Warn("origin unreachable, serving stale cached response", "url", url, "error", err)
			return cached.Body, nil
		}
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		c.revalidated.Add(1)
		refreshed := *cached
		refreshed.FetchedAt = time.Now()
		refreshed.MaxAge = c.freshness(resp)
		c.store(ctx, url, &refreshed)
		c.logger.Debug("revalidated cached response", "url", url)
		return refreshed.Body, nil

	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", url, err)
		}
		c.misses.Add(1)
		e := &entry{
			Body:         body,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now(),
			MaxAge:       c.freshness(resp),
		}
		c.store(ctx, url, e)
		c.logger.Info("fetched and cached response",
			"url", url,
			"size_bytes", len(body),
			"etag", e.ETag,
			"max_age", e.MaxAge,
		)
		return body, nil

	default:
		if cached != nil {
			c.staleServes.Add(1)
			c.logger.Warn("origin error, serving stale cached response", "url", url, "status", resp.StatusCode)
			return cached.Body, nil
		}
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}
}

func (c *Client) lookup(ctx context.Context, url string) *entry {
	if v, err := c.lru.Get(url); err == nil {
		if e, ok := v.(*entry); ok {
			return e
		}
	}

	if c.redis == nil {
		return nil
	}
	var e entry
	found, err := c.redis.GetJSONCompressed(ctx, cache.KeyStaticZip(url), &e)
	if err != nil || !found {
		return nil
	}
	c.lru.Set(url, &e)
	return &e
}

func (c *Client) store(ctx context.Context, url string, e *entry) {
	c.lru.Set(url, e)
	if c.redis != nil {
		if err := c.redis.SetJSONCompressed(ctx, cache.KeyStaticZip(url), e, c.ttl); err != nil {
			c.logger.Warn("redis write-through failed", "url", url, "error", err)
		}
	}
}

// freshness derives the entry lifetime from the response Cache-Control,
// falling back to the configured default.
func (c *Client) freshness(resp *http.Response) time.Duration {
	cc := resp.Header.Get("Cache-Control")
	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(strings.ToLower(directive))
		if directive == "no-cache" || directive == "no-store" {
			return 0
		}
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return c.maxAge
}

// Stats reports cache counters for the stats endpoint.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Revalidated int64 `json:"revalidated"`
	StaleServes int64 `json:"stale_serves"`
	Entries     int   `json:"entries"`
}

func (c *Client) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Revalidated: c.revalidated.Load(),
		StaleServes: c.staleServes.Load(),
		Entries:     c.lru.Len(true),
	}
}
