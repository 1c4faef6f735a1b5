package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"translocrt/internal/httpcache"
	"translocrt/internal/middleware"
)

// Stats tracks server-wide metrics.
type Stats struct {
	startTime  time.Time
	requests   atomic.Int64
	feedsBuilt atomic.Int64
	feedErrors atomic.Int64
}

// Global stats instance.
var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()   { s.requests.Add(1) }
func (s *Stats) IncFeedsBuilt() { s.feedsBuilt.Add(1) }
func (s *Stats) IncFeedErrors() { s.feedErrors.Add(1) }

type StatsHandler struct {
	zipCache    *httpcache.Client
	rateLimiter *middleware.RateLimiter
}

func NewStatsHandler(zipCache *httpcache.Client, rateLimiter *middleware.RateLimiter) *StatsHandler {
	return &StatsHandler{
		zipCache:    zipCache,
		rateLimiter: rateLimiter,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	ZipCache  httpcache.Stats        `json:"zip_cache"`
	RateLimit map[string]interface{} `json:"rate_limit"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	FeedsBuilt    int64     `json:"feeds_built"`
	FeedErrors    int64     `json:"feed_errors"`
	Version       string    `json:"version"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requests.Load(),
			FeedsBuilt:    ServerStats.feedsBuilt.Load(),
			FeedErrors:    ServerStats.feedErrors.Load(),
			Version:       "1.0.0",
		},
		ZipCache:  h.zipCache.Stats(),
		RateLimit: h.rateLimiter.Stats(),
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
