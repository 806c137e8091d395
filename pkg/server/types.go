package server

import (
	"net/http"
	"time"

	"github.com/harun/brainmemory/pkg/memory"
)

// Memory is the subset of the tiered store the HTTP API calls into
type Memory interface {
	Store(key string, value any) error
	RetrieveWithTier(key string) (any, memory.Tier, error)
	Search(query string, limit int) ([]memory.Match, error)
	Optimize() (memory.OptimizeResult, error)
	Stats() (memory.MemoryStats, error)
	RecordCacheHit() error
	RecordCacheMiss() error
}

// Gateway serves websocket clients at /ws and fans events out to them
type Gateway interface {
	http.Handler
	Broadcast(event string, payload interface{})
}

// Gateway event names
const (
	EventBrainMemory     = "brain-memory"
	EventMemoryOptimized = "memory.optimized"
)

// ServerOptions configures the HTTP API server
type ServerOptions struct {
	Host               string        // Server host (default: "0.0.0.0")
	Port               int           // Server port (default: 5000)
	Version            string        // Reported by /status
	RateLimitPerMinute int           // Requests per minute per IP (default: 600)
	StatusCacheTTL     time.Duration // /status response cache (default: 5s)
	BenchmarkCacheTTL  time.Duration // /benchmark response cache (default: 1m)
	MetricsPath        string        // Prometheus endpoint (default: "/metrics")
	MaxBodyBytes       int64         // Request body limit (default: 1 MiB)
}

// StoreRequest is the body of POST /store
type StoreRequest struct {
	Key        string `json:"key"`
	Value      any    `json:"value"`
	MemoryType string `json:"memory_type"`
}

// StoreResponse is returned by POST /store
type StoreResponse struct {
	Stored    bool   `json:"stored"`
	Key       string `json:"key"`
	Size      int    `json:"size"`
	Timestamp string `json:"timestamp"`
}

// RetrieveResponse is returned by GET /retrieve/{key}
type RetrieveResponse struct {
	Found         bool    `json:"found"`
	Key           string  `json:"key"`
	Value         any     `json:"value"`
	RetrievalTime float64 `json:"retrieval_time"` // milliseconds
	CacheHit      bool    `json:"cache_hit"`
}

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

// SearchResult is one match in a search response
type SearchResult struct {
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
	Type    string  `json:"type"`
}

// SearchResponse is returned by POST /search
type SearchResponse struct {
	Query        string         `json:"query"`
	Matches      []SearchResult `json:"matches"`
	SearchTime   float64        `json:"search_time"` // milliseconds
	TotalMatches int            `json:"total_matches"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	Uptime      int64           `json:"uptime"` // seconds
	Performance PerformanceInfo `json:"performance"`
}

// PerformanceInfo summarizes request timings for /status
type PerformanceInfo struct {
	GoEnabled        bool    `json:"go_enabled"`
	PerformanceBoost float64 `json:"performance_boost"`
	AvgOperationTime float64 `json:"avg_operation_time"` // milliseconds
}

// PerformanceResponse is returned by GET /performance
type PerformanceResponse struct {
	Routes     []RouteMetrics `json:"routes"`
	Throughput Throughput     `json:"throughput"`
}

// Throughput reports request rates since start
type Throughput struct {
	TotalRequests     int64   `json:"total_requests"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// RouteMetrics tracks per-route request counts and timings
type RouteMetrics struct {
	Route               string  `json:"route"`
	TotalRequests       int64   `json:"total_requests"`
	SuccessCount        int64   `json:"success_count"`
	FailureCount        int64   `json:"failure_count"`
	AverageResponseTime float64 `json:"average_response_time"` // milliseconds
	LastRequestAt       int64   `json:"last_request_at,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Timestamp int64   `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}
