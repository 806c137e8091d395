package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harun/brainmemory/internal/tracing"
	"github.com/harun/brainmemory/pkg/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultSearchLimit = 10

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(statusCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	_, avg := s.requestTracker.Totals()
	resp := StatusResponse{
		Status:  "running",
		Version: s.options.Version,
		Uptime:  int64(time.Since(s.startTime).Seconds()),
		Performance: PerformanceInfo{
			GoEnabled:        true,
			PerformanceBoost: s.lastBoost.Load().(float64),
			AvgOperationTime: avg,
		},
	}

	s.cache.Set(statusCacheKey, resp, s.options.StatusCacheTTL)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	var stats memory.MemoryStats
	err := s.observe(r.Context(), "stats", func() error {
		var err error
		stats, err = s.memory.Stats()
		return err
	})
	if err != nil {
		s.writeMemoryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	total, _ := s.requestTracker.Totals()
	uptime := time.Since(s.startTime).Seconds()

	rps := 0.0
	if uptime > 0 {
		rps = float64(total) / uptime
	}

	writeJSON(w, http.StatusOK, PerformanceResponse{
		Routes: s.requestTracker.Routes(),
		Throughput: Throughput{
			TotalRequests:     total,
			RequestsPerSecond: rps,
		},
	})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(s.schemas.store, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req StoreRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if req.MemoryType == "" {
		req.MemoryType = "general"
	}

	encoded, err := json.Marshal(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to encode value: %v", err))
		return
	}

	err = s.observe(r.Context(), "store", func() error {
		return s.memory.Store(req.Key, req.Value)
	}, attribute.String("memory.key", req.Key), attribute.String("memory.type", req.MemoryType))
	if err != nil {
		s.writeMemoryError(w, r, err)
		return
	}

	logger := tracing.LoggerFromContext(r.Context(), s.logger)
	logger.Debug().
		Str("key", req.Key).
		Str("memory_type", req.MemoryType).
		Int("size", len(encoded)).
		Msg("Memory stored")

	s.publishStats()

	writeJSON(w, http.StatusOK, StoreResponse{
		Stored:    true,
		Key:       req.Key,
		Size:      len(encoded),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	start := time.Now()

	var (
		value any
		tier  memory.Tier
	)
	err := s.observe(r.Context(), "retrieve", func() error {
		var err error
		value, tier, err = s.memory.RetrieveWithTier(key)
		return err
	}, attribute.String("memory.key", key))
	if err != nil {
		s.writeMemoryError(w, r, err)
		return
	}
	elapsed := time.Since(start)

	hit := tier == memory.TierWorking
	if hit {
		err = s.memory.RecordCacheHit()
	} else {
		err = s.memory.RecordCacheMiss()
	}
	if err != nil {
		s.writeMemoryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{
		Found:         tier != memory.TierNone,
		Key:           key,
		Value:         value,
		RetrievalTime: millis(elapsed),
		CacheHit:      hit,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(s.schemas.search, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SearchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	limit := defaultSearchLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	start := time.Now()
	var found []memory.Match
	err := s.observe(r.Context(), "search", func() error {
		var err error
		found, err = s.memory.Search(req.Query, limit)
		return err
	}, attribute.String("memory.query", req.Query), attribute.Int("memory.limit", limit))
	if err != nil {
		s.writeMemoryError(w, r, err)
		return
	}
	elapsed := time.Since(start)

	matches := make([]SearchResult, 0, len(found))
	for _, m := range found {
		matches = append(matches, SearchResult{
			Key:     m.Key,
			Score:   m.Score,
			Preview: "Preview for " + m.Key,
			Type:    "general",
		})
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:        req.Query,
		Matches:      matches,
		SearchTime:   millis(elapsed),
		TotalMatches: len(matches),
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var result memory.OptimizeResult
	start := time.Now()
	err := s.observe(r.Context(), "optimize", func() error {
		var err error
		result, err = s.memory.Optimize()
		return err
	})
	if err != nil {
		s.writeMemoryError(w, r, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveOptimize(len(result.Demoted), time.Since(start))
	}

	logger := tracing.LoggerFromContext(r.Context(), s.logger)
	logger.Info().
		Int("demoted", len(result.Demoted)).
		Int("working", result.Working).
		Int("long_term", result.LongTerm).
		Msg("Manual optimize completed")

	if s.gateway != nil {
		s.gateway.Broadcast(EventMemoryOptimized, result)
	}
	s.publishStats()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(benchmarkCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	_, span := tracing.StartSpan(r.Context(), tracerName, "server.benchmark")
	results, err := runBenchmark()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("Benchmark failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	span.End()

	s.lastBoost.Store(results.Improvement)
	s.cache.Delete(statusCacheKey)

	resp := BenchmarkResponse{Status: "completed", Results: results}
	s.cache.Set(benchmarkCacheKey, resp, s.options.BenchmarkCacheTTL)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).Seconds(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// observe runs one core call inside a span and records its outcome
func (s *Server) observe(ctx context.Context, op string, fn func() error, attrs ...attribute.KeyValue) error {
	_, span := tracing.StartSpan(ctx, tracerName, "memory."+op, attrs...)
	defer span.End()

	start := time.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// publishStats pushes a stats snapshot to gateway clients and the tier gauges
func (s *Server) publishStats() {
	stats, err := s.memory.Stats()
	if err != nil {
		return
	}
	if s.metrics != nil {
		s.metrics.SetTierSizes(stats.Working.Entries, stats.LongTerm.Entries, stats.Associations.Nodes)
	}
	if s.gateway != nil {
		s.gateway.Broadcast(EventBrainMemory, stats)
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return nil, false
	}
	return body, true
}

func (s *Server) writeMemoryError(w http.ResponseWriter, r *http.Request, err error) {
	logger := tracing.LoggerFromContext(r.Context(), s.logger)
	if errors.Is(err, memory.ErrUnavailable) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Memory unavailable")
		writeError(w, http.StatusServiceUnavailable, memory.ErrUnavailable.Error())
		return
	}
	logger.Error().Err(err).Str("path", r.URL.Path).Msg("Memory operation failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
