package server

import (
	"sort"
	"sync"
	"time"
)

// RequestTracker keeps per-route request counts and running average durations
type RequestTracker struct {
	routes map[string]*RouteMetrics
	mu     sync.RWMutex
}

// NewRequestTracker creates a new request tracker
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		routes: make(map[string]*RouteMetrics),
	}
}

// Track records one request
func (rt *RequestTracker) Track(route string, success bool, durationMs float64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	m, exists := rt.routes[route]
	if !exists {
		m = &RouteMetrics{Route: route}
		rt.routes[route] = m
	}

	m.TotalRequests++
	if success {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}

	// Running average
	m.AverageResponseTime = (m.AverageResponseTime*float64(m.TotalRequests-1) + durationMs) / float64(m.TotalRequests)
	m.LastRequestAt = time.Now().UnixMilli()
}

// Routes returns a copy of every route's metrics sorted by route
func (rt *RequestTracker) Routes() []RouteMetrics {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	result := make([]RouteMetrics, 0, len(rt.routes))
	for _, m := range rt.routes {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Route < result[j].Route })
	return result
}

// Route returns metrics for one route, or nil if it has not been hit
func (rt *RequestTracker) Route(route string) *RouteMetrics {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	m, exists := rt.routes[route]
	if !exists {
		return nil
	}
	result := *m
	return &result
}

// Totals returns the request count and the request-weighted average duration
// across all routes
func (rt *RequestTracker) Totals() (int64, float64) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var total int64
	var weighted float64
	for _, m := range rt.routes {
		total += m.TotalRequests
		weighted += m.AverageResponseTime * float64(m.TotalRequests)
	}
	if total == 0 {
		return 0, 0
	}
	return total, weighted / float64(total)
}
