package server

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// RateLimiter implements per-IP rate limiting with a sliding one-minute window
type RateLimiter struct {
	limits            map[string][]time.Time
	maxRequestsPerMin int
	now               func() time.Time
	mu                sync.Mutex
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := newRateLimiter(maxRequestsPerMinute, time.Now)
	go rl.startCleanup()
	return rl
}

func newRateLimiter(maxRequestsPerMinute int, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		limits:            make(map[string][]time.Time),
		maxRequestsPerMin: maxRequestsPerMinute,
		now:               now,
		cleanupInterval:   5 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}
}

// CheckLimit reports whether a request from ip is allowed and records it if so
func (rl *RateLimiter) CheckLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	requests := pruneWindow(rl.limits[ip], now)

	if len(requests) >= rl.maxRequestsPerMin {
		rl.limits[ip] = requests
		return false
	}

	rl.limits[ip] = append(requests, now)
	return true
}

// GetRetryAfter returns the number of seconds until ip may send again
func (rl *RateLimiter) GetRetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.limits[ip]
	if len(requests) == 0 {
		return 0
	}

	wait := rateWindow - rl.now().Sub(requests[0])
	if wait <= 0 {
		return 0
	}

	// Round up to whole seconds
	return int((wait + time.Second - 1) / time.Second)
}

func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, requests := range rl.limits {
		requests = pruneWindow(requests, now)
		if len(requests) == 0 {
			delete(rl.limits, ip)
		} else {
			rl.limits[ip] = requests
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// pruneWindow drops timestamps older than the window. requests is sorted.
func pruneWindow(requests []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(requests) && now.Sub(requests[i]) >= rateWindow {
		i++
	}
	return requests[i:]
}
