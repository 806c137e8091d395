package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTrackerTrack(t *testing.T) {
	rt := NewRequestTracker()

	rt.Track("/store", true, 10)
	rt.Track("/store", false, 20)

	m := rt.Route("/store")
	require.NotNil(t, m)
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.InDelta(t, 15.0, m.AverageResponseTime, 0.0001)
	assert.NotZero(t, m.LastRequestAt)

	assert.Nil(t, rt.Route("/missing"))
}

func TestRequestTrackerRoutesSorted(t *testing.T) {
	rt := NewRequestTracker()
	rt.Track("/status", true, 1)
	rt.Track("/health", true, 1)
	rt.Track("/memory", true, 1)

	routes := rt.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "/health", routes[0].Route)
	assert.Equal(t, "/memory", routes[1].Route)
	assert.Equal(t, "/status", routes[2].Route)
}

func TestRequestTrackerTotals(t *testing.T) {
	rt := NewRequestTracker()

	total, avg := rt.Totals()
	assert.Zero(t, total)
	assert.Zero(t, avg)

	rt.Track("/a", true, 10)
	rt.Track("/a", true, 10)
	rt.Track("/b", true, 40)

	total, avg = rt.Totals()
	assert.Equal(t, int64(3), total)
	assert.InDelta(t, 20.0, avg, 0.0001)
}

func TestRequestTrackerConcurrent(t *testing.T) {
	rt := NewRequestTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rt.Track("/store", true, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), rt.Route("/store").TotalRequests)
}
