package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/harun/brainmemory/pkg/memory"
	"github.com/rs/zerolog"
)

const benchmarkOps = 2000

// BenchmarkResult is the timing of one synthetic workload
type BenchmarkResult struct {
	TestName    string  `json:"test_name"`
	Operations  int     `json:"operations"`
	BaselineMs  float64 `json:"baseline_ms"`
	MeasuredMs  float64 `json:"measured_ms"`
	Improvement float64 `json:"improvement"`
}

// BenchmarkResults aggregates every workload
type BenchmarkResults struct {
	BaselineTotal float64           `json:"baseline_total"`
	MeasuredTotal float64           `json:"measured_total"`
	Improvement   float64           `json:"improvement"`
	Tests         []BenchmarkResult `json:"tests"`
}

// BenchmarkResponse is returned by POST /benchmark
type BenchmarkResponse struct {
	Status  string            `json:"status"`
	Results *BenchmarkResults `json:"results,omitempty"`
}

// runBenchmark times a fixed workload against a scratch TieredStore and a
// linear-scan baseline. The live store is never touched.
func runBenchmark() (*BenchmarkResults, error) {
	store := memory.NewTieredStore(memory.Config{Logger: zerolog.Nop()})
	baseline := &linearStore{}

	keys := make([]string, benchmarkOps)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench:%d", i)
	}

	var tests []BenchmarkResult

	write, err := timeWorkload("Sequential Write",
		func() error {
			for i, k := range keys {
				if err := store.Store(k, i); err != nil {
					return err
				}
			}
			return nil
		},
		func() {
			for i, k := range keys {
				baseline.store(k, i)
			}
		})
	if err != nil {
		return nil, err
	}
	tests = append(tests, write)

	read, err := timeWorkload("Random Read",
		func() error {
			for i := range keys {
				if _, _, err := store.Retrieve(keys[(i*7919)%len(keys)]); err != nil {
					return err
				}
			}
			return nil
		},
		func() {
			for i := range keys {
				baseline.retrieve(keys[(i*7919)%len(keys)])
			}
		})
	if err != nil {
		return nil, err
	}
	tests = append(tests, read)

	search, err := timeWorkload("Pattern Search",
		func() error {
			for i := 0; i < 20; i++ {
				if _, err := store.Search(fmt.Sprintf(":%d", i), 10); err != nil {
					return err
				}
			}
			return nil
		},
		func() {
			for i := 0; i < 20; i++ {
				baseline.search(fmt.Sprintf(":%d", i))
			}
		})
	if err != nil {
		return nil, err
	}
	tests = append(tests, search)

	results := &BenchmarkResults{Tests: tests}
	for _, t := range tests {
		results.BaselineTotal += t.BaselineMs
		results.MeasuredTotal += t.MeasuredMs
	}
	results.Improvement = ratio(results.BaselineTotal, results.MeasuredTotal)

	return results, nil
}

func timeWorkload(name string, measured func() error, baseline func()) (BenchmarkResult, error) {
	start := time.Now()
	if err := measured(); err != nil {
		return BenchmarkResult{}, fmt.Errorf("benchmark %s failed: %w", name, err)
	}
	measuredMs := millis(time.Since(start))

	start = time.Now()
	baseline()
	baselineMs := millis(time.Since(start))

	return BenchmarkResult{
		TestName:    name,
		Operations:  benchmarkOps,
		BaselineMs:  baselineMs,
		MeasuredMs:  measuredMs,
		Improvement: ratio(baselineMs, measuredMs),
	}, nil
}

func ratio(baseline, measured float64) float64 {
	if measured <= 0 {
		return 0
	}
	return baseline / measured
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// linearStore is the unindexed baseline: a slice scanned on every call
type linearStore struct {
	keys   []string
	values []any
}

func (l *linearStore) store(key string, value any) {
	for i, k := range l.keys {
		if k == key {
			l.values[i] = value
			return
		}
	}
	l.keys = append(l.keys, key)
	l.values = append(l.values, value)
}

func (l *linearStore) retrieve(key string) (any, bool) {
	for i, k := range l.keys {
		if k == key {
			return l.values[i], true
		}
	}
	return nil, false
}

func (l *linearStore) search(query string) []string {
	var out []string
	for _, k := range l.keys {
		if strings.Contains(k, query) {
			out = append(out, k)
		}
	}
	return out
}
