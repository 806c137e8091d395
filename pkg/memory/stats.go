package memory

// Nominal tier capacities. These are display figures only; the store never
// measures its real footprint.
const (
	WorkingCapacityBytes  = 256 * 1024 * 1024
	LongTermCapacityBytes = 4 * 1024 * 1024 * 1024
)

// MemoryStats is a point-in-time view of the store
type MemoryStats struct {
	Working      MemoryInfo      `json:"working_memory"`
	LongTerm     MemoryInfo      `json:"long_term_memory"`
	ContextCache CacheInfo       `json:"context_cache"`
	Associations AssociationInfo `json:"associations"`
}

// MemoryInfo describes one tier
type MemoryInfo struct {
	Used    int64 `json:"used"`
	Total   int64 `json:"total"`
	Entries int   `json:"entries"`
}

// CacheInfo describes the recency trail
type CacheInfo struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// AssociationInfo describes the association graph
type AssociationInfo struct {
	Nodes     int     `json:"nodes"`
	Edges     int     `json:"edges"`
	AvgDegree float64 `json:"avg_degree"`
}

// Stats computes a snapshot from the live structures
func (s *TieredStore) Stats() (MemoryStats, error) {
	if err := s.lock(); err != nil {
		return MemoryStats{}, err
	}
	defer s.mu.Unlock()

	return s.statsLocked(), nil
}

func (s *TieredStore) statsLocked() MemoryStats {
	edges := 0
	for _, linked := range s.associations {
		edges += len(linked)
	}
	nodes := len(s.associations)
	avgDegree := 0.0
	if nodes > 0 {
		avgDegree = float64(edges) / float64(nodes)
	}

	hitRate := 0.0
	if total := s.hits + s.misses; total > 0 {
		hitRate = float64(s.hits) / float64(total)
	}

	return MemoryStats{
		Working: MemoryInfo{
			Total:   WorkingCapacityBytes,
			Entries: len(s.working),
		},
		LongTerm: MemoryInfo{
			Total:   LongTermCapacityBytes,
			Entries: len(s.longTerm),
		},
		ContextCache: CacheInfo{
			Size:    s.trail.len(),
			Hits:    s.hits,
			Misses:  s.misses,
			HitRate: hitRate,
		},
		Associations: AssociationInfo{
			Nodes:     nodes,
			Edges:     edges,
			AvgDegree: avgDegree,
		},
	}
}

// Len returns the number of entries in each tier
func (s *TieredStore) Len() (working, longTerm int, err error) {
	if err := s.lock(); err != nil {
		return 0, 0, err
	}
	defer s.mu.Unlock()

	return len(s.working), len(s.longTerm), nil
}

// RecordCacheHit counts a hit against the context cache. The store itself
// never calls it; callers that want hit-rate figures drive it.
func (s *TieredStore) RecordCacheHit() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.hits++
	return nil
}

// RecordCacheMiss counts a miss against the context cache
func (s *TieredStore) RecordCacheMiss() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.misses++
	return nil
}
