package memory

import (
	"sort"
	"strings"
)

// Match is one search hit
type Match struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Search scans working-tier keys for query as a substring and returns at most
// limit matches, best score first. Long-term keys are not searched. Ties keep
// no particular order.
func (s *TieredStore) Search(query string, limit int) ([]Match, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if limit <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0)
	for key := range s.working {
		if strings.Contains(key, query) {
			matches = append(matches, Match{Key: key, Score: relevance(key, query)})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// relevance is 1 - (len(key)-len(query))/len(key), measured in bytes.
// An empty key can only match an empty query and scores 1.
func relevance(key, query string) float64 {
	if len(key) == 0 {
		return 1.0
	}
	keyLen := float64(len(key))
	return 1.0 - (keyLen-float64(len(query)))/keyLen
}
