package memory

import "time"

// Tier identifies where an entry currently lives
type Tier string

const (
	TierNone     Tier = ""
	TierWorking  Tier = "working"
	TierLongTerm Tier = "long_term"
)

// Entry is one stored value plus its bookkeeping
type Entry struct {
	Value          any       `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    uint32    `json:"access_count"`
}

func newEntry(value any, now time.Time) *Entry {
	return &Entry{
		Value:          copyValue(value),
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    0,
	}
}

// idleFor reports how long the entry has gone without a write
func (e *Entry) idleFor(now time.Time) time.Duration {
	return now.Sub(e.LastAccessedAt)
}

// copyValue deep-copies the JSON-shaped parts of a payload (objects and arrays).
// Scalars are immutable and returned as-is.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
