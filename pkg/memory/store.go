package memory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTrailCapacity     = 1000
	DefaultAssociationWidth  = 5
	DefaultDemotionThreshold = 300 * time.Second
)

// ErrUnavailable is returned once a mutation has panicked and the store can no
// longer vouch for its own consistency.
var ErrUnavailable = errors.New("memory unavailable")

// Clock returns the current time
type Clock func() time.Time

// Config holds tiered store configuration
type Config struct {
	// DemotionThreshold is the idle time after which Optimize moves an entry
	// from the working tier to the long-term tier.
	DemotionThreshold time.Duration

	// TrailCapacity bounds the recency trail.
	TrailCapacity int

	// AssociationWidth is how many trail keys are linked to a stored key.
	AssociationWidth int

	// ExcludeSelfAssociation snapshots the trail before the stored key is pushed,
	// so a key is not linked to its own write.
	ExcludeSelfAssociation bool

	// SingleCopy drops a key's long-term entry when the key is stored again.
	SingleCopy bool

	Clock  Clock
	Logger zerolog.Logger
}

// TieredStore is the working/long-term store with its recency trail and
// association map. All methods are safe for concurrent use; each one holds
// the store lock for its whole duration.
type TieredStore struct {
	mu           sync.Mutex
	working      map[string]*Entry
	longTerm     map[string]*Entry
	trail        *recencyTrail
	associations map[string][]string
	hits         uint64
	misses       uint64
	corrupted    bool

	threshold   time.Duration
	width       int
	excludeSelf bool
	singleCopy  bool
	now         Clock
	logger      zerolog.Logger
}

// OptimizeResult summarizes one demotion sweep
type OptimizeResult struct {
	Demoted  []string `json:"demoted"`
	Working  int      `json:"working_entries"`
	LongTerm int      `json:"long_term_entries"`
}

// NewTieredStore creates an empty store
func NewTieredStore(cfg Config) *TieredStore {
	if cfg.DemotionThreshold <= 0 {
		cfg.DemotionThreshold = DefaultDemotionThreshold
	}
	if cfg.TrailCapacity <= 0 {
		cfg.TrailCapacity = DefaultTrailCapacity
	}
	if cfg.AssociationWidth <= 0 {
		cfg.AssociationWidth = DefaultAssociationWidth
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &TieredStore{
		working:      make(map[string]*Entry),
		longTerm:     make(map[string]*Entry),
		trail:        newRecencyTrail(cfg.TrailCapacity),
		associations: make(map[string][]string),
		threshold:    cfg.DemotionThreshold,
		width:        cfg.AssociationWidth,
		excludeSelf:  cfg.ExcludeSelfAssociation,
		singleCopy:   cfg.SingleCopy,
		now:          cfg.Clock,
		logger:       cfg.Logger,
	}
}

// lock acquires the store lock, refusing if an earlier mutation panicked.
// On success the caller owns s.mu and must unlock it.
func (s *TieredStore) lock() error {
	s.mu.Lock()
	if s.corrupted {
		s.mu.Unlock()
		return ErrUnavailable
	}
	return nil
}

// markOnPanic is deferred by mutating operations while holding the lock.
func (s *TieredStore) markOnPanic(op string) {
	if r := recover(); r != nil {
		s.corrupted = true
		s.logger.Error().
			Str("op", op).
			Interface("panic", r).
			Msg("Memory mutation panicked, store marked unavailable")
		panic(r)
	}
}

// Store writes value under key in the working tier and records the key in the
// recency trail and association map.
func (s *TieredStore) Store(key string, value any) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	defer s.markOnPanic("store")

	now := s.now()
	if s.singleCopy {
		delete(s.longTerm, key)
	}
	s.working[key] = newEntry(value, now)

	var snapshot []string
	if s.excludeSelf {
		snapshot = s.associationSnapshot()
		s.trail.pushFront(key)
	} else {
		s.trail.pushFront(key)
		snapshot = s.associationSnapshot()
	}
	s.associations[key] = snapshot

	s.logger.Debug().
		Str("key", key).
		Int("working", len(s.working)).
		Int("trail", s.trail.len()).
		Msg("Stored memory entry")

	return nil
}

// Retrieve returns a copy of the value stored under key, checking the working
// tier before the long-term tier.
//
// Reads leave access metadata and the recency trail untouched, so a key that is
// only ever read still ages out of the working tier.
func (s *TieredStore) Retrieve(key string) (any, bool, error) {
	value, tier, err := s.RetrieveWithTier(key)
	return value, tier != TierNone, err
}

// RetrieveWithTier is Retrieve that also reports which tier answered
func (s *TieredStore) RetrieveWithTier(key string) (any, Tier, error) {
	if err := s.lock(); err != nil {
		return nil, TierNone, err
	}
	defer s.mu.Unlock()

	if entry, ok := s.working[key]; ok {
		return copyValue(entry.Value), TierWorking, nil
	}
	if entry, ok := s.longTerm[key]; ok {
		return copyValue(entry.Value), TierLongTerm, nil
	}
	return nil, TierNone, nil
}

// Optimize moves every working entry idle for longer than the demotion
// threshold into the long-term tier.
func (s *TieredStore) Optimize() (OptimizeResult, error) {
	if err := s.lock(); err != nil {
		return OptimizeResult{}, err
	}
	defer s.mu.Unlock()
	defer s.markOnPanic("optimize")

	now := s.now()
	demoted := make([]string, 0)
	for key, entry := range s.working {
		if entry.idleFor(now) > s.threshold {
			demoted = append(demoted, key)
		}
	}
	sort.Strings(demoted)

	for _, key := range demoted {
		s.longTerm[key] = s.working[key]
		delete(s.working, key)
	}

	if len(demoted) > 0 {
		s.logger.Info().
			Int("demoted", len(demoted)).
			Int("working", len(s.working)).
			Int("long_term", len(s.longTerm)).
			Msg("Demoted idle memory entries")
	}

	return OptimizeResult{
		Demoted:  demoted,
		Working:  len(s.working),
		LongTerm: len(s.longTerm),
	}, nil
}

// Context returns up to n keys from the recency trail, most recent first
func (s *TieredStore) Context(n int) ([]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	return s.trail.front(n), nil
}

// Associations returns the keys linked to key when it was last stored
func (s *TieredStore) Associations(key string) ([]string, bool, error) {
	if err := s.lock(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	linked, ok := s.associations[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]string, len(linked))
	copy(out, linked)
	return out, true, nil
}

// Inspect returns a copy of the entry for key and the tier holding it
func (s *TieredStore) Inspect(key string) (Entry, Tier, error) {
	if err := s.lock(); err != nil {
		return Entry{}, TierNone, err
	}
	defer s.mu.Unlock()

	if entry, ok := s.working[key]; ok {
		out := *entry
		out.Value = copyValue(entry.Value)
		return out, TierWorking, nil
	}
	if entry, ok := s.longTerm[key]; ok {
		out := *entry
		out.Value = copyValue(entry.Value)
		return out, TierLongTerm, nil
	}
	return Entry{}, TierNone, nil
}

// associationSnapshot is the trail prefix linked to a stored key. Store calls
// it after pushing the key unless ExcludeSelfAssociation is set.
func (s *TieredStore) associationSnapshot() []string {
	return s.trail.front(s.width)
}
