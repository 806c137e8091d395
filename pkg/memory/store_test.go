package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 7, 24, 16, 42, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func createTestStore(t *testing.T, cfg Config) (*TieredStore, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	if cfg.Clock == nil {
		cfg.Clock = clock.Now
	}
	cfg.Logger = zerolog.Nop()

	return NewTieredStore(cfg), clock
}

func TestStoreAndRetrieve(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	value := map[string]any{"test": "data", "nested": []any{1.0, "two", nil}}
	require.NoError(t, store.Store("test_key", value))

	retrieved, found, err := store.Retrieve("test_key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value, retrieved)
}

func TestRetrieve_NotFound(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	value, found, err := store.Retrieve("missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestRetrieve_ReturnsCopy(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	original := map[string]any{"count": 1.0}
	require.NoError(t, store.Store("k", original))

	// Mutating the caller's map after Store must not leak in
	original["count"] = 99.0

	first, _, err := store.Retrieve("k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.(map[string]any)["count"])

	// Mutating a retrieved value must not leak back either
	first.(map[string]any)["count"] = 42.0
	second, _, err := store.Retrieve("k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, second.(map[string]any)["count"])
}

func TestStore_NewEntryMetadata(t *testing.T) {
	store, clock := createTestStore(t, Config{})

	require.NoError(t, store.Store("k", "v"))

	entry, tier, err := store.Inspect("k")
	require.NoError(t, err)
	assert.Equal(t, TierWorking, tier)
	assert.Equal(t, clock.Now(), entry.CreatedAt)
	assert.Equal(t, clock.Now(), entry.LastAccessedAt)
	assert.Equal(t, uint32(0), entry.AccessCount)
}

func TestRetrieve_DoesNotTouchMetadata(t *testing.T) {
	store, clock := createTestStore(t, Config{})

	require.NoError(t, store.Store("k", "v"))
	stored, _, err := store.Inspect("k")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, _, err = store.Retrieve("k")
	require.NoError(t, err)

	after, _, err := store.Inspect("k")
	require.NoError(t, err)
	assert.Equal(t, stored.LastAccessedAt, after.LastAccessedAt)
	assert.Equal(t, stored.AccessCount, after.AccessCount)

	trail, err := store.Context(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, trail)
}

func TestStore_ThreeKeysScenario(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	require.NoError(t, store.Store("a", "1"))
	require.NoError(t, store.Store("b", "2"))
	require.NoError(t, store.Store("c", "3"))

	trail, err := store.Context(DefaultTrailCapacity)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, trail)

	value, found, err := store.Retrieve("b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", value)

	matches, err := store.Search("b", 5)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Key: "b", Score: 1.0}}, matches)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Working.Entries)
	assert.Equal(t, 0, stats.LongTerm.Entries)
}

func TestStore_TrailIsBounded(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	total := DefaultTrailCapacity + 250
	for i := 0; i < total; i++ {
		require.NoError(t, store.Store(fmt.Sprintf("key_%d", i), i))
	}

	trail, err := store.Context(total)
	require.NoError(t, err)
	require.Len(t, trail, DefaultTrailCapacity)

	for i, key := range trail {
		assert.Equal(t, fmt.Sprintf("key_%d", total-1-i), key)
	}

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, DefaultTrailCapacity, stats.ContextCache.Size)
}

func TestStore_TrailKeepsDuplicates(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	require.NoError(t, store.Store("a", 1))
	require.NoError(t, store.Store("a", 2))
	require.NoError(t, store.Store("b", 3))

	trail, err := store.Context(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "a"}, trail)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Working.Entries)
	assert.Equal(t, 3, stats.ContextCache.Size)
}

func TestStore_AssociationsIncludeSelf(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	for _, key := range []string{"a", "b", "c", "d", "e", "f", "k"} {
		require.NoError(t, store.Store(key, key))
	}

	linked, ok, err := store.Associations("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"k", "f", "e", "d", "c"}, linked)

	first, ok, err := store.Associations("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, first)
}

func TestStore_AssociationsExcludeSelf(t *testing.T) {
	store, _ := createTestStore(t, Config{ExcludeSelfAssociation: true})

	for _, key := range []string{"a", "b", "c", "d", "e", "f", "k"} {
		require.NoError(t, store.Store(key, key))
	}

	linked, ok, err := store.Associations("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"f", "e", "d", "c", "b"}, linked)

	first, ok, err := store.Associations("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, first)
}

func TestStore_AssociationsOverwrittenOnRestore(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	require.NoError(t, store.Store("a", 1))
	require.NoError(t, store.Store("b", 2))
	require.NoError(t, store.Store("a", 3))

	linked, _, err := store.Associations("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, linked)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Associations.Nodes)
	assert.Equal(t, 5, stats.Associations.Edges)
	assert.InDelta(t, 2.5, stats.Associations.AvgDegree, 1e-9)
}

func TestAssociations_Unknown(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	linked, ok, err := store.Associations("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, linked)
}

func TestStore_PanicMarksStoreUnavailable(t *testing.T) {
	clock := newFakeClock()
	explode := false
	store := NewTieredStore(Config{
		Logger: zerolog.Nop(),
		Clock: func() time.Time {
			if explode {
				panic("clock failure")
			}
			return clock.Now()
		},
	})

	require.NoError(t, store.Store("before", 1))

	explode = true
	assert.Panics(t, func() {
		_ = store.Store("during", 2)
	})
	explode = false

	_, _, err := store.Retrieve("before")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = store.Store("after", 3)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.Search("before", 5)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.Optimize()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.Stats()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, clock := createTestStore(t, Config{})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("w%d_k%d", worker, i)
				assert.NoError(t, store.Store(key, i))
				_, found, err := store.Retrieve(key)
				assert.NoError(t, err)
				assert.True(t, found)
				_, err = store.Search("w", 3)
				assert.NoError(t, err)
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			clock.Advance(10 * time.Second)
			_, err := store.Optimize()
			assert.NoError(t, err)
		}
	}()

	wg.Wait()

	stats, err := store.Stats()
	require.NoError(t, err)
	// Every key lives in exactly one tier since none was stored twice
	assert.Equal(t, 8*200, stats.Working.Entries+stats.LongTerm.Entries)
	assert.Equal(t, DefaultTrailCapacity, stats.ContextCache.Size)
	assert.Equal(t, 8*200, stats.Associations.Nodes)
}
