package memory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	require.NoError(t, store.Store("test_key_1", map[string]any{"id": 1.0}))
	require.NoError(t, store.Store("test_key_2", map[string]any{"id": 2.0}))
	require.NoError(t, store.Store("other_key", map[string]any{"id": 3.0}))

	results, err := store.Search("test", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Contains(t, r.Key, "test")
		assert.InDelta(t, 0.4, r.Score, 1e-9)
	}
}

func TestSearch_ScoreFormula(t *testing.T) {
	tests := []struct {
		key      string
		query    string
		expected float64
	}{
		{key: "abc", query: "abc", expected: 1.0},
		{key: "abcd", query: "ab", expected: 0.5},
		{key: "user_query", query: "user", expected: 0.4},
		{key: "x", query: "", expected: 0.0},
		{key: "", query: "", expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q in %q", tt.query, tt.key), func(t *testing.T) {
			assert.InDelta(t, tt.expected, relevance(tt.key, tt.query), 1e-9)
		})
	}
}

func TestSearch_OrderedByScore(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	for _, key := range []string{"model_used_for_context", "model", "model_used"} {
		require.NoError(t, store.Store(key, key))
	}

	results, err := store.Search("model", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "model", results[0].Key)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "model_used", results[1].Key)
	assert.Equal(t, "model_used_for_context", results[2].Key)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestSearch_Limit(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	for i := 0; i < 20; i++ {
		require.NoError(t, store.Store(fmt.Sprintf("item_%02d", i), i))
	}

	for _, limit := range []int{1, 5, 20, 50} {
		results, err := store.Search("item", limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), limit)
		for _, r := range results {
			assert.True(t, strings.Contains(r.Key, "item"))
		}
	}

	results, err := store.Search("item", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Search("item", -3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_NoMatch(t *testing.T) {
	store, _ := createTestStore(t, Config{})

	require.NoError(t, store.Store("alpha", 1))

	results, err := store.Search("zeta", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_IgnoresLongTermTier(t *testing.T) {
	store, clock := createTestStore(t, Config{})

	require.NoError(t, store.Store("cold_key", 1))
	clock.Advance(DefaultDemotionThreshold + 1)
	_, err := store.Optimize()
	require.NoError(t, err)
	require.NoError(t, store.Store("hot_key", 2))

	results, err := store.Search("key", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hot_key", results[0].Key)
}
