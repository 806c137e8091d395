// Package memory implements BrainMemory's tiered in-process store.
//
// Invariants:
// - A key's live entry sits in the working tier or the long-term tier. Re-storing a key
//   that was demoted leaves the old long-term copy behind unless SingleCopy is set.
// - The recency trail never holds more than its capacity; the oldest key is dropped first.
// - Each stored key has an association list of at most AssociationWidth trail keys.
// - Stats are derived from the tiers, trail, and associations under the same lock.
//
// Usage:
//
//	store := memory.NewTieredStore(memory.Config{Logger: logger})
//	_ = store.Store("user_query", map[string]any{"text": "hello"})
//	value, found, _ := store.Retrieve("user_query")
//	matches, _ := store.Search("user", 10)
//	_, _ = store.Optimize()
//	_, _, _ = value, found, matches
package memory
