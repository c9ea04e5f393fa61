package testkit

import (
	"context"
	"math/rand"
	"sync"

	"omicpath/domain/core"
	"omicpath/ports"
)

// TestKit bundles in-memory collaborators for tests and local runs
type TestKit struct {
	rng   *RNGAdapter
	cache *MemoryCache
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{rng: &RNGAdapter{}, cache: NewMemoryCache()}
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// Cache returns the shared in-memory checkpoint cache
func (t *TestKit) Cache() *MemoryCache {
	return t.cache
}

// RNGAdapter implements the RNGPort interface with math/rand sources
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if name != "" {
		seed = int64(hashString(name)) + seed
	}
	return rand.New(rand.NewSource(seed)), nil
}

// Stream creates a deterministic RNG stream for a run/stage/key triple
func (r *RNGAdapter) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	seed := baseSeed
	if runID != "" {
		seed = int64(hashString(runID)) + seed
	}
	if stageName != "" {
		seed = int64(hashString(stageName)) + seed
	}
	if key != "" {
		seed = int64(hashString(key)) + seed
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}

// MemoryCache is a map-backed ports.CachePort
type MemoryCache struct {
	mu   sync.RWMutex
	data map[core.Hash][]byte
	hits int
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[core.Hash][]byte)}
}

// Get returns a copy of the stored value or core.ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key core.Hash) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	c.hits++
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value
func (c *MemoryCache) Put(ctx context.Context, key core.Hash, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored entries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Hits returns how many lookups found an entry
func (c *MemoryCache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}
