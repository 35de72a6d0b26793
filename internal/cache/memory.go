package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"task-optimizer/internal/models"
)

// MemoryStore keeps encoded results in a size-bounded, expiring LRU.
// Entries are stored encoded so callers never share a result.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates an LRU holding up to size results for ttl.
// A zero ttl keeps entries until they are evicted.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 256
	}
	return &MemoryStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*models.TaskResult, error) {
	b, ok := m.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return decodeResult(b)
}

func (m *MemoryStore) Set(ctx context.Context, key string, result *models.TaskResult) error {
	b, err := encodeResult(result)
	if err != nil {
		return err
	}
	m.lru.Add(key, b)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of cached results
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}
