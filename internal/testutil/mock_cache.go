package testutil

import (
	"context"
	"errors"
	"sync"

	"task-optimizer/internal/models"
)

// ErrMockCache is returned by MockCache when a failure flag is set
var ErrMockCache = errors.New("mock cache failure")

// MockCache is an in-memory cache.Store for tests. It counts calls and can
// be told to fail reads or writes.
type MockCache struct {
	FailReads  bool
	FailWrites bool

	mu      sync.Mutex
	entries map[string]*models.TaskResult
	gets    int
	sets    int
}

func NewMockCache() *MockCache {
	return &MockCache{
		entries: make(map[string]*models.TaskResult),
	}
}

func (c *MockCache) Get(ctx context.Context, key string) (*models.TaskResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.FailReads {
		return nil, ErrMockCache
	}
	if entry, ok := c.entries[key]; ok {
		return entry, nil
	}
	return nil, nil
}

func (c *MockCache) Set(ctx context.Context, key string, result *models.TaskResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.FailWrites {
		return ErrMockCache
	}
	c.entries[key] = result
	return nil
}

func (c *MockCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.TaskResult)
	return nil
}

func (c *MockCache) Close() error {
	return nil
}

// Count returns the number of entries in the cache
func (c *MockCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Gets returns how many lookups were made
func (c *MockCache) Gets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

// Sets returns how many writes were attempted
func (c *MockCache) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}
