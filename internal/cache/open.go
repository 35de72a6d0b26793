package cache

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Options selects and sizes a cache backend
type Options struct {
	Backend    string
	SQLitePath string // empty means GetDefaultDBPath
	MemorySize int
	TTL        time.Duration
	RedisAddr  string
	RedisPass  string
	RedisDB    int
}

// HealthChecker is implemented by stores backed by an external resource
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Open builds the store named by opts.Backend. The none backend returns a
// nil store, which disables caching.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendNone:
		log.Printf("[CACHE] Solve cache disabled")
		return nil, nil
	case "", BackendMemory:
		log.Printf("[CACHE] Using in-memory solve cache: size=%d ttl=%s", opts.MemorySize, opts.TTL)
		return NewMemoryStore(opts.MemorySize, opts.TTL), nil
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			var err error
			if path, err = GetDefaultDBPath(); err != nil {
				return nil, err
			}
		}
		store, err := NewSQLiteStore(path, opts.TTL)
		if err != nil {
			return nil, err
		}
		if pruned, err := store.Prune(context.Background()); err != nil {
			log.Printf("[CACHE] Prune failed: %v", err)
		} else if pruned > 0 {
			log.Printf("[CACHE] Pruned %d expired entries", pruned)
		}
		return store, nil
	case BackendRedis:
		log.Printf("[CACHE] Using Redis solve cache at %s db=%d", opts.RedisAddr, opts.RedisDB)
		store, err := NewRedisStore(OpenRedis(opts.RedisAddr, opts.RedisPass, opts.RedisDB), opts.TTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
