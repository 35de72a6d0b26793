package cache

import (
	"context"
	"log"
	"time"

	"task-optimizer/internal/metrics"
	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
)

// configurer is implemented by solvers that expose their default config
type configurer interface {
	Config() optimizer.Config
}

// CachedSolver memoizes another solver. The cache is advisory: read and
// write failures are logged and the solve goes ahead.
type CachedSolver struct {
	inner     optimizer.Solver
	store     Store
	collector *metrics.Collector
}

// NewCachedSolver decorates inner. A nil store disables caching and a nil
// collector disables metrics.
func NewCachedSolver(inner optimizer.Solver, store Store, collector *metrics.Collector) *CachedSolver {
	return &CachedSolver{inner: inner, store: store, collector: collector}
}

// Config returns the default config of the wrapped solver
func (c *CachedSolver) Config() optimizer.Config {
	if cf, ok := c.inner.(configurer); ok {
		return cf.Config()
	}
	return optimizer.DefaultConfig()
}

func (c *CachedSolver) effectiveConfig(cfg optimizer.Config) optimizer.Config {
	if cfg == (optimizer.Config{}) {
		return c.Config()
	}
	return cfg.WithDefaults()
}

func (c *CachedSolver) Solve(ctx context.Context, req *optimizer.SolveRequest) (*models.TaskResult, error) {
	var key string
	if c.store != nil {
		k, err := Key(req.Course, c.effectiveConfig(req.Config))
		if err != nil {
			log.Printf("[CACHE] Key error, solving uncached: %v", err)
		} else {
			key = k
		}
	}

	if key != "" {
		hit, err := c.store.Get(ctx, key)
		if err != nil {
			log.Printf("[CACHE] Read failed: %v", err)
		} else if hit != nil {
			c.collector.CacheHit()
			log.Printf("[CACHE] Hit: key=%s distance=%.0fm", key[:12], hit.OptimizedDistanceMeters)
			return hit, nil
		}
		c.collector.CacheMiss()
	}

	start := time.Now()
	result, err := c.inner.Solve(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		c.collector.ObserveSolve(metrics.OutcomeError, elapsed)
		return nil, err
	}
	if result.Fallback {
		// a degraded answer is not worth keeping
		c.collector.ObserveSolve(metrics.OutcomeFallback, elapsed)
		return result, nil
	}
	c.collector.ObserveSolve(metrics.OutcomeOK, elapsed)

	if key != "" {
		if err := c.store.Set(ctx, key, result); err != nil {
			log.Printf("[CACHE] Write failed: %v", err)
		}
	}
	return result, nil
}
