package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"task-optimizer/internal/cache"
	"task-optimizer/internal/observability"
	"task-optimizer/internal/optimizer"
)

// Config is the runtime configuration of the optimizer service
type Config struct {
	ServerAddr string

	CacheBackend    string
	CacheSQLitePath string
	CacheMemorySize int
	CacheTTL        time.Duration

	RedisAddr string
	RedisPass string
	RedisDB   int

	// BatchLimit bounds how many tasks of one batch request run at once
	BatchLimit int

	Optimizer optimizer.Config
	Tracing   observability.TracingConfig

	LogFile string
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddr:      getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		CacheBackend:    strings.ToLower(getEnv("CACHE_BACKEND", cache.BackendMemory)),
		CacheSQLitePath: getEnv("CACHE_SQLITE_PATH", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPass:       getEnv("REDIS_PASS", ""),
		LogFile:         getEnv("LOG_FILE", ""),
	}

	var err error
	if cfg.CacheMemorySize, err = getEnvInt("CACHE_MEMORY_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.BatchLimit, err = getEnvInt("BATCH_LIMIT", 4); err != nil {
		return nil, err
	}

	opt := optimizer.DefaultConfig()
	if opt.AngleStep, err = getEnvFloat("OPT_ANGLE_STEP", opt.AngleStep); err != nil {
		return nil, err
	}
	if opt.BeamWidth, err = getEnvInt("OPT_BEAM_WIDTH", opt.BeamWidth); err != nil {
		return nil, err
	}
	if opt.NumIterations, err = getEnvInt("OPT_ITERATIONS", opt.NumIterations); err != nil {
		return nil, err
	}
	if opt.Tolerance, err = getEnvFloat("OPT_TOLERANCE", opt.Tolerance); err != nil {
		return nil, err
	}
	if opt.FineAngleStep, err = getEnvFloat("OPT_FINE_ANGLE_STEP", opt.FineAngleStep); err != nil {
		return nil, err
	}
	if opt.Workers, err = getEnvInt("OPT_WORKERS", opt.Workers); err != nil {
		return nil, err
	}
	if opt.FallbackToCenters, err = getEnvBool("OPT_FALLBACK", false); err != nil {
		return nil, err
	}
	cfg.Optimizer = opt

	tracingEnabled, err := getEnvBool("TRACING_ENABLED", false)
	if err != nil {
		return nil, err
	}
	sampleRatio, err := getEnvFloat("TRACING_SAMPLE_RATIO", 1)
	if err != nil {
		return nil, err
	}
	cfg.Tracing = observability.TracingConfig{
		Enabled:     tracingEnabled,
		ServiceName: getEnv("TRACING_SERVICE_NAME", "task-optimizer"),
		Exporter:    getEnv("TRACING_EXPORTER", "stdout"),
		Endpoint:    getEnv("OTLP_ENDPOINT", "localhost:4317"),
		SampleRatio: sampleRatio,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be caught later
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case cache.BackendMemory, cache.BackendSQLite, cache.BackendNone:
	case cache.BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheMemorySize < 1 {
		return fmt.Errorf("CACHE_MEMORY_SIZE must be positive, got %d", c.CacheMemorySize)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.BatchLimit < 1 {
		return fmt.Errorf("BATCH_LIMIT must be positive, got %d", c.BatchLimit)
	}
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	return nil
}

// CacheOptions converts the cache settings for cache.Open
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.CacheBackend,
		SQLitePath: c.CacheSQLitePath,
		MemorySize: c.CacheMemorySize,
		TTL:        c.CacheTTL,
		RedisAddr:  c.RedisAddr,
		RedisPass:  c.RedisPass,
		RedisDB:    c.RedisDB,
	}
}

// LogSummary prints the effective configuration without secrets
func (c *Config) LogSummary() {
	log.Printf("[CONFIG] addr=%s cache=%s ttl=%s batch_limit=%d", c.ServerAddr, c.CacheBackend, c.CacheTTL, c.BatchLimit)
	log.Printf("[CONFIG] optimizer angle_step=%.1f beam_width=%d iterations=%d tolerance=%g workers=%d fallback=%t",
		c.Optimizer.AngleStep, c.Optimizer.BeamWidth, c.Optimizer.NumIterations,
		c.Optimizer.Tolerance, c.Optimizer.Workers, c.Optimizer.FallbackToCenters)
	if c.Tracing.Enabled {
		log.Printf("[CONFIG] tracing exporter=%s endpoint=%s", c.Tracing.Exporter, c.Tracing.Endpoint)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
