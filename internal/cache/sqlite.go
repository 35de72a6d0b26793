package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"task-optimizer/internal/models"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "solve_cache.db"
	schemaVersion     = 1
)

// SQLiteStore is a persistent solve cache backed by a SQLite file
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewSQLiteStore opens or creates the cache database at dbPath. Entries
// older than ttl are treated as misses; zero keeps them forever.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Printf("[CACHE] Opening SQLite solve cache at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		ttl:    ttl,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// GetDBPath returns the database file path
func (s *SQLiteStore) GetDBPath() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if _, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	CREATE TABLE IF NOT EXISTS solve_cache (
		cache_key TEXT PRIMARY KEY,
		result BLOB NOT NULL,
		optimized_distance_meters REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_solve_cache_created ON solve_cache(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[CACHE] SQLite schema initialized (version %d)", schemaVersion)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*models.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT result, created_at FROM solve_cache WHERE cache_key = ?`, key,
	).Scan(&blob, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solve cache entry: %w", err)
	}

	if s.ttl > 0 && time.Since(time.Unix(createdAt, 0)) > s.ttl {
		return nil, nil
	}
	return decodeResult(blob)
}

func (s *SQLiteStore) Set(ctx context.Context, key string, result *models.TaskResult) error {
	blob, err := encodeResult(result)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT OR REPLACE INTO solve_cache
	          (cache_key, result, optimized_distance_meters, created_at)
	          VALUES (?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, key, blob, result.OptimizedDistanceMeters, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set solve cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries older than the store ttl and reports how many went
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl).Unix()
	res, err := s.db.ExecContext(ctx, "DELETE FROM solve_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune solve cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM solve_cache"); err != nil {
		return fmt.Errorf("failed to clear solve cache: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
