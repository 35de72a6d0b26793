package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
)

// Store persists solve results by content key. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*models.TaskResult, error)
	Set(ctx context.Context, key string, result *models.TaskResult) error
	Clear(ctx context.Context) error
	Close() error
}

type keyPayload struct {
	Turnpoints []models.Turnpoint `msgpack:"turnpoints"`
	Config     optimizer.Config   `msgpack:"config"`
}

// Key hashes the course and the effective solver config into a cache key.
// Worker count does not affect results and is left out.
func Key(course models.Course, cfg optimizer.Config) (string, error) {
	b, err := msgpack.Marshal(&keyPayload{
		Turnpoints: course.Turnpoints(),
		Config:     cfg.WithDefaults(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func encodeResult(result *models.TaskResult) ([]byte, error) {
	b, err := msgpack.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return b, nil
}

func decodeResult(b []byte) (*models.TaskResult, error) {
	var result models.TaskResult
	if err := msgpack.Unmarshal(b, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return &result, nil
}
