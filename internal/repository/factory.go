// Package repository provides the initialization for repository implementations
package repository

import (
	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/repository/memory"
	"github.com/navikt/avtalt/internal/repository/redis"
)

// Constructors for the repository implementations, registered in init
var (
	newRedisRepository  func(cfg config.RedisConfig) (Repository, error)
	newMemoryRepository func() Repository
)

// init registers the actual repository implementations
func init() {
	// Register the Redis repository constructor
	newRedisRepository = func(cfg config.RedisConfig) (Repository, error) {
		return redis.NewRepository(cfg)
	}

	// Register the memory repository constructor
	newMemoryRepository = func() Repository {
		return memory.NewRepository()
	}
}

// NewRepository returns the repository selected by the configuration:
// Redis-backed when enabled, in-memory otherwise
func NewRepository(cfg config.RedisConfig) (Repository, error) {
	if cfg.Enabled {
		return newRedisRepository(cfg)
	}
	return newMemoryRepository(), nil
}
