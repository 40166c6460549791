package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Store is a durable key -> bytes mapping holding complete records.
// Implementations are safe for concurrent use.
type Store interface {
	// Put associates key with value, overwriting any prior value
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Each calls fn for every stored entry until fn returns an error
	Each(ctx context.Context, fn func(key string, value []byte) error) error

	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)

	Close() error
}

// Mode controls what Open does when the store does not exist yet
type Mode int

const (
	// ModeCreate creates the store if it is missing (import)
	ModeCreate Mode = iota
	// ModeExisting fails with ErrStoreMissing if the store is missing (serving)
	ModeExisting
)

// Supported drivers
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a store backend
type Config struct {
	Driver      string
	Path        string // directory (badger) or file (sqlite)
	Compression string // badger only: none, snappy, zstd
	SyncWrites  bool   // badger only
	InMemory    bool   // badger only, for tests and one-off tools
	Redis       RedisConfig
}

// Open opens the store described by cfg
func Open(cfg Config, mode Mode, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case DriverBadger, "":
		return OpenBadger(cfg, mode, logger)
	case DriverSQLite:
		return OpenSQLite(cfg.Path, mode)
	case DriverRedis:
		return OpenRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: badger, sqlite, redis)", cfg.Driver)
	}
}
