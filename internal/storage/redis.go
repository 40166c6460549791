package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// RedisConfig holds connection settings for the redis driver
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps records as plain string values under a key prefix
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// OpenRedis connects to redis and verifies the connection with a PING
func OpenRedis(cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %v", ErrStoreMissing, cfg.Addr, err)
	}

	return &RedisStore{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Put sets key without expiry
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// Get returns the value for key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreIO, key, err)
	}
	return value, nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// Each scans all keys under the prefix. Keys removed during the scan are skipped.
func (s *RedisStore) Each(ctx context.Context, fn func(key string, value []byte) error) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		value, err := s.rdb.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: get %s: %v", ErrStoreIO, full, err)
		}
		if err := fn(strings.TrimPrefix(full, s.prefix), value); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan: %v", ErrStoreIO, err)
	}
	return nil
}

// Count counts keys under the prefix
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: scan: %v", ErrStoreIO, err)
	}
	return count, nil
}
