package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// BadgerStore keeps records in a BadgerDB directory
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.logger.Errorf(msg, items...) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.logger.Warnf(msg, items...) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.logger.Infof(msg, items...) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.logger.Debugf(msg, items...) }

// OpenBadger opens a BadgerDB store at cfg.Path.
// With ModeCreate the directory is created if needed.
func OpenBadger(cfg Config, mode Mode, logger *zap.Logger) (*BadgerStore, error) {
	var opts badger.Options

	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(cfg.Path)
		switch {
		case os.IsNotExist(err) && mode == ModeExisting:
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, cfg.Path)
		case os.IsNotExist(err):
			if err := os.MkdirAll(cfg.Path, 0755); err != nil {
				return nil, fmt.Errorf("%w: create store directory: %v", ErrStoreIO, err)
			}
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		case !info.IsDir():
			return nil, fmt.Errorf("%w: %s is not a directory", ErrStoreIO, cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	compression, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	opts.Compression = compression
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = &badgerLogger{logger: logger.Named("badger").Sugar()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", ErrStoreIO, err)
	}

	return &BadgerStore{db: db}, nil
}

func parseCompression(name string) (options.CompressionType, error) {
	switch name {
	case "", "none":
		return options.None, nil
	case "snappy":
		return options.Snappy, nil
	case "zstd":
		return options.ZSTD, nil
	default:
		return options.None, fmt.Errorf("unsupported compression: %s (supported: none, snappy, zstd)", name)
	}
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Put stores value under key in its own transaction
func (s *BadgerStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// Get retrieves the value stored under key
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreIO, key, err)
	}

	return value, nil
}

// Delete removes key
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// Each walks every entry in key order within a single read transaction
func (s *BadgerStore) Each(ctx context.Context, fn func(key string, value []byte) error) error {
	var fnErr error
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				fnErr = err
				return nil
			}

			item := iter.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if err := fn(string(item.KeyCopy(nil)), value); err != nil {
				fnErr = err
				return nil
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("%w: iterate: %v", ErrStoreIO, err)
	}
	return fnErr
}

// Count returns the number of keys without loading values
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStoreIO, err)
	}
	return count, nil
}
