package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"omicpath/domain/core"
	"omicpath/internal"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces checkpoint entries inside the database
const keyPrefix = "omicpath/batch/"

// Config configures the badger-backed checkpoint cache
type Config struct {
	// Path is the database directory; ignored when InMemory is true
	Path string
	// InMemory keeps everything in memory (tests, throwaway runs)
	InMemory bool
	// SyncWrites flushes every write to disk
	SyncWrites bool
	// TTL expires entries after this long; zero keeps them forever
	TTL time.Duration
	// Logger receives badger's own log lines; nil silences them
	Logger *internal.Logger
}

// DefaultConfig returns a persistent cache rooted at path
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a non-persistent cache
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *internal.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace(format, args...)
}

// BadgerCache implements ports.CachePort on BadgerDB
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) the cache database
func Open(cfg Config) (*BadgerCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db, ttl: cfg.TTL}, nil
}

// Get returns the stored bytes or core.ErrCacheMiss
func (c *BadgerCache) Get(ctx context.Context, key core.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return out, nil
}

// Put stores value under key, replacing any previous entry
func (c *BadgerCache) Put(ctx context.Context, key core.Hash, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(dbKey(key), value)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Delete removes an entry; deleting a missing key is not an error
func (c *BadgerCache) Delete(ctx context.Context, key core.Hash) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
}

// Close flushes and closes the database
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

func dbKey(key core.Hash) []byte {
	return []byte(keyPrefix + key.String())
}
