// Package rules fetches migration rule sets from the model and caches them
// per version pair.
package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Store names accepted by NewCache.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Cache persists serialized rule sets by key. Entries never expire.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// NewCache opens the configured store. dir is used by the file store and
// sqlitePath by the sqlite store.
func NewCache(store, dir, sqlitePath string) (Cache, error) {
	switch store {
	case "", StoreFile:
		return NewFileCache(dir)
	case StoreSQLite:
		return OpenSQLiteCache(sqlitePath)
	case StoreMemory:
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown rule store %q", store)
	}
}

// FileCache keeps one <key>.json file per version pair.
type FileCache struct {
	dir string
}

// NewFileCache creates dir if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create rules dir %s: %w", dir, err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached rules %s: %w", key, err)
	}
	return data, true, nil
}

// Put writes through a temp file so readers never see a partial entry.
func (c *FileCache) Put(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp rules file: %w", err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store rules %s: %w", key, err)
	}
	logrus.Debugf("Cached rules at %s", c.path(key))
	return nil
}

// MemoryCache is an in-process cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]byte(nil), value...)
	return nil
}
