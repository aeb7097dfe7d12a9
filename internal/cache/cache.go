// Package cache implements the content-addressed asset cache shared by all
// project runners of a run.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

// Cache stores payloads in memory and, when a directory is available, on
// disk so later runs can reuse them. At most one compute per key runs at a
// time and concurrent callers share its result.
type Cache struct {
	dir    string
	logger *slog.Logger

	mu  sync.RWMutex
	mem map[string][]byte

	flights singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
}

var _ ports.AssetCache = (*Cache)(nil)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits     int64
	Misses   int64
	Computes int64
}

// NewMemory builds a cache that lives only for the current process.
func NewMemory(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{logger: logger, mem: map[string][]byte{}}
}

// Open builds a cache persisted under dir. An empty or missing directory
// degrades to a memory-only cache.
func Open(dir string, logger *slog.Logger) *Cache {
	c := NewMemory(logger)
	if dir == "" {
		c.logger.Info("cache directory not configured, using memory cache")
		return c
	}

	info, err := os.Stat(dir)
	switch {
	case err != nil:
		c.logger.Warn("cache directory unavailable, using memory cache", "dir", dir, "error", err)
		return c
	case !info.IsDir():
		c.logger.Warn("cache path is not a directory, using memory cache", "dir", dir)
		return c
	}

	c.dir = dir
	c.logger.Debug("cache opened", "dir", dir)
	return c
}

// Durable reports whether entries are persisted across runs.
func (c *Cache) Durable() bool {
	return c.dir != ""
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Computes: c.computes.Load()}
}

// GetOrCompute returns the payload stored under key, calling compute only
// when it is absent. Errors from compute are returned and not cached.
// Callers must treat the returned slice as read-only.
func (c *Cache) GetOrCompute(ctx context.Context, key domain.CacheKey, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if compute == nil {
		return nil, errors.New("cache: compute function is nil")
	}

	id := key.String()
	if payload, ok := c.lookupMemory(id); ok {
		c.hits.Add(1)
		return payload, nil
	}

	v, err, _ := c.flights.Do(id, func() (any, error) {
		// Another flight may have finished between the lookup above and now.
		if payload, ok := c.lookupMemory(id); ok {
			c.hits.Add(1)
			return payload, nil
		}

		if payload, ok := c.readDisk(key); ok {
			c.hits.Add(1)
			c.storeMemory(id, payload)
			return payload, nil
		}

		c.misses.Add(1)
		c.computes.Add(1)
		// The flight is shared, so one caller's cancellation must not fail the others.
		payload, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if payload == nil {
			payload = []byte{}
		}

		c.writeDisk(key, payload)
		c.storeMemory(id, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops key from memory and disk.
func (c *Cache) Invalidate(key domain.CacheKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.mem, key.String())
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(c.dir, key.RelPath())); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

func (c *Cache) lookupMemory(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	payload, ok := c.mem[id]
	return payload, ok
}

func (c *Cache) storeMemory(id string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[id] = payload
}

func (c *Cache) readDisk(key domain.CacheKey) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}
	payload, err := os.ReadFile(filepath.Join(c.dir, key.RelPath()))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cache read failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	return payload, true
}

// writeDisk persists payload atomically. Failures only cost a recompute in
// a later run, so they are logged rather than returned.
func (c *Cache) writeDisk(key domain.CacheKey, payload []byte) {
	if c.dir == "" {
		return
	}
	if err := writeFileAtomic(filepath.Join(c.dir, key.RelPath()), payload); err != nil {
		c.logger.Warn("cache write failed", "key", key.String(), "error", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}
