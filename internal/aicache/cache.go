package aicache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/repoctx/repoctx/internal/store"
	"github.com/repoctx/repoctx/internal/vectormath"
)

const (
	// DefaultMaxBytes caps total cached value size at 100 MiB
	DefaultMaxBytes = 100 * 1024 * 1024

	// lockStripes bounds per-key lock memory; unrelated keys rarely collide
	lockStripes = 64
)

// ErrEmptyKey rejects cache operations without a key
var ErrEmptyKey = errors.New("cache key cannot be empty")

// Config holds cache configuration. State is passed in explicitly so
// multiple repository contexts can coexist in one process.
type Config struct {
	RepoKey  string // Stable repository identity
	RepoRoot string // Root for resolving dependency paths
	MaxBytes int64  // Size budget, DefaultMaxBytes when zero
}

// Cache is a persisted key/value store for AI-derived artifacts. Each
// entry records the content hashes of the files it was derived from;
// a read is a hit only while every recorded hash still matches.
type Cache struct {
	store  store.Store
	config Config

	mu     sync.Mutex // Guards repoID resolution and size accounting
	repoID int64

	keyLocks [lockStripes]sync.Mutex
}

// New creates a cache over the given store
func New(st store.Store, config Config) *Cache {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	return &Cache{store: st, config: config}
}

// repoIDLocked resolves the repository row, creating it on first use
func (c *Cache) resolveRepoID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repoID != 0 {
		return c.repoID, nil
	}

	repo, err := c.store.GetRepo(ctx, c.config.RepoKey)
	if err == nil {
		c.repoID = repo.ID
		return c.repoID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("resolve repo: %w", err)
	}

	repo = &store.Repo{
		RepoKey:      c.config.RepoKey,
		RootPath:     c.config.RepoRoot,
		IndexVersion: store.CurrentSchemaVersion,
	}
	if err := c.store.CreateRepo(ctx, repo); err != nil {
		// Lost a race with another creator: re-read
		existing, getErr := c.store.GetRepo(ctx, c.config.RepoKey)
		if getErr != nil {
			return 0, fmt.Errorf("create repo: %w", err)
		}
		repo = existing
	}
	c.repoID = repo.ID
	return c.repoID, nil
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.keyLocks[h.Sum32()%lockStripes]
}

// hashFile reads and hashes a dependency path relative to the repo root.
// The second return is false when the file is missing or unreadable.
func (c *Cache) hashFile(relPath string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(c.config.RepoRoot, relPath))
	if err != nil {
		return "", false
	}
	return vectormath.HashContent(string(content)), true
}

// Get returns the cached value for key under the given provider. The
// current hash of every dependency path, both the caller-supplied set and
// the set recorded at write time, must match what was recorded; any
// mismatch or missing file purges the entry and misses.
func (c *Cache) Get(ctx context.Context, key, provider string, depPaths []string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	repoID, err := c.resolveRepoID(ctx)
	if err != nil {
		return "", false, err
	}

	lock := c.keyLock(provider + "\x00" + key)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.store.GetCacheEntry(ctx, repoID, provider, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}

	deps, err := c.store.ListCacheDeps(ctx, entry.ID)
	if err != nil {
		// Unreadable dependency rows mean the entry can't be validated:
		// treat as corruption, purge, miss
		_ = c.store.DeleteCacheEntry(ctx, entry.ID)
		return "", false, nil
	}

	recorded := make(map[string]string, len(deps))
	for _, dep := range deps {
		recorded[dep.FilePath] = dep.ContentHash
	}

	// Stored dependency hashes must still match
	for path, wantHash := range recorded {
		current, ok := c.hashFile(path)
		if !ok || current != wantHash {
			_ = c.store.DeleteCacheEntry(ctx, entry.ID)
			return "", false, nil
		}
	}

	// Caller paths not recorded at write time invalidate the entry: the
	// caller considers them inputs, but we have no hash to compare
	for _, path := range depPaths {
		if _, ok := recorded[path]; !ok {
			_ = c.store.DeleteCacheEntry(ctx, entry.ID)
			return "", false, nil
		}
	}

	if err := c.store.TouchCacheEntry(ctx, entry.ID, time.Now()); err != nil {
		return "", false, fmt.Errorf("touch cache entry: %w", err)
	}
	return entry.Value, true, nil
}

// Set stores a value under key for the given provider, capturing the
// current hashes of depPaths. Entries without dependencies never
// invalidate by content but remain subject to size eviction and Reset.
// Concurrent writers to the same key resolve last-write-wins.
func (c *Cache) Set(ctx context.Context, key, provider, value string, depPaths []string) error {
	if key == "" {
		return ErrEmptyKey
	}

	repoID, err := c.resolveRepoID(ctx)
	if err != nil {
		return err
	}

	deps := make([]store.CacheDep, 0, len(depPaths))
	for _, path := range depPaths {
		hash, ok := c.hashFile(path)
		if !ok {
			return fmt.Errorf("dependency %s is unreadable", path)
		}
		deps = append(deps, store.CacheDep{FilePath: path, ContentHash: hash})
	}

	lock := c.keyLock(provider + "\x00" + key)
	lock.Lock()
	err = c.putEntry(ctx, &store.CacheEntry{
		RepoID:    repoID,
		Provider:  provider,
		Key:       key,
		Value:     value,
		SizeBytes: int64(len(value)),
	}, deps)
	lock.Unlock()
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}

	return c.evictOverBudget(ctx, repoID)
}

// putEntry writes the entry and its dependency rows in one transaction:
// a crash mid-write must never leave a value readable without the
// hashes that validate it
func (c *Cache) putEntry(ctx context.Context, entry *store.CacheEntry, deps []store.CacheDep) error {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.PutCacheEntry(ctx, entry, deps); err != nil {
		return err
	}
	return tx.Commit()
}

// evictOverBudget drops least-recently-used entries until total size is
// back under the configured budget. Ties break by insertion order.
func (c *Cache) evictOverBudget(ctx context.Context, repoID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, totalBytes, err := c.store.CacheUsage(ctx, repoID)
	if err != nil {
		return fmt.Errorf("cache usage: %w", err)
	}
	if totalBytes <= c.config.MaxBytes {
		return nil
	}

	entries, err := c.store.ListCacheEntriesLRU(ctx, repoID)
	if err != nil {
		return fmt.Errorf("list entries for eviction: %w", err)
	}

	for _, entry := range entries {
		if totalBytes <= c.config.MaxBytes {
			break
		}
		if err := c.store.DeleteCacheEntry(ctx, entry.ID); err != nil {
			return fmt.Errorf("evict entry: %w", err)
		}
		totalBytes -= entry.SizeBytes
	}
	return nil
}

// Reset drops every cache entry for this repository
func (c *Cache) Reset(ctx context.Context) error {
	repoID, err := c.resolveRepoID(ctx)
	if err != nil {
		return err
	}
	return c.store.ClearCacheEntries(ctx, repoID)
}

// Stats reports current entry count and total cached bytes
func (c *Cache) Stats(ctx context.Context) (entries int, totalBytes int64, err error) {
	repoID, err := c.resolveRepoID(ctx)
	if err != nil {
		return 0, 0, err
	}
	return c.store.CacheUsage(ctx, repoID)
}

// MaxBytes returns the configured size budget
func (c *Cache) MaxBytes() int64 {
	return c.config.MaxBytes
}
