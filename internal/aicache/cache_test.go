package aicache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoctx/repoctx/internal/store"
)

func setupCache(t *testing.T, maxBytes int64) (*Cache, string) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	cache := New(st, Config{
		RepoKey:  "test-repo",
		RepoRoot: root,
		MaxBytes: maxBytes,
	})
	return cache, root
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCache_MissOnEmpty(t *testing.T) {
	cache, _ := setupCache(t, 0)

	_, ok, err := cache.Get(context.Background(), "missing", "openai", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_SetThenGet(t *testing.T) {
	cache, root := setupCache(t, 0)
	ctx := context.Background()

	writeFile(t, root, "auth.ts", "export function authenticate() {}")

	require.NoError(t, cache.Set(ctx, "explain:auth", "openai", "Validates credentials.", []string{"auth.ts"}))

	value, ok, err := cache.Get(ctx, "explain:auth", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Validates credentials.", value)
}

func TestCache_ProviderScoping(t *testing.T) {
	cache, _ := setupCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "openai", "from openai", nil))

	_, ok, err := cache.Get(ctx, "key", "ollama", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := cache.Get(ctx, "key", "openai", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from openai", value)
}

func TestCache_MissAfterDependencyChange(t *testing.T) {
	cache, root := setupCache(t, 0)
	ctx := context.Background()

	original := "export function authenticate() {}"
	writeFile(t, root, "auth.ts", original)
	require.NoError(t, cache.Set(ctx, "explain:auth", "openai", "v1", []string{"auth.ts"}))

	// Mutate the dependency: entry must miss and be purged
	writeFile(t, root, "auth.ts", original+" // changed")
	_, ok, err := cache.Get(ctx, "explain:auth", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	assert.False(t, ok)

	// Purge is permanent even if the content comes back
	writeFile(t, root, "auth.ts", original)
	_, ok, err = cache.Get(ctx, "explain:auth", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_HitAfterRevertWithoutIntermediateGet(t *testing.T) {
	cache, root := setupCache(t, 0)
	ctx := context.Background()

	original := "export function authenticate() {}"
	writeFile(t, root, "auth.ts", original)
	require.NoError(t, cache.Set(ctx, "explain:auth", "openai", "v1", []string{"auth.ts"}))

	// Mutate then revert before any read. Freshness is hash-based, so
	// the entry is still valid.
	writeFile(t, root, "auth.ts", original+" // changed")
	writeFile(t, root, "auth.ts", original)

	value, ok, err := cache.Get(ctx, "explain:auth", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", value)
}

func TestCache_MissOnDeletedDependency(t *testing.T) {
	cache, root := setupCache(t, 0)
	ctx := context.Background()

	writeFile(t, root, "auth.ts", "content")
	require.NoError(t, cache.Set(ctx, "key", "openai", "value", []string{"auth.ts"}))

	require.NoError(t, os.Remove(filepath.Join(root, "auth.ts")))

	_, ok, err := cache.Get(ctx, "key", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_MissOnUnrecordedCallerDependency(t *testing.T) {
	cache, root := setupCache(t, 0)
	ctx := context.Background()

	writeFile(t, root, "auth.ts", "a")
	writeFile(t, root, "user.ts", "b")
	require.NoError(t, cache.Set(ctx, "key", "openai", "value", []string{"auth.ts"}))

	// Caller now considers user.ts an input, but no hash was recorded
	_, ok, err := cache.Get(ctx, "key", "openai", []string{"auth.ts", "user.ts"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_NoDependenciesNeverContentInvalidates(t *testing.T) {
	cache, _ := setupCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "global", "openai", "value", nil))

	value, ok, err := cache.Get(ctx, "global", "openai", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", value)
}

func TestCache_LastWriteWins(t *testing.T) {
	cache, _ := setupCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "openai", "first", nil))
	require.NoError(t, cache.Set(ctx, "key", "openai", "second", nil))

	value, ok, err := cache.Get(ctx, "key", "openai", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", value)
}

func TestCache_FailedRewriteKeepsOldEntryAndDeps(t *testing.T) {
	cache, root := setupCache(t, 0)
	ctx := context.Background()

	writeFile(t, root, "auth.ts", "v1")
	require.NoError(t, cache.Set(ctx, "explain:auth", "openai", "old", []string{"auth.ts"}))

	// A write that dies before commit must not disturb the stored
	// entry or its dependency rows
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := cache.Set(cancelled, "explain:auth", "openai", "new", []string{"auth.ts"})
	require.Error(t, err)

	value, ok, err := cache.Get(ctx, "explain:auth", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", value)

	// Dependency validation still holds for the surviving entry
	writeFile(t, root, "auth.ts", "v2")
	_, ok, err = cache.Get(ctx, "explain:auth", "openai", []string{"auth.ts"})
	require.NoError(t, err)
	assert.False(t, ok, "recorded hashes must still drive invalidation")
}

func TestCache_SetFailsOnMissingDependency(t *testing.T) {
	cache, _ := setupCache(t, 0)

	err := cache.Set(context.Background(), "key", "openai", "value", []string{"missing.ts"})
	assert.Error(t, err)
}

func TestCache_EmptyKeyRejected(t *testing.T) {
	cache, _ := setupCache(t, 0)
	ctx := context.Background()

	_, _, err := cache.Get(ctx, "", "openai", nil)
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, cache.Set(ctx, "", "openai", "v", nil), ErrEmptyKey)
}

func TestCache_EvictionUnderBudget(t *testing.T) {
	// Budget of 10 bytes; each value is 6 bytes
	cache, _ := setupCache(t, 10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "openai", "aaaaaa", nil))
	require.NoError(t, cache.Set(ctx, "b", "openai", "bbbbbb", nil))

	// Second write pushed total to 12: "a" is oldest and must go
	_, ok, err := cache.Get(ctx, "a", "openai", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := cache.Get(ctx, "b", "openai", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bbbbbb", value)
}

func TestCache_EvictionPrefersLeastRecentlyUsed(t *testing.T) {
	cache, _ := setupCache(t, 13)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "openai", "aaaaaa", nil))
	require.NoError(t, cache.Set(ctx, "b", "openai", "bbbbbb", nil))

	// Touch "a" so "b" becomes least recently used
	_, ok, err := cache.Get(ctx, "a", "openai", nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cache.Set(ctx, "c", "openai", "cccccc", nil))

	_, ok, err = cache.Get(ctx, "b", "openai", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.Get(ctx, "a", "openai", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_ResetAndStats(t *testing.T) {
	cache, _ := setupCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "openai", "12345", nil))
	require.NoError(t, cache.Set(ctx, "b", "openai", "67890", nil))

	entries, totalBytes, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, entries)
	assert.Equal(t, int64(10), totalBytes)

	require.NoError(t, cache.Reset(ctx))

	entries, totalBytes, err = cache.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, entries)
	assert.Zero(t, totalBytes)
}

func TestCache_DefaultBudget(t *testing.T) {
	cache, _ := setupCache(t, 0)
	assert.Equal(t, int64(DefaultMaxBytes), cache.MaxBytes())
}
