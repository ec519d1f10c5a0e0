package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoctx/repoctx/internal/embedder"
	"github.com/repoctx/repoctx/internal/store"
	"github.com/repoctx/repoctx/pkg/types"
)

// stubProvider returns deterministic vectors for known inputs so ranking
// assertions hold
type stubProvider struct {
	embedCalls atomic.Int32
	fail       bool
}

func vectorFor(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "login") || strings.Contains(lower, "authenticate"):
		return []float32{1, 0, 0}
	case strings.Contains(lower, "user"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.embedCalls.Add(1)
	if s.fail {
		return nil, errors.New("provider unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text)
	}
	return vectors, nil
}

func (s *stubProvider) Chat(ctx context.Context, messages []embedder.Message, opts *embedder.ChatOptions) (string, error) {
	return "", nil
}

func (s *stubProvider) Dimension() int { return 3 }
func (s *stubProvider) Name() string   { return "stub" }
func (s *stubProvider) Close() error   { return nil }

// poisonProvider rejects any batch containing the poison text; single
// embeds reject only the poison text itself
type poisonProvider struct {
	stubProvider
	poison string
}

func (p *poisonProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, p.poison) {
			return nil, errors.New("invalid input")
		}
	}
	return p.stubProvider.EmbedBatch(ctx, texts)
}

func (p *poisonProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, p.poison) {
		return nil, errors.New("invalid input")
	}
	return p.stubProvider.Embed(ctx, text)
}

const authTS = `import { Session } from './session';

export function authenticate(name: string, secret: string): boolean {
  if (secret.length === 0) {
    return false;
  }
  return true;
}
`

const userTS = `export function createUser(name: string): string {
  return 'user:' + name;
}
`

func setupIndex(t *testing.T, provider *stubProvider) (*Index, string, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "auth.ts", authTS)
	writeSource(t, root, "user.ts", userTS)

	idx, err := New(st, provider, Config{RepoRoot: root, Workers: 2})
	require.NoError(t, err)
	return idx, root, st
}

func writeSource(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildIndex_TwoFileRepo(t *testing.T) {
	provider := &stubProvider{}
	idx, _, _ := setupIndex(t, provider)

	stats, err := idx.BuildIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Zero(t, stats.FilesFailed)
	// auth.ts: file + authenticate; user.ts: file + createUser
	assert.Equal(t, 4, stats.UnitsCreated)
	assert.Zero(t, stats.UnitsReused)
	assert.Greater(t, stats.EmbedCalls, 0)
}

func TestBuildIndex_NoChangeRebuildIssuesNoEmbedCalls(t *testing.T) {
	provider := &stubProvider{}
	idx, _, _ := setupIndex(t, provider)
	ctx := context.Background()

	_, err := idx.BuildIndex(ctx)
	require.NoError(t, err)
	callsAfterFirst := provider.embedCalls.Load()

	stats, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesSkipped)
	assert.Zero(t, stats.FilesIndexed)
	assert.Zero(t, stats.EmbedCalls)
	assert.Equal(t, callsAfterFirst, provider.embedCalls.Load())
}

func TestBuildIndex_ChangedFileReusesUnchangedUnits(t *testing.T) {
	provider := &stubProvider{}
	idx, root, _ := setupIndex(t, provider)
	ctx := context.Background()

	_, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	// Append a function; authenticate itself is untouched
	writeSource(t, root, "auth.ts", authTS+`
export function logout(): void {
}
`)

	stats, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	// authenticate unit hash unchanged: vector reused
	assert.Equal(t, 1, stats.UnitsReused)
	// file unit changed, logout is new
	assert.Equal(t, 2, stats.UnitsCreated)
}

func TestBuildIndex_DeletedFileDropsUnits(t *testing.T) {
	provider := &stubProvider{}
	idx, root, _ := setupIndex(t, provider)
	ctx := context.Background()

	_, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "user.ts")))

	_, err = idx.BuildIndex(ctx)
	require.NoError(t, err)

	units, err := idx.SearchFunctions(ctx, "createUser")
	require.NoError(t, err)
	assert.Empty(t, units)

	status, err := idx.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalFiles)
}

func TestBuildIndex_RejectsConcurrentBuild(t *testing.T) {
	provider := &stubProvider{}
	idx, _, _ := setupIndex(t, provider)

	lock := lockForRepo(idx.RepoKey())
	require.True(t, lock.TryAcquire())
	defer lock.Release()

	_, err := idx.BuildIndex(context.Background())
	assert.ErrorIs(t, err, ErrBuildInProgress)
}

func TestBuildIndex_EmbedFailureIsNotFatal(t *testing.T) {
	provider := &stubProvider{fail: true}
	idx, _, _ := setupIndex(t, provider)
	ctx := context.Background()

	stats, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Greater(t, stats.EmbedFailures, 0)
	assert.NotEmpty(t, stats.Warnings)

	// Un-embedded units still answer exact-name search
	units, err := idx.SearchFunctions(ctx, "authenticate")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.False(t, units[0].Embedded())

	// But are invisible to semantic search
	results, err := idx.SemanticSearch(ctx, []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildIndex_BatchFailureFallsBackToSingleEmbeds(t *testing.T) {
	provider := &poisonProvider{poison: "UNENCODABLE"}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "mixed.ts", `export function good(name: string): string {
  return 'user:' + name;
}

export function bad(): string {
  return 'UNENCODABLE';
}
`)

	idx, err := New(st, provider, Config{RepoRoot: root})
	require.NoError(t, err)
	ctx := context.Background()

	stats, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	// The file unit and the bad function carry the poison text; the
	// good function must not be stranded by sharing their batch
	assert.Equal(t, 2, stats.EmbedFailures)

	good, err := idx.SearchFunctions(ctx, "good")
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.True(t, good[0].Embedded())

	bad, err := idx.SearchFunctions(ctx, "bad")
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.False(t, bad[0].Embedded())
}

func TestBuildIndex_IgnorePatterns(t *testing.T) {
	provider := &stubProvider{}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "src/auth.ts", authTS)
	writeSource(t, root, "src/generated/api.ts", userTS)

	idx, err := New(st, provider, Config{
		RepoRoot:       root,
		IgnorePatterns: []string{"**/generated/**"},
	})
	require.NoError(t, err)

	stats, err := idx.BuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestBuildIndex_SkipsNodeModulesAndHiddenDirs(t *testing.T) {
	provider := &stubProvider{}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "app.ts", authTS)
	writeSource(t, root, "node_modules/lib/index.ts", userTS)
	writeSource(t, root, ".git/hooks/pre-commit.ts", userTS)

	idx, err := New(st, provider, Config{RepoRoot: root})
	require.NoError(t, err)

	stats, err := idx.BuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestBuildIndex_ParseErrorRecordedAsWarning(t *testing.T) {
	provider := &stubProvider{}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "broken.ts", "export function broken() {\n  // brace never closes\n")
	writeSource(t, root, "fine.ts", userTS)

	idx, err := New(st, provider, Config{RepoRoot: root})
	require.NoError(t, err)

	stats, err := idx.BuildIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.NotEmpty(t, stats.Warnings)
}

func TestClearCache_ForcesFullRebuild(t *testing.T) {
	provider := &stubProvider{}
	idx, _, _ := setupIndex(t, provider)
	ctx := context.Background()

	_, err := idx.BuildIndex(ctx)
	require.NoError(t, err)

	require.NoError(t, idx.ClearCache(ctx))

	status, err := idx.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalUnits)

	stats, err := idx.BuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
}

func TestClearCache_NoIndexIsNoop(t *testing.T) {
	provider := &stubProvider{}
	idx, _, _ := setupIndex(t, provider)

	assert.NoError(t, idx.ClearCache(context.Background()))
}

func TestGetStatus(t *testing.T) {
	provider := &stubProvider{}
	idx, _, _ := setupIndex(t, provider)
	ctx := context.Background()

	status, err := idx.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalFiles)

	_, err = idx.BuildIndex(ctx)
	require.NoError(t, err)

	status, err = idx.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalFiles)
	assert.Equal(t, 4, status.TotalUnits)
	assert.Equal(t, 4, status.EmbeddedUnits)
	assert.False(t, status.LastIndexedAt.IsZero())
}

func TestDeriveUnits(t *testing.T) {
	parsed := &types.ParsedFile{
		Path:     "auth.ts",
		Language: "typescript",
		Functions: []types.ParsedFunction{
			{Name: "authenticate", Signature: "authenticate(name, secret)", StartLine: 3, EndLine: 8, Complexity: 2},
		},
		Exports: []string{"authenticate"},
	}

	units := deriveUnits("auth.ts", authTS, parsed, time.Now())
	require.Len(t, units, 2)

	assert.Equal(t, types.UnitFile, units[0].Kind)
	assert.Equal(t, "file:auth.ts", units[0].ID)
	assert.Equal(t, authTS, units[0].Content)

	assert.Equal(t, types.UnitFunction, units[1].Kind)
	assert.Equal(t, "function:auth.ts:authenticate", units[1].ID)
	assert.Equal(t, "authenticate", units[1].Metadata.SymbolName)
	assert.Contains(t, units[1].Content, "export function authenticate")
}
