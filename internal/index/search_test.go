package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoctx/repoctx/internal/store"
	"github.com/repoctx/repoctx/pkg/types"
)

func builtIndex(t *testing.T) *Index {
	t.Helper()
	idx, _, _ := setupIndex(t, &stubProvider{})
	_, err := idx.BuildIndex(context.Background())
	require.NoError(t, err)
	return idx
}

func TestSearchFunctions_ExactMatch(t *testing.T) {
	idx := builtIndex(t)

	units, err := idx.SearchFunctions(context.Background(), "authenticate")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "authenticate", units[0].Metadata.SymbolName)
	assert.Equal(t, "auth.ts", units[0].Source)
}

func TestSearchFunctions_SubstringFallback(t *testing.T) {
	idx := builtIndex(t)

	units, err := idx.SearchFunctions(context.Background(), "AUTH")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "authenticate", units[0].Metadata.SymbolName)
}

func TestSearchFunctions_SameNamedMethodsStayDistinct(t *testing.T) {
	provider := &stubProvider{}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "data.go", `package data

type User struct{ Name string }

func (u *User) String() string { return u.Name }

type Group struct{ Name string }

func (g Group) String() string { return g.Name }
`)

	idx, err := New(st, provider, Config{RepoRoot: root})
	require.NoError(t, err)
	_, err = idx.BuildIndex(context.Background())
	require.NoError(t, err)

	units, err := idx.SearchFunctions(context.Background(), "String")
	require.NoError(t, err)
	require.Len(t, units, 2, "methods on different receivers are separate units")

	names := []string{units[0].Metadata.SymbolName, units[1].Metadata.SymbolName}
	assert.Contains(t, names, "User.String")
	assert.Contains(t, names, "Group.String")

	exact, err := idx.SearchFunctions(context.Background(), "User.String")
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "function:data.go:User.String", exact[0].ID)
}

func TestSearchFunctions_NoMatchReturnsEmpty(t *testing.T) {
	idx := builtIndex(t)

	units, err := idx.SearchFunctions(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestSearchFunctions_UnbuiltIndexReturnsEmpty(t *testing.T) {
	idx, _, _ := setupIndex(t, &stubProvider{})

	units, err := idx.SearchFunctions(context.Background(), "authenticate")
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestSearchClasses(t *testing.T) {
	provider := &stubProvider{}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	writeSource(t, root, "session.ts", `export class SessionStore {
  private items = new Map();

  get(key: string) {
    return this.items.get(key);
  }
}
`)

	idx, err := New(st, provider, Config{RepoRoot: root})
	require.NoError(t, err)
	_, err = idx.BuildIndex(context.Background())
	require.NoError(t, err)

	units, err := idx.SearchClasses(context.Background(), "SessionStore")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, types.UnitClass, units[0].Kind)
}

func TestSemanticSearch_RanksRelevantUnitsFirst(t *testing.T) {
	idx := builtIndex(t)

	// Query vector for "login" per the stub provider
	queryVector := vectorFor("login")
	results, err := idx.SemanticSearch(context.Background(), queryVector, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Every auth.ts unit must outrank every user.ts unit
	sawUserFile := false
	for _, r := range results {
		if r.Unit.Source == "user.ts" {
			sawUserFile = true
		}
		if r.Unit.Source == "auth.ts" {
			assert.False(t, sawUserFile, "auth.ts unit ranked below a user.ts unit")
		}
	}

	assert.Equal(t, "auth.ts", results[0].Unit.Source)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSemanticSearch_DimensionMismatch(t *testing.T) {
	idx := builtIndex(t)

	_, err := idx.SemanticSearch(context.Background(), []float32{1, 0}, 10, 0)
	require.Error(t, err)

	var mismatch *types.DimensionMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestSemanticSearch_DiversityCap(t *testing.T) {
	provider := &stubProvider{}
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	root := t.TempDir()
	// One file with many authenticate-themed functions, one unrelated file
	writeSource(t, root, "auth.ts", `export function authenticateUser() {
  return 1;
}
export function authenticateAdmin() {
  return 2;
}
export function authenticateService() {
  return 3;
}
export function authenticateToken() {
  return 4;
}
`)
	writeSource(t, root, "misc.ts", `export function formatDate() {
  return '';
}
`)

	idx, err := New(st, provider, Config{RepoRoot: root})
	require.NoError(t, err)
	_, err = idx.BuildIndex(context.Background())
	require.NoError(t, err)

	results, err := idx.SemanticSearch(context.Background(), vectorFor("login"), 10, 0.3)
	require.NoError(t, err)

	// ceil(0.3 * 10) = 3 units max from any one file
	perFile := make(map[string]int)
	for _, r := range results {
		perFile[r.Unit.Source]++
	}
	for source, count := range perFile {
		assert.LessOrEqual(t, count, 3, "file %s exceeds diversity cap", source)
	}
}

func TestSemanticSearch_ZeroTopK(t *testing.T) {
	idx := builtIndex(t)

	results, err := idx.SemanticSearch(context.Background(), vectorFor("login"), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
