package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/repoctx/repoctx/internal/contextbuilder"
	"github.com/repoctx/repoctx/internal/index"
	"github.com/repoctx/repoctx/internal/store"
)

// SearchTestSuite exercises retrieval paths over an indexed fixture
type SearchTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    store.Store
	provider *countingProvider
	index    *index.Index
	builder  *contextbuilder.Builder
}

func (s *SearchTestSuite) SetupSuite() {
	s.ctx = context.Background()

	wd, err := os.Getwd()
	s.Require().NoError(err)
	fixturesDir := filepath.Join(filepath.Dir(wd), "testdata", "fixtures")

	st, err := store.NewSQLiteStore(":memory:")
	s.Require().NoError(err)
	s.store = st

	s.provider, err = newCountingProvider()
	s.Require().NoError(err)

	s.index, err = index.New(st, s.provider, index.Config{RepoRoot: fixturesDir})
	s.Require().NoError(err)
	s.builder = contextbuilder.New(s.index, s.provider)

	_, err = s.index.BuildIndex(s.ctx)
	s.Require().NoError(err)
}

func (s *SearchTestSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *SearchTestSuite) TestSymbolSearch() {
	units, err := s.index.SearchFunctions(s.ctx, "authenticate")
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal("auth.ts", units[0].Source)

	classes, err := s.index.SearchClasses(s.ctx, "UserStore")
	s.Require().NoError(err)
	s.Require().Len(classes, 1)
	s.Equal("user.ts", classes[0].Source)
}

func (s *SearchTestSuite) TestSymbolSearchSubstring() {
	units, err := s.index.SearchFunctions(s.ctx, "user")
	s.Require().NoError(err)

	names := make([]string, 0, len(units))
	for _, unit := range units {
		names = append(names, unit.Metadata.SymbolName)
	}
	s.Contains(names, "findUser")
	s.Contains(names, "createUser")
}

func (s *SearchTestSuite) TestSemanticSearch() {
	vector, err := s.provider.Embed(s.ctx, "password verification")
	s.Require().NoError(err)

	scored, err := s.index.SemanticSearch(s.ctx, vector, 5, index.DefaultDiversity)
	s.Require().NoError(err)
	s.Require().NotEmpty(scored)

	for i := 1; i < len(scored); i++ {
		s.GreaterOrEqual(scored[i-1].Score, scored[i].Score, "results sorted by score")
	}
}

func (s *SearchTestSuite) TestFunctionContext() {
	rc, err := s.builder.BuildFunctionContext(s.ctx, "authenticate", contextbuilder.Options{
		MaxTokens:           800,
		IncludeDependencies: true,
	})
	s.Require().NoError(err)

	s.NotEmpty(rc.Content)
	s.LessOrEqual(rc.TokenCount, 800)
	s.Contains(rc.Sources, "function:auth.ts:authenticate")
	s.Contains(rc.Sources, "function:user.ts:findUser", "called symbol pulled in as dependency")
}

func (s *SearchTestSuite) TestThemeContext() {
	rc, err := s.builder.BuildThemeContext(s.ctx, "user account management", contextbuilder.Options{
		MaxTokens:   600,
		IncludeDocs: true,
	})
	s.Require().NoError(err)

	s.NotEmpty(rc.Content)
	s.LessOrEqual(rc.TokenCount, 600)
	s.NotEmpty(rc.Sources)
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchTestSuite))
}
