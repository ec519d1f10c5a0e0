package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/repoctx/repoctx/internal/aicache"
	"github.com/repoctx/repoctx/internal/contextbuilder"
	"github.com/repoctx/repoctx/internal/embedder"
	"github.com/repoctx/repoctx/internal/index"
	"github.com/repoctx/repoctx/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "repoctx"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.repoctx/indices"
)

// repoContext bundles the per-repository components behind the tool
// handlers. One exists per repository root a client has touched.
type repoContext struct {
	idx     *index.Index
	cache   *aicache.Cache
	builder *contextbuilder.Builder
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    store.Store
	provider embedder.Provider

	mu    sync.Mutex
	repos map[string]*repoContext // keyed by absolute repo root
}

// NewServer creates a new MCP server instance
func NewServer(dbPath string) (*Server, error) {
	// Expand home directory if needed
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".repoctx", "indices")
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// A single database file holds every repository; rows are scoped
	// by the repo key derived from each root path.
	dbFile := filepath.Join(dbPath, "repoctx.db")

	st, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	provider, err := embedder.NewFromEnv()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		store:    st,
		provider: provider,
		repos:    make(map[string]*repoContext),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		_ = s.provider.Close()
		_ = s.store.Close()
	}()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(buildContextTool(), s.handleBuildContext)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(clearIndexTool(), s.handleClearIndex)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
	return nil
}

// repoFor returns the components for a repository root, creating them
// on first use. The index and builder share the server's single
// provider so embedding cache hits carry across tools. When replace is
// true an existing context is rebuilt with the given config; handlers
// that only read pass false and reuse whatever config indexing set.
func (s *Server) repoFor(root string, config index.Config, replace bool) (*repoContext, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rc, ok := s.repos[abs]; ok && !replace {
		return rc, nil
	}

	config.RepoRoot = abs
	idx, err := index.New(s.store, s.provider, config)
	if err != nil {
		return nil, err
	}

	rc := &repoContext{
		idx: idx,
		cache: aicache.New(s.store, aicache.Config{
			RepoKey:  idx.RepoKey(),
			RepoRoot: idx.RepoRoot(),
		}),
		builder: contextbuilder.New(idx, s.provider),
	}
	s.repos[abs] = rc
	return rc, nil
}
