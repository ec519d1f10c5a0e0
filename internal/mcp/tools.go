package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/repoctx/repoctx/internal/contextbuilder"
	"github.com/repoctx/repoctx/internal/index"
	"github.com/repoctx/repoctx/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeRepoNotFound       = -32001 // Specified path is not a readable directory
	ErrorCodeIndexingInProgress = -32002 // Another build is already running for this repo
	ErrorCodeNotIndexed         = -32003 // Repository not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeStaleIndex         = -32005 // Stored vectors do not match the provider dimension
)

// handleIndexRepository handles the index_repository tool invocation
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	config := index.Config{
		IgnorePatterns: getStringSlice(args, "ignore_patterns"),
		Workers:        getIntDefault(args, "workers", 0),
	}

	rc, err := s.repoFor(path, config, true)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := rc.idx.BuildIndex(ctx)
	if errors.Is(err, index.ErrBuildInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": rc.idx.RepoRoot(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":        true,
		"files_indexed":  stats.FilesIndexed,
		"files_skipped":  stats.FilesSkipped,
		"files_failed":   stats.FilesFailed,
		"units_created":  stats.UnitsCreated,
		"units_reused":   stats.UnitsReused,
		"embed_calls":    stats.EmbedCalls,
		"embed_failures": stats.EmbedFailures,
		"duration_ms":    stats.Duration.Milliseconds(),
	}

	if len(stats.Warnings) > 0 {
		// Include first few warnings
		warningCount := len(stats.Warnings)
		if warningCount > 5 {
			response["warnings"] = stats.Warnings[:5]
			response["warning_count"] = warningCount
		} else {
			response["warnings"] = stats.Warnings
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	kind := getStringDefault(args, "kind", "function")
	if kind != "function" && kind != "class" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
			"param":   "kind",
			"value":   kind,
			"allowed": []string{"function", "class"},
		})
	}

	rc, err := s.repoFor(path, index.Config{}, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var units []*types.EmbeddableUnit
	if kind == "class" {
		units, err = rc.idx.SearchClasses(ctx, name)
	} else {
		units, err = rc.idx.SearchFunctions(ctx, name)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "symbol search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(units))
	for _, unit := range units {
		results = append(results, unitResponse(unit))
	}

	response := map[string]interface{}{
		"name":    name,
		"kind":    kind,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSemanticSearch handles the semantic_search tool invocation
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", 10)
	if topK < 1 || topK > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	diversity := getFloatDefault(args, "diversity", index.DefaultDiversity)
	if diversity < 0 || diversity > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "diversity must be between 0 and 1", map[string]interface{}{
			"param": "diversity",
			"value": diversity,
		})
	}

	rc, err := s.repoFor(path, index.Config{}, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	vector, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to embed query", map[string]interface{}{
			"error":    err.Error(),
			"provider": s.provider.Name(),
		})
	}

	scored, err := rc.idx.SemanticSearch(ctx, vector, topK, diversity)
	var dimErr *types.DimensionMismatchError
	if errors.As(err, &dimErr) {
		return nil, newMCPError(ErrorCodeStaleIndex, "index vectors do not match provider dimension, re-index required", map[string]interface{}{
			"expected": dimErr.Expected,
			"actual":   dimErr.Actual,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "semantic search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(scored))
	for rank, su := range scored {
		entry := unitResponse(su.Unit)
		entry["rank"] = rank + 1
		entry["score"] = su.Score
		results = append(results, entry)
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBuildContext handles the build_context tool invocation
func (s *Server) handleBuildContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	target, ok := args["target"].(string)
	if !ok || target == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "target parameter is required", map[string]interface{}{
			"param":  "target",
			"reason": "missing or empty",
		})
	}

	mode := getStringDefault(args, "mode", "function")
	if mode != "function" && mode != "theme" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{"function", "theme"},
		})
	}

	maxTokens := getIntDefault(args, "max_tokens", contextbuilder.DefaultMaxTokens)
	if maxTokens < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_tokens must be positive", map[string]interface{}{
			"param": "max_tokens",
			"value": maxTokens,
		})
	}

	opts := contextbuilder.Options{
		MaxTokens:           maxTokens,
		IncludeDependencies: getBoolDefault(args, "include_dependencies", false),
		IncludeDocs:         getBoolDefault(args, "include_docs", false),
		IncludeTests:        getBoolDefault(args, "include_tests", false),
		History:             getStringSlice(args, "history"),
	}

	rc, err := s.repoFor(path, index.Config{}, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var retrieved *types.RetrievalContext
	if mode == "theme" {
		retrieved, err = rc.builder.BuildThemeContext(ctx, target, opts)
	} else {
		retrieved, err = rc.builder.BuildFunctionContext(ctx, target, opts)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "context assembly failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"target":      target,
		"mode":        mode,
		"content":     retrieved.Content,
		"token_count": retrieved.TokenCount,
		"max_tokens":  maxTokens,
		"sources":     retrieved.Sources,
		"truncated":   retrieved.Truncated,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	rc, err := s.repoFor(path, index.Config{}, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := rc.idx.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if status.TotalFiles == 0 && status.TotalUnits == 0 {
		response := map[string]interface{}{
			"indexed": false,
			"path":    rc.idx.RepoRoot(),
			"message": "Repository not indexed. Use index_repository tool to index it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	entries, totalBytes, err := rc.cache.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get cache stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": true,
		"repository": map[string]interface{}{
			"path":            status.RootPath,
			"repo_key":        status.RepoKey,
			"last_indexed_at": status.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"total_files":    status.TotalFiles,
			"total_units":    status.TotalUnits,
			"embedded_units": status.EmbeddedUnits,
		},
		"cache": map[string]interface{}{
			"entries":     entries,
			"total_bytes": totalBytes,
			"max_bytes":   rc.cache.MaxBytes(),
		},
		"embedder": map[string]interface{}{
			"provider":  s.provider.Name(),
			"dimension": s.provider.Dimension(),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearIndex handles the clear_index tool invocation
func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	rc, err := s.repoFor(path, index.Config{}, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Deleting the repo row cascades to files, units, and cache entries.
	if err := rc.idx.ClearCache(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear index", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"cleared": true,
		"path":    rc.idx.RepoRoot(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCacheStats handles the cache_stats tool invocation
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	rc, err := s.repoFor(path, index.Config{}, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open repository", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entries, totalBytes, err := rc.cache.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get cache stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"entries":     entries,
		"total_bytes": totalBytes,
		"max_bytes":   rc.cache.MaxBytes(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// requirePath extracts and validates the path argument shared by every tool
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeRepoNotFound, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

// unitResponse flattens an embeddable unit for tool output
func unitResponse(unit *types.EmbeddableUnit) map[string]interface{} {
	return map[string]interface{}{
		"id":         unit.ID,
		"kind":       string(unit.Kind),
		"symbol":     unit.Metadata.SymbolName,
		"file":       unit.Source,
		"start_line": unit.StartLine,
		"end_line":   unit.EndLine,
		"language":   unit.Metadata.Language,
		"summary":    unit.Summary,
		"embedded":   unit.Embedded(),
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, tolerating the
// JSON decoder's []interface{} representation
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		if vals, ok := args[key].([]string); ok {
			return vals
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
