package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexRepositoryTool returns the tool definition for index_repository
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Index a source repository into embeddable units for semantic search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
				"ignore_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns for repo-relative paths to skip (e.g., '**/*.min.js')",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Concurrent file workers (defaults to CPU count)",
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Find indexed functions or classes by exact or substring name match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed repository",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name to look for",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Symbol kind to search",
					"enum":        []string{"function", "class"},
					"default":     "function",
				},
			},
			Required: []string{"path", "name"},
		},
	}
}

// semanticSearchTool returns the tool definition for semantic_search
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Search indexed units by embedding similarity to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed repository",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"diversity": map[string]interface{}{
					"type":        "number",
					"description": "Per-file result cap as a fraction of top_k (0-1)",
					"default":     0.3,
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// buildContextTool returns the tool definition for build_context
func buildContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_context",
		Description: "Assemble a token-bounded retrieval context for a function or theme",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed repository",
				},
				"target": map[string]interface{}{
					"type":        "string",
					"description": "Function name or theme query to build context around",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Context mode: exact function name or semantic theme",
					"enum":        []string{"function", "theme"},
					"default":     "function",
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget for the assembled context",
					"default":     4000,
					"minimum":     1,
				},
				"include_dependencies": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include units the target calls or references",
					"default":     false,
				},
				"include_docs": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include documentation units",
					"default":     false,
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include units from test files",
					"default":     false,
				},
				"history": map[string]interface{}{
					"type":        "array",
					"description": "Conversation history snippets to weave into the context",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"path", "target"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index and cache statistics for a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// clearIndexTool returns the tool definition for clear_index
func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_index",
		Description: "Delete all indexed data and cached artifacts for a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report entry count and byte usage of the AI artifact cache",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
			},
			Required: []string{"path"},
		},
	}
}
