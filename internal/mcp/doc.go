// Package mcp implements the Model Context Protocol (MCP) server for repoctx.
//
// The server exposes seven tools to AI coding assistants over stdio
// (JSON-RPC 2.0, via github.com/mark3labs/mcp-go):
//
//   - index_repository: index a repository into embeddable units
//   - search_symbols: find functions or classes by name
//   - semantic_search: rank units by embedding similarity to a query
//   - build_context: assemble a token-bounded retrieval context
//   - get_status: report index and cache statistics
//   - clear_index: drop all indexed data for a repository
//   - cache_stats: report AI artifact cache usage
//
// One server process holds a single SQLite database and a single embedding
// provider; per-repository components (index, cache, context builder) are
// created lazily per root path and share both, so embedding cache hits carry
// across tools.
//
// Handlers return results as indented JSON text content. Failures surface
// as *MCPError with JSON-RPC error codes:
//
//   - -32602: invalid params (missing/invalid arguments)
//   - -32603: internal error (database, filesystem, provider)
//   - -32001: path is not a readable directory
//   - -32002: indexing already in progress
//   - -32003: repository not indexed
//   - -32004: empty query
//   - -32005: stored vectors do not match the provider dimension
//
// Stdout is reserved for the MCP wire; anything the server wants a human to
// see goes to stderr.
package mcp
