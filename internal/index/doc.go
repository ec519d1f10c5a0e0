// Package index maintains the set of embeddable units for a repository
// root and keeps it consistent under incremental rebuilds.
//
// A build walks the tree, parses each eligible file through the parser
// registry, and derives one unit per file plus one per function and
// class. Unit identity is deterministic (kind, path, symbol name), so a
// rebuild can compare content hashes and reuse stored vectors for
// anything unchanged: a rebuild with zero file changes issues zero
// embedding calls.
//
//	idx, err := index.New(st, provider, index.Config{RepoRoot: root})
//	if err != nil {
//	    return err
//	}
//	stats, err := idx.BuildIndex(ctx)
//
// Files are processed by a bounded worker pool and each file commits in
// its own transaction, so a cancelled build leaves a reusable partial
// index. Parse failures and embedding failures are warnings, never
// build-fatal. Two concurrent builds for the same root are rejected with
// ErrBuildInProgress.
//
// Queries:
//
//	units, _ := idx.SearchFunctions(ctx, "authenticate")
//	results, _ := idx.SemanticSearch(ctx, queryVector, 10, 0)
//
// Name search degrades from exact match to case-insensitive substring.
// Semantic search scans all embedded units with cosine similarity and
// applies a per-file diversity cap so one file cannot dominate results.
package index
