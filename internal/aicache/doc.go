// Package aicache persists AI-derived artifacts keyed to the exact file
// contents they were computed from.
//
// Every entry records (file path, content hash) pairs at write time. A
// later read recomputes the hashes and returns a hit only while every
// recorded hash matches; a changed or missing dependency purges the entry
// and misses. Freshness is content-based, not mtime-based, so reverting a
// file to its original bytes restores the hit.
//
//	cache := aicache.New(st, aicache.Config{
//	    RepoKey:  repoKey,
//	    RepoRoot: root,
//	})
//
//	value, ok, err := cache.Get(ctx, "explain:function:src/auth.ts:authenticate", "openai", nil)
//	if err != nil || !ok {
//	    value = callProvider()
//	    _ = cache.Set(ctx, "explain:function:src/auth.ts:authenticate", "openai", value,
//	        []string{"src/auth.ts"})
//	}
//
// Values are opaque text; no shape is assumed. Entries are scoped by
// provider name so outputs from different providers never conflate.
//
// Total size is bounded (100 MiB by default). When a write pushes the
// total over budget, least-recently-used entries are evicted until it
// fits, with ties broken by insertion order.
package aicache
