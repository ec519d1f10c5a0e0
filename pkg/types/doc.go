// Package types provides shared type definitions for repoctx.
//
// This package defines the domain types used across components: embeddable
// units, parsed-file shapes produced by language collaborators, retrieval
// contexts, and cross-package structured errors.
//
// # Core Types
//
// EmbeddableUnit is the smallest indexed artifact (file, function, class,
// or symbol) with an optional embedding vector:
//
//	unit := &types.EmbeddableUnit{
//	    ID:     "function:internal/auth/auth.go:Authenticate",
//	    Kind:   types.UnitFunction,
//	    Source: "internal/auth/auth.go",
//	    Metadata: types.UnitMetadata{
//	        SymbolName: "Authenticate",
//	        Language:   "go",
//	    },
//	}
//
// ParsedFile is the uniform shape every language collaborator produces, so
// the index never special-cases a language:
//
//	parsed := &types.ParsedFile{
//	    Path:      "src/auth.ts",
//	    Language:  "typescript",
//	    Functions: []types.ParsedFunction{{Name: "authenticate"}},
//	}
//
// RetrievalContext is the final token-bounded blob assembled for a
// downstream AI consumer. Its Sources field lists the unit IDs that were
// actually included, in order.
//
// # Errors
//
// DimensionMismatchError is returned when vectors of different lengths are
// compared. Callers treat it as an index-staleness signal requiring an
// explicit rebuild decision.
package types
