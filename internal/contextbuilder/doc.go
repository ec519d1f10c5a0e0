// Package contextbuilder assembles token-bounded retrieval contexts
// from the index for downstream AI consumers.
//
// A context is built fresh per query and never persisted. The token
// budget splits across fixed category allocations, 60% code, 20%
// documentation, 20% conversation history by default:
//
//	builder := contextbuilder.New(idx, provider)
//	rc, err := builder.BuildFunctionContext(ctx, "authenticate", contextbuilder.Options{
//	    MaxTokens:           4000,
//	    IncludeDependencies: true,
//	})
//
// Within each category, candidates are appended in descending relevance
// order. A candidate that would overflow its allowance is truncated at a
// line boundary when the category is still empty, otherwise omitted;
// content is never cut mid-line. RetrievalContext.Truncated reports that
// some category hit its limit with candidates remaining.
//
// Token counts use a deterministic estimate, content length divided by
// four. The estimated count of the assembled content never exceeds
// MaxTokens.
package contextbuilder
