package types

// RetrievalContext is the assembled, token-bounded text handed to a
// downstream AI consumer. Built fresh per query, never persisted.
type RetrievalContext struct {
	Content    string
	TokenCount int      // Estimate, consistent with the builder's heuristic
	Sources    []string // Unit IDs actually included, in append order
	Truncated  bool     // True when any category hit its budget early
}
