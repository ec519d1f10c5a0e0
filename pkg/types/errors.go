package types

import "fmt"

// DimensionMismatchError signals that two vectors of different lengths were
// compared. Across a whole index this indicates stored vectors from a
// different provider or model version: the caller must decide on an explicit
// rebuild rather than have the mismatch silently discarded.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
