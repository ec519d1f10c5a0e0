package types

import (
	"errors"
	"time"
)

// UnitKind classifies an embeddable unit
type UnitKind string

const (
	UnitFile     UnitKind = "file"
	UnitFunction UnitKind = "function"
	UnitClass    UnitKind = "class"
	UnitSymbol   UnitKind = "symbol"
)

// UnitMetadata carries descriptive attributes of an embeddable unit
type UnitMetadata struct {
	SymbolName   string
	Language     string
	Complexity   int
	Dependencies []string // Symbol names this unit calls or references
	Exports      []string
	Tags         []string
	LastModified time.Time
}

// EmbeddableUnit is the smallest indexed artifact: a file, function, class,
// or symbol with an optional embedding vector.
//
// ID is a pure function of (Kind, Source, Metadata.SymbolName) and is stable
// across re-indexing runs as long as the unit keeps its location and name.
// Hash is a pure function of Content and drives change detection: a unit
// whose recomputed hash matches the stored one keeps its vector verbatim.
type EmbeddableUnit struct {
	ID        string
	Kind      UnitKind
	Source    string // Repo-relative path
	StartLine int
	EndLine   int
	Content   string
	Summary   string
	Vector    []float32 // nil until embedded
	Hash      string    // SHA-256 hex of Content
	Metadata  UnitMetadata
}

// Embedded reports whether the unit carries a vector and can participate in
// semantic search.
func (u *EmbeddableUnit) Embedded() bool {
	return len(u.Vector) > 0
}

// Validate checks structural invariants of a unit before persistence
func (u *EmbeddableUnit) Validate() error {
	if u.ID == "" {
		return errors.New("unit ID is required")
	}
	if u.Source == "" {
		return errors.New("unit source path is required")
	}
	if u.Hash == "" {
		return errors.New("unit content hash must be computed")
	}
	switch u.Kind {
	case UnitFile, UnitFunction, UnitClass, UnitSymbol:
	default:
		return errors.New("invalid unit kind")
	}
	if u.Kind != UnitFile && u.Metadata.SymbolName == "" {
		return errors.New("symbol name is required for non-file units")
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate indexed state
func (u *EmbeddableUnit) Clone() *EmbeddableUnit {
	c := *u
	if u.Vector != nil {
		c.Vector = make([]float32, len(u.Vector))
		copy(c.Vector, u.Vector)
	}
	c.Metadata.Dependencies = append([]string(nil), u.Metadata.Dependencies...)
	c.Metadata.Exports = append([]string(nil), u.Metadata.Exports...)
	c.Metadata.Tags = append([]string(nil), u.Metadata.Tags...)
	return &c
}

// ScoredUnit pairs a unit with its similarity score in search results
type ScoredUnit struct {
	Unit  *EmbeddableUnit
	Score float64
}
