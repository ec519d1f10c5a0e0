package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/repoctx/repoctx/internal/vectormath"
	"github.com/repoctx/repoctx/pkg/types"
)

// Store defines the interface for persisting the index and AI result cache
type Store interface {
	// Repo operations
	CreateRepo(ctx context.Context, repo *Repo) error
	GetRepo(ctx context.Context, repoKey string) (*Repo, error)
	UpdateRepo(ctx context.Context, repo *Repo) error
	DeleteRepo(ctx context.Context, repoID int64) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, repoID int64, filePath string) (*File, error)
	ListFiles(ctx context.Context, repoID int64) ([]*File, error)
	DeleteFile(ctx context.Context, fileID int64) error

	// Unit operations
	UpsertUnit(ctx context.Context, unit *Unit) error
	ListUnitsByFile(ctx context.Context, fileID int64) ([]*Unit, error)
	ListUnits(ctx context.Context, repoID int64) ([]*Unit, error)
	DeleteUnitsByFile(ctx context.Context, fileID int64) error

	// Cache operations
	GetCacheEntry(ctx context.Context, repoID int64, provider, key string) (*CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry *CacheEntry, deps []CacheDep) error
	TouchCacheEntry(ctx context.Context, entryID int64, accessedAt time.Time) error
	DeleteCacheEntry(ctx context.Context, entryID int64) error
	ListCacheDeps(ctx context.Context, entryID int64) ([]CacheDep, error)
	CacheUsage(ctx context.Context, repoID int64) (entries int, totalBytes int64, err error)
	ListCacheEntriesLRU(ctx context.Context, repoID int64) ([]*CacheEntry, error)
	ClearCacheEntries(ctx context.Context, repoID int64) error

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Store // Embed Store interface for transaction operations
}

// Repo represents an indexed repository root
type Repo struct {
	ID            int64
	RepoKey       string // Stable identity derived from the root path
	RootPath      string
	TotalFiles    int
	TotalUnits    int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID            int64
	RepoID        int64
	FilePath      string // Relative to repo root
	Language      string
	ContentHash   string // SHA-256 hex
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Unit is the persisted row shape of an embeddable unit
type Unit struct {
	ID           int64
	RepoID       int64
	FileID       int64
	UnitID       string
	Kind         string
	SymbolName   string
	FilePath     string
	StartLine    int
	EndLine      int
	Content      string
	Summary      string
	ContentHash  string
	Vector       []byte // Serialized float32 array, nil when un-embedded
	Dimension    int
	Language     string
	Complexity   int
	Dependencies string // JSON-encoded []string
	Exports      string // JSON-encoded []string
	Tags         string // JSON-encoded []string
	LastModified time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CacheEntry is a persisted AI-derived artifact
type CacheEntry struct {
	ID             int64
	RepoID         int64
	Provider       string
	Key            string
	Value          string
	SizeBytes      int64
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// CacheDep records one (file path, content hash) pair a cache entry was
// derived from, captured at write time
type CacheDep struct {
	ID          int64
	EntryID     int64
	FilePath    string
	ContentHash string
}

// FromUnit converts a domain unit into its persisted shape
func FromUnit(u *types.EmbeddableUnit, repoID, fileID int64) (*Unit, error) {
	deps, err := encodeStrings(u.Metadata.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("encode dependencies: %w", err)
	}
	exports, err := encodeStrings(u.Metadata.Exports)
	if err != nil {
		return nil, fmt.Errorf("encode exports: %w", err)
	}
	tags, err := encodeStrings(u.Metadata.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	rec := &Unit{
		RepoID:       repoID,
		FileID:       fileID,
		UnitID:       u.ID,
		Kind:         string(u.Kind),
		SymbolName:   u.Metadata.SymbolName,
		FilePath:     u.Source,
		StartLine:    u.StartLine,
		EndLine:      u.EndLine,
		Content:      u.Content,
		Summary:      u.Summary,
		ContentHash:  u.Hash,
		Language:     u.Metadata.Language,
		Complexity:   u.Metadata.Complexity,
		Dependencies: deps,
		Exports:      exports,
		Tags:         tags,
		LastModified: u.Metadata.LastModified,
	}
	if u.Embedded() {
		rec.Vector = vectormath.SerializeVector(u.Vector)
		rec.Dimension = len(u.Vector)
	}
	return rec, nil
}

// ToUnit converts a persisted row back into the domain shape
func (r *Unit) ToUnit() (*types.EmbeddableUnit, error) {
	deps, err := decodeStrings(r.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("decode dependencies for %s: %w", r.UnitID, err)
	}
	exports, err := decodeStrings(r.Exports)
	if err != nil {
		return nil, fmt.Errorf("decode exports for %s: %w", r.UnitID, err)
	}
	tags, err := decodeStrings(r.Tags)
	if err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", r.UnitID, err)
	}

	return &types.EmbeddableUnit{
		ID:        r.UnitID,
		Kind:      types.UnitKind(r.Kind),
		Source:    r.FilePath,
		StartLine: r.StartLine,
		EndLine:   r.EndLine,
		Content:   r.Content,
		Summary:   r.Summary,
		Vector:    vectormath.DeserializeVector(r.Vector),
		Hash:      r.ContentHash,
		Metadata: types.UnitMetadata{
			SymbolName:   r.SymbolName,
			Language:     r.Language,
			Complexity:   r.Complexity,
			Dependencies: deps,
			Exports:      exports,
			Tags:         tags,
			LastModified: r.LastModified,
		},
	}, nil
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil, err
	}
	return values, nil
}
