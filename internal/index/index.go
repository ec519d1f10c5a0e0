package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/repoctx/repoctx/internal/embedder"
	"github.com/repoctx/repoctx/internal/parser"
	"github.com/repoctx/repoctx/internal/store"
	"github.com/repoctx/repoctx/internal/vectormath"
	"github.com/repoctx/repoctx/pkg/types"
)

// ErrBuildInProgress is returned when a second build starts for a root
// that is already being indexed
var ErrBuildInProgress = errors.New("index build already in progress for this repository")

// Directories never worth indexing
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Config contains configuration for an Index
type Config struct {
	RepoRoot         string
	IgnorePatterns   []string // doublestar globs matched against repo-relative paths
	Workers          int      // Concurrent file workers (default: runtime.NumCPU())
	MaxFileSizeBytes int64    // Files larger than this are skipped (default: 1 MiB)
}

// Statistics describes one build run
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	UnitsCreated  int
	UnitsReused   int
	EmbedCalls    int
	EmbedFailures int
	Duration      time.Duration
	Warnings      []string
}

// Index maintains the authoritative set of embeddable units for one
// repository root
type Index struct {
	store    store.Store
	provider embedder.Provider
	registry *parser.Registry
	config   Config
	repoKey  string

	mu     sync.Mutex
	repoID int64
}

// New creates an Index over the given store and provider
func New(st store.Store, provider embedder.Provider, config Config) (*Index, error) {
	if config.RepoRoot == "" {
		return nil, errors.New("repo root is required")
	}
	absRoot, err := filepath.Abs(config.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	config.RepoRoot = absRoot
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 1024 * 1024
	}

	return &Index{
		store:    st,
		provider: provider,
		registry: parser.NewRegistry(),
		config:   config,
		repoKey:  vectormath.HashContent(absRoot),
	}, nil
}

// RepoKey returns the stable identity derived from the repo root
func (idx *Index) RepoKey() string {
	return idx.repoKey
}

// RepoRoot returns the resolved absolute repository root
func (idx *Index) RepoRoot() string {
	return idx.config.RepoRoot
}

func (idx *Index) resolveRepo(ctx context.Context) (*store.Repo, error) {
	repo, err := idx.store.GetRepo(ctx, idx.repoKey)
	if err == nil {
		idx.mu.Lock()
		idx.repoID = repo.ID
		idx.mu.Unlock()
		return repo, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	repo = &store.Repo{
		RepoKey:      idx.repoKey,
		RootPath:     idx.config.RepoRoot,
		IndexVersion: store.CurrentSchemaVersion,
	}
	if err := idx.store.CreateRepo(ctx, repo); err != nil {
		return nil, fmt.Errorf("create repo: %w", err)
	}
	idx.mu.Lock()
	idx.repoID = repo.ID
	idx.mu.Unlock()
	return repo, nil
}

// BuildIndex walks the source tree and brings the persisted index up to
// date. Unchanged files are skipped whole; unchanged units within changed
// files keep their stored vectors and are never re-embedded. The build
// checkpoints after every file, so cancellation leaves a consistent
// partial index.
func (idx *Index) BuildIndex(ctx context.Context) (*Statistics, error) {
	lock := lockForRepo(idx.repoKey)
	if !lock.TryAcquire() {
		return nil, ErrBuildInProgress
	}
	defer lock.Release()

	startTime := time.Now()
	stats := &Statistics{Warnings: make([]string, 0)}

	repo, err := idx.resolveRepo(ctx)
	if err != nil {
		return nil, err
	}

	files, err := idx.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	if err := idx.indexFiles(ctx, repo, files, stats); err != nil {
		stats.Duration = time.Since(startTime)
		return stats, err
	}

	if err := idx.removeDeletedFiles(ctx, repo, files); err != nil {
		return nil, err
	}

	if err := idx.updateRepoStats(ctx, repo); err != nil {
		return nil, fmt.Errorf("update repo stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// discoverFiles finds all parseable files under the root
func (idx *Index) discoverFiles() ([]string, error) {
	var files []string

	err := filepath.Walk(idx.config.RepoRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if path != idx.config.RepoRoot && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if skippedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if !idx.registry.Supported(path) {
			return nil
		}
		if info.Size() > idx.config.MaxFileSizeBytes {
			return nil
		}

		relPath, err := filepath.Rel(idx.config.RepoRoot, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		for _, pattern := range idx.config.IgnorePatterns {
			matched, err := doublestar.Match(pattern, relPath)
			if err != nil {
				return fmt.Errorf("ignore pattern %q: %w", pattern, err)
			}
			if matched {
				return nil
			}
		}

		files = append(files, relPath)
		return nil
	})

	return files, err
}

// counters aggregates progress across workers
type counters struct {
	indexed       atomic.Int32
	skipped       atomic.Int32
	failed        atomic.Int32
	unitsCreated  atomic.Int32
	unitsReused   atomic.Int32
	embedCalls    atomic.Int32
	embedFailures atomic.Int32
}

// indexFiles processes files with a bounded worker pool. Per-file
// failures are recorded as warnings and never abort the build; only
// cancellation propagates.
func (idx *Index) indexFiles(ctx context.Context, repo *store.Repo, files []string, stats *Statistics) error {
	semaphore := make(chan struct{}, idx.config.Workers)
	var c counters
	var warnMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			err := idx.indexFile(gctx, repo, relPath, &c, &warnMu, stats)
			if err == nil {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			c.failed.Add(1)
			warnMu.Lock()
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("%s: %v", relPath, err))
			warnMu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	stats.FilesIndexed = int(c.indexed.Load())
	stats.FilesSkipped = int(c.skipped.Load())
	stats.FilesFailed = int(c.failed.Load())
	stats.UnitsCreated = int(c.unitsCreated.Load())
	stats.UnitsReused = int(c.unitsReused.Load())
	stats.EmbedCalls = int(c.embedCalls.Load())
	stats.EmbedFailures = int(c.embedFailures.Load())
	return err
}

// indexFile runs the per-file pipeline: hash, skip-if-unchanged, parse,
// derive units, reuse or embed, persist in one transaction
func (idx *Index) indexFile(ctx context.Context, repo *store.Repo, relPath string, c *counters, warnMu *sync.Mutex, stats *Statistics) error {
	absPath := filepath.Join(idx.config.RepoRoot, filepath.FromSlash(relPath))

	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}
	hash := vectormath.HashContent(string(content))

	existing, err := idx.store.GetFile(ctx, repo.ID, relPath)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if existing != nil && existing.ContentHash == hash {
		// File unchanged: every owned unit is reused verbatim
		c.skipped.Add(1)
		return nil
	}

	lang, ok := idx.registry.ForPath(relPath)
	if !ok {
		return fmt.Errorf("no parser for %s", relPath)
	}
	parsed, err := lang.Parse(relPath, content)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if parsed.HasErrors() {
		warnMu.Lock()
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("%s: %s", relPath, parsed.Errors[0].Message))
		warnMu.Unlock()
	}

	units := deriveUnits(relPath, string(content), parsed, info.ModTime())

	// Load previously stored units so unchanged ones keep their vectors
	stored := make(map[string]*store.Unit)
	if existing != nil {
		rows, err := idx.store.ListUnitsByFile(ctx, existing.ID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			stored[row.UnitID] = row
		}
	}

	var toEmbed []*types.EmbeddableUnit
	reused := 0
	for _, unit := range units {
		if row, ok := stored[unit.ID]; ok && row.ContentHash == unit.Hash && len(row.Vector) > 0 {
			unit.Vector = vectormath.DeserializeVector(row.Vector)
			reused++
			continue
		}
		toEmbed = append(toEmbed, unit)
	}

	if err := idx.embedUnits(ctx, toEmbed, c, warnMu, stats); err != nil {
		return err
	}

	if err := idx.persistFile(ctx, repo, relPath, hash, info, parsed, existing, units); err != nil {
		return err
	}

	c.indexed.Add(1)
	c.unitsCreated.Add(int32(len(units) - reused))
	c.unitsReused.Add(int32(reused))
	return nil
}

// embedUnits requests vectors for new or changed units in batches.
// Provider failure after retries leaves units un-embedded; the build
// continues and the failure is recorded.
func (idx *Index) embedUnits(ctx context.Context, units []*types.EmbeddableUnit, c *counters, warnMu *sync.Mutex, stats *Statistics) error {
	for start := 0; start < len(units); start += embedder.DefaultBatchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		end := min(start+embedder.DefaultBatchSize, len(units))
		batch := units[start:end]

		texts := make([]string, len(batch))
		for i, unit := range batch {
			texts[i] = unit.Content
		}

		c.embedCalls.Add(1)
		vectors, err := idx.provider.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// One bad text fails the whole batch; retry its members
			// individually so the rest still get vectors
			if err := idx.embedSingly(ctx, batch, c, warnMu, stats); err != nil {
				return err
			}
			continue
		}
		for i, unit := range batch {
			unit.Vector = vectors[i]
		}
	}
	return nil
}

// embedSingly embeds units one at a time, recording a failure per unit
// instead of per batch
func (idx *Index) embedSingly(ctx context.Context, units []*types.EmbeddableUnit, c *counters, warnMu *sync.Mutex, stats *Statistics) error {
	for _, unit := range units {
		c.embedCalls.Add(1)
		vector, err := idx.provider.Embed(ctx, unit.Content)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.embedFailures.Add(1)
			warnMu.Lock()
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("embed failed for %s: %v", unit.ID, err))
			warnMu.Unlock()
			continue
		}
		unit.Vector = vector
	}
	return nil
}

// persistFile writes the file record and its fresh unit set in one
// transaction, replacing any previous ownership
func (idx *Index) persistFile(ctx context.Context, repo *store.Repo, relPath, hash string, info os.FileInfo, parsed *types.ParsedFile, existing *store.File, units []*types.EmbeddableUnit) error {
	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	file := &store.File{
		RepoID:      repo.ID,
		FilePath:    relPath,
		Language:    parsed.Language,
		ContentHash: hash,
		ModTime:     info.ModTime(),
		SizeBytes:   info.Size(),
	}
	if parsed.HasErrors() {
		msg := parsed.Errors[0].Message
		file.ParseError = &msg
	}
	if err := tx.UpsertFile(ctx, file); err != nil {
		return err
	}

	if existing != nil {
		if err := tx.DeleteUnitsByFile(ctx, existing.ID); err != nil {
			return fmt.Errorf("delete old units: %w", err)
		}
	}

	for _, unit := range units {
		row, err := store.FromUnit(unit, repo.ID, file.ID)
		if err != nil {
			return err
		}
		if err := tx.UpsertUnit(ctx, row); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// removeDeletedFiles drops index records for files no longer on disk
func (idx *Index) removeDeletedFiles(ctx context.Context, repo *store.Repo, currentFiles []string) error {
	current := make(map[string]bool, len(currentFiles))
	for _, f := range currentFiles {
		current[f] = true
	}

	storedFiles, err := idx.store.ListFiles(ctx, repo.ID)
	if err != nil {
		return err
	}
	for _, file := range storedFiles {
		if !current[file.FilePath] {
			if err := idx.store.DeleteFile(ctx, file.ID); err != nil {
				return fmt.Errorf("remove deleted file %s: %w", file.FilePath, err)
			}
		}
	}
	return nil
}

func (idx *Index) updateRepoStats(ctx context.Context, repo *store.Repo) error {
	files, err := idx.store.ListFiles(ctx, repo.ID)
	if err != nil {
		return err
	}
	units, err := idx.store.ListUnits(ctx, repo.ID)
	if err != nil {
		return err
	}

	repo.TotalFiles = len(files)
	repo.TotalUnits = len(units)
	repo.LastIndexedAt = time.Now()
	return idx.store.UpdateRepo(ctx, repo)
}

// ClearCache discards the persisted index for this repository, forcing a
// full rebuild on the next BuildIndex
func (idx *Index) ClearCache(ctx context.Context) error {
	repo, err := idx.store.GetRepo(ctx, idx.repoKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := idx.store.DeleteRepo(ctx, repo.ID); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	idx.mu.Lock()
	idx.repoID = 0
	idx.mu.Unlock()
	return nil
}

// Status summarizes the persisted index state
type Status struct {
	RepoKey       string
	RootPath      string
	TotalFiles    int
	TotalUnits    int
	EmbeddedUnits int
	LastIndexedAt time.Time
}

// GetStatus reports counts for the persisted index. A never-built repo
// returns zero counts, not an error.
func (idx *Index) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{RepoKey: idx.repoKey, RootPath: idx.config.RepoRoot}

	repo, err := idx.store.GetRepo(ctx, idx.repoKey)
	if errors.Is(err, store.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	units, err := idx.store.ListUnits(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	embedded := 0
	for _, unit := range units {
		if len(unit.Vector) > 0 {
			embedded++
		}
	}

	status.TotalFiles = repo.TotalFiles
	status.TotalUnits = len(units)
	status.EmbeddedUnits = embedded
	status.LastIndexedAt = repo.LastIndexedAt
	return status, nil
}

// deriveUnits turns one parsed file into its embeddable units: a file
// unit plus one unit per function and class
func deriveUnits(relPath, content string, parsed *types.ParsedFile, modTime time.Time) []*types.EmbeddableUnit {
	lines := strings.Split(content, "\n")
	units := make([]*types.EmbeddableUnit, 0, 1+len(parsed.Functions)+len(parsed.Classes))

	fileUnit := &types.EmbeddableUnit{
		ID:        vectormath.DeriveUnitID(types.UnitFile, relPath, ""),
		Kind:      types.UnitFile,
		Source:    relPath,
		StartLine: 1,
		EndLine:   len(lines),
		Content:   content,
		Hash:      vectormath.HashContent(content),
		Metadata: types.UnitMetadata{
			Language:     parsed.Language,
			Dependencies: parsed.Imports,
			Exports:      parsed.Exports,
			LastModified: modTime,
		},
	}
	units = append(units, fileUnit)

	for _, fn := range parsed.Functions {
		body := sliceLines(lines, fn.StartLine, fn.EndLine)
		units = append(units, &types.EmbeddableUnit{
			ID:        vectormath.DeriveUnitID(types.UnitFunction, relPath, fn.Name),
			Kind:      types.UnitFunction,
			Source:    relPath,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			Content:   body,
			Summary:   summarize(fn.Doc, fn.Signature),
			Hash:      vectormath.HashContent(body),
			Metadata: types.UnitMetadata{
				SymbolName:   fn.Name,
				Language:     parsed.Language,
				Complexity:   fn.Complexity,
				Dependencies: fn.Calls,
				LastModified: modTime,
			},
		})
	}

	for _, cls := range parsed.Classes {
		body := sliceLines(lines, cls.StartLine, cls.EndLine)
		units = append(units, &types.EmbeddableUnit{
			ID:        vectormath.DeriveUnitID(types.UnitClass, relPath, cls.Name),
			Kind:      types.UnitClass,
			Source:    relPath,
			StartLine: cls.StartLine,
			EndLine:   cls.EndLine,
			Content:   body,
			Summary:   summarize(cls.Doc, cls.Name),
			Hash:      vectormath.HashContent(body),
			Metadata: types.UnitMetadata{
				SymbolName:   cls.Name,
				Language:     parsed.Language,
				Dependencies: cls.Methods,
				LastModified: modTime,
			},
		})
	}

	return units
}

func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// summarize prefers the first doc line, falling back to the signature
func summarize(doc, fallback string) string {
	doc = strings.TrimSpace(doc)
	if doc != "" {
		if i := strings.IndexByte(doc, '\n'); i >= 0 {
			doc = doc[:i]
		}
		return strings.TrimSpace(doc)
	}
	return fallback
}
