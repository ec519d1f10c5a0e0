package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, store: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStore) querier() querier {
	return s.db
}

// Repo operations

func (s *SQLiteStore) createRepoWithQuerier(ctx context.Context, q querier, repo *Repo) error {
	query := `
		INSERT INTO repos (repo_key, root_path, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, repo.RepoKey, repo.RootPath, repo.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create repo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	repo.ID = id
	repo.CreatedAt = now
	repo.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) CreateRepo(ctx context.Context, repo *Repo) error {
	return s.createRepoWithQuerier(ctx, s.querier(), repo)
}

func (s *SQLiteStore) getRepoWithQuerier(ctx context.Context, q querier, repoKey string) (*Repo, error) {
	query := `
		SELECT id, repo_key, root_path, total_files, total_units,
		       index_version, last_indexed_at, created_at, updated_at
		FROM repos
		WHERE repo_key = ?
	`
	var repo Repo
	var lastIndexedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, repoKey).Scan(
		&repo.ID, &repo.RepoKey, &repo.RootPath, &repo.TotalFiles, &repo.TotalUnits,
		&repo.IndexVersion, &lastIndexedAt, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		repo.LastIndexedAt = lastIndexedAt.Time
	}
	return &repo, nil
}

func (s *SQLiteStore) GetRepo(ctx context.Context, repoKey string) (*Repo, error) {
	return s.getRepoWithQuerier(ctx, s.querier(), repoKey)
}

func (s *SQLiteStore) updateRepoWithQuerier(ctx context.Context, q querier, repo *Repo) error {
	query := `
		UPDATE repos
		SET root_path = ?, total_files = ?, total_units = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		repo.RootPath, repo.TotalFiles, repo.TotalUnits,
		repo.LastIndexedAt, now, repo.ID)
	if err != nil {
		return fmt.Errorf("failed to update repo: %w", err)
	}
	repo.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateRepo(ctx context.Context, repo *Repo) error {
	return s.updateRepoWithQuerier(ctx, s.querier(), repo)
}

func (s *SQLiteStore) deleteRepoWithQuerier(ctx context.Context, q querier, repoID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM repos WHERE id = ?`, repoID)
	return err
}

func (s *SQLiteStore) DeleteRepo(ctx context.Context, repoID int64) error {
	return s.deleteRepoWithQuerier(ctx, s.querier(), repoID)
}

// File operations

func (s *SQLiteStore) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (repo_id, file_path, language, content_hash, mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, file_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.RepoID, file.FilePath, file.Language, file.ContentHash,
		file.ModTime, file.SizeBytes, file.ParseError, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

const fileColumns = `id, repo_id, file_path, language, content_hash, mod_time,
		       size_bytes, parse_error, last_indexed_at, created_at, updated_at`

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	var file File
	var parseError sql.NullString
	err := row.Scan(
		&file.ID, &file.RepoID, &file.FilePath, &file.Language,
		&file.ContentHash, &file.ModTime, &file.SizeBytes, &parseError,
		&file.LastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

func (s *SQLiteStore) getFileWithQuerier(ctx context.Context, q querier, repoID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE repo_id = ? AND file_path = ?`
	file, err := scanFile(q.QueryRowContext(ctx, query, repoID, filePath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, repoID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), repoID, filePath)
}

func (s *SQLiteStore) listFilesWithQuerier(ctx context.Context, q querier, repoID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE repo_id = ? ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) ListFiles(ctx context.Context, repoID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), repoID)
}

func (s *SQLiteStore) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

// Unit operations

func (s *SQLiteStore) upsertUnitWithQuerier(ctx context.Context, q querier, unit *Unit) error {
	query := `
		INSERT INTO units (
			repo_id, file_id, unit_id, kind, symbol_name, file_path,
			start_line, end_line, content, summary, content_hash,
			vector, dimension, language, complexity,
			dependencies, exports, tags, last_modified, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, unit_id) DO UPDATE SET
			file_id = excluded.file_id,
			kind = excluded.kind,
			symbol_name = excluded.symbol_name,
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			content = excluded.content,
			summary = excluded.summary,
			content_hash = excluded.content_hash,
			vector = excluded.vector,
			dimension = excluded.dimension,
			language = excluded.language,
			complexity = excluded.complexity,
			dependencies = excluded.dependencies,
			exports = excluded.exports,
			tags = excluded.tags,
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		unit.RepoID, unit.FileID, unit.UnitID, unit.Kind, unit.SymbolName, unit.FilePath,
		unit.StartLine, unit.EndLine, unit.Content, unit.Summary, unit.ContentHash,
		unit.Vector, unit.Dimension, unit.Language, unit.Complexity,
		unit.Dependencies, unit.Exports, unit.Tags, unit.LastModified, now, now).Scan(&unit.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert unit: %w", err)
	}
	unit.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpsertUnit(ctx context.Context, unit *Unit) error {
	return s.upsertUnitWithQuerier(ctx, s.querier(), unit)
}

const unitColumns = `id, repo_id, file_id, unit_id, kind, symbol_name, file_path,
		       start_line, end_line, content, summary, content_hash,
		       vector, dimension, language, complexity,
		       dependencies, exports, tags, last_modified, created_at, updated_at`

func scanUnit(row interface{ Scan(...interface{}) error }) (*Unit, error) {
	var unit Unit
	var symbolName, summary, language, deps, exports, tags sql.NullString
	var vector []byte
	var lastModified sql.NullTime
	err := row.Scan(
		&unit.ID, &unit.RepoID, &unit.FileID, &unit.UnitID, &unit.Kind, &symbolName,
		&unit.FilePath, &unit.StartLine, &unit.EndLine, &unit.Content, &summary,
		&unit.ContentHash, &vector, &unit.Dimension, &language, &unit.Complexity,
		&deps, &exports, &tags, &lastModified, &unit.CreatedAt, &unit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	unit.SymbolName = symbolName.String
	unit.Summary = summary.String
	unit.Language = language.String
	unit.Dependencies = deps.String
	unit.Exports = exports.String
	unit.Tags = tags.String
	unit.Vector = vector
	if lastModified.Valid {
		unit.LastModified = lastModified.Time
	}
	return &unit, nil
}

func (s *SQLiteStore) listUnitsByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE file_id = ? ORDER BY start_line`
	return s.queryUnits(ctx, q, query, fileID)
}

func (s *SQLiteStore) ListUnitsByFile(ctx context.Context, fileID int64) ([]*Unit, error) {
	return s.listUnitsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStore) listUnitsWithQuerier(ctx context.Context, q querier, repoID int64) ([]*Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE repo_id = ? ORDER BY file_path, start_line`
	return s.queryUnits(ctx, q, query, repoID)
}

func (s *SQLiteStore) ListUnits(ctx context.Context, repoID int64) ([]*Unit, error) {
	return s.listUnitsWithQuerier(ctx, s.querier(), repoID)
}

func (s *SQLiteStore) queryUnits(ctx context.Context, q querier, query string, arg interface{}) ([]*Unit, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	units := make([]*Unit, 0)
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (s *SQLiteStore) deleteUnitsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM units WHERE file_id = ?`, fileID)
	return err
}

func (s *SQLiteStore) DeleteUnitsByFile(ctx context.Context, fileID int64) error {
	return s.deleteUnitsByFileWithQuerier(ctx, s.querier(), fileID)
}

// Cache operations

func (s *SQLiteStore) getCacheEntryWithQuerier(ctx context.Context, q querier, repoID int64, provider, key string) (*CacheEntry, error) {
	query := `
		SELECT id, repo_id, provider, cache_key, value, size_bytes, created_at, last_accessed_at
		FROM cache_entries
		WHERE repo_id = ? AND provider = ? AND cache_key = ?
	`
	var entry CacheEntry
	err := q.QueryRowContext(ctx, query, repoID, provider, key).Scan(
		&entry.ID, &entry.RepoID, &entry.Provider, &entry.Key,
		&entry.Value, &entry.SizeBytes, &entry.CreatedAt, &entry.LastAccessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, repoID int64, provider, key string) (*CacheEntry, error) {
	return s.getCacheEntryWithQuerier(ctx, s.querier(), repoID, provider, key)
}

func (s *SQLiteStore) putCacheEntryWithQuerier(ctx context.Context, q querier, entry *CacheEntry, deps []CacheDep) error {
	query := `
		INSERT INTO cache_entries (repo_id, provider, cache_key, value, size_bytes, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, provider, cache_key) DO UPDATE SET
			value = excluded.value,
			size_bytes = excluded.size_bytes,
			last_accessed_at = excluded.last_accessed_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		entry.RepoID, entry.Provider, entry.Key, entry.Value,
		entry.SizeBytes, now, now).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	entry.LastAccessedAt = now

	// Replace dependency rows wholesale: last write wins on the same key
	if _, err := q.ExecContext(ctx, `DELETE FROM cache_deps WHERE entry_id = ?`, entry.ID); err != nil {
		return fmt.Errorf("failed to clear cache deps: %w", err)
	}
	for _, dep := range deps {
		_, err := q.ExecContext(ctx,
			`INSERT INTO cache_deps (entry_id, file_path, content_hash) VALUES (?, ?, ?)`,
			entry.ID, dep.FilePath, dep.ContentHash)
		if err != nil {
			return fmt.Errorf("failed to insert cache dep: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) PutCacheEntry(ctx context.Context, entry *CacheEntry, deps []CacheDep) error {
	return s.putCacheEntryWithQuerier(ctx, s.querier(), entry, deps)
}

func (s *SQLiteStore) touchCacheEntryWithQuerier(ctx context.Context, q querier, entryID int64, accessedAt time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE cache_entries SET last_accessed_at = ? WHERE id = ?`, accessedAt, entryID)
	return err
}

func (s *SQLiteStore) TouchCacheEntry(ctx context.Context, entryID int64, accessedAt time.Time) error {
	return s.touchCacheEntryWithQuerier(ctx, s.querier(), entryID, accessedAt)
}

func (s *SQLiteStore) deleteCacheEntryWithQuerier(ctx context.Context, q querier, entryID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cache_entries WHERE id = ?`, entryID)
	return err
}

func (s *SQLiteStore) DeleteCacheEntry(ctx context.Context, entryID int64) error {
	return s.deleteCacheEntryWithQuerier(ctx, s.querier(), entryID)
}

func (s *SQLiteStore) listCacheDepsWithQuerier(ctx context.Context, q querier, entryID int64) ([]CacheDep, error) {
	query := `SELECT id, entry_id, file_path, content_hash FROM cache_deps WHERE entry_id = ? ORDER BY id`
	rows, err := q.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	deps := make([]CacheDep, 0)
	for rows.Next() {
		var dep CacheDep
		if err := rows.Scan(&dep.ID, &dep.EntryID, &dep.FilePath, &dep.ContentHash); err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

func (s *SQLiteStore) ListCacheDeps(ctx context.Context, entryID int64) ([]CacheDep, error) {
	return s.listCacheDepsWithQuerier(ctx, s.querier(), entryID)
}

func (s *SQLiteStore) cacheUsageWithQuerier(ctx context.Context, q querier, repoID int64) (int, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_entries WHERE repo_id = ?`
	var entries int
	var totalBytes int64
	err := q.QueryRowContext(ctx, query, repoID).Scan(&entries, &totalBytes)
	if err != nil {
		return 0, 0, err
	}
	return entries, totalBytes, nil
}

func (s *SQLiteStore) CacheUsage(ctx context.Context, repoID int64) (int, int64, error) {
	return s.cacheUsageWithQuerier(ctx, s.querier(), repoID)
}

// listCacheEntriesLRUWithQuerier returns entries least-recently-used first,
// ties broken by insertion order (rowid)
func (s *SQLiteStore) listCacheEntriesLRUWithQuerier(ctx context.Context, q querier, repoID int64) ([]*CacheEntry, error) {
	query := `
		SELECT id, repo_id, provider, cache_key, value, size_bytes, created_at, last_accessed_at
		FROM cache_entries
		WHERE repo_id = ?
		ORDER BY last_accessed_at ASC, id ASC
	`
	rows, err := q.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*CacheEntry, 0)
	for rows.Next() {
		var entry CacheEntry
		if err := rows.Scan(
			&entry.ID, &entry.RepoID, &entry.Provider, &entry.Key,
			&entry.Value, &entry.SizeBytes, &entry.CreatedAt, &entry.LastAccessedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ListCacheEntriesLRU(ctx context.Context, repoID int64) ([]*CacheEntry, error) {
	return s.listCacheEntriesLRUWithQuerier(ctx, s.querier(), repoID)
}

func (s *SQLiteStore) clearCacheEntriesWithQuerier(ctx context.Context, q querier, repoID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cache_entries WHERE repo_id = ?`, repoID)
	return err
}

func (s *SQLiteStore) ClearCacheEntries(ctx context.Context, repoID int64) error {
	return s.clearCacheEntriesWithQuerier(ctx, s.querier(), repoID)
}

// Transaction method implementations delegate to the store with the tx querier

func (t *sqliteTx) CreateRepo(ctx context.Context, repo *Repo) error {
	return t.store.createRepoWithQuerier(ctx, t.querier(), repo)
}

func (t *sqliteTx) GetRepo(ctx context.Context, repoKey string) (*Repo, error) {
	return t.store.getRepoWithQuerier(ctx, t.querier(), repoKey)
}

func (t *sqliteTx) UpdateRepo(ctx context.Context, repo *Repo) error {
	return t.store.updateRepoWithQuerier(ctx, t.querier(), repo)
}

func (t *sqliteTx) DeleteRepo(ctx context.Context, repoID int64) error {
	return t.store.deleteRepoWithQuerier(ctx, t.querier(), repoID)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.store.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, repoID int64, filePath string) (*File, error) {
	return t.store.getFileWithQuerier(ctx, t.querier(), repoID, filePath)
}

func (t *sqliteTx) ListFiles(ctx context.Context, repoID int64) ([]*File, error) {
	return t.store.listFilesWithQuerier(ctx, t.querier(), repoID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.store.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) UpsertUnit(ctx context.Context, unit *Unit) error {
	return t.store.upsertUnitWithQuerier(ctx, t.querier(), unit)
}

func (t *sqliteTx) ListUnitsByFile(ctx context.Context, fileID int64) ([]*Unit, error) {
	return t.store.listUnitsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListUnits(ctx context.Context, repoID int64) ([]*Unit, error) {
	return t.store.listUnitsWithQuerier(ctx, t.querier(), repoID)
}

func (t *sqliteTx) DeleteUnitsByFile(ctx context.Context, fileID int64) error {
	return t.store.deleteUnitsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) GetCacheEntry(ctx context.Context, repoID int64, provider, key string) (*CacheEntry, error) {
	return t.store.getCacheEntryWithQuerier(ctx, t.querier(), repoID, provider, key)
}

func (t *sqliteTx) PutCacheEntry(ctx context.Context, entry *CacheEntry, deps []CacheDep) error {
	return t.store.putCacheEntryWithQuerier(ctx, t.querier(), entry, deps)
}

func (t *sqliteTx) TouchCacheEntry(ctx context.Context, entryID int64, accessedAt time.Time) error {
	return t.store.touchCacheEntryWithQuerier(ctx, t.querier(), entryID, accessedAt)
}

func (t *sqliteTx) DeleteCacheEntry(ctx context.Context, entryID int64) error {
	return t.store.deleteCacheEntryWithQuerier(ctx, t.querier(), entryID)
}

func (t *sqliteTx) ListCacheDeps(ctx context.Context, entryID int64) ([]CacheDep, error) {
	return t.store.listCacheDepsWithQuerier(ctx, t.querier(), entryID)
}

func (t *sqliteTx) CacheUsage(ctx context.Context, repoID int64) (int, int64, error) {
	return t.store.cacheUsageWithQuerier(ctx, t.querier(), repoID)
}

func (t *sqliteTx) ListCacheEntriesLRU(ctx context.Context, repoID int64) ([]*CacheEntry, error) {
	return t.store.listCacheEntriesLRUWithQuerier(ctx, t.querier(), repoID)
}

func (t *sqliteTx) ClearCacheEntries(ctx context.Context, repoID int64) error {
	return t.store.clearCacheEntriesWithQuerier(ctx, t.querier(), repoID)
}

func (t *sqliteTx) Close() error {
	return nil // The underlying connection is owned by the store
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}
