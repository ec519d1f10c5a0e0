// Package store provides SQLite-based persistence for the repository index
// and the AI result cache.
//
// The store manages:
//   - Repository metadata and index statistics
//   - File records with SHA-256 content hashes
//   - Embeddable units with optional serialized vectors
//   - Cache entries with per-entry dependency hashes
//
// # Database Schema
//
// Tables:
//   - repos: One row per indexed repository root
//   - files: Relative paths, content hashes, parse status
//   - units: Embeddable units (vector BLOB is nil until embedded)
//   - cache_entries: AI-derived artifacts keyed by (repo, provider, key)
//   - cache_deps: (file path, content hash) pairs captured when an entry
//     was written, used to decide freshness on read
//
// # Basic Usage
//
//	st, err := store.NewSQLiteStore("~/.repoctx/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	repo := &store.Repo{RepoKey: key, RootPath: root, IndexVersion: "1"}
//	if err := st.CreateRepo(ctx, repo); err != nil {
//	    return err
//	}
//
// # Transactions
//
// Re-indexing a file updates its record and units atomically:
//
//	tx, err := st.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	if err := tx.DeleteUnitsByFile(ctx, file.ID); err != nil {
//	    return err
//	}
//	for _, unit := range units {
//	    if err := tx.UpsertUnit(ctx, unit); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// # Build Tags
//
// Two driver configurations are supported. The default pure Go build uses
// modernc.org/sqlite and needs no C compiler. Building with
// CGO_ENABLED=1 and the sqlite_vec tag selects github.com/mattn/go-sqlite3.
// The DriverName, BuildMode and VectorExtensionAvailable constants report
// the active configuration.
package store
