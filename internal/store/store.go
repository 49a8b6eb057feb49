// Package store implements the persistent, durable key-value backing for
// the hash cache (C3) and metadata cache (C4): C2 of spec.md §4.2. It
// generalizes the teacher's single-table SQLite schema (database.go) into
// two tables with per-record atomic writes and a schema_version table
// satisfying the no-half-upgraded-records guarantee of spec.md §6.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"renamecore/internal/corerr"
	"renamecore/internal/logging"
	"renamecore/internal/pathkey"
)

const component = "store"

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS hashes (
	path      TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	digest    TEXT NOT NULL,
	mtime_ns  INTEGER NOT NULL,
	size      INTEGER NOT NULL,
	computed_at TEXT NOT NULL,
	PRIMARY KEY (path, algorithm)
);
CREATE INDEX IF NOT EXISTS idx_hashes_digest ON hashes(digest);

CREATE TABLE IF NOT EXISTS metadata (
	path        TEXT PRIMARY KEY,
	data_json   TEXT NOT NULL,
	is_extended INTEGER NOT NULL,
	is_modified INTEGER NOT NULL,
	mtime_ns    INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// HashRecord is a durable row in the hashes table.
type HashRecord struct {
	Path       pathkey.Key
	Algorithm  string
	Digest     string
	MtimeNs    int64
	Size       int64
	ComputedAt time.Time
}

// MetadataRecord is a durable row in the metadata table.
type MetadataRecord struct {
	Path       pathkey.Key
	Data       map[string]interface{}
	IsExtended bool
	IsModified bool
	MtimeNs    int64
	Size       int64
	UpdatedAt  time.Time
}

// Store is the durable key-value backend. Reads are safe from any number
// of concurrent goroutines; writes are serialized per record by SQLite's
// own locking, with a per-Store mutex added around the write path so
// that a single caller issuing many small writes behaves consistently
// under the pure-Go sqlite driver (spec.md §4.2 "writers are serialized
// per record").
type Store struct {
	db  *sql.DB
	log *logging.Logger
	wmu sync.Mutex
}

// Open opens (creating if needed) a SQLite-backed Store at dbPath and
// ensures the schema is migrated to the current version.
func Open(dbPath string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, corerr.Wrap(component, corerr.StoreError, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writer access through the pool too

	s := &Store{db: db, log: log.Named(component)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return corerr.Wrapf(component, corerr.StoreError, err, "applying schema")
	}

	row := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	var current int
	if err := row.Scan(&current); err != nil {
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return corerr.Wrapf(component, corerr.StoreError, err, "seeding schema_version")
		}
		return nil
	}
	if current != schemaVersion {
		// No migrations defined yet beyond v1; future versions add stepwise
		// ALTER/backfill here, inside a transaction, before bumping the row.
		s.log.Warn("schema version mismatch", logging.Int("found", current), logging.Int("want", schemaVersion))
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// StoreHash writes a single hash record atomically.
func (s *Store) StoreHash(ctx context.Context, rec HashRecord) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hashes (path, algorithm, digest, mtime_ns, size, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, algorithm) DO UPDATE SET
			digest=excluded.digest, mtime_ns=excluded.mtime_ns,
			size=excluded.size, computed_at=excluded.computed_at
	`, string(rec.Path), rec.Algorithm, rec.Digest, rec.MtimeNs, rec.Size, rec.ComputedAt.Format(time.RFC3339Nano))
	if err != nil {
		return corerr.Wrap(component, corerr.StoreError, err)
	}
	return nil
}

// GetHash returns the stored hash for (path, algorithm), or ok=false if absent.
func (s *Store) GetHash(ctx context.Context, path pathkey.Key, algorithm string) (HashRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, algorithm, digest, mtime_ns, size, computed_at
		FROM hashes WHERE path = ? AND algorithm = ?
	`, string(path), algorithm)
	return scanHashRow(row)
}

func scanHashRow(row *sql.Row) (HashRecord, bool, error) {
	var rec HashRecord
	var p, computedAt string
	if err := row.Scan(&p, &rec.Algorithm, &rec.Digest, &rec.MtimeNs, &rec.Size, &computedAt); err != nil {
		if err == sql.ErrNoRows {
			return HashRecord{}, false, nil
		}
		return HashRecord{}, false, corerr.Wrap(component, corerr.StoreError, err)
	}
	rec.Path = pathkey.Key(p)
	rec.ComputedAt, _ = time.Parse(time.RFC3339Nano, computedAt)
	return rec, true, nil
}

// BatchGetHashes returns every stored hash for the given paths at algorithm,
// in a single round trip (spec.md §4.2 batch_get_hashes).
func (s *Store) BatchGetHashes(ctx context.Context, paths []pathkey.Key, algorithm string) (map[pathkey.Key]HashRecord, error) {
	result := make(map[pathkey.Key]HashRecord, len(paths))
	if len(paths) == 0 {
		return result, nil
	}

	query, args := buildInQuery(`SELECT path, algorithm, digest, mtime_ns, size, computed_at FROM hashes WHERE algorithm = ? AND path IN (`, paths, algorithm)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, corerr.Wrap(component, corerr.StoreError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec HashRecord
		var p, computedAt string
		if err := rows.Scan(&p, &rec.Algorithm, &rec.Digest, &rec.MtimeNs, &rec.Size, &computedAt); err != nil {
			return nil, corerr.Wrap(component, corerr.StoreError, err)
		}
		rec.Path = pathkey.Key(p)
		rec.ComputedAt, _ = time.Parse(time.RFC3339Nano, computedAt)
		result[rec.Path] = rec
	}
	return result, rows.Err()
}

// DeleteHash removes the hash record for path (all algorithms).
func (s *Store) DeleteHash(ctx context.Context, path pathkey.Key) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM hashes WHERE path = ?`, string(path))
	return corerr.Wrap(component, corerr.StoreError, err)
}

// DeleteHashesUnder deletes every hash record whose path begins with prefix.
func (s *Store) DeleteHashesUnder(ctx context.Context, prefix string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM hashes WHERE path LIKE ? ESCAPE '\'`, likePrefix(prefix))
	return corerr.Wrap(component, corerr.StoreError, err)
}

// StoreMetadata writes a single metadata record atomically.
func (s *Store) StoreMetadata(ctx context.Context, rec MetadataRecord) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return corerr.Wrap(component, corerr.Validation, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metadata (path, data_json, is_extended, is_modified, mtime_ns, size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			data_json=excluded.data_json, is_extended=excluded.is_extended,
			is_modified=excluded.is_modified, mtime_ns=excluded.mtime_ns,
			size=excluded.size, updated_at=excluded.updated_at
	`, string(rec.Path), string(payload), boolToInt(rec.IsExtended), boolToInt(rec.IsModified),
		rec.MtimeNs, rec.Size, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return corerr.Wrap(component, corerr.StoreError, err)
	}
	return nil
}

// GetMetadata returns the stored metadata record for path, or ok=false if absent.
func (s *Store) GetMetadata(ctx context.Context, path pathkey.Key) (MetadataRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, data_json, is_extended, is_modified, mtime_ns, size, updated_at
		FROM metadata WHERE path = ?
	`, string(path))
	return scanMetadataRow(row)
}

func scanMetadataRow(row *sql.Row) (MetadataRecord, bool, error) {
	var rec MetadataRecord
	var p, dataJSON, updatedAt string
	var isExt, isMod int
	if err := row.Scan(&p, &dataJSON, &isExt, &isMod, &rec.MtimeNs, &rec.Size, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return MetadataRecord{}, false, nil
		}
		return MetadataRecord{}, false, corerr.Wrap(component, corerr.StoreError, err)
	}
	rec.Path = pathkey.Key(p)
	rec.IsExtended = isExt != 0
	rec.IsModified = isMod != 0
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
		return MetadataRecord{}, false, corerr.Wrap(component, corerr.StoreError, err)
	}
	return rec, true, nil
}

// HasMetadata reports whether a metadata record exists for path.
func (s *Store) HasMetadata(ctx context.Context, path pathkey.Key) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM metadata WHERE path = ?`, string(path)).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, corerr.Wrap(component, corerr.StoreError, err)
	}
	return true, nil
}

// BatchGetMetadata returns metadata records for the given paths in one round trip.
func (s *Store) BatchGetMetadata(ctx context.Context, paths []pathkey.Key) (map[pathkey.Key]MetadataRecord, error) {
	result := make(map[pathkey.Key]MetadataRecord, len(paths))
	if len(paths) == 0 {
		return result, nil
	}

	query, args := buildInQuery(`SELECT path, data_json, is_extended, is_modified, mtime_ns, size, updated_at FROM metadata WHERE path IN (`, paths, "")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, corerr.Wrap(component, corerr.StoreError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec MetadataRecord
		var p, dataJSON, updatedAt string
		var isExt, isMod int
		if err := rows.Scan(&p, &dataJSON, &isExt, &isMod, &rec.MtimeNs, &rec.Size, &updatedAt); err != nil {
			return nil, corerr.Wrap(component, corerr.StoreError, err)
		}
		rec.Path = pathkey.Key(p)
		rec.IsExtended = isExt != 0
		rec.IsModified = isMod != 0
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err == nil {
			result[rec.Path] = rec
		}
	}
	return result, rows.Err()
}

// DeleteMetadataUnder deletes every metadata record whose path begins with prefix.
func (s *Store) DeleteMetadataUnder(ctx context.Context, prefix string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE path LIKE ? ESCAPE '\'`, likePrefix(prefix))
	return corerr.Wrap(component, corerr.StoreError, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func likePrefix(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	return string(escaped) + "%"
}

func buildInQuery(prefix string, paths []pathkey.Key, extraArg string) (string, []interface{}) {
	args := make([]interface{}, 0, len(paths)+1)
	if extraArg != "" {
		args = append(args, extraArg)
	}
	placeholders := ""
	for i, p := range paths {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, string(p))
	}
	return prefix + placeholders + ")", args
}
