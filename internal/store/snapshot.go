package store

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"renamecore/internal/corerr"
)

// snapshot is the on-disk shape written/read by Export/Import: a flat dump
// of both tables, compressed with zstd rather than relying on SQLite's own
// file format so a snapshot survives a schema migration on the importing
// side.
type snapshot struct {
	SchemaVersion int              `json:"schema_version"`
	Hashes        []HashRecord     `json:"hashes"`
	Metadata      []MetadataRecord `json:"metadata"`
}

// Export writes every hash and metadata record to a zstd-compressed JSON
// snapshot at path, for backup or transfer between machines.
func (s *Store) Export(ctx context.Context, path string) error {
	snap := snapshot{SchemaVersion: schemaVersion}

	hashRows, err := s.db.QueryContext(ctx, `SELECT path, algorithm, digest, mtime_ns, size, computed_at FROM hashes`)
	if err != nil {
		return corerr.Wrap(component, corerr.StoreError, err)
	}
	for hashRows.Next() {
		var rec HashRecord
		var p, computedAt string
		if err := hashRows.Scan(&p, &rec.Algorithm, &rec.Digest, &rec.MtimeNs, &rec.Size, &computedAt); err != nil {
			hashRows.Close()
			return corerr.Wrap(component, corerr.StoreError, err)
		}
		rec.Path = keyOf(p)
		rec.ComputedAt = parseTimeOrZero(computedAt)
		snap.Hashes = append(snap.Hashes, rec)
	}
	hashRows.Close()
	if err := hashRows.Err(); err != nil {
		return corerr.Wrap(component, corerr.StoreError, err)
	}

	metaRows, err := s.db.QueryContext(ctx, `SELECT path, data_json, is_extended, is_modified, mtime_ns, size, updated_at FROM metadata`)
	if err != nil {
		return corerr.Wrap(component, corerr.StoreError, err)
	}
	for metaRows.Next() {
		var rec MetadataRecord
		var p, dataJSON, updatedAt string
		var isExt, isMod int
		if err := metaRows.Scan(&p, &dataJSON, &isExt, &isMod, &rec.MtimeNs, &rec.Size, &updatedAt); err != nil {
			metaRows.Close()
			return corerr.Wrap(component, corerr.StoreError, err)
		}
		rec.Path = keyOf(p)
		rec.IsExtended = isExt != 0
		rec.IsModified = isMod != 0
		rec.UpdatedAt = parseTimeOrZero(updatedAt)
		if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
			metaRows.Close()
			return corerr.Wrap(component, corerr.StoreError, err)
		}
		snap.Metadata = append(snap.Metadata, rec)
	}
	metaRows.Close()
	if err := metaRows.Err(); err != nil {
		return corerr.Wrap(component, corerr.StoreError, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return corerr.Wrap(component, corerr.IoError, err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return corerr.Wrap(component, corerr.IoError, err)
	}
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return corerr.Wrap(component, corerr.IoError, err)
	}
	return corerr.Wrap(component, corerr.IoError, zw.Close())
}

// Import loads a snapshot previously written by Export, upserting every
// record into the current database via the normal per-record write path.
func (s *Store) Import(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return corerr.Wrap(component, corerr.IoError, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return corerr.Wrap(component, corerr.IoError, err)
	}
	defer zr.Close()

	var snap snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil && err != io.EOF {
		return corerr.Wrap(component, corerr.StoreError, err)
	}

	for _, rec := range snap.Hashes {
		if err := s.StoreHash(ctx, rec); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return corerr.Wrap(component, corerr.Cancelled, ctx.Err())
		}
	}
	for _, rec := range snap.Metadata {
		if err := s.StoreMetadata(ctx, rec); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return corerr.Wrap(component, corerr.Cancelled, ctx.Err())
		}
	}
	return nil
}
