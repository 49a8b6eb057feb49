package cache

import (
	"context"
	"sync"
	"time"

	"renamecore/internal/pathkey"
	"renamecore/internal/store"
)

// HashEntry is the in-memory shape of a single (path, algorithm) hash
// result, mirroring store.HashRecord but decoupled from the storage
// package so callers never import internal/store directly for reads.
type HashEntry struct {
	Digest     string
	MtimeNs    int64
	Size       int64
	ComputedAt time.Time
}

type hashKey struct {
	path      pathkey.Key
	algorithm string
}

// HashWriter is the write-behind sink a HashCache durably persists through;
// internal/batch.Manager implements it, coalescing many Put calls into
// fewer SQLite transactions (C5).
type HashWriter interface {
	EnqueueHash(rec store.HashRecord)
}

// HashStats is a point-in-time snapshot of cache effectiveness.
type HashStats struct {
	Hits    int64
	Misses  int64
	Entries int
	Cap     int
}

// HashCache is the bounded in-memory tier (C3) in front of the persistent
// hash store, generalizing the teacher's loadExistingHashes/hashToPath
// in-memory dedup map (files.go) into a capacity-bounded, store-backed LRU.
type HashCache struct {
	mu     sync.Mutex
	lru    *lruMap[hashKey, HashEntry]
	store  *store.Store
	writer HashWriter

	hits   int64
	misses int64
}

// NewHashCache constructs a HashCache of the given capacity, backed by
// persistentStore for cold reads and writer for durable writes.
func NewHashCache(capacity int, persistentStore *store.Store, writer HashWriter) *HashCache {
	return &HashCache{
		lru:    newLRUMap[hashKey, HashEntry](capacity),
		store:  persistentStore,
		writer: writer,
	}
}

// Get returns the hash entry for (path, algorithm), consulting memory
// first and falling back to the persistent store on miss, promoting the
// result into memory either way.
func (c *HashCache) Get(ctx context.Context, path pathkey.Key, algorithm string) (HashEntry, bool, error) {
	k := hashKey{path: path, algorithm: algorithm}

	c.mu.Lock()
	if v, ok := c.lru.get(k); ok {
		c.hits++
		c.mu.Unlock()
		return v, true, nil
	}
	c.mu.Unlock()

	rec, ok, err := c.store.GetHash(ctx, path, algorithm)
	if err != nil {
		return HashEntry{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.misses++
		return HashEntry{}, false, nil
	}
	c.misses++
	entry := HashEntry{Digest: rec.Digest, MtimeNs: rec.MtimeNs, Size: rec.Size, ComputedAt: rec.ComputedAt}
	c.lru.put(k, entry)
	return entry, true, nil
}

// GetBatch resolves many (path, algorithm) lookups with a single store
// round trip for whatever isn't already in memory (spec.md supplemented
// batch-read feature, grounded on oncutf's get_entries_batch).
func (c *HashCache) GetBatch(ctx context.Context, paths []pathkey.Key, algorithm string) (map[pathkey.Key]HashEntry, error) {
	result := make(map[pathkey.Key]HashEntry, len(paths))
	var misses []pathkey.Key

	c.mu.Lock()
	for _, p := range paths {
		if v, ok := c.lru.get(hashKey{path: p, algorithm: algorithm}); ok {
			result[p] = v
			c.hits++
		} else {
			misses = append(misses, p)
		}
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return result, nil
	}

	recs, err := c.store.BatchGetHashes(ctx, misses, algorithm)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range misses {
		c.misses++
		if rec, ok := recs[p]; ok {
			entry := HashEntry{Digest: rec.Digest, MtimeNs: rec.MtimeNs, Size: rec.Size, ComputedAt: rec.ComputedAt}
			c.lru.put(hashKey{path: p, algorithm: algorithm}, entry)
			result[p] = entry
		}
	}
	return result, nil
}

// Put installs entry in memory immediately and enqueues it for durable
// write-back through the configured HashWriter.
func (c *HashCache) Put(path pathkey.Key, algorithm string, entry HashEntry) {
	c.mu.Lock()
	c.lru.put(hashKey{path: path, algorithm: algorithm}, entry)
	c.mu.Unlock()

	if c.writer != nil {
		c.writer.EnqueueHash(store.HashRecord{
			Path:       path,
			Algorithm:  algorithm,
			Digest:     entry.Digest,
			MtimeNs:    entry.MtimeNs,
			Size:       entry.Size,
			ComputedAt: entry.ComputedAt,
		})
	}
}

// Invalidate removes every algorithm's entry in memory for path (the
// persistent record is left for the next explicit overwrite).
func (c *HashCache) Invalidate(path pathkey.Key, algorithms []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, alg := range algorithms {
		c.lru.remove(hashKey{path: path, algorithm: alg})
	}
}

// InvalidateUnder drops every in-memory entry whose path lies under prefix
// (used when a drive disappears or a watched folder is removed) and
// deletes the matching persistent rows.
func (c *HashCache) InvalidateUnder(ctx context.Context, prefix string) error {
	c.mu.Lock()
	for _, k := range c.lru.keys() {
		if pathkey.HasPrefix(k.path, prefix) {
			c.lru.remove(k)
		}
	}
	c.mu.Unlock()
	return c.store.DeleteHashesUnder(ctx, prefix)
}

// Stats returns a snapshot of hit/miss counters and occupancy.
func (c *HashCache) Stats() HashStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return HashStats{Hits: c.hits, Misses: c.misses, Entries: c.lru.len(), Cap: c.lru.capacity}
}
