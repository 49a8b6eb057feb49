package cache

import (
	"context"
	"sync"
	"time"

	"renamecore/internal/pathkey"
	"renamecore/internal/store"
)

// internal marker keys stripped out of raw metadata payloads into the
// MetadataEntry's own flag fields, mirroring oncutf's
// PersistentMetadataCache handling of "__extended__"/"__modified__".
const (
	markerExtended = "__extended__"
	markerModified = "__modified__"
)

// MetadataEntry is the in-memory shape of one file's metadata dictionary
// plus the two status flags tracked alongside it.
type MetadataEntry struct {
	Data       map[string]interface{}
	IsExtended bool
	IsModified bool
	MtimeNs    int64
	Size       int64
	UpdatedAt  time.Time
}

// MetadataWriter is the write-behind sink a MetadataCache durably persists
// through (internal/batch.Manager).
type MetadataWriter interface {
	EnqueueMetadata(rec store.MetadataRecord)
}

// MetadataStats is a point-in-time snapshot of cache effectiveness,
// grounded on oncutf's get_cache_stats.
type MetadataStats struct {
	Hits    int64
	Misses  int64
	Entries int
	Cap     int
}

// MetadataCache is the bounded in-memory tier (C4) in front of the
// persistent metadata store.
type MetadataCache struct {
	mu     sync.Mutex
	lru    *lruMap[pathkey.Key, MetadataEntry]
	store  *store.Store
	writer MetadataWriter

	hits   int64
	misses int64
}

// NewMetadataCache constructs a MetadataCache of the given capacity.
func NewMetadataCache(capacity int, persistentStore *store.Store, writer MetadataWriter) *MetadataCache {
	return &MetadataCache{
		lru:    newLRUMap[pathkey.Key, MetadataEntry](capacity),
		store:  persistentStore,
		writer: writer,
	}
}

// Get returns the metadata entry for path, consulting memory first and
// falling back to the persistent store on miss.
func (c *MetadataCache) Get(ctx context.Context, path pathkey.Key) (MetadataEntry, bool, error) {
	c.mu.Lock()
	if v, ok := c.lru.get(path); ok {
		c.hits++
		c.mu.Unlock()
		return v, true, nil
	}
	c.mu.Unlock()

	rec, ok, err := c.store.GetMetadata(ctx, path)
	if err != nil {
		return MetadataEntry{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.misses++
		return MetadataEntry{}, false, nil
	}
	c.misses++
	entry := entryFromRecord(rec)
	c.lru.put(path, entry)
	return entry, true, nil
}

// GetEntry is an alias for Get matching the "entry vs raw value" accessor
// split the oncutf cache exposes (get vs get_entry).
func (c *MetadataCache) GetEntry(ctx context.Context, path pathkey.Key) (MetadataEntry, bool, error) {
	return c.Get(ctx, path)
}

// GetEntriesBatch resolves many path lookups with a single store round
// trip for whatever isn't already in memory (oncutf get_entries_batch).
func (c *MetadataCache) GetEntriesBatch(ctx context.Context, paths []pathkey.Key) (map[pathkey.Key]MetadataEntry, error) {
	result := make(map[pathkey.Key]MetadataEntry, len(paths))
	var misses []pathkey.Key

	c.mu.Lock()
	for _, p := range paths {
		if v, ok := c.lru.get(p); ok {
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

	recs, err := c.store.BatchGetMetadata(ctx, misses)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range misses {
		c.misses++
		if rec, ok := recs[p]; ok {
			entry := entryFromRecord(rec)
			c.lru.put(p, entry)
			result[p] = entry
		}
	}
	return result, nil
}

// Set installs data for path in memory and enqueues a durable write.
// Markers "__extended__"/"__modified__" embedded in data are stripped into
// the entry's own flag fields rather than stored as ordinary metadata
// keys, matching oncutf's convention.
func (c *MetadataCache) Set(path pathkey.Key, data map[string]interface{}) {
	clean := make(map[string]interface{}, len(data))
	var isExtended, isModified bool
	for k, v := range data {
		switch k {
		case markerExtended:
			isExtended, _ = v.(bool)
		case markerModified:
			isModified, _ = v.(bool)
		default:
			clean[k] = v
		}
	}

	entry := MetadataEntry{Data: clean, IsExtended: isExtended, IsModified: isModified, UpdatedAt: nowFunc()}

	c.mu.Lock()
	c.lru.put(path, entry)
	c.mu.Unlock()

	if c.writer != nil {
		c.writer.EnqueueMetadata(store.MetadataRecord{
			Path:       path,
			Data:       clean,
			IsExtended: isExtended,
			IsModified: isModified,
			UpdatedAt:  entry.UpdatedAt,
		})
	}
}

// Add is an alias for Set, matching oncutf's dict-like add/update naming.
func (c *MetadataCache) Add(path pathkey.Key, data map[string]interface{}) { c.Set(path, data) }

// Update merges fields into any existing entry for path (creating one if
// absent) rather than replacing the whole dictionary, and marks the result
// modified (pending staging against it).
func (c *MetadataCache) Update(path pathkey.Key, fields map[string]interface{}) {
	c.merge(path, fields, true)
}

// MarkSaved merges fields into path's entry the same way Update does, but
// clears is_modified rather than setting it. Call this, not Update, from the
// write-back reconciliation step after a successful save: committing staged
// changes to disk resolves the pending edit, it doesn't create a new one.
func (c *MetadataCache) MarkSaved(path pathkey.Key, fields map[string]interface{}) {
	c.merge(path, fields, false)
}

func (c *MetadataCache) merge(path pathkey.Key, fields map[string]interface{}, modified bool) {
	c.mu.Lock()
	existing, ok := c.lru.peek(path)
	c.mu.Unlock()

	merged := map[string]interface{}{}
	if ok {
		for k, v := range existing.Data {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	if ok {
		merged[markerExtended] = existing.IsExtended
	}
	merged[markerModified] = modified
	c.Set(path, merged)
}

// Contains reports whether path has a cached entry in memory, without
// consulting the persistent store (oncutf __contains__).
func (c *MetadataCache) Contains(path pathkey.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lru.peek(path)
	return ok
}

// Len returns the number of entries currently held in memory (oncutf __len__).
func (c *MetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.len()
}

// Remove drops path from memory only; the persistent record, if any,
// survives until an explicit store-level delete.
func (c *MetadataCache) Remove(path pathkey.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.remove(path)
}

// InvalidateUnder drops every in-memory entry under prefix and deletes the
// matching persistent rows.
func (c *MetadataCache) InvalidateUnder(ctx context.Context, prefix string) error {
	c.mu.Lock()
	for _, k := range c.lru.keys() {
		if pathkey.HasPrefix(k, prefix) {
			c.lru.remove(k)
		}
	}
	c.mu.Unlock()
	return c.store.DeleteMetadataUnder(ctx, prefix)
}

// Clear empties the in-memory tier without touching the persistent store.
func (c *MetadataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.clear()
}

// Stats returns a snapshot of hit/miss counters and occupancy.
func (c *MetadataCache) Stats() MetadataStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MetadataStats{Hits: c.hits, Misses: c.misses, Entries: c.lru.len(), Cap: c.lru.capacity}
}

func entryFromRecord(rec store.MetadataRecord) MetadataEntry {
	return MetadataEntry{
		Data:       rec.Data,
		IsExtended: rec.IsExtended,
		IsModified: rec.IsModified,
		MtimeNs:    rec.MtimeNs,
		Size:       rec.Size,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// nowFunc is a var so tests can pin timestamps; production code leaves it
// as time.Now.
var nowFunc = time.Now
