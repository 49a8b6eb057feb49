// Package metadataworker is the metadata read path (C8 Metadata Worker,
// C9 Metadata Loader) sitting between internal/metadataadapter's external
// tool access and internal/cache's metadata cache. It generalizes the
// teacher's date-extraction pass (metadata/extractor.go's
// ExtractorRegistry.ExtractBestDate, called once per file from
// evaluateFileForBackup) into three loading strategies over arbitrary
// metadata fields rather than a single best-date result: load one file
// synchronously, load a batch with progress reporting, or stream results
// as they complete.
package metadataworker

import (
	"context"

	"renamecore/internal/cache"
	"renamecore/internal/corerr"
	"renamecore/internal/eventbus"
	"renamecore/internal/logging"
	"renamecore/internal/metadataadapter"
	"renamecore/internal/pathkey"
)

const component = "metadataworker"

const markerExtended = "__extended__"

// TopicFileLoaded is published once per file as it finishes loading,
// independent of which strategy drove the load (spec.md §4.9
// file_metadata_loaded).
const TopicFileLoaded = "metadataworker.file_loaded"

// FileLoadedEvent is the payload published on TopicFileLoaded.
type FileLoadedEvent struct {
	Path  pathkey.Key
	Entry cache.MetadataEntry
	Err   error
}

// Result is one file's load outcome, used by LoadBatch and LoadStream.
type Result struct {
	Path  pathkey.Key
	Entry cache.MetadataEntry
	Err   error
}

// ProgressEvent is published on TopicProgress during LoadBatch.
type ProgressEvent struct {
	Done, Total int
}

const TopicProgress = "metadataworker.progress"

// Worker loads and caches file metadata.
type Worker struct {
	cache   *cache.MetadataCache
	adapter *metadataadapter.Adapter
	bus     *eventbus.Bus
	log     *logging.Logger
}

// New constructs a Worker.
func New(mc *cache.MetadataCache, adapter *metadataadapter.Adapter, bus *eventbus.Bus, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.Nop()
	}
	return &Worker{cache: mc, adapter: adapter, bus: bus, log: log.Named(component)}
}

// LoadOne is the single-file synchronous strategy: read through the cache,
// falling back to the adapter on miss, OR-combining any previously known
// is_extended flag with what this read produced so an earlier extended
// read is never "forgotten" by a later fast read of the same file.
func (w *Worker) LoadOne(ctx context.Context, path pathkey.Key, fast bool) (cache.MetadataEntry, error) {
	if entry, ok, err := w.cache.Get(ctx, path); err == nil && ok && (fast || entry.IsExtended) {
		w.publishLoaded(path, entry, nil)
		return entry, nil
	}

	raw, err := w.adapter.Read(ctx, string(path), fast)
	if err != nil {
		w.publishLoaded(path, cache.MetadataEntry{}, err)
		return cache.MetadataEntry{}, err
	}

	entry := w.mergeAndStore(ctx, path, raw)
	w.publishLoaded(path, entry, nil)
	return entry, nil
}

// LoadBatch is the batch-with-progress strategy: load every path,
// publishing ProgressEvent as each completes, and returning all results
// together once the batch finishes (or is cancelled).
func (w *Worker) LoadBatch(ctx context.Context, paths []pathkey.Key, fast bool) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, corerr.Wrap(component, corerr.Cancelled, err)
		}
		entry, err := w.LoadOne(ctx, p, fast)
		results = append(results, Result{Path: p, Entry: entry, Err: err})
		w.publishProgress(i+1, len(paths))
	}
	return results, nil
}

// LoadStream is the streaming strategy: results are delivered on the
// returned channel as each file finishes, which the channel is closed
// once every path has been processed or ctx is cancelled. Cancellation is
// best-effort: whatever has already been read through the adapter is still
// written to the cache (and to the persistent store via its write-behind
// writer) before the channel closes, rather than discarded, since a
// metadata read has no meaningful "undo" the way a batched hash write does.
func (w *Worker) LoadStream(ctx context.Context, paths []pathkey.Key, fast bool) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		for _, p := range paths {
			entry, err := w.LoadOne(ctx, p, fast)
			select {
			case out <- Result{Path: p, Entry: entry, Err: err}:
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}

func (w *Worker) mergeAndStore(ctx context.Context, path pathkey.Key, raw map[string]interface{}) cache.MetadataEntry {
	newExtended, _ := raw[markerExtended].(bool)

	existing, hasExisting, _ := w.cache.Get(ctx, path)
	combinedExtended := newExtended || (hasExisting && existing.IsExtended)

	raw[markerExtended] = combinedExtended
	w.cache.Set(path, raw)

	entry, _, _ := w.cache.Get(ctx, path)
	return entry
}

func (w *Worker) publishLoaded(path pathkey.Key, entry cache.MetadataEntry, err error) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(TopicFileLoaded, FileLoadedEvent{Path: path, Entry: entry, Err: err})
}

func (w *Worker) publishProgress(done, total int) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(TopicProgress, ProgressEvent{Done: done, Total: total})
}
