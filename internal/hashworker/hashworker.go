// Package hashworker computes file content hashes (C7), generalizing the
// teacher's worker-pool planning pass (files.go's
// evaluateFilesForPlanningParallel) from a fixed SHA-256/dedup-map
// pipeline into pluggable algorithms, a cache-aware sequential mode, and a
// bounded-parallel mode built on golang.org/x/sync instead of a hand-rolled
// channel/WaitGroup pair, since the corpus (quantmind-br-gendocs'
// internal/worker_pool) favors errgroup/semaphore for this shape of job.
package hashworker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"renamecore/internal/cache"
	"renamecore/internal/corerr"
	"renamecore/internal/eventbus"
	"renamecore/internal/logging"
	"renamecore/internal/pathkey"
)

const component = "hashworker"

// Algorithm names registered with Worker.
const (
	AlgorithmCRC32  = "crc32"
	AlgorithmSHA256 = "sha256"
)

func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmCRC32:
		return crc32.NewIEEE(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	default:
		return nil, corerr.New(component, corerr.Validation, "unknown hash algorithm: "+algorithm)
	}
}

// Operation names the three setup_* kinds from spec.md §4.7, all of which
// share the same compute-and-cache core and differ only in what the caller
// does with the resulting digests.
type Operation int

const (
	OperationChecksum Operation = iota
	OperationDuplicateScan
	OperationExternalComparison
)

// Result is one file's outcome.
type Result struct {
	Path      pathkey.Key
	Digest    string
	FromCache bool
	Err       error
}

// DuplicateGroup is a set of two or more paths sharing the same digest,
// emitted by setup_duplicate_scan.
type DuplicateGroup struct {
	Digest string
	Paths  []pathkey.Key
}

// ComparisonResult is one path's outcome from setup_external_comparison:
// its digest against the digest of external_folder/basename(path).
type ComparisonResult struct {
	Path           pathkey.Key
	Exists         bool
	SourceDigest   string
	ExternalDigest string
	IsSame         bool
	Err            error
}

// OpResult carries whichever of the three request_hashes outcomes the
// requested Operation produced; the other two fields stay nil.
type OpResult struct {
	Checksums  []Result
	Duplicates []DuplicateGroup
	Comparison []ComparisonResult
}

// ProgressEvent is published to eventbus on topic TopicProgress as files
// complete.
type ProgressEvent struct {
	Done, Total int
	BytesDone   int64
}

// DuplicatesFoundEvent is published to eventbus on topic
// TopicDuplicatesFound once setup_duplicate_scan finishes grouping.
type DuplicatesFoundEvent struct {
	Groups []DuplicateGroup
}

// ComparisonResultEvent is published to eventbus on topic
// TopicComparisonResult once setup_external_comparison finishes.
type ComparisonResultEvent struct {
	Results []ComparisonResult
}

const (
	TopicProgress         = "hashworker.progress"
	TopicDuplicatesFound  = "hashworker.duplicates_found"
	TopicComparisonResult = "hashworker.comparison_result"
)

// Worker computes and caches file hashes.
type Worker struct {
	cache       *cache.HashCache
	bus         *eventbus.Bus
	log         *logging.Logger
	chunkBytes  int
	parallelMin int
	poolSize    int
}

// Config configures a Worker; zero values take spec.md's documented defaults.
type Config struct {
	ChunkBytes        int
	ParallelThreshold int // below this file count, run sequentially
	PoolSize          int // 0 = min(2*NumCPU, 8)
}

// New constructs a Worker backed by hc for caching, publishing progress on bus.
func New(hc *cache.HashCache, bus *eventbus.Bus, cfg Config, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.Nop()
	}
	chunk := cfg.ChunkBytes
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	threshold := cfg.ParallelThreshold
	if threshold <= 0 {
		threshold = 16
	}
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = defaultPoolSize()
	}
	return &Worker{cache: hc, bus: bus, log: log.Named(component), chunkBytes: chunk, parallelMin: threshold, poolSize: pool}
}

func defaultPoolSize() int {
	n := 2 * runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Compute hashes every path with algorithm, consulting and populating the
// hash cache, and chooses sequential or bounded-parallel execution based
// on the configured threshold. Results preserve the input order.
func (w *Worker) Compute(ctx context.Context, paths []pathkey.Key, algorithm string) ([]Result, error) {
	if len(paths) < w.parallelMin {
		return w.computeSequential(ctx, paths, algorithm)
	}
	return w.computeParallel(ctx, paths, algorithm)
}

// RequestHashes is the request_hashes facade: it dispatches to setup_checksum_calculation,
// setup_duplicate_scan, or setup_external_comparison depending on op, and publishes
// the operation's signal (in addition to the progress events Compute always emits).
func (w *Worker) RequestHashes(ctx context.Context, paths []pathkey.Key, algorithm string, op Operation, externalFolder string) (OpResult, error) {
	switch op {
	case OperationDuplicateScan:
		groups, err := w.DuplicateScan(ctx, paths, algorithm)
		return OpResult{Duplicates: groups}, err
	case OperationExternalComparison:
		results, err := w.ExternalComparison(ctx, paths, algorithm, externalFolder)
		return OpResult{Comparison: results}, err
	default:
		results, err := w.Compute(ctx, paths, algorithm)
		return OpResult{Checksums: results}, err
	}
}

// DuplicateScan implements setup_duplicate_scan: it hashes every path, groups
// the results by digest, and returns only the groups with two or more members.
// Paths that failed to hash are excluded from grouping. Group and member order
// is deterministic (sorted by digest, then by original path order) so repeated
// scans of unchanged input produce identical output.
func (w *Worker) DuplicateScan(ctx context.Context, paths []pathkey.Key, algorithm string) ([]DuplicateGroup, error) {
	results, err := w.Compute(ctx, paths, algorithm)
	if err != nil {
		return nil, err
	}

	byDigest := make(map[string][]pathkey.Key)
	var order []string
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if _, ok := byDigest[r.Digest]; !ok {
			order = append(order, r.Digest)
		}
		byDigest[r.Digest] = append(byDigest[r.Digest], r.Path)
	}
	sort.Strings(order)

	var groups []DuplicateGroup
	for _, digest := range order {
		members := byDigest[digest]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{Digest: digest, Paths: members})
	}

	w.publishDuplicatesFound(groups)
	return groups, nil
}

// ExternalComparison implements setup_external_comparison: for each path p it
// hashes p and external_folder/basename(p), reporting whether the external
// counterpart exists and whether the two digests match.
func (w *Worker) ExternalComparison(ctx context.Context, paths []pathkey.Key, algorithm, externalFolder string) ([]ComparisonResult, error) {
	sourceResults, err := w.Compute(ctx, paths, algorithm)
	if err != nil {
		return nil, err
	}

	results := make([]ComparisonResult, len(sourceResults))
	for i, src := range sourceResults {
		if err := ctx.Err(); err != nil {
			return results, corerr.Wrap(component, corerr.Cancelled, err)
		}
		results[i] = w.compareOne(ctx, src, algorithm, externalFolder)
	}

	w.publishComparisonResult(results)
	return results, nil
}

func (w *Worker) compareOne(ctx context.Context, src Result, algorithm, externalFolder string) ComparisonResult {
	if src.Err != nil {
		return ComparisonResult{Path: src.Path, Err: src.Err}
	}

	externalPath := filepath.Join(externalFolder, filepath.Base(string(src.Path)))
	if _, err := os.Stat(externalPath); err != nil {
		return ComparisonResult{Path: src.Path, Exists: false, SourceDigest: src.Digest}
	}

	externalDigest, _, err := hashFile(ctx, externalPath, algorithm, w.chunkBytes)
	if err != nil {
		return ComparisonResult{Path: src.Path, Exists: true, SourceDigest: src.Digest, Err: err}
	}

	return ComparisonResult{
		Path:           src.Path,
		Exists:         true,
		SourceDigest:   src.Digest,
		ExternalDigest: externalDigest,
		IsSame:         src.Digest == externalDigest,
	}
}

func (w *Worker) computeSequential(ctx context.Context, paths []pathkey.Key, algorithm string) ([]Result, error) {
	results := make([]Result, len(paths))
	var bytesDone int64

	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, corerr.Wrap(component, corerr.Cancelled, err)
		}
		results[i] = w.computeOne(ctx, p, algorithm, &bytesDone)
		w.publishProgress(i+1, len(paths), bytesDone)
	}
	return results, nil
}

func (w *Worker) computeParallel(ctx context.Context, paths []pathkey.Key, algorithm string) ([]Result, error) {
	results := make([]Result, len(paths))
	sem := semaphore.NewWeighted(int64(w.poolSize))
	g, gctx := errgroup.WithContext(ctx)

	var bytesDone int64
	var done int64

	for i, p := range paths {
		i, p := i, p
		if err := sem.Acquire(gctx, 1); err != nil {
			break // context cancelled; remaining slots simply never run
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = w.computeOne(gctx, p, algorithm, &bytesDone)
			d := atomic.AddInt64(&done, 1)
			w.publishProgress(int(d), len(paths), atomic.LoadInt64(&bytesDone))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, corerr.Wrap(component, corerr.Cancelled, err)
	}
	if ctx.Err() != nil {
		return results, corerr.Wrap(component, corerr.Cancelled, ctx.Err())
	}
	return results, nil
}

func (w *Worker) computeOne(ctx context.Context, path pathkey.Key, algorithm string, bytesDone *int64) Result {
	if entry, ok, err := w.cache.Get(ctx, path, algorithm); err == nil && ok {
		return Result{Path: path, Digest: entry.Digest, FromCache: true}
	}

	digest, size, err := hashFile(ctx, string(path), algorithm, w.chunkBytes)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	atomic.AddInt64(bytesDone, size)

	info, statErr := os.Stat(string(path))
	var mtimeNs int64
	if statErr == nil {
		mtimeNs = info.ModTime().UnixNano()
	}

	entry := cache.HashEntry{Digest: digest, MtimeNs: mtimeNs, Size: size, ComputedAt: time.Now()}
	w.cache.Put(path, algorithm, entry)
	return Result{Path: path, Digest: digest}
}

// hashFile streams the file in chunkBytes-sized reads, checking ctx between
// chunks so a cancellation lands promptly on large files rather than only
// between whole files.
func hashFile(ctx context.Context, path, algorithm string, chunkBytes int) (digest string, size int64, err error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, corerr.Wrap(component, corerr.IoError, err)
	}
	defer f.Close()

	buf := make([]byte, chunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return "", 0, corerr.Wrap(component, corerr.Cancelled, err)
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", 0, corerr.Wrap(component, corerr.IoError, readErr)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func (w *Worker) publishProgress(done, total int, bytesDone int64) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(TopicProgress, ProgressEvent{Done: done, Total: total, BytesDone: bytesDone})
}

func (w *Worker) publishDuplicatesFound(groups []DuplicateGroup) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(TopicDuplicatesFound, DuplicatesFoundEvent{Groups: groups})
}

func (w *Worker) publishComparisonResult(results []ComparisonResult) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(TopicComparisonResult, ComparisonResultEvent{Results: results})
}
