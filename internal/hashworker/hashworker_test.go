package hashworker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"renamecore/internal/cache"
	"renamecore/internal/eventbus"
	"renamecore/internal/pathkey"
	"renamecore/internal/store"
)

func newTestWorker(t *testing.T, cfg Config) (*Worker, *cache.HashCache) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "hw.db"), nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	hc := cache.NewHashCache(100, st, nil)
	return New(hc, nil, cfg, nil), hc
}

func writeTempFile(t *testing.T, dir, name, content string) pathkey.Key {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return pathkey.Key(p)
}

func TestComputeSequentialCRC32(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWorker(t, Config{ParallelThreshold: 100})

	paths := []pathkey.Key{
		writeTempFile(t, dir, "a.txt", "hello"),
		writeTempFile(t, dir, "b.txt", "world"),
	}

	results, err := w.Compute(context.Background(), paths, AlgorithmCRC32)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("result[%d] error: %v", i, r.Err)
		}
		if r.Digest == "" {
			t.Errorf("result[%d] empty digest", i)
		}
	}
}

func TestComputeCacheHitOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWorker(t, Config{ParallelThreshold: 100})
	paths := []pathkey.Key{writeTempFile(t, dir, "a.txt", "hello")}

	first, err := w.Compute(context.Background(), paths, AlgorithmSHA256)
	if err != nil || first[0].FromCache {
		t.Fatalf("expected cold computation on first call: %v fromCache=%v", err, first[0].FromCache)
	}

	second, err := w.Compute(context.Background(), paths, AlgorithmSHA256)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !second[0].FromCache {
		t.Error("expected second call to be served from cache")
	}
	if second[0].Digest != first[0].Digest {
		t.Error("cached digest should match originally computed digest")
	}
}

func TestComputeParallelPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWorker(t, Config{ParallelThreshold: 1, PoolSize: 4})

	var paths []pathkey.Key
	var contents []string
	for i := 0; i < 20; i++ {
		c := string(rune('a' + i))
		contents = append(contents, c)
		paths = append(paths, writeTempFile(t, dir, c+".txt", c))
	}

	results, err := w.Compute(context.Background(), paths, AlgorithmCRC32)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result[%d].Path = %q, want %q (ordering not preserved)", i, r.Path, paths[i])
		}
	}
}

func TestComputeCancellation(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWorker(t, Config{ParallelThreshold: 100})
	paths := []pathkey.Key{writeTempFile(t, dir, "a.txt", "hello")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Compute(ctx, paths, AlgorithmCRC32)
	if err == nil {
		t.Fatal("expected an error for an already-cancelled context")
	}
}

func TestProgressPublished(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New(8)
	defer bus.Close()

	st, _ := store.Open(filepath.Join(t.TempDir(), "hw2.db"), nil)
	defer st.Close()
	hc := cache.NewHashCache(10, st, nil)
	w := New(hc, bus, Config{ParallelThreshold: 100}, nil)

	received := make(chan ProgressEvent, 4)
	bus.Subscribe(TopicProgress, func(e eventbus.Event) {
		received <- e.(ProgressEvent)
	})

	paths := []pathkey.Key{writeTempFile(t, dir, "a.txt", "hello")}
	if _, err := w.Compute(context.Background(), paths, AlgorithmCRC32); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Done != 1 || ev.Total != 1 {
			t.Errorf("ProgressEvent = %+v, want Done=1 Total=1", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestDuplicateScanGroupsByDigest(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New(8)
	defer bus.Close()

	st, _ := store.Open(filepath.Join(t.TempDir(), "hw3.db"), nil)
	defer st.Close()
	hc := cache.NewHashCache(10, st, nil)
	w := New(hc, bus, Config{ParallelThreshold: 100}, nil)

	received := make(chan DuplicatesFoundEvent, 1)
	bus.Subscribe(TopicDuplicatesFound, func(e eventbus.Event) {
		received <- e.(DuplicatesFoundEvent)
	})

	paths := []pathkey.Key{
		writeTempFile(t, dir, "a.txt", "same"),
		writeTempFile(t, dir, "b.txt", "same"),
		writeTempFile(t, dir, "c.txt", "unique"),
	}

	groups, err := w.DuplicateScan(context.Background(), paths, AlgorithmCRC32)
	if err != nil {
		t.Fatalf("DuplicateScan: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (singleton groups must be excluded)", len(groups))
	}
	if len(groups[0].Paths) != 2 {
		t.Fatalf("group has %d paths, want 2", len(groups[0].Paths))
	}

	select {
	case ev := <-received:
		if len(ev.Groups) != 1 {
			t.Errorf("DuplicatesFoundEvent.Groups = %+v, want 1 group", ev.Groups)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for duplicates_found event")
	}
}

func TestExternalComparisonDetectsSameAndDifferent(t *testing.T) {
	dir := t.TempDir()
	externalDir := t.TempDir()
	bus := eventbus.New(8)
	defer bus.Close()

	st, _ := store.Open(filepath.Join(t.TempDir(), "hw4.db"), nil)
	defer st.Close()
	hc := cache.NewHashCache(10, st, nil)
	w := New(hc, bus, Config{ParallelThreshold: 100}, nil)

	same := writeTempFile(t, dir, "same.txt", "identical")
	writeTempFile(t, externalDir, "same.txt", "identical")

	different := writeTempFile(t, dir, "different.txt", "source")
	writeTempFile(t, externalDir, "different.txt", "external")

	missing := writeTempFile(t, dir, "missing.txt", "no counterpart")

	received := make(chan ComparisonResultEvent, 1)
	bus.Subscribe(TopicComparisonResult, func(e eventbus.Event) {
		received <- e.(ComparisonResultEvent)
	})

	results, err := w.ExternalComparison(context.Background(), []pathkey.Key{same, different, missing}, AlgorithmCRC32, externalDir)
	if err != nil {
		t.Fatalf("ExternalComparison: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Exists || !results[0].IsSame {
		t.Errorf("same.txt: got %+v, want Exists=true IsSame=true", results[0])
	}
	if !results[1].Exists || results[1].IsSame {
		t.Errorf("different.txt: got %+v, want Exists=true IsSame=false", results[1])
	}
	if results[2].Exists {
		t.Errorf("missing.txt: got %+v, want Exists=false", results[2])
	}

	select {
	case ev := <-received:
		if len(ev.Results) != 3 {
			t.Errorf("ComparisonResultEvent.Results = %+v, want 3", ev.Results)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for comparison_result event")
	}
}

func TestRequestHashesDispatchesByOperation(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWorker(t, Config{ParallelThreshold: 100})
	paths := []pathkey.Key{writeTempFile(t, dir, "a.txt", "hello")}

	checksum, err := w.RequestHashes(context.Background(), paths, AlgorithmCRC32, OperationChecksum, "")
	if err != nil {
		t.Fatalf("RequestHashes(checksums): %v", err)
	}
	if len(checksum.Checksums) != 1 || checksum.Duplicates != nil || checksum.Comparison != nil {
		t.Fatalf("unexpected OpResult for checksums: %+v", checksum)
	}

	dup, err := w.RequestHashes(context.Background(), paths, AlgorithmCRC32, OperationDuplicateScan, "")
	if err != nil {
		t.Fatalf("RequestHashes(duplicates): %v", err)
	}
	if dup.Checksums != nil || dup.Comparison != nil {
		t.Fatalf("unexpected OpResult for duplicates: %+v", dup)
	}
}
