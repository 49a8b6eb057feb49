package metadataworker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"renamecore/internal/cache"
	"renamecore/internal/eventbus"
	"renamecore/internal/metadataadapter"
	"renamecore/internal/pathkey"
	"renamecore/internal/store"
)

func newTestWorker(t *testing.T) (*Worker, *cache.MetadataCache) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "mw.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	mc := cache.NewMetadataCache(10, st, nil)
	adapter := metadataadapter.New("exiftool-definitely-not-installed", time.Second, 1, nil)
	t.Cleanup(func() { adapter.Close() })
	return New(mc, adapter, nil, nil), mc
}

func TestLoadOneSurfacesAdapterError(t *testing.T) {
	w, _ := newTestWorker(t)
	_, err := w.LoadOne(context.Background(), pathkey.Key("/nonexistent.jpg"), false)
	if err == nil {
		t.Fatal("expected an error when the external tool is unavailable and no fast path applies")
	}
}

func TestLoadOneServesFromCacheWithoutReread(t *testing.T) {
	w, mc := newTestWorker(t)
	path := pathkey.Key("/a.jpg")
	mc.Set(path, map[string]interface{}{"EXIF/Model": "Canon", markerExtended: true})

	entry, err := w.LoadOne(context.Background(), path, true)
	if err != nil {
		t.Fatalf("LoadOne: %v", err)
	}
	if entry.Data["EXIF/Model"] != "Canon" {
		t.Errorf("expected cached data to be returned, got %v", entry.Data)
	}
}

func TestLoadBatchPublishesProgress(t *testing.T) {
	w, mc := newTestWorker(t)
	bus := eventbus.New(8)
	defer bus.Close()
	w.bus = bus

	mc.Set("/a.jpg", map[string]interface{}{"k": "a"})
	mc.Set("/b.jpg", map[string]interface{}{"k": "b"})

	received := make(chan ProgressEvent, 4)
	bus.Subscribe(TopicProgress, func(e eventbus.Event) { received <- e.(ProgressEvent) })

	results, err := w.LoadBatch(context.Background(), []pathkey.Key{"/a.jpg", "/b.jpg"}, true)
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	select {
	case ev := <-received:
		if ev.Total != 2 {
			t.Errorf("ProgressEvent.Total = %d, want 2", ev.Total)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestLoadStreamDeliversEachResult(t *testing.T) {
	w, mc := newTestWorker(t)
	mc.Set("/a.jpg", map[string]interface{}{"k": "a"})
	mc.Set("/b.jpg", map[string]interface{}{"k": "b"})

	ch := w.LoadStream(context.Background(), []pathkey.Key{"/a.jpg", "/b.jpg"}, true)

	count := 0
	deadline := time.After(time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				if count != 2 {
					t.Fatalf("received %d results, want 2", count)
				}
				return
			}
			count++
			_ = r
		case <-deadline:
			t.Fatal("timed out waiting for stream results")
		}
	}
}

func TestOrCombineExtendedFlagNeverDowngrades(t *testing.T) {
	w, mc := newTestWorker(t)
	path := pathkey.Key("/a.jpg")
	mc.Set(path, map[string]interface{}{"k": "v", markerExtended: true})

	entry := w.mergeAndStore(context.Background(), path, map[string]interface{}{"k": "v2"})
	if !entry.IsExtended {
		t.Error("expected IsExtended to remain true after merging a non-extended read")
	}
}
