package coordinator

import (
	"testing"
	"time"

	"renamecore/internal/eventbus"
	"renamecore/internal/pathkey"
)

func TestSetFilesPublishesChangedAndInvalidated(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()
	c := New(bus)

	changed := make(chan FilesChangedEvent, 1)
	invalidated := make(chan PreviewInvalidatedEvent, 1)
	bus.Subscribe(TopicFilesChanged, func(e eventbus.Event) { changed <- e.(FilesChangedEvent) })
	bus.Subscribe(TopicPreviewInvalidated, func(e eventbus.Event) { invalidated <- e.(PreviewInvalidatedEvent) })

	snap := FolderSnapshot{Root: "/a", Files: []FileItem{{Path: "/a/1.jpg", Name: "1.jpg"}}}
	c.SetFiles(snap)

	select {
	case ev := <-changed:
		if len(ev.Snapshot.Files) != 1 {
			t.Errorf("expected 1 file in snapshot, got %d", len(ev.Snapshot.Files))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for files_changed")
	}
	select {
	case <-invalidated:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for preview_invalidated")
	}
}

func TestSetFilesDropsStaleSelection(t *testing.T) {
	c := New(nil)
	c.SetFiles(FolderSnapshot{Files: []FileItem{{Path: "/a/1.jpg"}, {Path: "/a/2.jpg"}}})
	c.SetSelection([]pathkey.Key{"/a/1.jpg", "/a/2.jpg"})

	c.SetFiles(FolderSnapshot{Files: []FileItem{{Path: "/a/2.jpg"}}})
	sel := c.Selection()
	if len(sel) != 1 || sel[0] != "/a/2.jpg" {
		t.Errorf("expected stale selection dropped, got %v", sel)
	}
}

func TestNotifyMetadataChangedPublishesBothTopics(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()
	c := New(bus)

	metaCh := make(chan MetadataChangedEvent, 1)
	invCh := make(chan PreviewInvalidatedEvent, 1)
	bus.Subscribe(TopicMetadataChanged, func(e eventbus.Event) { metaCh <- e.(MetadataChangedEvent) })
	bus.Subscribe(TopicPreviewInvalidated, func(e eventbus.Event) { invCh <- e.(PreviewInvalidatedEvent) })

	c.NotifyMetadataChanged([]pathkey.Key{"/a.jpg"})

	select {
	case <-metaCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for metadata_changed")
	}
	select {
	case <-invCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for preview_invalidated")
	}
}
