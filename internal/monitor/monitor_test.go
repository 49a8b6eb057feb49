package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"renamecore/internal/eventbus"
)

func newTestMonitor(t *testing.T, bus *eventbus.Bus) *Monitor {
	t.Helper()
	m, err := New(bus, Config{DriveScanInterval: 50 * time.Millisecond, FolderDebounce: 30 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestPauseResumeSuppressesEvents(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()
	m := newTestMonitor(t, bus)

	received := make(chan DriveEvent, 4)
	bus.Subscribe(TopicDriveAdded, func(e eventbus.Event) { received <- e.(DriveEvent) })

	resume := m.Pause()
	m.publishDrive(TopicDriveAdded, "/Volumes/Fake")

	select {
	case <-received:
		t.Fatal("expected no event while paused")
	case <-time.After(100 * time.Millisecond):
	}

	resume()
	m.publishDrive(TopicDriveAdded, "/Volumes/Fake")
	select {
	case ev := <-received:
		if ev.Root != "/Volumes/Fake" {
			t.Errorf("Root = %q, want /Volumes/Fake", ev.Root)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event after resume")
	}
}

func TestNestedPauseRequiresMatchingResumes(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()
	m := newTestMonitor(t, bus)

	resumeA := m.Pause()
	resumeB := m.Pause()
	resumeA()
	if !m.isPaused() {
		t.Fatal("expected monitor to remain paused until all resumes are called")
	}
	resumeB()
	if m.isPaused() {
		t.Fatal("expected monitor to resume once all nested pauses are released")
	}
}

func TestFolderWatchIgnoreGlob(t *testing.T) {
	bus := eventbus.New(8)
	m, err := New(bus, Config{FolderDebounce: 10 * time.Millisecond, IgnoreGlobs: []string{"*.tmp"}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()
	defer bus.Close()

	if !m.ignored("/a/b/file.tmp") {
		t.Error("expected *.tmp to be ignored")
	}
	if m.ignored("/a/b/file.jpg") {
		t.Error("expected file.jpg to not be ignored")
	}
}

func TestWatchFolderAndFileChangeEvent(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New(8)
	defer bus.Close()
	m := newTestMonitor(t, bus)
	m.Start()

	if err := m.WatchFolder(dir); err != nil {
		t.Fatalf("WatchFolder: %v", err)
	}

	received := make(chan FileChangeEvent, 4)
	bus.Subscribe(TopicFileChanged, func(e eventbus.Event) { received <- e.(FileChangeEvent) })

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a debounced file change event")
	}
}
