// Package coordinator owns the loaded-file list and its selection (C14),
// publishing the four state-change topics spec.md §4.14 calls out so every
// other component learns about a change by subscribing rather than being
// called directly — the same decoupling internal/eventbus exists for.
// The teacher has no equivalent: its FileWithInfo/FileCandidate state
// lives only for the duration of one backup run (files.go), so this
// package's shape is new, built in the teacher's idiom of small plain
// structs and explicit slices rather than an observer-pattern class tree.
package coordinator

import (
	"sync"

	"renamecore/internal/eventbus"
	"renamecore/internal/pathkey"
)

// Topics published by Coordinator.
const (
	TopicFilesChanged       = "coordinator.files_changed"
	TopicSelectionChanged   = "coordinator.selection_changed"
	TopicPreviewInvalidated = "coordinator.preview_invalidated"
	TopicMetadataChanged    = "coordinator.metadata_changed"
)

// FileItem is one entry in the loaded-files list.
type FileItem struct {
	Path pathkey.Key
	Name string
}

// FolderSnapshot is the full loaded-files list at a point in time.
type FolderSnapshot struct {
	Root  string
	Files []FileItem
}

// FilesChangedEvent is published whenever the loaded-file list itself
// changes (a folder is (re)loaded, or files are added/removed).
type FilesChangedEvent struct {
	Snapshot FolderSnapshot
}

// SelectionChangedEvent is published whenever the active selection changes.
type SelectionChangedEvent struct {
	Selected []pathkey.Key
}

// PreviewInvalidatedEvent is published alongside FilesChangedEvent and
// MetadataChangedEvent per spec.md's rule that either kind of change can
// invalidate a rename preview.
type PreviewInvalidatedEvent struct{}

// MetadataChangedEvent is published whenever metadata for one or more
// files changes (a load completes, or a save commits).
type MetadataChangedEvent struct {
	Paths []pathkey.Key
}

// Coordinator owns the current folder snapshot and selection.
type Coordinator struct {
	bus *eventbus.Bus

	mu       sync.Mutex
	snapshot FolderSnapshot
	selected map[pathkey.Key]bool
}

// New constructs a Coordinator publishing onto bus.
func New(bus *eventbus.Bus) *Coordinator {
	return &Coordinator{bus: bus, selected: make(map[pathkey.Key]bool)}
}

// SetFiles replaces the loaded-file list, publishing files_changed and
// preview_invalidated, and drops any selection that no longer exists.
func (c *Coordinator) SetFiles(snapshot FolderSnapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	valid := make(map[pathkey.Key]bool, len(snapshot.Files))
	for _, f := range snapshot.Files {
		valid[f.Path] = true
	}
	for p := range c.selected {
		if !valid[p] {
			delete(c.selected, p)
		}
	}
	c.mu.Unlock()

	c.publish(TopicFilesChanged, FilesChangedEvent{Snapshot: snapshot})
	c.publish(TopicPreviewInvalidated, PreviewInvalidatedEvent{})
}

// Files returns the current snapshot.
func (c *Coordinator) Files() FolderSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// SetSelection replaces the active selection, publishing selection_changed.
func (c *Coordinator) SetSelection(paths []pathkey.Key) {
	c.mu.Lock()
	c.selected = make(map[pathkey.Key]bool, len(paths))
	for _, p := range paths {
		c.selected[p] = true
	}
	c.mu.Unlock()

	c.publish(TopicSelectionChanged, SelectionChangedEvent{Selected: paths})
}

// Selection returns the currently selected paths.
func (c *Coordinator) Selection() []pathkey.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pathkey.Key, 0, len(c.selected))
	for p := range c.selected {
		out = append(out, p)
	}
	return out
}

// NotifyMetadataChanged publishes metadata_changed and
// preview_invalidated for the given paths, the pairing spec.md §4.14
// requires whenever metadata is loaded or saved.
func (c *Coordinator) NotifyMetadataChanged(paths []pathkey.Key) {
	c.publish(TopicMetadataChanged, MetadataChangedEvent{Paths: paths})
	c.publish(TopicPreviewInvalidated, PreviewInvalidatedEvent{})
}

func (c *Coordinator) publish(topic string, event eventbus.Event) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(topic, event)
}
