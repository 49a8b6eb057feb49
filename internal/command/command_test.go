package command

import (
	"testing"
	"time"

	"renamecore/internal/pathkey"
	"renamecore/internal/staging"
)

func kp(field string) pathkey.KeyPath {
	return pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: field}
}

func TestExecuteAndUndo(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50)

	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "Old", "New"))
	if !s.HasStagedChanges("/a.jpg") {
		t.Fatal("expected staged change after Execute")
	}

	if !m.Undo() {
		t.Fatal("expected Undo to succeed")
	}
	if s.HasStagedChanges("/a.jpg") {
		t.Error("expected staged change to be reverted after Undo")
	}
	if !m.CanRedo() {
		t.Error("expected Redo to be available after Undo")
	}
}

func TestRedo(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50)

	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "Old", "New"))
	m.Undo()
	if !m.Redo() {
		t.Fatal("expected Redo to succeed")
	}
	if !s.HasStagedChanges("/a.jpg") {
		t.Error("expected staged change restored after Redo")
	}
}

func TestNewCommandClearsRedoStack(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50)

	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "Old", "New"))
	m.Undo()
	if !m.CanRedo() {
		t.Fatal("expected redo available before new command")
	}

	m.Execute(NewEditCommand("/b.jpg", kp("Model"), "X", "Y"))
	if m.CanRedo() {
		t.Error("expected redo stack cleared after a new command")
	}
}

func TestGroupingWithinTimeout(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50) // generous timeout so both edits group

	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "A0", "A1"))
	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "A1", "A2"))

	if len(m.History()) != 1 {
		t.Fatalf("expected grouped edits to collapse into one history entry, got %d", len(m.History()))
	}

	m.Undo()
	if s.HasStagedChanges("/a.jpg") {
		t.Error("expected a single Undo to revert the whole group")
	}
}

func TestNoGroupingAcrossDifferentFiles(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50)

	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "A0", "A1"))
	m.Execute(NewEditCommand("/b.jpg", kp("Model"), "B0", "B1"))

	if len(m.History()) != 2 {
		t.Fatalf("expected distinct files to produce separate history entries, got %d", len(m.History()))
	}
}

func TestNoGroupingAcrossDifferentKinds(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50)

	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "A0", "A1"))
	m.Execute(NewResetCommand("/a.jpg", s.Changes("/a.jpg")))

	if len(m.History()) != 2 {
		t.Fatalf("expected edit and reset to not group, got %d history entries", len(m.History()))
	}
}

func TestMaxUndoStepsBound(t *testing.T) {
	s := staging.New()
	m := New(s, time.Nanosecond, 3) // tiny timeout so nothing groups

	for i := 0; i < 10; i++ {
		m.Execute(NewEditCommand("/a.jpg", kp("Model"), "x", "y"))
		time.Sleep(2 * time.Millisecond)
	}
	if len(m.History()) != 3 {
		t.Fatalf("History length = %d, want bounded to 3", len(m.History()))
	}
}

func TestEditCommandDescription(t *testing.T) {
	c := NewEditCommand("/a.jpg", pathkey.KeyPath{Field: "Rotation"}, "0", "90")
	want := "Edit Rotation: 0 → 90"
	if got := c.Description(); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
}

func TestSaveCommandDescriptionSingleFile(t *testing.T) {
	s := staging.New()
	s.Stage("/photos/img.jpg", kp("Model"), "Old", "New")
	c := NewSaveCommand([]pathkey.Key{"/photos/img.jpg"}, map[pathkey.Key][]staging.Change{
		"/photos/img.jpg": s.Changes("/photos/img.jpg"),
	})
	want := "Save metadata: img.jpg"
	if got := c.Description(); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
}

func TestSaveCommandDescriptionMultiFile(t *testing.T) {
	c := NewSaveCommand([]pathkey.Key{"/a.jpg", "/b.jpg"}, nil)
	want := "Save metadata: 2 files"
	if got := c.Description(); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
}

func TestClearHistory(t *testing.T) {
	s := staging.New()
	m := New(s, time.Hour, 50)
	m.Execute(NewEditCommand("/a.jpg", kp("Model"), "x", "y"))
	m.ClearHistory()
	if m.CanUndo() || len(m.History()) != 0 {
		t.Error("expected ClearHistory to empty the undo stack")
	}
}
