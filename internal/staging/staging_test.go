package staging

import (
	"testing"

	"renamecore/internal/pathkey"
)

func TestStageAndHasStagedChanges(t *testing.T) {
	m := New()
	path := pathkey.Key("/a.jpg")
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}

	if m.HasStagedChanges(path) {
		t.Fatal("expected no staged changes initially")
	}
	m.Stage(path, kp, "OldCam", "NewCam")
	if !m.HasStagedChanges(path) {
		t.Fatal("expected staged change to be recorded")
	}

	changes := m.Changes(path)
	if len(changes) != 1 || changes[0].NewValue != "NewCam" {
		t.Fatalf("unexpected changes: %+v", changes)
	}
}

func TestStageBackToOriginalRemovesField(t *testing.T) {
	m := New()
	path := pathkey.Key("/a.jpg")
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}

	m.Stage(path, kp, "OldCam", "NewCam")
	m.Stage(path, kp, "OldCam", "OldCam") // edit back to original
	if m.HasStagedChanges(path) {
		t.Fatal("expected staging the original value back to clear the field")
	}
}

func TestClearSingleFile(t *testing.T) {
	m := New()
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}
	m.Stage("/a.jpg", kp, "x", "y")
	m.Stage("/b.jpg", kp, "x", "y")

	m.Clear("/a.jpg")
	if m.HasStagedChanges("/a.jpg") {
		t.Error("expected /a.jpg to be cleared")
	}
	if !m.HasStagedChanges("/b.jpg") {
		t.Error("expected /b.jpg to remain staged")
	}
}

func TestClearAll(t *testing.T) {
	m := New()
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}
	m.Stage("/a.jpg", kp, "x", "y")
	m.Stage("/b.jpg", kp, "x", "y")

	m.Clear("")
	if m.HasStagedChanges("") {
		t.Error("expected all staged changes to be cleared")
	}
}

func TestReconcileAgainstOriginal(t *testing.T) {
	m := New()
	path := pathkey.Key("/a.jpg")
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}

	m.Stage(path, kp, "OldCam", "NewCam")
	m.ReconcileAgainstOriginal(path, kp, "NewCam") // disk now matches staged value
	if m.HasStagedChanges(path) {
		t.Error("expected reconciliation to clear a field matching the original")
	}
}

func TestCommitClearsField(t *testing.T) {
	m := New()
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}
	m.Stage("/a.jpg", kp, "x", "y")
	m.Commit("/a.jpg")
	if m.HasStagedChanges("/a.jpg") {
		t.Error("expected Commit to clear staged changes")
	}
}
