package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"renamecore/internal/hashworker"
	"renamecore/internal/pathkey"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()
	c, err := New(Options{
		ProjectDir: dir,
		DBPath:     filepath.Join(dir, "cache.db"),
	})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func TestNewWiresEverySubsystem(t *testing.T) {
	c := newTestContext(t)
	if c.Store == nil || c.HashCache == nil || c.MetaCache == nil || c.Adapter == nil ||
		c.HashWorker == nil || c.MetaWorker == nil || c.Staging == nil || c.Commands == nil ||
		c.Writeback == nil || c.Coordinator == nil || c.Bus == nil {
		t.Fatal("expected every subsystem to be wired by New")
	}
}

func TestStageAndUndoRedoThroughFacade(t *testing.T) {
	c := newTestContext(t)
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}
	path := pathkey.Key("/a.jpg")

	c.StageChange(path, kp, "Old", "New")
	if !c.HasStagedChanges(path) {
		t.Fatal("expected staged change to be visible through the facade")
	}

	if !c.CanUndo() {
		t.Fatal("expected CanUndo to be true after staging")
	}
	c.Undo()
	if c.HasStagedChanges(path) {
		t.Error("expected Undo to revert the staged change")
	}
	if !c.CanRedo() {
		t.Fatal("expected CanRedo to be true after Undo")
	}
	c.Redo()
	if !c.HasStagedChanges(path) {
		t.Error("expected Redo to restore the staged change")
	}
}

func TestClearStagingThroughFacade(t *testing.T) {
	c := newTestContext(t)
	kp := pathkey.KeyPath{Group: pathkey.GroupEXIF, Field: "Model"}
	path := pathkey.Key("/a.jpg")

	c.StageChange(path, kp, "Old", "New")
	c.ClearStaging(path)
	if c.HasStagedChanges(path) {
		t.Error("expected ClearStaging to remove the pending edit")
	}
}

func TestInvalidateDoesNotError(t *testing.T) {
	c := newTestContext(t)
	if err := c.Invalidate(context.Background(), "/a.jpg", []string{"crc32"}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := c.InvalidateDrive(context.Background(), "/a"); err != nil {
		t.Fatalf("InvalidateDrive: %v", err)
	}
}

func TestRequestHashesThroughFacade(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{ProjectDir: dir, DBPath: filepath.Join(dir, "cache.db")})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	defer c.Close(context.Background())

	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := c.RequestHashes(context.Background(), []pathkey.Key{pathkey.Key(file)}, "crc32", hashworker.OperationChecksum, "")
	if err != nil {
		t.Fatalf("RequestHashes: %v", err)
	}
	if len(result.Checksums) != 1 || result.Checksums[0].Err != nil {
		t.Fatalf("unexpected results: %+v", result.Checksums)
	}
}

func TestRequestHashesDuplicateScanThroughFacade(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{ProjectDir: dir, DBPath: filepath.Join(dir, "cache.db")})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	defer c.Close(context.Background())

	fileA := filepath.Join(dir, "a.txt")
	fileB := filepath.Join(dir, "b.txt")
	fileC := filepath.Join(dir, "c.txt")
	if err := os.WriteFile(fileA, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fileB, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fileC, []byte("different"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths := []pathkey.Key{pathkey.Key(fileA), pathkey.Key(fileB), pathkey.Key(fileC)}
	result, err := c.RequestHashes(context.Background(), paths, "crc32", hashworker.OperationDuplicateScan, "")
	if err != nil {
		t.Fatalf("RequestHashes: %v", err)
	}
	if len(result.Duplicates) != 1 || len(result.Duplicates[0].Paths) != 2 {
		t.Fatalf("expected one duplicate group of 2, got: %+v", result.Duplicates)
	}
}
