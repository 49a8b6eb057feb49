package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"renamecore/internal/pathkey"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHashRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := HashRecord{
		Path:       pathkey.Key("/a/b.jpg"),
		Algorithm:  "crc32",
		Digest:     "deadbeef",
		MtimeNs:    123,
		Size:       456,
		ComputedAt: time.Now(),
	}
	if err := s.StoreHash(ctx, rec); err != nil {
		t.Fatalf("StoreHash: %v", err)
	}

	got, ok, err := s.GetHash(ctx, rec.Path, "crc32")
	if err != nil || !ok {
		t.Fatalf("GetHash: ok=%v err=%v", ok, err)
	}
	if got.Digest != rec.Digest {
		t.Errorf("Digest = %q, want %q", got.Digest, rec.Digest)
	}

	rec.Digest = "cafebabe"
	if err := s.StoreHash(ctx, rec); err != nil {
		t.Fatalf("StoreHash overwrite: %v", err)
	}
	got, _, _ = s.GetHash(ctx, rec.Path, "crc32")
	if got.Digest != "cafebabe" {
		t.Errorf("overwrite did not take effect: got %q", got.Digest)
	}
}

func TestHashNotFound(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetHash(context.Background(), pathkey.Key("/missing"), "crc32")
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing record")
	}
}

func TestBatchGetHashes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	paths := []pathkey.Key{"/a", "/b", "/c"}
	for i, p := range paths {
		s.StoreHash(ctx, HashRecord{Path: p, Algorithm: "crc32", Digest: string(rune('0' + i)), ComputedAt: time.Now()})
	}

	got, err := s.BatchGetHashes(ctx, paths, "crc32")
	if err != nil {
		t.Fatalf("BatchGetHashes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := MetadataRecord{
		Path:       pathkey.Key("/a/b.jpg"),
		Data:       map[string]interface{}{"EXIF/Rotation": "90"},
		IsExtended: true,
		UpdatedAt:  time.Now(),
	}
	if err := s.StoreMetadata(ctx, rec); err != nil {
		t.Fatalf("StoreMetadata: %v", err)
	}

	has, err := s.HasMetadata(ctx, rec.Path)
	if err != nil || !has {
		t.Fatalf("HasMetadata: has=%v err=%v", has, err)
	}

	got, ok, err := s.GetMetadata(ctx, rec.Path)
	if err != nil || !ok {
		t.Fatalf("GetMetadata: ok=%v err=%v", ok, err)
	}
	if got.Data["EXIF/Rotation"] != "90" {
		t.Errorf("Data mismatch: %v", got.Data)
	}
	if !got.IsExtended {
		t.Error("expected IsExtended to round-trip true")
	}
}

func TestDeleteUnderPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.StoreHash(ctx, HashRecord{Path: "/root/sub/a.jpg", Algorithm: "crc32", ComputedAt: time.Now()})
	s.StoreHash(ctx, HashRecord{Path: "/root/other.jpg", Algorithm: "crc32", ComputedAt: time.Now()})
	s.StoreMetadata(ctx, MetadataRecord{Path: "/root/sub/a.jpg", Data: map[string]interface{}{}, UpdatedAt: time.Now()})

	if err := s.DeleteHashesUnder(ctx, "/root/sub"); err != nil {
		t.Fatalf("DeleteHashesUnder: %v", err)
	}
	if _, ok, _ := s.GetHash(ctx, "/root/sub/a.jpg", "crc32"); ok {
		t.Error("expected hash under prefix to be deleted")
	}
	if _, ok, _ := s.GetHash(ctx, "/root/other.jpg", "crc32"); !ok {
		t.Error("expected sibling hash outside prefix to survive")
	}

	if err := s.DeleteMetadataUnder(ctx, "/root/sub"); err != nil {
		t.Fatalf("DeleteMetadataUnder: %v", err)
	}
	if has, _ := s.HasMetadata(ctx, "/root/sub/a.jpg"); has {
		t.Error("expected metadata under prefix to be deleted")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := openTestStore(t)
	ctx := context.Background()

	src.StoreHash(ctx, HashRecord{Path: "/x.jpg", Algorithm: "sha256", Digest: "abc", ComputedAt: time.Now()})
	src.StoreMetadata(ctx, MetadataRecord{Path: "/x.jpg", Data: map[string]interface{}{"k": "v"}, UpdatedAt: time.Now()})

	snapPath := filepath.Join(t.TempDir(), "snap.zst")
	if err := src.Export(ctx, snapPath); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := openTestStore(t)
	if err := dst.Import(ctx, snapPath); err != nil {
		t.Fatalf("Import: %v", err)
	}

	got, ok, err := dst.GetHash(ctx, "/x.jpg", "sha256")
	if err != nil || !ok {
		t.Fatalf("GetHash after import: ok=%v err=%v", ok, err)
	}
	if got.Digest != "abc" {
		t.Errorf("Digest after import = %q, want abc", got.Digest)
	}

	meta, ok, err := dst.GetMetadata(ctx, "/x.jpg")
	if err != nil || !ok {
		t.Fatalf("GetMetadata after import: ok=%v err=%v", ok, err)
	}
	if meta.Data["k"] != "v" {
		t.Errorf("metadata did not survive import: %v", meta.Data)
	}
}
