package metadataadapter

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestCloseWithoutStartIsNoop(t *testing.T) {
	a := New("exiftool", 5*time.Second, 2, nil)
	if err := a.Close(); err != nil {
		t.Fatalf("Close on never-started adapter: %v", err)
	}
}

func TestReadExtendedSurfacesExternalToolErrorWhenToolMissing(t *testing.T) {
	if _, err := exec.LookPath("exiftool-definitely-not-installed"); err == nil {
		t.Skip("unexpectedly found a binary with this name in PATH")
	}

	a := New("exiftool-definitely-not-installed", time.Second, 1, nil)
	defer a.Close()

	_, err := a.ReadExtended(context.Background(), "testdata/sample.jpg")
	if err == nil {
		t.Fatal("expected an error when the external tool binary does not exist")
	}
}

func TestFastReaderSkipsUnsupportedExtension(t *testing.T) {
	r := newFastReader()
	if _, ok := r.read("/tmp/video.mp4"); ok {
		t.Fatal("expected fast reader to decline a non-image extension")
	}
}

func TestFastReaderMissingFile(t *testing.T) {
	r := newFastReader()
	if _, ok := r.read("/nonexistent/path/does-not-exist.jpg"); ok {
		t.Fatal("expected fast reader to report ok=false for a missing file")
	}
}
