package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "nested", "out", "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := CopyVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Fatalf("copied %d bytes, want %d", n, len(content))
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyVerified_DirectorySource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyVerified(dir, filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for directory source")
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	first := UniquePath(dir, "clip.mp4")
	if first != filepath.Join(dir, "clip.mp4") {
		t.Fatalf("unexpected first path %s", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := UniquePath(dir, "clip.mp4")
	if second != filepath.Join(dir, "clip_2.mp4") {
		t.Fatalf("unexpected second path %s", second)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) || Size(path) != 1 {
		t.Fatal("expected file to exist with size 1")
	}
	removed, err := RemoveIfExists(path)
	if err != nil || !removed {
		t.Fatalf("RemoveIfExists = %v, %v", removed, err)
	}
	removed, err = RemoveIfExists(path)
	if err != nil || removed {
		t.Fatalf("second RemoveIfExists = %v, %v", removed, err)
	}
	if Exists(path) || Size(path) != 0 {
		t.Fatal("expected file to be gone")
	}
}
