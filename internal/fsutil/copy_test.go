package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	writeFile(t, src, "payload")

	dest := filepath.Join(dir, "nested", "deep", "dest.txt")
	if err := CopyFile(src, dest); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("copied content = %q", data)
	}
}

func TestCopyFileFollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.env")
	writeFile(t, target, "KEY=value")
	link := filepath.Join(dir, "link.env")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	dest := filepath.Join(dir, "out", "copied.env")
	if err := CopyFile(link, dest); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}

	info, err := os.Lstat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("destination is a symlink, expected a regular file")
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "KEY=value" {
		t.Errorf("copied content = %q", data)
	}
}

func TestCopyTreeMerges(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")

	dest := filepath.Join(dir, "dest")
	// Pre-existing content must survive the merge.
	writeFile(t, filepath.Join(dest, "existing.txt"), "keep")

	if err := CopyTree(src, dest); err != nil {
		t.Fatalf("CopyTree returned error: %v", err)
	}

	for path, want := range map[string]string{
		filepath.Join(dest, "a.txt"):        "a",
		filepath.Join(dest, "sub", "b.txt"): "b",
		filepath.Join(dest, "existing.txt"): "keep",
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing %s: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", path, data, want)
		}
	}
}

func TestMakeExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restore.sh")
	writeFile(t, path, "#!/bin/sh\n")

	if err := MakeExecutable(path); err != nil {
		t.Fatalf("MakeExecutable returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o100 == 0 {
		t.Error("owner execute bit not set")
	}
}
