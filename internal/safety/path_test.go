package safety

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeJoinUnder(t *testing.T) {
	root := t.TempDir()

	okPath, err := SafeJoinUnder(root, "a/b/c.txt")
	if err != nil {
		t.Fatalf("SafeJoinUnder returned error: %v", err)
	}
	if !strings.HasPrefix(okPath, root) {
		t.Fatalf("path %q is not under root %q", okPath, root)
	}

	if _, err := SafeJoinUnder(root, "../escape.txt"); err == nil {
		t.Fatal("expected traversal path to fail")
	}
	if _, err := SafeJoinUnder(root, "/abs/path.txt"); err == nil {
		t.Fatal("expected absolute path to fail")
	}
}

func TestEnsureUnderRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := EnsureUnderRoot(root, root+"/child/file.txt"); err != nil {
		t.Fatalf("EnsureUnderRoot failed for child path: %v", err)
	}
	if _, err := EnsureUnderRoot(root, root+"/../escape"); err == nil {
		t.Fatal("expected escape path to fail")
	}
}

func TestRelativeTo(t *testing.T) {
	root := t.TempDir()

	rel, err := RelativeTo(root, filepath.Join(root, "conf", "app.env"))
	if err != nil {
		t.Fatalf("RelativeTo returned error: %v", err)
	}
	if rel != filepath.Join("conf", "app.env") {
		t.Fatalf("unexpected relative path %q", rel)
	}

	cases := []struct {
		candidate string
		contained bool
	}{
		{filepath.Join(root, "data"), true},
		{filepath.Join(root, "a", "b", "c"), true},
		{root, true},
		{filepath.Join(root, "..", "other"), false},
		{"/etc/passwd", false},
	}
	for _, tc := range cases {
		_, err := RelativeTo(root, tc.candidate)
		if contained := err == nil; contained != tc.contained {
			t.Errorf("RelativeTo(%q, %q) contained = %v, want %v", root, tc.candidate, contained, tc.contained)
		}
	}
}
