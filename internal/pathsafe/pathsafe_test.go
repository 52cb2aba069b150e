package pathsafe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestJoin(t *testing.T) {
	root := t.TempDir()

	got, err := Join(root, "report.json")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != filepath.Join(root, "report.json") {
		t.Errorf("got %q", got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("result not absolute: %q", got)
	}
}

func TestJoinNested(t *testing.T) {
	root := t.TempDir()
	got, err := Join(root, "engagement-42", "report.json")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !strings.HasPrefix(got, root) {
		t.Errorf("nested path %q not under %q", got, root)
	}
}

func TestJoinRejectsEscape(t *testing.T) {
	root := t.TempDir()
	cases := []string{
		"../outside.json",
		"../../etc/passwd",
		"a/../../outside.json",
	}
	for _, elem := range cases {
		if _, err := Join(root, elem); !errors.Is(err, ErrEscape) {
			t.Errorf("Join(%q) = %v, want ErrEscape", elem, err)
		}
	}
}

func TestJoinDotDotWithinRoot(t *testing.T) {
	root := t.TempDir()
	got, err := Join(root, "a", "..", "b.json")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != filepath.Join(root, "b.json") {
		t.Errorf("got %q", got)
	}
}

func TestJoinEmptyRoot(t *testing.T) {
	if _, err := Join(""); err == nil {
		t.Error("empty root must be rejected")
	}
}
