package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bkyoung/secscan/internal/config"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverWalksAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/handler.go", "package b\n")
	writeFile(t, root, "a/auth.py", "import os\n")
	writeFile(t, root, "readme.txt", "hello\n")

	w := NewWalker(root, config.DiscoveryConfig{})
	units, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if units[0].Path != "a/auth.py" || units[1].Path != "b/handler.go" {
		t.Errorf("units not sorted by path: %q, %q", units[0].Path, units[1].Path)
	}
	if units[0].Language != "python" {
		t.Errorf("expected python, got %q", units[0].Language)
	}
	if units[1].Language != "go" {
		t.Errorf("expected go, got %q", units[1].Language)
	}
	if units[2].Language != "" {
		t.Errorf("expected no language for txt, got %q", units[2].Language)
	}
}

func TestDiscoverExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.go", "package main\n")
	writeFile(t, root, "vendor/dep/dep.go", "package dep\n")
	writeFile(t, root, "src/main_test.go", "package main\n")

	w := NewWalker(root, config.DiscoveryConfig{
		Exclude: []string{"vendor/**", "*_test.go"},
	})
	units, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Path != "src/main.go" {
		t.Errorf("unexpected unit %q", units[0].Path)
	}
}

func TestDiscoverIncludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.py", "pass\n")
	writeFile(t, root, "sub/c.go", "package c\n")

	w := NewWalker(root, config.DiscoveryConfig{
		Include: []string{"**/*.go", "*.go"},
	})
	units, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	for _, u := range units {
		if filepath.Ext(u.Path) != ".go" {
			t.Errorf("included non-go file %q", u.Path)
		}
	}
}

func TestDiscoverSkipsLargeAndBinaryFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "package small\n")
	writeFile(t, root, "big.go", string(make([]byte, 2048)))
	writeFile(t, root, "blob.dat", "abc\x00def")

	w := NewWalker(root, config.DiscoveryConfig{MaxFileBytes: 1024})
	units, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(units) != 1 || units[0].Path != "small.go" {
		t.Fatalf("expected only small.go, got %+v", units)
	}
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "src/main.go", true}, // bare pattern matches at depth
		{"src/*.go", "src/main.go", true},
		{"src/*.go", "src/deep/main.go", false},
		{"vendor/**", "vendor/x/y.go", true},
		{"vendor/**", "src/vendor.go", false},
		{"**/*.min.js", "assets/app.min.js", true},
		{"**/testdata/*.json", "a/b/testdata/x.json", true},
		{"**/testdata/*.json", "a/b/x.json", false},
		{"node_modules/**", "node_modules/pkg/index.js", true},
	}

	for _, tc := range cases {
		if got := matchGlob(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
