package repository

import (
	"os"
	"path/filepath"
	"testing"
)

func newWorkspace(t *testing.T, files map[string]string) *LocalWorkspace {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return NewLocalWorkspace(root)
}

func TestReadFile(t *testing.T) {
	w := newWorkspace(t, map[string]string{"src/main.go": "package main\n"})

	content, err := w.ReadFile("src/main.go")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "package main\n" {
		t.Errorf("content = %q", content)
	}
}

func TestReadFileBlocksTraversal(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.go": "package a\n"})

	for _, path := range []string{"../secrets.txt", "../../etc/passwd", "a/../../b"} {
		if _, err := w.ReadFile(path); err == nil {
			t.Errorf("expected traversal error for %q", path)
		}
	}
}

func TestFileExists(t *testing.T) {
	w := newWorkspace(t, map[string]string{"dir/file.go": "x\n"})

	if !w.FileExists("dir/file.go") {
		t.Error("existing file reported missing")
	}
	if w.FileExists("dir") {
		t.Error("directory reported as file")
	}
	if w.FileExists("missing.go") {
		t.Error("missing file reported present")
	}
	if w.FileExists("../outside") {
		t.Error("traversal path reported present")
	}
}

func TestGrepScoped(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.go": "func Validate() {}\nfunc other() {}\n",
		"b.go": "Validate()\n",
	})

	matches, err := w.Grep("Validate", "a.go")
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(matches) != 1 || matches[0].File != "a.go" || matches[0].Line != 1 {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestGrepWholeWorkspace(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.go":       "password := \"hunter2\"\n",
		"sub/b.go":   "// no secrets here\n",
		"sub/c.go":   "password := os.Getenv(\"PW\")\n",
		"image.png":  "\x89PNG",
		".git/HEAD":  "ref: refs/heads/main\n",
	})

	matches, err := w.Grep("password")
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
}

func TestGrepInvalidPattern(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.go": "x\n"})
	if _, err := w.Grep("(unclosed"); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestListFilesSkipsGitAndBinaries(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"main.go":     "package main\n",
		".git/config": "[core]\n",
		"logo.png":    "binary",
	})

	files, err := w.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "main.go" {
		t.Errorf("unexpected files: %v", files)
	}
}
