// Package repository provides filesystem access for the triage agent,
// rooted at the scan directory with path traversal blocked.
package repository

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bkyoung/secscan/internal/usecase/triage"
)

// LocalWorkspace implements the triage Workspace port on the local
// filesystem. All paths resolve relative to the root; symlinks are
// followed and re-checked so they cannot escape it.
type LocalWorkspace struct {
	root string
}

// NewLocalWorkspace creates a workspace rooted at the given directory.
func NewLocalWorkspace(root string) *LocalWorkspace {
	return &LocalWorkspace{root: root}
}

// ReadFile reads the contents of a file at the given path.
func (w *LocalWorkspace) ReadFile(path string) ([]byte, error) {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	return os.ReadFile(resolved)
}

// FileExists reports whether a regular file exists at the path. Directories,
// permission errors, and traversal attempts all report false.
func (w *LocalWorkspace) FileExists(path string) bool {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Grep searches for a regex pattern in the given files, or the whole
// workspace when no paths are provided. Unreadable files are skipped.
func (w *LocalWorkspace) Grep(pattern string, paths ...string) ([]triage.GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	filesToSearch := paths
	if len(filesToSearch) == 0 {
		filesToSearch, err = w.ListFiles()
		if err != nil {
			return nil, err
		}
	}

	var matches []triage.GrepMatch
	for _, path := range filesToSearch {
		fileMatches, err := w.grepFile(re, path)
		if err != nil {
			continue
		}
		matches = append(matches, fileMatches...)
	}
	return matches, nil
}

// ListFiles returns every regular file under the root, excluding VCS
// metadata and files that are binary by extension.
func (w *LocalWorkspace) ListFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	return files, nil
}

// resolvePath resolves a path and validates it is inside the workspace
// root. Symlinks resolve to their real target before the containment
// check.
func (w *LocalWorkspace) resolvePath(path string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = path
	} else {
		resolved = filepath.Join(w.root, path)
	}
	resolved = filepath.Clean(resolved)

	realRoot, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		realRoot = filepath.Clean(w.root)
	}

	realPath, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolving symlinks: %w", err)
		}
		rel, relErr := filepath.Rel(realRoot, resolved)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path traversal detected")
		}
		return resolved, nil
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path traversal detected")
	}
	return realPath, nil
}

func (w *LocalWorkspace) grepFile(re *regexp.Regexp, path string) ([]triage.GrepMatch, error) {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var matches []triage.GrepMatch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, triage.GrepMatch{
				File:    path,
				Line:    lineNum,
				Content: line,
			})
		}
	}
	return matches, scanner.Err()
}

// isBinaryFile checks if a file is likely binary based on its extension.
func isBinaryFile(path string) bool {
	binaryExtensions := map[string]bool{
		".exe": true, ".dll": true, ".so": true, ".dylib": true,
		".zip": true, ".tar": true, ".gz": true, ".rar": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
		".pdf": true, ".doc": true, ".docx": true,
		".o": true, ".a": true, ".obj": true,
	}
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
