// Package discovery enumerates the source files fed into the analysis
// pipeline. Inside a git repository it trusts the index and lists tracked
// files; anywhere else it walks the filesystem. Either way the result is
// filtered by include/exclude globs, size, and a binary sniff, and returned
// in deterministic path order.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goGit "github.com/go-git/go-git/v5"

	"github.com/bkyoung/secscan/internal/config"
	"github.com/bkyoung/secscan/internal/domain"
)

// Walker discovers source files under a root directory.
type Walker struct {
	root         string
	include      []string
	exclude      []string
	maxFileBytes int64
}

// NewWalker creates a Walker for the given root using discovery settings
// from the configuration.
func NewWalker(root string, cfg config.DiscoveryConfig) *Walker {
	return &Walker{
		root:         root,
		include:      cfg.Include,
		exclude:      cfg.Exclude,
		maxFileBytes: cfg.MaxFileBytes,
	}
}

// Discover returns the source units to scan, sorted by path. Files that
// cannot be read are skipped rather than failing the run.
func (w *Walker) Discover(ctx context.Context) ([]domain.SourceUnit, error) {
	paths, err := w.candidatePaths(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	units := make([]domain.SourceUnit, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !w.selected(rel) {
			continue
		}

		full := filepath.Join(w.root, rel)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		if w.maxFileBytes > 0 && info.Size() > w.maxFileBytes {
			continue
		}

		content, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		if looksBinary(content) {
			continue
		}

		units = append(units, domain.SourceUnit{
			Path:     filepath.ToSlash(rel),
			Content:  string(content),
			Language: DetectLanguage(rel),
		})
	}
	return units, nil
}

// candidatePaths lists relative paths under the root, preferring the git
// index when the root is inside a repository.
func (w *Walker) candidatePaths(ctx context.Context) ([]string, error) {
	if paths, err := w.trackedPaths(); err == nil {
		return paths, nil
	}
	return w.walkPaths(ctx)
}

// trackedPaths enumerates files from the git index. Untracked and ignored
// files never reach the pipeline this way, which keeps vendored blobs and
// build output out of scan scope.
func (w *Walker) trackedPaths() ([]string, error) {
	repo, err := goGit.PlainOpenWithOptions(w.root, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	// The index is relative to the worktree root, which may be above the
	// configured scan root when scanning a subdirectory.
	prefix := ""
	if wt.Filesystem.Root() != "" {
		absRoot, err := filepath.Abs(w.root)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(wt.Filesystem.Root(), absRoot)
		if err != nil {
			return nil, err
		}
		if rel != "." {
			prefix = filepath.ToSlash(rel) + "/"
		}
	}

	paths := make([]string, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		name := entry.Name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			name = strings.TrimPrefix(name, prefix)
		}
		paths = append(paths, filepath.FromSlash(name))
	}
	return paths, nil
}

// walkPaths enumerates files by walking the filesystem, skipping VCS
// metadata directories.
func (w *Walker) walkPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

// selected applies include/exclude globs and the binary extension filter.
// Exclude wins over include.
func (w *Walker) selected(rel string) bool {
	slashed := filepath.ToSlash(rel)

	if isBinaryExtension(slashed) {
		return false
	}
	for _, pattern := range w.exclude {
		if matchGlob(pattern, slashed) {
			return false
		}
	}
	if len(w.include) == 0 {
		return true
	}
	for _, pattern := range w.include {
		if matchGlob(pattern, slashed) {
			return true
		}
	}
	return false
}

// matchGlob matches a slash-separated path against a glob pattern. A single
// ** segment matches any number of path components.
func matchGlob(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
		// A bare filename pattern matches at any depth.
		if !strings.Contains(pattern, "/") {
			if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
				return true
			}
		}
		return false
	}

	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		if !strings.HasPrefix(path, prefix+"/") && path != prefix {
			return false
		}
		path = strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
	}
	if suffix == "" {
		return true
	}
	if matched, err := filepath.Match(suffix, filepath.Base(path)); err == nil && matched {
		return true
	}
	// Suffix may itself contain path components, e.g. **/testdata/*.json.
	if strings.Contains(suffix, "/") {
		segs := strings.Split(path, "/")
		sufSegs := strings.Split(suffix, "/")
		if len(segs) >= len(sufSegs) {
			tail := segs[len(segs)-len(sufSegs):]
			matchedAll := true
			for i, s := range sufSegs {
				if ok, err := filepath.Match(s, tail[i]); err != nil || !ok {
					matchedAll = false
					break
				}
			}
			if matchedAll {
				return true
			}
		}
	}
	return false
}
