package discovery

import (
	"path/filepath"
	"strings"
)

// languageByExtension maps file extensions to the language tag carried on
// source units. The tag selects the symbol parser during triage; files with
// no mapping still get scanned, just without symbol tooling.
var languageByExtension = map[string]string{
	".go":   "go",
	".py":   "python",
	".java": "java",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".c":    "c",
	".h":    "c",
	".rb":   "ruby",
	".php":  "php",
	".rs":   "rust",
	".cs":   "csharp",
	".kt":   "kotlin",
	".sh":   "shell",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
}

// DetectLanguage returns the language tag for a path, or "" when unknown.
func DetectLanguage(path string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(path))]
}

// binaryExtensions lists extensions that are never source code.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".svg": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true,
	".o": true, ".a": true, ".obj": true, ".class": true, ".jar": true,
	".wasm": true, ".bin": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true,
}

func isBinaryExtension(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}

// looksBinary reports whether the content sniffs as binary. A NUL byte in
// the first 8000 bytes is the same heuristic git uses.
func looksBinary(content []byte) bool {
	limit := len(content)
	if limit > 8000 {
		limit = 8000
	}
	for _, b := range content[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
