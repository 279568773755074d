package buildpipeline

import (
	"path/filepath"
	"strings"
)

// DisplayNames shortens input paths for progress output: paths under
// baseDir become relative to it and all of them use forward slashes. The
// order of files is kept.
func DisplayNames(files []string, baseDir string) []string {
	base := strings.TrimSpace(baseDir)
	if base != "" {
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
	}
	out := make([]string, len(files))
	for i, file := range files {
		out[i] = displayName(file, base)
	}
	return out
}

func displayName(file, base string) string {
	if file == "" || file == "-" {
		return file
	}
	path := filepath.Clean(file)
	if base != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if rel, err := filepath.Rel(base, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}
