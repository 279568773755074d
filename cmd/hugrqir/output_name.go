package main

import (
	"path/filepath"
	"strings"

	"hugrqir/internal/buildpipeline"
)

// outputPath derives the artifact path for input inside outDir. An empty
// outDir places the artifact next to its input.
func outputPath(input, outDir string, format buildpipeline.Format) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + format.Extension()
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	return filepath.Join(outDir, name)
}
