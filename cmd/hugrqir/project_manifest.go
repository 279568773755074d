package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const manifestName = "hugrqir.toml"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
	meta   toml.MetaData
}

type projectConfig struct {
	Build buildConfig `toml:"build"`
}

// buildConfig mirrors the build flags; flags given on the command line win.
type buildConfig struct {
	Inputs       []string `toml:"inputs"`
	OutDir       string   `toml:"out_dir"`
	Format       string   `toml:"format"`
	Target       string   `toml:"target"`
	Validate     bool     `toml:"validate"`
	RewriteEntry bool     `toml:"rewrite_entry"`
	Debug        int      `toml:"debug"`
	SaveGraph    string   `toml:"save_graph"`
	Jobs         int      `toml:"jobs"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	var cfg projectConfig
	meta, err := toml.DecodeFile(manifestPath, &cfg)
	if err != nil {
		return nil, true, fmt.Errorf("%s: failed to parse TOML: %w", manifestPath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, true, fmt.Errorf("%s: unknown keys: %s", manifestPath, strings.Join(keys, ", "))
	}
	if cfg.Build.Jobs < 0 {
		return nil, true, fmt.Errorf("%s: [build].jobs must not be negative", manifestPath)
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
		meta:   meta,
	}, true, nil
}

// defined reports whether [build].key is set in the manifest.
func (m *projectManifest) defined(key string) bool {
	return m != nil && m.meta.IsDefined("build", key)
}

// resolve makes a manifest-relative path absolute.
func (m *projectManifest) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Root, filepath.FromSlash(path))
}
