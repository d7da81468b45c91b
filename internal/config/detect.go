package config

import (
	"os"
	"path/filepath"
)

// Detection holds per-language defaults derived from the repo contents.
type Detection struct {
	Language string
	// CacheDirs are repo-relative build/toolchain cache directories that
	// get copy-on-write overlays so container builds stay isolated.
	CacheDirs []string
}

// Detect inspects the repo root and returns the toolchain cache directories
// worth overlaying for its language.
func Detect(repoRoot string) Detection {
	checks := []struct {
		file      string
		language  string
		cacheDirs []string
	}{
		{"Cargo.toml", "rust", []string{"target"}},
		{"package.json", "node", []string{"node_modules", ".next"}},
		{"go.mod", "go", nil},
		{"requirements.txt", "python", []string{".venv", "__pycache__"}},
		{"pyproject.toml", "python", []string{".venv", "__pycache__"}},
	}

	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(repoRoot, c.file)); err == nil {
			var dirs []string
			for _, d := range c.cacheDirs {
				// Only overlay dirs that exist; overlayfs needs a
				// real lower layer.
				if _, err := os.Stat(filepath.Join(repoRoot, d)); err == nil {
					dirs = append(dirs, d)
				}
			}
			return Detection{Language: c.language, CacheDirs: dirs}
		}
	}
	return Detection{Language: "unknown"}
}
