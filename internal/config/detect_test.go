package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		dirs      []string
		wantLang  string
		wantCache []string
	}{
		{"rust with target", []string{"Cargo.toml"}, []string{"target"}, "rust", []string{"target"}},
		{"rust without target", []string{"Cargo.toml"}, nil, "rust", nil},
		{"node", []string{"package.json"}, []string{"node_modules"}, "node", []string{"node_modules"}},
		{"go", []string{"go.mod"}, nil, "go", nil},
		{"unknown", nil, nil, "unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644)
			}
			for _, d := range tt.dirs {
				os.MkdirAll(filepath.Join(dir, d), 0o755)
			}

			det := Detect(dir)
			if det.Language != tt.wantLang {
				t.Errorf("Language = %q, want %q", det.Language, tt.wantLang)
			}
			if len(det.CacheDirs) != len(tt.wantCache) {
				t.Fatalf("CacheDirs = %v, want %v", det.CacheDirs, tt.wantCache)
			}
			for i := range tt.wantCache {
				if det.CacheDirs[i] != tt.wantCache[i] {
					t.Errorf("CacheDirs[%d] = %q, want %q", i, det.CacheDirs[i], tt.wantCache[i])
				}
			}
		})
	}
}
