package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Env)
	assert.Empty(t, cfg.Image.Tag)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	data := `
env: [GITHUB_TOKEN, NPM_TOKEN]
mounts:
  readonly:
    - host: ~/.config/nvim
  unsafe-write:
    - host: ~/.local/share/scratch
      container: /scratch
  overlay:
    - host: ./node_modules
image:
  tag: ghcr.io/org/dev:latest
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, File), []byte(data), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"GITHUB_TOKEN", "NPM_TOKEN"}, cfg.Env)
	assert.Equal(t, "ghcr.io/org/dev:latest", cfg.Image.Tag)
	require.Len(t, cfg.Mounts.ReadOnly, 1)
	require.Len(t, cfg.Mounts.UnsafeWrite, 1)
	require.Len(t, cfg.Mounts.Overlay, 1)
	assert.Equal(t, "/scratch", cfg.Mounts.UnsafeWrite[0].Container)
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, File), []byte("env: {bad"), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("SANDBOX_TEST_TOKEN", "secret")
	cfg := &Config{Env: []string{"SANDBOX_TEST_TOKEN"}}
	env, err := cfg.ResolveEnv()
	require.NoError(t, err)
	assert.Equal(t, "secret", env["SANDBOX_TEST_TOKEN"])
}

func TestResolveEnvMissing(t *testing.T) {
	cfg := &Config{Env: []string{"SANDBOX_TEST_DEFINITELY_UNSET"}}
	_, err := cfg.ResolveEnv()
	assert.Error(t, err)
}

func TestExpandHost(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"~", "/home/alice"},
		{"~/.config/nvim", "/home/alice/.config/nvim"},
		{"/abs/path", "/abs/path"},
		{"./node_modules", "/repo/node_modules"},
		{"vendor", "/repo/vendor"},
	}
	for _, tt := range tests {
		got := ExpandHost(tt.path, "/repo", "/home/alice")
		assert.Equal(t, tt.want, got, "path %q", tt.path)
	}
}

func TestExpandContainer(t *testing.T) {
	// Defaults to the expanded host path.
	e := Entry{Host: "~/.config/nvim"}
	got := ExpandContainer(e, "/repo", "/home/alice", "/home/alice")
	assert.Equal(t, "/home/alice/.config/nvim", got)

	// Explicit container path, ~ mapped to the container home.
	e = Entry{Host: "/data", Container: "~/data"}
	got = ExpandContainer(e, "/repo", "/home/alice", "/home/bob")
	assert.Equal(t, "/home/bob/data", got)
}
