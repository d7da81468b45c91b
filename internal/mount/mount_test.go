package mount

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhenriksen/sandbox/internal/config"
	"github.com/jhenriksen/sandbox/internal/repo"
	"github.com/jhenriksen/sandbox/internal/shell"
)

func testIdentity(t *testing.T) (repo.Identity, string, string) {
	t.Helper()
	root := t.TempDir()
	home := t.TempDir()
	return repo.FromRoot(root), filepath.Join(t.TempDir(), "sb"), home
}

func TestPlanCoreEntries(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	user := shell.User{Name: "alice", UID: 1000, GID: 1000, Shell: "/bin/bash"}

	spec := Plan(id, sandboxDir, "foo", user, home, nil, &config.Config{})
	require.NotEmpty(t, spec.Entries)

	// Entry order: shim symlink, repo at shim (ro), clone at repo path (rw).
	assert.Equal(t, SymlinkShim, spec.Entries[0].Kind)
	assert.Equal(t, id.Root, spec.Entries[0].Target)

	assert.Equal(t, BindRO, spec.Entries[1].Kind)
	assert.Equal(t, id.Root, spec.Entries[1].Source)
	assert.Equal(t, ShimPath(sandboxDir, id), spec.Entries[1].Target)

	assert.Equal(t, BindRW, spec.Entries[2].Kind)
	assert.Equal(t, filepath.Join(sandboxDir, "clone"), spec.Entries[2].Source)
	assert.Equal(t, id.Root, spec.Entries[2].Target)
}

func TestPlanFishConfigOnlyForFishUsers(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "fish"), 0o755))

	fish := shell.User{Name: "alice", Shell: "/usr/bin/fish"}
	spec := Plan(id, sandboxDir, "foo", fish, home, nil, nil)
	assert.True(t, hasTarget(spec, "/home/alice/.config/fish"))

	bash := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec = Plan(id, sandboxDir, "foo", bash, home, nil, nil)
	assert.False(t, hasTarget(spec, "/home/alice/.config/fish"))
}

func TestPlanCredentialOverlays(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude.json"), []byte("{}"), 0o600))

	user := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec := Plan(id, sandboxDir, "foo", user, home, nil, nil)

	var claudeDir, claudeJSON *Entry
	for i := range spec.Entries {
		e := &spec.Entries[i]
		switch e.Slug {
		case "claude":
			claudeDir = e
		case "claude-json":
			claudeJSON = e
		}
	}

	require.NotNil(t, claudeDir)
	assert.Equal(t, Overlay, claudeDir.Kind)
	assert.Equal(t, "sandbox-foo-claude", claudeDir.Volume)
	assert.Equal(t, filepath.Join(sandboxDir, "overlay", "claude", "upper"), claudeDir.Upper)

	require.NotNil(t, claudeJSON)
	assert.True(t, claudeJSON.File)
	assert.Equal(t, "/home/alice/.claude.json", claudeJSON.Target)
}

func TestPlanCacheDirOverlays(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	user := shell.User{Name: "alice", Shell: "/bin/bash"}

	spec := Plan(id, sandboxDir, "foo", user, home, []string{"target"}, nil)

	found := false
	for _, e := range spec.Entries {
		if e.Kind == Overlay && e.Source == filepath.Join(id.Root, "target") {
			found = true
			assert.Equal(t, e.Source, e.Target, "cache overlays mount at the host path")
			assert.True(t, strings.HasPrefix(e.Slug, "cache-"))
		}
	}
	assert.True(t, found, "cache dir overlay missing")
}

func TestPlanConfigMounts(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "nvim"), 0o755))
	scratch := filepath.Join(home, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0o755))

	cfg := &config.Config{
		Mounts: config.Mounts{
			ReadOnly:    []config.Entry{{Host: "~/.config/nvim"}},
			UnsafeWrite: []config.Entry{{Host: scratch, Container: "/scratch"}},
		},
	}
	user := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec := Plan(id, sandboxDir, "foo", user, home, nil, cfg)

	assert.True(t, hasEntry(spec, BindRO, filepath.Join(home, ".config/nvim")))
	assert.True(t, hasTarget(spec, "/scratch"))
}

func TestPlanSkipsMissingHostPaths(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	cfg := &config.Config{
		Mounts: config.Mounts{
			ReadOnly: []config.Entry{{Host: "~/.does-not-exist"}},
		},
	}
	user := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec := Plan(id, sandboxDir, "foo", user, home, nil, cfg)
	assert.False(t, hasEntry(spec, BindRO, filepath.Join(home, ".does-not-exist")))
}

func TestDockerArgs(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	user := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec := Plan(id, sandboxDir, "foo", user, home, nil, nil)

	args := strings.Join(spec.DockerArgs(sandboxDir), " ")

	shim := ShimPath(sandboxDir, id)
	assert.Contains(t, args, "type=bind,source="+id.Root+",target="+shim+",readonly")
	assert.Contains(t, args, "type=bind,source="+filepath.Join(sandboxDir, "clone")+",target="+id.Root)
	// The shim symlink itself produces no docker argument.
	assert.NotContains(t, args, "symlink")
}

func TestMaterializeShimSymlink(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))
	user := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec := Plan(id, sandboxDir, "foo", user, home, nil, nil)

	// Keep only host-side entries: directory overlays need a runtime to
	// create their volumes, so they are left out and only the shim is
	// checked here.
	var hostOnly Spec
	for _, e := range spec.Entries {
		if e.Kind == SymlinkShim || (e.Kind == Overlay && e.File) {
			hostOnly.Entries = append(hostOnly.Entries, e)
		}
	}
	require.NoError(t, Materialize(&hostOnly, sandboxDir))

	link, err := os.Readlink(ShimPath(sandboxDir, id))
	require.NoError(t, err)
	assert.Equal(t, id.Root, link)

	// Re-materializing is a no-op.
	require.NoError(t, Materialize(&hostOnly, sandboxDir))
}

func TestMaterializeRefreshesFileCopy(t *testing.T) {
	id, sandboxDir, home := testIdentity(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude.json"), []byte(`{"a":1}`), 0o600))
	user := shell.User{Name: "alice", Shell: "/bin/bash"}
	spec := Plan(id, sandboxDir, "foo", user, home, nil, nil)

	require.NoError(t, Materialize(spec, sandboxDir))
	copyPath := filepath.Join(sandboxDir, "claude-json")
	data, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	// Simulate a container mutating the copy, then a fresh create.
	require.NoError(t, os.WriteFile(copyPath, []byte(`{"mutated":true}`), 0o600))
	require.NoError(t, Materialize(spec, sandboxDir))
	data, err = os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data), "copy must be refreshed from the host original")
}

func TestVolumeNameRoundTrip(t *testing.T) {
	tests := []struct {
		sandbox string
		slug    string
	}{
		{"foo", "claude"},
		{"foo", "claude-json"},
		{"my-long-name", "claude-json"},
		{"foo", "cache-0a1b2c3d"},
	}
	for _, tt := range tests {
		vol := VolumeName(tt.sandbox, tt.slug)
		name, slug, ok := ParseVolumeName(vol)
		require.True(t, ok, "vol %q", vol)
		assert.Equal(t, tt.sandbox, name, "vol %q", vol)
		assert.Equal(t, tt.slug, slug, "vol %q", vol)
	}
}

func TestParseVolumeNameRejectsForeign(t *testing.T) {
	for _, vol := range []string{"postgres-data", "sandbox-", "sandbox-foo", "sandbox-foo-unknown"} {
		if _, _, ok := ParseVolumeName(vol); ok {
			t.Errorf("ParseVolumeName(%q) accepted a foreign volume", vol)
		}
	}
}

func hasEntry(s *Spec, kind Kind, source string) bool {
	for _, e := range s.Entries {
		if e.Kind == kind && e.Source == source {
			return true
		}
	}
	return false
}

func hasTarget(s *Spec, target string) bool {
	for _, e := range s.Entries {
		if e.Target == target {
			return true
		}
	}
	return false
}
