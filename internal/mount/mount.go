// Package mount assembles the mount specification for a sandbox container.
//
// The central trick: the shallow clone lives under the sandbox cache on the
// host but is bind-mounted inside the container at the host repo's own
// absolute path, so tooling sees identical paths inside and out. The clone's
// origin URL is the shim path, a symlink to the real repo on the host and a
// read-only bind mount of it in the container, so origin resolves correctly
// from both sides.
package mount

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jhenriksen/sandbox/internal/config"
	"github.com/jhenriksen/sandbox/internal/docker"
	"github.com/jhenriksen/sandbox/internal/repo"
	"github.com/jhenriksen/sandbox/internal/shell"
)

// ErrMountSetup is wrapped by mount materialization failures.
var ErrMountSetup = errors.New("mount setup failed")

// Kind classifies a mount entry.
type Kind string

const (
	BindRO      Kind = "bind-ro"
	BindRW      Kind = "bind-rw"
	Overlay     Kind = "overlay"
	SymlinkShim Kind = "symlink-shim"
)

// Entry is one mount in the ordered specification.
type Entry struct {
	Kind   Kind
	Source string // host path; overlay lower layer
	Target string // container path; symlink target for shim entries

	// Overlay fields.
	Slug   string
	Upper  string
	Work   string
	Volume string

	// File marks an overlay over a single file, materialized as a copy
	// under the sandbox dir instead of an overlayfs volume. The copy is
	// refreshed on every container create, so container writes never
	// reach the host original.
	File bool
}

// Spec is the ordered mount list for one sandbox.
type Spec struct {
	Entries []Entry
}

// VolumeName builds the container-runtime volume name for an overlay:
// sandbox-<sandbox-name>-<slug>.
func VolumeName(sandbox, slug string) string {
	return fmt.Sprintf("sandbox-%s-%s", sandbox, slug)
}

var volumeRe = regexp.MustCompile(`^sandbox-(.+)-(claude|claude-json|cache-[0-9a-f]{8})$`)

// ParseVolumeName extracts the sandbox name and slug from an overlay volume
// name. ok is false for volumes this tool did not create.
func ParseVolumeName(vol string) (name, slug string, ok bool) {
	m := volumeRe.FindStringSubmatch(vol)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// cacheSlug derives a stable slug for an overlayed cache directory.
func cacheSlug(hostPath string) string {
	sum := sha256.Sum256([]byte(hostPath))
	return "cache-" + hex.EncodeToString(sum[:4])
}

// Plan computes the full mount specification. sandboxDir is
// sandbox_root/<name>; hostHome is the host user's home; cacheDirs are
// repo-relative toolchain cache directories to overlay.
func Plan(id repo.Identity, sandboxDir, name string, user shell.User, hostHome string, cacheDirs []string, cfg *config.Config) *Spec {
	cloneDir := filepath.Join(sandboxDir, "clone")
	shimPath := ShimPath(sandboxDir, id)
	containerHome := "/home/" + user.Name

	var entries []Entry

	// Host-side symlink shim; no docker argument of its own.
	entries = append(entries, Entry{Kind: SymlinkShim, Source: shimPath, Target: id.Root})

	// Real repo, read-only, at the shim path. Following the clone's
	// origin URL lands here from inside the container.
	entries = append(entries, Entry{Kind: BindRO, Source: id.Root, Target: shimPath})

	// The workspace: clone mounted at the host repo path.
	entries = append(entries, Entry{Kind: BindRW, Source: cloneDir, Target: id.Root})

	if user.UsesFish() {
		fishCfg := filepath.Join(hostHome, ".config", "fish")
		if _, err := os.Stat(fishCfg); err == nil {
			entries = append(entries, Entry{
				Kind:   BindRO,
				Source: fishCfg,
				Target: containerHome + "/.config/fish",
			})
		}
	}

	// Credential stores, copy-on-write.
	claudeDir := filepath.Join(hostHome, ".claude")
	if _, err := os.Stat(claudeDir); err == nil {
		entries = append(entries, overlayEntry(sandboxDir, name, "claude", claudeDir, containerHome+"/.claude"))
	}
	claudeJSON := filepath.Join(hostHome, ".claude.json")
	if _, err := os.Stat(claudeJSON); err == nil {
		entries = append(entries, Entry{
			Kind:   Overlay,
			File:   true,
			Source: claudeJSON,
			Target: containerHome + "/.claude.json",
			Slug:   "claude-json",
		})
	}

	// Toolchain caches.
	for _, d := range cacheDirs {
		host := filepath.Join(id.Root, d)
		entries = append(entries, overlayEntry(sandboxDir, name, cacheSlug(host), host, host))
	}

	// Extra mounts from .sandbox.yaml.
	if cfg != nil {
		for _, e := range cfg.Mounts.ReadOnly {
			host := config.ExpandHost(e.Host, id.Root, hostHome)
			if _, err := os.Stat(host); err != nil {
				continue
			}
			entries = append(entries, Entry{
				Kind:   BindRO,
				Source: host,
				Target: config.ExpandContainer(e, id.Root, hostHome, containerHome),
			})
		}
		for _, e := range cfg.Mounts.UnsafeWrite {
			host := config.ExpandHost(e.Host, id.Root, hostHome)
			if _, err := os.Stat(host); err != nil {
				continue
			}
			entries = append(entries, Entry{
				Kind:   BindRW,
				Source: host,
				Target: config.ExpandContainer(e, id.Root, hostHome, containerHome),
			})
		}
		for _, e := range cfg.Mounts.Overlay {
			host := config.ExpandHost(e.Host, id.Root, hostHome)
			if _, err := os.Stat(host); err != nil {
				continue
			}
			entries = append(entries, overlayEntry(sandboxDir, name, cacheSlug(host), host,
				config.ExpandContainer(e, id.Root, hostHome, containerHome)))
		}
	}

	return &Spec{Entries: entries}
}

func overlayEntry(sandboxDir, name, slug, lower, target string) Entry {
	base := filepath.Join(sandboxDir, "overlay", slug)
	return Entry{
		Kind:   Overlay,
		Source: lower,
		Target: target,
		Slug:   slug,
		Upper:  filepath.Join(base, "upper"),
		Work:   filepath.Join(base, "work"),
		Volume: VolumeName(name, slug),
	}
}

// ShimPath returns the host path of the shim symlink for a sandbox:
// sandbox_root/<name>/shim/<repo-basename>.
func ShimPath(sandboxDir string, id repo.Identity) string {
	return filepath.Join(sandboxDir, "shim", id.Name)
}

// fileCopyPath is where a file overlay's working copy lives.
func fileCopyPath(sandboxDir string, e Entry) string {
	return filepath.Join(sandboxDir, e.Slug)
}

// Materialize creates everything the spec needs on the host: the shim
// symlink, overlay upper/work directories, runtime volumes, and fresh file
// copies.
func Materialize(s *Spec, sandboxDir string) error {
	for _, e := range s.Entries {
		switch e.Kind {
		case SymlinkShim:
			if err := ensureSymlink(e.Target, e.Source); err != nil {
				return fmt.Errorf("%w: %v", ErrMountSetup, err)
			}
		case Overlay:
			if e.File {
				if err := copyFile(e.Source, fileCopyPath(sandboxDir, e)); err != nil {
					return fmt.Errorf("%w: %v", ErrMountSetup, err)
				}
				continue
			}
			for _, dir := range []string{e.Upper, e.Work} {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return fmt.Errorf("%w: %v", ErrMountSetup, err)
				}
			}
			if docker.VolumeExists(e.Volume) {
				continue
			}
			opts := map[string]string{
				"type":   "overlay",
				"device": "overlay",
				"o":      fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", e.Source, e.Upper, e.Work),
			}
			if err := docker.CreateVolume(e.Volume, opts); err != nil {
				return fmt.Errorf("%w: %v", ErrMountSetup, err)
			}
		}
	}
	return nil
}

// DockerArgs renders the spec as `docker run` mount arguments, preserving
// entry order.
func (s *Spec) DockerArgs(sandboxDir string) []string {
	var args []string
	for _, e := range s.Entries {
		switch e.Kind {
		case BindRO:
			args = append(args, "--mount",
				fmt.Sprintf("type=bind,source=%s,target=%s,readonly", e.Source, e.Target))
		case BindRW:
			args = append(args, "--mount",
				fmt.Sprintf("type=bind,source=%s,target=%s", e.Source, e.Target))
		case Overlay:
			if e.File {
				args = append(args, "--mount",
					fmt.Sprintf("type=bind,source=%s,target=%s", fileCopyPath(sandboxDir, e), e.Target))
				continue
			}
			args = append(args, "--mount",
				fmt.Sprintf("type=volume,source=%s,target=%s", e.Volume, e.Target))
		}
	}
	return args
}

// VolumeNames returns the overlay volume names owned by this spec.
func (s *Spec) VolumeNames() []string {
	var names []string
	for _, e := range s.Entries {
		if e.Kind == Overlay && !e.File {
			names = append(names, e.Volume)
		}
	}
	return names
}

func ensureSymlink(target, link string) error {
	if existing, err := os.Readlink(link); err == nil {
		if existing == target {
			return nil
		}
		if err := os.Remove(link); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o700); err != nil {
		return err
	}
	return os.Symlink(target, link)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// Describe renders a one-line summary of an entry for logs and the
// dashboard.
func (e Entry) Describe() string {
	switch e.Kind {
	case SymlinkShim:
		return fmt.Sprintf("shim %s -> %s", e.Source, e.Target)
	case Overlay:
		return fmt.Sprintf("overlay %s at %s", e.Source, e.Target)
	default:
		return fmt.Sprintf("%s %s at %s", e.Kind, e.Source, e.Target)
	}
}

// String implements fmt.Stringer for error messages.
func (k Kind) String() string { return string(k) }
