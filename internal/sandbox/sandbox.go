package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jhenriksen/sandbox/internal/mount"
	"github.com/jhenriksen/sandbox/internal/repo"
)

// Info is the persistent description of one sandbox, stored as
// sandbox.json inside its directory. The watcher child process reloads it
// to find both repositories.
type Info struct {
	Name       string    `json:"name"`
	RepoRoot   string    `json:"repo_root"`
	SandboxDir string    `json:"sandbox_dir"`
	CloneDir   string    `json:"clone_dir"`
	ShimPath   string    `json:"shim_path"`
	Container  string    `json:"container_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewInfo derives the on-disk layout for a named sandbox of a repo.
func NewInfo(id repo.Identity, root, name string) Info {
	dir := filepath.Join(root, name)
	return Info{
		Name:       name,
		RepoRoot:   id.Root,
		SandboxDir: dir,
		CloneDir:   filepath.Join(dir, "clone"),
		ShimPath:   mount.ShimPath(dir, id),
		Container:  ContainerName(id, name),
		CreatedAt:  time.Now().UTC(),
	}
}

// ContainerName is the stable container name for a sandbox:
// sandbox-<repo-basename>-<name>.
func ContainerName(id repo.Identity, name string) string {
	return fmt.Sprintf("sandbox-%s-%s", id.Name, name)
}

func infoPath(sandboxDir string) string {
	return filepath.Join(sandboxDir, "sandbox.json")
}

// Save writes the info file, creating the sandbox directory with user-only
// permissions.
func (i Info) Save() error {
	if err := os.MkdirAll(i.SandboxDir, 0o700); err != nil {
		return fmt.Errorf("creating sandbox dir: %w", err)
	}
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sandbox info: %w", err)
	}
	return os.WriteFile(infoPath(i.SandboxDir), data, 0o600)
}

// LoadInfo reads a sandbox's info file.
func LoadInfo(sandboxDir string) (Info, error) {
	data, err := os.ReadFile(infoPath(sandboxDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrUnknownSandbox
		}
		return Info{}, fmt.Errorf("reading sandbox info: %w", err)
	}
	var i Info
	if err := json.Unmarshal(data, &i); err != nil {
		return Info{}, fmt.Errorf("parsing sandbox info: %w", err)
	}
	return i, nil
}

// List loads every sandbox under the repo's sandbox root, sorted by
// directory order. A missing root means no sandboxes.
func List(root string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sandbox root: %w", err)
	}
	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := LoadInfo(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// removeAllForced removes a tree even when the container left unwritable
// directories behind (overlay work dirs often are), chmodding as it goes.
func removeAllForced(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}
	filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.IsDir() {
			os.Chmod(p, fi.Mode()|0o700)
		} else {
			os.Chmod(p, fi.Mode()|0o600)
		}
		return nil
	})
	return os.RemoveAll(path)
}
