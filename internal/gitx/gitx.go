// Package gitx manages the shallow clone and the bidirectional remote
// wiring between the host repo and a sandbox clone.
package gitx

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrCloneFailed is wrapped by clone errors.
var ErrCloneFailed = errors.New("clone failed")

// ErrRemoteConfig is wrapped by remote configuration errors.
var ErrRemoteConfig = errors.New("remote configuration failed")

// HostRemoteName returns the name of the remote installed on the host repo
// for a sandbox.
func HostRemoteName(sandbox string) string {
	return "sandbox-" + sandbox
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// EnsureClone makes sure cloneDir holds a shallow clone of repoRoot with its
// origin pointing at originURL (the shim path). Re-invoking with an existing
// clone skips cloning and only reconciles remote configuration.
func EnsureClone(repoRoot, cloneDir, originURL string) error {
	if _, err := os.Stat(filepath.Join(cloneDir, ".git")); err != nil {
		if err := shallowClone(repoRoot, cloneDir); err != nil {
			return err
		}
	} else {
		logrus.Debugf("clone already exists at %s", cloneDir)
	}

	// Point origin at the shim so the URL resolves both on the host (via
	// symlink) and inside the container (via the read-only mount).
	if err := setRemote(cloneDir, "origin", originURL); err != nil {
		return err
	}

	// Set the all-branches refspec explicitly, also on clones that already
	// existed, so watcher-driven fetches pick up every branch.
	if _, err := git(cloneDir, "config", "remote.origin.fetch",
		"+refs/heads/*:refs/remotes/origin/*"); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteConfig, err)
	}
	return nil
}

func shallowClone(repoRoot, cloneDir string) error {
	if err := os.MkdirAll(filepath.Dir(cloneDir), 0o700); err != nil {
		return fmt.Errorf("%w: creating clone parent: %v", ErrCloneFailed, err)
	}

	logrus.Infof("creating shallow clone of %s", repoRoot)

	// --depth needs a transport URL; plain paths take the hardlink fast
	// path which ignores depth.
	out, err := exec.Command("git", "clone", "--depth", "1", "--no-single-branch",
		"file://"+repoRoot, cloneDir).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCloneFailed, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// EnsureHostRemote installs (or updates) the sandbox-<name> remote on the
// host repo, pointing at the clone, with a refspec covering all branches.
func EnsureHostRemote(repoRoot, sandbox, cloneDir string) error {
	name := HostRemoteName(sandbox)
	if err := setRemote(repoRoot, name, cloneDir); err != nil {
		return err
	}
	if _, err := git(repoRoot, "config", "remote."+name+".fetch",
		fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name)); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteConfig, err)
	}
	return nil
}

// RemoveHostRemote removes the sandbox-<name> remote from the host repo.
// Missing remotes are not an error.
func RemoveHostRemote(repoRoot, sandbox string) {
	name := HostRemoteName(sandbox)
	cmd := exec.Command("git", "remote", "remove", name)
	cmd.Dir = repoRoot
	cmd.Run()
}

// setRemote adds the remote or updates its URL if it already exists.
func setRemote(repoDir, name, url string) error {
	if _, err := git(repoDir, "remote", "get-url", name); err == nil {
		if _, err := git(repoDir, "remote", "set-url", name, url); err != nil {
			return fmt.Errorf("%w: %v", ErrRemoteConfig, err)
		}
		return nil
	}
	if _, err := git(repoDir, "remote", "add", name, url); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteConfig, err)
	}
	return nil
}

// Fetch fetches a remote in repoDir. Only remote-tracking refs move; working
// trees are never touched.
func Fetch(repoDir, remote string) error {
	_, err := git(repoDir, "fetch", "--quiet", remote)
	return err
}

// RemoteURL returns the URL of a remote, or "" if it does not exist.
func RemoteURL(repoDir, name string) string {
	url, err := git(repoDir, "remote", "get-url", name)
	if err != nil {
		return ""
	}
	return url
}
