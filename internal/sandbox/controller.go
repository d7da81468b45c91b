package sandbox

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jhenriksen/sandbox/internal/config"
	"github.com/jhenriksen/sandbox/internal/docker"
	"github.com/jhenriksen/sandbox/internal/gitx"
	"github.com/jhenriksen/sandbox/internal/image"
	"github.com/jhenriksen/sandbox/internal/mount"
	"github.com/jhenriksen/sandbox/internal/netpolicy"
	"github.com/jhenriksen/sandbox/internal/repo"
	"github.com/jhenriksen/sandbox/internal/shell"
)

// Controller drives the sandbox lifecycle for one host repository:
// create-or-attach on run, list, delete, gc.
type Controller struct {
	ID   repo.Identity
	User shell.User
	Cfg  *config.Config
	// Root is sandbox_root for this repo.
	Root string
}

// NewController resolves everything a lifecycle operation needs from the
// working directory.
func NewController(workDir string) (*Controller, error) {
	if err := docker.CheckAvailable(); err != nil {
		return nil, err
	}
	id, err := repo.Resolve(workDir)
	if err != nil {
		return nil, err
	}
	root, err := id.EnsureSandboxRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(id.Root)
	if err != nil {
		return nil, err
	}
	return &Controller{
		ID:   id,
		User: shell.CurrentUser(),
		Cfg:  cfg,
		Root: root,
	}, nil
}

// Status is one row of `list`.
type Status struct {
	Info             Info
	ContainerExists  bool
	ContainerRunning bool
	VolumeCount      int
}

// SessionFunc holds an interactive session in a running container and
// returns its exit code.
type SessionFunc func(containerName string, env map[string]string) (int, error)

// Run materializes the sandbox if needed and either creates the container or
// attaches to a running one, then holds the interactive session. Returns the
// session's exit code.
func (c *Controller) Run(name string, command []string) (int, error) {
	return c.RunWith(name, func(containerName string, env map[string]string) (int, error) {
		var cmd []string
		if len(command) == 0 {
			cmd = c.User.InteractiveCommand()
		} else {
			cmd = c.User.WrapCommand(command)
		}
		code, err := docker.Exec(containerName, true, env, cmd)
		if err != nil {
			return 1, fmt.Errorf("%w: %v", ErrAttachFailed, err)
		}
		return code, nil
	})
}

// RunWith is Run with a caller-supplied session, e.g. an agent process
// instead of a shell.
func (c *Controller) RunWith(name string, session SessionFunc) (int, error) {
	info := NewInfo(c.ID, c.Root, name)

	env, err := c.Cfg.ResolveEnv()
	if err != nil {
		return 1, err
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		env["ANTHROPIC_API_KEY"] = key
	}

	// Mutating setup happens under the sandbox lock; the interactive
	// session afterwards does not hold it.
	created, err := c.setUp(info)
	if err != nil {
		return 1, err
	}

	detach, err := recordAttach(info.SandboxDir)
	if err != nil {
		return 1, err
	}
	defer func() {
		detach()
		if !otherAttachesLive(info.SandboxDir) {
			logrus.Debug("last attach exited, stopping container")
			docker.Stop(info.Container)
			StopWatcher(info.SandboxDir)
		}
	}()

	if created {
		logrus.Infof("created sandbox %s (container %s)", name, info.Container)
	} else {
		logrus.Infof("attached to sandbox %s", name)
	}

	return session(info.Container, env)
}

// setUp performs the locked portion of run: image, clone, remotes, mounts,
// container, watcher. Returns whether a new container was created.
func (c *Controller) setUp(info Info) (bool, error) {
	lock, err := acquireLock(info.SandboxDir)
	if err != nil {
		return false, err
	}
	defer lock.release()

	tag := c.Cfg.Image.Tag
	if tag == "" {
		tag, err = image.Ensure(c.ID.Root, c.User)
		if err != nil {
			return false, err
		}
	} else if !docker.ImageExists(tag) {
		return false, fmt.Errorf("configured image %s not found locally", tag)
	}

	if err := gitx.EnsureClone(c.ID.Root, info.CloneDir, info.ShimPath); err != nil {
		return false, err
	}
	if err := gitx.EnsureHostRemote(c.ID.Root, info.Name, info.CloneDir); err != nil {
		return false, err
	}

	det := config.Detect(c.ID.Root)
	home := os.Getenv("HOME")
	spec := mount.Plan(c.ID, info.SandboxDir, info.Name, c.User, home, det.CacheDirs, c.Cfg)

	// Keep the original creation time across runs.
	if prev, err := LoadInfo(info.SandboxDir); err == nil {
		info.CreatedAt = prev.CreatedAt
	}
	if err := info.Save(); err != nil {
		return false, err
	}

	if docker.ContainerRunning(info.Container) {
		return false, nil
	}

	// Only on create: refreshing file copies under a running container
	// would discard the live session's writes.
	if err := mount.Materialize(spec, info.SandboxDir); err != nil {
		return false, err
	}

	// A stopped container from an earlier session is stale: its mounts
	// may predate the current mount plan.
	if docker.ContainerExists(info.Container) {
		if err := docker.Remove(info.Container); err != nil {
			return false, fmt.Errorf("%w: removing stale container: %v", ErrContainerStart, err)
		}
	}

	if err := netpolicy.EnsureNetwork(); err != nil {
		return false, err
	}

	args := []string{
		"-d",
		"--name", info.Container,
		"--hostname", info.Name,
		"--label", "sandbox=true",
		"--user", fmt.Sprintf("%d:%d", c.User.UID, c.User.GID),
		"--workdir", c.ID.Root,
	}
	args = append(args, netpolicy.DockerArgs()...)
	args = append(args, spec.DockerArgs(info.SandboxDir)...)
	args = append(args, tag, "sleep", "infinity")

	if _, err := docker.Run(args...); err != nil {
		// The unique-name constraint makes creation atomic: a loser of
		// a create race just attaches.
		if docker.ContainerRunning(info.Container) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrContainerStart, err)
	}

	if err := netpolicy.Apply(info.Container); err != nil {
		docker.Remove(info.Container)
		return false, err
	}

	if err := SpawnWatcher(info.SandboxDir); err != nil {
		logrus.WithError(err).Warn("sync watcher did not start; refs will not sync")
	}

	return true, nil
}

// Statuses returns list rows for every sandbox of this repo.
func (c *Controller) Statuses() ([]Status, error) {
	infos, err := List(c.Root)
	if err != nil {
		return nil, err
	}
	statuses := make([]Status, 0, len(infos))
	for _, info := range infos {
		vols, _ := docker.ListVolumes(fmt.Sprintf("sandbox-%s-", info.Name))
		count := 0
		for _, v := range vols {
			if owner, _, ok := mount.ParseVolumeName(v); ok && owner == info.Name {
				count++
			}
		}
		statuses = append(statuses, Status{
			Info:             info,
			ContainerExists:  docker.ContainerExists(info.Container),
			ContainerRunning: docker.ContainerRunning(info.Container),
			VolumeCount:      count,
		})
	}
	return statuses, nil
}

// Delete tears a sandbox down: container, watcher, volumes, host remote,
// directory.
func (c *Controller) Delete(name string) error {
	info := NewInfo(c.ID, c.Root, name)

	// Lock before looking: a concurrent delete that wins the race leaves
	// the loser with ErrBusy now or ErrUnknownSandbox after.
	lock, err := acquireLock(info.SandboxDir)
	if err != nil {
		return err
	}
	if _, err := LoadInfo(info.SandboxDir); err != nil {
		lock.release()
		// acquireLock recreated the directory; don't leave the husk.
		os.RemoveAll(info.SandboxDir)
		return err
	}

	StopWatcher(info.SandboxDir)

	if docker.ContainerExists(info.Container) {
		docker.Stop(info.Container)
		if err := docker.Remove(info.Container); err != nil {
			lock.release()
			return err
		}
	}

	vols, err := docker.ListVolumes(fmt.Sprintf("sandbox-%s-", name))
	if err == nil {
		for _, v := range vols {
			if owner, _, ok := mount.ParseVolumeName(v); ok && owner == name {
				if err := docker.RemoveVolume(v); err != nil {
					logrus.WithError(err).Warnf("leaving volume %s behind", v)
				}
			}
		}
	}

	gitx.RemoveHostRemote(c.ID.Root, name)

	err = removeAllForced(info.SandboxDir)
	lock.release()
	if err != nil {
		return fmt.Errorf("removing %s: %w", info.SandboxDir, err)
	}
	return nil
}

// ValidName guards against path tricks in user-supplied sandbox names.
func ValidName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\ \t\n") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid sandbox name %q", name)
	}
	return nil
}
