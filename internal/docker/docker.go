// Package docker wraps the container runtime CLI. Everything shells out to
// the `docker` binary found in PATH; no daemon API client is used.
package docker

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// ErrRuntimeUnavailable is returned when the docker CLI cannot be found.
var ErrRuntimeUnavailable = fmt.Errorf("container runtime unavailable: docker not found in PATH")

// CheckAvailable verifies the docker CLI is present.
func CheckAvailable() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return ErrRuntimeUnavailable
	}
	return nil
}

// ImageExists reports whether a local image carries the given tag.
func ImageExists(tag string) bool {
	return exec.Command("docker", "image", "inspect", tag).Run() == nil
}

// ContainerExists reports whether a container with the name exists, running
// or stopped.
func ContainerExists(name string) bool {
	return exec.Command("docker", "container", "inspect", name).Run() == nil
}

// ContainerRunning reports whether a container with the name is running.
func ContainerRunning(name string) bool {
	out, err := exec.Command("docker", "container", "inspect", "-f", "{{.State.Running}}", name).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// Run starts a container via `docker run` with the given arguments (the
// leading "run" is supplied here). Returns the trimmed container id.
func Run(args ...string) (string, error) {
	out, err := exec.Command("docker", append([]string{"run"}, args...)...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker run failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	id := strings.TrimSpace(string(out))
	if len(id) > 12 {
		id = id[:12]
	}
	return id, nil
}

// Exec runs a command inside a running container with the caller's terminal
// attached. Returns the command's exit code and any spawn error.
func Exec(name string, interactive bool, env map[string]string, command []string) (int, error) {
	args := []string{"exec"}
	// -it only works when stdin actually is a terminal.
	if interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		args = append(args, "-it")
	}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, name)
	args = append(args, command...)

	cmd := exec.Command("docker", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("docker exec failed: %w", err)
}

// ExecQuiet runs a command inside a container discarding output. Used for
// helper steps like applying network rules.
func ExecQuiet(name string, user string, command ...string) error {
	args := []string{"exec"}
	if user != "" {
		args = append(args, "--user", user)
	}
	args = append(args, name)
	args = append(args, command...)
	out, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker exec %s failed: %s: %w", command[0], strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Stop stops a container immediately. Stopping an already-stopped container
// is fine; the containers run `sleep infinity` which ignores SIGTERM, so
// there is no graceful period worth waiting for.
func Stop(name string) {
	exec.Command("docker", "stop", "-t", "0", name).Run()
}

// Remove force-removes a container by name.
func Remove(name string) error {
	out, err := exec.Command("docker", "rm", "-f", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker rm failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// CreateVolume creates a named volume with driver options.
func CreateVolume(name string, opts map[string]string) error {
	args := []string{"volume", "create", "--driver", "local"}
	for k, v := range opts {
		args = append(args, "--opt", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, name)
	out, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker volume create failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// VolumeExists reports whether a named volume exists.
func VolumeExists(name string) bool {
	return exec.Command("docker", "volume", "inspect", name).Run() == nil
}

// RemoveVolume removes a named volume.
func RemoveVolume(name string) error {
	out, err := exec.Command("docker", "volume", "rm", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker volume rm failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// ListVolumes returns the names of volumes whose name matches the prefix.
func ListVolumes(prefix string) ([]string, error) {
	out, err := exec.Command("docker", "volume", "ls", "-q", "--filter", "name="+prefix).Output()
	if err != nil {
		return nil, fmt.Errorf("docker volume ls failed: %w", err)
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		// docker's name filter matches anywhere in the name.
		if line != "" && strings.HasPrefix(line, prefix) {
			names = append(names, line)
		}
	}
	return names, nil
}

// NetworkExists reports whether a docker network exists.
func NetworkExists(name string) bool {
	return exec.Command("docker", "network", "inspect", name).Run() == nil
}

// CreateNetwork creates a bridge network.
func CreateNetwork(name string) error {
	out, err := exec.Command("docker", "network", "create", "--driver", "bridge", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker network create failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}
