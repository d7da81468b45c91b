// Package image builds the sandbox container image, tagging it by the
// Dockerfile's content hash so rebuild decisions need no side metadata and
// sandboxes sharing a Dockerfile share an image.
package image

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jhenriksen/sandbox/internal/docker"
	"github.com/jhenriksen/sandbox/internal/shell"
)

// ErrDockerfileMissing is returned when the repo has no Dockerfile.
var ErrDockerfileMissing = fmt.Errorf("no Dockerfile found at the repo root")

// BuildError reports a failed image build with the tail of its log output.
type BuildError struct {
	ExitStatus int
	LogTail    []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("docker build failed (exit %d): last %d log lines follow\n%s",
		e.ExitStatus, len(e.LogTail), strings.Join(e.LogTail, "\n"))
}

// tailLines is how much build output a BuildError keeps.
const tailLines = 20

// Tag computes the image tag for a Dockerfile: sandbox:<hex-sha256>, hash
// truncated to 32 characters.
func Tag(dockerfile string) (string, error) {
	data, err := os.ReadFile(dockerfile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrDockerfileMissing
		}
		return "", fmt.Errorf("reading Dockerfile: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sandbox:" + hex.EncodeToString(sum[:16]), nil
}

// Ensure guarantees a local image exists for the Dockerfile at
// <repoRoot>/Dockerfile and returns its tag. Builds only on cache miss,
// passing the host identity as build args so the Dockerfile can create a
// matching user.
func Ensure(repoRoot string, user shell.User) (string, error) {
	dockerfile := filepath.Join(repoRoot, "Dockerfile")
	tag, err := Tag(dockerfile)
	if err != nil {
		return "", err
	}

	if docker.ImageExists(tag) {
		logrus.Debugf("using existing image %s", tag)
		return tag, nil
	}

	logrus.Infof("building image %s", tag)

	cmd := exec.Command("docker", "build",
		"-f", dockerfile,
		"-t", tag,
		"--build-arg", fmt.Sprintf("USER_NAME=%s", user.Name),
		"--build-arg", fmt.Sprintf("USER_ID=%d", user.UID),
		"--build-arg", fmt.Sprintf("GROUP_ID=%d", user.GID),
		repoRoot,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		status := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		}
		return "", &BuildError{ExitStatus: status, LogTail: Tail(string(out), tailLines)}
	}
	return tag, nil
}

// Tail returns the last n lines of output, ignoring trailing newlines. Empty
// lines inside the output are kept and counted.
func Tail(output string, n int) []string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
