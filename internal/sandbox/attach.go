package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Attach reference counting. Every `run` records its own pid under
// <sandbox>/pids/; the last live attach to exit stops the container and the
// watcher. Stale files from crashed attaches are swept on read.

func pidsDir(sandboxDir string) string {
	return filepath.Join(sandboxDir, "pids")
}

// recordAttach writes this process's pid file and returns a cleanup func.
func recordAttach(sandboxDir string) (func(), error) {
	dir := pidsDir(sandboxDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating pids dir: %w", err)
	}
	pid := os.Getpid()
	path := filepath.Join(dir, fmt.Sprintf("%d.pid", pid))
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return nil, fmt.Errorf("writing pid file: %w", err)
	}
	return func() { os.Remove(path) }, nil
}

// otherAttachesLive reports whether any other process is still attached.
func otherAttachesLive(sandboxDir string) bool {
	entries, err := os.ReadDir(pidsDir(sandboxDir))
	if err != nil {
		return false
	}
	self := os.Getpid()
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".pid") {
			continue
		}
		path := filepath.Join(pidsDir(sandboxDir), e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || pid == self {
			continue
		}
		if processAlive(pid) {
			return true
		}
		os.Remove(path)
	}
	return false
}
