package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"golang.org/x/sys/unix"
)

// watcherPidFile tracks the sync watcher child of a running sandbox.
func watcherPidFile(sandboxDir string) string {
	return filepath.Join(sandboxDir, "watcher.pid")
}

// SpawnWatcher starts the sync watcher as a detached child process
// (re-invoking this binary's hidden sync-watcher command) and records its
// pid. A live watcher already recorded means attach, not create, and is left
// alone.
func SpawnWatcher(sandboxDir string) error {
	if pid, ok := watcherPid(sandboxDir); ok && processAlive(pid) {
		logrus.Debugf("sync watcher already running (pid %d)", pid)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("%w: locating executable: %v", ErrWatcherFailed, err)
	}

	cmd := exec.Command(exe, "sync-watcher", sandboxDir)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	// Detach from our session so the watcher outlives interactive
	// attaches and never holds the terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	pid := cmd.Process.Pid
	cmd.Process.Release()
	if err := os.WriteFile(watcherPidFile(sandboxDir), []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("%w: recording pid: %v", ErrWatcherFailed, err)
	}
	logrus.Debugf("sync watcher started (pid %d)", pid)
	return nil
}

// StopWatcher terminates the recorded watcher, if any.
func StopWatcher(sandboxDir string) {
	pid, ok := watcherPid(sandboxDir)
	if ok && processAlive(pid) {
		unix.Kill(pid, unix.SIGTERM)
	}
	os.Remove(watcherPidFile(sandboxDir))
}

// WatcherRunning reports whether the sandbox has a live watcher process.
func WatcherRunning(sandboxDir string) bool {
	pid, ok := watcherPid(sandboxDir)
	return ok && processAlive(pid)
}

func watcherPid(sandboxDir string) (int, bool) {
	data, err := os.ReadFile(watcherPidFile(sandboxDir))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive checks for a process without signaling it. EPERM still means
// the pid exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
