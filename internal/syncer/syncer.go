// Package syncer keeps the host repo and a sandbox clone in sync. It watches
// both .git trees and fetches in the opposite direction on change, so
// commits travel without anyone running git fetch by hand. Only
// remote-tracking refs move; working trees are never touched.
package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/jhenriksen/sandbox/internal/gitx"
)

// side identifies which repository's .git tree an event landed in.
type side int

const (
	hostSide side = iota
	cloneSide
)

func (s side) String() string {
	if s == hostSide {
		return "host"
	}
	return "clone"
}

// Options configures a Watcher. Zero durations get defaults.
type Options struct {
	// HostRepo is the host repo root P.
	HostRepo string
	// CloneDir is the sandbox clone.
	CloneDir string
	// HostRemote is the host-side remote name for the clone
	// (sandbox-<name>).
	HostRemote string

	// Debounce coalesces bursts of events into one fetch.
	Debounce time.Duration
	// Quiet suppresses reciprocal events after a fetch this watcher
	// initiated, preventing fetch loops.
	Quiet time.Duration
	// RetryBackoff is the minimum gap between retries of a failing
	// direction.
	RetryBackoff time.Duration

	// Fetch runs a git fetch; overridable in tests. Defaults to
	// gitx.Fetch.
	Fetch func(repoDir, remote string) error
	// ContainerRunning, when set, is polled; the watcher exits once it
	// reports false.
	ContainerRunning func() bool
	// PollInterval is how often ContainerRunning is consulted.
	PollInterval time.Duration

	Log *logrus.Logger
}

const (
	defaultDebounce     = 250 * time.Millisecond
	defaultQuiet        = 500 * time.Millisecond
	defaultRetryBackoff = 5 * time.Second
	defaultPollInterval = 5 * time.Second
	tickInterval        = 50 * time.Millisecond
)

// Watcher is the live sync process for one sandbox.
type Watcher struct {
	opts     Options
	hostGit  string
	cloneGit string
}

// New validates options and applies defaults.
func New(opts Options) (*Watcher, error) {
	if opts.HostRepo == "" || opts.CloneDir == "" || opts.HostRemote == "" {
		return nil, fmt.Errorf("syncer: HostRepo, CloneDir and HostRemote are required")
	}
	if opts.Debounce == 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Quiet == 0 {
		opts.Quiet = defaultQuiet
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Fetch == nil {
		opts.Fetch = gitx.Fetch
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Watcher{
		opts:     opts,
		hostGit:  filepath.Join(opts.HostRepo, ".git"),
		cloneGit: filepath.Join(opts.CloneDir, ".git"),
	}, nil
}

// watchDirs returns the directories whose change indicates ref movement.
// fsnotify is non-recursive, so the interesting subtrees are listed out.
func watchDirs(gitDir string) []string {
	dirs := []string{gitDir}
	for _, sub := range []string{"refs", "refs/heads", "refs/tags", "refs/remotes"} {
		dirs = append(dirs, filepath.Join(gitDir, sub))
	}
	return dirs
}

// Run watches until stop closes, the container stops, or the event stream
// dies. Fetch failures are logged and retried with backoff; they never end
// the watcher.
func (w *Watcher) Run(stop <-chan struct{}) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	for _, gitDir := range []string{w.hostGit, w.cloneGit} {
		for _, dir := range watchDirs(gitDir) {
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			if err := fsw.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
		}
	}

	w.opts.Log.WithFields(logrus.Fields{
		"host":  w.hostGit,
		"clone": w.cloneGit,
	}).Info("sync watcher started")

	var (
		pending     [2]bool
		lastEvent   [2]time.Time
		suppressTil [2]time.Time
		retryAfter  [2]time.Time
	)

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-stop:
			w.opts.Log.Info("sync watcher stopping")
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			// Pick up branch namespace directories as git creates
			// them (refs/heads/feature/...).
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					fsw.Add(ev.Name)
				}
			}
			s, ok := w.classify(ev.Name)
			if !ok {
				continue
			}
			now := time.Now()
			if now.Before(suppressTil[s]) {
				continue
			}
			pending[s] = true
			lastEvent[s] = now

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("error stream closed")
			}
			w.opts.Log.WithError(err).Warn("watch error")

		case <-tick.C:
			now := time.Now()
			for _, s := range []side{hostSide, cloneSide} {
				if !pending[s] || now.Sub(lastEvent[s]) < w.opts.Debounce || now.Before(retryAfter[s]) {
					continue
				}
				if err := w.fetchFor(s); err != nil {
					w.opts.Log.WithError(err).Warnf("fetch after %s change failed", s)
					retryAfter[s] = now.Add(w.opts.RetryBackoff)
					continue
				}
				pending[s] = false
				// The fetch wrote into the opposite .git tree;
				// ignore its echo.
				suppressTil[opposite(s)] = time.Now().Add(w.opts.Quiet)
			}

		case <-poll.C:
			if w.opts.ContainerRunning != nil && !w.opts.ContainerRunning() {
				w.opts.Log.Info("container stopped, sync watcher exiting")
				return nil
			}
		}
	}
}

// fetchFor runs the fetch triggered by a change on side s: host changes are
// pulled into the clone via origin, clone changes into the host repo via the
// sandbox remote.
func (w *Watcher) fetchFor(s side) error {
	if s == hostSide {
		return w.opts.Fetch(w.opts.CloneDir, "origin")
	}
	return w.opts.Fetch(w.opts.HostRepo, w.opts.HostRemote)
}

func opposite(s side) side {
	if s == hostSide {
		return cloneSide
	}
	return hostSide
}

// classify maps an event path to the .git tree it belongs to.
func (w *Watcher) classify(path string) (side, bool) {
	switch {
	case within(path, w.cloneGit):
		return cloneSide, true
	case within(path, w.hostGit):
		return hostSide, true
	}
	return 0, false
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel))
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
