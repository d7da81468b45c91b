package syncer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchRecorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newFetchRecorder() *fetchRecorder {
	return &fetchRecorder{ch: make(chan string, 16)}
}

func (r *fetchRecorder) fetch(repoDir, remote string) error {
	r.mu.Lock()
	r.calls = append(r.calls, remote)
	r.mu.Unlock()
	r.ch <- remote
	return nil
}

func (r *fetchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testWatcher(t *testing.T, rec *fetchRecorder) (*Watcher, string, string) {
	t.Helper()
	host := t.TempDir()
	clone := t.TempDir()
	for _, d := range []string{host, clone} {
		require.NoError(t, os.MkdirAll(filepath.Join(d, ".git", "refs", "heads"), 0o755))
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)

	w, err := New(Options{
		HostRepo:   host,
		CloneDir:   clone,
		HostRemote: "sandbox-foo",
		Debounce:   50 * time.Millisecond,
		Quiet:      200 * time.Millisecond,
		Fetch:      rec.fetch,
		Log:        log,
	})
	require.NoError(t, err)
	return w, host, clone
}

func TestNewRequiresPaths(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHostChangeFetchesIntoClone(t *testing.T) {
	rec := newFetchRecorder()
	w, host, _ := testWatcher(t, rec)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond) // let the watches install

	require.NoError(t, os.WriteFile(
		filepath.Join(host, ".git", "refs", "heads", "main"), []byte("abc\n"), 0o644))

	select {
	case remote := <-rec.ch:
		assert.Equal(t, "origin", remote, "host change must fetch origin in the clone")
	case <-time.After(3 * time.Second):
		t.Fatal("no fetch after host .git change")
	}

	close(stop)
	<-done
}

func TestCloneChangeFetchesIntoHost(t *testing.T) {
	rec := newFetchRecorder()
	w, _, clone := testWatcher(t, rec)

	stop := make(chan struct{})
	go w.Run(stop)
	defer close(stop)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(
		filepath.Join(clone, ".git", "refs", "heads", "main"), []byte("def\n"), 0o644))

	select {
	case remote := <-rec.ch:
		assert.Equal(t, "sandbox-foo", remote, "clone change must fetch the sandbox remote on the host")
	case <-time.After(3 * time.Second):
		t.Fatal("no fetch after clone .git change")
	}
}

func TestDebounceCoalescesBursts(t *testing.T) {
	rec := newFetchRecorder()
	w, host, _ := testWatcher(t, rec)

	stop := make(chan struct{})
	go w.Run(stop)
	defer close(stop)
	time.Sleep(100 * time.Millisecond)

	// A burst of writes within the debounce window.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(host, ".git", "refs", "heads", "main"), []byte{byte('a' + i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-rec.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("no fetch after burst")
	}

	// Give a second fetch a chance to (wrongly) fire.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "burst must coalesce into one fetch")
}

func TestStopEndsWatcher(t *testing.T) {
	rec := newFetchRecorder()
	w, _, _ := testWatcher(t, rec)

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- w.Run(stop) }()
	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestContainerExitEndsWatcher(t *testing.T) {
	rec := newFetchRecorder()
	host := t.TempDir()
	clone := t.TempDir()
	for _, d := range []string{host, clone} {
		require.NoError(t, os.MkdirAll(filepath.Join(d, ".git"), 0o755))
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	w, err := New(Options{
		HostRepo:         host,
		CloneDir:         clone,
		HostRemote:       "sandbox-foo",
		Fetch:            rec.fetch,
		ContainerRunning: func() bool { return false },
		PollInterval:     30 * time.Millisecond,
		Log:              log,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(make(chan struct{})) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not exit after container stop")
	}
}

func TestWatchDirs(t *testing.T) {
	dirs := watchDirs("/repo/.git")
	assert.Contains(t, dirs, "/repo/.git")
	assert.Contains(t, dirs, "/repo/.git/refs/heads")
}

func TestClassify(t *testing.T) {
	rec := newFetchRecorder()
	w, host, clone := testWatcher(t, rec)

	s, ok := w.classify(filepath.Join(host, ".git", "packed-refs"))
	require.True(t, ok)
	assert.Equal(t, hostSide, s)

	s, ok = w.classify(filepath.Join(clone, ".git", "refs", "heads", "main"))
	require.True(t, ok)
	assert.Equal(t, cloneSide, s)

	_, ok = w.classify("/somewhere/else")
	assert.False(t, ok)
}
