package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/schedule"
)

type calls struct {
	mu    sync.Mutex
	paths []string
}

func (c *calls) record(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *calls) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func newFakeRegistry(t *testing.T, debounce time.Duration) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	r, err := New(Options{Mode: ModeNative, Debounce: debounce, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, clock
}

func waitTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestBurstIsCoalesced(t *testing.T) {
	r, clock := newFakeRegistry(t, 100*time.Millisecond)
	path := filepath.Join(t.TempDir(), "network.ini")
	var got calls
	_, err := r.Watch(path, got.record)
	require.NoError(t, err)

	r.notify(path)
	clock.Advance(40 * time.Millisecond)
	r.notify(path)
	clock.Advance(40 * time.Millisecond)
	r.notify(path)

	waitTimers(t, clock, 1)
	clock.Advance(100 * time.Millisecond)

	require.Eventually(t, func() bool { return got.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{path}, got.all())
}

func TestUnwatchSuppressesPendingCallback(t *testing.T) {
	r, clock := newFakeRegistry(t, 100*time.Millisecond)
	path := filepath.Join(t.TempDir(), "var.ini")
	var got calls
	h, err := r.Watch(path, got.record)
	require.NoError(t, err)

	r.notify(path)
	waitTimers(t, clock, 1)
	r.Unwatch(h)
	r.Unwatch(h)
	clock.Advance(time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, got.count())
}

func TestDebouncePerPath(t *testing.T) {
	r, clock := newFakeRegistry(t, 100*time.Millisecond)
	dir := t.TempDir()
	var got calls
	_, err := r.Watch(dir, got.record)
	require.NoError(t, err)

	a := filepath.Join(dir, "a.notify")
	b := filepath.Join(dir, "b.notify")
	r.notify(a)
	r.notify(b)
	r.notify(a)
	// Grandchildren and the directory itself are not reported.
	r.notify(filepath.Join(dir, "sub", "c.notify"))
	r.notify(dir)

	waitTimers(t, clock, 2)
	clock.Advance(100 * time.Millisecond)

	require.Eventually(t, func() bool { return got.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{a, b}, got.all())
}

func TestNativeWritesTriggerOneCallback(t *testing.T) {
	r, err := New(Options{Mode: ModeNative, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	path := filepath.Join(t.TempDir(), "network.ini")
	var got calls
	_, err = r.Watch(path, got.record)
	require.NoError(t, err)

	for _, body := range []string{"a=1\n", "a=2\n", "a=3\n"} {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}

	require.Eventually(t, func() bool { return got.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, got.count())
}

func TestNativeSeesAtomicReplace(t *testing.T) {
	r, err := New(Options{Mode: ModeNative, Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	dir := t.TempDir()
	path := filepath.Join(dir, "disks.ini")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o600))
	var got calls
	_, err = r.Watch(path, got.record)
	require.NoError(t, err)

	tmp := filepath.Join(dir, ".disks.ini.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("new\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return got.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, path, got.all()[0])
}

func TestPollModeDetectsChanges(t *testing.T) {
	s, err := schedule.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	r, err := New(Options{Mode: ModePoll, PollInterval: 20 * time.Millisecond, Scheduler: s})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	assert.Equal(t, ModePoll, r.Mode())

	dir := t.TempDir()
	path := filepath.Join(dir, "shares.ini")
	var got calls
	_, err = r.Watch(path, got.record)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("x=1\n"), 0o600))
	require.Eventually(t, func() bool { return got.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	n := got.count()
	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return got.count() > n }, 2*time.Second, 5*time.Millisecond)
}

func TestWatchErrors(t *testing.T) {
	r, _ := newFakeRegistry(t, 0)

	_, err := r.Watch(filepath.Join(t.TempDir(), "missing", "var.ini"), func(string) {})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))

	_, err = r.Watch(t.TempDir(), nil)
	assert.Error(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Watch(t.TempDir(), func(string) {})
	assert.Error(t, err)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Mode: "inotify"})
	assert.Error(t, err)
	_, err = New(Options{Mode: ModePoll})
	assert.Error(t, err)
}
