package statefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

func newTestLoader(t *testing.T) (*Loader, string, string) {
	t.Helper()
	emhttp := t.TempDir()
	cfg := t.TempDir()
	return New(emhttp, cfg), emhttp, cfg
}

func TestResolve(t *testing.T) {
	l, emhttp, cfg := newTestLoader(t)

	p, err := l.Resolve(state.KeyDevices)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(emhttp, "devs.ini"), p)

	p, err = l.Resolve(state.KeyDisplay)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg, "plugins", "dynamix", "dynamix.cfg"), p)

	_, err = l.Resolve(state.KeyNotifications)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	_, err = l.Resolve("bogus")
	assert.Error(t, err)
}

func TestLoad_MissingFileYieldsEmptySlice(t *testing.T) {
	l, _, _ := newTestLoader(t)

	s, err := l.Load(state.KeyVar)

	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Empty(t, s)
}

func TestLoad_DecodesFile(t *testing.T) {
	l, emhttp, _ := newTestLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(emhttp, "var.ini"), []byte("NAME=\"Tower\"\nmdState=\"STARTED\"\n"), 0o644))

	s, err := l.Load(state.KeyVar)

	require.NoError(t, err)
	assert.Equal(t, state.Slice{"NAME": "Tower", "mdState": "STARTED"}, s)
}

func TestLoad_MalformedLinesArePartiallyApplied(t *testing.T) {
	l, emhttp, _ := newTestLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(emhttp, "var.ini"), []byte("garbage\nNAME=\"Tower\"\n"), 0o644))

	s, err := l.Load(state.KeyVar)

	require.NoError(t, err)
	assert.Equal(t, "Tower", s.String("NAME"))
}

func TestLoad_UnreadableFileIsFileAccessError(t *testing.T) {
	l, emhttp, _ := newTestLoader(t)
	// A directory in place of the file fails to read regardless of the test user's privileges.
	require.NoError(t, os.Mkdir(filepath.Join(emhttp, "shares.ini"), 0o755))

	_, err := l.Load(state.KeyShares)

	require.Error(t, err)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryFileSystem, classified.Category())
	path, _ := classified.Context().GetString("path")
	assert.Equal(t, filepath.Join(emhttp, "shares.ini"), path)
}

func TestLoadAsync_MatchesLoad(t *testing.T) {
	l, emhttp, _ := newTestLoader(t)
	require.NoError(t, os.WriteFile(filepath.Join(emhttp, "users.ini"), []byte("[\"root\"]\nidx=\"0\"\nname=\"root\"\n"), 0o644))

	want, wantErr := l.Load(state.KeyUsers)

	select {
	case r := <-l.LoadAsync(context.Background(), state.KeyUsers):
		assert.Equal(t, wantErr, r.Err)
		assert.Equal(t, want, r.Slice)
		assert.Equal(t, state.KeyUsers, r.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async load")
	}
}

func TestLoadAsync_CanceledContext(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := <-l.LoadAsync(ctx, state.KeyVar)

	// Either the load won the race or the cancellation did; both are valid, but a
	// canceled result must be classified.
	if r.Err != nil {
		assert.ErrorIs(t, r.Err, context.Canceled)
	} else {
		assert.Empty(t, r.Slice)
	}
}
