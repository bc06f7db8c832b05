package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incidentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	var fired atomic.Int64
	w, err := New(path, func() { fired.Add(1) }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o644))

	assert.True(t, waitFor(t, 2*time.Second, func() bool { return fired.Load() > 0 }))
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incidentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	var fired atomic.Int64
	w, err := New(path, func() { fired.Add(1) }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 100 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	// A burst of writes within the debounce window collapses to one call.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.True(t, waitFor(t, 2*time.Second, func() bool { return fired.Load() > 0 }))
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, fired.Load())
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incidentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	var fired atomic.Int64
	w, err := New(path, func() { fired.Add(1) }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 30 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 1\n"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incidentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	w, err := New(path, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcherMissingParent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "incidentd.yaml"), nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, w.Start())
	_ = w.Stop()
}
