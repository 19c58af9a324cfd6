package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherTriggersOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("governor: performance\n"), 0o644))

	var triggers atomic.Int32
	w, err := New(path, func() { triggers.Add(1) }, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("governor: powersave\n"), 0o644))

	assert.Eventually(t, func() bool {
		return triggers.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	var triggers atomic.Int32
	w, err := New(path, func() { triggers.Add(1) }, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// A burst of writes inside the debounce window collapses into one
	// callback invocation.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("b\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return triggers.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	time.Sleep(debounceDuration)
	assert.LessOrEqual(t, triggers.Load(), int32(2))
}

func TestWatcherFallsBackToDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	var triggers atomic.Int32
	w, err := New(path, func() { triggers.Add(1) }, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx), "a missing config file is watched via its directory")
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("governor: performance\n"), 0o644))

	assert.Eventually(t, func() bool {
		return triggers.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	w, err := New(path, func() {}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}
