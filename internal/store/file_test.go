package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)

	_, found, err := fs.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, fs.Set(ctx, "alpha", []byte("1")))
	require.NoError(t, fs.Set(ctx, "beta", []byte("two")))

	value, found, err := fs.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), value)

	require.NoError(t, fs.Flush(ctx))

	// A fresh store must see the flushed state.
	reopened, err := OpenFileStore(path)
	require.NoError(t, err)

	value, found, err = reopened.Get(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("two"), value)
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Set(ctx, "key", []byte("value")))
	require.NoError(t, fs.Delete(ctx, "key"))
	require.NoError(t, fs.Delete(ctx, "never-existed"))

	_, found, err := fs.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStoreFlushCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Set(ctx, "key", []byte("value")))
	require.NoError(t, fs.Flush(ctx))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileStoreUnflushedWritesAreNotDurable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Set(ctx, "key", []byte("value")))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)

	_, found, err := reopened.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
}
