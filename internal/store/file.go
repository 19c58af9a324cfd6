package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// persistedState represents the JSON structure saved to disk.
type persistedState struct {
	Version string            `json:"version"`
	Updated time.Time         `json:"updated"`
	Entries map[string][]byte `json:"entries"`
}

// FileStore is a Store backed by a single JSON file. Writes are buffered in
// memory and persisted on Flush with a temp-file rename, so a crash mid-write
// never leaves a truncated state file behind.
type FileStore struct {
	path string

	mu      sync.RWMutex
	entries map[string][]byte
	dirty   bool
}

// OpenFileStore loads (or initializes) a file-backed store at path.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:    path,
		entries: make(map[string][]byte),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No state file yet - this is OK on first run
			return fs, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if state.Entries != nil {
		fs.entries = state.Entries
	}

	return fs, nil
}

// Get retrieves the value for key.
func (fs *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	value, ok := fs.entries[key]
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key. The change is durable after the next Flush.
func (fs *FileStore) Set(_ context.Context, key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.entries[key] = value
	fs.dirty = true
	return nil
}

// Delete removes key.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.entries[key]; ok {
		delete(fs.entries, key)
		fs.dirty = true
	}
	return nil
}

// Flush persists the current state to disk atomically.
func (fs *FileStore) Flush(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.dirty {
		return nil
	}

	state := persistedState{
		Version: "1.0",
		Updated: time.Now().UTC(),
		Entries: fs.entries,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	// Write atomically (write to temp file, then rename)
	tempPath := fs.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err := os.Rename(tempPath, fs.path); err != nil {
		os.Remove(tempPath) // Clean up temp file
		return fmt.Errorf("rename state file: %w", err)
	}

	fs.dirty = false
	return nil
}

// Close flushes pending writes.
func (fs *FileStore) Close() error {
	return fs.Flush(context.Background())
}
