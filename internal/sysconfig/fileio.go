package sysconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// writeFileIfChanged writes content to path only when it differs from the
// current on-disk content, using a temp-file rename so readers never observe
// a partial file. It reports whether a write happened.
func writeFileIfChanged(path, content string, perm os.FileMode) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == content {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if err := writeFile(path, content, perm); err != nil {
		return false, err
	}
	return true, nil
}

// writeFile writes content to path atomically, creating parent directories.
func writeFile(path, content string, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(content), perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// filesEqual reports whether two files have identical content.
func filesEqual(a, b string) (bool, error) {
	contentA, err := os.ReadFile(a)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", a, err)
	}
	contentB, err := os.ReadFile(b)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", b, err)
	}
	return bytes.Equal(contentA, contentB), nil
}
