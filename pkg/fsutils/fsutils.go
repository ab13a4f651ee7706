// Package fsutils resolves filesystem paths to their canonical form.
package fsutils

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// TruePath returns the absolute form of path with every symlink resolved.
// The path must exist.
func TruePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	return resolvedPath, nil
}

// ResolvePath is TruePath for files that may not exist yet, such as a
// firmware image before its first build: a missing file is resolved through
// its parent directory, which must exist.
func ResolvePath(path string) (string, error) {
	resolved, err := TruePath(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	dir, err := TruePath(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(path)), nil
}
