package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileRelay stores uploads on the local filesystem under a base directory.
// Keys map directly to paths, so re-storing the same key overwrites the
// previous bytes in place.
type FileRelay struct {
	basePath string
}

// NewFileRelay creates the base directory if missing.
func NewFileRelay(basePath string) (*FileRelay, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("upload base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileRelay{basePath: basePath}, nil
}

// Store writes the bytes under the key's path and hands back a local URL.
func (f *FileRelay) Store(_ context.Context, key string, r io.Reader, _ int64, _ string) (Handle, error) {
	target, err := f.path(key)
	if err != nil {
		return Handle{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Handle{}, fmt.Errorf("create course dir: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return Handle{}, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return Handle{}, fmt.Errorf("write file: %w", err)
	}
	return Handle{URL: "/uploads/" + key, Key: key}, nil
}

// Delete removes the file if present and no-ops otherwise.
func (f *FileRelay) Delete(_ context.Context, key string) error {
	target, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Resolve returns the on-disk path for the server to stream directly.
func (f *FileRelay) Resolve(_ context.Context, key string) (Target, error) {
	target, err := f.path(key)
	if err != nil {
		return Target{}, err
	}
	return Target{LocalPath: target}, nil
}

// path joins the key under the base directory, rejecting traversal out of it.
func (f *FileRelay) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(f.basePath, clean), nil
}
