package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File stores the key in a file readable only by the current user.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a store backed by path. The file is created on SetKey.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// HasKey reports whether the file exists with a non-empty key.
func (f *File) HasKey() bool {
	_, ok := f.GetKey()
	return ok
}

// GetKey reads the key. Read errors are reported as a missing key.
func (f *File) GetKey() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	key := strings.TrimSpace(string(data))
	return key, key != ""
}

// SetKey writes the key with 0600 permissions, creating the directory.
func (f *File) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("refusing to store an empty key")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}

// DeleteKey removes the file. A missing file is not an error.
func (f *File) DeleteKey() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove key file: %w", err)
	}
	return nil
}
