package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage is the file access the Store needs. Paths are slash separated and
// relative to the storage root.
type Storage interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Exists(path string) bool
	List(dir string) ([]string, error)
}

// DirStorage stores files below a root directory on disk.
type DirStorage struct {
	Root string
}

// NewDirStorage returns a Storage rooted at dir.
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{Root: dir}
}

func (s *DirStorage) abs(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return filepath.Join(s.Root, clean), nil
}

// Read returns the content of path.
func (s *DirStorage) Read(path string) ([]byte, error) {
	full, err := s.abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Write creates parent folders and replaces the content of path.
func (s *DirStorage) Write(path string, data []byte) error {
	full, err := s.abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create folder for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists.
func (s *DirStorage) Exists(path string) bool {
	full, err := s.abs(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// List returns the names of the folders directly below dir. A missing dir
// yields an empty list.
func (s *DirStorage) List(dir string) ([]string, error) {
	full, err := s.abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
