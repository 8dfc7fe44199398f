package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage persists files on disk under a base directory. Names are
// relative paths; anything resolving outside the base is rejected.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage name escapes base directory: %s", name)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// Save writes data under the given relative name, creating parent
// directories as needed.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write stored file: %w", err)
	}
	return name, nil
}

// Open returns a read-only handle for a stored file.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStorage) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}

// CleanupOlderThan removes files whose mtime is older than ttl and
// returns the relative names of everything removed.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string

	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if rel, relErr := filepath.Rel(s.baseDir, path); relErr == nil {
			removed = append(removed, rel)
		} else {
			removed = append(removed, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup storage: %w", err)
	}
	return removed, nil
}
