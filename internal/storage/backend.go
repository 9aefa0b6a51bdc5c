package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Backend persists the serialized store document
type Backend interface {
	// Load returns the stored document, or nil when nothing was saved yet.
	Load() ([]byte, error)
	// Save replaces the stored document.
	Save(data []byte) error
	Close() error
}

// FileBackend keeps the document in a single JSON file
type FileBackend struct {
	path string
}

// NewFileBackend creates the parent directory of path if needed
func NewFileBackend(path string) (*FileBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &FileBackend{path: path}, nil
}

// Path returns the data file location
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the
// data file, so a crash mid-write leaves the previous document intact.
func (f *FileBackend) Save(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (f *FileBackend) Close() error {
	return nil
}

// MigrateLegacy copies legacyPath to path once: only when the two differ,
// the legacy file exists and path does not. Returns true if a copy was made.
func MigrateLegacy(path, legacyPath string) (bool, error) {
	if legacyPath == "" || filepath.Clean(path) == filepath.Clean(legacyPath) {
		return false, nil
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat data file: %w", err)
	}

	src, err := os.Open(legacyPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open legacy file: %w", err)
	}
	defer src.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create data dir: %w", err)
		}
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return false, fmt.Errorf("create data file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return false, fmt.Errorf("copy legacy file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return false, fmt.Errorf("close data file: %w", err)
	}
	return true, nil
}

// ImportFile seeds an empty backend with the JSON document at path. Nothing
// happens when the backend already holds state or the file does not exist.
func ImportFile(dst Backend, path string) (bool, error) {
	current, err := dst.Load()
	if err != nil {
		return false, err
	}
	if current != nil {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return false, fmt.Errorf("import %s: not a JSON document", path)
	}

	if err := dst.Save(data); err != nil {
		return false, err
	}
	return true, nil
}
