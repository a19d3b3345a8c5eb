package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrFileNotFound indicates the requested filename was never uploaded.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileTooLarge indicates a payload over the configured size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// FileStore persists room uploads in one flat, server-controlled
// directory. The filename namespace is global: uploads from different
// rooms collide, last write wins.
type FileStore struct {
	dir      string
	maxBytes int64
}

// NewFileStore creates the upload directory if needed. maxBytes caps
// the decoded size of a single file; zero or negative means no cap.
func NewFileStore(dir string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileStore{dir: dir, maxBytes: maxBytes}, nil
}

// Save writes data under filename. The filename is reduced to its base
// name so a client cannot escape the upload directory.
func (fs *FileStore) Save(filename string, data []byte) error {
	if fs.maxBytes > 0 && int64(len(data)) > fs.maxBytes {
		return ErrFileTooLarge
	}
	path := filepath.Join(fs.dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Load reads a previously uploaded file. Returns ErrFileNotFound if the
// filename was never stored.
func (fs *FileStore) Load(filename string) ([]byte, error) {
	path := filepath.Join(fs.dir, filepath.Base(filename))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// MaxBytes returns the configured per-file size cap (0 = unlimited).
func (fs *FileStore) MaxBytes() int64 {
	return fs.maxBytes
}
