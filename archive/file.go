package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const contentTypeSuffix = ".content-type"

// FileStore writes each document to <dir>/<key>, with its content type in a sidecar file.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	key := newKey()
	path := filepath.Join(f.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing archive file: %w", err)
	}
	if err := os.WriteFile(path+contentTypeSuffix, []byte(contentType), 0o644); err != nil {
		return "", fmt.Errorf("writing archive file: %w", err)
	}
	return key, nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, string, error) {
	if !validKey(key) {
		return nil, "", ErrNotFound
	}
	path := filepath.Join(f.dir, key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	contentType, _ := os.ReadFile(path + contentTypeSuffix)
	return data, string(contentType), nil
}
